// Package invoiceprep reshapes invoice and payment request exports into
// validated payment batches and nested records for document templates.
//
// The root package holds the table model shared by every transform and the
// file I/O around it. Tables are read from CSV, TSV, LTSV, XLSX and Parquet,
// optionally compressed with gzip, bzip2, xz, zstd or lz4, and written back to
// CSV, TSV, XLSX or Parquet.
//
// The transforms live in sub-packages:
//
//   - meta folds leading metadata rows into companion columns
//   - record turns a flat row with dotted keys into a nested record
//   - payment validates invoices, joins customers and scatters payments
//
// # Memory Considerations
//
// All tables are held in memory. Inputs are expected to be spreadsheet-sized
// exports, not streams.
//
// # Example usage
//
//	f, _ := os.Open("invoices.csv.gz")
//	defer f.Close()
//	table, err := invoiceprep.Parse(f, invoiceprep.DetectFileType("invoices.csv.gz"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("Columns:", table.Headers)
package invoiceprep

import (
	"compress/bzip2"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

// unnamedPrefix names blank header cells, as spreadsheet exports do.
const unnamedPrefix = "Unnamed: "

// byteOrderMark is stripped from the first header cell.
const byteOrderMark = "\ufeff"

// Parse reads a table from reader. The fileType parameter specifies the format
// and compression of the data.
//
// Example:
//
//	f, _ := os.Open("customers.xlsx")
//	defer f.Close()
//	table, err := invoiceprep.Parse(f, invoiceprep.FileType{Format: invoiceprep.XLSX})
func Parse(reader io.Reader, fileType FileType) (result *Table, err error) {
	if reader == nil {
		return nil, errors.New("reader cannot be nil")
	}
	if !fileType.IsSupported() {
		return nil, errors.New("unsupported file type")
	}

	decompressedReader, closeFunc, decompErr := createDecompressedReader(reader, fileType.Compression)
	if decompErr != nil {
		return nil, fmt.Errorf("failed to decompress: %w", decompErr)
	}
	if closeFunc != nil {
		defer func() {
			if closeErr := closeFunc(); closeErr != nil && err == nil {
				err = fmt.Errorf("failed to close decompressor: %w", closeErr)
			}
		}()
	}

	switch fileType.Format {
	case CSV:
		return parseDelimited(decompressedReader, ',', "CSV")
	case TSV:
		return parseDelimited(decompressedReader, '\t', "TSV")
	case LTSV:
		return parseLTSV(decompressedReader)
	case Parquet:
		return parseParquet(decompressedReader)
	case XLSX:
		return parseXLSX(decompressedReader)
	default:
		return nil, errors.New("unsupported file type")
	}
}

// createDecompressedReader wraps the reader with the matching decompressor.
func createDecompressedReader(reader io.Reader, compression Compression) (io.Reader, func() error, error) {
	switch compression {
	case Gzip:
		gzReader, err := gzip.NewReader(reader)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return gzReader, gzReader.Close, nil

	case Bzip2:
		return bzip2.NewReader(reader), nil, nil

	case XZ:
		xzReader, err := xz.NewReader(reader)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create xz reader: %w", err)
		}
		return xzReader, nil, nil

	case Zstd:
		decoder, err := zstd.NewReader(reader)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		return decoder, func() error { decoder.Close(); return nil }, nil

	case LZ4:
		return lz4.NewReader(reader), nil, nil

	default:
		return reader, nil, nil
	}
}

// parseDelimited parses CSV or TSV data.
func parseDelimited(reader io.Reader, delimiter rune, fileTypeName string) (*Table, error) {
	csvReader := csv.NewReader(reader)
	csvReader.Comma = delimiter
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", fileTypeName, err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("empty %s data", fileTypeName)
	}

	return NewTable(nameBlankHeaders(records[0]), records[1:])
}

// nameBlankHeaders strips a leading byte order mark and names blank header
// cells "Unnamed: <position>".
func nameBlankHeaders(headers []string) []string {
	named := make([]string, len(headers))
	for i, h := range headers {
		if i == 0 {
			h = strings.TrimPrefix(h, byteOrderMark)
		}
		if strings.TrimSpace(h) == "" {
			h = unnamedPrefix + strconv.Itoa(i)
		}
		named[i] = h
	}
	return named
}

// parseLTSV parses LTSV (Labeled Tab-Separated Values) data.
// Column order is preserved as first-seen order for deterministic output.
func parseLTSV(reader io.Reader) (*Table, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read LTSV: %w", err)
	}

	var headers []string
	headerPos := make(map[string]int)
	var parsedRecords []map[string]string

	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		recordMap := make(map[string]string)
		for _, pair := range strings.Split(line, "\t") {
			key, value, found := strings.Cut(pair, ":")
			if !found {
				continue
			}
			key = strings.TrimSpace(key)
			recordMap[key] = strings.TrimSpace(value)
			if _, seen := headerPos[key]; !seen {
				headerPos[key] = len(headers)
				headers = append(headers, key)
			}
		}
		if len(recordMap) > 0 {
			parsedRecords = append(parsedRecords, recordMap)
		}
	}

	if len(parsedRecords) == 0 {
		return nil, errors.New("no valid LTSV records found")
	}

	records := make([][]string, 0, len(parsedRecords))
	for _, recordMap := range parsedRecords {
		row := make([]string, len(headers))
		for key, val := range recordMap {
			row[headerPos[key]] = val
		}
		records = append(records, row)
	}

	return NewTable(headers, records)
}
