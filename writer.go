package invoiceprep

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

// Write writes the table to writer in the given format and compression.
// LTSV output and bzip2 compression are not supported.
func Write(writer io.Writer, table *Table, fileType FileType) (err error) {
	if writer == nil {
		return errors.New("writer cannot be nil")
	}
	if table == nil {
		return errors.New("table cannot be nil")
	}

	compressedWriter, closeFunc, compErr := createCompressedWriter(writer, fileType.Compression)
	if compErr != nil {
		return fmt.Errorf("failed to compress: %w", compErr)
	}
	if closeFunc != nil {
		defer func() {
			if closeErr := closeFunc(); closeErr != nil && err == nil {
				err = fmt.Errorf("failed to close compressor: %w", closeErr)
			}
		}()
	}

	switch fileType.Format {
	case CSV:
		return writeDelimited(compressedWriter, table, ',')
	case TSV:
		return writeDelimited(compressedWriter, table, '\t')
	case Parquet:
		return writeParquet(compressedWriter, table)
	case XLSX:
		return writeXLSX(compressedWriter, table)
	default:
		return fmt.Errorf("writing %s is not supported", fileType)
	}
}

// createCompressedWriter wraps the writer with the matching compressor. The
// returned close function flushes the compressor without closing writer.
func createCompressedWriter(writer io.Writer, compression Compression) (io.Writer, func() error, error) {
	switch compression {
	case NoCompression:
		return writer, nil, nil

	case Gzip:
		gzWriter := gzip.NewWriter(writer)
		return gzWriter, gzWriter.Close, nil

	case XZ:
		xzWriter, err := xz.NewWriter(writer)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create xz writer: %w", err)
		}
		return xzWriter, xzWriter.Close, nil

	case Zstd:
		encoder, err := zstd.NewWriter(writer)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create zstd writer: %w", err)
		}
		return encoder, encoder.Close, nil

	case LZ4:
		lz4Writer := lz4.NewWriter(writer)
		return lz4Writer, lz4Writer.Close, nil

	default:
		return nil, nil, fmt.Errorf("%s compression is read-only", compression)
	}
}

// writeDelimited writes CSV or TSV data, header first.
func writeDelimited(writer io.Writer, table *Table, delimiter rune) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = delimiter

	if err := csvWriter.Write(table.Headers); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := csvWriter.WriteAll(table.Records); err != nil {
		return fmt.Errorf("failed to write records: %w", err)
	}
	return nil
}
