package invoiceprep

import (
	"path/filepath"
	"strings"
)

// Format represents a supported tabular file format.
type Format int

const (
	// CSV represents comma-separated values.
	CSV Format = iota
	// TSV represents tab-separated values.
	TSV
	// LTSV represents Labeled Tab-Separated Values. LTSV is read-only.
	LTSV
	// Parquet represents Apache Parquet.
	Parquet
	// XLSX represents an Excel workbook. Only the first sheet is used.
	XLSX
	// UnsupportedFormat represents an unknown format.
	UnsupportedFormat
)

// String returns a human-readable name of the format.
func (f Format) String() string {
	switch f {
	case CSV:
		return "CSV"
	case TSV:
		return "TSV"
	case LTSV:
		return "LTSV"
	case Parquet:
		return "Parquet"
	case XLSX:
		return "XLSX"
	default:
		return "Unsupported"
	}
}

// Compression represents the compression wrapped around a file.
type Compression int

const (
	// NoCompression means the data is stored as-is.
	NoCompression Compression = iota
	// Gzip compression.
	Gzip
	// Bzip2 compression. Bzip2 is read-only.
	Bzip2
	// XZ compression.
	XZ
	// Zstd compression.
	Zstd
	// LZ4 compression.
	LZ4
)

// String returns the conventional short name of the compression.
func (c Compression) String() string {
	switch c {
	case Gzip:
		return "gzip"
	case Bzip2:
		return "bzip2"
	case XZ:
		return "xz"
	case Zstd:
		return "zstd"
	case LZ4:
		return "lz4"
	default:
		return "none"
	}
}

// FileType is a format together with its compression.
type FileType struct {
	Format      Format
	Compression Compression
}

// String returns a human-readable representation such as "CSV (gzip)".
func (ft FileType) String() string {
	if ft.Format == UnsupportedFormat {
		return ft.Format.String()
	}
	if ft.Compression == NoCompression {
		return ft.Format.String()
	}
	return ft.Format.String() + " (" + ft.Compression.String() + ")"
}

// IsSupported reports whether the file type can be parsed.
func (ft FileType) IsSupported() bool {
	return ft.Format >= CSV && ft.Format < UnsupportedFormat
}

// IsCompressed reports whether the file type is compressed.
func (ft FileType) IsCompressed() bool {
	return ft.Compression != NoCompression
}

// File extensions
const (
	ExtCSV     = ".csv"
	ExtTSV     = ".tsv"
	ExtLTSV    = ".ltsv"
	ExtParquet = ".parquet"
	ExtXLSX    = ".xlsx"
	ExtGZ      = ".gz"
	ExtBZ2     = ".bz2"
	ExtXZ      = ".xz"
	ExtZSTD    = ".zst"
	ExtLZ4     = ".lz4"
)

var compressionExtensions = []struct {
	ext         string
	compression Compression
}{
	{ExtGZ, Gzip},
	{ExtBZ2, Bzip2},
	{ExtXZ, XZ},
	{ExtZSTD, Zstd},
	{ExtLZ4, LZ4},
}

var formatExtensions = map[string]Format{
	ExtCSV:     CSV,
	ExtTSV:     TSV,
	ExtLTSV:    LTSV,
	ExtParquet: Parquet,
	ExtXLSX:    XLSX,
}

// DetectFileType detects the file type from the path extension, including the
// compression suffix. Matching is case-insensitive.
func DetectFileType(path string) FileType {
	lower := strings.ToLower(path)
	ft := FileType{Format: UnsupportedFormat}

	for _, c := range compressionExtensions {
		if strings.HasSuffix(lower, c.ext) {
			lower = lower[:len(lower)-len(c.ext)]
			ft.Compression = c.compression
			break
		}
	}

	if format, ok := formatExtensions[filepath.Ext(lower)]; ok {
		ft.Format = format
		return ft
	}
	return FileType{Format: UnsupportedFormat}
}
