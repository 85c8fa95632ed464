package invoiceprep

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectFileType(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		path     string
		expected FileType
	}{
		// Base formats
		{"invoices.csv", FileType{Format: CSV}},
		{"invoices.tsv", FileType{Format: TSV}},
		{"invoices.ltsv", FileType{Format: LTSV}},
		{"invoices.parquet", FileType{Format: Parquet}},
		{"invoices.xlsx", FileType{Format: XLSX}},

		// Compressed
		{"invoices.csv.gz", FileType{Format: CSV, Compression: Gzip}},
		{"invoices.tsv.bz2", FileType{Format: TSV, Compression: Bzip2}},
		{"invoices.ltsv.xz", FileType{Format: LTSV, Compression: XZ}},
		{"invoices.parquet.zst", FileType{Format: Parquet, Compression: Zstd}},
		{"invoices.xlsx.lz4", FileType{Format: XLSX, Compression: LZ4}},

		// Case insensitive
		{"INVOICES.CSV", FileType{Format: CSV}},
		{"invoices.CSV.GZ", FileType{Format: CSV, Compression: Gzip}},

		// With path
		{"/exports/2023-02/customers.csv", FileType{Format: CSV}},
		{"./exports/invoices.tsv.gz", FileType{Format: TSV, Compression: Gzip}},

		// Unsupported
		{"invoices.txt", FileType{Format: UnsupportedFormat}},
		{"invoices.gz", FileType{Format: UnsupportedFormat}},
		{"noextension", FileType{Format: UnsupportedFormat}},
		{"", FileType{Format: UnsupportedFormat}},
	}

	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.expected, DetectFileType(tc.path))
		})
	}
}

func TestFileType_String(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		fileType FileType
		expected string
	}{
		{FileType{Format: CSV}, "CSV"},
		{FileType{Format: Parquet}, "Parquet"},
		{FileType{Format: CSV, Compression: Gzip}, "CSV (gzip)"},
		{FileType{Format: TSV, Compression: Bzip2}, "TSV (bzip2)"},
		{FileType{Format: XLSX, Compression: LZ4}, "XLSX (lz4)"},
		{FileType{Format: Parquet, Compression: Zstd}, "Parquet (zstd)"},
		{FileType{Format: LTSV, Compression: XZ}, "LTSV (xz)"},
		{FileType{Format: UnsupportedFormat, Compression: Gzip}, "Unsupported"},
		{FileType{Format: Format(999)}, "Unsupported"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.expected, tc.fileType.String())
		})
	}
}

func TestFileType_IsCompressed(t *testing.T) {
	t.Parallel()

	for _, c := range []Compression{Gzip, Bzip2, XZ, Zstd, LZ4} {
		t.Run(c.String(), func(t *testing.T) {
			t.Parallel()

			ft := FileType{Format: CSV, Compression: c}
			assert.True(t, ft.IsCompressed())
			assert.True(t, ft.IsSupported())
		})
	}

	assert.False(t, FileType{Format: CSV}.IsCompressed())
	assert.False(t, FileType{Format: UnsupportedFormat}.IsSupported())
}
