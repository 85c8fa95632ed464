package invoiceprep

import (
	"fmt"
	"strings"

	"github.com/tiendc/go-deepcopy"
)

// Table contains tabular data: an ordered header and rows of string cells.
// Every record has exactly len(Headers) cells; a missing value is "".
type Table struct {
	// Headers contains the column names in order.
	Headers []string
	// Records contains the data rows.
	Records [][]string
}

// Field is a single named cell of a row.
type Field struct {
	Name  string
	Value string
}

// Row is one table row as ordered name/value pairs.
type Row []Field

// Get returns the value of the named field.
func (r Row) Get(name string) (string, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// NewTable builds a table from headers and records. Short records are padded
// with empty cells; a record longer than the header is an error.
func NewTable(headers []string, records [][]string) (*Table, error) {
	if err := validateColumnNames(headers); err != nil {
		return nil, err
	}

	normalized := make([][]string, 0, len(records))
	for i, record := range records {
		if len(record) > len(headers) {
			return nil, fmt.Errorf("record %d has %d fields, header has %d", i+1, len(record), len(headers))
		}
		row := make([]string, len(headers))
		copy(row, record)
		normalized = append(normalized, row)
	}

	return &Table{
		Headers: append([]string(nil), headers...),
		Records: normalized,
	}, nil
}

// Len returns the number of records.
func (t *Table) Len() int {
	return len(t.Records)
}

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, h := range t.Headers {
		if h == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the table has the named column.
func (t *Table) HasColumn(name string) bool {
	return t.ColumnIndex(name) >= 0
}

// MissingColumns returns the names, in the given order, that are not columns of the table.
func (t *Table) MissingColumns(names ...string) []string {
	var missing []string
	for _, name := range names {
		if !t.HasColumn(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// Value returns the cell at the given record and column name.
func (t *Table) Value(record int, column string) string {
	pos := t.ColumnIndex(column)
	if pos < 0 || record < 0 || record >= len(t.Records) {
		return ""
	}
	return t.Records[record][pos]
}

// Row returns the i-th record as a Row.
func (t *Table) Row(i int) Row {
	row := make(Row, len(t.Headers))
	for j, h := range t.Headers {
		row[j] = Field{Name: h, Value: t.Records[i][j]}
	}
	return row
}

// Subset returns a new table holding copies of the records at the given indices.
func (t *Table) Subset(indices []int) *Table {
	records := make([][]string, 0, len(indices))
	for _, i := range indices {
		records = append(records, append([]string(nil), t.Records[i]...))
	}
	return &Table{
		Headers: append([]string(nil), t.Headers...),
		Records: records,
	}
}

// SelectColumns returns a new table with only the columns for which keep returns true.
func (t *Table) SelectColumns(keep func(name string) bool) *Table {
	var positions []int
	out := &Table{}
	for i, h := range t.Headers {
		if keep(h) {
			positions = append(positions, i)
			out.Headers = append(out.Headers, h)
		}
	}

	out.Records = make([][]string, 0, len(t.Records))
	for _, record := range t.Records {
		row := make([]string, len(positions))
		for j, pos := range positions {
			row[j] = record[pos]
		}
		out.Records = append(out.Records, row)
	}
	return out
}

// WithColumn returns a new table with an extra column appended. values must
// hold one value per record.
func (t *Table) WithColumn(name string, values []string) (*Table, error) {
	if t.HasColumn(name) {
		return nil, fmt.Errorf("duplicate column name: %s", name)
	}
	if len(values) != len(t.Records) {
		return nil, fmt.Errorf("column %s has %d values, table has %d records", name, len(values), len(t.Records))
	}

	out := t.Subset(allIndices(len(t.Records)))
	out.Headers = append(out.Headers, name)
	for i := range out.Records {
		out.Records[i] = append(out.Records[i], values[i])
	}
	return out, nil
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() (*Table, error) {
	var out Table
	if err := deepcopy.Copy(&out, *t); err != nil {
		return nil, fmt.Errorf("failed to copy table: %w", err)
	}
	if out.Records == nil {
		out.Records = [][]string{}
	}
	return &out, nil
}

// String renders the table as CSV, header included. It is meant for diagnostics.
func (t *Table) String() string {
	var b strings.Builder
	if err := writeDelimited(&b, t, ','); err != nil {
		return fmt.Sprintf("<unprintable table: %v>", err)
	}
	return b.String()
}

func allIndices(n int) []int {
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	return indices
}

// SplitIndexed splits a column name of the form <group>.<index>.<subfield>.
// ok is false unless the name has exactly three dot-separated parts.
func SplitIndexed(name string) (group, index, subfield string, ok bool) {
	parts := strings.Split(name, ".")
	if len(parts) != 3 {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

// validateColumnNames checks for duplicate column names.
func validateColumnNames(columns []string) error {
	seen := make(map[string]bool, len(columns))
	for _, col := range columns {
		if seen[col] {
			return fmt.Errorf("duplicate column name: %s", col)
		}
		seen[col] = true
	}
	return nil
}
