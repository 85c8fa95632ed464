// Package meta folds the leading metadata rows of an export into companion
// columns.
//
// An export may start with rows tagged in a "meta" column. Each such row holds,
// for a family of indexed columns <group>.<index>.<subfield>, a value that
// applies to every invoice: a column title, a charge date. For the input
//
//	       meta amount_due item_lines.1.amount payments.0.amount
//	     header      Total              Item 1           Payment
//	charge_date                                       2023-02-01
//	                123.45              123.45            123.45
//
// the expander returns
//
//	meta amount_due item_lines.1.amount payments.0.amount item_lines.1.header payments.0.header payments.0.charge_date
//	         123.45              123.45            123.45              Item 1           Payment             2023-02-01
package meta

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nao1215/invoiceprep"
)

const (
	// Column is the name of the column holding meta row tags.
	Column = "meta"
	// Dash is the sentinel tag handled by DashPolicy.
	Dash = "-"
)

// DashPolicy decides what a row tagged "-" means.
type DashPolicy int

const (
	// DashSkip drops "-" rows as meta rows that synthesize nothing; the scan
	// for meta rows goes on.
	DashSkip DashPolicy = iota
	// DashTerminate treats a "-" row as the first data row.
	DashTerminate
)

// String returns the configuration name of the policy.
func (p DashPolicy) String() string {
	switch p {
	case DashTerminate:
		return "terminate"
	default:
		return "skip"
	}
}

// ParseDashPolicy parses "skip" or "terminate". The empty string is DashSkip.
func ParseDashPolicy(s string) (DashPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "skip":
		return DashSkip, nil
	case "terminate":
		return DashTerminate, nil
	default:
		return DashSkip, fmt.Errorf("unknown dash policy %q: want skip or terminate", s)
	}
}

// Expander folds meta rows into companion columns.
type Expander struct {
	dash   DashPolicy
	logger *slog.Logger
}

// Option configures an Expander.
type Option func(*Expander)

// WithDashPolicy sets how "-" rows are treated.
func WithDashPolicy(p DashPolicy) Option {
	return func(e *Expander) { e.dash = p }
}

// WithLogger sets the logger that receives column naming warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Expander) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewExpander returns an Expander. The defaults are DashSkip and slog.Default().
func NewExpander(opts ...Option) *Expander {
	e := &Expander{dash: DashSkip, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Expand runs a default Expander over t.
func Expand(t *invoiceprep.Table) (*invoiceprep.Table, error) {
	return NewExpander().Expand(t)
}

// metaRow is a classified row of the meta region. tag is empty for "-" rows.
type metaRow struct {
	record int
	tag    string
}

// companion is a synthesized column.
type companion struct {
	name   string
	values []string
}

// Expand returns a new table without the leading meta rows and with one
// companion column per synthesized <group>.<index>.<tag> name. Unnamed columns
// are stripped. The input table is not modified.
func (e *Expander) Expand(t *invoiceprep.Table) (*invoiceprep.Table, error) {
	if t == nil {
		return nil, errors.New("table cannot be nil")
	}

	stripped, err := StripUnnamed(t)
	if err != nil {
		return nil, err
	}
	for _, w := range Lint(stripped.Headers) {
		e.logger.Warn("suspicious column name", "column", w.Column, "reason", w.Reason)
	}

	metaPos := stripped.ColumnIndex(Column)
	if metaPos < 0 {
		return stripped, nil
	}

	region, firstData := e.classify(stripped, metaPos)
	data := stripped.Records[firstData:]
	companions := synthesize(stripped.Headers, stripped.Records, region, data)

	out := &invoiceprep.Table{
		Headers: append([]string(nil), stripped.Headers...),
		Records: make([][]string, 0, len(data)),
	}
	for _, c := range companions {
		out.Headers = append(out.Headers, c.name)
	}
	for i, record := range data {
		row := append([]string(nil), record...)
		for _, c := range companions {
			row = append(row, c.values[i])
		}
		out.Records = append(out.Records, row)
	}

	if len(region) > 0 {
		e.logger.Debug("expanded meta rows",
			"meta_rows", len(region), "data_rows", len(data), "companion_columns", len(companions))
	}
	return out, nil
}

// classify scans the leading rows and returns the meta region and the index of
// the first data row. The first row with an empty tag ends the region; no later
// row is ever a meta row.
func (e *Expander) classify(t *invoiceprep.Table, metaPos int) ([]metaRow, int) {
	var region []metaRow
	for i, record := range t.Records {
		tag := strings.TrimSpace(record[metaPos])
		switch {
		case tag == "":
			return region, i
		case tag == Dash && e.dash == DashTerminate:
			return region, i
		case tag == Dash:
			region = append(region, metaRow{record: i})
		default:
			region = append(region, metaRow{record: i, tag: tag})
		}
	}
	return region, len(t.Records)
}

// synthesize builds the companion columns for the data rows, applying meta
// rows in order. Original columns are never overwritten; a later meta row or
// column writing the same companion replaces its values in place.
func synthesize(headers []string, records [][]string, region []metaRow, data [][]string) []companion {
	original := make(map[string]bool, len(headers))
	for _, h := range headers {
		original[h] = true
	}

	var companions []companion
	position := make(map[string]int)

	for _, m := range region {
		if m.tag == "" {
			continue
		}
		metaRecord := records[m.record]
		for col, name := range headers {
			value := metaRecord[col]
			if invoiceprep.IsEmpty(value) {
				continue
			}
			group, index, _, ok := invoiceprep.SplitIndexed(name)
			if !ok {
				continue
			}
			target := group + "." + index + "." + m.tag
			if original[target] {
				continue
			}

			blank := emptyLike(value)
			values := make([]string, len(data))
			for i, record := range data {
				if invoiceprep.IsEmpty(record[col]) {
					values[i] = blank
				} else {
					values[i] = value
				}
			}

			if pos, ok := position[target]; ok {
				companions[pos].values = values
				continue
			}
			position[target] = len(companions)
			companions = append(companions, companion{name: target, values: values})
		}
	}
	return companions
}

// emptyLike returns the empty value of the same kind as value: "0" for
// numbers, "" otherwise.
func emptyLike(value string) string {
	if invoiceprep.IsNumber(value) {
		return "0"
	}
	return ""
}

// StripUnnamed returns a copy of t without the columns whose name is blank or
// starts with "Unnamed".
func StripUnnamed(t *invoiceprep.Table) (*invoiceprep.Table, error) {
	clone, err := t.Clone()
	if err != nil {
		return nil, err
	}
	return clone.SelectColumns(func(name string) bool {
		return strings.TrimSpace(name) != "" && !strings.HasPrefix(name, "Unnamed")
	}), nil
}
