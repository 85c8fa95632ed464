package payment

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nao1215/invoiceprep"
)

// Error kinds. Every *Error returned by Build matches exactly one of them with
// errors.Is.
var (
	// ErrSchema reports a required column that is missing.
	ErrSchema = errors.New("schema error")
	// ErrValidation reports invoice data breaking a batch invariant.
	ErrValidation = errors.New("validation error")
	// ErrConfig reports an inconsistent configuration.
	ErrConfig = errors.New("config error")
)

// Error is a failed batch. It carries what is needed to fix the input without
// re-running the build: the offending columns and rows.
type Error struct {
	// Kind is ErrSchema, ErrValidation or ErrConfig.
	Kind error
	// Message describes the failure.
	Message string
	// Columns lists the offending or missing columns.
	Columns []string
	// Rows holds the offending row sets.
	Rows []*invoiceprep.Table
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	b.WriteString(": ")
	b.WriteString(e.Message)
	if len(e.Columns) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(e.Columns, ", "))
	}
	for _, rows := range e.Rows {
		if rows == nil {
			continue
		}
		b.WriteString("\n")
		b.WriteString(rows.String())
	}
	return b.String()
}

// Unwrap returns the error kind.
func (e *Error) Unwrap() error {
	return e.Kind
}

func schemaError(columns []string, format string, args ...any) *Error {
	return &Error{Kind: ErrSchema, Message: fmt.Sprintf(format, args...), Columns: columns}
}

func validationError(rows []*invoiceprep.Table, format string, args ...any) *Error {
	return &Error{Kind: ErrValidation, Message: fmt.Sprintf(format, args...), Rows: rows}
}

func configError(format string, args ...any) *Error {
	return &Error{Kind: ErrConfig, Message: fmt.Sprintf(format, args...)}
}
