package invoiceprep

import (
	"math"
	"strconv"
	"strings"
)

// IsEmpty reports whether a cell holds no value. A cell is empty when, once
// trimmed, it is blank, NaN, or a number equal to zero. Every transform uses
// this predicate so that text and numeric columns agree on emptiness.
func IsEmpty(value string) bool {
	v := strings.TrimSpace(value)
	if v == "" || strings.EqualFold(v, "nan") {
		return true
	}
	f, err := strconv.ParseFloat(v, 64)
	return err == nil && f == 0 && !math.IsNaN(f)
}

// IsNumber reports whether the value is an integer or a real number.
func IsNumber(value string) bool {
	v := strings.TrimSpace(value)
	return isInteger(v) || isFloat(v)
}

// isInteger checks if the string represents an integer.
func isInteger(s string) bool {
	if s == "" {
		return false
	}
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

// isFloat checks if the string represents a finite floating-point number.
// A decimal point or an exponent is required.
func isFloat(s string) bool {
	if s == "" {
		return false
	}
	if !strings.ContainsAny(s, ".eE") {
		return false
	}
	f, err := strconv.ParseFloat(s, 64)
	return err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
}
