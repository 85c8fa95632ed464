package meta

import (
	"fmt"
	"strings"
)

// Warning describes a column whose name looks like, but does not follow, the
// <group>.<index>.<subfield> convention. Such columns are treated as plain
// scalars and never receive companions, which is usually not what was meant.
type Warning struct {
	Column string
	Reason string
}

// String returns the warning as one line.
func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Column, w.Reason)
}

// Lint checks column names against the dotted convention. A name is a near
// miss when it has an empty segment, when it has an all-digit segment but not
// three parts, or when it starts with the group of an indexed column but does
// not have three parts (item_lines.amount next to item_lines.1.amount).
func Lint(headers []string) []Warning {
	groups := indexedGroups(headers)

	var warnings []Warning
	for _, name := range headers {
		if reason, ok := lintName(name, groups); !ok {
			warnings = append(warnings, Warning{Column: name, Reason: reason})
		}
	}
	return warnings
}

func lintName(name string, groups map[string]bool) (string, bool) {
	parts := strings.Split(name, ".")
	switch {
	case len(parts) == 1:
		return "", true
	case len(parts) == 3:
		for _, p := range parts {
			if p == "" {
				return "indexed column has an empty segment", false
			}
		}
		return "", true
	case hasIndexSegment(parts):
		return fmt.Sprintf("has an index segment but %d parts instead of 3", len(parts)), false
	case groups[parts[0]]:
		return fmt.Sprintf("uses indexed group %q but has %d parts instead of 3", parts[0], len(parts)), false
	default:
		return "", true
	}
}

// indexedGroups returns the groups of the <group>.<digits>.<subfield> columns.
func indexedGroups(headers []string) map[string]bool {
	groups := make(map[string]bool)
	for _, name := range headers {
		parts := strings.Split(name, ".")
		if len(parts) == 3 && parts[0] != "" && parts[2] != "" && isIndex(parts[1]) {
			groups[parts[0]] = true
		}
	}
	return groups
}

func hasIndexSegment(parts []string) bool {
	for _, p := range parts {
		if isIndex(p) {
			return true
		}
	}
	return false
}

func isIndex(segment string) bool {
	return segment != "" && strings.Trim(segment, "0123456789") == ""
}
