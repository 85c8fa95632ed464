// Package record turns flat rows with dotted keys into nested records for
// template engines.
//
// A key of the form <group>.<index>.<subfield> is nested as
// record[group][index][subfield]; any other key stays a top-level scalar:
//
//	{"id": "7", "item_lines.1.amount": "10", "item_lines.1.title": "X"}
//
// becomes
//
//	{"id": "7", "item_lines": {"1": {"amount": "10", "title": "X"}}}
//
// Keys keep the order in which they were first seen at every level, so a
// template can walk item_lines as a list.
package record

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/nao1215/invoiceprep"
	"gopkg.in/yaml.v3"
)

// ErrKeyConflict is returned when a key is used both as a scalar and as a group.
var ErrKeyConflict = errors.New("key used both as a scalar and as a group")

// Record is an ordered mapping from keys to either string values or nested
// records.
type Record struct {
	keys   []string
	values map[string]any
}

// New returns an empty record.
func New() *Record {
	return &Record{values: make(map[string]any)}
}

// Set stores value under key. A new key goes last; an existing key keeps its
// position.
func (r *Record) Set(key string, value any) {
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Keys returns the keys in insertion order.
func (r *Record) Keys() []string {
	return append([]string(nil), r.keys...)
}

// Len returns the number of keys.
func (r *Record) Len() int {
	return len(r.keys)
}

// Get returns the value under key: a string or a *Record.
func (r *Record) Get(key string) (any, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Scalar returns the string value under key.
func (r *Record) Scalar(key string) (string, bool) {
	v, ok := r.values[key].(string)
	return v, ok
}

// Group returns the nested record under key.
func (r *Record) Group(key string) (*Record, bool) {
	v, ok := r.values[key].(*Record)
	return v, ok
}

// Map converts the record into plain nested maps, as expected by
// text/template and html/template.
func (r *Record) Map() map[string]any {
	out := make(map[string]any, len(r.keys))
	for _, k := range r.keys {
		if child, ok := r.values[k].(*Record); ok {
			out[k] = child.Map()
			continue
		}
		out[k] = r.values[k]
	}
	return out
}

// group returns the nested record under key, creating it when missing.
func (r *Record) group(key string) (*Record, error) {
	v, ok := r.values[key]
	if !ok {
		child := New()
		r.Set(key, child)
		return child, nil
	}
	child, ok := v.(*Record)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyConflict, key)
	}
	return child, nil
}

// Structure nests the row's <group>.<index>.<subfield> keys. Values are kept
// as-is.
func Structure(row invoiceprep.Row) (*Record, error) {
	out := New()
	for _, field := range row {
		group, index, subfield, ok := invoiceprep.SplitIndexed(field.Name)
		if !ok {
			if _, isGroup := out.Group(field.Name); isGroup {
				return nil, fmt.Errorf("%w: %s", ErrKeyConflict, field.Name)
			}
			out.Set(field.Name, field.Value)
			continue
		}

		g, err := out.group(group)
		if err != nil {
			return nil, err
		}
		i, err := g.group(index)
		if err != nil {
			return nil, err
		}
		if _, isGroup := i.Group(subfield); isGroup {
			return nil, fmt.Errorf("%w: %s", ErrKeyConflict, field.Name)
		}
		i.Set(subfield, field.Value)
	}
	return out, nil
}

// FromTable structures every row of t.
func FromTable(t *invoiceprep.Table) ([]*Record, error) {
	if t == nil {
		return nil, errors.New("table cannot be nil")
	}
	records := make([]*Record, 0, t.Len())
	for i := range t.Records {
		rec, err := Structure(t.Row(i))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// MarshalJSON encodes the record as a JSON object with keys in order.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", k, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalYAML encodes the record as a YAML mapping with keys in order.
// Scalars are always strings.
func (r *Record) MarshalYAML() (any, error) {
	return r.yamlNode(), nil
}

func (r *Record) yamlNode() *yaml.Node {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range r.keys {
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}
		var valueNode *yaml.Node
		switch v := r.values[k].(type) {
		case *Record:
			valueNode = v.yamlNode()
		default:
			valueNode = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: fmt.Sprint(v)}
		}
		node.Content = append(node.Content, keyNode, valueNode)
	}
	return node
}
