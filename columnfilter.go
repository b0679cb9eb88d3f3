package smoltable

import (
	"strings"

	"github.com/goccy/go-json"
)

// ColumnFilter narrows a scan or get to a subset of columns, and — when
// possible — to a subset of locality groups (see locality.go). It is a
// closed set of three shapes rather than an open interface: exactly the
// shapes a query's "column" options can describe.
type ColumnFilter interface {
	// Satisfies reports whether column matches this filter.
	Satisfies(column ColumnKey) bool
	isColumnFilter()
}

// KeyFilter matches a single column key: a family (and, if Qualifier is
// non-nil, an exact qualifier).
type KeyFilter struct {
	Key ColumnKey
}

func (f KeyFilter) isColumnFilter() {}

// Satisfies implements ColumnFilter.
func (f KeyFilter) Satisfies(column ColumnKey) bool {
	if column.Family != f.Key.Family {
		return false
	}
	if f.Key.Qualifier != nil && column.QualifierOrEmpty() != *f.Key.Qualifier {
		return false
	}
	return true
}

// MultiFilter matches if any of its keys is satisfied by KeyFilter rules.
type MultiFilter struct {
	Keys []ColumnKey
}

func (f MultiFilter) isColumnFilter() {}

// Satisfies implements ColumnFilter.
func (f MultiFilter) Satisfies(column ColumnKey) bool {
	for _, k := range f.Keys {
		if (KeyFilter{Key: k}).Satisfies(column) {
			return true
		}
	}
	return false
}

// PrefixFilter matches a family and a qualifier prefix (when Key.Qualifier
// is non-nil) or any qualifier in the family (when it is nil).
type PrefixFilter struct {
	Key ColumnKey
}

func (f PrefixFilter) isColumnFilter() {}

// Satisfies implements ColumnFilter.
func (f PrefixFilter) Satisfies(column ColumnKey) bool {
	if column.Family != f.Key.Family {
		return false
	}
	if f.Key.Qualifier != nil && !strings.HasPrefix(column.QualifierOrEmpty(), *f.Key.Qualifier) {
		return false
	}
	return true
}

// filterFamilies returns the distinct column family names a filter
// references, used by locality-group routing.
func filterFamilies(filter ColumnFilter) []string {
	switch f := filter.(type) {
	case KeyFilter:
		return []string{f.Key.Family}
	case PrefixFilter:
		return []string{f.Key.Family}
	case MultiFilter:
		seen := make(map[string]struct{}, len(f.Keys))
		var out []string
		for _, k := range f.Keys {
			if _, ok := seen[k.Family]; ok {
				continue
			}
			seen[k.Family] = struct{}{}
			out = append(out, k.Family)
		}
		return out
	default:
		return nil
	}
}

// ColumnFilter is serialized as an externally tagged JSON object —
// {"key": "family:qualifier"}, {"multi_key": [...]}, or
// {"prefix": "family:qualifier"} — matching the original's serde enum
// representation for ColumnFilter (column_filter.rs).
type columnFilterWire struct {
	Key      *ColumnKey  `json:"key,omitempty"`
	MultiKey []ColumnKey `json:"multi_key,omitempty"`
	Prefix   *ColumnKey  `json:"prefix,omitempty"`
}

// MarshalColumnFilter encodes filter for the query API.
func MarshalColumnFilter(filter ColumnFilter) ([]byte, error) {
	if filter == nil {
		return []byte("null"), nil
	}
	var wire columnFilterWire
	switch f := filter.(type) {
	case KeyFilter:
		k := f.Key
		wire.Key = &k
	case MultiFilter:
		wire.MultiKey = f.Keys
	case PrefixFilter:
		k := f.Key
		wire.Prefix = &k
	default:
		return nil, invalidArgErrorf("unknown column filter variant %T", filter)
	}
	b, err := json.Marshal(wire)
	if err != nil {
		return nil, codecErrorf("encode column filter: %v", err)
	}
	return b, nil
}

// UnmarshalColumnFilter decodes a column filter from the query API.
func UnmarshalColumnFilter(data []byte) (ColumnFilter, error) {
	var wire columnFilterWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, codecErrorf("decode column filter: %v", err)
	}
	switch {
	case wire.Key != nil:
		return KeyFilter{Key: *wire.Key}, nil
	case wire.MultiKey != nil:
		return MultiFilter{Keys: wire.MultiKey}, nil
	case wire.Prefix != nil:
		return PrefixFilter{Key: *wire.Prefix}, nil
	default:
		return nil, nil
	}
}
