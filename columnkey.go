package smoltable

import (
	"strings"

	"github.com/goccy/go-json"
)

// identifierCharset is exactly the set of bytes a table name or column
// family name may contain. Note ':' is deliberately absent: it is the
// delimiter the storage key format relies on.
const identifierCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_.#$"

// maxIdentifierLen is the maximum length of a table or column family name.
const maxIdentifierLen = 511

// IsValidIdentifier reports whether s is a legal table or column family
// name: 1 to 511 bytes, every byte drawn from identifierCharset.
func IsValidIdentifier(s string) bool {
	if len(s) == 0 || len(s) > maxIdentifierLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(identifierCharset, s[i]) < 0 {
			return false
		}
	}
	return true
}

// IsReservedTableName reports whether name is reserved for internal use
// (companion tables such as the manifest and per-table metrics tables).
// User-visible tables may never use a name for which this returns true.
func IsReservedTableName(name string) bool {
	return strings.HasPrefix(name, "_")
}

// ColumnKey addresses a column: a required family name plus an optional
// qualifier. A nil Qualifier matches "any qualifier in this family" when
// used in a filter, and is distinct at the byte level (but not the logical
// level) from an explicit empty-string qualifier.
type ColumnKey struct {
	Family    string
	Qualifier *string
}

// NewColumnKey builds a ColumnKey with an explicit qualifier (possibly
// empty, never nil).
func NewColumnKey(family, qualifier string) ColumnKey {
	return ColumnKey{Family: family, Qualifier: &qualifier}
}

// NewFamilyColumnKey builds a ColumnKey with no qualifier (matches any
// qualifier within the family).
func NewFamilyColumnKey(family string) ColumnKey {
	return ColumnKey{Family: family, Qualifier: nil}
}

// String renders the column key as "family:qualifier", with a trailing
// ':' and no qualifier text when Qualifier is nil.
func (k ColumnKey) String() string {
	if k.Qualifier == nil {
		return k.Family + ":"
	}
	return k.Family + ":" + *k.Qualifier
}

// QualifierOrEmpty returns the qualifier text, or "" if Qualifier is nil.
func (k ColumnKey) QualifierOrEmpty() string {
	if k.Qualifier == nil {
		return ""
	}
	return *k.Qualifier
}

// BuildKeyPrefix returns the storage-key prefix "row_key:family:qualifier:"
// identifying every version of this exact column within rowKey. It is
// only meaningful when Qualifier is non-nil; see rowreader.go.
func (k ColumnKey) BuildKeyPrefix(rowKey string) []byte {
	var b strings.Builder
	b.Grow(len(rowKey) + 2 + len(k.Family) + len(k.QualifierOrEmpty()))
	b.WriteString(rowKey)
	b.WriteByte(':')
	b.WriteString(k.Family)
	b.WriteByte(':')
	b.WriteString(k.QualifierOrEmpty())
	b.WriteByte(':')
	return []byte(b.String())
}

// ParseColumnKey parses "family" or "family:qualifier" into a ColumnKey.
// An empty or missing qualifier parses to a nil Qualifier. Family must be
// a valid identifier.
func ParseColumnKey(s string) (ColumnKey, error) {
	family, qualifier, hasColon := strings.Cut(s, ":")

	if !IsValidIdentifier(family) {
		return ColumnKey{}, invalidArgErrorf("invalid column family %q", family)
	}

	if !hasColon || qualifier == "" {
		return NewFamilyColumnKey(family), nil
	}
	return NewColumnKey(family, qualifier), nil
}

// MarshalJSON renders a ColumnKey the way the query API expects it: a
// plain "family:qualifier" string, not a struct.
func (k ColumnKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (k *ColumnKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseColumnKey(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
