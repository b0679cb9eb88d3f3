package smoltable

import (
	"encoding/binary"
	"math"
	"strings"

	"github.com/goccy/go-json"

	"smoltable/lsm"
)

// Value is a cell's tagged value variant. Bigtable itself stores an
// unstructured byte string per cell; smoltable supports a closed set of
// typed variants instead, for a better caller experience.
type Value interface {
	isValue()
}

// StringValue is a UTF-8 encoded string.
type StringValue string

func (StringValue) isValue() {}

// BoolValue is a boolean, stored like Byte but unmarshalled as a bool.
type BoolValue bool

func (BoolValue) isValue() {}

// ByteValue is a single unsigned byte.
type ByteValue uint8

func (ByteValue) isValue() {}

// I32Value is a signed 32-bit integer.
type I32Value int32

func (I32Value) isValue() {}

// I64Value is a signed 64-bit integer.
type I64Value int64

func (I64Value) isValue() {}

// F32Value is a 32-bit float.
type F32Value float32

func (F32Value) isValue() {}

// F64Value is a 64-bit float.
type F64Value float64

func (F64Value) isValue() {}

// value type tags for the on-disk encoding. The tag byte is the first byte
// of an encoded value; see EncodeValue/DecodeValue.
const (
	tagString byte = iota
	tagBool
	tagByte
	tagI32
	tagI64
	tagF32
	tagF64
)

// EncodeValue serializes v to its deterministic on-disk form: a one-byte
// type tag followed by a fixed-width or length-prefixed payload. This is
// a hand-rolled codec rather than a generic serializer (gob, json) so the
// wire format never shifts out from under existing on-disk data when the
// Go toolchain or a transitive dependency changes; see DESIGN.md.
func EncodeValue(v Value) []byte {
	switch val := v.(type) {
	case StringValue:
		s := string(val)
		buf := make([]byte, 1+4+len(s))
		buf[0] = tagString
		binary.BigEndian.PutUint32(buf[1:5], uint32(len(s)))
		copy(buf[5:], s)
		return buf
	case BoolValue:
		b := byte(0)
		if val {
			b = 1
		}
		return []byte{tagBool, b}
	case ByteValue:
		return []byte{tagByte, byte(val)}
	case I32Value:
		buf := make([]byte, 1+4)
		buf[0] = tagI32
		binary.BigEndian.PutUint32(buf[1:], uint32(val))
		return buf
	case I64Value:
		buf := make([]byte, 1+8)
		buf[0] = tagI64
		binary.BigEndian.PutUint64(buf[1:], uint64(val))
		return buf
	case F32Value:
		buf := make([]byte, 1+4)
		buf[0] = tagF32
		binary.BigEndian.PutUint32(buf[1:], math.Float32bits(float32(val)))
		return buf
	case F64Value:
		buf := make([]byte, 1+8)
		buf[0] = tagF64
		binary.BigEndian.PutUint64(buf[1:], math.Float64bits(float64(val)))
		return buf
	default:
		panic("smoltable: unknown Value variant")
	}
}

// DecodeValue is the inverse of EncodeValue. decode(encode(v)) == v for
// every variant (see cell_test.go).
func DecodeValue(raw []byte) (Value, error) {
	if len(raw) == 0 {
		return nil, codecErrorf("empty value bytes")
	}

	tag, payload := raw[0], raw[1:]

	switch tag {
	case tagString:
		if len(payload) < 4 {
			return nil, codecErrorf("truncated string value")
		}
		n := binary.BigEndian.Uint32(payload[:4])
		if uint32(len(payload)-4) < n {
			return nil, codecErrorf("truncated string value")
		}
		return StringValue(payload[4 : 4+n]), nil
	case tagBool:
		if len(payload) < 1 {
			return nil, codecErrorf("truncated bool value")
		}
		return BoolValue(payload[0] != 0), nil
	case tagByte:
		if len(payload) < 1 {
			return nil, codecErrorf("truncated byte value")
		}
		return ByteValue(payload[0]), nil
	case tagI32:
		if len(payload) < 4 {
			return nil, codecErrorf("truncated i32 value")
		}
		return I32Value(int32(binary.BigEndian.Uint32(payload))), nil
	case tagI64:
		if len(payload) < 8 {
			return nil, codecErrorf("truncated i64 value")
		}
		return I64Value(int64(binary.BigEndian.Uint64(payload))), nil
	case tagF32:
		if len(payload) < 4 {
			return nil, codecErrorf("truncated f32 value")
		}
		return F32Value(math.Float32frombits(binary.BigEndian.Uint32(payload))), nil
	case tagF64:
		if len(payload) < 8 {
			return nil, codecErrorf("truncated f64 value")
		}
		return F64Value(math.Float64frombits(binary.BigEndian.Uint64(payload))), nil
	default:
		return nil, codecErrorf("unknown value tag %d", tag)
	}
}

// timestampKeySize is the width, in bytes, of the complemented timestamp
// suffix in a storage key. The field is a full 128 bits as the storage
// format requires; only its low 64 bits are ever non-zero (see
// appendComplementedTimestamp), since every real wall-clock nanosecond
// timestamp fits comfortably inside 64 bits until the year 2554 and Go
// has no native 128-bit integer type worth introducing just for this.
const timestampKeySize = 16

// appendComplementedTimestamp appends NOT(uint128(ts)) in big-endian form
// to buf, so that ascending byte order over the suffix equals descending
// timestamp order (invariant I1c).
func appendComplementedTimestamp(buf []byte, ts uint64) []byte {
	var full [timestampKeySize]byte
	binary.BigEndian.PutUint64(full[8:16], ts)
	for i := range full {
		full[i] = ^full[i]
	}
	return append(buf, full[:]...)
}

// parseComplementedTimestamp inverts appendComplementedTimestamp.
func parseComplementedTimestamp(suffix []byte) (uint64, error) {
	if len(suffix) != timestampKeySize {
		return 0, codecErrorf("bad timestamp suffix length %d", len(suffix))
	}
	var full [timestampKeySize]byte
	copy(full[:], suffix)
	for i := range full {
		full[i] = ^full[i]
	}
	if hi := binary.BigEndian.Uint64(full[0:8]); hi != 0 {
		return 0, codecErrorf("timestamp exceeds supported 64-bit range")
	}
	return binary.BigEndian.Uint64(full[8:16]), nil
}

// BuildCellKey renders the storage key for one cell:
// "row_key:family:qualifier:" followed by the complemented timestamp.
func BuildCellKey(rowKey string, column ColumnKey, timestamp uint64) []byte {
	key := column.BuildKeyPrefix(rowKey)
	return appendComplementedTimestamp(key, timestamp)
}

// VisitedCell is a cell along with the bookkeeping a reader needs: its raw
// storage key (so deletes can target the exact key a scan produced it
// from) and the partition it was read from.
type VisitedCell struct {
	// RawKey is the exact storage key this cell was parsed from.
	RawKey []byte
	// Partition is the partition RawKey lives in — the cell's owning
	// partition, used by DeleteRow and RunVersionGC to issue point
	// deletes against the right partition rather than always the
	// default one.
	Partition lsm.PartitionHandle
	RowKey    string
	Column    ColumnKey
	Timestamp uint64
	Value     Value
}

// SatisfiesColumnFilter reports whether this cell matches filter.
func (c *VisitedCell) SatisfiesColumnFilter(filter ColumnFilter) bool {
	if filter == nil {
		return true
	}
	return filter.Satisfies(c.Column)
}

// ParseCell decodes a raw (key, value) pair read from a partition into a
// VisitedCell.
//
// Parse algorithm (see SPEC §4.1):
//  1. the last 16 bytes of key are NOT(timestamp_be_u128);
//  2. drop those bytes and the preceding ':' delimiter;
//  3. right-split the remainder on ':' into (row key, family, qualifier);
//  4. decode the value bytes through DecodeValue.
func ParseCell(key, value []byte) (VisitedCell, error) {
	if len(key) < timestampKeySize+1 {
		return VisitedCell{}, codecErrorf("storage key too short: %d bytes", len(key))
	}

	tsSuffix := key[len(key)-timestampKeySize:]
	ts, err := parseComplementedTimestamp(tsSuffix)
	if err != nil {
		return VisitedCell{}, err
	}

	withoutTS := key[:len(key)-timestampKeySize-1] // also drop the ':' delimiter

	rowKey, family, qualifier, err := splitCellKey(withoutTS)
	if err != nil {
		return VisitedCell{}, err
	}

	val, err := DecodeValue(value)
	if err != nil {
		return VisitedCell{}, err
	}

	var column ColumnKey
	if qualifier == "" {
		column = NewFamilyColumnKey(family)
	} else {
		column = NewColumnKey(family, qualifier)
	}

	return VisitedCell{
		RawKey:    append([]byte(nil), key...),
		RowKey:    rowKey,
		Column:    column,
		Timestamp: ts,
		Value:     val,
	}, nil
}

// splitCellKey splits "row_key:family:qualifier" (with qualifier possibly
// empty) from the right, so that row keys are free to contain ':' bytes.
func splitCellKey(b []byte) (rowKey, family, qualifier string, err error) {
	s := string(b)

	lastColon := strings.LastIndexByte(s, ':')
	if lastColon < 0 {
		return "", "", "", codecErrorf("storage key missing qualifier delimiter")
	}
	qualifier = s[lastColon+1:]
	rest := s[:lastColon]

	secondColon := strings.LastIndexByte(rest, ':')
	if secondColon < 0 {
		return "", "", "", codecErrorf("storage key missing family delimiter")
	}
	family = rest[secondColon+1:]
	rowKey = rest[:secondColon]

	return rowKey, family, qualifier, nil
}

// Cell is the user-facing cell content returned by queries: a version's
// timestamp and value, without the row/column context (which is carried
// by the enclosing Row's map structure).
type Cell struct {
	Timestamp uint64 `json:"timestamp"`
	Value     Value  `json:"value"`
}

// valueWire is the externally tagged JSON shape of Value — e.g.
// {"String": "hello"}, {"I64": 5} — matching the original's default serde
// representation for its Value enum (cell.rs), which the gc and scan
// scenario tests under original_source/smoltable/tests assert against
// directly.
type valueWire struct {
	String *string  `json:"String,omitempty"`
	Boolean *bool    `json:"Boolean,omitempty"`
	Byte    *uint8   `json:"Byte,omitempty"`
	I32     *int32   `json:"I32,omitempty"`
	I64     *int64   `json:"I64,omitempty"`
	F32     *float32 `json:"F32,omitempty"`
	F64     *float64 `json:"F64,omitempty"`
}

// marshalValueJSON encodes v in its externally tagged JSON form, for
// Cell.MarshalJSON; unmarshalValueJSON is its inverse.
func marshalValueJSON(v Value) ([]byte, error) {
	var wire valueWire
	switch val := v.(type) {
	case StringValue:
		s := string(val)
		wire.String = &s
	case BoolValue:
		b := bool(val)
		wire.Boolean = &b
	case ByteValue:
		b := uint8(val)
		wire.Byte = &b
	case I32Value:
		n := int32(val)
		wire.I32 = &n
	case I64Value:
		n := int64(val)
		wire.I64 = &n
	case F32Value:
		f := float32(val)
		wire.F32 = &f
	case F64Value:
		f := float64(val)
		wire.F64 = &f
	default:
		return nil, codecErrorf("unknown value variant %T", v)
	}
	return json.Marshal(wire)
}

func unmarshalValueJSON(data []byte) (Value, error) {
	var wire valueWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, codecErrorf("decode value: %v", err)
	}
	switch {
	case wire.String != nil:
		return StringValue(*wire.String), nil
	case wire.Boolean != nil:
		return BoolValue(*wire.Boolean), nil
	case wire.Byte != nil:
		return ByteValue(*wire.Byte), nil
	case wire.I32 != nil:
		return I32Value(*wire.I32), nil
	case wire.I64 != nil:
		return I64Value(*wire.I64), nil
	case wire.F32 != nil:
		return F32Value(*wire.F32), nil
	case wire.F64 != nil:
		return F64Value(*wire.F64), nil
	default:
		return nil, codecErrorf("value object matched no known variant")
	}
}

// MarshalJSON implements json.Marshaler.
func (c Cell) MarshalJSON() ([]byte, error) {
	valueBytes, err := marshalValueJSON(c.Value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Timestamp uint64          `json:"timestamp"`
		Value     json.RawMessage `json:"value"`
	}{Timestamp: c.Timestamp, Value: valueBytes})
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Cell) UnmarshalJSON(data []byte) error {
	var wire struct {
		Timestamp uint64          `json:"timestamp"`
		Value     json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	v, err := unmarshalValueJSON(wire.Value)
	if err != nil {
		return err
	}
	c.Timestamp = wire.Timestamp
	c.Value = v
	return nil
}
