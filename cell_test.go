package smoltable

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValueEncodeDecodeRoundTrip(t *testing.T) {
	values := []Value{
		StringValue("hello"),
		StringValue(""),
		BoolValue(true),
		BoolValue(false),
		ByteValue(42),
		I32Value(-7),
		I64Value(1 << 40),
		F32Value(3.5),
		F64Value(-2.25),
	}

	for _, v := range values {
		encoded := EncodeValue(v)
		decoded, err := DecodeValue(encoded)
		require.NoError(t, err)
		require.Equal(t, v, decoded)
	}
}

func TestDecodeValueRejectsEmptyAndTruncatedInput(t *testing.T) {
	_, err := DecodeValue(nil)
	require.Error(t, err)

	_, err = DecodeValue([]byte{tagI64, 1, 2})
	require.Error(t, err)

	_, err = DecodeValue([]byte{0xFF})
	require.Error(t, err)
}

func TestBuildAndParseCellKeyRoundTrip(t *testing.T) {
	column := NewColumnKey("name", "first")
	key := BuildCellKey("row1", column, 123456789)

	cell, err := ParseCell(key, EncodeValue(StringValue("Ada")))
	require.NoError(t, err)
	require.Equal(t, "row1", cell.RowKey)
	require.Equal(t, "name", cell.Column.Family)
	require.Equal(t, "first", cell.Column.QualifierOrEmpty())
	require.EqualValues(t, 123456789, cell.Timestamp)
	require.Equal(t, StringValue("Ada"), cell.Value)
}

func TestTimestampComplementOrdersNewestFirst(t *testing.T) {
	older := BuildCellKey("row1", NewColumnKey("name", "first"), 100)
	newer := BuildCellKey("row1", NewColumnKey("name", "first"), 200)

	// Ascending byte order over the storage key must yield the newer
	// timestamp first, since a Reader always walks keys ascending.
	require.True(t, string(newer) < string(older))
}

func TestCellJSONRoundTrip(t *testing.T) {
	c := Cell{Timestamp: 42, Value: I64Value(7)}
	data, err := c.MarshalJSON()
	require.NoError(t, err)

	var decoded Cell
	require.NoError(t, decoded.UnmarshalJSON(data))
	require.Equal(t, c, decoded)
}

func TestRowKeyWithColonsSurvivesRoundTrip(t *testing.T) {
	column := NewColumnKey("family", "qualifier")
	key := BuildCellKey("a:b:c", column, 1)

	cell, err := ParseCell(key, EncodeValue(StringValue("v")))
	require.NoError(t, err)
	require.Equal(t, "a:b:c", cell.RowKey)
}
