package smoltable

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyFilterSatisfies(t *testing.T) {
	f := KeyFilter{Key: NewColumnKey("name", "first")}
	require.True(t, f.Satisfies(NewColumnKey("name", "first")))
	require.False(t, f.Satisfies(NewColumnKey("name", "last")))
	require.False(t, f.Satisfies(NewColumnKey("email", "first")))

	familyOnly := KeyFilter{Key: NewFamilyColumnKey("name")}
	require.True(t, familyOnly.Satisfies(NewColumnKey("name", "first")))
	require.True(t, familyOnly.Satisfies(NewColumnKey("name", "last")))
}

func TestPrefixFilterSatisfies(t *testing.T) {
	f := PrefixFilter{Key: NewColumnKey("name", "fi")}
	require.True(t, f.Satisfies(NewColumnKey("name", "first")))
	require.False(t, f.Satisfies(NewColumnKey("name", "last")))
	require.False(t, f.Satisfies(NewColumnKey("email", "fi")))
}

func TestMultiFilterSatisfies(t *testing.T) {
	f := MultiFilter{Keys: []ColumnKey{NewColumnKey("name", "first"), NewFamilyColumnKey("email")}}
	require.True(t, f.Satisfies(NewColumnKey("name", "first")))
	require.True(t, f.Satisfies(NewColumnKey("email", "home")))
	require.False(t, f.Satisfies(NewColumnKey("name", "last")))
}

func TestColumnFilterJSONRoundTrip(t *testing.T) {
	cases := []ColumnFilter{
		KeyFilter{Key: NewColumnKey("name", "first")},
		MultiFilter{Keys: []ColumnKey{NewFamilyColumnKey("name"), NewFamilyColumnKey("email")}},
		PrefixFilter{Key: NewColumnKey("name", "fi")},
	}
	for _, filter := range cases {
		data, err := MarshalColumnFilter(filter)
		require.NoError(t, err)

		decoded, err := UnmarshalColumnFilter(data)
		require.NoError(t, err)
		require.Equal(t, filter, decoded)
	}
}

func TestUnmarshalColumnFilterNull(t *testing.T) {
	decoded, err := UnmarshalColumnFilter([]byte("null"))
	require.NoError(t, err)
	require.Nil(t, decoded)
}
