package smoltable

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGarbageCollectionOptionsHasLimit(t *testing.T) {
	require.False(t, GarbageCollectionOptions{}.hasLimit())

	limit := uint64(5)
	require.True(t, GarbageCollectionOptions{VersionLimit: &limit}.hasLimit())
	require.True(t, GarbageCollectionOptions{TTLSeconds: &limit}.hasLimit())
}

func TestColumnFamilyDefinitionEncodeDecodeRoundTrip(t *testing.T) {
	limit := uint64(3)
	def := ColumnFamilyDefinition{Name: "name", GC: GarbageCollectionOptions{VersionLimit: &limit}}

	encoded, err := encodeColumnFamilyDefinition(def)
	require.NoError(t, err)

	decoded, err := decodeColumnFamilyDefinition(encoded)
	require.NoError(t, err)
	require.Equal(t, def, decoded)
}

func TestLocalityGroupManifestKeyRoundTrip(t *testing.T) {
	id := newLocalityGroupID()
	require.NotEmpty(t, id)

	key := localityGroupManifestKey(id)
	require.Equal(t, "lg#"+id, string(key))

	parsed, ok := localityGroupIDFromManifestKey(string(key))
	require.True(t, ok)
	require.Equal(t, id, parsed)
}

func TestLocalityGroupContainsColumnFamily(t *testing.T) {
	lg := &LocalityGroup{ID: "g1", ColumnFamilies: []string{"a", "b"}}
	require.True(t, lg.ContainsColumnFamily("a"))
	require.False(t, lg.ContainsColumnFamily("c"))
	require.True(t, lg.ContainsAnyColumnFamily([]string{"x", "b"}))
	require.False(t, lg.ContainsAnyColumnFamily([]string{"x", "y"}))
}
