package smoltable

import (
	"testing"

	"github.com/stretchr/testify/require"

	"smoltable/lsm"
	"smoltable/lsm/pebblekeyspace"
)

func openTestPartition(t *testing.T, ks lsm.Keyspace, name string) lsm.PartitionHandle {
	t.Helper()
	p, err := ks.OpenPartition(name, lsm.PartitionOptions{})
	require.NoError(t, err)
	return p
}

func TestReaderNextYieldsAscendingKeyOrder(t *testing.T) {
	ks, err := pebblekeyspace.Open(pebblekeyspace.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, ks.Close()) })

	p := openTestPartition(t, ks, "data")
	for _, rowKey := range []string{"b", "a", "c"} {
		key := BuildCellKey(rowKey, NewFamilyColumnKey("f"), 1)
		require.NoError(t, p.Insert(key, EncodeValue(StringValue(rowKey))))
	}

	r := newReader(ks.Instant(), p, nil)
	defer r.close()

	var seen []string
	for {
		cell, ok, err := r.next()
		require.NoError(t, err)
		if !ok {
			break
		}
		seen = append(seen, cell.RowKey)
	}
	require.Equal(t, []string{"a", "b", "c"}, seen)
	require.EqualValues(t, 3, r.cellsScannedCount)
}

func TestNewPrefixReaderMissingPrefixReturnsNotOK(t *testing.T) {
	ks, err := pebblekeyspace.Open(pebblekeyspace.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, ks.Close()) })

	p := openTestPartition(t, ks, "data")

	r, ok, err := newPrefixReader(ks.Instant(), p, []byte("nope:"))
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, r)
}

func TestMergeReaderMergesAcrossPartitionsInKeyOrder(t *testing.T) {
	ks, err := pebblekeyspace.Open(pebblekeyspace.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, ks.Close()) })

	p1 := openTestPartition(t, ks, "p1")
	p2 := openTestPartition(t, ks, "p2")

	require.NoError(t, p1.Insert(BuildCellKey("a", NewFamilyColumnKey("f"), 1), EncodeValue(StringValue("a"))))
	require.NoError(t, p1.Insert(BuildCellKey("c", NewFamilyColumnKey("f"), 1), EncodeValue(StringValue("c"))))
	require.NoError(t, p2.Insert(BuildCellKey("b", NewFamilyColumnKey("f"), 1), EncodeValue(StringValue("b"))))

	instant := ks.Instant()
	merged := newMergeReader([]*reader{newReader(instant, p1, nil), newReader(instant, p2, nil)})
	defer merged.close()

	var seen []string
	for {
		cell, ok, err := merged.next()
		require.NoError(t, err)
		if !ok {
			break
		}
		seen = append(seen, cell.RowKey)
	}
	require.Equal(t, []string{"a", "b", "c"}, seen)
	require.EqualValues(t, 3, merged.cellsScannedCount())
}
