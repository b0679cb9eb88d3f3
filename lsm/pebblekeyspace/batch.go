package pebblekeyspace

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"

	"smoltable/lsm"
)

// Batch is the pebble-backed lsm.Batch implementation. Because every
// Partition in a Keyspace is a namespace inside the same *pebble.DB, a
// single pebble.Batch can stage writes against any number of partitions
// and commit them atomically.
type Batch struct {
	batch *pebble.Batch
}

// Insert implements lsm.Batch.
func (b *Batch) Insert(partition lsm.PartitionHandle, key, value []byte) {
	p := partition.(*Partition)
	_ = b.batch.Set(p.fullKey(key), value, nil)
}

// Remove implements lsm.Batch.
func (b *Batch) Remove(partition lsm.PartitionHandle, key []byte) {
	p := partition.(*Partition)
	_ = b.batch.Delete(p.fullKey(key), nil)
}

// Commit implements lsm.Batch.
func (b *Batch) Commit() error {
	defer b.batch.Close()
	return errors.Wrap(b.batch.Commit(pebble.Sync), "pebblekeyspace: commit batch")
}
