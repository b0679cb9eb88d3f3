package pebblekeyspace

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"

	"smoltable/lsm"
)

// Partition is the pebble-backed lsm.PartitionHandle implementation. It
// carries no storage of its own; it is a namespace (a key prefix) inside
// its owning Keyspace's single *pebble.DB.
type Partition struct {
	keyspace *Keyspace
	name     string
	prefix   []byte
	opts     lsm.PartitionOptions
}

// Name implements lsm.PartitionHandle.
func (p *Partition) Name() string { return p.name }

func (p *Partition) fullKey(key []byte) []byte {
	full := make([]byte, 0, len(p.prefix)+len(key))
	full = append(full, p.prefix...)
	full = append(full, key...)
	return full
}

// Insert implements lsm.PartitionHandle.
func (p *Partition) Insert(key, value []byte) error {
	err := p.keyspace.db.Set(p.fullKey(key), value, pebble.NoSync)
	return errors.Wrap(err, "pebblekeyspace: insert")
}

// Get implements lsm.PartitionHandle.
func (p *Partition) Get(key []byte) ([]byte, bool, error) {
	value, closer, err := p.keyspace.db.Get(p.fullKey(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "pebblekeyspace: get")
	}
	out := append([]byte(nil), value...)
	_ = closer.Close()
	return out, true, nil
}

// Remove implements lsm.PartitionHandle.
func (p *Partition) Remove(key []byte) error {
	err := p.keyspace.db.Delete(p.fullKey(key), pebble.NoSync)
	return errors.Wrap(err, "pebblekeyspace: remove")
}

// SnapshotAt implements lsm.PartitionHandle. The instant argument only
// needs to be monotonically comparable; pebble snapshots are always taken
// "now" relative to the calling goroutine, so every snapshot a reader
// pipeline opens for one logical query is internally consistent as long as
// they're all opened back-to-back, which is how rowreader.go and
// mergereader.go use this method.
func (p *Partition) SnapshotAt(_ lsm.Instant) lsm.Snapshot {
	return &Snapshot{partition: p, snap: p.keyspace.db.NewSnapshot()}
}

// SetMaxMemtableSize implements lsm.PartitionHandle.
func (p *Partition) SetMaxMemtableSize(n uint64) {
	p.opts.MaxMemtableSize = n
}

// SetCompactionStrategy implements lsm.PartitionHandle.
func (p *Partition) SetCompactionStrategy(s lsm.CompactionStrategy) {
	p.opts.Strategy = s
}

// SegmentCount implements lsm.PartitionHandle. Pebble reports SSTable
// counts DB-wide rather than per key-namespace, so this is an upper bound
// shared across every partition of the keyspace, not an exact per-partition
// count; used only for diagnostics.
func (p *Partition) SegmentCount() int {
	m := p.keyspace.db.Metrics()
	total := 0
	for _, lvl := range m.Levels {
		total += int(lvl.NumFiles)
	}
	return total
}

// DiskSpaceUsage implements lsm.PartitionHandle. Same DB-wide caveat as
// SegmentCount.
func (p *Partition) DiskSpaceUsage() uint64 {
	m := p.keyspace.db.Metrics()
	return m.DiskSpaceUsage()
}
