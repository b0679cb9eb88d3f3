// Package pebblekeyspace backs the lsm.Keyspace contract with
// github.com/cockroachdb/pebble, a real embedded log-structured-merge
// engine.
//
// Pebble itself has no notion of column families or sub-keyspaces: one
// *pebble.DB is one LSM. We get smoltable's "partitions sharing a write
// buffer and write-ahead log" requirement for free by mapping every
// partition onto a disjoint, length-prefixed key namespace inside a single
// *pebble.DB rather than opening one DB per partition. That also makes
// cross-partition batches trivially atomic: they are just an ordinary
// pebble.Batch against the one DB.
package pebblekeyspace

import (
	"encoding/binary"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"smoltable/lsm"
)

// Keyspace is the pebble-backed lsm.Keyspace implementation.
type Keyspace struct {
	db    *pebble.DB
	cache *pebble.Cache

	mu         sync.RWMutex
	partitions map[string]*Partition
}

// Options configures Open.
type Options struct {
	// Dir is the on-disk directory for the keyspace. Leave empty together
	// with InMemory to get an ephemeral in-memory keyspace, which is how
	// this package's own tests and smoltable's scenario tests run.
	Dir string
	// InMemory opens the keyspace against an in-memory filesystem
	// (pebble's vfs.NewMem()) instead of Dir. This is the idiomatic way
	// pebble-based Go code is tested; no temp directories required.
	InMemory bool
	// BlockCacheBytes sizes the single block cache shared by every
	// partition. Defaults to 16 MiB, matching the default shared block
	// cache size in the concurrency & resource model.
	BlockCacheBytes int64
}

// Open opens or creates a keyspace.
func Open(opts Options) (*Keyspace, error) {
	cacheBytes := opts.BlockCacheBytes
	if cacheBytes <= 0 {
		cacheBytes = 16 * 1024 * 1024
	}
	cache := pebble.NewCache(cacheBytes)

	pebbleOpts := &pebble.Options{
		Cache: cache,
	}
	if opts.InMemory {
		pebbleOpts.FS = vfs.NewMem()
	}

	dir := opts.Dir
	if opts.InMemory && dir == "" {
		dir = ""
	}

	db, err := pebble.Open(dir, pebbleOpts)
	if err != nil {
		cache.Unref()
		return nil, errors.Wrap(err, "pebblekeyspace: open")
	}

	return &Keyspace{
		db:         db,
		cache:      cache,
		partitions: make(map[string]*Partition),
	}, nil
}

// OpenPartition implements lsm.Keyspace.
func (k *Keyspace) OpenPartition(name string, opts lsm.PartitionOptions) (lsm.PartitionHandle, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if p, ok := k.partitions[name]; ok {
		return p, nil
	}

	if len(name) > 0xFFFF {
		return nil, errors.Newf("pebblekeyspace: partition name %q too long", name)
	}

	p := &Partition{
		keyspace: k,
		name:     name,
		prefix:   partitionPrefix(name),
		opts:     opts,
	}
	k.partitions[name] = p
	return p, nil
}

// DeletePartition implements lsm.Keyspace.
func (k *Keyspace) DeletePartition(handle lsm.PartitionHandle) error {
	p, ok := handle.(*Partition)
	if !ok {
		return errors.New("pebblekeyspace: handle not owned by this keyspace")
	}

	lower, upper := prefixBounds(p.prefix)
	if err := k.db.DeleteRange(lower, upper, pebble.Sync); err != nil {
		return errors.Wrap(err, "pebblekeyspace: delete partition")
	}

	k.mu.Lock()
	delete(k.partitions, p.name)
	k.mu.Unlock()

	return nil
}

// Batch implements lsm.Keyspace.
func (k *Keyspace) Batch() lsm.Batch {
	return &Batch{batch: k.db.NewBatch()}
}

// Persist implements lsm.Keyspace.
func (k *Keyspace) Persist(mode lsm.PersistMode) error {
	opts := pebble.NoSync
	if mode == lsm.PersistSyncAll {
		opts = pebble.Sync
	}
	// Committing an empty batch with the requested durability forces a
	// WAL sync, matching fjall's keyspace.persist(sync_mode).
	b := k.db.NewBatch()
	defer b.Close()
	return errors.Wrap(b.Commit(opts), "pebblekeyspace: persist")
}

// Instant implements lsm.Keyspace. Pebble snapshots are already relative to
// the moment NewSnapshot is called, so the "instant" is just a sequence
// counter smoltable uses to keep a reader's view stable across several
// partitions opened one after another.
func (k *Keyspace) Instant() lsm.Instant {
	return lsm.Instant(k.db.SeqNum())
}

// BlockCache implements lsm.Keyspace.
func (k *Keyspace) BlockCache() *lsm.BlockCache {
	return &lsm.BlockCache{SizeBytes: int64(k.cache.Size())}
}

// Close implements lsm.Keyspace.
func (k *Keyspace) Close() error {
	err := k.db.Close()
	k.cache.Unref()
	return errors.Wrap(err, "pebblekeyspace: close")
}

func partitionPrefix(name string) []byte {
	b := make([]byte, 0, 2+len(name)+1)
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(name)))
	b = append(b, lenBuf[:]...)
	b = append(b, name...)
	b = append(b, 0x00)
	return b
}

// prefixBounds returns [lower, upper) spanning every key sharing prefix.
func prefixBounds(prefix []byte) (lower, upper []byte) {
	lower = append([]byte(nil), prefix...)
	upper = append([]byte(nil), prefix...)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] != 0xFF {
			upper[i]++
			return lower, upper[:i+1]
		}
	}
	// prefix was all 0xFF bytes: there is no finite successor, so the
	// range is unbounded above.
	return lower, nil
}
