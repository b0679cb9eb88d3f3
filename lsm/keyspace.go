// Package lsm defines the narrow keyspace contract smoltable needs from an
// underlying log-structured-merge key-value store: durable partitions that
// share a write buffer and write-ahead log, snapshot-isolated range and
// prefix iteration, and atomic write batches spanning partitions.
//
// smoltable treats the concrete engine as an external collaborator; see the
// pebblekeyspace subpackage for the implementation backing this interface
// with github.com/cockroachdb/pebble.
package lsm

import "errors"

// ErrPartitionNotFound reports a partition that does not exist.
// Keyspace.OpenPartition always creates a missing partition, so the
// pebblekeyspace implementation never returns it.
var ErrPartitionNotFound = errors.New("lsm: partition not found")

// PersistMode controls how aggressively Keyspace.Persist flushes to disk.
type PersistMode int

const (
	// PersistBuffer flushes the write buffer but does not fsync.
	PersistBuffer PersistMode = iota
	// PersistSyncAll fsyncs the write-ahead log and all affected partitions.
	PersistSyncAll
)

// Instant is an opaque read token returned by Keyspace.Instant. A Snapshot
// taken at the same Instant across multiple partitions observes a
// consistent point in time: no partial multi-partition batch is ever
// visible.
type Instant uint64

// PartitionOptions tunes a partition at open time.
type PartitionOptions struct {
	// BlockSize is the target size of a compressed data block.
	BlockSize int
	// LevelCount is the number of levels in the partition's leveled
	// compaction strategy.
	LevelCount int
	// LevelRatio is the size ratio between adjacent levels.
	LevelRatio int
	// MaxMemtableSize bounds the in-memory write buffer before it is
	// flushed to a new on-disk segment.
	MaxMemtableSize uint64
	// Strategy selects the partition's compaction strategy.
	Strategy CompactionStrategy
}

// Keyspace is a durable, transactional collection of partitions sharing one
// write buffer and write-ahead log.
type Keyspace interface {
	// OpenPartition opens the named partition, creating it with opts if it
	// does not already exist.
	OpenPartition(name string, opts PartitionOptions) (PartitionHandle, error)
	// DeletePartition permanently removes a partition and all its data.
	DeletePartition(handle PartitionHandle) error
	// Batch starts a new atomic write batch that may insert into any
	// partition opened from this keyspace.
	Batch() Batch
	// Persist flushes buffered writes according to mode.
	Persist(mode PersistMode) error
	// Instant returns a read token fixing "now" for the lifetime of one
	// reader or query.
	Instant() Instant
	// BlockCache returns the single block cache instance shared by every
	// partition in this keyspace.
	BlockCache() *BlockCache
	// Close releases all resources held by the keyspace.
	Close() error
}

// PartitionHandle is a single sorted key-value store inside a Keyspace.
type PartitionHandle interface {
	// Name returns the partition's name, as passed to OpenPartition.
	Name() string
	// Insert writes key/value directly (outside of a batch).
	Insert(key, value []byte) error
	// Get looks up a single key's most recently written value.
	Get(key []byte) ([]byte, bool, error)
	// Remove deletes a single key directly (outside of a batch).
	Remove(key []byte) error
	// SnapshotAt pins a read-stable view of the partition as of instant.
	SnapshotAt(instant Instant) Snapshot
	// SetMaxMemtableSize adjusts the write-buffer flush threshold.
	SetMaxMemtableSize(n uint64)
	// SetCompactionStrategy changes the strategy used for future compactions.
	SetCompactionStrategy(s CompactionStrategy)
	// SegmentCount reports the number of on-disk segments backing the
	// partition, for diagnostic use.
	SegmentCount() int
	// DiskSpaceUsage reports the approximate number of bytes the partition
	// occupies on disk, for diagnostic use.
	DiskSpaceUsage() uint64
}

// Snapshot is a read-stable view of a partition pinned at one Instant.
type Snapshot interface {
	// Range iterates keys >= lower in ascending order until Close or
	// exhaustion.
	Range(lower []byte) Iterator
	// Prefix iterates keys sharing prefix in ascending order.
	Prefix(prefix []byte) Iterator
	// Close releases the snapshot.
	Close() error
}

// Iterator yields key-value pairs in ascending key order.
type Iterator interface {
	// Next advances to and returns the next pair, or ok=false when
	// exhausted. err is non-nil only on a storage fault.
	Next() (key, value []byte, ok bool, err error)
	// Close releases resources held by the iterator.
	Close() error
}

// Batch accumulates writes across one or more partitions for atomic commit.
type Batch interface {
	// Insert stages a write of key/value into the named partition.
	Insert(partition PartitionHandle, key, value []byte)
	// Remove stages a deletion of key from the named partition.
	Remove(partition PartitionHandle, key []byte)
	// Commit atomically applies every staged write.
	Commit() error
}

// BlockCache is an opaque handle to a shared block cache instance.
type BlockCache struct {
	// SizeBytes is the cache's configured capacity.
	SizeBytes int64
}
