package smoltable

import (
	"bytes"

	"smoltable/lsm"
)

// minChunkCells and defaultMaxChunkCells bound the adaptive chunk doubling:
// a reader's first fetch pulls minChunkCells cells, then each subsequent
// fetch doubles the target size up to maxChunkCells, so a short scan pays
// for a small read-ahead while a long one amortizes into large batches.
const (
	minChunkCells        = 1
	defaultMaxChunkCells = 128000
	maxChunkBytes        = 10 * 1024 * 1024
)

// reader streams VisitedCells out of a single partition in ascending
// storage-key order, starting from a lower bound. It is grounded directly
// on original_source/smoltable/src/table/reader.rs's Reader: a thin,
// chunked wrapper around the engine's snapshot iterator. Cells are pulled
// from the underlying iterator a whole chunk at a time and counted toward
// cellsScannedCount/bytesScannedCount as soon as they are read, the same
// way reader.rs's peek() counts a chunk's full length even when a caller
// stops consuming partway through it — a scan that satisfies its row limit
// mid-chunk still reports having scanned every cell the chunk read ahead.
type reader struct {
	partition lsm.PartitionHandle
	snapshot  lsm.Snapshot
	iter      lsm.Iterator

	// prefix, when non-nil, bounds iteration to keys sharing it. Only
	// newPrefixReader sets it; readers from newReader (used by Table.Scan,
	// Table.Count and Table.RunVersionGC) leave it nil.
	prefix []byte

	maxChunkCells int
	nextChunkGoal int
	buffer        []VisitedCell
	bufPos        int

	cellsScannedCount uint64
	bytesScannedCount uint64

	done bool
	err  error
}

// newReader opens a reader over partition, starting at the first key
// greater than or equal to lower, as of instant.
func newReader(instant lsm.Instant, partition lsm.PartitionHandle, lower []byte) *reader {
	snap := partition.SnapshotAt(instant)
	return &reader{
		partition:     partition,
		snapshot:      snap,
		iter:          snap.Range(lower),
		maxChunkCells: defaultMaxChunkCells,
		nextChunkGoal: minChunkCells,
	}
}

// newPrefixReader opens a reader bounded to keys sharing prefix, as of
// instant. It mirrors Reader::from_prefix: if the partition has no key
// with this prefix, it returns (nil, false) rather than an empty reader,
// so callers (rowReader, in particular) can skip straight to the next
// locality group instead of polling an iterator that will never yield.
func newPrefixReader(instant lsm.Instant, partition lsm.PartitionHandle, prefix []byte) (*reader, bool, error) {
	probe := partition.SnapshotAt(instant)
	probeIter := probe.Prefix(prefix)
	key, _, ok, err := probeIter.Next()
	_ = probeIter.Close()
	if err != nil {
		_ = probe.Close()
		return nil, false, wrapStorage(err)
	}
	_ = probe.Close()
	if !ok {
		return nil, false, nil
	}

	snap := partition.SnapshotAt(instant)
	r := &reader{
		partition:     partition,
		snapshot:      snap,
		iter:          snap.Prefix(prefix),
		prefix:        prefix,
		maxChunkCells: defaultMaxChunkCells,
		nextChunkGoal: minChunkCells,
	}
	_ = key
	return r, true, nil
}

// withChunkSize caps the adaptive chunk doubling at n cells instead of
// defaultMaxChunkCells, letting call sites that know their access pattern
// (a bounded Count pass, a Scan with a small row limit) tune how far the
// reader is allowed to read ahead.
func (r *reader) withChunkSize(n int) *reader {
	r.maxChunkCells = n
	if r.nextChunkGoal > n {
		r.nextChunkGoal = n
	}
	return r
}

// fillChunk pulls the next chunk of cells from the underlying iterator into
// r.buffer, growing the chunk target geometrically (doubling, capped at
// r.maxChunkCells) and stopping early once the chunk's cumulative byte size
// passes maxChunkBytes. Every cell pulled counts toward the scan's
// accounting immediately, whether or not a caller later consumes it.
func (r *reader) fillChunk() {
	r.buffer = r.buffer[:0]
	r.bufPos = 0

	var chunkBytes int
	for len(r.buffer) < r.nextChunkGoal && chunkBytes < maxChunkBytes {
		key, value, ok, err := r.iter.Next()
		if err != nil {
			r.err = wrapStorage(err)
			r.done = true
			return
		}
		if !ok {
			r.done = true
			break
		}

		cell, err := ParseCell(key, value)
		if err != nil {
			r.err = err
			r.done = true
			return
		}
		cell.Partition = r.partition

		r.cellsScannedCount++
		r.bytesScannedCount += uint64(len(key) + len(value))
		chunkBytes += len(key) + len(value)

		r.buffer = append(r.buffer, cell)
	}

	r.nextChunkGoal *= 2
	if r.nextChunkGoal > r.maxChunkCells {
		r.nextChunkGoal = r.maxChunkCells
	}
}

// next returns the next cell, or (VisitedCell{}, false, nil) once exhausted.
func (r *reader) next() (VisitedCell, bool, error) {
	if r.bufPos < len(r.buffer) {
		cell := r.buffer[r.bufPos]
		r.bufPos++
		return cell, true, nil
	}
	if r.done {
		return VisitedCell{}, false, r.err
	}

	r.fillChunk()
	if r.err != nil {
		return VisitedCell{}, false, r.err
	}
	if len(r.buffer) == 0 {
		return VisitedCell{}, false, nil
	}

	cell := r.buffer[0]
	r.bufPos = 1
	return cell, true, nil
}

// close releases the reader's snapshot and iterator.
func (r *reader) close() {
	if r.iter != nil {
		_ = r.iter.Close()
	}
	if r.snapshot != nil {
		_ = r.snapshot.Close()
	}
}

// hasPrefix reports whether key still falls under r.prefix, for callers
// that need to detect prefix exhaustion explicitly (the pebble adapter
// already bounds the iterator to the prefix range, so this is mostly
// documentation of the invariant rather than a check callers must repeat).
func (r *reader) hasPrefix(key []byte) bool {
	return r.prefix == nil || bytes.HasPrefix(key, r.prefix)
}
