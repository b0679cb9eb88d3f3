package smoltable

import "bytes"

// mergeReader performs a k-way merge across one reader per locality group
// a scan touches, yielding cells in ascending storage-key order overall —
// i.e. row-major, then family:qualifier, then newest-timestamp-first
// within a column — exactly as if every locality group's data lived in
// one partition. Grounded on
// original_source/smoltable/src/table/merge_reader.rs, which is referenced
// throughout table/mod.rs but absent from this retrieval pack; rebuilt
// from its call sites (MergeReader::new(readers), then repeated .next())
// and from the storage key format itself (cell.go), which is what makes a
// plain lowest-key-wins merge correct here: every locality group's keys
// are totally ordered the same way, so merging them is just "advance
// whichever front cursor currently holds the lexicographically smallest
// key".
type mergeReader struct {
	readers []*reader
	fronts  []*VisitedCell // one buffered, not-yet-returned cell per reader, or nil if exhausted

	// closedCellsScanned and closedBytesScanned carry forward the
	// counters of readers already closed and discarded from readers, so
	// cellsScannedCount/bytesScannedCount stay correct after exhaustion.
	closedCellsScanned uint64
	closedBytesScanned uint64
}

// newMergeReader takes ownership of readers; callers must not use them
// directly afterward.
func newMergeReader(readers []*reader) *mergeReader {
	return &mergeReader{
		readers: readers,
		fronts:  make([]*VisitedCell, len(readers)),
	}
}

// fill ensures every reader with no buffered front cursor tries to load one.
func (m *mergeReader) fill() error {
	for i, r := range m.readers {
		if r == nil || m.fronts[i] != nil {
			continue
		}
		cell, ok, err := r.next()
		if err != nil {
			return err
		}
		if !ok {
			m.closedCellsScanned += r.cellsScannedCount
			m.closedBytesScanned += r.bytesScannedCount
			r.close()
			m.readers[i] = nil
			continue
		}
		c := cell
		m.fronts[i] = &c
	}
	return nil
}

// next returns the next cell in merged order, or (VisitedCell{}, false, nil)
// once every reader is exhausted.
func (m *mergeReader) next() (VisitedCell, bool, error) {
	if err := m.fill(); err != nil {
		return VisitedCell{}, false, err
	}

	winner := -1
	for i, front := range m.fronts {
		if front == nil {
			continue
		}
		if winner == -1 || bytes.Compare(front.RawKey, m.fronts[winner].RawKey) < 0 {
			winner = i
		}
	}

	if winner == -1 {
		return VisitedCell{}, false, nil
	}

	cell := *m.fronts[winner]
	m.fronts[winner] = nil
	return cell, true, nil
}

// cellsScannedCount sums the scanned-cell counters across every reader
// that has been opened, including ones already exhausted and closed.
func (m *mergeReader) cellsScannedCount() uint64 {
	n := m.closedCellsScanned
	for _, r := range m.readers {
		if r != nil {
			n += r.cellsScannedCount
		}
	}
	return n
}

// bytesScannedCount sums the scanned-byte counters across every reader.
func (m *mergeReader) bytesScannedCount() uint64 {
	n := m.closedBytesScanned
	for _, r := range m.readers {
		if r != nil {
			n += r.bytesScannedCount
		}
	}
	return n
}

// close releases every underlying reader still open.
func (m *mergeReader) close() {
	for _, r := range m.readers {
		if r != nil {
			r.close()
		}
	}
}
