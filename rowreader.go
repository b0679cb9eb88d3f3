package smoltable

import "smoltable/lsm"

// affectedLocalityGroups returns the partitions a query with the given
// column filter must visit: the default locality group when any matching
// family lives there, plus every non-default locality group that owns a
// matching family; or every partition the table has, when filter is nil.
// Grounded on original_source/smoltable/src/table/row_reader.rs's
// get_affected_locality_groups.
func affectedLocalityGroups(t *Table, filter ColumnFilter) ([]lsm.PartitionHandle, error) {
	t.localityGroupsMu.RLock()
	groups := t.localityGroups
	t.localityGroupsMu.RUnlock()

	if filter == nil {
		out := make([]lsm.PartitionHandle, 0, 1+len(groups))
		out = append(out, t.defaultPartition)
		for _, lg := range groups {
			out = append(out, lg.Partition)
		}
		return out, nil
	}

	families := filterFamilies(filter)

	defaultFamilies, err := t.columnFamiliesInDefaultLocalityGroup()
	if err != nil {
		return nil, err
	}
	defaultSet := make(map[string]struct{}, len(defaultFamilies))
	for _, f := range defaultFamilies {
		defaultSet[f] = struct{}{}
	}

	var out []lsm.PartitionHandle

	includeDefault := false
	for _, f := range families {
		if _, ok := defaultSet[f]; ok {
			includeDefault = true
			break
		}
	}
	if includeDefault {
		out = append(out, t.defaultPartition)
	}

	for _, lg := range groups {
		if lg.ContainsAnyColumnFamily(families) {
			out = append(out, lg.Partition)
		}
	}

	return out, nil
}

// singleRowReader streams the cells of exactly one row across whichever
// locality groups a column filter touches, opening one prefix-bounded
// reader per group at a time instead of fanning every group out to a
// mergeReader — a single row's cells within one group are already in
// storage-key order, and the row is the same across groups, so there is
// nothing to merge. Grounded on
// original_source/smoltable/src/table/row_reader.rs's SingleRowReader.
type singleRowReader struct {
	table     *Table
	instant   lsm.Instant
	rowKey    string
	filter    ColumnFilter

	groups  []lsm.PartitionHandle
	current *reader

	cellsScannedCount uint64
	bytesScannedCount uint64
}

func newSingleRowReader(t *Table, instant lsm.Instant, rowKey string, filter ColumnFilter) (*singleRowReader, error) {
	groups, err := affectedLocalityGroups(t, filter)
	if err != nil {
		return nil, err
	}
	return &singleRowReader{
		table:   t,
		instant: instant,
		rowKey:  rowKey,
		filter:  filter,
		groups:  groups,
	}, nil
}

// localityGroupCount reports how many partitions this reader will visit.
func (s *singleRowReader) localityGroupCount() int {
	return len(s.groups)
}

// takeNextGroup opens a reader over the next unvisited locality group,
// bounded to this row's keys (optionally narrowed to one column, when the
// filter is an exact KeyFilter — the same optimization as the original's
// "use the filter's key as the prefix when possible").
func (s *singleRowReader) takeNextGroup() (bool, error) {
	for len(s.groups) > 0 {
		group := s.groups[0]
		s.groups = s.groups[1:]

		var prefix []byte
		if kf, ok := s.filter.(KeyFilter); ok && kf.Key.Qualifier != nil {
			prefix = kf.Key.BuildKeyPrefix(s.rowKey)
		} else {
			prefix = []byte(s.rowKey + ":")
		}

		r, ok, err := newPrefixReader(s.instant, group, prefix)
		if err != nil {
			return false, err
		}
		if !ok {
			continue
		}
		s.current = r
		return true, nil
	}
	return false, nil
}

// next returns the row's next matching cell, or (VisitedCell{}, false, nil)
// once every locality group has been exhausted.
func (s *singleRowReader) next() (VisitedCell, bool, error) {
	if s.current == nil {
		has, err := s.takeNextGroup()
		if err != nil {
			return VisitedCell{}, false, err
		}
		if !has {
			return VisitedCell{}, false, nil
		}
	}

	for {
		cell, ok, err := s.current.next()
		if err != nil {
			return VisitedCell{}, false, err
		}
		if ok {
			if s.filter != nil && !cell.SatisfiesColumnFilter(s.filter) {
				continue
			}
			return cell, true, nil
		}

		s.cellsScannedCount += s.current.cellsScannedCount
		s.bytesScannedCount += s.current.bytesScannedCount
		s.current.close()
		s.current = nil

		has, err := s.takeNextGroup()
		if err != nil {
			return VisitedCell{}, false, err
		}
		if !has {
			return VisitedCell{}, false, nil
		}
	}
}

// close releases the currently open locality-group reader, if any.
func (s *singleRowReader) close() {
	if s.current != nil {
		s.current.close()
		s.current = nil
	}
}
