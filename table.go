package smoltable

import (
	"fmt"
	"sort"
	"sync"

	"smoltable/lsm"
)

// blockSize is the compressed block size smoltable's data partitions use.
// A bigger block size compresses better and this workload is dominated by
// prefix and range scans rather than point lookups, so larger blocks pay
// off; matches original_source/smoltable/src/table/mod.rs's BLOCK_SIZE.
const blockSize = 64 * 1024

// defaultStrategy is the compaction strategy OpenTable uses when the
// caller does not pick one explicitly: general-purpose leveled compaction
// tuned the same way the original tunes its main data partition.
func defaultStrategy() lsm.CompactionStrategy {
	return lsm.Levelled{TargetSize: 64 * 1024 * 1024, L0Threshold: 8}
}

// manifestPartitionOptions is shared by every manifest-style partition
// (a table's own manifest, and the keyspace-wide manifest in manifest.go):
// small, latency-sensitive metadata that almost never needs more than two
// levels.
func manifestPartitionOptions() lsm.PartitionOptions {
	return lsm.PartitionOptions{
		MaxMemtableSize: 512 * 1024,
		Strategy:        lsm.Fifo{CapacityBytes: 2 * 1024 * 1024},
	}
}

// Table is one smoltable table: a named collection of rows, each made of
// column families grouped into one default and zero or more non-default
// locality groups, each backed by its own partition. Grounded on
// original_source/smoltable/src/table/mod.rs's Smoltable/SmoltableInner.
type Table struct {
	name     string
	keyspace lsm.Keyspace

	manifest         lsm.PartitionHandle
	defaultPartition lsm.PartitionHandle

	localityGroupsMu sync.RWMutex
	localityGroups   []*LocalityGroup

	log LogFuncs
}

// OpenTable opens or creates a table with the default compaction strategy.
func OpenTable(name string, keyspace lsm.Keyspace, log LogFuncs) (*Table, error) {
	return OpenTableWithStrategy(name, keyspace, defaultStrategy(), log)
}

// OpenTableWithStrategy opens or creates a table, using strategy for its
// default locality group's data partition.
func OpenTableWithStrategy(name string, keyspace lsm.Keyspace, strategy lsm.CompactionStrategy, log LogFuncs) (*Table, error) {
	manifest, err := keyspace.OpenPartition("_man_"+name, manifestPartitionOptions())
	if err != nil {
		return nil, wrapStorage(err)
	}

	dataOpts := lsm.PartitionOptions{BlockSize: blockSize, Strategy: strategy}
	data, err := keyspace.OpenPartition("_dat_"+name, dataOpts)
	if err != nil {
		return nil, wrapStorage(err)
	}

	t := &Table{
		name:             name,
		keyspace:         keyspace,
		manifest:         manifest,
		defaultPartition: data,
		log:              log,
	}

	if err := t.loadLocalityGroups(); err != nil {
		return nil, err
	}

	t.log.Debugf("opened table %q", name)

	return t, nil
}

// Name returns the table's name.
func (t *Table) Name() string { return t.name }

// partitionForColumnFamily returns the partition a column family's cells
// live in: its non-default locality group's partition, if it has one, or
// the table's default partition otherwise.
func (t *Table) partitionForColumnFamily(family string) (lsm.PartitionHandle, error) {
	t.localityGroupsMu.RLock()
	defer t.localityGroupsMu.RUnlock()

	for _, lg := range t.localityGroups {
		if lg.ContainsColumnFamily(family) {
			return lg.Partition, nil
		}
	}
	return t.defaultPartition, nil
}

// ListColumnFamilies returns every column family registered on this table.
func (t *Table) ListColumnFamilies() ([]ColumnFamilyDefinition, error) {
	snap := t.manifest.SnapshotAt(t.keyspace.Instant())
	defer snap.Close()

	iter := snap.Prefix([]byte("cf#"))
	defer iter.Close()

	var defs []ColumnFamilyDefinition
	for {
		_, value, ok, err := iter.Next()
		if err != nil {
			return nil, wrapStorage(err)
		}
		if !ok {
			break
		}
		def, err := decodeColumnFamilyDefinition(value)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// loadLocalityGroups reconstructs t.localityGroups from the manifest's
// "lg#" entries, opening each group's partition.
func (t *Table) loadLocalityGroups() error {
	snap := t.manifest.SnapshotAt(t.keyspace.Instant())
	defer snap.Close()

	iter := snap.Prefix([]byte("lg#"))
	defer iter.Close()

	var groups []*LocalityGroup
	for {
		key, value, ok, err := iter.Next()
		if err != nil {
			return wrapStorage(err)
		}
		if !ok {
			break
		}

		id, hasID := localityGroupIDFromManifestKey(string(key))
		if !hasID {
			return codecErrorf("malformed locality group manifest key %q", key)
		}

		families, err := decodeLocalityGroupFamilies(value)
		if err != nil {
			return err
		}

		t.log.Debugf("loading locality group %s <= %v", id, families)

		partOpts := lsm.PartitionOptions{BlockSize: blockSize, Strategy: defaultStrategy()}
		partition, err := t.keyspace.OpenPartition(fmt.Sprintf("_lg_%s", id), partOpts)
		if err != nil {
			return wrapStorage(err)
		}

		groups = append(groups, &LocalityGroup{ID: id, ColumnFamilies: families, Partition: partition})
	}

	t.localityGroupsMu.Lock()
	t.localityGroups = groups
	t.localityGroupsMu.Unlock()

	return nil
}

// columnFamiliesInDefaultLocalityGroup returns the names of every
// registered column family that is NOT a member of any non-default
// locality group.
func (t *Table) columnFamiliesInDefaultLocalityGroup() ([]string, error) {
	defs, err := t.ListColumnFamilies()
	if err != nil {
		return nil, err
	}

	t.localityGroupsMu.RLock()
	inNonDefault := make(map[string]struct{})
	for _, lg := range t.localityGroups {
		for _, cf := range lg.ColumnFamilies {
			inNonDefault[cf] = struct{}{}
		}
	}
	t.localityGroupsMu.RUnlock()

	var out []string
	for _, def := range defs {
		if _, ok := inNonDefault[def.Name]; !ok {
			out = append(out, def.Name)
		}
	}
	return out, nil
}

// CreateColumnFamilyInput describes a batch of column families to
// register, optionally co-located in one new non-default locality group.
type CreateColumnFamilyInput struct {
	ColumnFamilies []ColumnFamilyDefinition
	LocalityGroup  bool
}

// CreateColumnFamilies registers the given column families (and, if
// requested, a new locality group housing them) atomically, and persists
// them to the manifest before returning.
func (t *Table) CreateColumnFamilies(input CreateColumnFamilyInput) error {
	t.log.Debugf("creating %d column families (locality: %v) for table %q",
		len(input.ColumnFamilies), input.LocalityGroup, t.name)

	batch := t.keyspace.Batch()

	for _, def := range input.ColumnFamilies {
		if !IsValidIdentifier(def.Name) {
			return invalidArgErrorf("invalid column family name %q", def.Name)
		}
		encoded, err := encodeColumnFamilyDefinition(def)
		if err != nil {
			return err
		}
		batch.Insert(t.manifest, columnFamilyManifestKey(def.Name), encoded)
	}

	if input.LocalityGroup {
		id := newLocalityGroupID()
		names := make([]string, len(input.ColumnFamilies))
		for i, def := range input.ColumnFamilies {
			names[i] = def.Name
		}
		encoded, err := encodeLocalityGroupFamilies(names)
		if err != nil {
			return err
		}
		batch.Insert(t.manifest, localityGroupManifestKey(id), encoded)
	}

	if err := wrapStorage(batch.Commit()); err != nil {
		return err
	}
	if err := wrapStorage(t.keyspace.Persist(lsm.PersistSyncAll)); err != nil {
		return err
	}

	return t.loadLocalityGroups()
}

// GetRow fetches one row's matching cells.
func (t *Table) GetRow(input QueryRowInput) (QueryRowOutput, error) {
	cellLimit := orDefaultU32(input.CellLimit, defaultScanLimit)

	reader, err := newSingleRowReader(t, t.keyspace.Instant(), input.RowKey, input.ColumnFilter)
	if err != nil {
		return QueryRowOutput{}, err
	}
	defer reader.close()

	row := newRow(input.RowKey)
	for {
		cell, ok, err := reader.next()
		if err != nil {
			return QueryRowOutput{}, err
		}
		if !ok {
			break
		}

		versions := row.Columns[cell.Column.Family][cell.Column.QualifierOrEmpty()]
		if len(versions) >= int(cellLimit) {
			continue
		}
		row.appendCell(cell.Column, Cell{Timestamp: cell.Timestamp, Value: cell.Value})
	}

	out := QueryRowOutput{
		CellsScannedCount: reader.cellsScannedCount,
		BytesScannedCount: reader.bytesScannedCount,
	}
	if row.ColumnCount() > 0 {
		out.Row = row
	}
	return out, nil
}

// MultiGet fetches several rows, each via GetRow, and concatenates the
// results. Grounded on table/mod.rs's multi_get.
func (t *Table) MultiGet(inputs []QueryRowInput) (ScanOutput, error) {
	out := ScanOutput{}
	for _, input := range inputs {
		result, err := t.GetRow(input)
		if err != nil {
			return ScanOutput{}, err
		}
		if result.Row != nil {
			out.Rows = append(out.Rows, result.Row)
		}
		out.CellsScannedCount += result.CellsScannedCount
		out.BytesScannedCount += result.BytesScannedCount
		out.RowsScannedCount++
	}
	return out, nil
}

// scanLowerBound renders the byte slice a merge-reader fan-out should
// start each locality group's reader from, for the given scan mode.
func scanLowerBound(mode ScanMode) []byte {
	if mode.Prefix != nil {
		return []byte(*mode.Prefix)
	}
	if mode.Range != nil {
		return []byte(mode.Range.Start)
	}
	return nil
}

// rowInScanRange reports whether rowKey is inside the (possibly inclusive)
// range mode describes; it returns true whenever mode has no Range, so it
// does not check a prefix. Both modes reuse the same reader/merge-reader
// construction (see DESIGN.md): every reader starts at the lower bound
// and only knows that bound, so Scan and Count stop a Prefix scan
// themselves (hasPrefixString) and a Range scan through this check.
func rowInScanRange(mode ScanMode, rowKey string) bool {
	if mode.Range == nil {
		return true
	}
	r := mode.Range
	if rowKey < r.Start {
		return false
	}
	if r.Inclusive {
		return rowKey <= r.End
	}
	return rowKey < r.End
}

// Scan streams rows matching input's row/column/cell bounds. Grounded on
// original_source/smoltable/src/table/mod.rs's query_prefix, generalized
// to also serve range-mode scans (see DESIGN.md for why query_prefix and
// range scans share this one implementation).
func (t *Table) Scan(input ScanInput) (ScanOutput, error) {
	rowLimit := orDefaultU32(input.Row.Limit, defaultScanLimit)
	rowCellLimit := orDefaultU32(input.Row.CellLimit, defaultScanLimit)

	var columnFilter ColumnFilter
	var columnCellLimit uint32 = defaultScanLimit
	if input.Column != nil {
		columnFilter = input.Column.Filter
		columnCellLimit = orDefaultU32(input.Column.CellLimit, defaultScanLimit)
	}

	var globalCellLimit uint32 = defaultScanLimit
	if input.Cell != nil {
		globalCellLimit = orDefaultU32(input.Cell.Limit, defaultScanLimit)
	}

	groups, err := affectedLocalityGroups(t, columnFilter)
	if err != nil {
		return ScanOutput{}, err
	}
	instant := t.keyspace.Instant()

	lower := scanLowerBound(input.Row.Scan)

	readers := make([]*reader, 0, len(groups))
	for _, g := range groups {
		readers = append(readers, newReader(instant, g, lower).withChunkSize(16000))
	}
	merged := newMergeReader(readers)
	defer merged.close()

	rows := make(map[string]*Row)
	order := make([]string, 0)

	var rowsScanned, cellCount uint32
	sampleCounter := float32(1.0)

	for cellCount < globalCellLimit {
		cell, ok, err := merged.next()
		if err != nil {
			return ScanOutput{}, err
		}
		if !ok {
			break
		}

		if input.Row.Scan.Prefix != nil && !hasPrefixString(cell.RowKey, *input.Row.Scan.Prefix) {
			break
		}
		if !rowInScanRange(input.Row.Scan, cell.RowKey) {
			if input.Row.Scan.Range != nil && cell.RowKey >= input.Row.Scan.Range.End {
				break
			}
			continue
		}

		if columnFilter != nil && !cell.SatisfiesColumnFilter(columnFilter) {
			continue
		}

		if _, visited := rows[cell.RowKey]; !visited {
			rowsScanned++

			for k, r := range rows {
				if r.ColumnCount() == 0 {
					delete(rows, k)
				}
			}

			if len(rows) == int(rowLimit) {
				break
			}

			if input.Row.Sample != nil && *input.Row.Sample < 1.0 {
				sampleCounter += *input.Row.Sample
				if sampleCounter < 1.0 {
					continue
				}
				sampleCounter -= 1.0
			}
		}

		row, exists := rows[cell.RowKey]
		if !exists {
			row = newRow(cell.RowKey)
			rows[cell.RowKey] = row
			order = append(order, cell.RowKey)
		}

		if uint32(row.CellCount()) >= rowCellLimit {
			continue
		}

		versions := row.Columns[cell.Column.Family][cell.Column.QualifierOrEmpty()]
		if uint32(len(versions)) >= columnCellLimit {
			continue
		}

		row.appendCell(cell.Column, Cell{Timestamp: cell.Timestamp, Value: cell.Value})
		cellCount++
	}

	out := ScanOutput{
		AffectedLocalityGroups: len(groups),
		RowsScannedCount:       uint64(rowsScanned),
		CellsScannedCount:      merged.cellsScannedCount(),
		BytesScannedCount:      merged.bytesScannedCount(),
	}
	sort.Strings(order)
	for _, key := range order {
		if row := rows[key]; row.ColumnCount() > 0 {
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}

// Count scans like Scan but only tallies rows and cells, never building
// Row values. Grounded on table/mod.rs's count, generalized to accept the
// same row/column bounds as Scan instead of always walking every row.
func (t *Table) Count(input CountInput) (CountOutput, error) {
	var columnFilter ColumnFilter
	if input.Column != nil {
		columnFilter = input.Column.Filter
	}

	groups, err := affectedLocalityGroups(t, columnFilter)
	if err != nil {
		return CountOutput{}, err
	}
	instant := t.keyspace.Instant()
	lower := scanLowerBound(input.Row.Scan)

	readers := make([]*reader, 0, len(groups))
	for _, g := range groups {
		readers = append(readers, newReader(instant, g, lower).withChunkSize(100000))
	}
	merged := newMergeReader(readers)
	defer merged.close()

	var cellCount, rowCount uint64
	var currentRow string
	haveRow := false

	for {
		cell, ok, err := merged.next()
		if err != nil {
			return CountOutput{}, err
		}
		if !ok {
			break
		}

		if input.Row.Scan.Prefix != nil && !hasPrefixString(cell.RowKey, *input.Row.Scan.Prefix) {
			break
		}
		if !rowInScanRange(input.Row.Scan, cell.RowKey) {
			if input.Row.Scan.Range != nil && cell.RowKey >= input.Row.Scan.Range.End {
				break
			}
			continue
		}
		if columnFilter != nil && !cell.SatisfiesColumnFilter(columnFilter) {
			continue
		}

		cellCount++
		if !haveRow || currentRow != cell.RowKey {
			currentRow = cell.RowKey
			haveRow = true
			rowCount++
		}
	}

	return CountOutput{
		AffectedLocalityGroups: len(groups),
		RowCount:               rowCount,
		CellCount:              cellCount,
		BytesScannedCount:      merged.bytesScannedCount(),
	}, nil
}

// DeleteRow deletes every cell of rowKey matching filter (or every cell,
// when filter is nil), returning the number of cells deleted. Unlike the
// original (see DESIGN.md §Open Questions #2), this deletes each cell
// through the partition it actually came from, so rows spanning several
// locality groups are deleted completely rather than only in the default
// group.
func (t *Table) DeleteRow(rowKey string, filter ColumnFilter) (uint64, error) {
	reader, err := newSingleRowReader(t, t.keyspace.Instant(), rowKey, filter)
	if err != nil {
		return 0, err
	}
	defer reader.close()

	var count uint64
	for {
		cell, ok, err := reader.next()
		if err != nil {
			return count, err
		}
		if !ok {
			break
		}

		if err := wrapStorage(cell.Partition.Remove(cell.RawKey)); err != nil {
			return count, err
		}
		t.log.Tracef("deleted cell %x", cell.RawKey)
		count++
	}

	return count, nil
}

// RunVersionGC deletes cells exceeding their column family's version
// limit or TTL. It scans locality group by locality group rather than
// through a mergeReader, because deletions must land in the exact
// partition a cell was read from, and the GC's per-column running state
// (current row, current column, versions seen so far) only makes sense
// within one partition's own key order. Grounded on table/mod.rs's
// run_version_gc.
func (t *Table) RunVersionGC() (uint64, error) {
	defs, err := t.ListColumnFamilies()
	if err != nil {
		return 0, err
	}

	gcByFamily := make(map[string]GarbageCollectionOptions, len(defs))
	anyLimit := false
	for _, def := range defs {
		gcByFamily[def.Name] = def.GC
		if def.GC.hasLimit() {
			anyLimit = true
		}
	}
	if !anyLimit {
		t.log.Infof("%s has no column families with GC, skipping", t.name)
		return 0, nil
	}

	families := make([]ColumnKey, 0, len(gcByFamily))
	for name, gc := range gcByFamily {
		if gc.hasLimit() {
			families = append(families, NewFamilyColumnKey(name))
		}
	}

	groups, err := affectedLocalityGroups(t, MultiFilter{Keys: families})
	if err != nil {
		return 0, err
	}
	instant := t.keyspace.Instant()

	var deletedCount uint64
	var currentRowKey, currentFamily, currentQualifier string
	haveColumn := false
	cellsInColumn := uint64(0)

	now := nowNanos()

	for _, group := range groups {
		r := newReader(instant, group, nil)
		for {
			cell, ok, err := r.next()
			if err != nil {
				r.close()
				return deletedCount, err
			}
			if !ok {
				break
			}

			if currentRowKey != cell.RowKey {
				currentRowKey = cell.RowKey
				cellsInColumn = 0
			}
			if !haveColumn || currentFamily != cell.Column.Family || currentQualifier != cell.Column.QualifierOrEmpty() {
				currentFamily = cell.Column.Family
				currentQualifier = cell.Column.QualifierOrEmpty()
				haveColumn = true
				cellsInColumn = 0
			}
			cellsInColumn++

			gc, ok := gcByFamily[cell.Column.Family]
			if !ok {
				continue
			}

			deleted := false

			if gc.VersionLimit != nil && *gc.VersionLimit > 0 && cellsInColumn > *gc.VersionLimit {
				if err := cell.Partition.Remove(cell.RawKey); err != nil {
					r.close()
					return deletedCount, wrapStorage(err)
				}
				deleted = true
			}

			if !deleted && gc.TTLSeconds != nil && *gc.TTLSeconds > 0 && cell.Timestamp > 0 {
				ageSeconds := (now - cell.Timestamp) / 1_000_000_000
				if ageSeconds > *gc.TTLSeconds {
					if err := cell.Partition.Remove(cell.RawKey); err != nil {
						r.close()
						return deletedCount, wrapStorage(err)
					}
					deleted = true
				}
			}

			if deleted {
				deletedCount++
			}
		}
		r.close()
	}

	return deletedCount, nil
}

// SegmentCount reports the approximate number of on-disk segments backing
// this table, summed across its default and every non-default partition.
func (t *Table) SegmentCount() int {
	n := t.defaultPartition.SegmentCount()
	t.localityGroupsMu.RLock()
	for _, lg := range t.localityGroups {
		n += lg.Partition.SegmentCount()
	}
	t.localityGroupsMu.RUnlock()
	return n
}

// DiskSpaceUsage reports the approximate number of bytes this table
// occupies on disk, summed the same way as SegmentCount.
func (t *Table) DiskSpaceUsage() uint64 {
	n := t.defaultPartition.DiskSpaceUsage()
	t.localityGroupsMu.RLock()
	for _, lg := range t.localityGroups {
		n += lg.Partition.DiskSpaceUsage()
	}
	t.localityGroupsMu.RUnlock()
	return n
}

// dropPartitions permanently deletes every partition this table owns: its
// manifest, its default data partition, and every locality group's
// partition. Called by TableHost.DropTable once the table is unregistered,
// mirroring original_source/server/src/api/delete_table.rs's teardown.
func (t *Table) dropPartitions() error {
	t.localityGroupsMu.RLock()
	groups := append([]*LocalityGroup(nil), t.localityGroups...)
	t.localityGroupsMu.RUnlock()

	for _, lg := range groups {
		if err := t.keyspace.DeletePartition(lg.Partition); err != nil {
			return wrapStorage(err)
		}
	}
	if err := t.keyspace.DeletePartition(t.defaultPartition); err != nil {
		return wrapStorage(err)
	}
	return wrapStorage(t.keyspace.DeletePartition(t.manifest))
}

func orDefaultU32(v *uint32, def uint32) uint32 {
	if v == nil {
		return def
	}
	return *v
}

func hasPrefixString(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
