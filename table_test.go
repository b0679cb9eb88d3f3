package smoltable

import (
	"testing"

	"github.com/stretchr/testify/require"

	"smoltable/lsm"
	"smoltable/lsm/pebblekeyspace"
)

func openTestKeyspace(t *testing.T) lsm.Keyspace {
	t.Helper()
	ks, err := pebblekeyspace.Open(pebblekeyspace.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, ks.Close()) })
	return ks
}

func openTestTable(t *testing.T, ks lsm.Keyspace, name string) *Table {
	t.Helper()
	tbl, err := OpenTable(name, ks, LogFuncs{})
	require.NoError(t, err)
	return tbl
}

func writeCell(t *testing.T, tbl *Table, rowKey, family, qualifier string, ts uint64, value Value) {
	t.Helper()
	w := NewWriter(tbl)
	require.NoError(t, w.Write(RowWriteItem{
		RowKey: rowKey,
		Cells: []ColumnWriteItem{
			{Column: NewColumnKey(family, qualifier), Timestamp: &ts, Value: value},
		},
	}))
	require.NoError(t, w.Finalize())
}

func TestCreateColumnFamiliesAndGetRow(t *testing.T) {
	ks := openTestKeyspace(t)
	tbl := openTestTable(t, ks, "people")

	require.NoError(t, tbl.CreateColumnFamilies(CreateColumnFamilyInput{
		ColumnFamilies: []ColumnFamilyDefinition{{Name: "name"}, {Name: "email"}},
	}))

	writeCell(t, tbl, "row1", "name", "first", 100, StringValue("Ada"))
	writeCell(t, tbl, "row1", "email", "home", 200, StringValue("ada@example.com"))

	out, err := tbl.GetRow(QueryRowInput{RowKey: "row1"})
	require.NoError(t, err)
	require.NotNil(t, out.Row)
	require.Equal(t, "row1", out.Row.RowKey)
	require.Equal(t, 2, out.Row.ColumnCount())

	versions := out.Row.Columns["name"]["first"]
	require.Len(t, versions, 1)
	require.Equal(t, StringValue("Ada"), versions[0].Value)
}

func TestGetRowMissingReturnsNilRow(t *testing.T) {
	ks := openTestKeyspace(t)
	tbl := openTestTable(t, ks, "people")
	require.NoError(t, tbl.CreateColumnFamilies(CreateColumnFamilyInput{
		ColumnFamilies: []ColumnFamilyDefinition{{Name: "name"}},
	}))

	out, err := tbl.GetRow(QueryRowInput{RowKey: "ghost"})
	require.NoError(t, err)
	require.Nil(t, out.Row)
}

func TestCellVersionOrderingNewestFirst(t *testing.T) {
	ks := openTestKeyspace(t)
	tbl := openTestTable(t, ks, "people")
	require.NoError(t, tbl.CreateColumnFamilies(CreateColumnFamilyInput{
		ColumnFamilies: []ColumnFamilyDefinition{{Name: "name"}},
	}))

	writeCell(t, tbl, "row1", "name", "first", 100, StringValue("v1"))
	writeCell(t, tbl, "row1", "name", "first", 300, StringValue("v3"))
	writeCell(t, tbl, "row1", "name", "first", 200, StringValue("v2"))

	out, err := tbl.GetRow(QueryRowInput{RowKey: "row1"})
	require.NoError(t, err)
	versions := out.Row.Columns["name"]["first"]
	require.Len(t, versions, 3)
	require.Equal(t, StringValue("v3"), versions[0].Value)
	require.Equal(t, StringValue("v2"), versions[1].Value)
	require.Equal(t, StringValue("v1"), versions[2].Value)
}

func TestLocalityGroupRoutingAndRecombination(t *testing.T) {
	ks := openTestKeyspace(t)
	tbl := openTestTable(t, ks, "people")

	require.NoError(t, tbl.CreateColumnFamilies(CreateColumnFamilyInput{
		ColumnFamilies: []ColumnFamilyDefinition{{Name: "name"}},
	}))
	require.NoError(t, tbl.CreateColumnFamilies(CreateColumnFamilyInput{
		ColumnFamilies: []ColumnFamilyDefinition{{Name: "bigblob"}},
		LocalityGroup:  true,
	}))

	writeCell(t, tbl, "row1", "name", "first", 100, StringValue("Ada"))
	writeCell(t, tbl, "row1", "bigblob", "data", 100, StringValue("big-payload"))

	out, err := tbl.GetRow(QueryRowInput{RowKey: "row1"})
	require.NoError(t, err)
	require.Equal(t, 2, out.Row.ColumnCount())
	require.Equal(t, StringValue("Ada"), out.Row.Columns["name"]["first"][0].Value)
	require.Equal(t, StringValue("big-payload"), out.Row.Columns["bigblob"]["data"][0].Value)
}

func TestScanPrefix(t *testing.T) {
	ks := openTestKeyspace(t)
	tbl := openTestTable(t, ks, "people")
	require.NoError(t, tbl.CreateColumnFamilies(CreateColumnFamilyInput{
		ColumnFamilies: []ColumnFamilyDefinition{{Name: "name"}},
	}))

	writeCell(t, tbl, "user#1", "name", "first", 100, StringValue("Ada"))
	writeCell(t, tbl, "user#2", "name", "first", 100, StringValue("Bea"))
	writeCell(t, tbl, "other#1", "name", "first", 100, StringValue("Carl"))

	prefix := "user#"
	out, err := tbl.Scan(ScanInput{Row: ScanRowOptions{Scan: ScanMode{Prefix: &prefix}}})
	require.NoError(t, err)
	require.Len(t, out.Rows, 2)
	require.Equal(t, "user#1", out.Rows[0].RowKey)
	require.Equal(t, "user#2", out.Rows[1].RowKey)
}

// TestScanPrefixAccountsReadAheadCells exercises the adaptive chunked
// reader's accounting: a Scan that stops after its row limit is satisfied
// still reports every cell the reader's read-ahead chunk pulled from
// storage, not just the cells the caller consumed.
func TestScanPrefixAccountsReadAheadCells(t *testing.T) {
	ks := openTestKeyspace(t)
	tbl := openTestTable(t, ks, "people")
	require.NoError(t, tbl.CreateColumnFamilies(CreateColumnFamilyInput{
		ColumnFamilies: []ColumnFamilyDefinition{{Name: "name"}},
	}))

	for _, key := range []string{"a", "b", "ba", "c"} {
		writeCell(t, tbl, key, "name", "first", 100, StringValue(key))
	}

	prefix := "b"
	limit := uint32(1)
	out, err := tbl.Scan(ScanInput{Row: ScanRowOptions{
		Scan:  ScanMode{Prefix: &prefix},
		Limit: &limit,
	}})
	require.NoError(t, err)
	require.Len(t, out.Rows, 1)
	require.Equal(t, "b", out.Rows[0].RowKey)
	require.EqualValues(t, 3, out.CellsScannedCount)
}

func TestScanRangeInclusiveAndExclusive(t *testing.T) {
	ks := openTestKeyspace(t)
	tbl := openTestTable(t, ks, "people")
	require.NoError(t, tbl.CreateColumnFamilies(CreateColumnFamilyInput{
		ColumnFamilies: []ColumnFamilyDefinition{{Name: "name"}},
	}))

	for _, key := range []string{"a", "b", "c", "d"} {
		writeCell(t, tbl, key, "name", "first", 100, StringValue(key))
	}

	out, err := tbl.Scan(ScanInput{Row: ScanRowOptions{Scan: ScanMode{
		Range: &ScanRange{Start: "b", End: "d", Inclusive: false},
	}}})
	require.NoError(t, err)
	require.Len(t, out.Rows, 2)
	require.Equal(t, "b", out.Rows[0].RowKey)
	require.Equal(t, "c", out.Rows[1].RowKey)

	out, err = tbl.Scan(ScanInput{Row: ScanRowOptions{Scan: ScanMode{
		Range: &ScanRange{Start: "b", End: "d", Inclusive: true},
	}}})
	require.NoError(t, err)
	require.Len(t, out.Rows, 3)
	require.Equal(t, "d", out.Rows[2].RowKey)
}

func TestScanWithColumnFilter(t *testing.T) {
	ks := openTestKeyspace(t)
	tbl := openTestTable(t, ks, "people")
	require.NoError(t, tbl.CreateColumnFamilies(CreateColumnFamilyInput{
		ColumnFamilies: []ColumnFamilyDefinition{{Name: "name"}, {Name: "email"}},
	}))

	writeCell(t, tbl, "row1", "name", "first", 100, StringValue("Ada"))
	writeCell(t, tbl, "row1", "email", "home", 100, StringValue("ada@example.com"))

	out, err := tbl.Scan(ScanInput{
		Row:    ScanRowOptions{Scan: ScanMode{Prefix: strPtr("row")}},
		Column: &ScanColumnOptions{Filter: KeyFilter{Key: NewFamilyColumnKey("name")}},
	})
	require.NoError(t, err)
	require.Len(t, out.Rows, 1)
	require.Equal(t, 1, out.Rows[0].ColumnCount())
	_, hasEmail := out.Rows[0].Columns["email"]
	require.False(t, hasEmail)
}

func TestCount(t *testing.T) {
	ks := openTestKeyspace(t)
	tbl := openTestTable(t, ks, "people")
	require.NoError(t, tbl.CreateColumnFamilies(CreateColumnFamilyInput{
		ColumnFamilies: []ColumnFamilyDefinition{{Name: "name"}},
	}))

	writeCell(t, tbl, "row1", "name", "first", 100, StringValue("Ada"))
	writeCell(t, tbl, "row2", "name", "first", 100, StringValue("Bea"))
	writeCell(t, tbl, "row2", "name", "first", 200, StringValue("Bea2"))

	out, err := tbl.Count(CountInput{Row: ScanRowOptions{Scan: ScanMode{Prefix: strPtr("row")}}})
	require.NoError(t, err)
	require.EqualValues(t, 2, out.RowCount)
	require.EqualValues(t, 3, out.CellCount)
}

func TestDeleteRowAcrossLocalityGroups(t *testing.T) {
	ks := openTestKeyspace(t)
	tbl := openTestTable(t, ks, "people")

	require.NoError(t, tbl.CreateColumnFamilies(CreateColumnFamilyInput{
		ColumnFamilies: []ColumnFamilyDefinition{{Name: "name"}},
	}))
	require.NoError(t, tbl.CreateColumnFamilies(CreateColumnFamilyInput{
		ColumnFamilies: []ColumnFamilyDefinition{{Name: "bigblob"}},
		LocalityGroup:  true,
	}))

	writeCell(t, tbl, "row1", "name", "first", 100, StringValue("Ada"))
	writeCell(t, tbl, "row1", "bigblob", "data", 100, StringValue("payload"))

	deleted, err := tbl.DeleteRow("row1", nil)
	require.NoError(t, err)
	require.EqualValues(t, 2, deleted)

	out, err := tbl.GetRow(QueryRowInput{RowKey: "row1"})
	require.NoError(t, err)
	require.Nil(t, out.Row)
}

func TestRunVersionGCVersionLimit(t *testing.T) {
	ks := openTestKeyspace(t)
	tbl := openTestTable(t, ks, "people")

	limit := uint64(2)
	require.NoError(t, tbl.CreateColumnFamilies(CreateColumnFamilyInput{
		ColumnFamilies: []ColumnFamilyDefinition{{Name: "name", GC: GarbageCollectionOptions{VersionLimit: &limit}}},
	}))

	writeCell(t, tbl, "row1", "name", "first", 100, StringValue("v1"))
	writeCell(t, tbl, "row1", "name", "first", 200, StringValue("v2"))
	writeCell(t, tbl, "row1", "name", "first", 300, StringValue("v3"))

	deleted, err := tbl.RunVersionGC()
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)

	out, err := tbl.GetRow(QueryRowInput{RowKey: "row1"})
	require.NoError(t, err)
	versions := out.Row.Columns["name"]["first"]
	require.Len(t, versions, 2)
	require.Equal(t, StringValue("v3"), versions[0].Value)
	require.Equal(t, StringValue("v2"), versions[1].Value)
}

func TestRunVersionGCTTL(t *testing.T) {
	ks := openTestKeyspace(t)
	tbl := openTestTable(t, ks, "people")

	ttl := uint64(1)
	require.NoError(t, tbl.CreateColumnFamilies(CreateColumnFamilyInput{
		ColumnFamilies: []ColumnFamilyDefinition{{Name: "name", GC: GarbageCollectionOptions{TTLSeconds: &ttl}}},
	}))

	writeCell(t, tbl, "row1", "name", "first", 100, StringValue("stale"))
	writeCell(t, tbl, "row1", "name", "second", nowNanos(), StringValue("fresh"))

	deleted, err := tbl.RunVersionGC()
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)

	out, err := tbl.GetRow(QueryRowInput{RowKey: "row1"})
	require.NoError(t, err)
	require.Len(t, out.Row.Columns["name"]["first"], 0)
	require.Len(t, out.Row.Columns["name"]["second"], 1)
}

func TestTableHostCreateDrop(t *testing.T) {
	ks := openTestKeyspace(t)
	host, err := OpenTableHost(ks, LogFuncs{})
	require.NoError(t, err)

	mt, err := host.CreateTable("orders")
	require.NoError(t, err)
	require.NotNil(t, mt.Table)
	require.NotNil(t, mt.Metrics)

	_, err = host.CreateTable("orders")
	require.Error(t, err)
	require.True(t, IsKind(err, KindConflict))

	got, ok := host.GetTable("orders")
	require.True(t, ok)
	require.Same(t, mt, got)

	require.NoError(t, mt.RecordLatency("write", 1234))

	require.NoError(t, host.DropTable("orders"))
	_, ok = host.GetTable("orders")
	require.False(t, ok)
}

func TestTableHostRestoresTablesAcrossReopen(t *testing.T) {
	ks := openTestKeyspace(t)
	host, err := OpenTableHost(ks, LogFuncs{})
	require.NoError(t, err)
	_, err = host.CreateTable("orders")
	require.NoError(t, err)

	reopened, err := OpenTableHost(ks, LogFuncs{})
	require.NoError(t, err)
	_, ok := reopened.GetTable("orders")
	require.True(t, ok)
}

func strPtr(s string) *string { return &s }
