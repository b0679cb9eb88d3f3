package smoltable

import (
	"time"

	"smoltable/lsm"
)

// ColumnWriteItem is one cell to write: its column, an optional explicit
// timestamp (nanoseconds since the epoch; nowNanos() is used when nil),
// and its value.
type ColumnWriteItem struct {
	Column    ColumnKey
	Timestamp *uint64
	Value     Value
}

// RowWriteItem is one row's worth of cells to write atomically with the
// rest of the Writer's staged rows.
type RowWriteItem struct {
	RowKey string
	Cells  []ColumnWriteItem
}

// nowNanos returns the current time as nanoseconds since the Unix epoch,
// the default cell timestamp when a write does not specify one. Grounded
// on original_source/smoltable/src/table/writer.rs's timestamp_nano.
func nowNanos() uint64 {
	return uint64(time.Now().UnixNano())
}

// Writer batches row writes against one table for atomic commit. Grounded
// on original_source/smoltable/src/table/writer.rs's Writer.
type Writer struct {
	table *Table
	batch lsm.Batch
}

// NewWriter starts a new write batch against table.
func NewWriter(table *Table) *Writer {
	return &Writer{table: table, batch: table.keyspace.Batch()}
}

// WriteBatch is a convenience wrapper that opens a Writer, writes every
// item, and commits in one call.
func WriteBatch(table *Table, items []RowWriteItem) error {
	w := NewWriter(table)
	for _, item := range items {
		if err := w.Write(item); err != nil {
			return err
		}
	}
	return w.Finalize()
}

// Write stages item's cells into the batch, routing each to the partition
// owning its column family.
func (w *Writer) Write(item RowWriteItem) error {
	for _, cell := range item.Cells {
		ts := cell.Timestamp
		var timestamp uint64
		if ts != nil {
			timestamp = *ts
		} else {
			timestamp = nowNanos()
		}

		key := BuildCellKey(item.RowKey, cell.Column, timestamp)
		value := EncodeValue(cell.Value)

		partition, err := w.table.partitionForColumnFamily(cell.Column.Family)
		if err != nil {
			return err
		}

		w.batch.Insert(partition, key, value)
	}
	return nil
}

// Finalize commits every staged write atomically.
func (w *Writer) Finalize() error {
	return wrapStorage(w.batch.Commit())
}
