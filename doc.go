// Package smoltable implements the core of a lightweight wide-column store
// modeled on Bigtable.
//
// A table is a named collection of rows. Each row is identified by an
// opaque string key and carries a sparse set of timestamped cells grouped
// into column families. Cells are addressed by (row key, column family,
// qualifier, timestamp) and sorted so that a row's cells are contiguous,
// a column's cells within a row are contiguous, and versions of one column
// sort newest-first.
//
// The engine itself does not manage disk layout directly; it is built on
// top of the lsm package, which exposes a small Bigtable-style keyspace of
// durable, transactionally-batched "partitions" sharing a write-ahead log.
// Column families are grouped into locality groups, each backed by its own
// partition, so that a query only has to touch the partitions its column
// filter actually needs.
//
// Four pieces make up the core:
//
//   - the cell codec (cell.go, columnkey.go, columnfilter.go), which maps
//     logical (row, column, timestamp, value) tuples to the sortable byte
//     keys a partition snapshot iterates in storage order;
//   - locality-group routing (locality.go), which decides which partitions
//     a given column filter must visit;
//   - the layered reader pipeline (reader.go, rowreader.go, mergereader.go),
//     which turns partition snapshots into filtered, limited, accounted
//     cell streams;
//   - garbage collection (table.go's RunVersionGC), a streaming pass that
//     enforces per-column-family version and TTL retention.
//
// Write path, column-family management and the single-row mutator round
// out the package since they cannot be separated from the codec and
// locality-group contracts. TableHost (host.go) and ManifestTable
// (manifest.go) own the one remaining piece of bootstrap a multi-table
// deployment needs: which tables exist, and restoring them on reopen.
//
// Out of scope: an HTTP facade, background worker scheduling, dashboard
// rendering, and a general metrics/observability backend are external
// collaborators layered on top of this package by a host process; this
// package only exposes the blocking operations (queries, writes, GC,
// count) those collaborators call into, plus the minimal per-table
// metrics companion TableHost wires up for them to read from.
package smoltable
