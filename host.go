package smoltable

import (
	"sync"

	"smoltable/lsm"
)

// metricsCapacityBytes bounds each table's companion metrics table. Metrics
// are a write-heavy, read-rarely stream where the oldest samples are the
// least interesting, so the metrics data partition uses Fifo compaction
// instead of the general-purpose Levelled strategy user tables get.
const metricsCapacityBytes = 8 * 1024 * 1024

func metricsTableName(name string) string { return "_metrics_" + name }

func metricsStrategy() lsm.CompactionStrategy {
	return lsm.Fifo{CapacityBytes: metricsCapacityBytes}
}

// MonitoredTable pairs a user-facing Table with a metrics Table recording
// its own operation counters and latencies, the same pairing
// original_source/server/src/app_state.rs's MonitoredSmoltable makes.
type MonitoredTable struct {
	Table   *Table
	Metrics *Table
}

// RecordLatency appends one latency sample for operation to mt's metrics
// table. A failure here is logged by the caller, never surfaced to the
// request that triggered it — metrics collection must not make a table
// operation fail.
func (mt *MonitoredTable) RecordLatency(operation string, nanos uint64) error {
	w := NewWriter(mt.Metrics)
	if err := w.Write(RowWriteItem{
		RowKey: operation,
		Cells: []ColumnWriteItem{
			{Column: NewFamilyColumnKey("latency"), Value: I64Value(int64(nanos))},
		},
	}); err != nil {
		return err
	}
	return w.Finalize()
}

// TableHost owns every user table in a keyspace, keyed by name, alongside
// each table's metrics companion, and the keyspace-wide manifest recording
// which tables exist. Grounded on
// original_source/server/src/app_state.rs's AppState.
type TableHost struct {
	keyspace lsm.Keyspace
	manifest *ManifestTable
	log      LogFuncs

	tablesMu sync.RWMutex
	tables   map[string]*MonitoredTable
}

// OpenTableHost opens the keyspace-wide manifest and every table it
// references, restoring a TableHost to the state it was in before the
// process last stopped.
func OpenTableHost(keyspace lsm.Keyspace, log LogFuncs) (*TableHost, error) {
	manifest, err := OpenManifestTable(keyspace)
	if err != nil {
		return nil, err
	}

	h := &TableHost{
		keyspace: keyspace,
		manifest: manifest,
		log:      log,
		tables:   make(map[string]*MonitoredTable),
	}

	names, err := manifest.ListUserTableNames()
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		mt, err := h.openExisting(name)
		if err != nil {
			return nil, err
		}
		h.tables[name] = mt
		h.log.Infof("restored table %q", name)
	}

	return h, nil
}

func (h *TableHost) openExisting(name string) (*MonitoredTable, error) {
	table, err := OpenTable(name, h.keyspace, h.log)
	if err != nil {
		return nil, err
	}
	metrics, err := OpenTableWithStrategy(metricsTableName(name), h.keyspace, metricsStrategy(), h.log)
	if err != nil {
		return nil, err
	}
	return &MonitoredTable{Table: table, Metrics: metrics}, nil
}

// CreateTable registers and opens a brand new table, failing with a
// KindConflict Error if name is already in use.
func (h *TableHost) CreateTable(name string) (*MonitoredTable, error) {
	if !IsValidIdentifier(name) {
		return nil, invalidArgErrorf("invalid table name %q", name)
	}
	if IsReservedTableName(name) {
		return nil, invalidArgErrorf("table name %q is reserved for internal use", name)
	}

	h.tablesMu.Lock()
	defer h.tablesMu.Unlock()

	if _, exists := h.tables[name]; exists {
		return nil, conflictErrorf("table %q already exists", name)
	}

	mt, err := h.openExisting(name)
	if err != nil {
		return nil, err
	}

	if err := h.manifest.PersistUserTable(name); err != nil {
		return nil, err
	}

	h.tables[name] = mt
	h.log.Infof("created table %q", name)
	return mt, nil
}

// GetTable returns the named table, or ok=false if no such table exists.
func (h *TableHost) GetTable(name string) (*MonitoredTable, bool) {
	h.tablesMu.RLock()
	defer h.tablesMu.RUnlock()
	mt, ok := h.tables[name]
	return mt, ok
}

// ListTableNames returns every currently registered table's name.
func (h *TableHost) ListTableNames() []string {
	h.tablesMu.RLock()
	defer h.tablesMu.RUnlock()

	names := make([]string, 0, len(h.tables))
	for name := range h.tables {
		names = append(names, name)
	}
	return names
}

// DropTable unregisters and permanently deletes name's table and metrics
// partitions. Grounded on
// original_source/server/src/api/delete_table.rs.
func (h *TableHost) DropTable(name string) error {
	h.tablesMu.Lock()
	defer h.tablesMu.Unlock()

	mt, exists := h.tables[name]
	if !exists {
		return nil
	}

	if err := h.manifest.DeleteUserTable(name); err != nil {
		return err
	}
	if err := mt.Table.dropPartitions(); err != nil {
		return err
	}
	if err := mt.Metrics.dropPartitions(); err != nil {
		return err
	}

	delete(h.tables, name)
	h.log.Infof("dropped table %q", name)
	return nil
}
