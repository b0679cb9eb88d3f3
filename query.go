package smoltable

import "github.com/goccy/go-json"

// This file defines the request/response DTOs for smoltable's three query
// shapes. Grounded on original_source/smoltable/src/query/{row,scan,count}.rs.
// query/prefix.rs (a simpler, prefix-only predecessor of query/scan.rs) is
// superseded here: Scan's ScanMode already covers prefix mode as one of
// its two variants, so there is no separate QueryPrefixInput type.

// ScanRange bounds a row-key range scan: rows in [Start, End) when
// Inclusive is false, [Start, End] when true.
type ScanRange struct {
	Start     string `json:"start"`
	End       string `json:"end"`
	Inclusive bool   `json:"inclusive"`
}

// ScanMode selects how Table.Scan bounds the set of rows it visits:
// either every row sharing a prefix, or every row in an explicit range.
// Exactly one of Prefix/Range is set.
type ScanMode struct {
	Prefix *string
	Range  *ScanRange
}

// scanModeWire mirrors the original's externally tagged
// #[serde(flatten)] ScanMode enum: {"prefix": "a"} or
// {"range": {"start":...,"end":...,"inclusive":...}}.
type scanModeWire struct {
	Prefix *string    `json:"prefix,omitempty"`
	Range  *ScanRange `json:"range,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (m ScanMode) MarshalJSON() ([]byte, error) {
	wire := scanModeWire{Prefix: m.Prefix, Range: m.Range}
	return json.Marshal(wire)
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *ScanMode) UnmarshalJSON(data []byte) error {
	var wire scanModeWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	m.Prefix = wire.Prefix
	m.Range = wire.Range
	return nil
}

// ScanRowOptions bounds the row dimension of a Scan: which rows (via
// Scan), how many, how many cells per row, and an optional sampling rate.
type ScanRowOptions struct {
	Scan      ScanMode `json:"-"`
	Offset    *uint32  `json:"offset,omitempty"`
	Limit     *uint32  `json:"limit,omitempty"`
	CellLimit *uint32  `json:"cell_limit,omitempty"`
	Sample    *float32 `json:"sample,omitempty"`
}

// ScanColumnOptions narrows a Scan to specific columns.
type ScanColumnOptions struct {
	CellLimit *uint32      `json:"cell_limit,omitempty"`
	Filter    ColumnFilter `json:"-"`
}

// ScanCellOptions caps the total number of cells a Scan visits across
// every row, regardless of row/column limits.
type ScanCellOptions struct {
	Limit *uint32 `json:"limit,omitempty"`
}

// ScanInput is the request shape for Table.Scan.
type ScanInput struct {
	Row    ScanRowOptions     `json:"row"`
	Column *ScanColumnOptions `json:"column,omitempty"`
	Cell   *ScanCellOptions   `json:"cell,omitempty"`
}

// ScanOutput is Table.Scan's result.
type ScanOutput struct {
	Rows                  []*Row `json:"rows"`
	AffectedLocalityGroups int    `json:"affected_locality_groups"`
	RowsScannedCount      uint64 `json:"rows_scanned_count"`
	CellsScannedCount     uint64 `json:"cells_scanned_count"`
	BytesScannedCount     uint64 `json:"bytes_scanned_count"`
}

// QueryRowInput is the request shape for Table.GetRow: a single row key,
// plus an optional column filter and per-column cell limit.
type QueryRowInput struct {
	RowKey       string
	CellLimit    *uint32
	ColumnFilter ColumnFilter
}

// QueryRowOutput is Table.GetRow's result. Row is nil when the row has no
// matching cells.
type QueryRowOutput struct {
	Row               *Row   `json:"row"`
	CellsScannedCount uint64 `json:"cells_scanned_count"`
	BytesScannedCount uint64 `json:"bytes_scanned_count"`
}

// CountInput is the request shape for Table.Count: the same row/column
// scan shape as Scan, but only aggregate counters are returned.
type CountInput struct {
	Row    ScanRowOptions     `json:"row"`
	Column *ScanColumnOptions `json:"column,omitempty"`
}

// CountOutput is Table.Count's result.
type CountOutput struct {
	AffectedLocalityGroups int    `json:"affected_locality_groups"`
	RowCount               uint64 `json:"row_count"`
	CellCount              uint64 `json:"cell_count"`
	BytesScannedCount      uint64 `json:"bytes_scanned_count"`
}

// defaultScanLimit is used whenever a Scan/GetRow request omits a limit,
// matching the original's u16::MAX default in table/mod.rs. Count applies
// no limits.
const defaultScanLimit = 65535
