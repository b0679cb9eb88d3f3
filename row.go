package smoltable

// Row is the user-facing aggregate of every cell sharing one row key: a
// nested map of family -> qualifier -> version history (newest first). No
// Row ever exists at rest; it is recovered by scanning "row_key:" as a
// prefix across whichever locality groups a query touches.
type Row struct {
	RowKey  string                         `json:"row_key"`
	Columns map[string]map[string][]Cell `json:"columns"`
}

// newRow allocates an empty Row for key.
func newRow(key string) *Row {
	return &Row{RowKey: key, Columns: make(map[string]map[string][]Cell)}
}

// FamilyCount returns the number of distinct column families with data in
// this row.
func (r *Row) FamilyCount() int {
	return len(r.Columns)
}

// ColumnCount returns the number of distinct (family, qualifier) columns
// with data in this row.
func (r *Row) ColumnCount() int {
	n := 0
	for _, family := range r.Columns {
		n += len(family)
	}
	return n
}

// CellCount returns the total number of cell versions across every column
// in this row.
func (r *Row) CellCount() int {
	n := 0
	for _, family := range r.Columns {
		for _, versions := range family {
			n += len(versions)
		}
	}
	return n
}

// appendCell records one version under (family, qualifier), without
// enforcing any limit; callers apply column/row cell limits before
// calling this.
func (r *Row) appendCell(column ColumnKey, cell Cell) {
	family, ok := r.Columns[column.Family]
	if !ok {
		family = make(map[string][]Cell)
		r.Columns[column.Family] = family
	}
	qualifier := column.QualifierOrEmpty()
	family[qualifier] = append(family[qualifier], cell)
}
