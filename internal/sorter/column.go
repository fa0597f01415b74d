package sorter

import "strings"

// ColumnType selects how a column's cells are parsed and compared.
type ColumnType int

const (
	Unsortable ColumnType = iota
	Text
	Number
	Time
	Duration
)

// ParseColumnType maps a markup type name to a ColumnType. Unknown names
// produce Unsortable.
func ParseColumnType(s string) ColumnType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text":
		return Text
	case "number":
		return Number
	case "time":
		return Time
	case "duration":
		return Duration
	default:
		return Unsortable
	}
}

func (t ColumnType) String() string {
	switch t {
	case Text:
		return "text"
	case Number:
		return "number"
	case Time:
		return "time"
	case Duration:
		return "duration"
	default:
		return ""
	}
}

// Order is the direction a column sorts in when it is first selected.
type Order int

const (
	Ascending Order = iota
	Descending
)

// ParseOrder returns Descending only for "descending"; anything else,
// including the empty string, is Ascending.
func ParseOrder(s string) Order {
	if strings.EqualFold(strings.TrimSpace(s), "descending") {
		return Descending
	}
	return Ascending
}

func (o Order) String() string {
	if o == Descending {
		return "descending"
	}
	return "ascending"
}

// Column describes one table header. Columns are immutable once the table
// is built.
type Column struct {
	Index        int
	Name         string
	Type         ColumnType
	InitialOrder Order
}

// Sortable reports whether clicking the column reorders the table.
func (c Column) Sortable() bool {
	return c.Type != Unsortable
}

// Cell is one table cell. DateTime holds the machine-readable timestamp of
// a time cell and is empty when the cell has none.
type Cell struct {
	Text     string
	DateTime string
}

// Row is a table row. Cells are addressed by column index and compared by
// pointer identity for caching.
type Row struct {
	ID    string
	Cells []*Cell
}

// Cell returns the cell at column index i, or nil when the row is short.
func (r *Row) Cell(i int) *Cell {
	if i < 0 || i >= len(r.Cells) {
		return nil
	}
	return r.Cells[i]
}
