// Package sorter reorders table rows by typed columns and tells subscribers
// when the order changes.
package sorter

import (
	"slices"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// State records which column the rows are currently sorted by. Column is
// -1 when no column is selected.
type State struct {
	Column    int
	Ascending bool
}

// Selected reports whether a column is selected.
func (s State) Selected() bool {
	return s.Column >= 0
}

// Option configures a Table.
type Option func(*Table)

// WithLanguage sets the collation language used by text columns.
func WithLanguage(tag language.Tag) Option {
	return func(t *Table) {
		t.collator = collate.New(tag)
	}
}

type subscriber struct {
	id int
	fn func(order []string)
}

// Table holds rows in their current order. It is not safe for concurrent
// use; all calls are expected from one event loop.
type Table struct {
	columns  []Column
	rows     []*Row
	state    State
	cache    map[*Cell]Value
	collator *collate.Collator
	subs     []subscriber
	nextSub  int
}

// New builds a table over rows in their static order. sortedBy names the
// column the static order is already sorted by, or -1.
func New(columns []Column, rows []*Row, sortedBy int, opts ...Option) *Table {
	t := &Table{
		columns: slices.Clone(columns),
		rows:    slices.Clone(rows),
		state:   State{Column: -1, Ascending: true},
		cache:   make(map[*Cell]Value),
	}
	for i := range t.columns {
		t.columns[i].Index = i
	}
	if sortedBy >= 0 && sortedBy < len(t.columns) {
		t.state = State{
			Column:    sortedBy,
			Ascending: t.columns[sortedBy].InitialOrder != Descending,
		}
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.collator == nil {
		t.collator = collate.New(language.Und)
	}
	return t
}

// Columns returns the table's column definitions.
func (t *Table) Columns() []Column {
	return slices.Clone(t.columns)
}

// Rows returns the rows in their current order.
func (t *Table) Rows() []*Row {
	return slices.Clone(t.rows)
}

// Order returns the row ids in their current order.
func (t *Table) Order() []string {
	ids := make([]string, len(t.rows))
	for i, r := range t.rows {
		ids[i] = r.ID
	}
	return ids
}

// State returns the current sort state.
func (t *Table) State() State {
	return t.state
}

// HeaderState reports whether column i is the selected column and, if so,
// its direction.
func (t *Table) HeaderState(i int) (selected, ascending bool) {
	if t.state.Column != i {
		return false, false
	}
	return true, t.state.Ascending
}

// Value returns the parsed value of c for a column of type typ. Values are
// cached per cell and never invalidated, so cell text must not change once
// the table is built.
func (t *Table) Value(typ ColumnType, c *Cell) Value {
	if c == nil {
		return Value{}
	}
	if v, ok := t.cache[c]; ok {
		return v
	}
	v := parseValue(typ, c)
	t.cache[c] = v
	return v
}

// Click handles a header click: the selected column is reversed, any other
// sortable column is sorted. It reports whether the rows were reordered.
func (t *Table) Click(i int) bool {
	if i < 0 || i >= len(t.columns) || !t.columns[i].Sortable() {
		return false
	}
	if t.state.Column == i {
		t.Reverse()
	} else {
		t.Sort(i)
	}
	return true
}

// Sort orders the rows by column i in the column's initial order. Rows with
// equal keys may change relative position.
func (t *Table) Sort(i int) {
	if i < 0 || i >= len(t.columns) {
		return
	}
	col := t.columns[i]
	ascending := col.InitialOrder != Descending

	slices.SortFunc(t.rows, func(a, b *Row) int {
		c := t.compare(col.Type, a.Cell(i), b.Cell(i))
		if !ascending {
			c = -c
		}
		return c
	})

	t.state = State{Column: i, Ascending: ascending}
	log.Debug().Int("column", i).Str("type", col.Type.String()).Bool("ascending", ascending).Msg("Table sorted")
	t.notify()
}

// Reverse flips the current row order without comparing cells.
func (t *Table) Reverse() {
	slices.Reverse(t.rows)
	t.state.Ascending = !t.state.Ascending
	log.Debug().Int("column", t.state.Column).Bool("ascending", t.state.Ascending).Msg("Table reversed")
	t.notify()
}

// Subscribe registers fn to receive the row-id order after every reorder.
// The returned func removes the subscription.
func (t *Table) Subscribe(fn func(order []string)) (unsubscribe func()) {
	id := t.nextSub
	t.nextSub++
	t.subs = append(t.subs, subscriber{id: id, fn: fn})
	return func() {
		t.subs = slices.DeleteFunc(t.subs, func(s subscriber) bool { return s.id == id })
	}
}

func (t *Table) compare(typ ColumnType, a, b *Cell) int {
	va := t.Value(typ, a)
	vb := t.Value(typ, b)
	if typ == Text {
		return t.collator.CompareString(va.Text, vb.Text)
	}
	return compareNumbers(va.Num, vb.Num)
}

func (t *Table) notify() {
	subs := slices.Clone(t.subs)
	for _, s := range subs {
		s.fn(t.Order())
	}
}
