// Package msglist keeps a filtered, explicitly sorted view over a table of
// messages and answers positional text and value queries against it.
package msglist

// Role selects which representation of a cell is read.
type Role int

const (
	// RoleDisplay is the human readable text of a cell.
	RoleDisplay Role = iota
	// RoleSort is the comparison value of a cell, e.g. a unix timestamp
	// where the display value is a formatted date.
	RoleSort
)

type Order int

const (
	Ascending Order = iota
	Descending
)

const (
	// AnyColumn makes a filter test every column of a row.
	AnyColumn = -1
	// Unsorted keeps the view in logical row order.
	Unsorted = -1
	// Unbounded lifts the hit limit of Match.
	Unbounded = -1
)

// Source is the logical row table a Projection reads from.
type Source interface {
	RowCount() int
	ColumnCount() int
	RowID(row int) int64
	Value(row, column int, role Role) any
}
