// Package execution implements the pull-based relational operators:
// sequential scan, filter, nested-loop join, grouped aggregation, insert and
// delete. Operators compose into trees and are driven from the root by
// repeated Next calls.
package execution

import (
	"mit.edu/dsg/heapdb/storage"
)

// Operator is the pull iterator every execution node implements.
//
// Contract: Open must be called before HasNext or Next, and an operator
// opens its children during its own Open. Next past end-of-stream fails
// with NoSuchElement. Close makes the iterator inert (HasNext reports
// false) and closes the children; a later Open re-arms it. Rewind restarts
// the stream from the beginning, equivalent to Close followed by Open.
type Operator interface {
	Open() error
	HasNext() (bool, error)
	Next() (*storage.Tuple, error)
	Rewind() error
	Close() error

	// Desc returns the schema of the tuples the operator emits.
	Desc() *storage.TupleDesc

	// Children and SetChildren expose the operator tree to planners and
	// rewriters. Leaf operators return nil and ignore SetChildren.
	Children() []Operator
	SetChildren(children []Operator)
}
