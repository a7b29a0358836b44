package execution

import (
	"fmt"

	"github.com/tidwall/btree"

	"mit.edu/dsg/heapdb/common"
	"mit.edu/dsg/heapdb/storage"
)

// AggOp is a grouped-aggregation operator.
type AggOp int

const (
	AggMin AggOp = iota
	AggMax
	AggSum
	AggAvg
	AggCount
)

func (op AggOp) String() string {
	switch op {
	case AggMin:
		return "min"
	case AggMax:
		return "max"
	case AggSum:
		return "sum"
	case AggAvg:
		return "avg"
	case AggCount:
		return "count"
	}
	return "??"
}

// NoGrouping selects ungrouped aggregation: the whole input is one group.
const NoGrouping = -1

// groupState accumulates one group's running aggregate.
type groupState struct {
	key   common.Field
	count int32
	sum   int32
	min   int32
	max   int32
}

func (g *groupState) fold(v int32) {
	if g.count == 0 || v < g.min {
		g.min = v
	}
	if g.count == 0 || v > g.max {
		g.max = v
	}
	g.sum += v
	g.count++
}

func (g *groupState) result(op AggOp) int32 {
	switch op {
	case AggMin:
		return g.min
	case AggMax:
		return g.max
	case AggSum:
		return g.sum
	case AggAvg:
		if g.count == 0 {
			return 0
		}
		return g.sum / g.count
	case AggCount:
		return g.count
	}
	panic("unknown aggregate operator")
}

// Aggregate computes MIN/MAX/SUM/AVG/COUNT over one field of its child,
// optionally grouped by another field. Open drains the child into an ordered
// group table, so groups are emitted in ascending key order and memory use
// is O(groups).
//
// COUNT applies to fields of any type; the other operators require an
// integer aggregate field. AVG is the integer quotient sum/count. With no
// grouping the output is exactly one row even for empty input: SUM, COUNT
// and AVG are 0, and MIN/MAX are 0 as well (there is no value to report).
// With grouping, empty input yields no rows.
//
// Output schema: grouped → (groupFieldType, int) named (groupField,
// "op aggField"); ungrouped → a single int field named "op aggField".
type Aggregate struct {
	child  Operator
	aField int
	gField int
	op     AggOp
	desc   *storage.TupleDesc

	opened  bool
	results []*storage.Tuple
	pos     int
}

func NewAggregate(child Operator, aField, gField int, op AggOp) *Aggregate {
	childDesc := child.Desc()
	aggName := fmt.Sprintf("%s %s", op, childDesc.NameAt(aField))

	var desc *storage.TupleDesc
	if gField == NoGrouping {
		desc = storage.NewTupleDesc(storage.TDItem{Type: common.IntType, Name: aggName})
	} else {
		desc = storage.NewTupleDesc(
			storage.TDItem{Type: childDesc.TypeAt(gField), Name: childDesc.NameAt(gField)},
			storage.TDItem{Type: common.IntType, Name: aggName},
		)
	}
	return &Aggregate{child: child, aField: aField, gField: gField, op: op, desc: desc}
}

func (a *Aggregate) Open() error {
	if a.op != AggCount && a.child.Desc().TypeAt(a.aField) != common.IntType {
		return common.Errorf(common.IllegalState,
			"%s requires an integer aggregate field, got %s", a.op, a.child.Desc().TypeAt(a.aField))
	}
	if err := a.child.Open(); err != nil {
		return err
	}
	if err := a.drain(); err != nil {
		_ = a.child.Close()
		return err
	}
	a.opened = true
	a.pos = 0
	return nil
}

func (a *Aggregate) drain() error {
	var ungrouped groupState
	groups := btree.NewBTreeG[*groupState](func(x, y *groupState) bool {
		return x.key.Less(y.key)
	})

	for {
		ok, err := a.child.HasNext()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		t, err := a.child.Next()
		if err != nil {
			return err
		}

		state := &ungrouped
		if a.gField != NoGrouping {
			key := t.Field(a.gField)
			if existing, ok := groups.Get(&groupState{key: key}); ok {
				state = existing
			} else {
				state = &groupState{key: key}
				groups.Set(state)
			}
		}

		// COUNT folds a count regardless of the field's type; the others
		// fold the integer value itself.
		if a.op == AggCount && a.child.Desc().TypeAt(a.aField) != common.IntType {
			state.count++
		} else {
			state.fold(t.Field(a.aField).IntValue())
		}
	}

	a.results = a.results[:0]
	if a.gField == NoGrouping {
		t := storage.NewTuple(a.desc, []common.Field{common.NewIntField(ungrouped.result(a.op))})
		a.results = append(a.results, t)
	} else {
		groups.Scan(func(g *groupState) bool {
			t := storage.NewTuple(a.desc, []common.Field{
				g.key,
				common.NewIntField(g.result(a.op)),
			})
			a.results = append(a.results, t)
			return true
		})
	}
	return nil
}

func (a *Aggregate) HasNext() (bool, error) {
	if !a.opened {
		return false, nil
	}
	return a.pos < len(a.results), nil
}

func (a *Aggregate) Next() (*storage.Tuple, error) {
	ok, err := a.HasNext()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.Errorf(common.NoSuchElement, "aggregate exhausted")
	}
	t := a.results[a.pos]
	a.pos++
	return t, nil
}

func (a *Aggregate) Rewind() error {
	a.pos = 0
	return nil
}

func (a *Aggregate) Close() error {
	a.opened = false
	a.results = nil
	a.pos = 0
	return a.child.Close()
}

func (a *Aggregate) Desc() *storage.TupleDesc {
	return a.desc
}

func (a *Aggregate) Children() []Operator {
	return []Operator{a.child}
}

func (a *Aggregate) SetChildren(children []Operator) {
	common.Assert(len(children) == 1, "aggregate takes exactly one child")
	a.child = children[0]
}
