package execution

import (
	"mit.edu/dsg/heapdb/common"
	"mit.edu/dsg/heapdb/storage"
)

// Insert drains its child into the target table through the buffer pool and
// emits a single one-field integer tuple holding the number of rows
// inserted. The child's schema must equal the table's.
type Insert struct {
	ctx     *Context
	tid     common.TransactionID
	child   Operator
	tableID common.ObjectID
	desc    *storage.TupleDesc

	opened  bool
	count   int32
	drained bool
	emitted bool
}

func NewInsert(ctx *Context, tid common.TransactionID, child Operator, tableID common.ObjectID) (*Insert, error) {
	tableDesc, err := ctx.Catalog.DescFor(tableID)
	if err != nil {
		return nil, err
	}
	if !child.Desc().Equals(tableDesc) {
		return nil, common.Errorf(common.SchemaMismatch,
			"child schema (%s) does not match table schema (%s)", child.Desc(), tableDesc)
	}
	return &Insert{
		ctx:     ctx,
		tid:     tid,
		child:   child,
		tableID: tableID,
		desc:    storage.NewTupleDesc(storage.TDItem{Type: common.IntType, Name: "inserted"}),
	}, nil
}

func (ins *Insert) Open() error {
	if err := ins.child.Open(); err != nil {
		return err
	}
	ins.opened = true
	ins.emitted = false
	if ins.drained {
		// Reopening does not re-insert; the count is already final.
		return nil
	}
	for {
		ok, err := ins.child.HasNext()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		t, err := ins.child.Next()
		if err != nil {
			return err
		}
		if err := ins.ctx.Pool.InsertTuple(ins.tid, ins.tableID, t); err != nil {
			return err
		}
		ins.count++
	}
	ins.drained = true
	return nil
}

func (ins *Insert) HasNext() (bool, error) {
	return ins.opened && !ins.emitted, nil
}

func (ins *Insert) Next() (*storage.Tuple, error) {
	ok, _ := ins.HasNext()
	if !ok {
		return nil, common.Errorf(common.NoSuchElement, "insert already reported its count")
	}
	ins.emitted = true
	return storage.NewTuple(ins.desc, []common.Field{common.NewIntField(ins.count)}), nil
}

func (ins *Insert) Rewind() error {
	ins.emitted = false
	return nil
}

func (ins *Insert) Close() error {
	ins.opened = false
	return ins.child.Close()
}

func (ins *Insert) Desc() *storage.TupleDesc {
	return ins.desc
}

func (ins *Insert) Children() []Operator {
	return []Operator{ins.child}
}

func (ins *Insert) SetChildren(children []Operator) {
	common.Assert(len(children) == 1, "insert takes exactly one child")
	ins.child = children[0]
}
