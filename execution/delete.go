package execution

import (
	"mit.edu/dsg/heapdb/common"
	"mit.edu/dsg/heapdb/storage"
)

// Delete removes every tuple its child produces, locating each by its
// RecordID, and emits a single one-field integer tuple holding the number
// of rows deleted. The child is typically a scan or a filter over the
// target table, so its tuples carry valid RecordIDs.
type Delete struct {
	ctx   *Context
	tid   common.TransactionID
	child Operator
	desc  *storage.TupleDesc

	opened  bool
	count   int32
	drained bool
	emitted bool
}

func NewDelete(ctx *Context, tid common.TransactionID, child Operator) *Delete {
	return &Delete{
		ctx:   ctx,
		tid:   tid,
		child: child,
		desc:  storage.NewTupleDesc(storage.TDItem{Type: common.IntType, Name: "deleted"}),
	}
}

func (d *Delete) Open() error {
	if err := d.child.Open(); err != nil {
		return err
	}
	d.opened = true
	d.emitted = false
	if d.drained {
		return nil
	}
	for {
		ok, err := d.child.HasNext()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		t, err := d.child.Next()
		if err != nil {
			return err
		}
		if err := d.ctx.Pool.DeleteTuple(d.tid, t); err != nil {
			return err
		}
		d.count++
	}
	d.drained = true
	return nil
}

func (d *Delete) HasNext() (bool, error) {
	return d.opened && !d.emitted, nil
}

func (d *Delete) Next() (*storage.Tuple, error) {
	ok, _ := d.HasNext()
	if !ok {
		return nil, common.Errorf(common.NoSuchElement, "delete already reported its count")
	}
	d.emitted = true
	return storage.NewTuple(d.desc, []common.Field{common.NewIntField(d.count)}), nil
}

func (d *Delete) Rewind() error {
	d.emitted = false
	return nil
}

func (d *Delete) Close() error {
	d.opened = false
	return d.child.Close()
}

func (d *Delete) Desc() *storage.TupleDesc {
	return d.desc
}

func (d *Delete) Children() []Operator {
	return []Operator{d.child}
}

func (d *Delete) SetChildren(children []Operator) {
	common.Assert(len(children) == 1, "delete takes exactly one child")
	d.child = children[0]
}
