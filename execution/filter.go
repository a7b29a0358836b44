package execution

import (
	"mit.edu/dsg/heapdb/common"
	"mit.edu/dsg/heapdb/storage"
)

// Filter yields the child's tuples for which the predicate holds. Output
// schema equals the child's.
type Filter struct {
	pred  Predicate
	child Operator

	opened bool
	next   *storage.Tuple
}

func NewFilter(pred Predicate, child Operator) *Filter {
	return &Filter{pred: pred, child: child}
}

func (f *Filter) Open() error {
	if err := f.child.Open(); err != nil {
		return err
	}
	f.opened = true
	f.next = nil
	return nil
}

func (f *Filter) HasNext() (bool, error) {
	if !f.opened {
		return false, nil
	}
	if f.next != nil {
		return true, nil
	}
	for {
		ok, err := f.child.HasNext()
		if err != nil || !ok {
			return false, err
		}
		t, err := f.child.Next()
		if err != nil {
			return false, err
		}
		if f.pred.Filter(t) {
			f.next = t
			return true, nil
		}
	}
}

func (f *Filter) Next() (*storage.Tuple, error) {
	ok, err := f.HasNext()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.Errorf(common.NoSuchElement, "filter exhausted")
	}
	t := f.next
	f.next = nil
	return t, nil
}

func (f *Filter) Rewind() error {
	f.next = nil
	return f.child.Rewind()
}

func (f *Filter) Close() error {
	f.opened = false
	f.next = nil
	return f.child.Close()
}

func (f *Filter) Desc() *storage.TupleDesc {
	return f.child.Desc()
}

func (f *Filter) Children() []Operator {
	return []Operator{f.child}
}

func (f *Filter) SetChildren(children []Operator) {
	common.Assert(len(children) == 1, "filter takes exactly one child")
	f.child = children[0]
}
