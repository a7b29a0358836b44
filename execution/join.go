package execution

import (
	"mit.edu/dsg/heapdb/common"
	"mit.edu/dsg/heapdb/storage"
)

// Join is a nested-loop inner join: for each left tuple the right child is
// rescanned from the start (the right operator must support Rewind), and
// every pair satisfying the predicate is emitted as the left fields
// followed by the right fields. Output schema is Merge(left, right).
// Memory use is O(1)
// beyond the children's own state.
type Join struct {
	pred  JoinPredicate
	left  Operator
	right Operator
	desc  *storage.TupleDesc

	opened  bool
	curLeft *storage.Tuple
	next    *storage.Tuple
}

func NewJoin(pred JoinPredicate, left, right Operator) *Join {
	return &Join{
		pred:  pred,
		left:  left,
		right: right,
		desc:  storage.Merge(left.Desc(), right.Desc()),
	}
}

func (j *Join) Open() error {
	if err := j.left.Open(); err != nil {
		return err
	}
	if err := j.right.Open(); err != nil {
		_ = j.left.Close()
		return err
	}
	j.opened = true
	j.curLeft = nil
	j.next = nil
	return nil
}

func (j *Join) HasNext() (bool, error) {
	if !j.opened {
		return false, nil
	}
	if j.next != nil {
		return true, nil
	}
	t, err := j.fetch()
	if err != nil {
		return false, err
	}
	j.next = t
	return t != nil, nil
}

func (j *Join) fetch() (*storage.Tuple, error) {
	for {
		if j.curLeft == nil {
			ok, err := j.left.HasNext()
			if err != nil || !ok {
				return nil, err
			}
			j.curLeft, err = j.left.Next()
			if err != nil {
				return nil, err
			}
			if err := j.right.Rewind(); err != nil {
				return nil, err
			}
		}

		for {
			ok, err := j.right.HasNext()
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
			r, err := j.right.Next()
			if err != nil {
				return nil, err
			}
			if j.pred.Filter(j.curLeft, r) {
				return j.merge(j.curLeft, r), nil
			}
		}
		// Right side exhausted for this left tuple; advance the left.
		j.curLeft = nil
	}
}

func (j *Join) merge(l, r *storage.Tuple) *storage.Tuple {
	fields := make([]common.Field, 0, j.desc.NumFields())
	for i := 0; i < l.Desc().NumFields(); i++ {
		fields = append(fields, l.Field(i))
	}
	for i := 0; i < r.Desc().NumFields(); i++ {
		fields = append(fields, r.Field(i))
	}
	return storage.NewTuple(j.desc, fields)
}

func (j *Join) Next() (*storage.Tuple, error) {
	ok, err := j.HasNext()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.Errorf(common.NoSuchElement, "join exhausted")
	}
	t := j.next
	j.next = nil
	return t, nil
}

func (j *Join) Rewind() error {
	j.curLeft = nil
	j.next = nil
	if err := j.left.Rewind(); err != nil {
		return err
	}
	return j.right.Rewind()
}

func (j *Join) Close() error {
	j.opened = false
	j.curLeft = nil
	j.next = nil
	errL := j.left.Close()
	errR := j.right.Close()
	if errL != nil {
		return errL
	}
	return errR
}

func (j *Join) Desc() *storage.TupleDesc {
	return j.desc
}

func (j *Join) Children() []Operator {
	return []Operator{j.left, j.right}
}

func (j *Join) SetChildren(children []Operator) {
	common.Assert(len(children) == 2, "join takes exactly two children")
	j.left, j.right = children[0], children[1]
	j.desc = storage.Merge(j.left.Desc(), j.right.Desc())
}
