package execution

import (
	"fmt"

	"mit.edu/dsg/heapdb/common"
	"mit.edu/dsg/heapdb/storage"
)

// Predicate compares one field of a tuple against a constant.
type Predicate struct {
	field   int
	op      common.Op
	operand common.Field
}

func NewPredicate(field int, op common.Op, operand common.Field) Predicate {
	return Predicate{field: field, op: op, operand: operand}
}

// Filter evaluates the predicate against t.
func (p Predicate) Filter(t *storage.Tuple) bool {
	return t.Field(p.field).Compare(p.op, p.operand)
}

func (p Predicate) String() string {
	return fmt.Sprintf("f%d %s %s", p.field, p.op, p.operand)
}

// JoinPredicate compares a field of a left tuple against a field of a right
// tuple. The two fields must share a comparable type; LIKE is not a join
// operator.
type JoinPredicate struct {
	leftField  int
	rightField int
	op         common.Op
}

func NewJoinPredicate(leftField int, op common.Op, rightField int) JoinPredicate {
	common.Assert(op != common.OpLike, "LIKE is not a join operator")
	return JoinPredicate{leftField: leftField, op: op, rightField: rightField}
}

// Filter evaluates the predicate over a (left, right) pair.
func (p JoinPredicate) Filter(left, right *storage.Tuple) bool {
	return left.Field(p.leftField).Compare(p.op, right.Field(p.rightField))
}

func (p JoinPredicate) String() string {
	return fmt.Sprintf("left.f%d %s right.f%d", p.leftField, p.op, p.rightField)
}
