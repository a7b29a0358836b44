package common

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Op is a relational comparison operator applied between two Fields.
type Op int

const (
	OpEquals Op = iota
	OpNotEquals
	OpLessThan
	OpLessThanOrEq
	OpGreaterThan
	OpGreaterThanOrEq
	// OpLike is substring containment; it applies to string fields only.
	OpLike
)

func (op Op) String() string {
	switch op {
	case OpEquals:
		return "="
	case OpNotEquals:
		return "<>"
	case OpLessThan:
		return "<"
	case OpLessThanOrEq:
		return "<="
	case OpGreaterThan:
		return ">"
	case OpGreaterThanOrEq:
		return ">="
	case OpLike:
		return "like"
	}
	return "??"
}

// Field is a tagged scalar value: a 32-bit integer or a bounded string.
// Fields are immutable values and are passed by value throughout the engine.
type Field struct {
	typ Type
	i   int32
	s   string
}

// NewIntField creates an integer Field.
func NewIntField(v int32) Field {
	return Field{typ: IntType, i: v}
}

// NewStringField creates a string Field. Strings longer than StringPayload
// are truncated to the storable prefix.
func NewStringField(v string) Field {
	if len(v) > StringPayload {
		v = v[:StringPayload]
	}
	return Field{typ: StringType, s: v}
}

// Type returns the type tag of the Field. DefaultType means uninitialized.
func (f Field) Type() Type {
	return f.typ
}

// IntValue returns the underlying integer. The field must be an IntType.
func (f Field) IntValue() int32 {
	Assert(f.typ == IntType, "IntValue on %s field", f.typ)
	return f.i
}

// StringValue returns the underlying string. The field must be a StringType.
func (f Field) StringValue() string {
	Assert(f.typ == StringType, "StringValue on %s field", f.typ)
	return f.s
}

func (f Field) String() string {
	switch f.typ {
	case IntType:
		return fmt.Sprintf("%d", f.i)
	case StringType:
		return f.s
	}
	return "<nil>"
}

// Compare evaluates `f op other`. Fields of different types never compare
// true; OpLike on integers is false.
func (f Field) Compare(op Op, other Field) bool {
	if f.typ != other.typ {
		return false
	}
	switch op {
	case OpLike:
		return f.typ == StringType && strings.Contains(f.s, other.s)
	case OpEquals:
		return f.cmp(other) == 0
	case OpNotEquals:
		return f.cmp(other) != 0
	case OpLessThan:
		return f.cmp(other) < 0
	case OpLessThanOrEq:
		return f.cmp(other) <= 0
	case OpGreaterThan:
		return f.cmp(other) > 0
	case OpGreaterThanOrEq:
		return f.cmp(other) >= 0
	}
	panic("unknown operator")
}

// Less reports whether f orders before other. Both fields must share a type;
// it is the total order backing ordered containers keyed by Field.
func (f Field) Less(other Field) bool {
	Assert(f.typ == other.typ, "type mismatch in comparison: %s vs %s", f.typ, other.typ)
	return f.cmp(other) < 0
}

func (f Field) cmp(other Field) int {
	switch f.typ {
	case IntType:
		switch {
		case f.i < other.i:
			return -1
		case f.i > other.i:
			return 1
		}
		return 0
	case StringType:
		return strings.Compare(f.s, other.s)
	}
	panic("comparison on uninitialized field")
}

// WriteTo serializes the Field into its fixed-width storage format.
// Integers are big-endian two's-complement; strings carry a big-endian
// length prefix and are right-padded with zeros.
func (f Field) WriteTo(data []byte) {
	Assert(len(data) >= f.typ.Size(), "buffer too small for %s field", f.typ)
	switch f.typ {
	case IntType:
		binary.BigEndian.PutUint32(data, uint32(f.i))
	case StringType:
		binary.BigEndian.PutUint32(data, uint32(len(f.s)))
		n := copy(data[4:StringLength], f.s)
		for i := 4 + n; i < StringLength; i++ {
			data[i] = 0
		}
	default:
		panic("serializing uninitialized field")
	}
}

// ParseField decodes a Field of type t from its storage format.
func ParseField(t Type, data []byte) Field {
	Assert(len(data) >= t.Size(), "buffer too small for %s field", t)
	switch t {
	case IntType:
		return NewIntField(int32(binary.BigEndian.Uint32(data)))
	case StringType:
		n := int(binary.BigEndian.Uint32(data))
		if n < 0 || n > StringPayload {
			n = StringPayload
		}
		return NewStringField(string(data[4 : 4+n]))
	}
	panic("parsing unknown field type")
}
