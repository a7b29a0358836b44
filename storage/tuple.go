package storage

import (
	"fmt"
	"strings"

	"mit.edu/dsg/heapdb/common"
)

// TDItem is one column of a schema: a type plus an optional name.
type TDItem struct {
	Type common.Type
	Name string
}

func (it TDItem) String() string {
	return fmt.Sprintf("%s(%s)", it.Name, it.Type)
}

// TupleDesc describes the schema of a tuple: an ordered, non-empty sequence
// of typed, optionally named fields. Descriptors are immutable after
// construction.
type TupleDesc struct {
	items []TDItem
	size  int
}

// NewTupleDesc builds a descriptor from (type, name) items. At least one
// item is required.
func NewTupleDesc(items ...TDItem) *TupleDesc {
	common.Assert(len(items) > 0, "tuple descriptor must have at least one field")
	size := 0
	for _, it := range items {
		size += it.Type.Size()
	}
	return &TupleDesc{items: items, size: size}
}

// NewTupleDescTypes builds a descriptor from parallel type and name slices.
// names may be nil for an anonymous schema.
func NewTupleDescTypes(types []common.Type, names []string) *TupleDesc {
	common.Assert(names == nil || len(names) == len(types),
		"mismatched types (%d) and names (%d)", len(types), len(names))
	items := make([]TDItem, len(types))
	for i, t := range types {
		items[i] = TDItem{Type: t}
		if names != nil {
			items[i].Name = names[i]
		}
	}
	return NewTupleDesc(items...)
}

// NumFields returns the number of fields in the schema.
func (d *TupleDesc) NumFields() int {
	return len(d.items)
}

// TypeAt returns the type of field i.
func (d *TupleDesc) TypeAt(i int) common.Type {
	return d.items[i].Type
}

// NameAt returns the (possibly empty) name of field i.
func (d *TupleDesc) NameAt(i int) string {
	return d.items[i].Name
}

// IndexOf returns the index of the first field with the given name, or a
// NoSuchElement error if no field matches.
func (d *TupleDesc) IndexOf(name string) (int, error) {
	for i, it := range d.items {
		if it.Name == name {
			return i, nil
		}
	}
	return 0, common.Errorf(common.NoSuchElement, "no field named %q", name)
}

// Size returns the number of bytes a tuple with this schema occupies on disk.
func (d *TupleDesc) Size() int {
	return d.size
}

// Equals reports whether the two descriptors have the same length and
// pointwise equal types. Field names are ignored.
func (d *TupleDesc) Equals(other *TupleDesc) bool {
	if len(d.items) != len(other.items) {
		return false
	}
	for i := range d.items {
		if d.items[i].Type != other.items[i].Type {
			return false
		}
	}
	return true
}

// Merge concatenates two descriptors into a new one: a's fields followed by
// b's fields.
func Merge(a, b *TupleDesc) *TupleDesc {
	items := make([]TDItem, 0, len(a.items)+len(b.items))
	items = append(items, a.items...)
	items = append(items, b.items...)
	return NewTupleDesc(items...)
}

func (d *TupleDesc) String() string {
	parts := make([]string, len(d.items))
	for i, it := range d.items {
		parts[i] = it.String()
	}
	return strings.Join(parts, ", ")
}

// Tuple is a row: a schema, one Field value per schema field, and, once the
// tuple has touched a page, the RecordID of its slot.
type Tuple struct {
	desc   *TupleDesc
	fields []common.Field
	rid    common.RecordID
}

// NewTuple builds a tuple over the given descriptor. The field count must
// match the descriptor.
func NewTuple(desc *TupleDesc, fields []common.Field) *Tuple {
	common.Assert(len(fields) == desc.NumFields(),
		"tuple has %d fields, descriptor has %d", len(fields), desc.NumFields())
	for i, f := range fields {
		common.Assert(f.Type() == desc.TypeAt(i),
			"field %d is %s, descriptor wants %s", i, f.Type(), desc.TypeAt(i))
	}
	return &Tuple{desc: desc, fields: fields}
}

// Desc returns the tuple's schema.
func (t *Tuple) Desc() *TupleDesc {
	return t.desc
}

// Field returns the value at index i.
func (t *Tuple) Field(i int) common.Field {
	return t.fields[i]
}

// SetField replaces the value at index i. The type must match the schema.
func (t *Tuple) SetField(i int, f common.Field) {
	common.Assert(f.Type() == t.desc.TypeAt(i),
		"field %d is %s, descriptor wants %s", i, f.Type(), t.desc.TypeAt(i))
	t.fields[i] = f
}

// RID returns the tuple's location, or the zero RecordID for a tuple that
// has never been stored.
func (t *Tuple) RID() common.RecordID {
	return t.rid
}

// SetRID records the tuple's location. The heap page sets it on parse and
// insert; operators producing virtual tuples leave it zero.
func (t *Tuple) SetRID(rid common.RecordID) {
	t.rid = rid
}

func (t *Tuple) String() string {
	parts := make([]string, len(t.fields))
	for i, f := range t.fields {
		parts[i] = f.String()
	}
	return strings.Join(parts, "\t")
}

// writeTo serializes the tuple's fields into buf, which must hold at least
// desc.Size() bytes.
func (t *Tuple) writeTo(buf []byte) {
	common.Assert(len(buf) >= t.desc.Size(), "buffer too small for tuple")
	off := 0
	for i, f := range t.fields {
		f.WriteTo(buf[off:])
		off += t.desc.TypeAt(i).Size()
	}
}

// parseTuple decodes one tuple from data under desc, stamping it with rid.
func parseTuple(desc *TupleDesc, data []byte, rid common.RecordID) *Tuple {
	common.Assert(len(data) >= desc.Size(), "buffer too small for tuple")
	fields := make([]common.Field, desc.NumFields())
	off := 0
	for i := range fields {
		typ := desc.TypeAt(i)
		fields[i] = common.ParseField(typ, data[off:])
		off += typ.Size()
	}
	t := NewTuple(desc, fields)
	t.rid = rid
	return t
}
