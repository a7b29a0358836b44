package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mit.edu/dsg/heapdb/common"
)

func TestTupleDescSize(t *testing.T) {
	d := NewTupleDescTypes([]common.Type{common.IntType, common.IntType}, []string{"a", "b"})
	assert.Equal(t, 2, d.NumFields())
	assert.Equal(t, 2*common.IntSize, d.Size())

	d2 := NewTupleDescTypes([]common.Type{common.IntType, common.StringType}, nil)
	assert.Equal(t, common.IntSize+common.StringLength, d2.Size())
}

func TestTupleDescEqualsIgnoresNames(t *testing.T) {
	a := NewTupleDescTypes([]common.Type{common.IntType, common.StringType}, []string{"x", "y"})
	b := NewTupleDescTypes([]common.Type{common.IntType, common.StringType}, []string{"p", "q"})
	c := NewTupleDescTypes([]common.Type{common.StringType, common.IntType}, []string{"x", "y"})
	d := NewTupleDescTypes([]common.Type{common.IntType}, []string{"x"})

	assert.True(t, a.Equals(b))
	assert.True(t, b.Equals(a))
	assert.False(t, a.Equals(c), "type order matters")
	assert.False(t, a.Equals(d), "length matters")
}

func TestTupleDescIndexOf(t *testing.T) {
	d := NewTupleDescTypes([]common.Type{common.IntType, common.IntType, common.IntType},
		[]string{"a", "b", "a"})

	i, err := d.IndexOf("a")
	require.NoError(t, err)
	assert.Equal(t, 0, i, "first match wins")

	i, err = d.IndexOf("b")
	require.NoError(t, err)
	assert.Equal(t, 1, i)

	_, err = d.IndexOf("missing")
	assert.True(t, common.IsCode(err, common.NoSuchElement))
}

func TestTupleDescMerge(t *testing.T) {
	a := NewTupleDescTypes([]common.Type{common.IntType}, []string{"a"})
	b := NewTupleDescTypes([]common.Type{common.StringType, common.IntType}, []string{"b", "c"})

	m := Merge(a, b)
	assert.Equal(t, 3, m.NumFields())
	assert.Equal(t, common.IntType, m.TypeAt(0))
	assert.Equal(t, common.StringType, m.TypeAt(1))
	assert.Equal(t, "a", m.NameAt(0))
	assert.Equal(t, "c", m.NameAt(2))
	assert.Equal(t, a.Size()+b.Size(), m.Size())
}

func TestTupleFields(t *testing.T) {
	d := NewTupleDescTypes([]common.Type{common.IntType, common.StringType}, []string{"id", "name"})
	tup := NewTuple(d, []common.Field{common.NewIntField(7), common.NewStringField("seven")})

	assert.Equal(t, int32(7), tup.Field(0).IntValue())
	assert.Equal(t, "seven", tup.Field(1).StringValue())

	tup.SetField(0, common.NewIntField(8))
	assert.Equal(t, int32(8), tup.Field(0).IntValue())

	assert.Equal(t, common.RecordID{}, tup.RID(), "unstored tuple has the zero RecordID")
}
