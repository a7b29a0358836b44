package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFieldCompareInts(t *testing.T) {
	three := NewIntField(3)
	five := NewIntField(5)

	assert.True(t, three.Compare(OpLessThan, five))
	assert.True(t, three.Compare(OpLessThanOrEq, five))
	assert.True(t, three.Compare(OpNotEquals, five))
	assert.False(t, three.Compare(OpEquals, five))
	assert.False(t, three.Compare(OpGreaterThan, five))
	assert.True(t, five.Compare(OpGreaterThanOrEq, five))
	assert.True(t, five.Compare(OpEquals, five))
	assert.False(t, three.Compare(OpLike, five), "LIKE on ints is always false")
}

func TestFieldCompareStrings(t *testing.T) {
	abc := NewStringField("abc")
	abd := NewStringField("abd")

	assert.True(t, abc.Compare(OpLessThan, abd))
	assert.True(t, abc.Compare(OpNotEquals, abd))
	assert.True(t, abc.Compare(OpLike, NewStringField("b")))
	assert.False(t, abc.Compare(OpLike, NewStringField("bd")))
	assert.True(t, abc.Compare(OpLike, NewStringField("")), "every string contains the empty string")
}

func TestFieldCompareMixedTypes(t *testing.T) {
	i := NewIntField(1)
	s := NewStringField("1")
	for _, op := range []Op{OpEquals, OpNotEquals, OpLessThan, OpLike} {
		assert.False(t, i.Compare(op, s), "cross-type %s must be false", op)
		assert.False(t, s.Compare(op, i), "cross-type %s must be false", op)
	}
}

func TestFieldRoundTripInt(t *testing.T) {
	for _, v := range []int32{0, 1, -1, 42, -2147483648, 2147483647} {
		buf := make([]byte, IntSize)
		NewIntField(v).WriteTo(buf)
		got := ParseField(IntType, buf)
		assert.Equal(t, v, got.IntValue())
	}
}

func TestFieldRoundTripString(t *testing.T) {
	for _, s := range []string{"", "x", "hello world", string(make([]byte, StringPayload))} {
		buf := make([]byte, StringLength)
		NewStringField(s).WriteTo(buf)
		got := ParseField(StringType, buf)
		assert.Equal(t, s, got.StringValue())
	}
}

func TestFieldStringEncoding(t *testing.T) {
	buf := make([]byte, StringLength)
	NewStringField("hi").WriteTo(buf)

	// 4-byte big-endian length prefix, payload, then zero padding.
	assert.Equal(t, []byte{0, 0, 0, 2}, buf[:4])
	assert.Equal(t, byte('h'), buf[4])
	assert.Equal(t, byte('i'), buf[5])
	for i := 6; i < StringLength; i++ {
		assert.Zero(t, buf[i], "padding byte %d must be zero", i)
	}
}

func TestFieldIntEncodingBigEndian(t *testing.T) {
	buf := make([]byte, IntSize)
	NewIntField(1).WriteTo(buf)
	assert.Equal(t, []byte{0, 0, 0, 1}, buf)

	NewIntField(-1).WriteTo(buf)
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, buf)
}

func TestParseFieldClampsCorruptLength(t *testing.T) {
	buf := make([]byte, StringLength)
	// A length prefix larger than the payload area must not read out of
	// bounds; the parser clamps it.
	buf[0], buf[1], buf[2], buf[3] = 0xFF, 0xFF, 0xFF, 0xFF
	got := ParseField(StringType, buf)
	assert.Len(t, got.StringValue(), StringPayload)
}

func TestStringFieldTruncates(t *testing.T) {
	long := make([]byte, StringPayload+10)
	for i := range long {
		long[i] = 'a'
	}
	f := NewStringField(string(long))
	assert.Len(t, f.StringValue(), StringPayload)
}
