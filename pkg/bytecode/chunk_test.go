package bytecode

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/smog/pkg/object"
)

func TestChunkWriteAndConstants(t *testing.T) {
	c := New()
	idx := c.AddConstant(object.Number(1.5))
	c.WriteOp(OpConstant, 1)
	c.Write(byte(idx), 1)
	c.WriteOp(OpReturn, 1)

	assert.Equal(t, 3, c.Len())
	assert.Equal(t, []int{1, 1, 1}, c.Lines)
	assert.Equal(t, 1.5, c.Constants[idx].AsNumber())
}

func TestDisassembleDoesNotPanic(t *testing.T) {
	c := New()
	idx := c.AddConstant(object.Number(42))
	c.WriteOp(OpConstant, 1)
	c.Write(byte(idx), 1)
	c.WriteOp(OpPrint, 1)
	c.WriteOp(OpNil, 2)
	c.WriteOp(OpReturn, 2)

	out := Disassemble(c, "test")
	assert.Contains(t, out, "OP_CONSTANT")
	assert.Contains(t, out, "OP_RETURN")
}

func TestChunkRoundTrip(t *testing.T) {
	c := New()
	numIdx := c.AddConstant(object.Number(3))
	strIdx := c.AddConstant(object.FromObject(object.NewStringFromBytes([]byte("hi"))))
	c.WriteOp(OpConstant, 5)
	c.Write(byte(numIdx), 5)
	c.WriteOp(OpConstant, 5)
	c.Write(byte(strIdx), 5)
	c.WriteOp(OpReturn, 6)

	var buf bytes.Buffer
	_, err := c.WriteTo(&buf)
	require.NoError(t, err)

	got, err := ReadChunk(&buf)
	require.NoError(t, err)
	assert.Equal(t, c.Code, got.Code)
	assert.Equal(t, c.Lines, got.Lines)
	require.Len(t, got.Constants, 2)
	assert.Equal(t, float64(3), got.Constants[0].AsNumber())
	assert.Equal(t, "hi", object.AsString(got.Constants[1]).Chars())
}
