package bytecode

import "github.com/kristofer/smog/pkg/object"

// Chunk is a function body's compiled form: a flat byte stream plus a
// parallel line table for runtime error reporting, plus the constant pool
// instructions index into via OP_CONSTANT (spec §4.A). It grows by simple
// append rather than clox's manual capacity-doubling, since Go slices
// already give that for free; the two stay append-only and index-stable
// either way, which is the property the rest of the system relies on.
type Chunk struct {
	Code      []byte
	Lines     []int
	Constants []object.Value
}

// New returns an empty chunk.
func New() *Chunk {
	return &Chunk{}
}

// Write appends one raw byte, tagged with the source line it came from.
func (c *Chunk) Write(b byte, line int) {
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, line)
}

// WriteOp appends an opcode byte.
func (c *Chunk) WriteOp(op Opcode, line int) {
	c.Write(byte(op), line)
}

// AddConstant appends value to the constant pool and returns its index,
// for use as an OP_CONSTANT (or OP_CLOSURE) operand. It does not
// deduplicate, and neither does the compiler: every literal or identifier
// use adds its own entry, so a name used twice occupies two slots.
func (c *Chunk) AddConstant(value object.Value) int {
	c.Constants = append(c.Constants, value)
	return len(c.Constants) - 1
}

// Len is the number of instruction bytes emitted so far, used by the
// compiler to compute jump offsets before the jump target is known.
func (c *Chunk) Len() int { return len(c.Code) }
