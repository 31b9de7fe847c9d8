package compiler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/smog/pkg/bytecode"
	"github.com/kristofer/smog/pkg/gc"
	"github.com/kristofer/smog/pkg/object"
)

func compile(t *testing.T, src string) *bytecode.Chunk {
	t.Helper()
	c := New(gc.New())
	fn, err := c.Compile(src)
	require.NoError(t, err)
	chunk, ok := fn.Chunk.(*bytecode.Chunk)
	require.True(t, ok)
	return chunk
}

func disasm(t *testing.T, src string) string {
	t.Helper()
	return bytecode.Disassemble(compile(t, src), "test")
}

// firstFunctionChunk returns the chunk of the first function constant in
// c. Disassemble renders only the chunk it is given, so a nested
// function's code is reached through its enclosing chunk's constants.
func firstFunctionChunk(t *testing.T, c *bytecode.Chunk) *bytecode.Chunk {
	t.Helper()
	for _, k := range c.Constants {
		if object.IsFunction(k) {
			ch, ok := object.AsFunction(k).Chunk.(*bytecode.Chunk)
			require.True(t, ok)
			return ch
		}
	}
	t.Fatalf("no function constant in chunk")
	return nil
}

func TestCompileLiteralPrint(t *testing.T) {
	text := disasm(t, `print 1 + 2;`)
	assert.Contains(t, text, "OP_CONSTANT")
	assert.Contains(t, text, "OP_ADD")
	assert.Contains(t, text, "OP_PRINT")
}

func TestCompileGlobalVar(t *testing.T) {
	text := disasm(t, `var a = "foo"; print a;`)
	assert.Contains(t, text, "OP_DEFINE_GLOBAL")
	assert.Contains(t, text, "OP_GET_GLOBAL")
}

func TestCompileLocalScope(t *testing.T) {
	text := disasm(t, `{ var a = 1; print a; }`)
	assert.Contains(t, text, "OP_GET_LOCAL")
	assert.NotContains(t, text, "OP_DEFINE_GLOBAL")
}

func TestCompileClosureCapturesUpvalue(t *testing.T) {
	script := compile(t, `fun make(x) { fun g() { return x; } return g; } make(1);`)
	assert.Contains(t, bytecode.Disassemble(script, "test"), "OP_CLOSURE")
	makeChunk := firstFunctionChunk(t, script)
	gChunk := firstFunctionChunk(t, makeChunk)
	assert.Contains(t, bytecode.Disassemble(gChunk, "g"), "OP_GET_UPVALUE")
}

func TestCompileIfElseEmitsJumps(t *testing.T) {
	text := disasm(t, `if (true) { print 1; } else { print 2; }`)
	assert.Contains(t, text, "OP_JUMP_IF_FALSE")
	assert.Contains(t, text, "OP_JUMP")
}

func TestCompileWhileEmitsLoop(t *testing.T) {
	text := disasm(t, `var i = 0; while (i < 3) { i = i + 1; }`)
	assert.Contains(t, text, "OP_LOOP")
}

func TestCompileClassWithSuperEmitsInheritAndInvoke(t *testing.T) {
	chunk := compile(t, `
		class A { greet() { print "hi"; } }
		class B < A { greet() { super.greet(); } }
		B().greet();
	`)
	text := bytecode.Disassemble(chunk, "test")
	assert.Contains(t, text, "OP_CLASS")
	assert.Contains(t, text, "OP_INHERIT")
	assert.Contains(t, text, "OP_METHOD")
	assert.Contains(t, text, "OP_INVOKE")
}

func TestCompileInitReturnsThis(t *testing.T) {
	chunk := compile(t, `class A { init(n) { this.n = n; } }`)
	text := bytecode.Disassemble(chunk, "test")
	assert.Contains(t, text, "OP_METHOD")

	code := firstFunctionChunk(t, chunk).Code
	require.GreaterOrEqual(t, len(code), 3)
	assert.Equal(t, []byte{byte(bytecode.OpGetLocal), 0, byte(bytecode.OpReturn)}, code[len(code)-3:])
}

func TestCompileErrorOnReturnAtTopLevel(t *testing.T) {
	c := New(gc.New())
	_, err := c.Compile(`return 1;`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "return")
}

func TestCompileErrorOnThisOutsideClass(t *testing.T) {
	c := New(gc.New())
	_, err := c.Compile(`print this;`)
	require.Error(t, err)
	assert.True(t, strings.Contains(strings.ToLower(err.Error()), "this"))
}

func TestCompileErrorAccumulatesMultiple(t *testing.T) {
	c := New(gc.New())
	_, err := c.Compile(`print this; return 1;`)
	require.Error(t, err)
	ce, ok := err.(*CompileError)
	require.True(t, ok)
	assert.GreaterOrEqual(t, len(ce.Messages), 2)
}
