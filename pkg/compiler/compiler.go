// Package compiler turns an ast.Program into bytecode: a tree-walking
// single-pass emitter that is the external interface spec §4.G and §1
// describe — "given source text, produce a top-level function or signal
// compile failure" — plus the markCompilerRoots hook the collector calls
// mid-compilation. It keeps the teacher's Compiler{instructions,
// constants, symbols, emit/addConstant} shape (pkg/compiler/compiler.go)
// generalized to a chain of FunctionCompilers (one per nested function,
// following clox's FunctionCompiler/ClassCompiler linked structures) since
// Lox's closures, classes, and block scoping need far more compile-time
// state than the teacher's flat symbol table did.
package compiler

import (
	"fmt"

	"github.com/kristofer/smog/pkg/ast"
	"github.com/kristofer/smog/pkg/bytecode"
	"github.com/kristofer/smog/pkg/gc"
	"github.com/kristofer/smog/pkg/object"
)

// FunctionType distinguishes the four contexts a chunk of bytecode can be
// compiled for, each with slightly different emission rules (spec §4.G).
type FunctionType int

const (
	TypeFunction FunctionType = iota
	TypeMethod
	TypeInitializer
	TypeScript
)

// CompileError reports every error found while compiling a source file;
// the compiler does not stop at the first one, matching the teacher
// parser's accumulate-errors habit carried up to this layer.
type CompileError struct {
	Messages []string
}

func (e *CompileError) Error() string {
	if len(e.Messages) == 1 {
		return e.Messages[0]
	}
	return fmt.Sprintf("%d compile errors, first: %s", len(e.Messages), e.Messages[0])
}

// local is a block-scoped variable slot on the VM's operand stack.
type local struct {
	name       string
	depth      int // -1 while being declared but not yet initialized
	isCaptured bool
}

// upvalueInfo records how a FunctionCompiler's enclosing scope supplies
// one of its captured variables: either directly off the enclosing
// function's locals (isLocal) or by further closing over one of the
// enclosing function's own upvalues.
type upvalueInfo struct {
	index   byte
	isLocal bool
}

// functionCompiler holds the compile-time state for one function body
// (or the top-level script): its in-progress object.Function, the local
// variable stack, and the upvalues it has discovered it needs to close
// over. enclosing threads these into the stack markCompilerRoots walks.
type functionCompiler struct {
	enclosing *functionCompiler
	function  *object.Function
	fnType    FunctionType

	locals     []local
	upvalues   []upvalueInfo
	scopeDepth int
}

// classCompiler tracks whether the class body currently being compiled
// has a superclass, so `super` expressions can be rejected outside one.
type classCompiler struct {
	enclosing     *classCompiler
	hasSuperclass bool
}

// Compiler is the VM-facing compile entry point. vm.Interpret builds a
// fresh Compiler for each input, REPL lines included; gc supplies string interning
// and the allocator every constant and nested Function goes through.
type Compiler struct {
	gc *gc.GC

	current      *functionCompiler
	currentClass *classCompiler

	errors []string
}

// New returns a Compiler allocating through g.
func New(g *gc.GC) *Compiler {
	return &Compiler{gc: g}
}

// Compile parses and compiles source into a top-level script function, or
// returns a *CompileError describing every problem found. This is the
// single function the VM calls — spec §4.G's `compile(source) -> Function
// | CompileError`.
func (c *Compiler) Compile(source string) (*object.Function, error) {
	prog, parseErrs := parseSource(source)
	if len(parseErrs) > 0 {
		return nil, &CompileError{Messages: parseErrs}
	}

	c.errors = nil
	c.current = &functionCompiler{
		function: c.gc.NewFunction(),
		fnType:   TypeScript,
	}
	c.current.locals = append(c.current.locals, local{name: "", depth: 0})

	for _, stmt := range prog.Statements {
		c.compileStmt(stmt)
	}
	c.emitByte(byte(bytecode.OpNil), 0)
	c.emitByte(byte(bytecode.OpReturn), 0)

	fn := c.current.function
	fn.UpvalueCount = len(c.current.upvalues)
	c.current = nil

	if len(c.errors) > 0 {
		return nil, &CompileError{Messages: c.errors}
	}
	return fn, nil
}

// MarkRoots marks every function currently being compiled —
// spec §4.E root 6 — so a collection triggered mid-compile (the compiler
// itself allocates constants and nested Functions through gc) doesn't
// free a function this Compiler still holds a bare reference to.
func (c *Compiler) MarkRoots(g *gc.GC) {
	for fc := c.current; fc != nil; fc = fc.enclosing {
		g.MarkObject(fc.function)
	}
}

func (c *Compiler) errorf(line int, format string, args ...interface{}) {
	c.errors = append(c.errors, fmt.Sprintf("[line %d] %s", line, fmt.Sprintf(format, args...)))
}

func (c *Compiler) chunk() *bytecode.Chunk {
	ch, _ := c.current.function.Chunk.(*bytecode.Chunk)
	if ch == nil {
		ch = bytecode.New()
		c.current.function.Chunk = ch
	}
	return ch
}

func (c *Compiler) emitByte(b byte, line int) { c.chunk().Write(b, line) }
func (c *Compiler) emitOp(op bytecode.Opcode, line int) { c.chunk().WriteOp(op, line) }

func (c *Compiler) emitConstant(v object.Value, line int) {
	idx := c.chunk().AddConstant(v)
	if idx > 255 {
		c.errorf(line, "too many constants in one chunk")
		idx = 0
	}
	c.emitOp(bytecode.OpConstant, line)
	c.emitByte(byte(idx), line)
}

// emitJump writes a jump opcode with a placeholder 16-bit operand and
// returns the operand's offset, to be patched once the target is known.
func (c *Compiler) emitJump(op bytecode.Opcode, line int) int {
	c.emitOp(op, line)
	c.emitByte(0xff, line)
	c.emitByte(0xff, line)
	return c.chunk().Len() - 2
}

func (c *Compiler) patchJump(offset int) {
	ch := c.chunk()
	jump := ch.Len() - offset - 2
	if jump > 0xffff {
		c.errorf(0, "too much code to jump over")
	}
	ch.Code[offset] = byte(jump >> 8)
	ch.Code[offset+1] = byte(jump)
}

func (c *Compiler) emitLoop(loopStart int, line int) {
	c.emitOp(bytecode.OpLoop, line)
	offset := c.chunk().Len() - loopStart + 2
	if offset > 0xffff {
		c.errorf(line, "loop body too large")
	}
	c.emitByte(byte(offset>>8), line)
	c.emitByte(byte(offset), line)
}

func (c *Compiler) beginScope() { c.current.scopeDepth++ }

func (c *Compiler) endScope(line int) {
	c.current.scopeDepth--
	locals := c.current.locals
	for len(locals) > 0 && locals[len(locals)-1].depth > c.current.scopeDepth {
		if locals[len(locals)-1].isCaptured {
			c.emitOp(bytecode.OpCloseUpvalue, line)
		} else {
			c.emitOp(bytecode.OpPop, line)
		}
		locals = locals[:len(locals)-1]
	}
	c.current.locals = locals
}
