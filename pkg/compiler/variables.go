package compiler

import (
	"github.com/kristofer/smog/pkg/bytecode"
	"github.com/kristofer/smog/pkg/object"
)

// identifierConstant interns name and adds it to the current chunk's
// constant pool, returning the index OP_*_GLOBAL/OP_*_PROPERTY/OP_METHOD
// use to name what they operate on.
func (c *Compiler) identifierConstant(name string) byte {
	s := c.gc.CopyString([]byte(name))
	idx := c.chunk().AddConstant(object.FromObject(s))
	return byte(idx)
}

// declareVariable registers name as a new local in the current scope (a
// no-op at global scope, where variables are looked up by name at
// runtime instead of by stack slot). depth is set to -1 until
// defineVariable marks it initialized, so resolveLocal can tell a local
// still being initialized apart from one that's ready to read, and
// reject `var a = a;` (SPEC_FULL.md: reading a local in its own
// initializer is a compile error) instead of silently reading the
// uninitialized stack slot.
func (c *Compiler) declareVariable(name string, line int) {
	if c.current.scopeDepth == 0 {
		return
	}
	for i := len(c.current.locals) - 1; i >= 0; i-- {
		l := c.current.locals[i]
		if l.depth != -1 && l.depth < c.current.scopeDepth {
			break
		}
		if l.name == name {
			c.errorf(line, "variable %q already declared in this scope", name)
		}
	}
	c.addLocal(name)
}

func (c *Compiler) addLocal(name string) {
	if len(c.current.locals) >= 256 {
		c.errorf(0, "too many local variables in function")
		return
	}
	c.current.locals = append(c.current.locals, local{name: name, depth: -1})
}

func (c *Compiler) markInitialized() {
	if c.current.scopeDepth == 0 {
		return
	}
	c.current.locals[len(c.current.locals)-1].depth = c.current.scopeDepth
}

// defineVariable finishes a variable declaration: at global scope it
// emits OP_DEFINE_GLOBAL; inside a function it just marks the local slot
// already sitting on the stack as initialized.
func (c *Compiler) defineVariable(nameConst byte, line int) {
	if c.current.scopeDepth > 0 {
		c.markInitialized()
		return
	}
	c.emitOp(bytecode.OpDefineGlobal, line)
	c.emitByte(nameConst, line)
}

// resolveLocal searches the current function's locals innermost-first.
// A local whose depth is still -1 is being initialized by its own
// declaration's initializer expression (declareVariable ran, defineVariable
// hasn't yet) — clox's compiler.c rejects reading it there with "Can't read
// local variable in its own initializer.", which this mirrors.
func resolveLocal(c *Compiler, fc *functionCompiler, name string, line int) int {
	for i := len(fc.locals) - 1; i >= 0; i-- {
		if fc.locals[i].name == name {
			if fc.locals[i].depth == -1 {
				c.errorf(line, "can't read local variable %q in its own initializer", name)
			}
			return i
		}
	}
	return -1
}

// resolveUpvalue finds name in an enclosing function, recursively
// chasing further enclosing scopes if needed, and records an upvalue
// slot (reusing an existing one if this function already captures the
// same variable) so the closure knows to pull it in at OP_CLOSURE time.
func resolveUpvalue(c *Compiler, fc *functionCompiler, name string, line int) int {
	if fc.enclosing == nil {
		return -1
	}
	if localIdx := resolveLocal(c, fc.enclosing, name, line); localIdx != -1 {
		fc.enclosing.locals[localIdx].isCaptured = true
		return addUpvalue(fc, byte(localIdx), true)
	}
	if upvalIdx := resolveUpvalue(c, fc.enclosing, name, line); upvalIdx != -1 {
		return addUpvalue(fc, byte(upvalIdx), false)
	}
	return -1
}

func addUpvalue(fc *functionCompiler, index byte, isLocal bool) int {
	for i, uv := range fc.upvalues {
		if uv.index == index && uv.isLocal == isLocal {
			return i
		}
	}
	fc.upvalues = append(fc.upvalues, upvalueInfo{index: index, isLocal: isLocal})
	return len(fc.upvalues) - 1
}

// namedVariable emits the load (and, if assign is non-nil, the store)
// sequence for a bare identifier reference, picking OP_*_LOCAL,
// OP_*_UPVALUE, or OP_*_GLOBAL depending on where the name resolves.
func (c *Compiler) namedVariable(name string, line int, assign func()) {
	var getOp, setOp bytecode.Opcode
	var arg byte

	if idx := resolveLocal(c, c.current, name, line); idx != -1 {
		getOp, setOp, arg = bytecode.OpGetLocal, bytecode.OpSetLocal, byte(idx)
	} else if idx := resolveUpvalue(c, c.current, name, line); idx != -1 {
		getOp, setOp, arg = bytecode.OpGetUpvalue, bytecode.OpSetUpvalue, byte(idx)
	} else {
		getOp, setOp, arg = bytecode.OpGetGlobal, bytecode.OpSetGlobal, c.identifierConstant(name)
	}

	if assign != nil {
		assign()
		c.emitOp(setOp, line)
		c.emitByte(arg, line)
		return
	}
	c.emitOp(getOp, line)
	c.emitByte(arg, line)
}
