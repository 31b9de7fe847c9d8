package compiler

import (
	"github.com/kristofer/smog/pkg/ast"
	"github.com/kristofer/smog/pkg/bytecode"
	"github.com/kristofer/smog/pkg/object"
)

func (c *Compiler) compileFunctionDecl(s *ast.FunctionStmt) {
	c.declareVariable(s.Name, s.Line)
	c.markInitialized()
	nameConst := c.identifierConstant(s.Name)
	c.compileFunction(s, TypeFunction)
	c.defineVariable(nameConst, s.Line)
}

// compileFunction pushes a fresh functionCompiler, compiles the body
// inside it, then pops back to the enclosing one and emits OP_CLOSURE
// with the upvalue table the body turned out to need — the chain of
// enclosing FunctionCompilers clox's single-pass compiler keeps on the C
// call stack, made explicit here as a linked Go struct since this
// compiler recurses over an AST rather than over raw tokens.
func (c *Compiler) compileFunction(s *ast.FunctionStmt, fnType FunctionType) {
	fc := &functionCompiler{
		enclosing:  c.current,
		function:   c.gc.NewFunction(),
		fnType:     fnType,
		scopeDepth: 0,
	}
	fc.function.Name = c.gc.CopyString([]byte(s.Name))
	fc.function.Arity = len(s.Params)

	// Slot 0 is reserved for the receiver in methods/initializers (bound
	// as `this` by the VM's call machinery) and is otherwise unnamed.
	if fnType == TypeMethod || fnType == TypeInitializer {
		fc.locals = append(fc.locals, local{name: "this", depth: 0})
	} else {
		fc.locals = append(fc.locals, local{name: "", depth: 0})
	}

	c.current = fc
	c.beginScope()

	for _, param := range s.Params {
		c.declareVariable(param, s.Line)
		c.markInitialized()
	}
	for _, stmt := range s.Body {
		c.compileStmt(stmt)
	}
	c.emitReturnNilOrThis(s.Line)

	fn := c.current.function
	fn.UpvalueCount = len(c.current.upvalues)
	upvalues := c.current.upvalues

	c.current = fc.enclosing

	idx := c.chunk().AddConstant(object.FromObject(fn))
	c.emitOp(bytecode.OpClosure, s.Line)
	c.emitByte(byte(idx), s.Line)
	for _, uv := range upvalues {
		if uv.isLocal {
			c.emitByte(1, s.Line)
		} else {
			c.emitByte(0, s.Line)
		}
		c.emitByte(uv.index, s.Line)
	}
}

// compileClassStmt implements class declaration, single inheritance via
// OP_INHERIT, and method compiling with the `init`-is-special and
// `super`-binding rules of spec §4.G.
func (c *Compiler) compileClassStmt(s *ast.ClassStmt) {
	c.declareVariable(s.Name, s.Line)
	nameConst := c.identifierConstant(s.Name)
	c.emitOp(bytecode.OpClass, s.Line)
	c.emitByte(nameConst, s.Line)
	c.defineVariable(nameConst, s.Line)

	cc := &classCompiler{enclosing: c.currentClass}
	c.currentClass = cc

	if s.Superclass != nil {
		if s.Superclass.Name == s.Name {
			c.errorf(s.Line, "a class can't inherit from itself")
		}
		c.namedVariable(s.Superclass.Name, s.Line, nil)

		c.beginScope()
		c.addLocal("super")
		c.markInitialized()

		c.namedVariable(s.Name, s.Line, nil)
		c.emitOp(bytecode.OpInherit, s.Line)
		cc.hasSuperclass = true
	}

	c.namedVariable(s.Name, s.Line, nil)
	for _, method := range s.Methods {
		c.compileMethod(method)
	}
	c.emitOp(bytecode.OpPop, s.Line) // pop the class itself, pushed by namedVariable above

	if cc.hasSuperclass {
		c.endScope(s.Line)
	}
	c.currentClass = cc.enclosing
}

func (c *Compiler) compileMethod(m *ast.FunctionStmt) {
	nameConst := c.identifierConstant(m.Name)
	fnType := TypeMethod
	if m.Name == "init" {
		fnType = TypeInitializer
	}
	c.compileFunction(m, fnType)
	c.emitOp(bytecode.OpMethod, m.Line)
	c.emitByte(nameConst, m.Line)
}
