package compiler

import (
	"github.com/kristofer/smog/pkg/ast"
	"github.com/kristofer/smog/pkg/bytecode"
)

func (c *Compiler) compileStmt(stmt ast.Stmt) {
	switch s := stmt.(type) {
	case *ast.ExpressionStmt:
		c.compileExpr(s.Expression)
		c.emitOp(bytecode.OpPop, lineOf(s.Expression))
	case *ast.PrintStmt:
		c.compileExpr(s.Expression)
		c.emitOp(bytecode.OpPrint, s.Line)
	case *ast.VarStmt:
		c.compileVarStmt(s)
	case *ast.BlockStmt:
		c.beginScope()
		for _, inner := range s.Statements {
			c.compileStmt(inner)
		}
		c.endScope(0)
	case *ast.IfStmt:
		c.compileIfStmt(s)
	case *ast.WhileStmt:
		c.compileWhileStmt(s)
	case *ast.FunctionStmt:
		c.compileFunctionDecl(s)
	case *ast.ReturnStmt:
		c.compileReturnStmt(s)
	case *ast.ClassStmt:
		c.compileClassStmt(s)
	default:
		c.errorf(0, "unsupported statement %T", stmt)
	}
}

func (c *Compiler) compileVarStmt(s *ast.VarStmt) {
	c.declareVariable(s.Name, s.Line)
	if s.Initializer != nil {
		c.compileExpr(s.Initializer)
	} else {
		c.emitOp(bytecode.OpNil, s.Line)
	}
	nameConst := c.identifierConstant(s.Name)
	c.defineVariable(nameConst, s.Line)
}

func (c *Compiler) compileIfStmt(s *ast.IfStmt) {
	c.compileExpr(s.Condition)
	thenJump := c.emitJump(bytecode.OpJumpIfFalse, s.Line)
	c.emitOp(bytecode.OpPop, s.Line)
	c.compileStmt(s.Then)

	elseJump := c.emitJump(bytecode.OpJump, s.Line)
	c.patchJump(thenJump)
	c.emitOp(bytecode.OpPop, s.Line)

	if s.Else != nil {
		c.compileStmt(s.Else)
	}
	c.patchJump(elseJump)
}

func (c *Compiler) compileWhileStmt(s *ast.WhileStmt) {
	loopStart := c.chunk().Len()
	c.compileExpr(s.Condition)
	exitJump := c.emitJump(bytecode.OpJumpIfFalse, s.Line)
	c.emitOp(bytecode.OpPop, s.Line)
	c.compileStmt(s.Body)
	c.emitLoop(loopStart, s.Line)
	c.patchJump(exitJump)
	c.emitOp(bytecode.OpPop, s.Line)
}

func (c *Compiler) compileReturnStmt(s *ast.ReturnStmt) {
	if c.current.fnType == TypeScript {
		c.errorf(s.Line, "can't return from top-level code")
	}
	if s.Expression == nil {
		c.emitReturnNilOrThis(s.Line)
		return
	}
	if c.current.fnType == TypeInitializer {
		c.errorf(s.Line, "can't return a value from an initializer")
	}
	c.compileExpr(s.Expression)
	c.emitOp(bytecode.OpReturn, s.Line)
}

// emitReturnNilOrThis implements the rule that a bare `return;` inside an
// `init` method returns the instance (slot 0, `this`) rather than nil, so
// `var a = Thing(); a.init();` and plain construction agree on what `a`
// becomes.
func (c *Compiler) emitReturnNilOrThis(line int) {
	if c.current.fnType == TypeInitializer {
		c.emitOp(bytecode.OpGetLocal, line)
		c.emitByte(0, line)
	} else {
		c.emitOp(bytecode.OpNil, line)
	}
	c.emitOp(bytecode.OpReturn, line)
}

func lineOf(e ast.Expr) int {
	switch v := e.(type) {
	case *ast.Literal:
		return v.Line
	case *ast.Variable:
		return v.Line
	case *ast.Assign:
		return v.Line
	case *ast.Unary:
		return v.Line
	case *ast.Binary:
		return v.Line
	case *ast.Logical:
		return v.Line
	case *ast.Call:
		return v.Line
	case *ast.Get:
		return v.Line
	case *ast.Set:
		return v.Line
	case *ast.This:
		return v.Line
	case *ast.Super:
		return v.Line
	default:
		return 0
	}
}
