package compiler

import (
	"github.com/kristofer/smog/pkg/ast"
	"github.com/kristofer/smog/pkg/bytecode"
	"github.com/kristofer/smog/pkg/object"
)

func (c *Compiler) compileExpr(expr ast.Expr) {
	switch e := expr.(type) {
	case *ast.Literal:
		c.compileLiteral(e)
	case *ast.Variable:
		c.namedVariable(e.Name, e.Line, nil)
	case *ast.Assign:
		c.namedVariable(e.Name, e.Line, func() { c.compileExpr(e.Value) })
	case *ast.Unary:
		c.compileUnary(e)
	case *ast.Binary:
		c.compileBinary(e)
	case *ast.Logical:
		c.compileLogical(e)
	case *ast.Call:
		c.compileCall(e)
	case *ast.Get:
		c.compileExpr(e.Object)
		c.emitOp(bytecode.OpGetProperty, e.Line)
		c.emitByte(c.identifierConstant(e.Name), e.Line)
	case *ast.Set:
		c.compileExpr(e.Object)
		c.compileExpr(e.Value)
		c.emitOp(bytecode.OpSetProperty, e.Line)
		c.emitByte(c.identifierConstant(e.Name), e.Line)
	case *ast.This:
		c.compileThis(e)
	case *ast.Super:
		c.compileSuperGet(e)
	default:
		c.errorf(0, "unsupported expression %T", expr)
	}
}

func (c *Compiler) compileLiteral(e *ast.Literal) {
	switch v := e.Value.(type) {
	case nil:
		c.emitOp(bytecode.OpNil, e.Line)
	case bool:
		if v {
			c.emitOp(bytecode.OpTrue, e.Line)
		} else {
			c.emitOp(bytecode.OpFalse, e.Line)
		}
	case float64:
		c.emitConstant(object.Number(v), e.Line)
	case string:
		s := c.gc.CopyString([]byte(v))
		c.emitConstant(object.FromObject(s), e.Line)
	default:
		c.errorf(e.Line, "unsupported literal type %T", e.Value)
	}
}

func (c *Compiler) compileUnary(e *ast.Unary) {
	c.compileExpr(e.Right)
	switch e.Operator {
	case "-":
		c.emitOp(bytecode.OpNegate, e.Line)
	case "!":
		c.emitOp(bytecode.OpNot, e.Line)
	default:
		c.errorf(e.Line, "unknown unary operator %q", e.Operator)
	}
}

func (c *Compiler) compileBinary(e *ast.Binary) {
	c.compileExpr(e.Left)
	c.compileExpr(e.Right)
	switch e.Operator {
	case "+":
		c.emitOp(bytecode.OpAdd, e.Line)
	case "-":
		c.emitOp(bytecode.OpSubtract, e.Line)
	case "*":
		c.emitOp(bytecode.OpMultiply, e.Line)
	case "/":
		c.emitOp(bytecode.OpDivide, e.Line)
	case "==":
		c.emitOp(bytecode.OpEqual, e.Line)
	case "!=":
		c.emitOp(bytecode.OpEqual, e.Line)
		c.emitOp(bytecode.OpNot, e.Line)
	case "<":
		c.emitOp(bytecode.OpLess, e.Line)
	case "<=":
		c.emitOp(bytecode.OpGreater, e.Line)
		c.emitOp(bytecode.OpNot, e.Line)
	case ">":
		c.emitOp(bytecode.OpGreater, e.Line)
	case ">=":
		c.emitOp(bytecode.OpLess, e.Line)
		c.emitOp(bytecode.OpNot, e.Line)
	default:
		c.errorf(e.Line, "unknown binary operator %q", e.Operator)
	}
}

// compileLogical implements and/or's short-circuit evaluation: the left
// operand's OP_POP is only ever reached on the path where it was not the
// overall result, matching spec §9's resolved OP_JUMP_IF_FALSE-does-not-
// pop Open Question.
func (c *Compiler) compileLogical(e *ast.Logical) {
	c.compileExpr(e.Left)
	if e.Operator == "and" {
		endJump := c.emitJump(bytecode.OpJumpIfFalse, e.Line)
		c.emitOp(bytecode.OpPop, e.Line)
		c.compileExpr(e.Right)
		c.patchJump(endJump)
		return
	}
	// "or": jump past the right operand if the left was truthy.
	elseJump := c.emitJump(bytecode.OpJumpIfFalse, e.Line)
	endJump := c.emitJump(bytecode.OpJump, e.Line)
	c.patchJump(elseJump)
	c.emitOp(bytecode.OpPop, e.Line)
	c.compileExpr(e.Right)
	c.patchJump(endJump)
}

// compileCall fuses `receiver.method(args)` into OP_INVOKE and
// `super.method(args)` into OP_SUPER_INVOKE — spec §4.G's INVOKE/
// SUPER_INVOKE fusion — instead of a separate property load followed by
// a generic OP_CALL, saving the intermediate bound-method allocation.
func (c *Compiler) compileCall(e *ast.Call) {
	if get, ok := e.Callee.(*ast.Get); ok {
		c.compileExpr(get.Object)
		for _, arg := range e.Args {
			c.compileExpr(arg)
		}
		c.emitOp(bytecode.OpInvoke, e.Line)
		c.emitByte(c.identifierConstant(get.Name), e.Line)
		c.emitByte(byte(len(e.Args)), e.Line)
		return
	}
	if super, ok := e.Callee.(*ast.Super); ok {
		c.compileSuperInvoke(super, e)
		return
	}

	c.compileExpr(e.Callee)
	for _, arg := range e.Args {
		c.compileExpr(arg)
	}
	if len(e.Args) > 255 {
		c.errorf(e.Line, "can't have more than 255 arguments")
	}
	c.emitOp(bytecode.OpCall, e.Line)
	c.emitByte(byte(len(e.Args)), e.Line)
}

func (c *Compiler) compileThis(e *ast.This) {
	if c.currentClass == nil {
		c.errorf(e.Line, "can't use 'this' outside of a method")
		c.emitOp(bytecode.OpNil, e.Line)
		return
	}
	c.namedVariable("this", e.Line, nil)
}

func (c *Compiler) compileSuperGet(e *ast.Super) {
	if c.currentClass == nil {
		c.errorf(e.Line, "can't use 'super' outside of a class")
		return
	}
	if !c.currentClass.hasSuperclass {
		c.errorf(e.Line, "can't use 'super' in a class with no superclass")
	}
	c.namedVariable("this", e.Line, nil)
	c.namedVariable("super", e.Line, nil)
	c.emitOp(bytecode.OpGetSuper, e.Line)
	c.emitByte(c.identifierConstant(e.Method), e.Line)
}

func (c *Compiler) compileSuperInvoke(super *ast.Super, call *ast.Call) {
	if c.currentClass == nil {
		c.errorf(call.Line, "can't use 'super' outside of a class")
		return
	}
	if !c.currentClass.hasSuperclass {
		c.errorf(call.Line, "can't use 'super' in a class with no superclass")
	}
	c.namedVariable("this", call.Line, nil)
	for _, arg := range call.Args {
		c.compileExpr(arg)
	}
	c.namedVariable("super", call.Line, nil)
	c.emitOp(bytecode.OpSuperInvoke, call.Line)
	c.emitByte(c.identifierConstant(super.Method), call.Line)
	c.emitByte(byte(len(call.Args)), call.Line)
}
