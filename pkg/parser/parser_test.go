package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/smog/pkg/ast"
	"github.com/kristofer/smog/pkg/lexer"
)

func parse(t *testing.T, src string) *ast.Program {
	t.Helper()
	p := New(lexer.New(src))
	prog := p.Parse()
	require.Empty(t, p.Errors(), "unexpected parse errors: %v", p.Errors())
	return prog
}

func TestVarAndPrint(t *testing.T) {
	prog := parse(t, `var x = 1 + 2; print x;`)
	require.Len(t, prog.Statements, 2)

	v, ok := prog.Statements[0].(*ast.VarStmt)
	require.True(t, ok)
	assert.Equal(t, "x", v.Name)
	bin, ok := v.Initializer.(*ast.Binary)
	require.True(t, ok)
	assert.Equal(t, "+", bin.Operator)

	_, ok = prog.Statements[1].(*ast.PrintStmt)
	assert.True(t, ok)
}

func TestOperatorPrecedence(t *testing.T) {
	prog := parse(t, `print 1 + 2 * 3;`)
	stmt := prog.Statements[0].(*ast.PrintStmt)
	bin := stmt.Expression.(*ast.Binary)
	assert.Equal(t, "+", bin.Operator)
	assert.Equal(t, 1.0, bin.Left.(*ast.Literal).Value)
	rhs := bin.Right.(*ast.Binary)
	assert.Equal(t, "*", rhs.Operator)
}

func TestIfElse(t *testing.T) {
	prog := parse(t, `if (x) print 1; else print 2;`)
	stmt := prog.Statements[0].(*ast.IfStmt)
	assert.NotNil(t, stmt.Then)
	assert.NotNil(t, stmt.Else)
}

func TestWhileLoop(t *testing.T) {
	prog := parse(t, `while (x < 10) x = x + 1;`)
	stmt := prog.Statements[0].(*ast.WhileStmt)
	cond := stmt.Condition.(*ast.Binary)
	assert.Equal(t, "<", cond.Operator)
}

func TestForDesugarsToWhile(t *testing.T) {
	prog := parse(t, `for (var i = 0; i < 3; i = i + 1) print i;`)
	block, ok := prog.Statements[0].(*ast.BlockStmt)
	require.True(t, ok)
	require.Len(t, block.Statements, 2)
	_, ok = block.Statements[0].(*ast.VarStmt)
	assert.True(t, ok)
	_, ok = block.Statements[1].(*ast.WhileStmt)
	assert.True(t, ok)
}

func TestClassWithSuperclassAndMethods(t *testing.T) {
	prog := parse(t, `class Animal { speak() { print "..."; } } class Dog < Animal { speak() { print "woof"; } }`)
	require.Len(t, prog.Statements, 2)
	dog := prog.Statements[1].(*ast.ClassStmt)
	assert.Equal(t, "Dog", dog.Name)
	require.NotNil(t, dog.Superclass)
	assert.Equal(t, "Animal", dog.Superclass.Name)
	require.Len(t, dog.Methods, 1)
	assert.Equal(t, "speak", dog.Methods[0].Name)
}

func TestCallAndGetChain(t *testing.T) {
	prog := parse(t, `a.b.c(1, 2);`)
	stmt := prog.Statements[0].(*ast.ExpressionStmt)
	call := stmt.Expression.(*ast.Call)
	require.Len(t, call.Args, 2)
	get := call.Callee.(*ast.Get)
	assert.Equal(t, "c", get.Name)
}

func TestSuperAndThis(t *testing.T) {
	prog := parse(t, `class Dog < Animal { speak() { super.speak(); return this; } }`)
	cls := prog.Statements[0].(*ast.ClassStmt)
	body := cls.Methods[0].Body
	require.Len(t, body, 2)
	exprStmt := body[0].(*ast.ExpressionStmt)
	call := exprStmt.Expression.(*ast.Call)
	_, ok := call.Callee.(*ast.Super)
	assert.True(t, ok)
	ret := body[1].(*ast.ReturnStmt)
	_, ok = ret.Expression.(*ast.This)
	assert.True(t, ok)
}

func TestSynchronizeAfterError(t *testing.T) {
	p := New(lexer.New(`var = 1; var y = 2;`))
	prog := p.Parse()
	assert.NotEmpty(t, p.Errors())
	require.Len(t, prog.Statements, 2)
	v, ok := prog.Statements[1].(*ast.VarStmt)
	require.True(t, ok)
	assert.Equal(t, "y", v.Name)
}
