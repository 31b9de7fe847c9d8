// Package parser builds an ast.Program from a token stream. It keeps the
// teacher's two-token-lookahead shape and its habit of accumulating every
// syntax error it finds rather than stopping at the first one
// (pkg/parser/parser.go's errors []string field and error-recovery loop),
// retargeted from Smalltalk keyword-message grammar to Lox's expression
// grammar with Pratt-style precedence climbing for binary operators.
package parser

import (
	"fmt"
	"strconv"

	"github.com/kristofer/smog/pkg/ast"
	"github.com/kristofer/smog/pkg/lexer"
)

// precedence levels, lowest to highest; see spec §6a.
const (
	precNone = iota
	precAssignment
	precOr
	precAnd
	precEquality
	precComparison
	precTerm
	precFactor
	precUnary
	precCall
	precPrimary
)

var precedences = map[lexer.TokenType]int{
	lexer.TokenEqual:        precAssignment,
	lexer.TokenOr:           precOr,
	lexer.TokenAnd:          precAnd,
	lexer.TokenEqualEqual:   precEquality,
	lexer.TokenBangEqual:    precEquality,
	lexer.TokenLess:         precComparison,
	lexer.TokenLessEqual:    precComparison,
	lexer.TokenGreater:      precComparison,
	lexer.TokenGreaterEqual: precComparison,
	lexer.TokenPlus:         precTerm,
	lexer.TokenMinus:        precTerm,
	lexer.TokenStar:         precFactor,
	lexer.TokenSlash:        precFactor,
}

// Parser turns a token stream into an ast.Program, collecting every
// syntax error it encounters along the way instead of aborting on the
// first (the same "report and keep going" idiom the teacher's parser
// uses, so one bad line doesn't hide the rest of a source file's errors).
type Parser struct {
	l *lexer.Lexer

	cur  lexer.Token
	peek lexer.Token

	errors []string
}

// New returns a Parser ready to parse tokens from l.
func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l}
	p.next()
	p.next()
	return p
}

// Errors returns every syntax error accumulated while parsing.
func (p *Parser) Errors() []string { return p.errors }

func (p *Parser) next() {
	p.cur = p.peek
	p.peek = p.l.NextToken()
}

func (p *Parser) curIs(t lexer.TokenType) bool  { return p.cur.Type == t }
func (p *Parser) peekIs(t lexer.TokenType) bool { return p.peek.Type == t }

func (p *Parser) expect(t lexer.TokenType, what string) bool {
	if p.curIs(t) {
		p.next()
		return true
	}
	p.errorf("expected %s, got %s", what, p.cur.Type)
	return false
}

func (p *Parser) errorf(format string, args ...interface{}) {
	p.errors = append(p.errors, fmt.Sprintf("[line %d] %s", p.cur.Line, fmt.Sprintf(format, args...)))
}

// Parse consumes the whole token stream and returns the resulting
// Program. Check Errors() afterward — a non-empty Program can still carry
// syntax errors recorded during synchronized recovery.
func (p *Parser) Parse() *ast.Program {
	prog := &ast.Program{}
	for !p.curIs(lexer.TokenEOF) {
		stmt := p.declaration()
		if stmt != nil {
			prog.Statements = append(prog.Statements, stmt)
		}
	}
	return prog
}

// declaration parses one top-level-or-block declaration and synchronizes
// past the rest of the current statement if parsing it failed, so a
// single bad statement doesn't cascade into spurious downstream errors.
func (p *Parser) declaration() ast.Stmt {
	startErrors := len(p.errors)
	var stmt ast.Stmt
	switch {
	case p.curIs(lexer.TokenClass):
		stmt = p.classDeclaration()
	case p.curIs(lexer.TokenFun):
		p.next()
		stmt = p.function("function")
	case p.curIs(lexer.TokenVar):
		stmt = p.varDeclaration()
	default:
		stmt = p.statement()
	}
	if len(p.errors) > startErrors {
		p.synchronize()
	}
	return stmt
}

func (p *Parser) synchronize() {
	for !p.curIs(lexer.TokenEOF) {
		if p.cur.Type == lexer.TokenSemicolon {
			p.next()
			return
		}
		switch p.cur.Type {
		case lexer.TokenClass, lexer.TokenFun, lexer.TokenVar, lexer.TokenFor,
			lexer.TokenIf, lexer.TokenWhile, lexer.TokenPrint, lexer.TokenReturn:
			return
		}
		p.next()
	}
}

func (p *Parser) classDeclaration() ast.Stmt {
	line := p.cur.Line
	p.next() // 'class'
	name := p.cur.Literal
	p.expect(lexer.TokenIdentifier, "class name")

	var super *ast.Variable
	if p.curIs(lexer.TokenLess) {
		p.next()
		super = &ast.Variable{Name: p.cur.Literal, Line: p.cur.Line}
		p.expect(lexer.TokenIdentifier, "superclass name")
	}

	p.expect(lexer.TokenLeftBrace, "'{' before class body")
	var methods []*ast.FunctionStmt
	for !p.curIs(lexer.TokenRightBrace) && !p.curIs(lexer.TokenEOF) {
		methods = append(methods, p.function("method"))
	}
	p.expect(lexer.TokenRightBrace, "'}' after class body")

	return &ast.ClassStmt{Name: name, Superclass: super, Methods: methods, Line: line}
}

func (p *Parser) function(kind string) *ast.FunctionStmt {
	line := p.cur.Line
	name := p.cur.Literal
	p.expect(lexer.TokenIdentifier, kind+" name")
	p.expect(lexer.TokenLeftParen, "'(' after "+kind+" name")

	var params []string
	if !p.curIs(lexer.TokenRightParen) {
		params = append(params, p.cur.Literal)
		p.expect(lexer.TokenIdentifier, "parameter name")
		for p.curIs(lexer.TokenComma) {
			p.next()
			params = append(params, p.cur.Literal)
			p.expect(lexer.TokenIdentifier, "parameter name")
		}
	}
	p.expect(lexer.TokenRightParen, "')' after parameters")
	p.expect(lexer.TokenLeftBrace, "'{' before "+kind+" body")
	body := p.block()

	return &ast.FunctionStmt{Name: name, Params: params, Body: body, Line: line}
}

func (p *Parser) varDeclaration() ast.Stmt {
	line := p.cur.Line
	p.next() // 'var'
	name := p.cur.Literal
	p.expect(lexer.TokenIdentifier, "variable name")

	var init ast.Expr
	if p.curIs(lexer.TokenEqual) {
		p.next()
		init = p.expression()
	}
	p.expect(lexer.TokenSemicolon, "';' after variable declaration")
	return &ast.VarStmt{Name: name, Initializer: init, Line: line}
}

func (p *Parser) statement() ast.Stmt {
	switch p.cur.Type {
	case lexer.TokenPrint:
		return p.printStatement()
	case lexer.TokenLeftBrace:
		p.next()
		return &ast.BlockStmt{Statements: p.block()}
	case lexer.TokenIf:
		return p.ifStatement()
	case lexer.TokenWhile:
		return p.whileStatement()
	case lexer.TokenFor:
		return p.forStatement()
	case lexer.TokenReturn:
		return p.returnStatement()
	default:
		return p.expressionStatement()
	}
}

func (p *Parser) block() []ast.Stmt {
	var stmts []ast.Stmt
	for !p.curIs(lexer.TokenRightBrace) && !p.curIs(lexer.TokenEOF) {
		if stmt := p.declaration(); stmt != nil {
			stmts = append(stmts, stmt)
		}
	}
	p.expect(lexer.TokenRightBrace, "'}' after block")
	return stmts
}

func (p *Parser) printStatement() ast.Stmt {
	line := p.cur.Line
	p.next()
	expr := p.expression()
	p.expect(lexer.TokenSemicolon, "';' after value")
	return &ast.PrintStmt{Expression: expr, Line: line}
}

func (p *Parser) expressionStatement() ast.Stmt {
	expr := p.expression()
	p.expect(lexer.TokenSemicolon, "';' after expression")
	return &ast.ExpressionStmt{Expression: expr}
}

func (p *Parser) ifStatement() ast.Stmt {
	line := p.cur.Line
	p.next()
	p.expect(lexer.TokenLeftParen, "'(' after 'if'")
	cond := p.expression()
	p.expect(lexer.TokenRightParen, "')' after if condition")
	then := p.statement()
	var elseBranch ast.Stmt
	if p.curIs(lexer.TokenElse) {
		p.next()
		elseBranch = p.statement()
	}
	return &ast.IfStmt{Condition: cond, Then: then, Else: elseBranch, Line: line}
}

func (p *Parser) whileStatement() ast.Stmt {
	line := p.cur.Line
	p.next()
	p.expect(lexer.TokenLeftParen, "'(' after 'while'")
	cond := p.expression()
	p.expect(lexer.TokenRightParen, "')' after while condition")
	body := p.statement()
	return &ast.WhileStmt{Condition: cond, Body: body, Line: line}
}

// forStatement desugars `for (init; cond; incr) body` into the equivalent
// block/while form at parse time (spec §4.K), so the compiler only ever
// has to know about WhileStmt and BlockStmt.
func (p *Parser) forStatement() ast.Stmt {
	line := p.cur.Line
	p.next()
	p.expect(lexer.TokenLeftParen, "'(' after 'for'")

	var init ast.Stmt
	switch {
	case p.curIs(lexer.TokenSemicolon):
		p.next()
	case p.curIs(lexer.TokenVar):
		init = p.varDeclaration()
	default:
		init = p.expressionStatement()
	}

	var cond ast.Expr
	if !p.curIs(lexer.TokenSemicolon) {
		cond = p.expression()
	}
	p.expect(lexer.TokenSemicolon, "';' after loop condition")

	var incr ast.Expr
	if !p.curIs(lexer.TokenRightParen) {
		incr = p.expression()
	}
	p.expect(lexer.TokenRightParen, "')' after for clauses")

	body := p.statement()

	if incr != nil {
		body = &ast.BlockStmt{Statements: []ast.Stmt{body, &ast.ExpressionStmt{Expression: incr}}}
	}
	if cond == nil {
		cond = &ast.Literal{Value: true, Line: line}
	}
	body = &ast.WhileStmt{Condition: cond, Body: body, Line: line}

	if init != nil {
		body = &ast.BlockStmt{Statements: []ast.Stmt{init, body}}
	}
	return body
}

func (p *Parser) returnStatement() ast.Stmt {
	line := p.cur.Line
	p.next()
	var value ast.Expr
	if !p.curIs(lexer.TokenSemicolon) {
		value = p.expression()
	}
	p.expect(lexer.TokenSemicolon, "';' after return value")
	return &ast.ReturnStmt{Expression: value, Line: line}
}

// expression parses with precedence climbing, starting at the lowest
// (assignment) level.
func (p *Parser) expression() ast.Expr {
	return p.parsePrecedence(precAssignment)
}

func (p *Parser) parsePrecedence(minPrec int) ast.Expr {
	left := p.unaryOrPrimary()

	for {
		prec, ok := precedences[p.cur.Type]
		if !ok || prec < minPrec {
			return left
		}
		left = p.infix(left, prec)
	}
}

func (p *Parser) unaryOrPrimary() ast.Expr {
	switch p.cur.Type {
	case lexer.TokenBang, lexer.TokenMinus:
		op := p.cur.Literal
		line := p.cur.Line
		p.next()
		right := p.parsePrecedence(precUnary)
		return &ast.Unary{Operator: op, Right: right, Line: line}
	default:
		return p.call(p.primary())
	}
}

func (p *Parser) call(expr ast.Expr) ast.Expr {
	for {
		switch p.cur.Type {
		case lexer.TokenLeftParen:
			line := p.cur.Line
			p.next()
			var args []ast.Expr
			if !p.curIs(lexer.TokenRightParen) {
				args = append(args, p.expression())
				for p.curIs(lexer.TokenComma) {
					p.next()
					args = append(args, p.expression())
				}
			}
			p.expect(lexer.TokenRightParen, "')' after arguments")
			expr = &ast.Call{Callee: expr, Args: args, Line: line}
		case lexer.TokenDot:
			line := p.cur.Line
			p.next()
			name := p.cur.Literal
			p.expect(lexer.TokenIdentifier, "property name after '.'")
			expr = &ast.Get{Object: expr, Name: name, Line: line}
		default:
			return expr
		}
	}
}

func (p *Parser) infix(left ast.Expr, prec int) ast.Expr {
	op := p.cur
	line := op.Line

	if op.Type == lexer.TokenEqual {
		p.next()
		value := p.parsePrecedence(precAssignment)
		switch target := left.(type) {
		case *ast.Variable:
			return &ast.Assign{Name: target.Name, Value: value, Line: line}
		case *ast.Get:
			return &ast.Set{Object: target.Object, Name: target.Name, Value: value, Line: line}
		default:
			p.errorf("invalid assignment target")
			return left
		}
	}

	if op.Type == lexer.TokenAnd || op.Type == lexer.TokenOr {
		p.next()
		right := p.parsePrecedence(prec + 1)
		return &ast.Logical{Left: left, Operator: op.Literal, Right: right, Line: line}
	}

	p.next()
	right := p.parsePrecedence(prec + 1)
	return &ast.Binary{Left: left, Operator: op.Literal, Right: right, Line: line}
}

func (p *Parser) primary() ast.Expr {
	tok := p.cur
	switch tok.Type {
	case lexer.TokenTrue:
		p.next()
		return &ast.Literal{Value: true, Line: tok.Line}
	case lexer.TokenFalse:
		p.next()
		return &ast.Literal{Value: false, Line: tok.Line}
	case lexer.TokenNil:
		p.next()
		return &ast.Literal{Value: nil, Line: tok.Line}
	case lexer.TokenNumber:
		p.next()
		f, _ := strconv.ParseFloat(tok.Literal, 64)
		return &ast.Literal{Value: f, Line: tok.Line}
	case lexer.TokenString:
		p.next()
		return &ast.Literal{Value: tok.Literal, Line: tok.Line}
	case lexer.TokenThis:
		p.next()
		return &ast.This{Line: tok.Line}
	case lexer.TokenSuper:
		p.next()
		p.expect(lexer.TokenDot, "'.' after 'super'")
		method := p.cur.Literal
		p.expect(lexer.TokenIdentifier, "superclass method name")
		return &ast.Super{Method: method, Line: tok.Line}
	case lexer.TokenIdentifier:
		p.next()
		return &ast.Variable{Name: tok.Literal, Line: tok.Line}
	case lexer.TokenLeftParen:
		p.next()
		expr := p.expression()
		p.expect(lexer.TokenRightParen, "')' after expression")
		return expr
	default:
		p.errorf("unexpected token %s", tok.Type)
		p.next()
		return &ast.Literal{Value: nil, Line: tok.Line}
	}
}
