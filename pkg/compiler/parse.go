package compiler

import (
	"github.com/kristofer/smog/pkg/ast"
	"github.com/kristofer/smog/pkg/lexer"
	"github.com/kristofer/smog/pkg/parser"
)

func parseSource(source string) (*ast.Program, []string) {
	p := parser.New(lexer.New(source))
	prog := p.Parse()
	return prog, p.Errors()
}
