package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func collect(src string) []Token {
	l := New(src)
	var toks []Token
	for {
		tok := l.NextToken()
		toks = append(toks, tok)
		if tok.Type == TokenEOF {
			return toks
		}
	}
}

func types(toks []Token) []TokenType {
	out := make([]TokenType, len(toks))
	for i, t := range toks {
		out[i] = t.Type
	}
	return out
}

func TestPunctuationAndOperators(t *testing.T) {
	toks := collect(`(){},.-+;*/! != = == < <= > >=`)
	assert.Equal(t, []TokenType{
		TokenLeftParen, TokenRightParen, TokenLeftBrace, TokenRightBrace,
		TokenComma, TokenDot, TokenMinus, TokenPlus, TokenSemicolon,
		TokenStar, TokenSlash, TokenBang, TokenBangEqual, TokenEqual,
		TokenEqualEqual, TokenLess, TokenLessEqual, TokenGreater, TokenGreaterEqual,
		TokenEOF,
	}, types(toks))
}

func TestKeywordsAndIdentifiers(t *testing.T) {
	toks := collect(`var x = fun class this super nil true false print if else for while and or return foo_bar`)
	want := []TokenType{
		TokenVar, TokenIdentifier, TokenEqual, TokenFun, TokenClass, TokenThis,
		TokenSuper, TokenNil, TokenTrue, TokenFalse, TokenPrint, TokenIf, TokenElse,
		TokenFor, TokenWhile, TokenAnd, TokenOr, TokenReturn, TokenIdentifier, TokenEOF,
	}
	assert.Equal(t, want, types(toks))
	assert.Equal(t, "x", toks[1].Literal)
	assert.Equal(t, "foo_bar", toks[len(toks)-2].Literal)
}

func TestStringAndNumberLiterals(t *testing.T) {
	toks := collect(`"hello world" 3 3.5 "" 0.0`)
	assert.Equal(t, "hello world", toks[0].Literal)
	assert.Equal(t, TokenString, toks[0].Type)
	assert.Equal(t, "3", toks[1].Literal)
	assert.Equal(t, "3.5", toks[2].Literal)
	assert.Equal(t, "", toks[3].Literal)
	assert.Equal(t, "0.0", toks[4].Literal)
}

func TestCommentsAreSkipped(t *testing.T) {
	toks := collect("var x = 1; // this is a comment\nvar y = 2;")
	assert.Equal(t, []TokenType{
		TokenVar, TokenIdentifier, TokenEqual, TokenNumber, TokenSemicolon,
		TokenVar, TokenIdentifier, TokenEqual, TokenNumber, TokenSemicolon, TokenEOF,
	}, types(toks))
}

func TestLineTracking(t *testing.T) {
	toks := collect("var x;\nvar y;\n\nvar z;")
	assert.Equal(t, 1, toks[0].Line)
	assert.Equal(t, 2, toks[3].Line)
	assert.Equal(t, 4, toks[6].Line)
}

func TestIllegalCharacter(t *testing.T) {
	toks := collect("var x = @;")
	assert.Equal(t, TokenIllegal, toks[3].Type)
	assert.Equal(t, "@", toks[3].Literal)
}
