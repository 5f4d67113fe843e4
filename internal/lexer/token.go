// Package lexer provides tokenization for Jinja2 templates.
package lexer

import (
	"fmt"

	"github.com/mitsuhiko/minijinja/minijinja-cabi-go/syntax"
)

// TokenType represents the type of a token.
type TokenType int

const (
	// Template data (raw text between tags)
	TokenTemplateData TokenType = iota

	// Delimiters
	TokenVariableStart // {{
	TokenVariableEnd   // }}
	TokenBlockStart    // {%
	TokenBlockEnd      // %}

	// Literals
	TokenIdent   // identifier, keywords included
	TokenString  // "string" or 'string'
	TokenInteger // 123 (fits in u64)
	TokenInt128  // integers that do not fit in u64
	TokenFloat   // 123.45

	// Operators
	TokenPlus     // +
	TokenMinus    // -
	TokenMul      // *
	TokenDiv      // /
	TokenFloorDiv // //
	TokenMod      // %
	TokenPow      // **
	TokenTilde    // ~

	// Comparison
	TokenEq // ==
	TokenNe // !=
	TokenLt // <
	TokenLe // <=
	TokenGt // >
	TokenGe // >=

	TokenAssign // =

	// Punctuation
	TokenDot          // .
	TokenComma        // ,
	TokenColon        // :
	TokenPipe         // |
	TokenParenOpen    // (
	TokenParenClose   // )
	TokenBracketOpen  // [
	TokenBracketClose // ]
	TokenBraceOpen    // {
	TokenBraceClose   // }
)

// Token represents a single token from the lexer.
type Token struct {
	Type  TokenType
	Value string // The token value (for idents, strings, numbers, template data)
	Span  Span   // Source location
}

// Span represents a location range in source code.
type Span = syntax.Span

// String returns a debug representation of the token.
func (t Token) String() string {
	return fmt.Sprintf("%s(%q)", t.Type, t.Value)
}

// tokenInfo names every token type. Operators and punctuation also carry
// the source text they are lexed from.
var tokenInfo = [...]struct{ name, symbol string }{
	TokenTemplateData:  {"TemplateData", ""},
	TokenVariableStart: {"VariableStart", ""},
	TokenVariableEnd:   {"VariableEnd", ""},
	TokenBlockStart:    {"BlockStart", ""},
	TokenBlockEnd:      {"BlockEnd", ""},
	TokenIdent:         {"Ident", ""},
	TokenString:        {"Str", ""},
	TokenInteger:       {"Int", ""},
	TokenInt128:        {"Int128", ""},
	TokenFloat:         {"Float", ""},

	TokenPlus: {"Plus", "+"}, TokenMinus: {"Minus", "-"},
	TokenMul: {"Mul", "*"}, TokenDiv: {"Div", "/"},
	TokenFloorDiv: {"FloorDiv", "//"}, TokenMod: {"Mod", "%"},
	TokenPow: {"Pow", "**"}, TokenTilde: {"Tilde", "~"},

	TokenEq: {"Eq", "=="}, TokenNe: {"Ne", "!="},
	TokenLt: {"Lt", "<"}, TokenLe: {"Le", "<="},
	TokenGt: {"Gt", ">"}, TokenGe: {"Ge", ">="},
	TokenAssign: {"Assign", "="},

	TokenDot: {"Dot", "."}, TokenComma: {"Comma", ","},
	TokenColon: {"Colon", ":"}, TokenPipe: {"Pipe", "|"},
	TokenParenOpen: {"ParenOpen", "("}, TokenParenClose: {"ParenClose", ")"},
	TokenBracketOpen: {"BracketOpen", "["}, TokenBracketClose: {"BracketClose", "]"},
	TokenBraceOpen: {"BraceOpen", "{"}, TokenBraceClose: {"BraceClose", "}"},
}

// symbols maps operator text back to its token type.
var symbols = func() map[string]TokenType {
	m := make(map[string]TokenType)
	for typ, info := range tokenInfo {
		if info.symbol != "" {
			m[info.symbol] = TokenType(typ)
		}
	}
	return m
}()

// lookupSymbol matches the longest operator at the start of s.
func lookupSymbol(s string) (TokenType, string, bool) {
	for n := min(2, len(s)); n > 0; n-- {
		if typ, ok := symbols[s[:n]]; ok {
			return typ, s[:n], true
		}
	}
	return 0, "", false
}

func (t TokenType) String() string {
	if int(t) >= 0 && int(t) < len(tokenInfo) {
		return tokenInfo[t].name
	}
	return fmt.Sprintf("TokenType(%d)", t)
}
