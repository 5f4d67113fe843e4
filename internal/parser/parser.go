package parser

import (
	"errors"
	"fmt"
	"slices"

	"github.com/mitsuhiko/minijinja/minijinja-cabi-go/internal/lexer"
)

// maxDepth bounds nesting so hostile input cannot exhaust the stack.
const maxDepth = 150

var reservedNames = map[string]bool{
	"true": true, "True": true,
	"false": true, "False": true,
	"none": true, "None": true,
	"loop": true, "self": true,
}

// Error is a syntax error with the offending source range.
type Error struct {
	// BadEscape marks a malformed string escape rather than bad structure.
	BadEscape bool
	Detail    string
	Span      Span
}

func (e *Error) Error() string { return e.Detail }

// Parser holds the cursor over one token stream.
type Parser struct {
	tokens []lexer.Token
	pos    int
	last   Span

	depth   int
	inLoop  bool
	inMacro bool
	blocks  map[string]struct{}
}

// Parse tokenizes and parses source. Failures are reported as *Error.
func Parse(source string, ws lexer.WhitespaceConfig) (*Template, error) {
	tokens, err := lexer.Tokenize(source, ws)
	if err != nil {
		var lerr *lexer.Error
		if errors.As(err, &lerr) {
			return nil, &Error{BadEscape: lerr.BadEscape, Detail: lerr.Msg, Span: lerr.Span}
		}
		return nil, &Error{Detail: err.Error()}
	}

	p := &Parser{tokens: tokens, blocks: map[string]struct{}{}}
	children, perr := p.subparse()
	if perr != nil {
		return nil, perr
	}
	return &Template{stmtBase: stmtAt(p.through(Span{})), Children: children}, nil
}

func (p *Parser) peek() *lexer.Token { return p.peekAt(0) }

func (p *Parser) peekAt(n int) *lexer.Token {
	if i := p.pos + n; i < len(p.tokens) {
		return &p.tokens[i]
	}
	return nil
}

func (p *Parser) next() *lexer.Token {
	tok := p.peek()
	if tok != nil {
		p.last = tok.Span
		p.pos++
	}
	return tok
}

// here is the span of the upcoming token, or of the last one at EOF.
func (p *Parser) here() Span {
	if tok := p.peek(); tok != nil {
		return tok.Span
	}
	return p.last
}

// through widens start to the end of the last consumed token.
func (p *Parser) through(start Span) Span {
	start.EndLine = p.last.EndLine
	start.EndCol = p.last.EndCol
	start.EndOffset = p.last.EndOffset
	return start
}

// descend tracks nesting depth; call the returned func on the way out.
func (p *Parser) descend() (func(), *Error) {
	p.depth++
	leave := func() { p.depth-- }
	if p.depth > maxDepth {
		leave()
		return nil, p.fail("template exceeds maximum recursion limits")
	}
	return leave, nil
}

func (p *Parser) fail(format string, args ...any) *Error {
	return &Error{Detail: fmt.Sprintf(format, args...), Span: p.here()}
}

func (p *Parser) failUnexpected(tok *lexer.Token, want string) *Error {
	if tok == nil {
		return p.fail("unexpected end of input, expected %s", want)
	}
	return p.fail("unexpected %s, expected %s", describe(tok), want)
}

func (p *Parser) is(typ lexer.TokenType) bool {
	tok := p.peek()
	return tok != nil && tok.Type == typ
}

func (p *Parser) isAny(types ...lexer.TokenType) bool {
	tok := p.peek()
	return tok != nil && slices.Contains(types, tok.Type)
}

func (p *Parser) isKeyword(kws ...string) bool {
	tok := p.peek()
	return tok != nil && tok.Type == lexer.TokenIdent && slices.Contains(kws, tok.Value)
}

func (p *Parser) accept(typ lexer.TokenType) bool {
	if !p.is(typ) {
		return false
	}
	p.next()
	return true
}

func (p *Parser) acceptKeyword(kw string) bool {
	if !p.isKeyword(kw) {
		return false
	}
	p.next()
	return true
}

func (p *Parser) want(typ lexer.TokenType, what string) (*lexer.Token, *Error) {
	tok := p.next()
	if tok == nil || tok.Type != typ {
		return nil, p.failUnexpected(tok, what)
	}
	return tok, nil
}

func (p *Parser) wantIdent() (string, Span, *Error) {
	tok, err := p.want(lexer.TokenIdent, "identifier")
	if err != nil {
		return "", Span{}, err
	}
	return tok.Value, tok.Span, nil
}

func (p *Parser) wantKeyword(kw string) *Error {
	tok := p.next()
	if tok == nil || tok.Type != lexer.TokenIdent || tok.Value != kw {
		return p.failUnexpected(tok, kw)
	}
	return nil
}

func (p *Parser) wantBlockEnd() *Error {
	_, err := p.want(lexer.TokenBlockEnd, "end of block")
	return err
}

// commaList parses `item (, item)* ,? close`, with the opening token already
// consumed.
func (p *Parser) commaList(close lexer.TokenType, closeName string, item func() *Error) *Error {
	for n := 0; !p.accept(close); n++ {
		if n > 0 {
			if _, err := p.want(lexer.TokenComma, "`,`"); err != nil {
				return err
			}
			if p.accept(close) {
				return nil
			}
		}
		if p.peek() == nil {
			return p.failUnexpected(nil, closeName)
		}
		if err := item(); err != nil {
			return err
		}
	}
	return nil
}

var tokenNames = map[lexer.TokenType]string{
	lexer.TokenIdent:         "identifier",
	lexer.TokenString:        "string",
	lexer.TokenInteger:       "integer",
	lexer.TokenInt128:        "integer",
	lexer.TokenFloat:         "float",
	lexer.TokenTemplateData:  "template data",
	lexer.TokenBlockStart:    "start of block",
	lexer.TokenBlockEnd:      "end of block",
	lexer.TokenVariableStart: "start of variable block",
	lexer.TokenVariableEnd:   "end of variable block",
}

func describe(tok *lexer.Token) string {
	if name, ok := tokenNames[tok.Type]; ok {
		return name
	}
	return "`" + tok.Value + "`"
}
