package lexer

import (
	"fmt"
	"strings"
)

// Error is a tokenization failure.
type Error struct {
	// BadEscape marks a malformed string escape.
	BadEscape bool
	Msg       string
	Span      Span
}

func (e *Error) Error() string { return e.Msg }

type mode int

const (
	modeData mode = iota
	modeVariable
	modeBlock
)

type tagKind int

const (
	tagVariable tagKind = iota
	tagBlock
	tagComment
)

var tagKinds = map[byte]tagKind{'{': tagVariable, '%': tagBlock, '#': tagComment}

// wsControl is the whitespace modifier written next to a delimiter.
type wsControl int

const (
	wsDefault  wsControl = iota
	wsPreserve           // +
	wsRemove             // -
)

func wsControlOf(b byte) wsControl {
	switch b {
	case '-':
		return wsRemove
	case '+':
		return wsPreserve
	}
	return wsDefault
}

const spaces = " \t\n\r"

// tagStart is an opening delimiter found in template data.
type tagStart struct {
	offset int // from the current position
	length int // delimiter plus modifier
	kind   tagKind
	ws     wsControl
}

// Lexer splits template source into tokens.
type Lexer struct {
	src  string
	pos  int
	line uint16 // 1-based
	col  uint16 // 0-based

	// start of the token being built
	startPos  int
	startLine uint16
	startCol  uint16

	ws      WhitespaceConfig
	modes   []mode
	pending *tagStart
	// trimNext drops leading whitespace from the next data token, after a
	// `-%}` or similar.
	trimNext bool
	// nesting counts open brackets; a closing delimiter inside them is
	// just an operator.
	nesting int
}

// New prepares a lexer for src.
func New(src string, ws WhitespaceConfig) *Lexer {
	if !ws.KeepTrailingNewline {
		src = strings.TrimSuffix(src, "\n")
		src = strings.TrimSuffix(src, "\r")
	}
	return &Lexer{src: src, line: 1, ws: ws, modes: []mode{modeData}}
}

// Tokenize lexes all of src.
func Tokenize(src string, ws WhitespaceConfig) ([]Token, error) {
	return New(src, ws).All()
}

// All drains the lexer.
func (l *Lexer) All() ([]Token, error) {
	var out []Token
	for {
		tok, err := l.Next()
		if err != nil || tok == nil {
			return out, err
		}
		out = append(out, *tok)
	}
}

// Next returns the next token, or nil once the input is exhausted.
func (l *Lexer) Next() (*Token, error) {
	for !l.atEnd() {
		var tok *Token
		var err error
		switch l.modes[len(l.modes)-1] {
		case modeData:
			tok, err = l.lexData()
		case modeVariable:
			tok, err = l.lexInTag(varEnd, TokenVariableEnd)
		case modeBlock:
			tok, err = l.lexInTag(blockEnd, TokenBlockEnd)
		}
		if err != nil || tok != nil {
			return tok, err
		}
	}
	return nil, nil
}

func (l *Lexer) push(m mode) { l.modes = append(l.modes, m) }

func (l *Lexer) pop() {
	if len(l.modes) > 1 {
		l.modes = l.modes[:len(l.modes)-1]
	}
}

// lexData emits the template data before the next tag, then opens the tag
// on the following call. Nil without error means nothing to emit yet.
func (l *Lexer) lexData() (*Token, error) {
	if t := l.pending; t != nil {
		l.pending = nil
		return l.openTag(*t)
	}
	if l.trimNext {
		l.trimNext = false
		l.skipWhitespace()
	}
	l.markStart()

	t, ok := l.findTag()
	if !ok {
		text := l.advance(len(l.src) - l.pos)
		return l.dataToken(text, l.span()), nil
	}
	l.pending = &t

	text := l.rest()[:t.offset]
	keep := len(text)
	switch t.ws {
	case wsRemove:
		keep = len(strings.TrimRight(text, spaces))
	case wsDefault:
		if l.lstrips(t.kind, l.src[:l.pos+t.offset]) {
			keep = len(lstripBlock(text))
		}
	}
	lead := l.advance(keep)
	span := l.span()
	l.advance(len(text) - keep)
	return l.dataToken(lead, span), nil
}

func (l *Lexer) dataToken(text string, span Span) *Token {
	if text == "" {
		return nil
	}
	return &Token{Type: TokenTemplateData, Value: text, Span: span}
}

func (l *Lexer) findTag() (tagStart, bool) {
	rest := l.rest()
	for from := 0; ; {
		i := strings.IndexByte(rest[from:], '{')
		if i < 0 {
			return tagStart{}, false
		}
		i += from
		if i+1 >= len(rest) {
			return tagStart{}, false
		}
		kind, ok := tagKinds[rest[i+1]]
		if !ok {
			from = i + 1
			continue
		}
		t := tagStart{offset: i, length: 2, kind: kind}
		if i+2 < len(rest) {
			t.ws = wsControlOf(rest[i+2])
		}
		if t.ws != wsDefault {
			t.length++
		}
		return t, true
	}
}

func (l *Lexer) openTag(t tagStart) (*Token, error) {
	switch t.kind {
	case tagComment:
		body := l.rest()[t.length:]
		end := strings.Index(body, commentEnd)
		if end < 0 {
			l.markStart()
			l.advance(len(l.rest()))
			return nil, l.syntaxError("unexpected end of comment")
		}
		ws := wsDefault
		if end > 0 {
			ws = wsControlOf(body[end-1])
		}
		l.advance(t.length + end + len(commentEnd))
		l.afterTag(ws)
		return nil, nil

	case tagBlock:
		if n, ws := matchSimpleTag(l.rest()[t.length:], "raw"); n > 0 {
			l.advance(t.length + n)
			return l.lexRaw(ws)
		}
		return l.enter(t, modeBlock, TokenBlockStart, blockStart), nil
	}
	return l.enter(t, modeVariable, TokenVariableStart, varStart), nil
}

func (l *Lexer) enter(t tagStart, m mode, typ TokenType, text string) *Token {
	l.markStart()
	l.advance(t.length)
	l.push(m)
	tok := l.makeToken(typ, text)
	return &tok
}

// lexRaw emits everything up to {% endraw %} as data. open is the modifier
// on the closing side of the raw tag.
func (l *Lexer) lexRaw(open wsControl) (*Token, error) {
	l.markStart()
	rest := l.rest()
	for from := 0; ; {
		i := strings.Index(rest[from:], blockStart)
		if i < 0 {
			l.advance(len(rest))
			return nil, l.syntaxError("unexpected end of raw block")
		}
		tagAt := from + i
		inner := tagAt + len(blockStart)
		n, after := matchSimpleTag(rest[inner:], "endraw")
		if n == 0 {
			from = inner
			continue
		}

		text := rest[:tagAt]
		switch open {
		case wsRemove:
			text = strings.TrimLeft(text, spaces)
		case wsDefault:
			if l.ws.TrimBlocks {
				text = strings.TrimPrefix(strings.TrimPrefix(text, "\r"), "\n")
			}
		}
		closing := wsDefault
		if inner < len(rest) {
			closing = wsControlOf(rest[inner])
		}
		switch closing {
		case wsRemove:
			text = strings.TrimRight(text, spaces)
		case wsDefault:
			if l.ws.LstripBlocks {
				text = lstripBlock(text)
			}
		}

		l.advance(tagAt)
		span := l.span()
		l.advance(len(blockStart) + n)
		l.afterTag(after)
		return &Token{Type: TokenTemplateData, Value: text, Span: span}, nil
	}
}

// matchSimpleTag reports how many bytes of s form the rest of a tag with no
// arguments, such as "- raw +%}", along with the modifier before %}. It
// returns 0 when s is something else.
func matchSimpleTag(s, name string) (int, wsControl) {
	rest := s
	if rest != "" && (rest[0] == '-' || rest[0] == '+') {
		rest = rest[1:]
	}
	rest = strings.TrimLeft(rest, spaces)
	if !strings.HasPrefix(rest, name) {
		return 0, wsDefault
	}
	rest = rest[len(name):]
	if rest != "" && isIdentPart(rest[0]) {
		return 0, wsDefault
	}
	rest = strings.TrimLeft(rest, spaces)

	ws := wsDefault
	if rest != "" && (rest[0] == '-' || rest[0] == '+') {
		ws = wsControlOf(rest[0])
		rest = rest[1:]
	}
	if !strings.HasPrefix(rest, blockEnd) {
		return 0, wsDefault
	}
	return len(s) - len(rest) + len(blockEnd), ws
}

// afterTag applies a closing modifier to the data that follows.
func (l *Lexer) afterTag(ws wsControl) {
	switch ws {
	case wsRemove:
		l.trimNext = true
	case wsDefault:
		l.trimBlockNewline()
	}
}

func (l *Lexer) trimBlockNewline() {
	if !l.ws.TrimBlocks {
		return
	}
	if strings.HasPrefix(l.rest(), "\r") {
		l.advance(1)
	}
	if strings.HasPrefix(l.rest(), "\n") {
		l.advance(1)
	}
}

// lstrips reports whether a block or comment tag starting after before is
// the first thing on its line and lstrip_blocks is on.
func (l *Lexer) lstrips(kind tagKind, before string) bool {
	if !l.ws.LstripBlocks || kind == tagVariable {
		return false
	}
	line := before[strings.LastIndexAny(before, "\r\n")+1:]
	return strings.Trim(line, " \t") == ""
}

// lexInTag lexes one token inside {{ }} or {% %}.
func (l *Lexer) lexInTag(end string, endType TokenType) (*Token, error) {
	l.skipWhitespace()
	if l.atEnd() {
		return nil, nil
	}
	l.markStart()
	rest := l.rest()

	if l.nesting == 0 {
		if closer, ws := closingDelimiter(rest, end); closer != "" {
			l.pop()
			l.advance(len(closer))
			tok := l.makeToken(endType, closer)
			switch {
			case ws == wsRemove:
				l.trimNext = true
			case ws == wsDefault && endType == TokenBlockEnd:
				l.trimBlockNewline()
			}
			return &tok, nil
		}
	}

	if typ, text, ok := lookupSymbol(rest); ok {
		switch typ {
		case TokenParenOpen, TokenBracketOpen, TokenBraceOpen:
			l.nesting++
		case TokenParenClose, TokenBracketClose, TokenBraceClose:
			l.nesting--
		}
		l.advance(len(text))
		tok := l.makeToken(typ, text)
		return &tok, nil
	}

	switch c := rest[0]; {
	case c == '"' || c == '\'':
		return l.lexString(c)
	case isDigit(c):
		return l.lexNumber()
	case isIdentStart(c):
		return l.lexIdent()
	default:
		return nil, l.syntaxError(fmt.Sprintf("unexpected character %q", c))
	}
}

// closingDelimiter matches end at the start of rest, optionally preceded by
// a - or + modifier. A `+}}` keeps whitespace and also skips trim_blocks.
func closingDelimiter(rest, end string) (string, wsControl) {
	if rest == "" {
		return "", wsDefault
	}
	if ws := wsControlOf(rest[0]); ws != wsDefault && strings.HasPrefix(rest[1:], end) {
		return rest[:1+len(end)], ws
	}
	if strings.HasPrefix(rest, end) {
		return end, wsDefault
	}
	return "", wsDefault
}

func (l *Lexer) atEnd() bool { return l.pos >= len(l.src) }

func (l *Lexer) rest() string { return l.src[min(l.pos, len(l.src)):] }

// advance consumes up to n bytes, tracking line and column, and returns
// them.
func (l *Lexer) advance(n int) string {
	if n <= 0 {
		return ""
	}
	end := min(l.pos+n, len(l.src))
	text := l.src[l.pos:end]
	for _, c := range text {
		switch {
		case c == '\n':
			l.line++
			l.col = 0
		case l.col < 0xFFFF:
			l.col++
		}
	}
	l.pos = end
	return text
}

func (l *Lexer) markStart() {
	l.startPos, l.startLine, l.startCol = l.pos, l.line, l.col
}

func (l *Lexer) span() Span {
	return Span{
		StartLine: l.startLine, StartCol: l.startCol, StartOffset: uint32(l.startPos),
		EndLine: l.line, EndCol: l.col, EndOffset: uint32(l.pos),
	}
}

func (l *Lexer) makeToken(typ TokenType, value string) Token {
	return Token{Type: typ, Value: value, Span: l.span()}
}

func (l *Lexer) skipWhitespace() {
	l.advance(len(l.rest()) - len(strings.TrimLeft(l.rest(), spaces)))
}

func (l *Lexer) syntaxError(msg string) error {
	return &Error{Msg: msg, Span: l.span()}
}

func (l *Lexer) badEscape(msg string) error {
	return &Error{BadEscape: true, Msg: msg, Span: l.span()}
}

// lstripBlock drops the spaces and tabs between the last line break of s
// and its end, when nothing else is there.
func lstripBlock(s string) string {
	trimmed := strings.TrimRight(s, " \t")
	if trimmed == "" || strings.HasSuffix(trimmed, "\n") {
		return trimmed
	}
	return s
}
