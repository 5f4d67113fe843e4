package lexer

import (
	"math/big"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"
)

var simpleEscapes = map[byte]byte{
	'n': '\n', 't': '\t', 'r': '\r', 'b': '\b', 'f': '\f',
	'\\': '\\', '\'': '\'', '"': '"', '/': '/',
}

var radixPrefixes = map[byte]int{
	'b': 2, 'B': 2,
	'o': 8, 'O': 8,
	'x': 16, 'X': 16,
}

// lexString reads a quoted literal and decodes its escapes.
func (l *Lexer) lexString(quote byte) (*Token, error) {
	l.advance(1)
	var out strings.Builder
	for {
		rest := l.rest()
		i := strings.IndexAny(rest, string(quote)+`\`)
		if i < 0 {
			l.advance(len(rest))
			return nil, l.syntaxError("unexpected end of string")
		}
		out.WriteString(rest[:i])
		l.advance(i + 1)
		if rest[i] == quote {
			tok := l.makeToken(TokenString, out.String())
			return &tok, nil
		}

		if l.atEnd() {
			return nil, l.syntaxError("unexpected end of string")
		}
		esc := l.rest()[0]
		l.advance(1)
		if c, ok := simpleEscapes[esc]; ok {
			out.WriteByte(c)
			continue
		}
		if esc != 'u' {
			return nil, l.badEscape("invalid escape sequence \\" + string(rune(esc)))
		}
		r, err := l.lexUnicodeEscape()
		if err != nil {
			return nil, err
		}
		out.WriteRune(r)
	}
}

// lexUnicodeEscape decodes the digits of \uXXXX, joining a surrogate pair
// written as two escapes.
func (l *Lexer) lexUnicodeEscape() (rune, error) {
	hi, err := l.hex4()
	if err != nil {
		return 0, err
	}
	if !utf16.IsSurrogate(hi) {
		return hi, nil
	}
	if hi >= 0xDC00 || !strings.HasPrefix(l.rest(), `\u`) {
		return 0, l.badEscape("unpaired surrogate in unicode escape")
	}
	l.advance(2)
	lo, err := l.hex4()
	if err != nil {
		return 0, err
	}
	r := utf16.DecodeRune(hi, lo)
	if r == unicode.ReplacementChar {
		return 0, l.badEscape("unpaired surrogate in unicode escape")
	}
	return r, nil
}

func (l *Lexer) hex4() (rune, error) {
	rest := l.rest()
	if len(rest) < 4 {
		return 0, l.badEscape("invalid unicode escape")
	}
	n, err := strconv.ParseUint(rest[:4], 16, 32)
	if err != nil {
		return 0, l.badEscape("invalid unicode escape")
	}
	l.advance(4)
	return rune(n), nil
}

// lexNumber reads an integer (decimal, 0b, 0o or 0x) or a decimal float.
// Underscores may separate digits. Integers beyond uint64 become
// TokenInt128; the token value is always the normalized decimal text.
func (l *Lexer) lexNumber() (*Token, error) {
	src := l.rest()
	radix, body := 10, src
	if len(src) > 1 && src[0] == '0' {
		if r, ok := radixPrefixes[src[1]]; ok {
			radix, body = r, src[2:]
		}
	}

	n := digitRun(body, radix)
	isFloat := false
	if radix == 10 {
		if n+1 < len(body) && body[n] == '.' && isDigit(body[n+1]) {
			isFloat = true
			n += 1 + digitRun(body[n+1:], 10)
		}
		if n < len(body) && (body[n] == 'e' || body[n] == 'E') {
			isFloat = true
			n++
			if n < len(body) && (body[n] == '+' || body[n] == '-') {
				n++
			}
			n += digitRun(body[n:], 10)
		}
	}

	text := src[:len(src)-len(body)+n]
	l.advance(len(text))
	if strings.HasSuffix(text, "_") {
		return nil, l.syntaxError("'_' may not occur at end of number")
	}
	digits := strings.ReplaceAll(body[:n], "_", "")

	if isFloat {
		f, err := strconv.ParseFloat(digits, 64)
		if err != nil {
			return nil, l.syntaxError("invalid float")
		}
		tok := l.makeToken(TokenFloat, strconv.FormatFloat(f, 'g', -1, 64))
		return &tok, nil
	}

	if digits == "" {
		return nil, l.syntaxError("invalid integer")
	}
	if u, err := strconv.ParseUint(digits, radix, 64); err == nil {
		tok := l.makeToken(TokenInteger, strconv.FormatUint(u, 10))
		return &tok, nil
	}
	wide, ok := new(big.Int).SetString(digits, radix)
	if !ok {
		return nil, l.syntaxError("invalid integer")
	}
	tok := l.makeToken(TokenInt128, wide.String())
	return &tok, nil
}

// digitRun counts the leading digits of s valid in radix, underscores
// included.
func digitRun(s string, radix int) int {
	n := 0
	for n < len(s) && (s[n] == '_' || digitValue(s[n]) < radix) {
		n++
	}
	return n
}

func digitValue(c byte) int {
	switch {
	case isDigit(c):
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	}
	return 99
}

func (l *Lexer) lexIdent() (*Token, error) {
	rest := l.rest()
	n := 1
	for n < len(rest) && isIdentPart(rest[n]) {
		n++
	}
	tok := l.makeToken(TokenIdent, l.advance(n))
	return &tok, nil
}

func isDigit(c byte) bool      { return '0' <= c && c <= '9' }
func isIdentStart(c byte) bool { return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') }
func isIdentPart(c byte) bool  { return isIdentStart(c) || isDigit(c) }
