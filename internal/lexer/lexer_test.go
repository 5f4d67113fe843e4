package lexer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func types(toks []Token) []TokenType {
	out := make([]TokenType, len(toks))
	for i, tok := range toks {
		out[i] = tok.Type
	}
	return out
}

func TestTokenizeVariable(t *testing.T) {
	toks, err := Tokenize("Hello {{ name }}!", DefaultWhitespace())
	require.NoError(t, err)
	assert.Equal(t, []TokenType{
		TokenTemplateData, TokenVariableStart, TokenIdent, TokenVariableEnd, TokenTemplateData,
	}, types(toks))
	assert.Equal(t, "Hello ", toks[0].Value)
	assert.Equal(t, "name", toks[2].Value)
	assert.Equal(t, "!", toks[4].Value)
}

func TestTokenizeNumbers(t *testing.T) {
	toks, err := Tokenize("{{ 42 1.5 18446744073709551615 18446744073709551616 }}", DefaultWhitespace())
	require.NoError(t, err)
	require.Len(t, toks, 6)
	assert.Equal(t, Token{Type: TokenInteger, Value: "42"}, Token{Type: toks[1].Type, Value: toks[1].Value})
	assert.Equal(t, TokenFloat, toks[2].Type)
	assert.Equal(t, TokenInteger, toks[3].Type)
	assert.Equal(t, TokenInt128, toks[4].Type)
	assert.Equal(t, "18446744073709551616", toks[4].Value)
}

func TestStringEscapes(t *testing.T) {
	toks, err := Tokenize(`{{ "a\nbé" }}`, DefaultWhitespace())
	require.NoError(t, err)
	require.Len(t, toks, 3)
	assert.Equal(t, TokenString, toks[1].Type)
	assert.Equal(t, "a\nbé", toks[1].Value)

	_, err = Tokenize(`{{ "bad \q" }}`, DefaultWhitespace())
	var lexErr *Error
	require.True(t, errors.As(err, &lexErr))
	assert.True(t, lexErr.BadEscape)
}

func TestTrailingNewline(t *testing.T) {
	toks, err := Tokenize("x\n", DefaultWhitespace())
	require.NoError(t, err)
	require.Len(t, toks, 1)
	assert.Equal(t, "x", toks[0].Value)

	toks, err = Tokenize("x\n", WhitespaceConfig{KeepTrailingNewline: true})
	require.NoError(t, err)
	assert.Equal(t, "x\n", toks[0].Value)
}

func TestSpansTrackLines(t *testing.T) {
	toks, err := Tokenize("a\n{{ b }}", DefaultWhitespace())
	require.NoError(t, err)
	require.Len(t, toks, 4)
	assert.Equal(t, uint16(2), toks[2].Span.StartLine)
}

func TestUnterminatedString(t *testing.T) {
	_, err := Tokenize(`{{ "open }}`, DefaultWhitespace())
	var lexErr *Error
	require.True(t, errors.As(err, &lexErr))
	assert.False(t, lexErr.BadEscape)
}

func TestNumberForms(t *testing.T) {
	tests := []struct {
		src  string
		typ  TokenType
		want string
	}{
		{"0x_ff", TokenInteger, "255"},
		{"0b101", TokenInteger, "5"},
		{"0o17", TokenInteger, "15"},
		{"1_000", TokenInteger, "1000"},
		{"2.5e3", TokenFloat, "2500"},
		{"1E-2", TokenFloat, "0.01"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			toks, err := Tokenize("{{ "+tt.src+" }}", DefaultWhitespace())
			require.NoError(t, err)
			require.Len(t, toks, 3)
			assert.Equal(t, tt.typ, toks[1].Type)
			assert.Equal(t, tt.want, toks[1].Value)
		})
	}

	_, err := Tokenize("{{ 1_ }}", DefaultWhitespace())
	assert.ErrorContains(t, err, "'_' may not occur at end of number")
}

func TestUnicodeEscapes(t *testing.T) {
	toks, err := Tokenize(`{{ "é😀" }}`, DefaultWhitespace())
	require.NoError(t, err)
	assert.Equal(t, "é😀", toks[1].Value)

	for _, src := range []string{`{{ "\ud83d" }}`, `{{ "\ude00" }}`, `{{ "\u12" }}`} {
		_, err := Tokenize(src, DefaultWhitespace())
		var lexErr *Error
		require.True(t, errors.As(err, &lexErr), src)
		assert.True(t, lexErr.BadEscape, src)
	}
}

func TestOperatorsPreferLongestMatch(t *testing.T) {
	toks, err := Tokenize("{{ a ** b // c <= d }}", DefaultWhitespace())
	require.NoError(t, err)
	assert.Equal(t, []TokenType{
		TokenVariableStart, TokenIdent, TokenPow, TokenIdent, TokenFloorDiv,
		TokenIdent, TokenLe, TokenIdent, TokenVariableEnd,
	}, types(toks))
	assert.Equal(t, "FloorDiv", TokenFloorDiv.String())
}
