package parser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitsuhiko/minijinja/minijinja-cabi-go/internal/lexer"
)

func parse(t *testing.T, source string) *Template {
	t.Helper()
	tmpl, err := Parse(source, lexer.DefaultWhitespace())
	require.NoError(t, err)
	return tmpl
}

func TestParseEmitNodes(t *testing.T) {
	tmpl := parse(t, "Hello {{ name }}!")
	require.Len(t, tmpl.Children, 3)

	raw, ok := tmpl.Children[0].(*EmitRaw)
	require.True(t, ok)
	assert.Equal(t, "Hello ", raw.Raw)

	emit, ok := tmpl.Children[1].(*EmitExpr)
	require.True(t, ok)
	v, ok := emit.Expr.(*Var)
	require.True(t, ok)
	assert.Equal(t, "name", v.ID)
}

func TestParseOperatorPrecedence(t *testing.T) {
	tmpl := parse(t, "{{ 1 + 2 * 3 }}")
	emit := tmpl.Children[0].(*EmitExpr)
	add, ok := emit.Expr.(*BinOp)
	require.True(t, ok)
	_, leftIsConst := add.Left.(*Const)
	assert.True(t, leftIsConst)
	_, rightIsBinOp := add.Right.(*BinOp)
	assert.True(t, rightIsBinOp, "multiplication binds tighter")
}

func TestParseBlocks(t *testing.T) {
	tmpl := parse(t, "{% block body %}x{% endblock %}")
	block, ok := tmpl.Children[0].(*Block)
	require.True(t, ok)
	assert.Equal(t, "body", block.Name)
	require.Len(t, block.Body, 1)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		source    string
		badEscape bool
	}{
		{"{% if x %}unclosed", false},
		{"{{ 1 + }}", false},
		{"{% frobnicate %}", false},
		{"{{ x ", false},
		{`{{ "\q" }}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			_, err := Parse(tt.source, lexer.DefaultWhitespace())
			var perr *Error
			require.True(t, errors.As(err, &perr), "expected *Error, got %v", err)
			assert.Equal(t, tt.badEscape, perr.BadEscape)
			assert.NotEmpty(t, perr.Detail)
		})
	}
}

func TestDuplicateBlockIsRejected(t *testing.T) {
	_, err := Parse("{% block a %}{% endblock %}{% block a %}{% endblock %}", lexer.DefaultWhitespace())
	require.Error(t, err)
}

func TestInspectSkipsBindingTargets(t *testing.T) {
	tmpl := parse(t, "{% for item in items if item > limit %}{{ item.name|default(fallback) }}{% endfor %}")
	var names []string
	Inspect(tmpl, func(n Node) bool {
		if v, ok := n.(*Var); ok {
			names = append(names, v.ID)
		}
		return true
	})
	assert.Equal(t, []string{"items", "item", "limit", "item", "fallback"}, names)
}

func TestInspectPrune(t *testing.T) {
	tmpl := parse(t, "{% if a %}{{ b }}{% endif %}")
	var names []string
	Inspect(tmpl.Children[0], func(n Node) bool {
		if _, ok := n.(*EmitExpr); ok {
			return false
		}
		if v, ok := n.(*Var); ok {
			names = append(names, v.ID)
		}
		return true
	})
	assert.Equal(t, []string{"a"}, names)
}

func TestSpansCoverTheWholeConstruct(t *testing.T) {
	tmpl := parse(t, "{{ a.b(1) }}")
	call := tmpl.Children[0].(*EmitExpr).Expr.(*Call)
	span := call.Span()
	assert.Equal(t, uint32(3), uint32(span.StartOffset))
	assert.Equal(t, uint32(9), uint32(span.EndOffset))
}

func TestParseSignatureDefaults(t *testing.T) {
	tmpl := parse(t, "{% macro m(a, b=1, c=2) %}{% endmacro %}")
	m := tmpl.Children[0].(*Macro)
	assert.Equal(t, "m", m.Name)
	assert.Len(t, m.Args, 3)
	assert.Len(t, m.Defaults, 2)

	_, err := Parse("{% macro m(a=1, b) %}{% endmacro %}", lexer.DefaultWhitespace())
	require.Error(t, err)
}

func TestLoopControlOutsideLoop(t *testing.T) {
	_, err := Parse("{% break %}", lexer.DefaultWhitespace())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'break' must be placed inside a loop")

	parse(t, "{% for x in y %}{% if x %}{% continue %}{% endif %}{% endfor %}")
}
