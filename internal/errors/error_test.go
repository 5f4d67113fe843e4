package errors

import (
	goerrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mitsuhiko/minijinja/minijinja-cabi-go/syntax"
	"github.com/mitsuhiko/minijinja/minijinja-cabi-go/value"
)

func TestErrorString(t *testing.T) {
	span := syntax.Span{StartLine: 3, StartCol: 2, EndLine: 3, EndCol: 5}

	tests := []struct {
		err  *Error
		want string
	}{
		{NewError(ErrSyntax, ""), "syntax error"},
		{NewError(ErrUndefinedVar, "x"), "undefined value: x"},
		{NewError(ErrBadInclude, "y").WithName("a.txt"), "could not render include: y (in a.txt)"},
		{NewError(ErrSyntax, "z").WithName("a.txt").WithSpan(span), "syntax error: z (in a.txt:3)"},
		{NewError(ErrSyntax, "z").WithSpan(span), "syntax error: z (at line 3)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Error())
	}
}

func TestKindNames(t *testing.T) {
	for k := ErrNonPrimitive; k <= ErrOutOfFuel; k++ {
		assert.NotEqual(t, "error", k.String(), "kind %d has no name", k)
	}
	assert.Equal(t, "error", ErrorKind(-1).String())
	assert.Equal(t, 19, int(ErrUnknownBlock))
}

func TestWithSettersKeepFirstValue(t *testing.T) {
	first := syntax.Span{StartLine: 1}
	err := NewError(ErrSyntax, "").WithName("a").WithName("b").WithSpan(first).WithSpan(syntax.Span{StartLine: 9})
	assert.Equal(t, "a", err.Name)
	assert.Equal(t, uint16(1), err.Span.StartLine)
}

func TestUnwrapChain(t *testing.T) {
	root := fmt.Errorf("disk full")
	inner := NewError(ErrWriteFailure, "inner").WithCause(root)
	outer := NewError(ErrBadInclude, "outer").WithCause(inner)

	assert.True(t, goerrors.Is(outer, root))
	var target *Error
	assert.True(t, goerrors.As(goerrors.Unwrap(outer), &target))
	assert.Equal(t, ErrWriteFailure, target.Kind)

	full := fmt.Sprintf("%+v", outer)
	assert.Contains(t, full, "caused by: failed to write output: inner")
	assert.Contains(t, full, "caused by: disk full")
	assert.Equal(t, outer.Error(), fmt.Sprintf("%v", outer))
}

func TestDebugString(t *testing.T) {
	err := NewError(ErrUndefinedVar, "").
		WithName("templates/page.txt").
		WithSpan(syntax.Span{StartLine: 2, StartCol: 3, EndLine: 2, EndCol: 7}).
		WithDebugInfo(&DebugInfo{
			TemplateSource:   "a\n{{ user.name }}\nc",
			ReferencedLocals: map[string]value.Value{"user": value.None()},
		})

	out := err.DebugString()
	assert.Contains(t, out, " page.txt ")
	assert.Contains(t, out, "   1 | a")
	assert.Contains(t, out, "   2 > {{ user.name }}")
	assert.Contains(t, out, "^^^^ undefined value")
	assert.Contains(t, out, "   3 | c")
	assert.Contains(t, out, "    user: none")

	assert.Empty(t, NewError(ErrSyntax, "").DebugString())

	noLocals := NewError(ErrSyntax, "").WithDebugInfo(&DebugInfo{})
	assert.Contains(t, noLocals.DebugString(), "No referenced variables")
}
