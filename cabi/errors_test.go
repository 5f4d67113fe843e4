package cabi

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	minijinja "github.com/mitsuhiko/minijinja/minijinja-cabi-go"
)

func TestCodeNumbering(t *testing.T) {
	// The numbers are part of the C ABI.
	assert.Equal(t, Code(0), NonPrimitive)
	assert.Equal(t, Code(3), SyntaxError)
	assert.Equal(t, Code(4), TemplateNotFound)
	assert.Equal(t, Code(12), UndefinedError)
	assert.Equal(t, Code(14), CannotDeserialize)
	assert.Equal(t, Code(19), UnknownBlock)
	assert.Len(t, codeNames, 20)
	assert.Equal(t, "Code(42)", Code(42).String())
}

func TestEveryEngineKindHasACode(t *testing.T) {
	for kind := minijinja.ErrNonPrimitive; kind <= minijinja.ErrOutOfFuel; kind++ {
		_, ok := kindCodes[kind]
		assert.True(t, ok, "no code for %s", kind)
	}
	assert.Equal(t, InvalidOperation, CodeOf(minijinja.ErrOutOfFuel))
	assert.Equal(t, InvalidOperation, CodeOf(minijinja.ErrorKind(-1)))
	assert.Equal(t, UnknownBlock, CodeOf(minijinja.ErrUnknownBlock))
}

func TestNewErrorFromEngineError(t *testing.T) {
	err := minijinja.NewError(minijinja.ErrUnknownFilter, "filter foo is unknown").WithName("t.txt")
	got := NewError(err)
	require.NotNil(t, got)
	assert.Equal(t, UnknownFilter, got.Code)
	assert.Equal(t, "unknown filter: filter foo is unknown (in t.txt)", got.Message)
}

func TestNewErrorJoinsChain(t *testing.T) {
	root := errors.New("disk full")
	mid := minijinja.NewError(minijinja.ErrWriteFailure, "short write").WithCause(root)
	top := minijinja.NewError(minijinja.ErrBadInclude, "error in \"x\"").WithCause(mid)

	got := NewError(top)
	assert.Equal(t, BadInclude, got.Code)
	assert.Equal(t,
		"could not render include: error in \"x\""+
			"\nCaused by: failed to write output: short write"+
			"\nCaused by: disk full",
		got.Message)
}

func TestNewErrorForeignErrors(t *testing.T) {
	got := NewError(fmt.Errorf("parse: %w", errors.New("unexpected end")))
	assert.Equal(t, CannotDeserialize, got.Code)
	assert.Equal(t, "parse\nCaused by: unexpected end", got.Message)

	assert.Nil(t, NewError(nil))

	same := &Error{Code: EvalBlock, Message: "m"}
	assert.Same(t, same, NewError(same))
}

func TestDebugBlockFollowsFirstLink(t *testing.T) {
	err := minijinja.NewError(minijinja.ErrUndefinedVar, "x is undefined").
		WithName("t").
		WithDebugInfo(&minijinja.DebugInfo{TemplateSource: "{{ x.y }}"})
	err.WithCause(errors.New("inner"))

	plain := newError(err, false)
	assert.NotContains(t, plain.Message, "{{ x.y }}")

	debug := newError(err, true)
	assert.Contains(t, debug.Message, "{{ x.y }}")
	assert.Greater(t, len(debug.Message), len(plain.Message))
	assert.Contains(t, debug.Message, causedBy+"inner")
}
