package cabi

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitsuhiko/minijinja/minijinja-cabi-go/internal/logging"
)

func newTestEnv(t *testing.T) *Env {
	t.Helper()
	e := NewEnv()
	t.Cleanup(e.Release)
	return e
}

func mustRender(t *testing.T, e *Env, name string, ctx *Value) string {
	t.Helper()
	out, err := e.Render(name, ctx)
	require.Nil(t, err)
	return out
}

func TestAddAndRenderTemplate(t *testing.T) {
	e := newTestEnv(t)
	require.Nil(t, e.AddTemplate("hello", "Hello {{ name }}!"))

	ctx := NewMap()
	ctx.SetString("name", "World")
	assert.Equal(t, "Hello World!", mustRender(t, e, "hello", ctx))
	assert.Equal(t, []string{"hello"}, e.TemplateNames())
}

func TestAddTemplateReplaces(t *testing.T) {
	e := newTestEnv(t)
	require.Nil(t, e.AddTemplate("t", "one"))
	require.Nil(t, e.AddTemplate("t", "two"))
	assert.Equal(t, "two", mustRender(t, e, "t", nil))
}

func TestFailedAddKeepsPreviousTemplate(t *testing.T) {
	e := newTestEnv(t)
	require.Nil(t, e.AddTemplate("t", "good"))

	err := e.AddTemplate("t", "{% if x %}unclosed")
	require.NotNil(t, err)
	assert.Equal(t, SyntaxError, err.Code)
	assert.Equal(t, "good", mustRender(t, e, "t", nil))

	err = e.AddTemplate("fresh", "{{ 'bad \\q escape' }}")
	require.NotNil(t, err)
	assert.Equal(t, BadEscape, err.Code)
	assert.Equal(t, []string{"t"}, e.TemplateNames())
}

func TestRemoveAndClearTemplates(t *testing.T) {
	e := newTestEnv(t)
	require.Nil(t, e.AddTemplate("a", "A"))
	require.Nil(t, e.AddTemplate("b", "B"))

	e.RemoveTemplate("a")
	e.RemoveTemplate("missing")
	assert.Equal(t, []string{"b"}, e.TemplateNames())

	_, err := e.Render("a", nil)
	require.NotNil(t, err)
	assert.Equal(t, TemplateNotFound, err.Code)

	e.ClearTemplates()
	assert.Empty(t, e.TemplateNames())
	_, err = e.Render("b", nil)
	require.NotNil(t, err)
	assert.Equal(t, TemplateNotFound, err.Code)
}

func TestWhitespaceFlags(t *testing.T) {
	e := newTestEnv(t)
	const src = "{% if true %}\n    Hello\n    {% endif %}"

	require.Nil(t, e.AddTemplate("before", src))
	e.SetTrimBlocks(true)
	e.SetLstripBlocks(true)
	require.Nil(t, e.AddTemplate("after", src))

	assert.Equal(t, "    Hello\n", mustRender(t, e, "after", nil))
	// Already compiled templates keep the settings they were lexed with.
	assert.Equal(t, "\n    Hello\n    ", mustRender(t, e, "before", nil))
}

func TestKeepTrailingNewline(t *testing.T) {
	e := newTestEnv(t)
	require.Nil(t, e.AddTemplate("strip", "Hello\n"))
	assert.Equal(t, "Hello", mustRender(t, e, "strip", nil))

	e.SetKeepTrailingNewline(true)
	require.Nil(t, e.AddTemplate("keep", "Hello\n"))
	assert.Equal(t, "Hello\n", mustRender(t, e, "keep", nil))
}

func TestUndefinedBehaviors(t *testing.T) {
	e := newTestEnv(t)
	require.Nil(t, e.AddTemplate("print", "[{{ missing }}]"))
	require.Nil(t, e.AddTemplate("chain", "[{{ missing.attr.deeper }}]"))

	assert.Equal(t, "[]", mustRender(t, e, "print", nil))
	_, err := e.Render("chain", nil)
	require.NotNil(t, err)
	assert.Equal(t, UndefinedError, err.Code)

	e.SetUndefinedBehavior(UndefinedChainable)
	assert.Equal(t, "[]", mustRender(t, e, "chain", nil))

	e.SetUndefinedBehavior(UndefinedStrict)
	_, err = e.Render("print", nil)
	require.NotNil(t, err)
	assert.Equal(t, UndefinedError, err.Code)

	e.SetUndefinedBehavior(UndefinedLenient)
	assert.Equal(t, "[]", mustRender(t, e, "print", nil))
}

func TestRecursionLimit(t *testing.T) {
	e := newTestEnv(t)
	e.SetRecursionLimit(2)
	require.Nil(t, e.AddTemplate("loop", "{% macro r(n) %}{{ r(n + 1) }}{% endmacro %}{{ r(0) }}"))

	_, err := e.Render("loop", nil)
	require.NotNil(t, err)
	assert.Contains(t, err.Message, "recursion limit exceeded")
}

func TestZeroRecursionLimit(t *testing.T) {
	e := newTestEnv(t)
	e.SetRecursionLimit(0)
	require.Nil(t, e.AddTemplate("flat", "{{ 1 + 2 }}"))
	require.Nil(t, e.AddTemplate("nested", "{% include 'flat' %}"))

	assert.Equal(t, "3", mustRender(t, e, "flat", nil))

	_, err := e.Render("nested", nil)
	require.NotNil(t, err)
	assert.Equal(t, InvalidOperation, err.Code)
	assert.Contains(t, err.Message, "recursion limit exceeded")
}

func TestDebugAddsSourceContext(t *testing.T) {
	e := newTestEnv(t)
	require.Nil(t, e.AddTemplate("t", "line one\n{{ 1 + 'a' }}"))

	_, err := e.Render("t", nil)
	require.NotNil(t, err)
	assert.Equal(t, InvalidOperation, err.Code)
	assert.NotContains(t, err.Message, "{{ 1 + 'a' }}")

	e.SetDebug(true)
	_, err = e.Render("t", nil)
	require.NotNil(t, err)
	assert.Contains(t, err.Message, "{{ 1 + 'a' }}")
}

func TestSetterContractViolations(t *testing.T) {
	e := newTestEnv(t)
	assert.Panics(t, func() { e.SetUndefinedBehavior(3) })
	assert.Panics(t, func() { _ = e.AddTemplate("\xff", "x") })
}

func TestReleaseLifecycle(t *testing.T) {
	var buf bytes.Buffer
	level := slog.LevelDebug
	prev := Logger()
	SetLogger(logging.New(logging.Config{Level: &level, Output: &buf}))
	t.Cleanup(func() { SetLogger(prev) })

	e := NewEnv()
	require.Nil(t, e.AddTemplate("t", "x"))

	e.Retain()
	e.Release()
	assert.NotContains(t, buf.String(), "environment closed")
	assert.Equal(t, []string{"t"}, e.TemplateNames())

	e.Release()
	assert.Contains(t, buf.String(), "environment closed")
	assert.Contains(t, buf.String(), "templates=1")

	assert.Panics(t, func() { e.Release() })
}
