package minijinja

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/mitsuhiko/minijinja/minijinja-cabi-go/value"
)

func render(t *testing.T, env *Environment, name string, ctx any) string {
	t.Helper()
	tmpl, err := env.GetTemplate(name)
	require.NoError(t, err)
	out, err := tmpl.Render(ctx)
	require.NoError(t, err)
	return out
}

func errorKind(t *testing.T, err error) ErrorKind {
	t.Helper()
	var tmplErr *Error
	require.True(t, errors.As(err, &tmplErr), "not a template error: %v", err)
	return tmplErr.Kind
}

func TestTemplateRegistry(t *testing.T) {
	env := NewEnvironment()
	require.NoError(t, env.AddTemplate("a.txt", "A"))
	require.NoError(t, env.AddTemplate("b.txt", "B"))
	assert.Equal(t, []string{"a.txt", "b.txt"}, env.TemplateNames())

	require.NoError(t, env.AddTemplate("a.txt", "A2"))
	assert.Equal(t, "A2", render(t, env, "a.txt", nil))

	env.RemoveTemplate("a.txt")
	env.RemoveTemplate("never-added")
	_, err := env.GetTemplate("a.txt")
	assert.Equal(t, ErrTemplateNotFound, errorKind(t, err))

	env.ClearTemplates()
	assert.Empty(t, env.TemplateNames())
}

func TestAddTemplateFailureKeepsPrevious(t *testing.T) {
	env := NewEnvironment()
	require.NoError(t, env.AddTemplate("t", "old"))

	err := env.AddTemplate("t", "{% if %}")
	require.Error(t, err)
	assert.Equal(t, ErrSyntax, errorKind(t, err))
	assert.Equal(t, "old", render(t, env, "t", nil))
}

func TestNamedStringDoesNotRegister(t *testing.T) {
	env := NewEnvironment()
	tmpl, err := env.TemplateFromNamedString("adhoc", "{{ 1 + }}")
	require.Error(t, err)
	assert.Nil(t, tmpl)
	assert.Contains(t, err.Error(), "adhoc")

	tmpl, err = env.TemplateFromNamedString("adhoc", "ok")
	require.NoError(t, err)
	assert.Equal(t, "adhoc", tmpl.Name())
	assert.Equal(t, "ok", tmpl.Source())
	assert.Empty(t, env.TemplateNames())
}

func TestWhitespaceFlagsApplyAtCompileTime(t *testing.T) {
	env := NewEnvironment()
	require.NoError(t, env.AddTemplate("before", "{% if true %}\nx{% endif %}"))
	env.SetTrimBlocks(true)
	require.NoError(t, env.AddTemplate("after", "{% if true %}\nx{% endif %}"))

	assert.Equal(t, "\nx", render(t, env, "before", nil))
	assert.Equal(t, "x", render(t, env, "after", nil))
}

func TestLoader(t *testing.T) {
	env := NewEnvironment()
	calls := 0
	env.SetLoader(func(name string) (string, error) {
		calls++
		if name == "missing" {
			return "", fmt.Errorf("no such file")
		}
		return "loaded " + name, nil
	})

	assert.Equal(t, "loaded x", render(t, env, "x", nil))
	assert.Equal(t, "loaded x", render(t, env, "x", nil))
	assert.Equal(t, 1, calls)

	_, err := env.GetTemplate("missing")
	assert.Equal(t, ErrTemplateNotFound, errorKind(t, err))
	assert.ErrorContains(t, errors.Unwrap(err), "no such file")
}

func TestCustomFiltersTestsAndFunctions(t *testing.T) {
	env := NewEnvironment()
	env.AddFilter("double", func(_ *State, val value.Value, _ []value.Value, _ map[string]value.Value) (value.Value, error) {
		return val.Mul(value.FromInt(2))
	})
	env.AddTest("positive", func(_ *State, val value.Value, _ []value.Value) (bool, error) {
		n, ok := val.AsInt()
		return ok && n > 0, nil
	})
	env.AddFunction("greet", func(state *State, args []value.Value, _ map[string]value.Value) (value.Value, error) {
		return value.FromString("hi " + args[0].String() + " from " + state.Name()), nil
	})
	env.AddGlobal("site", value.FromString("example"))

	tmpl, err := env.TemplateFromNamedString("custom", "{{ 4|double }} {{ 3 is positive }} {{ greet('ann') }} {{ site }}")
	require.NoError(t, err)
	out, err := tmpl.Render(nil)
	require.NoError(t, err)
	assert.Equal(t, "8 true hi ann from custom example", out)
}

func TestContextShadowsGlobals(t *testing.T) {
	env := NewEnvironment()
	env.AddGlobal("name", value.FromString("global"))
	tmpl, err := env.TemplateFromString("{{ name }}")
	require.NoError(t, err)

	out, err := tmpl.Render(map[string]any{"name": "ctx"})
	require.NoError(t, err)
	assert.Equal(t, "ctx", out)

	out, err = tmpl.RenderValue(value.FromSlice(nil))
	require.NoError(t, err)
	assert.Equal(t, "global", out)
}

type profile struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Token string `json:"-"`
}

type member struct {
	profile
	Role string
}

func TestRenderGoStructs(t *testing.T) {
	env := NewEnvironment()
	tmpl, err := env.TemplateFromString("{{ user.name }} <{{ user.email }}> {{ user.Role }}{{ user.Token }}|{{ ids[7] }}")
	require.NoError(t, err)

	out, err := tmpl.Render(map[string]any{
		"user": member{profile: profile{Name: "ann", Email: "ann@example.com", Token: "t0k"}, Role: "admin"},
		"ids":  map[int]string{7: "seven"},
	})
	require.NoError(t, err)
	assert.Equal(t, "ann <ann@example.com> admin|seven", out)
}

func TestAutoEscapeCallback(t *testing.T) {
	env := NewEnvironment()
	require.NoError(t, env.AddTemplate("page.html", "{{ s }}"))
	require.NoError(t, env.AddTemplate("page.txt", "{{ s }}"))
	ctx := map[string]any{"s": "<b>"}

	assert.Equal(t, "&lt;b&gt;", render(t, env, "page.html", ctx))
	assert.Equal(t, "<b>", render(t, env, "page.txt", ctx))

	env.SetAutoEscapeFunc(func(name string) AutoEscape {
		if strings.HasSuffix(name, ".txt") {
			return AutoEscapeHTML
		}
		return AutoEscapeNone
	})
	assert.Equal(t, "<b>", render(t, env, "page.html", ctx))
	assert.Equal(t, "&lt;b&gt;", render(t, env, "page.txt", ctx))
}

func TestRenderBlock(t *testing.T) {
	env := NewEnvironment()
	require.NoError(t, env.AddTemplate("base.txt", "[{% block body %}base{% endblock %}]"))
	require.NoError(t, env.AddTemplate("child.txt", "{% extends 'base.txt' %}{% block body %}{{ name }}!{% endblock %}"))

	tmpl, err := env.GetTemplate("child.txt")
	require.NoError(t, err)

	out, err := tmpl.RenderBlock("body", value.FromAny(map[string]any{"name": "x"}))
	require.NoError(t, err)
	assert.Equal(t, "x!", out)

	_, err = tmpl.RenderBlock("nope", value.FromMap(nil))
	assert.Equal(t, ErrUnknownBlock, errorKind(t, err))

	require.NoError(t, env.AddTemplate("broken.txt", "{% block b %}{{ 1 + 'a' }}{% endblock %}"))
	broken, err := env.GetTemplate("broken.txt")
	require.NoError(t, err)
	_, err = broken.RenderBlock("b", value.FromMap(nil))
	require.Error(t, err)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, io.ErrClosedPipe
}

func TestRenderToWriteFailure(t *testing.T) {
	env := NewEnvironment()
	tmpl, err := env.TemplateFromString("hello")
	require.NoError(t, err)

	var b strings.Builder
	require.NoError(t, tmpl.RenderTo(&b, value.FromMap(nil)))
	assert.Equal(t, "hello", b.String())

	err = tmpl.RenderTo(failingWriter{}, value.FromMap(nil))
	assert.Equal(t, ErrWriteFailure, errorKind(t, err))
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}

func TestRecursionLimit(t *testing.T) {
	env := NewEnvironment()
	assert.Equal(t, DefaultRecursionLimit, env.RecursionLimit())

	env.SetRecursionLimit(-3)
	assert.Equal(t, 0, env.RecursionLimit())

	env.SetRecursionLimit(2)
	require.NoError(t, env.AddTemplate("self.txt", "{% include 'self.txt' %}"))
	tmpl, err := env.GetTemplate("self.txt")
	require.NoError(t, err)
	_, err = tmpl.Render(nil)
	require.Error(t, err)
	assert.Contains(t, fmt.Sprintf("%+v", err), "recursion limit exceeded")
}

func TestFuelIsPerRender(t *testing.T) {
	env := NewEnvironment()
	fuel := uint64(10)
	env.SetFuel(&fuel)
	fuel = 0 // the environment keeps its own copy

	tmpl, err := env.TemplateFromString("{% for x in range(3) %}{{ x }}{% endfor %}")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		out, err := tmpl.Render(nil)
		require.NoError(t, err)
		assert.Equal(t, "012", out)
	}

	env.SetFuel(nil)
	tmpl, err = env.TemplateFromString("{% for x in range(1000) %}{% endfor %}done")
	require.NoError(t, err)
	out, err := tmpl.Render(nil)
	require.NoError(t, err)
	assert.Equal(t, "done", out)
}

func TestDebugInfo(t *testing.T) {
	env := NewEnvironment()
	env.SetDebug(true)
	assert.True(t, env.Debug())

	tmpl, err := env.TemplateFromNamedString("debug.txt", "first\n{{ count + label }}\nlast")
	require.NoError(t, err)
	_, err = tmpl.Render(map[string]any{"count": 1, "label": "x"})
	require.Error(t, err)

	var tmplErr *Error
	require.True(t, errors.As(err, &tmplErr))
	require.NotNil(t, tmplErr.DebugInfo)
	assert.Equal(t, value.FromInt(1), tmplErr.DebugInfo.ReferencedLocals["count"])

	detail := tmplErr.DebugString()
	assert.Contains(t, detail, "debug.txt")
	assert.Contains(t, detail, "   2 > {{ count + label }}")
	assert.Contains(t, detail, "Referenced variables:")
	assert.Contains(t, detail, `label: "x"`)

	env.SetDebug(false)
	_, err = tmpl.Render(map[string]any{"count": 1, "label": "x"})
	require.True(t, errors.As(err, &tmplErr))
	assert.Nil(t, tmplErr.DebugInfo)
}

func TestSyntaxErrorInDebugModeCarriesSource(t *testing.T) {
	env := NewEnvironment()
	env.SetDebug(true)
	_, err := env.TemplateFromNamedString("bad.txt", "{% for %}")
	require.Error(t, err)
	assert.Contains(t, fmt.Sprintf("%+v", err), "{% for %}")
}

func TestConcurrentRenders(t *testing.T) {
	env := NewEnvironment()
	require.NoError(t, env.AddTemplate("loop.txt", "{% for x in items %}{{ x * n }},{% endfor %}"))
	tmpl, err := env.GetTemplate("loop.txt")
	require.NoError(t, err)

	var g errgroup.Group
	for n := 0; n < 32; n++ {
		g.Go(func() error {
			out, err := tmpl.Render(map[string]any{"items": []int{1, 2, 3}, "n": n})
			if err != nil {
				return err
			}
			if want := fmt.Sprintf("%d,%d,%d,", n, 2*n, 3*n); out != want {
				return fmt.Errorf("got %q, want %q", out, want)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}

func TestEscapeHTML(t *testing.T) {
	assert.Equal(t, "&lt;a href=&quot;&#x2f;x&quot;&gt;&#x27;&amp;", EscapeHTML(`<a href="/x">'&`))
}
