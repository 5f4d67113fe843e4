package cabi

import (
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestRenderJSON(t *testing.T) {
	e := newTestEnv(t)
	require.Nil(t, e.AddTemplate("hello", "Hello {{ name }}!"))

	out, err := e.RenderJSON("hello", []byte(`{"name":"World"}`))
	require.Nil(t, err)
	assert.Equal(t, "Hello World!", out)

	out, err = e.RenderJSON("hello", nil)
	require.Nil(t, err)
	assert.Equal(t, "Hello !", out)
}

func TestRenderJSONDecodesFirst(t *testing.T) {
	e := newTestEnv(t)
	require.Nil(t, e.AddTemplate("hello", "Hello {{ name }}!"))

	_, err := e.RenderJSON("hello", []byte(`{"name":`))
	require.NotNil(t, err)
	assert.Equal(t, CannotDeserialize, err.Code)

	_, err = e.RenderJSON("missing", []byte(`not json`))
	require.NotNil(t, err)
	assert.Equal(t, CannotDeserialize, err.Code)

	_, err = e.RenderJSON("missing", []byte(`{}`))
	require.NotNil(t, err)
	assert.Equal(t, TemplateNotFound, err.Code)
}

func TestRenderJSONRejectsInvalidText(t *testing.T) {
	e := newTestEnv(t)
	for _, data := range []string{"{\"a\":\"\xff\xfe\"}", `{"a":"\udc00x"}`} {
		out, err := e.RenderNamedStringJSON("p", "{{ a }}", []byte(data))
		require.NotNil(t, err, "%q rendered as %q", data, out)
		assert.Equal(t, CannotDeserialize, err.Code)
		assert.Empty(t, out)
	}
}

func TestDeserializeErrorsAreLabelled(t *testing.T) {
	e := newTestEnv(t)
	_, err := e.RenderNamedStringJSON("p", "{{ a }}", []byte(`{"a" b}`))
	require.NotNil(t, err)
	assert.True(t, strings.HasPrefix(err.Message, "cannot deserialize context: "), err.Message)
	assert.NotContains(t, err.Message, causedBy)
}

func TestRenderJSONNonObjectRoot(t *testing.T) {
	e := newTestEnv(t)
	out, err := e.RenderNamedStringJSON("root", "[{{ name }}]", []byte(`[1, 2]`))
	require.Nil(t, err)
	assert.Equal(t, "[]", out)
}

func TestRenderNamedStringLeavesRegistryAlone(t *testing.T) {
	e := newTestEnv(t)
	require.Nil(t, e.AddTemplate("base", "{% block body %}base{% endblock %}"))

	ctx := NewMap()
	ctx.SetInt64("n", 3)
	out, err := e.RenderNamedString("child", "{% extends 'base' %}{% block body %}{{ n * 2 }}{% endblock %}", ctx)
	require.Nil(t, err)
	assert.Equal(t, "6", out)
	assert.Equal(t, []string{"base"}, e.TemplateNames())

	out, err = e.RenderNamedStringJSON("json", "{{ items|join(',') }}", []byte(`{"items":[1,2,3]}`))
	require.Nil(t, err)
	assert.Equal(t, "1,2,3", out)
	assert.Equal(t, []string{"base"}, e.TemplateNames())

	_, err = e.RenderNamedString("broken.txt", "{{ 1 + }}", nil)
	require.NotNil(t, err)
	assert.Equal(t, SyntaxError, err.Code)
	assert.Contains(t, err.Message, "broken.txt")
	assert.Equal(t, []string{"base"}, e.TemplateNames())
}

func TestRenderNamedStringUsesCurrentFlags(t *testing.T) {
	e := newTestEnv(t)
	e.SetTrimBlocks(true)
	e.SetLstripBlocks(true)
	out, err := e.RenderNamedString("ws", "{% if true %}\n    Hello\n    {% endif %}", nil)
	require.Nil(t, err)
	assert.Equal(t, "    Hello\n", out)
}

func TestRenderLargeUnsigned(t *testing.T) {
	e := newTestEnv(t)
	ctx := NewMap()
	ctx.SetUint64("n", math.MaxUint64)
	out, err := e.RenderNamedString("u64", "{{ n }}", ctx)
	require.Nil(t, err)
	assert.Equal(t, "18446744073709551615", out)
}

func TestRenderNestedContext(t *testing.T) {
	e := newTestEnv(t)
	require.Nil(t, e.AddTemplate("users", "{% for u in users %}{{ u.name }}:{{ u.tags|join('+') }};{% endfor %}"))

	users := NewList()
	for _, name := range []string{"ann", "bob"} {
		u := NewMap()
		u.SetString("name", name)
		SetList(u, "tags", []string{"a", "b"})
		users.AppendValue(u)
	}
	ctx := NewMap()
	ctx.SetValue("users", users)

	assert.Equal(t, "ann:a+b;bob:a+b;", mustRender(t, e, "users", ctx))
}

func TestIncludeErrorCarriesCause(t *testing.T) {
	e := newTestEnv(t)
	require.Nil(t, e.AddTemplate("inner", "{{ 1 + 'a' }}"))
	require.Nil(t, e.AddTemplate("outer", "{% include 'inner' %}"))

	_, err := e.Render("outer", nil)
	require.NotNil(t, err)
	assert.Equal(t, BadInclude, err.Code)
	parts := strings.Split(err.Message, causedBy)
	require.Len(t, parts, 2)
	assert.Contains(t, parts[0], "could not render include")
	assert.Contains(t, parts[1], "invalid operation")
}

func TestRenderAfterFreeIsAViolation(t *testing.T) {
	e := NewEnv()
	e.Release()
	assert.Panics(t, func() { _, _ = e.Render("x", nil) })
}

func TestConcurrentRendersAndMutations(t *testing.T) {
	const templates = 4
	e := newTestEnv(t)
	for n := range templates {
		require.Nil(t, e.AddTemplate(fmt.Sprintf("t%d", n), fmt.Sprintf("{{ v }}/%d", n)))
	}

	var rendered atomic.Int64
	var g errgroup.Group
	for i := range 16 {
		g.Go(func() error {
			n := i % templates
			name := fmt.Sprintf("t%d", n)
			ctx := NewMap()
			ctx.SetInt64("v", int64(i))
			for range 50 {
				out, err := e.Render(name, ctx)
				if err != nil {
					return err
				}
				// Either the first or a replaced source; never a torn one.
				if out != fmt.Sprintf("%d/%d", i, n) && out != fmt.Sprintf("<%d>/%d", i, n) {
					return fmt.Errorf("%s: unexpected output %q", name, out)
				}
				rendered.Add(1)
			}
			return nil
		})
	}
	g.Go(func() error {
		for j := range 50 {
			n := j % templates
			src := fmt.Sprintf("{{ v }}/%d", n)
			if j%2 == 0 {
				src = fmt.Sprintf("<{{ v }}>/%d", n)
			}
			if err := e.AddTemplate(fmt.Sprintf("t%d", n), src); err != nil {
				return err
			}
			e.SetDebug(j%3 == 0)
		}
		return nil
	})
	require.NoError(t, g.Wait())
	assert.Equal(t, int64(16*50), rendered.Load())
}

func TestFreeWhileRendering(t *testing.T) {
	e := NewEnv()
	require.Nil(t, e.AddTemplate("t", "{% for i in range(200) %}{{ i }}{% endfor %}"))

	var g errgroup.Group
	start := make(chan struct{})
	for range 8 {
		e.Retain()
		g.Go(func() error {
			defer e.Release()
			<-start
			_, err := e.Render("t", nil)
			if err != nil {
				return err
			}
			return nil
		})
	}
	e.Release()
	close(start)
	require.NoError(t, g.Wait())
}
