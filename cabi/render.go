package cabi

import (
	"log/slog"

	minijinja "github.com/mitsuhiko/minijinja/minijinja-cabi-go"
	"github.com/mitsuhiko/minijinja/minijinja-cabi-go/value"
)

// Render renders the registered template name with ctx. A nil ctx renders
// with no variables.
func (e *Env) Render(name string, ctx *Value) (string, *Error) {
	checkUTF8("render_template", name)
	return e.render(name, "", false, contextOf(ctx))
}

// RenderNamedString compiles source under the current settings and renders
// it once. The registry is not consulted or changed; name only appears in
// error messages.
func (e *Env) RenderNamedString(name, source string, ctx *Value) (string, *Error) {
	checkUTF8("render_named_str", name, source)
	return e.render(name, source, true, contextOf(ctx))
}

// RenderJSON is Render with a JSON encoded context. The document is decoded
// before the template is looked up, so malformed input is always reported as
// CannotDeserialize. Empty data renders with no variables.
func (e *Env) RenderJSON(name string, data []byte) (string, *Error) {
	checkUTF8("render", name)
	ctx, err := decodeJSON(data)
	if err != nil {
		return "", err
	}
	return e.render(name, "", false, ctx)
}

// RenderNamedStringJSON is RenderNamedString with a JSON encoded context.
func (e *Env) RenderNamedStringJSON(name, source string, data []byte) (string, *Error) {
	checkUTF8("render_named_string", name, source)
	ctx, err := decodeJSON(data)
	if err != nil {
		return "", err
	}
	return e.render(name, source, true, ctx)
}

func contextOf(ctx *Value) value.Value {
	if ctx == nil {
		return value.FromMap(nil)
	}
	return ctx.ToEngine()
}

func (e *Env) render(name, source string, adHoc bool, ctx value.Value) (string, *Error) {
	e.Retain()
	defer e.Release()

	e.mu.RLock()
	defer e.mu.RUnlock()

	var (
		tmpl *minijinja.Template
		err  error
	)
	if adHoc {
		tmpl, err = e.env.TemplateFromNamedString(name, source)
	} else {
		tmpl, err = e.env.GetTemplate(name)
	}
	var out string
	if err == nil {
		out, err = tmpl.RenderValue(ctx)
	}
	if err != nil {
		cerr := newError(err, e.env.Debug())
		e.log.Debug("render failed", slog.String("name", name), slog.String("code", cerr.Code.String()))
		return "", cerr
	}
	return out, nil
}
