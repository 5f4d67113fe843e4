package minijinja

import (
	"errors"
	"io"
	"sort"
	"strings"

	"github.com/mitsuhiko/minijinja/minijinja-cabi-go/internal/lexer"
	"github.com/mitsuhiko/minijinja/minijinja-cabi-go/internal/parser"
	"github.com/mitsuhiko/minijinja/minijinja-cabi-go/value"
)

// AutoEscape determines the auto-escaping strategy.
type AutoEscape int

const (
	AutoEscapeNone AutoEscape = iota
	AutoEscapeHTML
)

// UndefinedBehavior determines how undefined values are handled.
type UndefinedBehavior = value.UndefinedBehavior

const (
	UndefinedLenient    = value.UndefinedLenient
	UndefinedChainable  = value.UndefinedChainable
	UndefinedSemiStrict = value.UndefinedSemiStrict
	UndefinedStrict     = value.UndefinedStrict
)

// DefaultRecursionLimit is the nesting depth of macro calls, includes,
// extends and recursive loops a render may reach.
const DefaultRecursionLimit = 500

// FilterFunc is the signature for filter functions.
// It receives the value to filter, the arguments, and the state.
type FilterFunc func(state *State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error)

// TestFunc is the signature for test functions.
type TestFunc func(state *State, val value.Value, args []value.Value) (bool, error)

// FunctionFunc is the signature for global functions.
type FunctionFunc func(state *State, args []value.Value, kwargs map[string]value.Value) (value.Value, error)

// LoaderFunc is a function that loads template source by name.
type LoaderFunc func(name string) (string, error)

// AutoEscapeFunc determines auto-escaping based on template name.
type AutoEscapeFunc func(name string) AutoEscape

// Environment holds the configuration and templates.
//
// An Environment may be rendered from any number of goroutines at once, but
// it does not synchronize mutation: registering templates or changing
// settings concurrently with renders requires external locking.
type Environment struct {
	templates         map[string]*compiledTemplate
	filters           map[string]FilterFunc
	tests             map[string]TestFunc
	globals           map[string]value.Value
	functions         map[string]FunctionFunc
	loader            LoaderFunc
	autoEscapeFunc    AutoEscapeFunc
	wsConfig          lexer.WhitespaceConfig
	undefinedBehavior UndefinedBehavior
	recursionLimit    int
	debug             bool
	fuel              *uint64
}

type compiledTemplate struct {
	name   string
	source string
	ast    *parser.Template
}

// NewEnvironment creates a new environment with default settings.
func NewEnvironment() *Environment {
	env := EmptyEnvironment()
	env.autoEscapeFunc = defaultAutoEscape

	registerDefaultFilters(env)
	registerDefaultTests(env)
	registerDefaultFunctions(env)

	return env
}

// EmptyEnvironment creates an environment with no filters, tests or
// functions and auto escaping disabled.
func EmptyEnvironment() *Environment {
	return &Environment{
		templates: make(map[string]*compiledTemplate),
		filters:   make(map[string]FilterFunc),
		tests:     make(map[string]TestFunc),
		globals:   make(map[string]value.Value),
		functions: make(map[string]FunctionFunc),
		autoEscapeFunc: func(string) AutoEscape {
			return AutoEscapeNone
		},
		wsConfig:          lexer.DefaultWhitespace(),
		undefinedBehavior: UndefinedLenient,
		recursionLimit:    DefaultRecursionLimit,
	}
}

func defaultAutoEscape(name string) AutoEscape {
	for _, ext := range []string{".html", ".htm", ".xml"} {
		if strings.HasSuffix(name, ext) {
			return AutoEscapeHTML
		}
	}
	return AutoEscapeNone
}

func (e *Environment) compile(name, source string) (*compiledTemplate, error) {
	ast, err := parser.Parse(source, e.wsConfig)
	if err != nil {
		var perr *parser.Error
		if !errors.As(err, &perr) {
			return nil, NewError(ErrSyntax, err.Error()).WithName(name)
		}
		kind := ErrSyntax
		if perr.BadEscape {
			kind = ErrBadEscape
		}
		tmplErr := NewError(kind, perr.Detail).WithSpan(perr.Span).WithName(name).WithSource(source)
		if e.debug {
			tmplErr.WithDebugInfo(&DebugInfo{TemplateSource: source})
		}
		return nil, tmplErr
	}
	return &compiledTemplate{name: name, source: source, ast: ast}, nil
}

// AddTemplate compiles source and registers it under name, replacing any
// template of the same name. On error the registry is left unchanged.
func (e *Environment) AddTemplate(name, source string) error {
	compiled, err := e.compile(name, source)
	if err != nil {
		return err
	}
	e.templates[name] = compiled
	return nil
}

// RemoveTemplate removes a template. Removing an unknown name is a no-op.
func (e *Environment) RemoveTemplate(name string) {
	delete(e.templates, name)
}

// ClearTemplates removes all registered templates.
func (e *Environment) ClearTemplates() {
	clear(e.templates)
}

// TemplateNames returns the names of all registered templates, sorted.
func (e *Environment) TemplateNames() []string {
	names := make([]string, 0, len(e.templates))
	for name := range e.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetTemplate retrieves a template by name. If the template is not
// registered and a loader is configured, the loader is consulted and the
// result is cached.
func (e *Environment) GetTemplate(name string) (*Template, error) {
	if compiled, ok := e.templates[name]; ok {
		return &Template{env: e, compiled: compiled}, nil
	}

	if e.loader != nil {
		source, err := e.loader(name)
		if err != nil {
			return nil, NewError(ErrTemplateNotFound, name).WithCause(err)
		}
		compiled, err := e.compile(name, source)
		if err != nil {
			return nil, err
		}
		e.templates[name] = compiled
		return &Template{env: e, compiled: compiled}, nil
	}

	return nil, NewError(ErrTemplateNotFound, name)
}

// TemplateFromString creates a template from source without storing it.
func (e *Environment) TemplateFromString(source string) (*Template, error) {
	return e.TemplateFromNamedString("<string>", source)
}

// TemplateFromNamedString creates a template from source with a name without storing it.
func (e *Environment) TemplateFromNamedString(name, source string) (*Template, error) {
	compiled, err := e.compile(name, source)
	if err != nil {
		return nil, err
	}
	return &Template{env: e, compiled: compiled}, nil
}

// SetLoader sets the template loader function.
func (e *Environment) SetLoader(loader LoaderFunc) {
	e.loader = loader
}

// AddFilter registers a filter function.
func (e *Environment) AddFilter(name string, f FilterFunc) {
	e.filters[name] = f
}

// AddTest registers a test function.
func (e *Environment) AddTest(name string, f TestFunc) {
	e.tests[name] = f
}

// AddFunction registers a global function.
func (e *Environment) AddFunction(name string, f FunctionFunc) {
	e.functions[name] = f
}

// AddGlobal registers a global variable.
func (e *Environment) AddGlobal(name string, v value.Value) {
	e.globals[name] = v
}

// SetAutoEscapeFunc replaces the callback that picks the initial escaping
// mode from a template name. It applies to renders started afterwards.
func (e *Environment) SetAutoEscapeFunc(f AutoEscapeFunc) {
	e.autoEscapeFunc = f
}

// SetLstripBlocks strips whitespace from the start of a line up to a block
// tag.
func (e *Environment) SetLstripBlocks(enabled bool) {
	e.wsConfig.LstripBlocks = enabled
}

// SetTrimBlocks removes the first newline after a block tag.
func (e *Environment) SetTrimBlocks(enabled bool) {
	e.wsConfig.TrimBlocks = enabled
}

// SetKeepTrailingNewline preserves a single trailing newline of template
// sources. By default it is removed.
func (e *Environment) SetKeepTrailingNewline(enabled bool) {
	e.wsConfig.KeepTrailingNewline = enabled
}

// SetUndefinedBehavior sets how undefined values are handled.
func (e *Environment) SetUndefinedBehavior(behavior UndefinedBehavior) {
	e.undefinedBehavior = behavior
}

// UndefinedBehavior returns the configured undefined behavior.
func (e *Environment) UndefinedBehavior() UndefinedBehavior {
	return e.undefinedBehavior
}

// SetRecursionLimit sets the maximum nesting depth of a render. Negative
// values are treated as zero, which forbids includes and macro calls.
func (e *Environment) SetRecursionLimit(limit int) {
	if limit < 0 {
		limit = 0
	}
	e.recursionLimit = limit
}

// RecursionLimit returns the maximum nesting depth of a render.
func (e *Environment) RecursionLimit() int {
	return e.recursionLimit
}

// SetDebug enables debug mode. Errors raised in debug mode carry a source
// excerpt and the values of the variables the failing expression referenced.
func (e *Environment) SetDebug(enabled bool) {
	e.debug = enabled
}

// Debug reports whether debug mode is enabled.
func (e *Environment) Debug() bool {
	return e.debug
}

// SetFuel limits the number of instructions a single render may execute.
// Pass nil to disable the limit.
func (e *Environment) SetFuel(fuel *uint64) {
	if fuel == nil {
		e.fuel = nil
		return
	}
	f := *fuel
	e.fuel = &f
}

func (e *Environment) getFilter(name string) (FilterFunc, bool) {
	f, ok := e.filters[name]
	return f, ok
}

func (e *Environment) getTest(name string) (TestFunc, bool) {
	t, ok := e.tests[name]
	return t, ok
}

func (e *Environment) getFunction(name string) (FunctionFunc, bool) {
	f, ok := e.functions[name]
	return f, ok
}

// Template represents a compiled template.
type Template struct {
	env      *Environment
	compiled *compiledTemplate
}

// Name returns the template name.
func (t *Template) Name() string {
	return t.compiled.name
}

// Source returns the template source.
func (t *Template) Source() string {
	return t.compiled.source
}

// Render renders the template with the given context. The context is
// converted with value.FromAny.
func (t *Template) Render(ctx any) (string, error) {
	return t.RenderValue(value.FromAny(ctx))
}

// RenderValue renders the template with a Value context. Map-like contexts
// expose their entries as variables; other values expose none.
func (t *Template) RenderValue(ctx value.Value) (string, error) {
	state := newState(t.env, t.compiled, ctx)
	var out strings.Builder
	if err := state.render(t.compiled, &out); err != nil {
		return "", err
	}
	return out.String(), nil
}

// RenderTo renders the template into w.
func (t *Template) RenderTo(w io.Writer, ctx value.Value) error {
	rendered, err := t.RenderValue(ctx)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, rendered); err != nil {
		return NewError(ErrWriteFailure, "could not write rendered template").WithName(t.compiled.name).WithCause(err)
	}
	return nil
}

// RenderBlock renders a single block of the template. The template is
// evaluated first so that inheritance is resolved.
func (t *Template) RenderBlock(name string, ctx value.Value) (string, error) {
	state := newState(t.env, t.compiled, ctx)
	if err := state.render(t.compiled, io.Discard); err != nil {
		return "", err
	}

	bs := state.blocks[name]
	if bs == nil || len(bs.layers) == 0 {
		return "", NewError(ErrUnknownBlock, "block '"+name+"' not found").WithName(t.compiled.name)
	}

	var out strings.Builder
	state.out = &out
	if err := state.renderBlockLayer(name, bs, 0); err != nil {
		return "", NewError(ErrEvalBlock, "error in block '"+name+"'").WithName(t.compiled.name).WithCause(err)
	}
	return out.String(), nil
}

// EscapeHTML escapes <, >, &, ", ' and / for use in HTML.
func EscapeHTML(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '&':
			b.WriteString("&amp;")
		case '"':
			b.WriteString("&quot;")
		case '\'':
			b.WriteString("&#x27;")
		case '/':
			b.WriteString("&#x2f;")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
