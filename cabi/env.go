package cabi

import (
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	minijinja "github.com/mitsuhiko/minijinja/minijinja-cabi-go"
)

// UndefinedBehavior is the numbering of undefined-value policies used by the
// C API. It differs from the engine's own ordering.
type UndefinedBehavior uint32

const (
	UndefinedLenient   UndefinedBehavior = 0
	UndefinedStrict    UndefinedBehavior = 1
	UndefinedChainable UndefinedBehavior = 2
)

func (b UndefinedBehavior) engine(op string) minijinja.UndefinedBehavior {
	switch b {
	case UndefinedLenient:
		return minijinja.UndefinedLenient
	case UndefinedStrict:
		return minijinja.UndefinedStrict
	case UndefinedChainable:
		return minijinja.UndefinedChainable
	}
	Violate(op, "unknown undefined behavior %d", uint32(b))
	return minijinja.UndefinedLenient
}

// Env is a template registry plus its settings. It is safe for concurrent
// use: mutations take the write lock and renders take the read lock, so a
// render always sees a consistent registry and flag set.
//
// An Env is reference counted. The creator holds the first reference and
// every render pins one for its duration; the engine state is torn down when
// the last reference is dropped.
type Env struct {
	mu   sync.RWMutex
	env  *minijinja.Environment
	refs atomic.Int64
	log  *slog.Logger
}

// NewEnv returns an environment with default settings and no templates.
func NewEnv() *Env {
	e := &Env{env: minijinja.NewEnvironment(), log: Logger()}
	e.refs.Store(1)
	e.log.Debug("environment created")
	return e
}

// Retain adds a reference. It is a contract violation to retain an Env
// whose last reference has already been released.
func (e *Env) Retain() {
	if e.refs.Add(1) <= 1 {
		Violate("env_retain", "environment already released")
	}
}

// Release drops a reference and tears the environment down when it was the
// last one.
func (e *Env) Release() {
	n := e.refs.Add(-1)
	switch {
	case n < 0:
		Violate("env_free", "environment released twice")
	case n == 0:
		e.mu.Lock()
		count := len(e.env.TemplateNames())
		e.env.ClearTemplates()
		e.mu.Unlock()
		e.log.Debug("environment closed", slog.Int("templates", count))
	}
}

// AddTemplate compiles source under the current settings and registers it
// as name. A template that fails to compile leaves any previous entry in
// place.
func (e *Env) AddTemplate(name, source string) *Error {
	checkUTF8("add_template", name, source)
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.env.AddTemplate(name, source); err != nil {
		cerr := newError(err, e.env.Debug())
		e.log.Debug("template rejected", slog.String("name", name), slog.String("code", cerr.Code.String()))
		return cerr
	}
	e.log.Debug("template added", slog.String("name", name))
	return nil
}

// RemoveTemplate unregisters name. Removing an absent name does nothing.
func (e *Env) RemoveTemplate(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.env.RemoveTemplate(name)
	e.log.Debug("template removed", slog.String("name", name))
}

// ClearTemplates unregisters every template.
func (e *Env) ClearTemplates() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.env.ClearTemplates()
	e.log.Debug("templates cleared")
}

// TemplateNames lists the registered names in sorted order.
func (e *Env) TemplateNames() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.env.TemplateNames()
}

// Whitespace settings apply to templates compiled after the change.

func (e *Env) SetLstripBlocks(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.env.SetLstripBlocks(on)
}

func (e *Env) SetTrimBlocks(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.env.SetTrimBlocks(on)
}

func (e *Env) SetKeepTrailingNewline(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.env.SetKeepTrailingNewline(on)
}

// SetRecursionLimit bounds include, macro and block nesting. With zero a
// template still renders but any nested call fails.
func (e *Env) SetRecursionLimit(limit uint) {
	n := int(min(limit, uint(math.MaxInt)))
	e.mu.Lock()
	defer e.mu.Unlock()
	e.env.SetRecursionLimit(n)
}

// SetDebug toggles debug information in error messages.
func (e *Env) SetDebug(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.env.SetDebug(on)
}

// SetUndefinedBehavior selects the undefined-value policy. Numbers other
// than 0, 1 and 2 are a contract violation.
func (e *Env) SetUndefinedBehavior(b UndefinedBehavior) {
	behavior := b.engine("set_undefined_behavior")
	e.mu.Lock()
	defer e.mu.Unlock()
	e.env.SetUndefinedBehavior(behavior)
}

func checkUTF8(op string, ss ...string) {
	for _, s := range ss {
		if !utf8.ValidString(s) {
			Violate(op, "argument is not valid UTF-8")
		}
	}
}
