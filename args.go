package minijinja

import (
	"fmt"
	"sort"

	"github.com/mitsuhiko/minijinja/minijinja-cabi-go/value"
)

// argParser binds the positional and keyword arguments of a filter,
// function or method call. Parameters are addressed by position and by
// keyword name; a parameter passed both ways takes the positional value.
type argParser struct {
	name   string
	args   []value.Value
	kwargs map[string]value.Value
	used   map[string]bool
}

func newArgs(name string, args []value.Value, kwargs map[string]value.Value) *argParser {
	return &argParser{name: name, args: args, kwargs: kwargs, used: make(map[string]bool)}
}

func (p *argParser) get(pos int, kw string) (value.Value, bool) {
	if kw != "" {
		if _, ok := p.kwargs[kw]; ok {
			p.used[kw] = true
		}
	}
	if pos >= 0 && pos < len(p.args) {
		return p.args[pos], true
	}
	if kw != "" {
		if v, ok := p.kwargs[kw]; ok {
			return v, true
		}
	}
	return value.Undefined(), false
}

// optional is like get but treats none and undefined as absent.
func (p *argParser) optional(pos int, kw string) (value.Value, bool) {
	v, ok := p.get(pos, kw)
	if !ok || v.IsNone() || v.IsUndefined() {
		return value.Undefined(), false
	}
	return v, true
}

func (p *argParser) require(pos int, kw string) (value.Value, error) {
	v, ok := p.get(pos, kw)
	if !ok {
		label := kw
		if label == "" {
			label = fmt.Sprintf("#%d", pos+1)
		}
		return value.Undefined(), NewError(ErrMissingArgument, fmt.Sprintf("%s is missing argument %s", p.name, label))
	}
	return v, nil
}

func (p *argParser) typeError(kw string, want string, got value.Value) error {
	return NewError(ErrInvalidOperation, fmt.Sprintf("%s: argument %s must be %s, got %s", p.name, kw, want, got.Kind()))
}

func (p *argParser) str(pos int, kw string, def string) (string, error) {
	v, ok := p.optional(pos, kw)
	if !ok {
		return def, nil
	}
	s, ok := v.AsString()
	if !ok {
		return "", p.typeError(kw, "a string", v)
	}
	return s, nil
}

func (p *argParser) requireStr(pos int, kw string) (string, error) {
	v, err := p.require(pos, kw)
	if err != nil {
		return "", err
	}
	s, ok := v.AsString()
	if !ok {
		return "", p.typeError(kw, "a string", v)
	}
	return s, nil
}

func (p *argParser) int(pos int, kw string, def int64) (int64, error) {
	v, ok := p.optional(pos, kw)
	if !ok {
		return def, nil
	}
	n, ok := v.AsInt()
	if !ok {
		return 0, p.typeError(kw, "an integer", v)
	}
	return n, nil
}

func (p *argParser) requireInt(pos int, kw string) (int64, error) {
	v, err := p.require(pos, kw)
	if err != nil {
		return 0, err
	}
	n, ok := v.AsInt()
	if !ok {
		return 0, p.typeError(kw, "an integer", v)
	}
	return n, nil
}

func (p *argParser) bool(pos int, kw string, def bool) bool {
	v, ok := p.optional(pos, kw)
	if !ok {
		return def
	}
	return v.IsTrue()
}

// finish rejects positional arguments beyond maxPos and keyword arguments
// no getter asked for.
func (p *argParser) finish(maxPos int) error {
	if len(p.args) > maxPos {
		return NewError(ErrTooManyArguments, fmt.Sprintf("%s takes at most %d arguments, got %d", p.name, maxPos, len(p.args)))
	}
	var unknown []string
	for k := range p.kwargs {
		if !p.used[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return NewError(ErrTooManyArguments, fmt.Sprintf("%s got an unexpected keyword argument '%s'", p.name, unknown[0]))
	}
	return nil
}
