package minijinja

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mitsuhiko/minijinja/minijinja-cabi-go/value"
)

// maxRange bounds the number of items range() may produce.
const maxRange = 100000

func registerDefaultFunctions(env *Environment) {
	env.AddFunction("range", fnRange)
	env.AddFunction("dict", fnDict)
	env.AddFunction("cycler", fnCycler)
	env.AddFunction("joiner", fnJoiner)
	env.AddFunction("namespace", fnNamespace)
	env.AddFunction("debug", fnDebug)
	env.AddFunction("lipsum", fnLipsum)
}

func fnRange(_ *State, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	p := newArgs("range", args, kwargs)
	first, err := p.requireInt(0, "")
	if err != nil {
		return value.Undefined(), err
	}
	start, stop := int64(0), first
	if _, ok := p.get(1, ""); ok {
		start = first
		if stop, err = p.requireInt(1, ""); err != nil {
			return value.Undefined(), err
		}
	}
	step, err := p.int(2, "", 1)
	if err != nil {
		return value.Undefined(), err
	}
	if err := p.finish(3); err != nil {
		return value.Undefined(), err
	}
	if step == 0 {
		return value.Undefined(), NewError(ErrInvalidOperation, "cannot create range with step of 0")
	}

	var length int64
	switch {
	case step > 0 && stop > start:
		length = (stop - start + step - 1) / step
	case step < 0 && stop < start:
		length = (start - stop - step - 1) / -step
	}
	if length > maxRange {
		return value.Undefined(), NewError(ErrInvalidOperation, "range has too many elements")
	}

	out := make([]value.Value, length)
	for i := range out {
		out[i] = value.FromInt(start + int64(i)*step)
	}
	return value.FromSlice(out), nil
}

// fnDict builds a map from an optional map or sequence of pairs, then the
// keyword arguments.
func fnDict(_ *State, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	if len(args) > 1 {
		return value.Undefined(), NewError(ErrTooManyArguments, "dict takes at most one positional argument")
	}
	result := make(map[string]value.Value, len(kwargs))
	if len(args) == 1 {
		if m, ok := args[0].AsMap(); ok {
			for k, v := range m {
				result[k] = v
			}
		} else if items, ok := args[0].AsSlice(); ok {
			for _, item := range items {
				pair, ok := item.AsSlice()
				if !ok || len(pair) != 2 {
					return value.Undefined(), NewError(ErrInvalidOperation, "dict expects a sequence of pairs")
				}
				k, ok := value.MapKey(pair[0])
				if !ok {
					return value.Undefined(), NewError(ErrNonKey, fmt.Sprintf("%s cannot be used as a map key", pair[0].Kind()))
				}
				result[k] = pair[1]
			}
		} else if !args[0].IsNone() && !args[0].IsUndefined() {
			return value.Undefined(), NewError(ErrInvalidOperation, fmt.Sprintf("dict cannot be built from %s", args[0].Kind()))
		}
	}
	for k, v := range kwargs {
		result[k] = v
	}
	return value.FromMap(result), nil
}

func fnCycler(_ *State, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	if len(kwargs) > 0 {
		return value.Undefined(), NewError(ErrTooManyArguments, "cycler takes no keyword arguments")
	}
	if len(args) == 0 {
		return value.Undefined(), NewError(ErrMissingArgument, "cycler requires at least one value")
	}
	return value.FromObject(&cycler{items: args}), nil
}

// cycler steps through its items with next(), wrapping around.
type cycler struct {
	items []value.Value
	pos   int
}

func (c *cycler) GetAttr(name string) value.Value {
	switch name {
	case "next":
		return value.FromCallable(value.CallableFunc(func(value.State, []value.Value, map[string]value.Value) (value.Value, error) {
			item := c.items[c.pos]
			c.pos = (c.pos + 1) % len(c.items)
			return item, nil
		}))
	case "reset":
		return value.FromCallable(value.CallableFunc(func(value.State, []value.Value, map[string]value.Value) (value.Value, error) {
			c.pos = 0
			return value.None(), nil
		}))
	case "current":
		return c.items[c.pos]
	}
	return value.Undefined()
}

// fnJoiner returns a callable producing "" on the first call and the
// separator afterwards.
func fnJoiner(_ *State, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	p := newArgs("joiner", args, kwargs)
	sep, err := p.str(0, "sep", ", ")
	if err != nil {
		return value.Undefined(), err
	}
	if err := p.finish(1); err != nil {
		return value.Undefined(), err
	}
	used := false
	return value.FromCallable(value.CallableFunc(func(value.State, []value.Value, map[string]value.Value) (value.Value, error) {
		if !used {
			used = true
			return value.FromString(""), nil
		}
		return value.FromString(sep), nil
	})), nil
}

func fnNamespace(_ *State, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	ns := &namespace{data: make(map[string]value.Value)}
	if len(args) > 1 {
		return value.Undefined(), NewError(ErrTooManyArguments, "namespace takes at most one positional argument")
	}
	if len(args) == 1 {
		m, ok := args[0].AsMap()
		if !ok {
			return value.Undefined(), NewError(ErrInvalidOperation, "namespace expects a mapping")
		}
		for k, v := range m {
			ns.data[k] = v
		}
	}
	for k, v := range kwargs {
		ns.data[k] = v
	}
	return value.FromObject(ns), nil
}

// namespace is a mutable map that `set ns.attr = ...` can assign into from
// any scope, which makes it the way to carry state out of a loop.
type namespace struct {
	data map[string]value.Value
}

func (n *namespace) GetAttr(name string) value.Value {
	if v, ok := n.data[name]; ok {
		return v
	}
	return value.Undefined()
}

func (n *namespace) SetAttr(name string, val value.Value) {
	n.data[name] = val
}

func (n *namespace) Keys() []string {
	keys := make([]string, 0, len(n.data))
	for k := range n.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// fnDebug pretty prints its arguments, or the visible variables when
// called without any.
func fnDebug(state *State, args []value.Value, _ map[string]value.Value) (value.Value, error) {
	var b strings.Builder
	if len(args) > 0 {
		for i, arg := range args {
			if i > 0 {
				b.WriteString("\n")
			}
			pprint(&b, arg, 0)
		}
		return value.FromString(b.String()), nil
	}

	vars := make(map[string]value.Value)
	for _, k := range state.ctx.Keys() {
		vars[k] = state.ctx.GetAttr(k)
	}
	for _, scope := range state.scopes {
		for k, v := range scope {
			vars[k] = v
		}
	}
	fmt.Fprintf(&b, "State {\n  name: %q,\n  variables: ", state.name)
	pprint(&b, value.FromMap(vars), 1)
	b.WriteString(",\n}")
	return value.FromString(b.String()), nil
}

const lorem = "Lorem ipsum dolor sit amet, consectetur adipiscing elit. " +
	"Sed do eiusmod tempor incididunt ut labore et dolore magna aliqua. " +
	"Ut enim ad minim veniam, quis nostrud exercitation ullamco laboris."

func fnLipsum(_ *State, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	p := newArgs("lipsum", args, kwargs)
	n, err := p.int(0, "n", 5)
	if err != nil {
		return value.Undefined(), err
	}
	html := p.bool(1, "html", false)
	if err := p.finish(2); err != nil {
		return value.Undefined(), err
	}

	paragraphs := make([]string, max(n, 0))
	for i := range paragraphs {
		paragraphs[i] = lorem
	}
	if html {
		return value.FromSafeString("<p>" + strings.Join(paragraphs, "</p>\n<p>") + "</p>"), nil
	}
	return value.FromString(strings.Join(paragraphs, "\n\n")), nil
}
