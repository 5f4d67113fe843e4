package minijinja

import (
	"fmt"
	"strings"

	"github.com/mitsuhiko/minijinja/minijinja-cabi-go/internal/parser"
	"github.com/mitsuhiko/minijinja/minijinja-cabi-go/value"
)

// boundFunction exposes a registered global function as a callable value.
type boundFunction struct {
	name string
	fn   FunctionFunc
}

func (f *boundFunction) Call(st value.State, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	state, _ := st.(*State)
	return f.fn(state, args, kwargs)
}

func (f *boundFunction) GetAttr(name string) value.Value {
	if name == "name" {
		return value.FromString(f.name)
	}
	return value.Undefined()
}

// annotate attaches template location, and debug information when enabled,
// to an error. Errors that are not template errors become invalid
// operations.
func (s *State) annotate(err error, node parser.Node) error {
	if err == nil || err == errBreak || err == errContinue {
		return err
	}
	tmplErr, ok := err.(*Error)
	if !ok {
		tmplErr = NewError(ErrInvalidOperation, err.Error())
	}
	tmplErr.WithName(s.name)
	if node != nil {
		tmplErr.WithSpan(node.Span())
	}
	if s.env.debug {
		tmplErr.WithSource(s.source)
		tmplErr.WithDebugInfo(s.makeDebugInfo(node))
	}
	return tmplErr
}

func (s *State) evalCall(call *parser.Call, extra map[string]value.Value) (value.Value, error) {
	val, err := s.evalCallInner(call, extra)
	if err != nil {
		return value.Undefined(), s.annotate(err, call)
	}
	return val, nil
}

func (s *State) evalCallInner(call *parser.Call, extra map[string]value.Value) (value.Value, error) {
	switch fn := call.Expr.(type) {
	case *parser.Var:
		if fn.ID == "super" {
			if len(call.Args) > 0 {
				return value.Undefined(), NewError(ErrTooManyArguments, "super() takes no arguments")
			}
			return s.evalSuper()
		}
		target := s.Lookup(fn.ID)
		if target.IsUndefined() {
			return value.Undefined(), NewError(ErrUnknownFunction, fmt.Sprintf("%s is unknown", fn.ID))
		}
		return s.callValue(target, call.Args, extra)

	case *parser.GetAttr:
		obj, err := s.evalExpr(fn.Expr)
		if err != nil {
			return value.Undefined(), err
		}
		if obj.IsUndefined() || obj.IsNone() {
			return value.Undefined(), NewError(ErrUndefinedVar, "")
		}
		if attr := obj.GetAttr(fn.Name); attr.IsCallable() {
			return s.callValue(attr, call.Args, extra)
		}
		args, kwargs, err := s.evalCallArgs(call.Args)
		if err != nil {
			return value.Undefined(), err
		}
		return s.callMethod(obj, fn.Name, args, kwargs)
	}

	target, err := s.evalExpr(call.Expr)
	if err != nil {
		return value.Undefined(), err
	}
	return s.callValue(target, call.Args, extra)
}

func (s *State) callValue(target value.Value, callArgs []parser.CallArg, extra map[string]value.Value) (value.Value, error) {
	c, ok := target.AsCallable()
	if !ok {
		return value.Undefined(), NewError(ErrInvalidOperation, fmt.Sprintf("%s is not callable", target.Kind()))
	}
	args, kwargs, err := s.evalCallArgs(callArgs)
	if err != nil {
		return value.Undefined(), err
	}
	if len(extra) > 0 {
		if kwargs == nil {
			kwargs = make(map[string]value.Value, len(extra))
		}
		for k, v := range extra {
			kwargs[k] = v
		}
	}
	return c.Call(s, args, kwargs)
}

// macro is a template-defined callable. It closes over the scopes that were
// visible where it was defined.
type macro struct {
	decl    *parser.Macro
	state   *State
	closure []map[string]value.Value
}

func (s *State) makeMacro(decl *parser.Macro) value.Value {
	closure := make([]map[string]value.Value, len(s.scopes))
	copy(closure, s.scopes)
	return value.FromCallable(&macro{decl: decl, state: s, closure: closure})
}

func (m *macro) GetAttr(name string) value.Value {
	switch name {
	case "name":
		return value.FromString(m.decl.Name)
	case "arguments":
		names := make([]value.Value, 0, len(m.decl.Args))
		for _, arg := range m.decl.Args {
			if v, ok := arg.(*parser.Var); ok {
				names = append(names, value.FromString(v.ID))
			}
		}
		return value.FromSlice(names)
	}
	return value.Undefined()
}

func (m *macro) Call(st value.State, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	caller, _ := st.(*State)
	if caller == nil {
		caller = m.state
	}
	decl := m.decl
	if len(args) > len(decl.Args) {
		return value.Undefined(), NewError(ErrTooManyArguments, fmt.Sprintf(
			"macro %s takes %d arguments, got %d", decl.Name, len(decl.Args), len(args)))
	}

	if err := caller.rt.enter(); err != nil {
		return value.Undefined(), err
	}
	defer caller.rt.leave()

	frame := make(map[string]value.Value, len(decl.Args)+1)
	sub := &State{
		env:        m.state.env,
		rt:         caller.rt,
		name:       m.state.name,
		source:     m.state.source,
		autoEscape: caller.autoEscape,
		ctx:        m.state.ctx,
		scopes:     append(append([]map[string]value.Value(nil), m.closure...), frame),
		blocks:     m.state.blocks,
	}

	known := make(map[string]bool, len(decl.Args))
	firstDefault := len(decl.Args) - len(decl.Defaults)
	for i, argExpr := range decl.Args {
		name, err := assignName(argExpr)
		if err != nil {
			return value.Undefined(), err
		}
		known[name] = true
		kwVal, hasKw := kwargs[name]
		switch {
		case i < len(args):
			if hasKw {
				return value.Undefined(), NewError(ErrTooManyArguments, fmt.Sprintf(
					"macro %s got multiple values for argument %s", decl.Name, name))
			}
			frame[name] = args[i]
		case hasKw:
			frame[name] = kwVal
		case i >= firstDefault:
			def, err := sub.evalExpr(decl.Defaults[i-firstDefault])
			if err != nil {
				return value.Undefined(), err
			}
			frame[name] = def
		default:
			frame[name] = value.Undefined()
		}
	}
	for k, v := range kwargs {
		if k == "caller" {
			frame[k] = v
			continue
		}
		if !known[k] {
			return value.Undefined(), NewError(ErrTooManyArguments, fmt.Sprintf(
				"macro %s got an unexpected keyword argument '%s'", decl.Name, k))
		}
	}

	out, err := sub.capture(func() error {
		return sub.evalStmts(decl.Body)
	})
	if err != nil {
		return value.Undefined(), err
	}
	return value.FromSafeString(out), nil
}

// callMethod dispatches the built-in methods of strings, sequences and maps.
func (s *State) callMethod(obj value.Value, name string, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	unknown := NewError(ErrUnknownMethod, fmt.Sprintf("%s has no method named %s", obj.Kind(), name))
	p := newArgs(name, args, kwargs)

	if str, ok := obj.AsString(); ok {
		var result value.Value
		switch name {
		case "upper", "lower", "title", "capitalize":
			if err := p.finish(0); err != nil {
				return value.Undefined(), err
			}
			fn, _ := s.env.getFilter(name)
			if fn == nil {
				return value.Undefined(), unknown
			}
			return fn(s, obj, nil, nil)
		case "strip", "lstrip", "rstrip":
			chars, err := p.str(0, "chars", "")
			if err != nil {
				return value.Undefined(), err
			}
			_, hasChars := p.optional(0, "chars")
			result = value.FromString(stripString(name, str, chars, hasChars))
		case "startswith", "endswith":
			prefix, err := p.requireStr(0, "prefix")
			if err != nil {
				return value.Undefined(), err
			}
			if name == "startswith" {
				result = value.FromBool(strings.HasPrefix(str, prefix))
			} else {
				result = value.FromBool(strings.HasSuffix(str, prefix))
			}
		case "split":
			return filterSplit(s, obj, args, kwargs)
		case "replace":
			old, err := p.requireStr(0, "old")
			if err != nil {
				return value.Undefined(), err
			}
			repl, err := p.requireStr(1, "new")
			if err != nil {
				return value.Undefined(), err
			}
			count, err := p.int(2, "count", -1)
			if err != nil {
				return value.Undefined(), err
			}
			result = value.FromString(strings.Replace(str, old, repl, int(count)))
			if err := p.finish(3); err != nil {
				return value.Undefined(), err
			}
			return result, nil
		case "count":
			sub, err := p.requireStr(0, "sub")
			if err != nil {
				return value.Undefined(), err
			}
			result = value.FromInt(int64(strings.Count(str, sub)))
		case "join":
			items, err := s.iterate(p.args0())
			if err != nil {
				return value.Undefined(), err
			}
			parts := make([]string, len(items))
			for i, item := range items {
				parts[i] = item.String()
			}
			result = value.FromString(strings.Join(parts, str))
		default:
			return value.Undefined(), unknown
		}
		if err := p.finish(1); err != nil {
			return value.Undefined(), err
		}
		return result, nil
	}

	if items, ok := obj.AsSlice(); ok {
		switch name {
		case "count", "index":
			needle, err := p.require(0, "value")
			if err != nil {
				return value.Undefined(), err
			}
			if err := p.finish(1); err != nil {
				return value.Undefined(), err
			}
			count := 0
			for i, item := range items {
				if item.Equal(needle) {
					if name == "index" {
						return value.FromInt(int64(i)), nil
					}
					count++
				}
			}
			if name == "index" {
				return value.Undefined(), NewError(ErrInvalidOperation, "value not in sequence")
			}
			return value.FromInt(int64(count)), nil
		}
		return value.Undefined(), unknown
	}

	if m, ok := obj.AsMap(); ok {
		keys := obj.Keys()
		switch name {
		case "keys", "values", "items":
			if err := p.finish(0); err != nil {
				return value.Undefined(), err
			}
			out := make([]value.Value, len(keys))
			for i, k := range keys {
				switch name {
				case "keys":
					out[i] = value.FromString(k)
				case "values":
					out[i] = m[k]
				default:
					out[i] = value.FromSlice([]value.Value{value.FromString(k), m[k]})
				}
			}
			return value.FromSlice(out), nil
		case "get":
			key, err := p.require(0, "key")
			if err != nil {
				return value.Undefined(), err
			}
			def, ok := p.get(1, "default")
			if !ok {
				def = value.None()
			}
			if err := p.finish(2); err != nil {
				return value.Undefined(), err
			}
			if v := obj.GetItem(key); !v.IsUndefined() {
				return v, nil
			}
			return def, nil
		}
		return value.Undefined(), unknown
	}

	return value.Undefined(), unknown
}

func (p *argParser) args0() value.Value {
	v, _ := p.get(0, "")
	return v
}

func stripString(method, str, chars string, hasChars bool) string {
	if !hasChars {
		switch method {
		case "lstrip":
			return strings.TrimLeft(str, " \t\r\n\v\f")
		case "rstrip":
			return strings.TrimRight(str, " \t\r\n\v\f")
		}
		return strings.TrimSpace(str)
	}
	switch method {
	case "lstrip":
		return strings.TrimLeft(str, chars)
	case "rstrip":
		return strings.TrimRight(str, chars)
	}
	return strings.Trim(str, chars)
}
