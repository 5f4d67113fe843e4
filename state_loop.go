package minijinja

import (
	"github.com/mitsuhiko/minijinja/minijinja-cabi-go/value"
)

// loopObject is the `loop` variable of a for loop. Calling it recurses
// into a recursive loop.
type loopObject struct {
	items   []value.Value
	index   int
	depth   int
	recurse func(value.Value) (value.Value, error)
	changed *value.Value
}

func (l *loopObject) GetAttr(name string) value.Value {
	n := len(l.items)
	switch name {
	case "index":
		return value.FromInt(int64(l.index + 1))
	case "index0":
		return value.FromInt(int64(l.index))
	case "revindex":
		return value.FromInt(int64(n - l.index))
	case "revindex0":
		return value.FromInt(int64(n - l.index - 1))
	case "first":
		return value.FromBool(l.index == 0)
	case "last":
		return value.FromBool(l.index == n-1)
	case "length":
		return value.FromInt(int64(n))
	case "depth":
		return value.FromInt(int64(l.depth))
	case "depth0":
		return value.FromInt(int64(l.depth - 1))
	case "previtem":
		if l.index > 0 {
			return l.items[l.index-1]
		}
	case "nextitem":
		if l.index+1 < n {
			return l.items[l.index+1]
		}
	case "cycle":
		return value.FromCallable(value.CallableFunc(l.cycle))
	case "changed":
		return value.FromCallable(value.CallableFunc(l.changedFunc))
	}
	return value.Undefined()
}

func (l *loopObject) Call(_ value.State, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	if l.recurse == nil {
		return value.Undefined(), NewError(ErrInvalidOperation, "cannot recurse outside of recursive loop")
	}
	if len(args) != 1 || len(kwargs) > 0 {
		return value.Undefined(), NewError(ErrTooManyArguments, "loop() takes exactly one argument")
	}
	return l.recurse(args[0])
}

func (l *loopObject) cycle(_ value.State, args []value.Value, _ map[string]value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.Undefined(), nil
	}
	return args[l.index%len(args)], nil
}

func (l *loopObject) changedFunc(_ value.State, args []value.Value, _ map[string]value.Value) (value.Value, error) {
	current := value.FromSlice(args)
	if l.changed != nil && l.changed.Equal(current) {
		return value.False(), nil
	}
	l.changed = &current
	return value.True(), nil
}
