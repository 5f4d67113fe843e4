package minijinja

import (
	"fmt"
	"math/big"

	"github.com/mitsuhiko/minijinja/minijinja-cabi-go/internal/parser"
	"github.com/mitsuhiko/minijinja/minijinja-cabi-go/value"
)

func (s *State) evalExpr(expr parser.Expr) (value.Value, error) {
	val, err := s.evalExprInner(expr)
	if err != nil {
		return value.Undefined(), s.annotate(err, expr)
	}
	return val, nil
}

func (s *State) evalExprInner(expr parser.Expr) (value.Value, error) {
	switch e := expr.(type) {
	case *parser.Var:
		return s.Lookup(e.ID), nil
	case *parser.Const:
		return constValue(e), nil
	case *parser.UnaryOp:
		return s.evalUnaryOp(e)
	case *parser.BinOp:
		return s.evalBinOp(e)
	case *parser.IfExpr:
		return s.evalIfExpr(e)
	case *parser.Filter:
		val, err := s.evalExpr(e.Expr)
		if err != nil {
			return value.Undefined(), err
		}
		return s.callFilter(e, val)
	case *parser.Test:
		return s.evalTest(e)
	case *parser.GetAttr:
		base, err := s.evalExpr(e.Expr)
		if err != nil {
			return value.Undefined(), err
		}
		return s.getAttr(base, e.Name)
	case *parser.GetItem:
		return s.evalGetItem(e)
	case *parser.Slice:
		return s.evalSlice(e)
	case *parser.Call:
		return s.evalCall(e, nil)
	case *parser.List:
		items := make([]value.Value, len(e.Items))
		for i, item := range e.Items {
			val, err := s.evalExpr(item)
			if err != nil {
				return value.Undefined(), err
			}
			items[i] = val
		}
		return value.FromSlice(items), nil
	case *parser.Map:
		return s.evalMap(e)
	}
	return value.Undefined(), NewError(ErrInvalidOperation, fmt.Sprintf("unsupported expression type: %T", expr))
}

func constValue(c *parser.Const) value.Value {
	switch v := c.Value.(type) {
	case nil:
		return value.None()
	case bool:
		return value.FromBool(v)
	case int64:
		return value.FromInt(v)
	case *big.Int:
		return value.FromBigInt(v)
	case float64:
		return value.FromFloat(v)
	case string:
		return value.FromString(v)
	}
	return value.Undefined()
}

func (s *State) evalUnaryOp(e *parser.UnaryOp) (value.Value, error) {
	val, err := s.evalExpr(e.Expr)
	if err != nil {
		return value.Undefined(), err
	}
	switch e.Op {
	case parser.UnaryNot:
		ok, err := s.truthy(val)
		if err != nil {
			return value.Undefined(), err
		}
		return value.FromBool(!ok), nil
	case parser.UnaryNeg:
		return val.Neg()
	}
	return value.Undefined(), NewError(ErrInvalidOperation, "unknown unary operator")
}

func (s *State) evalBinOp(e *parser.BinOp) (value.Value, error) {
	left, err := s.evalExpr(e.Left)
	if err != nil {
		return value.Undefined(), err
	}

	// and/or short-circuit and return the deciding operand
	switch e.Op {
	case parser.BinOpScAnd, parser.BinOpScOr:
		ok, err := s.truthy(left)
		if err != nil {
			return value.Undefined(), err
		}
		if ok == (e.Op == parser.BinOpScOr) {
			return left, nil
		}
		return s.evalExpr(e.Right)
	}

	right, err := s.evalExpr(e.Right)
	if err != nil {
		return value.Undefined(), err
	}

	switch e.Op {
	case parser.BinOpEq:
		return value.FromBool(left.Equal(right)), nil
	case parser.BinOpNe:
		return value.FromBool(!left.Equal(right)), nil
	case parser.BinOpLt, parser.BinOpLte, parser.BinOpGt, parser.BinOpGte:
		c, ok := left.Compare(right)
		if !ok {
			return value.Undefined(), NewError(ErrInvalidOperation, fmt.Sprintf(
				"tried to use %s operator on unsupported types %s and %s", e.Op, left.Kind(), right.Kind()))
		}
		switch e.Op {
		case parser.BinOpLt:
			return value.FromBool(c < 0), nil
		case parser.BinOpLte:
			return value.FromBool(c <= 0), nil
		case parser.BinOpGt:
			return value.FromBool(c > 0), nil
		default:
			return value.FromBool(c >= 0), nil
		}
	case parser.BinOpAdd:
		return left.Add(right)
	case parser.BinOpSub:
		return left.Sub(right)
	case parser.BinOpMul:
		return left.Mul(right)
	case parser.BinOpDiv:
		return left.Div(right)
	case parser.BinOpFloorDiv:
		return left.FloorDiv(right)
	case parser.BinOpRem:
		return left.Rem(right)
	case parser.BinOpPow:
		return left.Pow(right)
	case parser.BinOpConcat:
		for _, operand := range []value.Value{left, right} {
			if operand.IsUndefined() && !s.UndefinedBehavior().AllowsPrint() {
				return value.Undefined(), NewError(ErrUndefinedVar, "")
			}
		}
		return left.Concat(right), nil
	case parser.BinOpIn:
		return s.contains(right, left)
	}
	return value.Undefined(), NewError(ErrInvalidOperation, fmt.Sprintf("unknown operator %s", e.Op))
}

func (s *State) contains(container, item value.Value) (value.Value, error) {
	if container.IsUndefined() {
		switch s.UndefinedBehavior() {
		case UndefinedStrict, UndefinedSemiStrict:
			return value.Undefined(), NewError(ErrUndefinedVar, "")
		}
		return value.False(), nil
	}
	found, ok := container.Contains(item)
	if !ok {
		return value.Undefined(), NewError(ErrInvalidOperation, fmt.Sprintf(
			"cannot perform a containment check on %s", container.Kind()))
	}
	return value.FromBool(found), nil
}

func (s *State) evalIfExpr(e *parser.IfExpr) (value.Value, error) {
	cond, err := s.evalExpr(e.TestExpr)
	if err != nil {
		return value.Undefined(), err
	}
	ok, err := s.truthy(cond)
	if err != nil {
		return value.Undefined(), err
	}
	if ok {
		return s.evalExpr(e.TrueExpr)
	}
	if e.FalseExpr == nil {
		return value.Undefined(), nil
	}
	return s.evalExpr(e.FalseExpr)
}

// applyFilterChain applies a filter chain whose innermost link has no
// expression of its own; input takes its place.
func (s *State) applyFilterChain(expr parser.Expr, input value.Value) (value.Value, error) {
	f, ok := expr.(*parser.Filter)
	if !ok {
		return value.Undefined(), NewError(ErrInvalidOperation, "invalid filter expression")
	}
	val := input
	if f.Expr != nil {
		var err error
		if val, err = s.applyFilterChain(f.Expr, input); err != nil {
			return value.Undefined(), err
		}
	}
	return s.callFilter(f, val)
}

func (s *State) callFilter(f *parser.Filter, val value.Value) (value.Value, error) {
	fn, ok := s.env.getFilter(f.Name)
	if !ok {
		return value.Undefined(), s.annotate(NewError(ErrUnknownFilter, fmt.Sprintf("filter %s is unknown", f.Name)), f)
	}
	args, kwargs, err := s.evalCallArgs(f.Args)
	if err != nil {
		return value.Undefined(), err
	}
	result, err := fn(s, val, args, kwargs)
	if err != nil {
		return value.Undefined(), s.annotate(err, f)
	}
	return result, nil
}

func (s *State) evalTest(t *parser.Test) (value.Value, error) {
	val, err := s.evalExpr(t.Expr)
	if err != nil {
		return value.Undefined(), err
	}
	fn, ok := s.env.getTest(t.Name)
	if !ok {
		return value.Undefined(), NewError(ErrUnknownTest, fmt.Sprintf("test %s is unknown", t.Name))
	}
	args, kwargs, err := s.evalCallArgs(t.Args)
	if err != nil {
		return value.Undefined(), err
	}
	if len(kwargs) > 0 {
		return value.Undefined(), NewError(ErrTooManyArguments, fmt.Sprintf("test %s does not take keyword arguments", t.Name))
	}
	result, err := fn(s, val, args)
	if err != nil {
		return value.Undefined(), err
	}
	return value.FromBool(result), nil
}

// undefinedAccess decides what looking into an undefined or none value
// produces.
func (s *State) undefinedAccess(base value.Value) (value.Value, error) {
	if base.IsUndefined() && s.UndefinedBehavior().AllowsChaining() {
		return value.Undefined(), nil
	}
	return value.Undefined(), NewError(ErrUndefinedVar, "")
}

func (s *State) getAttr(base value.Value, name string) (value.Value, error) {
	if base.IsUndefined() || base.IsNone() {
		return s.undefinedAccess(base)
	}
	return base.GetAttr(name), nil
}

func (s *State) evalGetItem(e *parser.GetItem) (value.Value, error) {
	base, err := s.evalExpr(e.Expr)
	if err != nil {
		return value.Undefined(), err
	}
	key, err := s.evalExpr(e.SubscriptExpr)
	if err != nil {
		return value.Undefined(), err
	}
	if base.IsUndefined() || base.IsNone() {
		return s.undefinedAccess(base)
	}
	return base.GetItem(key), nil
}

func (s *State) evalOptionalInt(expr parser.Expr, what string) (*int64, error) {
	if expr == nil {
		return nil, nil
	}
	val, err := s.evalExpr(expr)
	if err != nil {
		return nil, err
	}
	if val.IsNone() || val.IsUndefined() {
		return nil, nil
	}
	n, ok := val.AsInt()
	if !ok {
		return nil, NewError(ErrInvalidOperation, fmt.Sprintf("slice %s must be an integer, got %s", what, val.Kind()))
	}
	return &n, nil
}

func (s *State) evalSlice(e *parser.Slice) (value.Value, error) {
	base, err := s.evalExpr(e.Expr)
	if err != nil {
		return value.Undefined(), err
	}
	start, err := s.evalOptionalInt(e.Start, "start")
	if err != nil {
		return value.Undefined(), err
	}
	stop, err := s.evalOptionalInt(e.Stop, "stop")
	if err != nil {
		return value.Undefined(), err
	}
	step, err := s.evalOptionalInt(e.Step, "step")
	if err != nil {
		return value.Undefined(), err
	}
	if base.IsUndefined() || base.IsNone() {
		return s.undefinedAccess(base)
	}
	return sliceValue(base, start, stop, step)
}

// sliceValue applies Python slice semantics to strings and sequences.
func sliceValue(base value.Value, start, stop, step *int64) (value.Value, error) {
	stride := int64(1)
	if step != nil {
		stride = *step
	}
	if stride == 0 {
		return value.Undefined(), NewError(ErrInvalidOperation, "cannot slice by step size of 0")
	}

	if str, ok := base.AsString(); ok {
		runes := []rune(str)
		var out []rune
		for _, i := range sliceIndices(len(runes), start, stop, stride) {
			out = append(out, runes[i])
		}
		return value.FromString(string(out)), nil
	}
	if items, ok := base.AsSlice(); ok {
		indices := sliceIndices(len(items), start, stop, stride)
		out := make([]value.Value, len(indices))
		for i, idx := range indices {
			out[i] = items[idx]
		}
		return value.FromSlice(out), nil
	}
	return value.Undefined(), NewError(ErrInvalidOperation, fmt.Sprintf("cannot slice %s", base.Kind()))
}

func sliceIndices(length int, start, stop *int64, step int64) []int {
	n := int64(length)
	clamp := func(idx *int64, def, lo, hi int64) int64 {
		if idx == nil {
			return def
		}
		i := *idx
		if i < 0 {
			i += n
		}
		if i < lo {
			return lo
		}
		if i > hi {
			return hi
		}
		return i
	}

	var out []int
	if step > 0 {
		from, to := clamp(start, 0, 0, n), clamp(stop, n, 0, n)
		for i := from; i < to; i += step {
			out = append(out, int(i))
		}
	} else {
		from, to := clamp(start, n-1, -1, n-1), clamp(stop, -1, -1, n-1)
		for i := from; i > to; i += step {
			out = append(out, int(i))
		}
	}
	return out
}

func (s *State) evalMap(e *parser.Map) (value.Value, error) {
	m := make(map[string]value.Value, len(e.Keys))
	for i, keyExpr := range e.Keys {
		key, err := s.evalExpr(keyExpr)
		if err != nil {
			return value.Undefined(), err
		}
		k, ok := value.MapKey(key)
		if !ok {
			return value.Undefined(), NewError(ErrNonKey, fmt.Sprintf("%s cannot be used as a map key", key.Kind()))
		}
		val, err := s.evalExpr(e.Values[i])
		if err != nil {
			return value.Undefined(), err
		}
		m[k] = val
	}
	return value.FromMap(m), nil
}

func (s *State) evalCallArgs(callArgs []parser.CallArg) ([]value.Value, map[string]value.Value, error) {
	var args []value.Value
	var kwargs map[string]value.Value
	setKwarg := func(name string, val value.Value) {
		if kwargs == nil {
			kwargs = make(map[string]value.Value)
		}
		kwargs[name] = val
	}

	for _, arg := range callArgs {
		val, err := s.evalExpr(arg.Value)
		if err != nil {
			return nil, nil, err
		}
		switch arg.Kind {
		case parser.CallArgPos:
			args = append(args, val)
		case parser.CallArgKwarg:
			setKwarg(arg.Name, val)
		case parser.CallArgPosSplat:
			items, ok := val.Iter()
			if !ok {
				return nil, nil, NewError(ErrInvalidOperation, fmt.Sprintf("cannot splat %s as arguments", val.Kind()))
			}
			args = append(args, items...)
		case parser.CallArgKwargSplat:
			m, ok := val.AsMap()
			if !ok {
				return nil, nil, NewError(ErrInvalidOperation, fmt.Sprintf("cannot splat %s as keyword arguments", val.Kind()))
			}
			for k, v := range m {
				setKwarg(k, v)
			}
		}
	}
	return args, kwargs, nil
}
