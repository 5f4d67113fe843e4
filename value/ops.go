package value

import (
	"fmt"
	"math"
	"math/big"
	"strings"
)

func impossibleOp(op string, lhs, rhs Value) error {
	return fmt.Errorf("tried to use %s operator on unsupported types %s and %s", op, lhs.Kind(), rhs.Kind())
}

// numericPair classifies two operands: both integers, or at least one
// float with both numeric.
func numericPair(a, b Value) (ints bool, nums bool) {
	if a.Kind() != KindNumber || b.Kind() != KindNumber {
		return false, false
	}
	return a.IsInteger() && b.IsInteger(), true
}

func bigOperands(a, b Value) (*big.Int, *big.Int) {
	x, _ := a.AsBigInt()
	y, _ := b.AsBigInt()
	return x, y
}

func floatOperands(a, b Value) (float64, float64) {
	x, _ := a.AsFloat()
	y, _ := b.AsFloat()
	return x, y
}

// Neg performs unary negation.
func (v Value) Neg() (Value, error) {
	switch d := v.data.(type) {
	case int64:
		if d == math.MinInt64 {
			return FromBigInt(new(big.Int).Neg(big.NewInt(d))), nil
		}
		return FromInt(-d), nil
	case bigInt:
		return FromBigInt(new(big.Int).Neg(d.Int)), nil
	case float64:
		return FromFloat(-d), nil
	}
	return Undefined(), fmt.Errorf("tried to negate %s", v.Kind())
}

// Add performs numeric addition, string concatenation or sequence
// concatenation.
func (v Value) Add(other Value) (Value, error) {
	if ints, nums := numericPair(v, other); nums {
		if !ints {
			x, y := floatOperands(v, other)
			return FromFloat(x + y), nil
		}
		a, aok := v.data.(int64)
		b, bok := other.data.(int64)
		if aok && bok {
			if c := a + b; (c > a) == (b > 0) {
				return FromInt(c), nil
			}
		}
		x, y := bigOperands(v, other)
		return FromBigInt(x.Add(x, y)), nil
	}

	if s1, ok := v.AsString(); ok {
		if s2, ok := other.AsString(); ok {
			if v.IsSafe() && other.IsSafe() {
				return FromSafeString(s1 + s2), nil
			}
			return FromString(s1 + s2), nil
		}
	}

	if s1, ok := v.AsSlice(); ok {
		if s2, ok := other.AsSlice(); ok {
			out := make([]Value, 0, len(s1)+len(s2))
			out = append(out, s1...)
			return FromSlice(append(out, s2...)), nil
		}
	}

	return Undefined(), impossibleOp("+", v, other)
}

// Sub performs subtraction.
func (v Value) Sub(other Value) (Value, error) {
	ints, nums := numericPair(v, other)
	if !nums {
		return Undefined(), impossibleOp("-", v, other)
	}
	if !ints {
		x, y := floatOperands(v, other)
		return FromFloat(x - y), nil
	}
	a, aok := v.data.(int64)
	b, bok := other.data.(int64)
	if aok && bok {
		if c := a - b; (c < a) == (b > 0) {
			return FromInt(c), nil
		}
	}
	x, y := bigOperands(v, other)
	return FromBigInt(x.Sub(x, y)), nil
}

// Mul performs multiplication, or repetition of a string or sequence by an
// integer.
func (v Value) Mul(other Value) (Value, error) {
	if ints, nums := numericPair(v, other); nums {
		if !ints {
			x, y := floatOperands(v, other)
			return FromFloat(x * y), nil
		}
		a, aok := v.data.(int64)
		b, bok := other.data.(int64)
		if aok && bok {
			if a == 0 || b == 0 {
				return FromInt(0), nil
			}
			c := a * b
			if c/b == a && !(a == -1 && b == math.MinInt64) && !(b == -1 && a == math.MinInt64) {
				return FromInt(c), nil
			}
		}
		x, y := bigOperands(v, other)
		return FromBigInt(x.Mul(x, y)), nil
	}

	if n, ok := repeatCount(other); ok {
		if out, ok := repeat(v, n); ok {
			return out, nil
		}
	}
	if n, ok := repeatCount(v); ok {
		if out, ok := repeat(other, n); ok {
			return out, nil
		}
	}
	return Undefined(), impossibleOp("*", v, other)
}

func repeatCount(v Value) (int, bool) {
	if !v.IsInteger() {
		return 0, false
	}
	n, ok := v.AsInt()
	if !ok || n < 0 || n > math.MaxInt32 {
		return 0, false
	}
	return int(n), true
}

func repeat(v Value, n int) (Value, bool) {
	if s, ok := v.AsString(); ok {
		if v.IsSafe() {
			return FromSafeString(strings.Repeat(s, n)), true
		}
		return FromString(strings.Repeat(s, n)), true
	}
	if items, ok := v.AsSlice(); ok {
		out := make([]Value, 0, len(items)*n)
		for i := 0; i < n; i++ {
			out = append(out, items...)
		}
		return FromSlice(out), true
	}
	return Value{}, false
}

// Div performs true division. The result is always a float.
func (v Value) Div(other Value) (Value, error) {
	ints, nums := numericPair(v, other)
	if !nums {
		return Undefined(), impossibleOp("/", v, other)
	}
	x, y := floatOperands(v, other)
	if y == 0 && ints {
		return Undefined(), fmt.Errorf("tried to divide by zero")
	}
	return FromFloat(x / y), nil
}

// FloorDiv performs Euclidean integer division, or floored float division.
func (v Value) FloorDiv(other Value) (Value, error) {
	ints, nums := numericPair(v, other)
	if !nums {
		return Undefined(), impossibleOp("//", v, other)
	}
	if !ints {
		x, y := floatOperands(v, other)
		if y == 0 {
			return Undefined(), fmt.Errorf("tried to divide by zero")
		}
		return FromFloat(math.Floor(x / y)), nil
	}
	x, y := bigOperands(v, other)
	if y.Sign() == 0 {
		return Undefined(), fmt.Errorf("tried to divide by zero")
	}
	q := new(big.Int)
	q.DivMod(x, y, new(big.Int))
	return FromBigInt(q), nil
}

// Rem performs the Euclidean remainder.
func (v Value) Rem(other Value) (Value, error) {
	ints, nums := numericPair(v, other)
	if !nums {
		return Undefined(), impossibleOp("%", v, other)
	}
	if !ints {
		x, y := floatOperands(v, other)
		if y == 0 {
			return Undefined(), fmt.Errorf("tried to calculate remainder of division by zero")
		}
		r := math.Mod(x, y)
		if r < 0 {
			r += math.Abs(y)
		}
		return FromFloat(r), nil
	}
	x, y := bigOperands(v, other)
	if y.Sign() == 0 {
		return Undefined(), fmt.Errorf("tried to calculate remainder of division by zero")
	}
	m := new(big.Int)
	new(big.Int).DivMod(x, y, m)
	return FromBigInt(m), nil
}

// Pow performs exponentiation. Integer powers with a non-negative exponent
// stay exact.
func (v Value) Pow(other Value) (Value, error) {
	ints, nums := numericPair(v, other)
	if !nums {
		return Undefined(), impossibleOp("**", v, other)
	}
	if ints {
		x, y := bigOperands(v, other)
		if y.Sign() >= 0 {
			if y.BitLen() > 32 {
				return Undefined(), fmt.Errorf("exponent too large")
			}
			return FromBigInt(new(big.Int).Exp(x, y, nil)), nil
		}
	}
	x, y := floatOperands(v, other)
	return FromFloat(math.Pow(x, y)), nil
}

// Concat performs the tilde (~) string concatenation.
func (v Value) Concat(other Value) Value {
	if v.IsSafe() && other.IsSafe() {
		return FromSafeString(v.String() + other.String())
	}
	return FromString(v.String() + other.String())
}

// Equal reports whether two values are equal. Numbers compare by value
// across integer and float representations; true and false equal 1 and 0.
func (v Value) Equal(other Value) bool {
	if v.IsUndefined() || other.IsUndefined() {
		return v.IsUndefined() && other.IsUndefined()
	}
	if v.IsNone() || other.IsNone() {
		return v.IsNone() && other.IsNone()
	}

	if a, b, ok := coerceBools(v, other); ok {
		return a.Equal(b)
	}

	if _, nums := numericPair(v, other); nums {
		c, _ := compareNumbers(v, other)
		return c == 0
	}

	if s1, ok := v.AsString(); ok {
		s2, ok := other.AsString()
		return ok && s1 == s2
	}

	if b1, ok := v.data.([]byte); ok {
		b2, ok := other.data.([]byte)
		return ok && string(b1) == string(b2)
	}

	if seq1, ok := v.AsSlice(); ok {
		seq2, ok := other.AsSlice()
		if !ok || len(seq1) != len(seq2) {
			return false
		}
		for i := range seq1 {
			if !seq1[i].Equal(seq2[i]) {
				return false
			}
		}
		return true
	}

	if m1, ok := v.AsMap(); ok {
		m2, ok := other.AsMap()
		if !ok || len(m1) != len(m2) {
			return false
		}
		for k, val1 := range m1 {
			if val2, exists := m2[k]; !exists || !val1.Equal(val2) {
				return false
			}
		}
		return true
	}

	if o1, ok := v.AsObject(); ok {
		o2, ok := other.AsObject()
		return ok && o1 == o2
	}
	return false
}

// coerceBools turns a bool compared against a number into 0 or 1. Two bools
// stay bools.
func coerceBools(a, b Value) (Value, Value, bool) {
	ab, aok := a.AsBool()
	bb, bok := b.AsBool()
	switch {
	case aok && bok:
		return FromInt(boolInt(ab)), FromInt(boolInt(bb)), true
	case aok && b.Kind() == KindNumber:
		return FromInt(boolInt(ab)), b, true
	case bok && a.Kind() == KindNumber:
		return a, FromInt(boolInt(bb)), true
	case aok || bok:
		return a, b, false
	}
	return a, b, false
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func compareNumbers(a, b Value) (int, bool) {
	if a.IsInteger() && b.IsInteger() {
		x, y := bigOperands(a, b)
		return x.Cmp(y), true
	}
	x, y := floatOperands(a, b)
	switch {
	case x < y:
		return -1, true
	case x > y:
		return 1, true
	case x == y:
		return 0, true
	}
	return 0, false
}

var kindOrder = map[ValueKind]int{
	KindUndefined: 0,
	KindNone:      1,
	KindBool:      2,
	KindNumber:    3,
	KindString:    4,
	KindBytes:     5,
	KindSeq:       6,
	KindMap:       7,
	KindCallable:  8,
	KindPlain:     9,
}

// Compare orders two values. Values of different kinds order by kind, with
// bools and numbers comparing numerically. The second result is false when
// the values cannot be ordered, for example two maps.
func (v Value) Compare(other Value) (int, bool) {
	if a, b, ok := coerceBools(v, other); ok {
		return compareNumbers(a, b)
	}
	if _, nums := numericPair(v, other); nums {
		return compareNumbers(v, other)
	}

	k1, k2 := kindOrder[v.Kind()], kindOrder[other.Kind()]
	if k1 != k2 {
		if k1 < k2 {
			return -1, true
		}
		return 1, true
	}

	switch v.Kind() {
	case KindUndefined, KindNone:
		return 0, true
	case KindString:
		s1, _ := v.AsString()
		s2, _ := other.AsString()
		return strings.Compare(s1, s2), true
	case KindBytes:
		b1, _ := v.data.([]byte)
		b2, _ := other.data.([]byte)
		return strings.Compare(string(b1), string(b2)), true
	case KindSeq:
		seq1, _ := v.AsSlice()
		seq2, _ := other.AsSlice()
		for i := 0; i < len(seq1) && i < len(seq2); i++ {
			c, ok := seq1[i].Compare(seq2[i])
			if !ok {
				return 0, false
			}
			if c != 0 {
				return c, true
			}
		}
		switch {
		case len(seq1) < len(seq2):
			return -1, true
		case len(seq1) > len(seq2):
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// Contains implements the `in` operator with v as the container. The
// second result is false when v cannot contain anything.
func (v Value) Contains(item Value) (bool, bool) {
	switch v.Kind() {
	case KindString:
		s, _ := v.AsString()
		needle, ok := item.AsString()
		if !ok {
			needle = item.String()
		}
		return strings.Contains(s, needle), true
	case KindSeq:
		items, _ := v.AsSlice()
		for _, candidate := range items {
			if candidate.Equal(item) {
				return true, true
			}
		}
		return false, true
	case KindMap:
		key, ok := mapKey(item)
		if !ok {
			return false, true
		}
		m, _ := v.AsMap()
		_, exists := m[key]
		return exists, true
	}
	return false, false
}

// SameAs reports identity: same kind and value for primitives, the same
// backing storage for sequences, maps and objects.
func (v Value) SameAs(other Value) bool {
	switch a := v.data.(type) {
	case []Value:
		b, ok := other.data.([]Value)
		return ok && len(a) == len(b) && (len(a) == 0 || &a[0] == &b[0])
	case map[string]Value:
		b, ok := other.data.(map[string]Value)
		return ok && fmt.Sprintf("%p", a) == fmt.Sprintf("%p", b)
	case Object:
		b, ok := other.data.(Object)
		return ok && a == b
	}
	if v.Kind() != other.Kind() || v.IsInteger() != other.IsInteger() {
		return false
	}
	return v.Equal(other)
}
