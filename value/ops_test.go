package value

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArithmetic(t *testing.T) {
	type op func(Value, Value) (Value, error)
	add := Value.Add
	sub := Value.Sub
	mul := Value.Mul
	div := Value.Div
	floorDiv := Value.FloorDiv
	rem := Value.Rem
	pow := Value.Pow

	tests := []struct {
		name string
		op   op
		a, b Value
		want string
	}{
		{"add ints", add, FromInt(1), FromInt(2), "3"},
		{"add mixed", add, FromInt(1), FromFloat(0.5), "1.5"},
		{"add overflow", add, FromInt(math.MaxInt64), FromInt(1), "9223372036854775808"},
		{"add strings", add, FromString("a"), FromString("b"), "ab"},
		{"add seqs", add, FromSlice([]Value{FromInt(1)}), FromSlice([]Value{FromInt(2)}), "[1, 2]"},
		{"sub underflow", sub, FromInt(math.MinInt64), FromInt(1), "-9223372036854775809"},
		{"sub back to small", sub, FromUint(math.MaxUint64), FromUint(math.MaxUint64), "0"},
		{"mul overflow", mul, FromInt(math.MaxInt64), FromInt(2), "18446744073709551614"},
		{"mul string", mul, FromString("ab"), FromInt(3), "ababab"},
		{"div", div, FromInt(7), FromInt(2), "3.5"},
		{"floordiv negative", floorDiv, FromInt(-7), FromInt(2), "-4"},
		{"rem negative", rem, FromInt(-7), FromInt(2), "1"},
		{"pow exact", pow, FromInt(2), FromInt(64), "18446744073709551616"},
		{"pow negative exponent", pow, FromInt(2), FromInt(-1), "0.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.op(tt.a, tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestArithmeticErrors(t *testing.T) {
	_, err := FromInt(1).Div(FromInt(0))
	assert.EqualError(t, err, "tried to divide by zero")

	_, err = FromInt(1).Rem(FromInt(0))
	assert.Error(t, err)

	_, err = FromString("a").Add(FromInt(1))
	assert.EqualError(t, err, "tried to use + operator on unsupported types string and number")

	_, err = FromMap(nil).Sub(FromInt(1))
	assert.Error(t, err)

	_, err = None().Neg()
	assert.Error(t, err)
}

func TestNegMinInt64(t *testing.T) {
	got, err := FromInt(math.MinInt64).Neg()
	require.NoError(t, err)
	assert.Equal(t, "9223372036854775808", got.String())
}

func TestEqualAndCompare(t *testing.T) {
	assert.True(t, FromInt(1).Equal(FromFloat(1.0)))
	assert.True(t, True().Equal(FromInt(1)))
	assert.False(t, FromString("1").Equal(FromInt(1)))
	assert.True(t, Undefined().Equal(Value{}))
	assert.False(t, Undefined().Equal(None()))
	assert.True(t, FromUint(math.MaxUint64).Equal(FromUint(math.MaxUint64)))

	c, ok := FromInt(1).Compare(FromUint(math.MaxUint64))
	require.True(t, ok)
	assert.Equal(t, -1, c)

	c, ok = FromString("b").Compare(FromString("a"))
	require.True(t, ok)
	assert.Equal(t, 1, c)

	c, ok = FromInt(100).Compare(FromString("a"))
	require.True(t, ok)
	assert.Equal(t, -1, c)

	_, ok = FromMap(nil).Compare(FromMap(nil))
	assert.False(t, ok)
}

func TestContains(t *testing.T) {
	seq := FromSlice([]Value{FromInt(1), FromString("x")})
	found, ok := seq.Contains(FromString("x"))
	assert.True(t, ok)
	assert.True(t, found)

	found, _ = FromString("hello").Contains(FromString("ell"))
	assert.True(t, found)

	found, _ = FromMap(map[string]Value{"k": None()}).Contains(FromString("k"))
	assert.True(t, found)

	_, ok = FromInt(1).Contains(FromInt(1))
	assert.False(t, ok)
}

func TestSortValues(t *testing.T) {
	items := []Value{FromInt(3), FromFloat(1.5), FromInt(2)}
	require.True(t, SortValues(items, false))
	assert.Equal(t, "[1.5, 2, 3]", FromSlice(items).String())

	mixed := []Value{FromMap(nil), FromMap(nil)}
	assert.False(t, SortValues(mixed, false))
}

func TestFromAnyAndToNative(t *testing.T) {
	var decoded any
	require.NoError(t, json.Unmarshal([]byte(`{"a":[1,2.5,"x",null,true],"b":{"c":false}}`), &decoded))

	v := FromAny(decoded)
	assert.Equal(t, KindMap, v.Kind())

	native, ok := v.ToNative()
	require.True(t, ok)
	want := map[string]any{
		"a": []any{1.0, 2.5, "x", nil, true},
		"b": map[string]any{"c": false},
	}
	if diff := cmp.Diff(want, native); diff != "" {
		t.Errorf("ToNative mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, "18446744073709551615", FromAny(uint64(math.MaxUint64)).String())
	assert.Equal(t, "[1, 2]", FromAny([]int32{1, 2}).String())
	assert.Equal(t, "12345678901234567890123", FromAny(json.Number("12345678901234567890123")).String())

	_, ok = FromCallable(CallableFunc(func(State, []Value, map[string]Value) (Value, error) {
		return None(), nil
	})).ToNative()
	assert.False(t, ok)
}
