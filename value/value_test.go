package value

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueKinds(t *testing.T) {
	tests := []struct {
		val  Value
		want ValueKind
	}{
		{Value{}, KindUndefined},
		{Undefined(), KindUndefined},
		{None(), KindNone},
		{True(), KindBool},
		{FromInt(1), KindNumber},
		{FromUint(math.MaxUint64), KindNumber},
		{FromFloat(1.5), KindNumber},
		{FromString("x"), KindString},
		{FromSafeString("<b>"), KindString},
		{FromBytes([]byte("x")), KindBytes},
		{FromSlice(nil), KindSeq},
		{FromMap(nil), KindMap},
		{MergeMaps(FromMap(nil), FromMap(nil)), KindMap},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.val.Kind(), "kind of %s", tt.val.Repr())
	}
}

func TestValueByIndex(t *testing.T) {
	val := FromSlice([]Value{FromInt(1), FromInt(2), FromInt(3)})

	i, ok := val.GetItem(FromInt(0)).AsInt()
	require.True(t, ok)
	assert.Equal(t, int64(1), i)

	i, ok = val.GetItem(FromInt(-1)).AsInt()
	require.True(t, ok)
	assert.Equal(t, int64(3), i)

	assert.True(t, val.GetItem(FromInt(4)).IsUndefined())
	assert.Equal(t, "é", FromString("héllo").GetItem(FromInt(1)).String())
}

func TestUintAboveInt64StaysExact(t *testing.T) {
	v := FromUint(math.MaxUint64)
	assert.True(t, v.IsInteger())
	assert.Equal(t, "18446744073709551615", v.String())

	_, ok := v.AsInt()
	assert.False(t, ok)

	n, ok := v.ToNative()
	require.True(t, ok)
	assert.Equal(t, uint64(math.MaxUint64), n)

	assert.Equal(t, KindNumber, FromUint(5).Kind())
	i, ok := FromUint(5).AsInt()
	require.True(t, ok)
	assert.Equal(t, int64(5), i)
}

func TestFromBigIntNormalizes(t *testing.T) {
	v := FromBigInt(big.NewInt(7))
	_, isSmall := v.data.(int64)
	assert.True(t, isSmall)
}

func TestFloatToString(t *testing.T) {
	tests := []struct {
		val  Value
		want string
	}{
		{FromFloat(42.4242), "42.4242"},
		{FromFloat(42.0), "42.0"},
		{FromFloat(-0.5), "-0.5"},
		{FromFloat(math.Inf(1)), "inf"},
		{FromFloat(math.Inf(-1)), "-inf"},
		{FromFloat(math.NaN()), "NaN"},
		{FromFloat(float64(float32(1.5))), "1.5"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.val.String())
	}
}

func TestTruthiness(t *testing.T) {
	tests := []struct {
		val  Value
		want bool
	}{
		{Undefined(), false},
		{None(), false},
		{False(), false},
		{FromInt(0), false},
		{FromFloat(0), false},
		{FromString(""), false},
		{FromSlice(nil), false},
		{FromMap(nil), false},
		{True(), true},
		{FromInt(-1), true},
		{FromUint(math.MaxUint64), true},
		{FromString("0"), true},
		{FromSlice([]Value{None()}), true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.val.IsTrue(), "truthiness of %s", tt.val.Repr())
	}
}

func TestMapIterationIsSorted(t *testing.T) {
	m := FromMap(map[string]Value{
		"b": FromInt(2),
		"a": FromInt(1),
		"c": FromInt(3),
	})
	items, ok := m.Iter()
	require.True(t, ok)
	var keys []string
	for _, item := range items {
		keys = append(keys, item.String())
	}
	assert.Equal(t, []string{"a", "b", "c"}, keys)
	assert.Equal(t, `{"a": 1, "b": 2, "c": 3}`, m.String())
}

func TestDeepCloneIsIndependent(t *testing.T) {
	inner := map[string]Value{"x": FromInt(1)}
	orig := FromMap(map[string]Value{"inner": FromMap(inner)})
	clone := orig.DeepClone()

	inner["x"] = FromInt(2)

	x, _ := clone.GetAttr("inner").GetAttr("x").AsInt()
	assert.Equal(t, int64(1), x)
}

func TestMergeMaps(t *testing.T) {
	merged := MergeMaps(
		FromMap(map[string]Value{"a": FromInt(1), "b": FromInt(1)}),
		FromMap(map[string]Value{"b": FromInt(2)}),
	)
	assert.Equal(t, []string{"a", "b"}, merged.Keys())
	b, _ := merged.GetAttr("b").AsInt()
	assert.Equal(t, int64(2), b)
	assert.True(t, merged.GetAttr("missing").IsUndefined())
}

func TestUndefinedBehaviorPolicies(t *testing.T) {
	assert.True(t, UndefinedLenient.AllowsPrint())
	assert.True(t, UndefinedChainable.AllowsChaining())
	assert.False(t, UndefinedLenient.AllowsChaining())
	assert.False(t, UndefinedSemiStrict.AllowsIteration())
	assert.True(t, UndefinedSemiStrict.AllowsTruthiness())
	assert.False(t, UndefinedStrict.AllowsTruthiness())
	assert.Equal(t, "semi-strict", UndefinedSemiStrict.String())
}

type audit struct {
	Created string `json:"created"`
	Name    string `json:"name"`
}

type account struct {
	audit
	*Owner
	Name     string   `json:"name"`
	Tags     []string `json:"tags,omitempty"`
	Password string   `json:"-"`
	Plan     string
	internal int
}

type Owner struct {
	Email string
	Plan  string
}

func TestFromAnyStructs(t *testing.T) {
	acct := account{
		audit:    audit{Created: "today", Name: "hidden"},
		Owner:    &Owner{Email: "ann@example.com", Plan: "free"},
		Name:     "ann",
		Tags:     []string{"a"},
		Password: "secret",
		Plan:     "pro",
		internal: 1,
	}

	got, ok := FromAny(acct).ToNative()
	require.True(t, ok)
	assert.Equal(t, map[string]any{
		"name":    "ann",
		"tags":    []any{"a"},
		"Plan":    "pro",
		"Email":   "ann@example.com",
		"created": "today",
	}, got)

	acct.Owner = nil
	got, ok = FromAny(&acct).ToNative()
	require.True(t, ok)
	assert.NotContains(t, got, "Email")
}

func TestFromAnyNonStringKeys(t *testing.T) {
	got, ok := FromAny(map[int]string{1: "one", 20: "twenty"}).ToNative()
	require.True(t, ok)
	assert.Equal(t, map[string]any{"1": "one", "20": "twenty"}, got)

	assert.Equal(t, "one", FromAny(map[int]string{1: "one"}).GetAttr("1").String())
}
