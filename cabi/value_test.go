package cabi

import (
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func native(t *testing.T, v *Value) any {
	t.Helper()
	n, ok := v.ToEngine().ToNative()
	require.True(t, ok)
	return n
}

func TestValueShapes(t *testing.T) {
	m := NewMap()
	assert.Equal(t, ShapeMap, m.Shape())
	assert.Equal(t, 0, m.Len())

	l := NewList()
	assert.Equal(t, ShapeList, l.Shape())
	assert.Equal(t, "list", l.Shape().String())
}

func TestTypedSetters(t *testing.T) {
	v := NewMap()
	v.SetString("s", "héllo")
	v.SetInt8("i8", math.MinInt8)
	v.SetInt16("i16", math.MaxInt16)
	v.SetInt32("i32", -7)
	v.SetInt64("i64", math.MinInt64)
	v.SetUint8("u8", math.MaxUint8)
	v.SetUint16("u16", math.MaxUint16)
	v.SetUint32("u32", math.MaxUint32)
	v.SetUint64("u64", 42)
	v.SetFloat32("f32", 1.5)
	v.SetFloat64("f64", 0.25)
	v.SetBool("b", true)

	want := map[string]any{
		"s":   "héllo",
		"i8":  int64(math.MinInt8),
		"i16": int64(math.MaxInt16),
		"i32": int64(-7),
		"i64": int64(math.MinInt64),
		"u8":  int64(math.MaxUint8),
		"u16": int64(math.MaxUint16),
		"u32": int64(math.MaxUint32),
		"u64": int64(42),
		"f32": 1.5,
		"f64": 0.25,
		"b":   true,
	}
	if diff := cmp.Diff(want, native(t, v)); diff != "" {
		t.Errorf("converted map mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 12, v.Len())
}

func TestSetReplacesExistingKey(t *testing.T) {
	v := NewMap()
	v.SetInt64("a", 1)
	v.SetString("b", "x")
	v.SetInt64("a", 2)

	assert.Equal(t, 2, v.Len())
	assert.Equal(t, []string{"a", "b"}, v.Keys())
	if diff := cmp.Diff(map[string]any{"a": int64(2), "b": "x"}, native(t, v)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestUint64AboveInt64(t *testing.T) {
	v := NewMap()
	v.SetUint64("big", math.MaxUint64)
	l := NewList()
	l.AppendUint64(math.MaxUint64)

	assert.Equal(t, map[string]any{"big": uint64(math.MaxUint64)}, native(t, v))
	assert.Equal(t, []any{uint64(math.MaxUint64)}, native(t, l))
	assert.Equal(t, "18446744073709551615", v.ToEngine().GetAttr("big").String())
}

func TestFloat32WidensExactly(t *testing.T) {
	v := NewMap()
	v.SetFloat32("x", 0.1)
	assert.Equal(t, map[string]any{"x": float64(float32(0.1))}, native(t, v))
}

func TestListSetters(t *testing.T) {
	v := NewMap()
	SetList(v, "strings", []string{"a", "b"})
	SetList(v, "ints", []int32{1, -2})
	SetList(v, "uints", []uint64{1, math.MaxUint64})
	SetList(v, "floats", []float32{0.5})
	SetList(v, "bools", []bool{true, false})
	SetList(v, "empty", []int64{})

	want := map[string]any{
		"strings": []any{"a", "b"},
		"ints":    []any{int64(1), int64(-2)},
		"uints":   []any{int64(1), uint64(math.MaxUint64)},
		"floats":  []any{0.5},
		"bools":   []any{true, false},
		"empty":   []any{},
	}
	if diff := cmp.Diff(want, native(t, v)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestAppendPreservesOrder(t *testing.T) {
	l := NewList()
	l.AppendString("a")
	l.AppendInt8(1)
	l.AppendInt16(2)
	l.AppendInt32(3)
	l.AppendInt64(4)
	l.AppendUint8(5)
	l.AppendUint16(6)
	l.AppendUint32(7)
	l.AppendFloat32(0.5)
	l.AppendFloat64(1.25)
	l.AppendBool(false)

	want := []any{"a", int64(1), int64(2), int64(3), int64(4), int64(5), int64(6), int64(7), 0.5, 1.25, false}
	if diff := cmp.Diff(want, native(t, l)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestNestedValuesAreCopied(t *testing.T) {
	inner := NewMap()
	inner.SetString("name", "before")

	outer := NewMap()
	outer.SetValue("user", inner)
	list := NewList()
	list.AppendValue(inner)
	outer.SetListValue("users", []*Value{inner, inner})

	inner.SetString("name", "after")
	inner.SetBool("extra", true)

	user := map[string]any{"name": "before"}
	if diff := cmp.Diff(map[string]any{"user": user, "users": []any{user, user}}, native(t, outer)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	assert.Equal(t, []any{user}, native(t, list))
}

func TestToEngineIsIndependent(t *testing.T) {
	v := NewMap()
	v.SetString("a", "x")
	first := v.ToEngine()
	v.SetString("a", "y")
	assert.Equal(t, "x", first.GetAttr("a").String())
	assert.Equal(t, "y", v.ToEngine().GetAttr("a").String())
}

func TestSetJSON(t *testing.T) {
	v := NewMap()
	require.Nil(t, v.SetJSON("doc", []byte(`{"a": [1, 2.5, "x", null, true], "b": {"c": 9007199254740993}}`)))

	want := map[string]any{
		"doc": map[string]any{
			"a": []any{int64(1), 2.5, "x", nil, true},
			"b": map[string]any{"c": int64(9007199254740993)},
		},
	}
	if diff := cmp.Diff(want, native(t, v)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestMalformedJSONLeavesContainerUnchanged(t *testing.T) {
	v := NewMap()
	v.SetInt64("keep", 1)

	err := v.SetJSON("doc", []byte(`{"a": `))
	require.NotNil(t, err)
	assert.Equal(t, CannotDeserialize, err.Code)
	assert.Equal(t, 1, v.Len())

	l := NewList()
	err = l.AppendJSON(nil)
	require.NotNil(t, err)
	assert.Equal(t, CannotDeserialize, err.Code)
	assert.Equal(t, 0, l.Len())

	require.Nil(t, l.AppendJSON([]byte(`"ok"`)))
	assert.Equal(t, []any{"ok"}, native(t, l))
}

func TestJSONMustBeValidText(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"raw invalid bytes", "\"\xff\xfe\""},
		{"lone low surrogate", `"\udc00x"`},
		{"lone high surrogate", `"\ud800"`},
		{"high surrogate then text", `"\ud800abc"`},
		{"two high surrogates", `"\ud800\ud800"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewMap()
			err := v.SetJSON("k", []byte(tt.data))
			require.NotNil(t, err)
			assert.Equal(t, CannotDeserialize, err.Code)
			assert.True(t, strings.HasPrefix(err.Message, "cannot deserialize value: "), err.Message)
			assert.Equal(t, 0, v.Len())

			l := NewList()
			err = l.AppendJSON([]byte(tt.data))
			require.NotNil(t, err)
			assert.Equal(t, CannotDeserialize, err.Code)
			assert.Equal(t, 0, l.Len())
		})
	}

	v := NewMap()
	require.Nil(t, v.SetJSON("pair", []byte(`"\ud83d\ude00 \\ud800 \u00e9"`)))
	assert.Equal(t, map[string]any{"pair": "\U0001F600 \\ud800 \u00e9"}, native(t, v))
}

func TestContractViolations(t *testing.T) {
	tests := []struct {
		name string
		fn   func()
	}{
		{"empty key", func() { NewMap().SetInt64("", 1) }},
		{"invalid key", func() { NewMap().SetInt64("\xff", 1) }},
		{"invalid string", func() { NewMap().SetString("k", "\xfe") }},
		{"invalid list string", func() { SetList(NewMap(), "k", []string{"ok", "\xfe"}) }},
		{"set on list", func() { NewList().SetBool("k", true) }},
		{"append to map", func() { NewMap().AppendBool(true) }},
		{"null container", func() { var v *Value; v.SetBool("k", true) }},
		{"null nested", func() { NewMap().SetValue("k", nil) }},
		{"null list element", func() { NewMap().SetListValue("k", []*Value{nil}) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				r := recover()
				require.NotNil(t, r, "expected a panic")
				_, ok := r.(ContractViolation)
				assert.True(t, ok, "panic value %T is not a ContractViolation", r)
			}()
			tt.fn()
		})
	}
}
