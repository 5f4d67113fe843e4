// Package value provides the dynamic value type used by the template engine.
//
// Templates work with values of different kinds (strings, numbers, lists,
// maps, callables) without compile-time type information. A Value wraps one
// of those and provides kind inspection, conversion and the operators the
// template language needs.
//
//	ctx := value.FromMap(map[string]value.Value{
//	    "name":  value.FromString("World"),
//	    "count": value.FromInt(42),
//	})
//
// Integers are kept exact: values that do not fit an int64 (for example a
// uint64 above math.MaxInt64) are stored as big integers and take part in
// arithmetic and comparisons without losing precision.
package value

import (
	"fmt"
	"math"
	"math/big"
	"sort"
	"strconv"
	"strings"
)

// ValueKind describes the type of a Value.
type ValueKind int

const (
	// KindUndefined is a missing value. How it behaves when printed,
	// iterated or tested depends on the UndefinedBehavior in effect.
	KindUndefined ValueKind = iota
	// KindNone is the explicit null value.
	KindNone
	KindBool
	// KindNumber covers integers (of any size) and floats.
	KindNumber
	// KindString covers both plain and safe (pre-escaped) strings.
	KindString
	KindBytes
	KindSeq
	KindMap
	KindCallable
	// KindPlain is an object exposing attributes only.
	KindPlain
)

var kindNames = [...]string{
	KindUndefined: "undefined",
	KindNone:      "none",
	KindBool:      "bool",
	KindNumber:    "number",
	KindString:    "string",
	KindBytes:     "bytes",
	KindSeq:       "sequence",
	KindMap:       "map",
	KindCallable:  "callable",
	KindPlain:     "plain object",
}

func (k ValueKind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Value is a dynamically typed template value.
//
// Primitive values are immutable. Sequences and maps share their backing
// storage; use DeepClone to obtain an independent copy.
type Value struct {
	data any
}

type undefinedType struct{}
type noneType struct{}

// safeString is a string that must not be escaped again.
type safeString string

// bigInt holds integers outside the int64 range. Values that fit an int64
// are never stored as bigInt.
type bigInt struct {
	*big.Int
}

// Undefined returns the undefined value.
func Undefined() Value {
	return Value{data: undefinedType{}}
}

// None returns the none value.
func None() Value {
	return Value{data: noneType{}}
}

// True returns the boolean true value.
func True() Value {
	return Value{data: true}
}

// False returns the boolean false value.
func False() Value {
	return Value{data: false}
}

// FromBool creates a Value from a boolean.
func FromBool(v bool) Value {
	return Value{data: v}
}

// FromInt creates a Value from an int64.
func FromInt(v int64) Value {
	return Value{data: v}
}

// FromUint creates a Value from a uint64. Values above math.MaxInt64 are
// stored as big integers.
func FromUint(v uint64) Value {
	if v <= math.MaxInt64 {
		return Value{data: int64(v)}
	}
	return Value{data: bigInt{new(big.Int).SetUint64(v)}}
}

// FromBigInt creates a Value from a big integer. The integer is copied and
// normalized to an int64 when it fits.
func FromBigInt(v *big.Int) Value {
	if v.IsInt64() {
		return Value{data: v.Int64()}
	}
	return Value{data: bigInt{new(big.Int).Set(v)}}
}

// FromFloat creates a Value from a float64.
func FromFloat(v float64) Value {
	return Value{data: v}
}

// FromString creates a Value from a string. It is escaped on output when
// auto escaping is active.
func FromString(v string) Value {
	return Value{data: v}
}

// FromSafeString creates a Value from a string that is already escaped.
func FromSafeString(v string) Value {
	return Value{data: safeString(v)}
}

// FromBytes creates a Value from a byte slice.
func FromBytes(v []byte) Value {
	return Value{data: v}
}

// FromSlice creates a sequence Value.
func FromSlice(v []Value) Value {
	if v == nil {
		v = []Value{}
	}
	return Value{data: v}
}

// FromMap creates a map Value.
func FromMap(v map[string]Value) Value {
	if v == nil {
		v = map[string]Value{}
	}
	return Value{data: v}
}

// FromCallable creates a Value that can be invoked from templates.
func FromCallable(c Callable) Value {
	return Value{data: c}
}

// FromObject creates a Value from a custom object.
func FromObject(o Object) Value {
	return Value{data: o}
}

// Kind returns the kind of the value.
func (v Value) Kind() ValueKind {
	switch v.data.(type) {
	case nil, undefinedType:
		return KindUndefined
	case noneType:
		return KindNone
	case bool:
		return KindBool
	case int64, bigInt, float64:
		return KindNumber
	case string, safeString:
		return KindString
	case []byte:
		return KindBytes
	case []Value:
		return KindSeq
	case map[string]Value:
		return KindMap
	case Callable:
		return KindCallable
	case MapObject:
		return KindMap
	case SeqObject:
		return KindSeq
	default:
		return KindPlain
	}
}

// IsUndefined reports whether the value is undefined. The zero Value is
// undefined.
func (v Value) IsUndefined() bool {
	switch v.data.(type) {
	case nil, undefinedType:
		return true
	}
	return false
}

// IsNone reports whether the value is none.
func (v Value) IsNone() bool {
	_, ok := v.data.(noneType)
	return ok
}

// IsSafe reports whether the value is a safe string.
func (v Value) IsSafe() bool {
	_, ok := v.data.(safeString)
	return ok
}

// IsInteger reports whether the value is stored as an integer (of any size).
// This distinguishes 42 from 42.0.
func (v Value) IsInteger() bool {
	switch v.data.(type) {
	case int64, bigInt:
		return true
	}
	return false
}

// IsFloat reports whether the value is stored as a float.
func (v Value) IsFloat() bool {
	_, ok := v.data.(float64)
	return ok
}

// IsCallable reports whether the value can be called.
func (v Value) IsCallable() bool {
	_, ok := v.data.(Callable)
	return ok
}

// IsTrue returns the truthiness of the value.
func (v Value) IsTrue() bool {
	switch d := v.data.(type) {
	case nil, undefinedType, noneType:
		return false
	case bool:
		return d
	case int64:
		return d != 0
	case bigInt:
		return d.Sign() != 0
	case float64:
		return d != 0 && !math.IsNaN(d)
	case string:
		return d != ""
	case safeString:
		return d != ""
	case []byte:
		return len(d) > 0
	case []Value:
		return len(d) > 0
	case map[string]Value:
		return len(d) > 0
	case MapObject:
		return len(d.Keys()) > 0
	case SeqObject:
		return len(d.Items()) > 0
	default:
		return true
	}
}

// AsString returns the string if the value is one.
func (v Value) AsString() (string, bool) {
	switch d := v.data.(type) {
	case string:
		return d, true
	case safeString:
		return string(d), true
	}
	return "", false
}

// AsInt returns the value as an int64. Floats without a fractional part
// convert; big integers do not.
func (v Value) AsInt() (int64, bool) {
	switch d := v.data.(type) {
	case int64:
		return d, true
	case float64:
		if d == math.Trunc(d) && d >= math.MinInt64 && d < math.MaxInt64 {
			return int64(d), true
		}
	}
	return 0, false
}

// AsBigInt returns integer values as a big integer.
func (v Value) AsBigInt() (*big.Int, bool) {
	switch d := v.data.(type) {
	case int64:
		return big.NewInt(d), true
	case bigInt:
		return new(big.Int).Set(d.Int), true
	}
	return nil, false
}

// AsFloat returns numeric values as a float64.
func (v Value) AsFloat() (float64, bool) {
	switch d := v.data.(type) {
	case int64:
		return float64(d), true
	case bigInt:
		f, _ := new(big.Float).SetInt(d.Int).Float64()
		return f, true
	case float64:
		return d, true
	}
	return 0, false
}

// AsBool returns the boolean if the value is one.
func (v Value) AsBool() (bool, bool) {
	b, ok := v.data.(bool)
	return b, ok
}

// AsSlice returns the items of a sequence.
func (v Value) AsSlice() ([]Value, bool) {
	switch d := v.data.(type) {
	case []Value:
		return d, true
	case SeqObject:
		return d.Items(), true
	}
	return nil, false
}

// AsMap returns the entries of a map. Map objects are projected into a
// fresh map.
func (v Value) AsMap() (map[string]Value, bool) {
	switch d := v.data.(type) {
	case map[string]Value:
		return d, true
	case MapObject:
		keys := d.Keys()
		m := make(map[string]Value, len(keys))
		for _, k := range keys {
			m[k] = d.GetAttr(k)
		}
		return m, true
	}
	return nil, false
}

// AsCallable returns the Callable if the value wraps one.
func (v Value) AsCallable() (Callable, bool) {
	c, ok := v.data.(Callable)
	return c, ok
}

// AsObject returns the Object if the value wraps one.
func (v Value) AsObject() (Object, bool) {
	o, ok := v.data.(Object)
	return o, ok
}

// AsMutableObject returns the MutableObject if the value wraps one.
func (v Value) AsMutableObject() (MutableObject, bool) {
	o, ok := v.data.(MutableObject)
	return o, ok
}

// Len returns the length of strings, bytes, sequences and maps. String
// length is counted in characters.
func (v Value) Len() (int, bool) {
	switch d := v.data.(type) {
	case string:
		return len([]rune(d)), true
	case safeString:
		return len([]rune(string(d))), true
	case []byte:
		return len(d), true
	case []Value:
		return len(d), true
	case map[string]Value:
		return len(d), true
	case MapObject:
		return len(d.Keys()), true
	case SeqObject:
		return len(d.Items()), true
	}
	return 0, false
}

// GetAttr looks up an attribute. Missing attributes are undefined.
func (v Value) GetAttr(name string) Value {
	switch d := v.data.(type) {
	case map[string]Value:
		if val, ok := d[name]; ok {
			return val
		}
	case Object:
		return d.GetAttr(name)
	}
	return Undefined()
}

// GetItem looks up an item by key or integer index. Negative indexes count
// from the end. Missing items are undefined.
func (v Value) GetItem(key Value) Value {
	switch d := v.data.(type) {
	case []Value:
		return indexSeq(d, key)
	case SeqObject:
		return indexSeq(d.Items(), key)
	case map[string]Value:
		if s, ok := mapKey(key); ok {
			if val, exists := d[s]; exists {
				return val
			}
		}
	case string:
		return indexRunes([]rune(d), key)
	case safeString:
		return indexRunes([]rune(string(d)), key)
	case Object:
		if s, ok := key.AsString(); ok {
			return d.GetAttr(s)
		}
	}
	return Undefined()
}

func indexSeq(items []Value, key Value) Value {
	idx, ok := key.AsInt()
	if !ok {
		return Undefined()
	}
	if idx < 0 {
		idx += int64(len(items))
	}
	if idx >= 0 && idx < int64(len(items)) {
		return items[idx]
	}
	return Undefined()
}

func indexRunes(runes []rune, key Value) Value {
	idx, ok := key.AsInt()
	if !ok {
		return Undefined()
	}
	if idx < 0 {
		idx += int64(len(runes))
	}
	if idx >= 0 && idx < int64(len(runes)) {
		return FromString(string(runes[idx]))
	}
	return Undefined()
}

// mapKey converts a primitive lookup key into the string a map is keyed by.
func mapKey(key Value) (string, bool) {
	switch d := key.data.(type) {
	case string:
		return d, true
	case safeString:
		return string(d), true
	case int64, bigInt, bool:
		return key.String(), true
	case float64:
		if i, ok := key.AsInt(); ok {
			return strconv.FormatInt(i, 10), true
		}
		return key.String(), true
	}
	return "", false
}

// MapKey returns the map key a primitive value addresses. It fails for
// values that cannot be used as keys.
func MapKey(key Value) (string, bool) {
	return mapKey(key)
}

// Iter returns the items produced by iterating the value. Maps iterate
// their keys in sorted order and strings their characters. The second
// result is false for values that are not iterable.
func (v Value) Iter() ([]Value, bool) {
	switch d := v.data.(type) {
	case []Value:
		return d, true
	case SeqObject:
		return d.Items(), true
	case map[string]Value:
		keys := sortedKeys(d)
		out := make([]Value, len(keys))
		for i, k := range keys {
			out[i] = FromString(k)
		}
		return out, true
	case MapObject:
		keys := d.Keys()
		out := make([]Value, len(keys))
		for i, k := range keys {
			out[i] = FromString(k)
		}
		return out, true
	case string:
		return runeValues(d), true
	case safeString:
		return runeValues(string(d)), true
	}
	return nil, false
}

func runeValues(s string) []Value {
	runes := []rune(s)
	out := make([]Value, len(runes))
	for i, r := range runes {
		out[i] = FromString(string(r))
	}
	return out
}

func sortedKeys(m map[string]Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DeepClone returns a copy that shares no mutable storage with v.
// Callables and objects are shared.
func (v Value) DeepClone() Value {
	switch d := v.data.(type) {
	case []Value:
		out := make([]Value, len(d))
		for i, item := range d {
			out[i] = item.DeepClone()
		}
		return Value{data: out}
	case map[string]Value:
		out := make(map[string]Value, len(d))
		for k, item := range d {
			out[k] = item.DeepClone()
		}
		return Value{data: out}
	case []byte:
		return Value{data: append([]byte(nil), d...)}
	case bigInt:
		return Value{data: bigInt{new(big.Int).Set(d.Int)}}
	}
	return v
}

// String renders the value the way it is printed into template output.
func (v Value) String() string {
	switch d := v.data.(type) {
	case nil, undefinedType:
		return ""
	case noneType:
		return "none"
	case bool:
		return strconv.FormatBool(d)
	case int64:
		return strconv.FormatInt(d, 10)
	case bigInt:
		return d.String()
	case float64:
		return formatFloat(d)
	case string:
		return d
	case safeString:
		return string(d)
	case []byte:
		return string(d)
	case []Value:
		return formatSeq(d)
	case map[string]Value:
		return formatMap(d)
	case fmt.Stringer:
		return d.String()
	case MapObject, SeqObject:
		return v.Repr()
	default:
		return fmt.Sprintf("%v", d)
	}
}

// Repr returns a debug representation of the value.
func (v Value) Repr() string {
	switch d := v.data.(type) {
	case nil, undefinedType:
		return "undefined"
	case string:
		return strconv.Quote(d)
	case safeString:
		return strconv.Quote(string(d))
	case []byte:
		return "b" + strconv.Quote(string(d))
	case SeqObject:
		return formatSeq(d.Items())
	case MapObject:
		m, _ := v.AsMap()
		return formatMap(m)
	}
	return v.String()
}

func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "NaN"
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

func formatSeq(items []Value) string {
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = item.Repr()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatMap(m map[string]Value) string {
	keys := sortedKeys(m)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = strconv.Quote(k) + ": " + m[k].Repr()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
