package cabi

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/ohler55/ojg/oj"

	"github.com/mitsuhiko/minijinja/minijinja-cabi-go/value"
)

var (
	errEmptyDocument = errors.New("empty JSON document")
	errNotUTF8       = errors.New("JSON document is not valid UTF-8")
)

// Shape is fixed when a container is created.
type Shape uint8

const (
	ShapeMap Shape = iota
	ShapeList
)

func (s Shape) String() string {
	if s == ShapeList {
		return "list"
	}
	return "map"
}

// Value is the mutable container callers fill before a render. Entries are
// stored as engine values so conversion at render time is a plain copy.
//
// A Value is not safe for concurrent use.
type Value struct {
	shape Shape
	keys  []string // map insertion order, reported by Keys
	m     map[string]value.Value
	items []value.Value
}

// NewMap returns an empty map-shaped container.
func NewMap() *Value {
	return &Value{shape: ShapeMap, m: make(map[string]value.Value)}
}

// NewList returns an empty list-shaped container.
func NewList() *Value {
	return &Value{shape: ShapeList}
}

// Shape reports whether v is a map or a list.
func (v *Value) Shape() Shape { return v.shape }

// Len returns the number of entries.
func (v *Value) Len() int {
	if v.shape == ShapeList {
		return len(v.items)
	}
	return len(v.m)
}

// Keys returns the map keys in insertion order; it is nil for lists.
func (v *Value) Keys() []string {
	return append([]string(nil), v.keys...)
}

func (v *Value) set(op, key string, val value.Value) {
	if v == nil {
		Violate(op, "null container")
	}
	if v.shape != ShapeMap {
		Violate(op, "keyed set on a list")
	}
	if key == "" {
		Violate(op, "empty key")
	}
	if !utf8.ValidString(key) {
		Violate(op, "key is not valid UTF-8")
	}
	if _, exists := v.m[key]; !exists {
		v.keys = append(v.keys, key)
	}
	v.m[key] = val
}

func (v *Value) push(op string, val value.Value) {
	if v == nil {
		Violate(op, "null container")
	}
	if v.shape != ShapeList {
		Violate(op, "append to a map")
	}
	v.items = append(v.items, val)
}

func checkString(op, s string) value.Value {
	if !utf8.ValidString(s) {
		Violate(op, "string payload is not valid UTF-8")
	}
	return value.FromString(s)
}

func fromUint64(u uint64) value.Value {
	if u > math.MaxInt64 {
		return value.FromUint(u)
	}
	return value.FromInt(int64(u))
}

// Scalar lists the element types accepted by the list setters.
type Scalar interface {
	~string | ~bool |
		~int8 | ~int16 | ~int32 | ~int64 |
		~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

func scalar[T Scalar](op string, x T) value.Value {
	switch d := any(x).(type) {
	case string:
		return checkString(op, d)
	case bool:
		return value.FromBool(d)
	case int8:
		return value.FromInt(int64(d))
	case int16:
		return value.FromInt(int64(d))
	case int32:
		return value.FromInt(int64(d))
	case int64:
		return value.FromInt(d)
	case uint8:
		return value.FromInt(int64(d))
	case uint16:
		return value.FromInt(int64(d))
	case uint32:
		return value.FromInt(int64(d))
	case uint64:
		return fromUint64(d)
	case float32:
		return value.FromFloat(float64(d))
	case float64:
		return value.FromFloat(d)
	}
	// Named types built on the scalar kinds land here.
	return value.FromAny(x)
}

func (v *Value) SetString(key, s string) { v.set("set_string", key, checkString("set_string", s)) }
func (v *Value) SetInt8(key string, n int8) { v.set("set_int8", key, value.FromInt(int64(n))) }
func (v *Value) SetInt16(key string, n int16) { v.set("set_int16", key, value.FromInt(int64(n))) }
func (v *Value) SetInt32(key string, n int32) { v.set("set_int32", key, value.FromInt(int64(n))) }
func (v *Value) SetInt64(key string, n int64) { v.set("set_int", key, value.FromInt(n)) }
func (v *Value) SetUint8(key string, n uint8) { v.set("set_uint8", key, value.FromInt(int64(n))) }
func (v *Value) SetUint16(key string, n uint16) {
	v.set("set_uint16", key, value.FromInt(int64(n)))
}
func (v *Value) SetUint32(key string, n uint32) {
	v.set("set_uint32", key, value.FromInt(int64(n)))
}
func (v *Value) SetUint64(key string, n uint64) { v.set("set_uint", key, fromUint64(n)) }

// SetFloat32 widens f exactly; 1.5 stays 1.5 and 0.1 becomes the nearest
// float64 to the float32 0.1.
func (v *Value) SetFloat32(key string, f float32) {
	v.set("set_float32", key, value.FromFloat(float64(f)))
}
func (v *Value) SetFloat64(key string, f float64) { v.set("set_float", key, value.FromFloat(f)) }
func (v *Value) SetBool(key string, b bool) { v.set("set_bool", key, value.FromBool(b)) }

// SetValue stores a deep copy of src. Later changes to src are not visible
// through v.
func (v *Value) SetValue(key string, src *Value) {
	if src == nil {
		Violate("set_value", "null source container")
	}
	v.set("set_value", key, src.ToEngine())
}

// SetList stores items as a list under key.
func SetList[T Scalar](v *Value, key string, items []T) {
	list := make([]value.Value, len(items))
	for i, item := range items {
		list[i] = scalar("set_list", item)
	}
	v.set("set_list", key, value.FromSlice(list))
}

// SetListValue stores deep copies of srcs as a list under key.
func (v *Value) SetListValue(key string, srcs []*Value) {
	list := make([]value.Value, len(srcs))
	for i, src := range srcs {
		if src == nil {
			Violate("set_list_value", "null element %d", i)
		}
		list[i] = src.ToEngine()
	}
	v.set("set_list_value", key, value.FromSlice(list))
}

// SetJSON decodes data and stores the result under key. On malformed input
// the container is left unchanged.
func (v *Value) SetJSON(key string, data []byte) *Error {
	decoded, err := decodeDocument("value", data)
	if err != nil {
		return err
	}
	v.set("set_json", key, decoded)
	return nil
}

func (v *Value) AppendString(s string) { v.push("append_string", checkString("append_string", s)) }
func (v *Value) AppendInt8(n int8) { v.push("append_int8", value.FromInt(int64(n))) }
func (v *Value) AppendInt16(n int16) { v.push("append_int16", value.FromInt(int64(n))) }
func (v *Value) AppendInt32(n int32) { v.push("append_int32", value.FromInt(int64(n))) }
func (v *Value) AppendInt64(n int64) { v.push("append_int", value.FromInt(n)) }
func (v *Value) AppendUint8(n uint8) { v.push("append_uint8", value.FromInt(int64(n))) }
func (v *Value) AppendUint16(n uint16) { v.push("append_uint16", value.FromInt(int64(n))) }
func (v *Value) AppendUint32(n uint32) { v.push("append_uint32", value.FromInt(int64(n))) }
func (v *Value) AppendUint64(n uint64) { v.push("append_uint", fromUint64(n)) }
func (v *Value) AppendFloat32(f float32) { v.push("append_float32", value.FromFloat(float64(f))) }
func (v *Value) AppendFloat64(f float64) { v.push("append_float", value.FromFloat(f)) }
func (v *Value) AppendBool(b bool) { v.push("append_bool", value.FromBool(b)) }

// AppendValue appends a deep copy of src.
func (v *Value) AppendValue(src *Value) {
	if src == nil {
		Violate("append_value", "null source container")
	}
	v.push("append_value", src.ToEngine())
}

// AppendJSON decodes data and appends the result. On malformed input the
// container is left unchanged.
func (v *Value) AppendJSON(data []byte) *Error {
	decoded, err := decodeDocument("value", data)
	if err != nil {
		return err
	}
	v.push("append_json", decoded)
	return nil
}

// ToEngine converts the container into an engine value. The result shares no
// mutable state with v.
func (v *Value) ToEngine() value.Value {
	if v.shape == ShapeList {
		items := make([]value.Value, len(v.items))
		for i, item := range v.items {
			items[i] = item.DeepClone()
		}
		return value.FromSlice(items)
	}
	m := make(map[string]value.Value, len(v.m))
	for k, item := range v.m {
		m[k] = item.DeepClone()
	}
	return value.FromMap(m)
}

// decodeJSON parses a render context. Empty input is an empty map so that a
// missing context renders with no variables.
func decodeJSON(data []byte) (value.Value, *Error) {
	if len(data) == 0 {
		return value.FromMap(nil), nil
	}
	return decodeDocument("context", data)
}

// decodeDocument parses exactly one JSON document; empty input is malformed.
// Input that is not UTF-8 or that escapes a lone surrogate is rejected
// rather than decoded with replacement characters.
func decodeDocument(what string, data []byte) (value.Value, *Error) {
	fail := func(err error) (value.Value, *Error) {
		return value.Value{}, &Error{Code: CannotDeserialize, Message: "cannot deserialize " + what + ": " + err.Error()}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return fail(errEmptyDocument)
	}
	if !utf8.Valid(data) {
		return fail(errNotUTF8)
	}
	if err := checkEscapes(data); err != nil {
		return fail(err)
	}
	decoded, err := oj.Parse(data)
	if err != nil {
		return fail(err)
	}
	return value.FromAny(decoded), nil
}

// checkEscapes finds the first \u escape inside a JSON string that is half
// of a surrogate pair without its other half.
func checkEscapes(data []byte) error {
	inString := false
	for i := 0; i < len(data); i++ {
		switch c := data[i]; {
		case c == '"':
			inString = !inString
		case c == '\\' && inString:
			if i+1 < len(data) && data[i+1] == 'u' {
				hi, ok := hexRune(data, i+2)
				if ok && utf16.IsSurrogate(hi) {
					lo, paired := rune(0), false
					if hi < 0xDC00 && i+7 < len(data) && data[i+6] == '\\' && data[i+7] == 'u' {
						lo, paired = hexRune(data, i+8)
					}
					if !paired || utf16.DecodeRune(hi, lo) == utf8.RuneError {
						return fmt.Errorf("unpaired surrogate escape at offset %d", i)
					}
					i += 6
				}
			}
			i++
		}
	}
	return nil
}

func hexRune(data []byte, at int) (rune, bool) {
	if at+4 > len(data) {
		return 0, false
	}
	n, err := strconv.ParseUint(string(data[at:at+4]), 16, 32)
	if err != nil {
		return 0, false
	}
	return rune(n), true
}
