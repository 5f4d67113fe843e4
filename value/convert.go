package value

import (
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"sort"
	"strings"
)

// FromAny converts a plain Go value into a Value. It understands the shapes
// produced by JSON decoders (map[string]any, []any, float64, int64,
// json.Number) as well as arbitrary slices and maps, structs and the sized
// integer types. Map keys that are not strings are formatted with %v.
// Unknown types are wrapped as plain objects when they implement Object and
// stringified otherwise.
func FromAny(v any) Value {
	switch d := v.(type) {
	case nil:
		return None()
	case Value:
		return d
	case bool:
		return FromBool(d)
	case string:
		return FromString(d)
	case []byte:
		return FromBytes(d)
	case int:
		return FromInt(int64(d))
	case int8:
		return FromInt(int64(d))
	case int16:
		return FromInt(int64(d))
	case int32:
		return FromInt(int64(d))
	case int64:
		return FromInt(d)
	case uint:
		return FromUint(uint64(d))
	case uint8:
		return FromInt(int64(d))
	case uint16:
		return FromInt(int64(d))
	case uint32:
		return FromInt(int64(d))
	case uint64:
		return FromUint(d)
	case float32:
		return FromFloat(float64(d))
	case float64:
		return FromFloat(d)
	case *big.Int:
		if d == nil {
			return None()
		}
		return FromBigInt(d)
	case *big.Float:
		if d == nil {
			return None()
		}
		if d.IsInt() {
			i, _ := d.Int(nil)
			return FromBigInt(i)
		}
		f, _ := d.Float64()
		return FromFloat(f)
	case json.Number:
		if i, ok := new(big.Int).SetString(string(d), 10); ok {
			return FromBigInt(i)
		}
		f, err := d.Float64()
		if err != nil {
			return FromString(string(d))
		}
		return FromFloat(f)
	case []any:
		items := make([]Value, len(d))
		for i, item := range d {
			items[i] = FromAny(item)
		}
		return FromSlice(items)
	case []Value:
		return FromSlice(d)
	case map[string]any:
		m := make(map[string]Value, len(d))
		for k, item := range d {
			m[k] = FromAny(item)
		}
		return FromMap(m)
	case map[string]Value:
		return FromMap(d)
	case Callable:
		return FromCallable(d)
	case Object:
		return FromObject(d)
	}
	return fromReflect(reflect.ValueOf(v))
}

func fromReflect(rv reflect.Value) Value {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return None()
		}
		return FromAny(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		items := make([]Value, rv.Len())
		for i := range items {
			items[i] = FromAny(rv.Index(i).Interface())
		}
		return FromSlice(items)
	case reflect.Map:
		m := make(map[string]Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[reflectKey(iter.Key())] = FromAny(iter.Value().Interface())
		}
		return FromMap(m)
	case reflect.Struct:
		return FromMap(structFields(rv))
	case reflect.String:
		return FromString(rv.String())
	case reflect.Bool:
		return FromBool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return FromInt(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return FromUint(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return FromFloat(rv.Float())
	}
	return FromString(rv.String())
}

func reflectKey(k reflect.Value) string {
	if k.Kind() == reflect.String {
		return k.String()
	}
	return fmt.Sprintf("%v", k.Interface())
}

// structFields maps the exported fields of a struct by their json name,
// skipping fields tagged "-". Fields of embedded structs are promoted unless
// the outer struct has a field of the same name.
func structFields(rv reflect.Value) map[string]Value {
	t := rv.Type()
	own := make(map[string]Value, t.NumField())
	var promoted []map[string]Value
	for i := range t.NumField() {
		field, fv := t.Field(i), rv.Field(i)
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}
		// Exported fields of an unexported embedded struct are still readable.
		if field.Anonymous && name == "" {
			if fv.Kind() == reflect.Pointer {
				if fv.IsNil() {
					continue
				}
				fv = fv.Elem()
			}
			if fv.Kind() == reflect.Struct {
				promoted = append(promoted, structFields(fv))
				continue
			}
		}
		if !fv.CanInterface() {
			continue
		}
		if name == "" {
			name = field.Name
		}
		own[name] = FromAny(fv.Interface())
	}
	for _, fields := range promoted {
		for name, v := range fields {
			if _, shadowed := own[name]; !shadowed {
				own[name] = v
			}
		}
	}
	return own
}

// ToNative converts a value into plain Go data: nil, bool, int64, uint64
// (for integers above math.MaxInt64 that fit), *big.Int, float64, string,
// []any and map[string]any. Undefined converts to nil. Callables and plain
// objects cannot be converted and report false.
func (v Value) ToNative() (any, bool) {
	switch d := v.data.(type) {
	case nil, undefinedType, noneType:
		return nil, true
	case bool:
		return d, true
	case int64:
		return d, true
	case bigInt:
		if d.IsUint64() {
			return d.Uint64(), true
		}
		return new(big.Int).Set(d.Int), true
	case float64:
		return d, true
	case string:
		return d, true
	case safeString:
		return string(d), true
	case []byte:
		return string(d), true
	}

	if items, ok := v.AsSlice(); ok {
		out := make([]any, len(items))
		for i, item := range items {
			n, ok := item.ToNative()
			if !ok {
				return nil, false
			}
			out[i] = n
		}
		return out, true
	}
	if m, ok := v.AsMap(); ok {
		out := make(map[string]any, len(m))
		for k, item := range m {
			n, ok := item.ToNative()
			if !ok {
				return nil, false
			}
			out[k] = n
		}
		return out, true
	}
	return nil, false
}

// Keys returns the keys of a map value in iteration order.
func (v Value) Keys() []string {
	switch d := v.data.(type) {
	case map[string]Value:
		return sortedKeys(d)
	case MapObject:
		keys := append([]string(nil), d.Keys()...)
		return keys
	}
	return nil
}

// SortValues sorts values in place using Compare. It reports false if some
// pair of values cannot be ordered.
func SortValues(items []Value, reverse bool) bool {
	ok := true
	sort.SliceStable(items, func(i, j int) bool {
		c, ordered := items[i].Compare(items[j])
		if !ordered {
			ok = false
		}
		if reverse {
			return c > 0
		}
		return c < 0
	})
	return ok
}
