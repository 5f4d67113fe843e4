package value

import (
	"maps"
	"slices"
)

// MergeMaps layers map-like values into one lazy map; later sources shadow
// earlier ones. Non-map objects add no keys but still answer lookups.
func MergeMaps(sources ...Value) Value {
	if len(sources) == 1 {
		return sources[0]
	}
	return FromObject(&layered{sources})
}

type layered struct{ sources []Value }

func (l *layered) Keys() []string {
	union := map[string]struct{}{}
	for _, src := range l.sources {
		for _, k := range src.Keys() {
			union[k] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(union))
}

func (l *layered) GetAttr(name string) Value {
	for _, src := range slices.Backward(l.sources) {
		if v := src.GetAttr(name); !v.IsUndefined() {
			return v
		}
	}
	return Undefined()
}
