package value

// State is the view of the render state handed to callables.
type State interface {
	// Name returns the name of the template being rendered.
	Name() string
	// Lookup resolves a variable in the current scope chain.
	Lookup(name string) Value
	// UndefinedBehavior returns the undefined policy of the render.
	UndefinedBehavior() UndefinedBehavior
}

// Callable is implemented by values that can be invoked from templates,
// such as macros and the objects returned by global functions:
//
//	{{ my_function(arg1, key=value) }}
type Callable interface {
	Call(state State, args []Value, kwargs map[string]Value) (Value, error)
}

// Object is a custom value with attribute access ({{ obj.name }}).
// Missing attributes return Undefined().
type Object interface {
	GetAttr(name string) Value
}

// MutableObject is an Object whose attributes can be assigned with
// {% set obj.attr = value %}. Namespaces are the main user.
type MutableObject interface {
	Object
	SetAttr(name string, val Value)
}

// MapObject is an Object that behaves like a map: it iterates its keys,
// has a length and serializes as a map.
type MapObject interface {
	Object
	Keys() []string
}

// SeqObject is an Object that behaves like a sequence while still exposing
// named attributes, for example the groups produced by the groupby filter.
type SeqObject interface {
	Object
	Items() []Value
}

// CallableFunc adapts a plain function to the Callable interface.
type CallableFunc func(state State, args []Value, kwargs map[string]Value) (Value, error)

// Call invokes f.
func (f CallableFunc) Call(state State, args []Value, kwargs map[string]Value) (Value, error) {
	return f(state, args, kwargs)
}
