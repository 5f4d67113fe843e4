// Package minijinja is a Jinja2 compatible template engine.
//
// An Environment holds compiled templates together with the filters, tests
// and global functions they may use:
//
//	env := minijinja.NewEnvironment()
//	if err := env.AddTemplate("hello", "Hello {{ name }}!"); err != nil {
//	    return err
//	}
//	tmpl, _ := env.GetTemplate("hello")
//	out, err := tmpl.Render(map[string]any{"name": "World"})
//
// Templates support inheritance (extends, block, super), includes,
// imports, macros and call blocks. How undefined values behave is chosen
// with SetUndefinedBehavior; SetRecursionLimit bounds nesting and SetFuel
// bounds the work a single render may perform.
//
// Errors are *Error values carrying an ErrorKind and the template location:
//
//	var tmplErr *minijinja.Error
//	if errors.As(err, &tmplErr) {
//	    fmt.Println(tmplErr.Kind, tmplErr.Name, tmplErr.Span.StartLine)
//	}
//
// With SetDebug(true), errors also carry a source excerpt and the values of
// the variables the failing expression refers to; format them with %+v.
package minijinja

import (
	"github.com/mitsuhiko/minijinja/minijinja-cabi-go/value"
)

// Value is a dynamically typed value in the template engine.
type Value = value.Value

// ValueKind describes the type of a Value.
type ValueKind = value.ValueKind

// Common value kinds
const (
	KindUndefined = value.KindUndefined
	KindNone      = value.KindNone
	KindBool      = value.KindBool
	KindNumber    = value.KindNumber
	KindString    = value.KindString
	KindBytes     = value.KindBytes
	KindSeq       = value.KindSeq
	KindMap       = value.KindMap
)

// Value constructors
var (
	Undefined      = value.Undefined
	None           = value.None
	FromBool       = value.FromBool
	FromInt        = value.FromInt
	FromUint       = value.FromUint
	FromFloat      = value.FromFloat
	FromString     = value.FromString
	FromSafeString = value.FromSafeString
	FromBytes      = value.FromBytes
	FromSlice      = value.FromSlice
	FromMap        = value.FromMap
	FromAny        = value.FromAny
)
