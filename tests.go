package minijinja

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/mitsuhiko/minijinja/minijinja-cabi-go/value"
)

func registerDefaultTests(env *Environment) {
	for name, fn := range map[string]TestFunc{
		"defined":      TestDefined,
		"undefined":    TestUndefined,
		"none":         TestNone,
		"true":         TestTrue,
		"false":        TestFalse,
		"odd":          TestOdd,
		"even":         TestEven,
		"divisibleby":  TestDivisibleBy,
		"eq":           TestEq,
		"equalto":      TestEq,
		"==":           TestEq,
		"ne":           TestNe,
		"!=":           TestNe,
		"lt":           TestLt,
		"lessthan":     TestLt,
		"<":            TestLt,
		"le":           TestLe,
		"<=":           TestLe,
		"gt":           TestGt,
		"greaterthan":  TestGt,
		">":            TestGt,
		"ge":           TestGe,
		">=":           TestGe,
		"in":           TestIn,
		"string":       TestString,
		"number":       TestNumber,
		"integer":      TestInteger,
		"float":        TestFloat,
		"boolean":      TestBoolean,
		"sequence":     TestSequence,
		"mapping":      TestMapping,
		"iterable":     TestIterable,
		"startingwith": TestStartingWith,
		"endingwith":   TestEndingWith,
		"containing":   TestContaining,
		"safe":         TestSafe,
		"escaped":      TestSafe,
		"sameas":       TestSameAs,
		"lower":        TestLower,
		"upper":        TestUpper,
		"filter":       TestFilter,
		"test":         TestTest,
	} {
		env.AddTest(name, fn)
	}
}

func wantArgs(name string, args []value.Value, n int) error {
	if len(args) < n {
		return NewError(ErrMissingArgument, fmt.Sprintf("test %s is missing an argument", name))
	}
	if len(args) > n {
		return NewError(ErrTooManyArguments, fmt.Sprintf("test %s takes %d arguments, got %d", name, n, len(args)))
	}
	return nil
}

// TestDefined checks if a value is defined.
//
// Template usage:
//
//	{% if my_variable is defined %}
//	  {{ my_variable }}
//	{% endif %}
func TestDefined(_ *State, val value.Value, args []value.Value) (bool, error) {
	return !val.IsUndefined(), wantArgs("defined", args, 0)
}

// TestUndefined is the inverse of TestDefined.
func TestUndefined(_ *State, val value.Value, args []value.Value) (bool, error) {
	return val.IsUndefined(), wantArgs("undefined", args, 0)
}

// TestNone checks if a value is none.
func TestNone(_ *State, val value.Value, args []value.Value) (bool, error) {
	return val.IsNone(), wantArgs("none", args, 0)
}

// TestTrue checks if a value is the boolean true.
//
// This is a strict check for the boolean value, not truthiness:
//
//	{{ 1 is true }}
//	  -> false
func TestTrue(_ *State, val value.Value, args []value.Value) (bool, error) {
	b, ok := val.AsBool()
	return ok && b, wantArgs("true", args, 0)
}

// TestFalse checks if a value is the boolean false.
func TestFalse(_ *State, val value.Value, args []value.Value) (bool, error) {
	b, ok := val.AsBool()
	return ok && !b, wantArgs("false", args, 0)
}

func parity(name string, val value.Value, args []value.Value, want int64) (bool, error) {
	if err := wantArgs(name, args, 0); err != nil {
		return false, err
	}
	if !val.IsInteger() {
		return false, nil
	}
	rem, err := val.Rem(value.FromInt(2))
	if err != nil {
		return false, err
	}
	n, _ := rem.AsInt()
	return n == want, nil
}

// TestOdd checks if a value is an odd integer.
//
// Template usage:
//
//	{% if loop.index is odd %}
//	  <div class="odd">{{ item }}</div>
//	{% endif %}
func TestOdd(_ *State, val value.Value, args []value.Value) (bool, error) {
	return parity("odd", val, args, 1)
}

// TestEven checks if a value is an even integer.
func TestEven(_ *State, val value.Value, args []value.Value) (bool, error) {
	return parity("even", val, args, 0)
}

// TestDivisibleBy checks if a number is divisible by the argument.
//
//	{{ 21 is divisibleby(7) }}
//	  -> true
func TestDivisibleBy(_ *State, val value.Value, args []value.Value) (bool, error) {
	if err := wantArgs("divisibleby", args, 1); err != nil {
		return false, err
	}
	if args[0].Equal(value.FromInt(0)) {
		return false, nil
	}
	rem, err := val.Rem(args[0])
	if err != nil {
		return false, nil
	}
	return rem.Equal(value.FromInt(0)), nil
}

// TestEq checks if two values are equal. It is also registered as
// `equalto` and `==`.
func TestEq(_ *State, val value.Value, args []value.Value) (bool, error) {
	if err := wantArgs("eq", args, 1); err != nil {
		return false, err
	}
	return val.Equal(args[0]), nil
}

func TestNe(_ *State, val value.Value, args []value.Value) (bool, error) {
	if err := wantArgs("ne", args, 1); err != nil {
		return false, err
	}
	return !val.Equal(args[0]), nil
}

func compareTest(name string, val value.Value, args []value.Value, accept func(int) bool) (bool, error) {
	if err := wantArgs(name, args, 1); err != nil {
		return false, err
	}
	c, ok := val.Compare(args[0])
	if !ok {
		return false, NewError(ErrInvalidOperation, fmt.Sprintf(
			"test %s: cannot compare %s with %s", name, val.Kind(), args[0].Kind()))
	}
	return accept(c), nil
}

// TestLt checks if a value is less than the argument.
//
// Template usage:
//
//	{{ users|selectattr("age", "lt", 18)|list }}
func TestLt(_ *State, val value.Value, args []value.Value) (bool, error) {
	return compareTest("lt", val, args, func(c int) bool { return c < 0 })
}

func TestLe(_ *State, val value.Value, args []value.Value) (bool, error) {
	return compareTest("le", val, args, func(c int) bool { return c <= 0 })
}

func TestGt(_ *State, val value.Value, args []value.Value) (bool, error) {
	return compareTest("gt", val, args, func(c int) bool { return c > 0 })
}

func TestGe(_ *State, val value.Value, args []value.Value) (bool, error) {
	return compareTest("ge", val, args, func(c int) bool { return c >= 0 })
}

// TestIn checks if a value is contained in the argument.
//
//	{{ 2 is in [1, 2, 3] }}
//	  -> true
func TestIn(_ *State, val value.Value, args []value.Value) (bool, error) {
	if err := wantArgs("in", args, 1); err != nil {
		return false, err
	}
	found, ok := args[0].Contains(val)
	if !ok {
		return false, NewError(ErrInvalidOperation, fmt.Sprintf("cannot perform a containment check on %s", args[0].Kind()))
	}
	return found, nil
}

func kindTest(name string, args []value.Value, ok bool) (bool, error) {
	return ok, wantArgs(name, args, 0)
}

// TestString checks if a value is a string (safe strings included).
func TestString(_ *State, val value.Value, args []value.Value) (bool, error) {
	return kindTest("string", args, val.Kind() == value.KindString)
}

func TestNumber(_ *State, val value.Value, args []value.Value) (bool, error) {
	return kindTest("number", args, val.Kind() == value.KindNumber)
}

// TestInteger checks if a value is stored as an integer. `42.0` is not an
// integer.
func TestInteger(_ *State, val value.Value, args []value.Value) (bool, error) {
	return kindTest("integer", args, val.IsInteger())
}

func TestFloat(_ *State, val value.Value, args []value.Value) (bool, error) {
	return kindTest("float", args, val.IsFloat())
}

func TestBoolean(_ *State, val value.Value, args []value.Value) (bool, error) {
	return kindTest("boolean", args, val.Kind() == value.KindBool)
}

func TestSequence(_ *State, val value.Value, args []value.Value) (bool, error) {
	return kindTest("sequence", args, val.Kind() == value.KindSeq)
}

func TestMapping(_ *State, val value.Value, args []value.Value) (bool, error) {
	return kindTest("mapping", args, val.Kind() == value.KindMap)
}

// TestIterable checks if a value can be iterated over in a for loop.
// Strings, sequences and maps are iterable.
func TestIterable(_ *State, val value.Value, args []value.Value) (bool, error) {
	_, ok := val.Iter()
	return kindTest("iterable", args, ok)
}

// TestSafe checks if a value is a safe string, exempt from auto escaping.
func TestSafe(_ *State, val value.Value, args []value.Value) (bool, error) {
	return kindTest("safe", args, val.IsSafe())
}

// TestSameAs checks identity rather than equality. Primitives are the same
// when they are equal; containers only when they share storage.
func TestSameAs(_ *State, val value.Value, args []value.Value) (bool, error) {
	if err := wantArgs("sameas", args, 1); err != nil {
		return false, err
	}
	return val.SameAs(args[0]), nil
}

func stringTest(name string, val value.Value, args []value.Value, f func(s, arg string) bool) (bool, error) {
	if err := wantArgs(name, args, 1); err != nil {
		return false, err
	}
	s, ok := val.AsString()
	if !ok {
		return false, nil
	}
	arg, ok := args[0].AsString()
	if !ok {
		return false, NewError(ErrInvalidOperation, fmt.Sprintf("test %s expects a string argument", name))
	}
	return f(s, arg), nil
}

// TestStartingWith checks if a string starts with the given prefix.
//
// Template usage:
//
//	{% if path is startingwith("/admin") %}restricted{% endif %}
func TestStartingWith(_ *State, val value.Value, args []value.Value) (bool, error) {
	return stringTest("startingwith", val, args, strings.HasPrefix)
}

func TestEndingWith(_ *State, val value.Value, args []value.Value) (bool, error) {
	return stringTest("endingwith", val, args, strings.HasSuffix)
}

// TestContaining is `in` with the operands swapped:
//
//	{{ [1, 2, 3] is containing(2) }}
//	  -> true
func TestContaining(state *State, val value.Value, args []value.Value) (bool, error) {
	if err := wantArgs("containing", args, 1); err != nil {
		return false, err
	}
	return TestIn(state, args[0], []value.Value{val})
}

func caseTest(name string, val value.Value, args []value.Value, isCase func(rune) bool) (bool, error) {
	if err := wantArgs(name, args, 0); err != nil {
		return false, err
	}
	s, ok := val.AsString()
	if !ok {
		return false, nil
	}
	for _, r := range s {
		if unicode.IsLetter(r) && !isCase(r) {
			return false, nil
		}
	}
	return true, nil
}

// TestLower checks that every letter of a string is lowercase.
func TestLower(_ *State, val value.Value, args []value.Value) (bool, error) {
	return caseTest("lower", val, args, unicode.IsLower)
}

// TestUpper checks that every letter of a string is uppercase.
func TestUpper(_ *State, val value.Value, args []value.Value) (bool, error) {
	return caseTest("upper", val, args, unicode.IsUpper)
}

// TestFilter checks if a filter with the given name is registered.
//
// Template usage:
//
//	{% if "tojson" is filter %}
//	  JSON serialization available
//	{% endif %}
func TestFilter(state *State, val value.Value, args []value.Value) (bool, error) {
	name, ok := val.AsString()
	if !ok {
		return false, wantArgs("filter", args, 0)
	}
	_, exists := state.env.getFilter(name)
	return exists, wantArgs("filter", args, 0)
}

// TestTest checks if a test with the given name is registered.
func TestTest(state *State, val value.Value, args []value.Value) (bool, error) {
	name, ok := val.AsString()
	if !ok {
		return false, wantArgs("test", args, 0)
	}
	_, exists := state.env.getTest(name)
	return exists, wantArgs("test", args, 0)
}
