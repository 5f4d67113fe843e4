package value

// UndefinedBehavior determines how undefined values are handled at runtime.
//
// The modes control how undefined values interact with printing, iteration,
// attribute access and truthiness checks.
type UndefinedBehavior int

const (
	// UndefinedLenient allows undefined values to be used in templates.
	// They render as empty strings, iterate as empty sequences, and are
	// considered false in boolean contexts. Looking up an attribute on an
	// undefined value is an error.
	UndefinedLenient UndefinedBehavior = iota

	// UndefinedChainable is like UndefinedLenient but also allows attribute
	// and item access on undefined values, which yields undefined again.
	UndefinedChainable

	// UndefinedSemiStrict behaves like UndefinedStrict for printing and
	// iteration, but allows undefined values in boolean contexts.
	UndefinedSemiStrict

	// UndefinedStrict fails whenever an undefined value is printed,
	// iterated, tested for truthiness or compared with `in`.
	UndefinedStrict
)

func (b UndefinedBehavior) String() string {
	switch b {
	case UndefinedLenient:
		return "lenient"
	case UndefinedChainable:
		return "chainable"
	case UndefinedSemiStrict:
		return "semi-strict"
	case UndefinedStrict:
		return "strict"
	default:
		return "unknown"
	}
}

// AllowsPrint reports whether undefined values may be printed.
func (b UndefinedBehavior) AllowsPrint() bool {
	return b == UndefinedLenient || b == UndefinedChainable
}

// AllowsIteration reports whether undefined values iterate as empty.
func (b UndefinedBehavior) AllowsIteration() bool {
	return b == UndefinedLenient || b == UndefinedChainable
}

// AllowsTruthiness reports whether undefined values may be tested in a
// boolean context.
func (b UndefinedBehavior) AllowsTruthiness() bool {
	return b != UndefinedStrict
}

// AllowsChaining reports whether attribute lookups on undefined values
// produce undefined instead of an error.
func (b UndefinedBehavior) AllowsChaining() bool {
	return b == UndefinedChainable
}
