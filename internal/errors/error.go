// Package errors defines the error type produced by the template engine.
package errors

import (
	"fmt"
	"strings"

	"github.com/mitsuhiko/minijinja/minijinja-cabi-go/syntax"
)

// ErrorKind describes the type of error.
type ErrorKind int

const (
	// ErrNonPrimitive is raised when a primitive was expected but a
	// sequence or map was given.
	ErrNonPrimitive ErrorKind = iota
	// ErrNonKey is raised when a value cannot be used as a map key.
	ErrNonKey
	ErrInvalidOperation
	ErrSyntax
	ErrTemplateNotFound
	ErrTooManyArguments
	ErrMissingArgument
	ErrUnknownFilter
	ErrUnknownTest
	ErrUnknownFunction
	ErrUnknownMethod
	ErrBadEscape
	// ErrUndefinedVar is raised when an undefined value is used in a way
	// the undefined behavior does not allow.
	ErrUndefinedVar
	ErrBadSerialization
	ErrCannotDeserialize
	ErrBadInclude
	ErrEvalBlock
	ErrCannotUnpack
	ErrWriteFailure
	ErrUnknownBlock
	// ErrOutOfFuel is raised when a render exhausts its fuel budget.
	ErrOutOfFuel
)

var kindNames = [...]string{
	ErrNonPrimitive:      "not a primitive",
	ErrNonKey:            "not a key type",
	ErrInvalidOperation:  "invalid operation",
	ErrSyntax:            "syntax error",
	ErrTemplateNotFound:  "template not found",
	ErrTooManyArguments:  "too many arguments",
	ErrMissingArgument:   "missing argument",
	ErrUnknownFilter:     "unknown filter",
	ErrUnknownTest:       "unknown test",
	ErrUnknownFunction:   "unknown function",
	ErrUnknownMethod:     "unknown method",
	ErrBadEscape:         "bad string escape",
	ErrUndefinedVar:      "undefined value",
	ErrBadSerialization:  "could not serialize to value",
	ErrCannotDeserialize: "cannot deserialize",
	ErrBadInclude:        "could not render include",
	ErrEvalBlock:         "could not render block",
	ErrCannotUnpack:      "cannot unpack",
	ErrWriteFailure:      "failed to write output",
	ErrUnknownBlock:      "unknown block",
	ErrOutOfFuel:         "engine ran out of fuel",
}

func (k ErrorKind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "error"
}

// Error represents an error that occurred during template processing.
type Error struct {
	Kind    ErrorKind
	Message string
	Span    *syntax.Span
	Name    string // template name
	Source  string // template source, for debug output

	// DebugInfo is attached when the environment renders in debug mode.
	DebugInfo *DebugInfo

	cause error
}

// NewError creates a new error.
func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	switch {
	case e.Name != "" && e.Span != nil:
		fmt.Fprintf(&b, " (in %s:%d)", e.Name, e.Span.StartLine)
	case e.Name != "":
		fmt.Fprintf(&b, " (in %s)", e.Name)
	case e.Span != nil:
		fmt.Fprintf(&b, " (at line %d)", e.Span.StartLine)
	}
	return b.String()
}

// Unwrap returns the error that caused this one.
func (e *Error) Unwrap() error {
	return e.cause
}

// Format implements fmt.Formatter. The %+v verb includes the debug block
// and the chain of causes.
func (e *Error) Format(f fmt.State, verb rune) {
	if verb == 'v' && f.Flag('+') {
		writeVerbose(f, e, true)
		return
	}
	_, _ = fmt.Fprint(f, e.Error())
}

// WithSpan sets the span unless one is already set.
func (e *Error) WithSpan(span syntax.Span) *Error {
	if e.Span == nil {
		e.Span = &span
	}
	return e
}

// WithName sets the template name unless one is already set.
func (e *Error) WithName(name string) *Error {
	if e.Name == "" {
		e.Name = name
	}
	return e
}

// WithSource sets the template source.
func (e *Error) WithSource(source string) *Error {
	if e.Source == "" {
		e.Source = source
	}
	return e
}

// WithCause records the error that caused this one.
func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

// WithDebugInfo attaches debug information.
func (e *Error) WithDebugInfo(info *DebugInfo) *Error {
	if e.DebugInfo == nil {
		e.DebugInfo = info
	}
	return e
}

// DebugString renders the debug block (source excerpt and referenced
// variables). It is empty when no debug information is attached.
func (e *Error) DebugString() string {
	if e.DebugInfo == nil {
		return ""
	}
	return debugBlock(e)
}
