package cabi

import (
	"errors"
	"strconv"
	"strings"

	minijinja "github.com/mitsuhiko/minijinja/minijinja-cabi-go"
)

// Code is the closed set of error codes reported across the C boundary. The
// numeric values are part of the ABI and must not be reordered.
type Code int32

const (
	NonPrimitive Code = iota
	NonKey
	InvalidOperation
	SyntaxError
	TemplateNotFound
	TooManyArguments
	MissingArgument
	UnknownFilter
	UnknownTest
	UnknownFunction
	UnknownMethod
	BadEscape
	UndefinedError
	BadSerialization
	CannotDeserialize
	BadInclude
	EvalBlock
	CannotUnpack
	WriteFailure
	UnknownBlock
)

var codeNames = [...]string{
	NonPrimitive:      "NonPrimitive",
	NonKey:            "NonKey",
	InvalidOperation:  "InvalidOperation",
	SyntaxError:       "SyntaxError",
	TemplateNotFound:  "TemplateNotFound",
	TooManyArguments:  "TooManyArguments",
	MissingArgument:   "MissingArgument",
	UnknownFilter:     "UnknownFilter",
	UnknownTest:       "UnknownTest",
	UnknownFunction:   "UnknownFunction",
	UnknownMethod:     "UnknownMethod",
	BadEscape:         "BadEscape",
	UndefinedError:    "UndefinedError",
	BadSerialization:  "BadSerialization",
	CannotDeserialize: "CannotDeserialize",
	BadInclude:        "BadInclude",
	EvalBlock:         "EvalBlock",
	CannotUnpack:      "CannotUnpack",
	WriteFailure:      "WriteFailure",
	UnknownBlock:      "UnknownBlock",
}

func (c Code) String() string {
	if c >= 0 && int(c) < len(codeNames) {
		return codeNames[c]
	}
	return "Code(" + strconv.Itoa(int(c)) + ")"
}

var kindCodes = map[minijinja.ErrorKind]Code{
	minijinja.ErrNonPrimitive:      NonPrimitive,
	minijinja.ErrNonKey:            NonKey,
	minijinja.ErrInvalidOperation:  InvalidOperation,
	minijinja.ErrSyntax:            SyntaxError,
	minijinja.ErrTemplateNotFound:  TemplateNotFound,
	minijinja.ErrTooManyArguments:  TooManyArguments,
	minijinja.ErrMissingArgument:   MissingArgument,
	minijinja.ErrUnknownFilter:     UnknownFilter,
	minijinja.ErrUnknownTest:       UnknownTest,
	minijinja.ErrUnknownFunction:   UnknownFunction,
	minijinja.ErrUnknownMethod:     UnknownMethod,
	minijinja.ErrBadEscape:         BadEscape,
	minijinja.ErrUndefinedVar:      UndefinedError,
	minijinja.ErrBadSerialization:  BadSerialization,
	minijinja.ErrCannotDeserialize: CannotDeserialize,
	minijinja.ErrBadInclude:        BadInclude,
	minijinja.ErrEvalBlock:         EvalBlock,
	minijinja.ErrCannotUnpack:      CannotUnpack,
	minijinja.ErrWriteFailure:      WriteFailure,
	minijinja.ErrUnknownBlock:      UnknownBlock,
	minijinja.ErrOutOfFuel:         InvalidOperation,
}

// CodeOf maps an engine error kind onto a boundary code. Kinds without a
// dedicated code report InvalidOperation.
func CodeOf(kind minijinja.ErrorKind) Code {
	if code, ok := kindCodes[kind]; ok {
		return code
	}
	return InvalidOperation
}

// Error is the immutable {code, message} pair handed to C callers.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return e.Code.String() + ": " + e.Message
}

const causedBy = "\nCaused by: "

// NewError flattens err into an Error. The code comes from the first engine
// error in the chain; errors that never passed through the engine (decoder
// failures) are reported as CannotDeserialize.
func NewError(err error) *Error {
	return newError(err, false)
}

func newError(err error, debug bool) *Error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}

	code := CannotDeserialize
	var engineErr *minijinja.Error
	if errors.As(err, &engineErr) {
		code = CodeOf(engineErr.Kind)
	}

	var b strings.Builder
	for link, first := err, true; link != nil; link, first = errors.Unwrap(link), false {
		if !first {
			b.WriteString(causedBy)
		}
		if me, ok := link.(*minijinja.Error); ok {
			// The engine's own Error() already stops at the first link.
			b.WriteString(me.Error())
			if first && debug {
				b.WriteString(me.DebugString())
			}
			continue
		}
		b.WriteString(headline(link))
	}
	return &Error{Code: code, Message: b.String()}
}

// headline returns err's own message without the text its wrapped causes
// contribute, so the chain is not repeated once per link.
func headline(err error) string {
	msg := err.Error()
	next := errors.Unwrap(err)
	if next == nil {
		return msg
	}
	if suffix := ": " + next.Error(); strings.HasSuffix(msg, suffix) && len(msg) > len(suffix) {
		return strings.TrimSuffix(msg, suffix)
	}
	return msg
}
