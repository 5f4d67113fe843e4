package minijinja

import (
	"github.com/mitsuhiko/minijinja/minijinja-cabi-go/internal/errors"
)

// Error represents an error that occurred during template processing.
//
// Use errors.As to inspect it:
//
//	var tmplErr *minijinja.Error
//	if errors.As(err, &tmplErr) {
//	    fmt.Println(tmplErr.Kind, tmplErr.Message)
//	}
type Error = errors.Error

// ErrorKind describes the type of error that occurred during template processing.
type ErrorKind = errors.ErrorKind

// DebugInfo holds the source excerpt and referenced variables attached to
// errors raised while the environment is in debug mode.
type DebugInfo = errors.DebugInfo

const (
	ErrNonPrimitive      = errors.ErrNonPrimitive
	ErrNonKey            = errors.ErrNonKey
	ErrInvalidOperation  = errors.ErrInvalidOperation
	ErrSyntax            = errors.ErrSyntax
	ErrTemplateNotFound  = errors.ErrTemplateNotFound
	ErrTooManyArguments  = errors.ErrTooManyArguments
	ErrMissingArgument   = errors.ErrMissingArgument
	ErrUnknownFilter     = errors.ErrUnknownFilter
	ErrUnknownTest       = errors.ErrUnknownTest
	ErrUnknownFunction   = errors.ErrUnknownFunction
	ErrUnknownMethod     = errors.ErrUnknownMethod
	ErrBadEscape         = errors.ErrBadEscape
	ErrUndefinedVar      = errors.ErrUndefinedVar
	ErrBadSerialization  = errors.ErrBadSerialization
	ErrCannotDeserialize = errors.ErrCannotDeserialize
	ErrBadInclude        = errors.ErrBadInclude
	ErrEvalBlock         = errors.ErrEvalBlock
	ErrCannotUnpack      = errors.ErrCannotUnpack
	ErrWriteFailure      = errors.ErrWriteFailure
	ErrUnknownBlock      = errors.ErrUnknownBlock
	ErrOutOfFuel         = errors.ErrOutOfFuel
)

// NewError creates a new error with the given kind and message.
func NewError(kind ErrorKind, msg string) *Error {
	return errors.NewError(kind, msg)
}
