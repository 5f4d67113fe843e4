// Package syntax holds source location types shared by the lexer, the
// parser and the error reporting code.
package syntax

import "fmt"

// Span represents a location range in source code.
//
// Lines are 1-indexed, columns are 0-indexed and offsets are byte offsets
// into the template source.
type Span struct {
	StartLine   uint16
	StartCol    uint16
	StartOffset uint32
	EndLine     uint16
	EndCol      uint16
	EndOffset   uint32
}

// String formats the span as "line:col-line:col".
func (s Span) String() string {
	return fmt.Sprintf("%d:%d-%d:%d", s.StartLine, s.StartCol, s.EndLine, s.EndCol)
}
