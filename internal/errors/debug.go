package errors

import (
	goerrors "errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/mitsuhiko/minijinja/minijinja-cabi-go/value"
)

const (
	ruleWidth    = 79
	contextLines = 3
)

// DebugInfo is what debug mode attaches to a render error: the source of
// the failing template and the variables the failing node read.
type DebugInfo struct {
	TemplateSource   string
	ReferencedLocals map[string]value.Value
}

// writeVerbose prints err followed by its debug block and, when chain is
// set, every cause below it.
func writeVerbose(w io.Writer, err *Error, chain bool) {
	_, _ = io.WriteString(w, err.Error())
	if err.DebugInfo != nil {
		_, _ = io.WriteString(w, debugBlock(err))
	}
	if !chain {
		return
	}
	for cause := goerrors.Unwrap(err); cause != nil; cause = goerrors.Unwrap(cause) {
		_, _ = io.WriteString(w, "\n\ncaused by: ")
		if next, ok := cause.(*Error); ok {
			writeVerbose(w, next, false)
		} else {
			_, _ = io.WriteString(w, cause.Error())
		}
	}
}

// debugBlock renders the source excerpt around err.Span and the referenced
// variables, framed by rules.
func debugBlock(err *Error) string {
	info := err.DebugInfo
	var b strings.Builder
	b.WriteByte('\n')

	if info.TemplateSource != "" {
		b.WriteString(banner(" "+shortName(err.Name)+" ", '-'))
		b.WriteByte('\n')
		writeExcerpt(&b, err)
		b.WriteString(strings.Repeat("~", ruleWidth))
		b.WriteByte('\n')
	}

	if len(info.ReferencedLocals) == 0 {
		b.WriteString("No referenced variables\n")
	} else {
		b.WriteString("Referenced variables:\n")
		for _, name := range slices.Sorted(maps.Keys(info.ReferencedLocals)) {
			fmt.Fprintf(&b, "    %s: %s\n", name, info.ReferencedLocals[name].Repr())
		}
	}
	b.WriteString(strings.Repeat("-", ruleWidth))
	return b.String()
}

// writeExcerpt prints up to contextLines lines on either side of the failing
// line, and a caret marker under it when the span is on a single line.
func writeExcerpt(b *strings.Builder, err *Error) {
	lines := strings.Split(err.DebugInfo.TemplateSource, "\n")
	at := 0
	if err.Span != nil && err.Span.StartLine > 0 {
		at = min(int(err.Span.StartLine)-1, len(lines)-1)
	}

	for i := max(0, at-contextLines); i < at; i++ {
		fmt.Fprintf(b, "%4d | %s\n", i+1, lines[i])
	}
	fmt.Fprintf(b, "%4d > %s\n", at+1, lines[at])
	if sp := err.Span; sp != nil && sp.StartLine == sp.EndLine {
		width := 1
		if sp.EndCol > sp.StartCol {
			width = int(sp.EndCol - sp.StartCol)
		}
		fmt.Fprintf(b, "     i %s%s %s\n", strings.Repeat(" ", int(sp.StartCol)), strings.Repeat("^", width), err.Kind)
	}
	for i := at + 1; i <= at+contextLines && i < len(lines); i++ {
		fmt.Fprintf(b, "%4d | %s\n", i+1, lines[i])
	}
}

// shortName is the last path segment of a template name.
func shortName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool { return r == '/' || r == '\\' })
	if len(parts) == 0 {
		return "Template Source"
	}
	return parts[len(parts)-1]
}

func banner(title string, fill byte) string {
	pad := ruleWidth - len(title)
	if pad <= 0 {
		return title
	}
	side := string(fill)
	return strings.Repeat(side, pad/2) + title + strings.Repeat(side, pad-pad/2)
}
