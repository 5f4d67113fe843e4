package minijinja

import (
	mjerrors "github.com/mitsuhiko/minijinja/minijinja-cabi-go/internal/errors"
	"github.com/mitsuhiko/minijinja/minijinja-cabi-go/internal/parser"
	"github.com/mitsuhiko/minijinja/minijinja-cabi-go/value"
)

// makeDebugInfo snapshots the variables node reads, resolved in the current
// frame. Nested statement bodies are not searched.
func (s *State) makeDebugInfo(node parser.Node) *mjerrors.DebugInfo {
	locals := map[string]value.Value{}
	parser.Inspect(node, func(n parser.Node) bool {
		if _, isStmt := n.(parser.Stmt); isStmt && n != node {
			return false
		}
		if v, ok := n.(*parser.Var); ok {
			if _, seen := locals[v.ID]; !seen {
				if val := s.Lookup(v.ID); !val.IsUndefined() && !val.IsCallable() {
					locals[v.ID] = val
				}
			}
		}
		return true
	})
	return &mjerrors.DebugInfo{TemplateSource: s.source, ReferencedLocals: locals}
}
