package minijinja

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitsuhiko/minijinja/minijinja-cabi-go/internal/testutil"
)

var undefinedBehaviors = map[string]UndefinedBehavior{
	"":            UndefinedLenient,
	"lenient":     UndefinedLenient,
	"chainable":   UndefinedChainable,
	"semi_strict": UndefinedSemiStrict,
	"strict":      UndefinedStrict,
}

func fixtureEnv(t *testing.T, fx testutil.Fixture) *Environment {
	t.Helper()
	env := NewEnvironment()
	if s := fx.Settings; s != nil {
		env.SetKeepTrailingNewline(s.KeepTrailingNewline)
		env.SetLstripBlocks(s.LstripBlocks)
		env.SetTrimBlocks(s.TrimBlocks)
		env.SetDebug(s.Debug)
		behavior, ok := undefinedBehaviors[s.Undefined]
		require.True(t, ok, "unknown undefined behavior %q", s.Undefined)
		env.SetUndefinedBehavior(behavior)
		if s.RecursionLimit > 0 {
			env.SetRecursionLimit(s.RecursionLimit)
		}
		if s.Fuel > 0 {
			fuel := s.Fuel
			env.SetFuel(&fuel)
		}
	}
	for name, source := range fx.Templates {
		require.NoError(t, env.AddTemplate(name, source), "template %s", name)
	}
	return env
}

func runFixture(t *testing.T, fx testutil.Fixture) {
	env := fixtureEnv(t, fx)

	var out string
	tmpl, err := env.TemplateFromNamedString(fx.Name, fx.Template)
	if err == nil {
		out, err = tmpl.Render(fx.Context)
	}

	if fx.Error != "" {
		require.Error(t, err, "expected %s, rendered %q", fx.Error, out)
		var tmplErr *Error
		require.True(t, errors.As(err, &tmplErr), "not a template error: %v", err)
		assert.Equal(t, fx.Error, tmplErr.Kind.String(), "error: %v", err)
		for _, want := range fx.Contains {
			assert.Contains(t, err.Error(), want)
		}
		return
	}

	require.NoError(t, err)
	if out != *fx.Output {
		t.Errorf("output mismatch\n%s", testutil.Diff(*fx.Output, out))
	}
}

func TestFixtures(t *testing.T) {
	sets, err := testutil.LoadFixtureDir(filepath.Join("testdata"))
	require.NoError(t, err)

	for _, set := range testutil.SortedKeys(sets) {
		t.Run(set, func(t *testing.T) {
			for _, fx := range sets[set] {
				t.Run(fx.Name, func(t *testing.T) {
					if fx.Skip != "" {
						t.Skip(fx.Skip)
					}
					runFixture(t, fx)
				})
			}
		})
	}
}
