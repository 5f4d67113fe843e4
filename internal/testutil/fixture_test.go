package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFixtures(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, "basic.yaml", `
cases:
  - name: hello
    template: "Hello {{ name }}!"
    context: {name: World, tags: [a, b]}
    output: "Hello World!"
  - name: strict
    template: "{{ missing }}"
    settings: {undefined: strict}
    error: undefined value
`)
	cases, err := LoadFixtures(path)
	require.NoError(t, err)
	require.Len(t, cases, 2)

	assert.Equal(t, "Hello World!", *cases[0].Output)
	assert.Equal(t, "World", cases[0].Context["name"])
	assert.Equal(t, []any{"a", "b"}, cases[0].Context["tags"])
	assert.Nil(t, cases[1].Output)
	require.NotNil(t, cases[1].Settings)
	assert.Equal(t, "strict", cases[1].Settings.Undefined)
}

func TestLoadFixturesRejectsBadCases(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFixtures(writeFixture(t, dir, "dup.yaml", `
cases:
  - {name: a, template: x, output: x}
  - {name: a, template: y, output: y}
`))
	assert.ErrorContains(t, err, "duplicate case")

	_, err = LoadFixtures(writeFixture(t, dir, "empty.yaml", `
cases:
  - {name: a, template: x}
`))
	assert.ErrorContains(t, err, "neither output nor error")
}

func TestLoadFixtureDir(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "b.yaml", "cases: [{name: x, template: x, output: x}]")
	writeFixture(t, dir, "a.yaml", "cases: [{name: y, template: y, output: y}]")

	sets, err := LoadFixtureDir(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, SortedKeys(sets))

	_, err = LoadFixtureDir(t.TempDir())
	assert.Error(t, err)
}

func TestDiff(t *testing.T) {
	assert.Empty(t, Diff("a", "a"))
	assert.Contains(t, Diff("a\n", "b"), "b⏎")
}
