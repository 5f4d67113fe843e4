// Package testutil loads the YAML render fixtures used by the table tests.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Fixture is a single render case.
//
// A fixture renders Template (registered as Name unless Name is empty)
// against Context and expects either Output or an error whose kind prints
// as Error. Templates lists additional named templates for includes,
// imports and inheritance.
type Fixture struct {
	Name      string            `yaml:"name"`
	Template  string            `yaml:"template"`
	Context   map[string]any    `yaml:"context"`
	Templates map[string]string `yaml:"templates"`
	Settings  *Settings         `yaml:"settings"`
	Output    *string           `yaml:"output"`
	Error     string            `yaml:"error"`
	Contains  []string          `yaml:"contains"` // substrings of the error message
	Skip      string            `yaml:"skip"`
}

// Settings configures the environment of a fixture.
type Settings struct {
	KeepTrailingNewline bool   `yaml:"keep_trailing_newline"`
	LstripBlocks        bool   `yaml:"lstrip_blocks"`
	TrimBlocks          bool   `yaml:"trim_blocks"`
	Undefined           string `yaml:"undefined"`
	RecursionLimit      int    `yaml:"recursion_limit"`
	Debug               bool   `yaml:"debug"`
	Fuel                uint64 `yaml:"fuel"`
}

type fixtureFile struct {
	Cases []Fixture `yaml:"cases"`
}

// LoadFixtures reads all cases of a fixture file.
func LoadFixtures(path string) ([]Fixture, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file fixtureFile
	if err := yaml.Unmarshal(content, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	seen := make(map[string]bool, len(file.Cases))
	for i, c := range file.Cases {
		if c.Name == "" {
			return nil, fmt.Errorf("%s: case %d has no name", path, i)
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("%s: duplicate case %q", path, c.Name)
		}
		seen[c.Name] = true
		if c.Output == nil && c.Error == "" && c.Skip == "" {
			return nil, fmt.Errorf("%s: case %q expects neither output nor error", path, c.Name)
		}
	}
	return file.Cases, nil
}

// LoadFixtureDir loads every *.yaml file in dir, keyed by file name
// without extension.
func LoadFixtureDir(dir string) (map[string][]Fixture, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no fixtures found in %s", dir)
	}
	out := make(map[string][]Fixture, len(paths))
	for _, path := range paths {
		cases, err := LoadFixtures(path)
		if err != nil {
			return nil, err
		}
		out[strings.TrimSuffix(filepath.Base(path), ".yaml")] = cases
	}
	return out, nil
}

// SortedKeys returns the keys of a fixture set in stable order.
func SortedKeys(sets map[string][]Fixture) []string {
	keys := make([]string, 0, len(sets))
	for k := range sets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Diff shows expected and actual output with visible line ends.
func Diff(expected, actual string) string {
	if expected == actual {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("=== Expected ===\n")
	sb.WriteString(expected)
	if !strings.HasSuffix(expected, "\n") {
		sb.WriteString("⏎\n")
	}
	sb.WriteString("=== Actual ===\n")
	sb.WriteString(actual)
	if !strings.HasSuffix(actual, "\n") {
		sb.WriteString("⏎\n")
	}
	sb.WriteString("=== End ===\n")
	return sb.String()
}
