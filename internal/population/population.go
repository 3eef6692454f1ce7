// Package population resolves the denominator used to express a day's turnout as a share
// of population.
package population

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultNational is the national population used when no table overrides it.
const DefaultNational = 340_100_000

//go:embed populations.yaml
var embedded []byte

var (
	// ErrEmptyTable is returned when a population file lists no states.
	ErrEmptyTable = errors.New("population table has no states")
)

// Table maps state postal codes to resident population.
type Table struct {
	National float64            `yaml:"national"`
	States   map[string]float64 `yaml:"states"`
}

// Default returns the embedded table.
func Default() *Table {
	t, err := parse(embedded)
	if err != nil {
		// The embedded file is part of the build.
		panic(fmt.Sprintf("population: embedded table: %v", err))
	}
	return t
}

// Load reads a table from path, or returns the embedded table when path is empty.
func Load(path string) (*Table, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read population file: %w", err)
	}
	t, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse population file %s: %w", path, err)
	}
	return t, nil
}

func parse(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	if len(t.States) == 0 {
		return nil, ErrEmptyTable
	}

	states := make(map[string]float64, len(t.States))
	for code, pop := range t.States {
		states[strings.ToUpper(strings.TrimSpace(code))] = pop
	}
	t.States = states
	if t.National <= 0 {
		t.National = DefaultNational
	}
	return &t, nil
}

// Denominator returns the combined population of the selected states. With no selection,
// or when none of the selected codes is known, it returns national. A non-positive national
// falls back to the table's own national figure.
func (t *Table) Denominator(states []string, national float64) float64 {
	if national <= 0 {
		national = t.National
	}
	if len(states) == 0 {
		return national
	}

	seen := make(map[string]struct{}, len(states))
	total := 0.0
	for _, s := range states {
		code := strings.ToUpper(strings.TrimSpace(s))
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		total += t.States[code]
	}
	if total <= 0 {
		return national
	}
	return total
}
