package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nexus-state/nexus-state/internal/atom"
)

// Scenario is a YAML-loaded script exercising the engine end to end:
// preloaded atoms plus an ordered list of writes (spec.md §6 "atoms";
// SPEC_FULL.md §C cmd/nexus-demo).
type Scenario struct {
	Name  string          `yaml:"name"`
	Atoms []AtomSpec      `yaml:"atoms"`
	Steps []ScenarioStep  `yaml:"steps"`
}

// AtomSpec describes one preloaded writable atom. Computed atoms are not
// expressible in YAML (their read function is code), and the demo does not
// build any.
type AtomSpec struct {
	Name    string `yaml:"name"`
	Initial any    `yaml:"initial"`
}

// ScenarioStep is one scripted action.
type ScenarioStep struct {
	Set     string `yaml:"set"`
	Value   any    `yaml:"value"`
	Capture string `yaml:"capture"`
	Undo    bool   `yaml:"undo"`
	Redo    bool   `yaml:"redo"`
}

// LoadScenario reads and parses a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("nexus-demo: reading scenario: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("nexus-demo: parsing scenario: %w", err)
	}
	return &s, nil
}

func (s *Scenario) buildAtoms() map[string]*atom.Atom {
	out := make(map[string]*atom.Atom, len(s.Atoms))
	for _, spec := range s.Atoms {
		out[spec.Name] = atom.New(spec.Name, spec.Initial)
	}
	return out
}
