package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenarioParsesCounterFixture(t *testing.T) {
	s, err := LoadScenario(filepath.Join("scenarios", "counter.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "counter-undo-redo", s.Name)
	require.Len(t, s.Atoms, 1)
	assert.Equal(t, "counter", s.Atoms[0].Name)
	assert.Equal(t, 9, len(s.Steps))
}

func TestLoadScenarioMissingFileErrors(t *testing.T) {
	_, err := LoadScenario(filepath.Join("scenarios", "does-not-exist.yaml"))
	assert.Error(t, err)
}

func TestBuildAtomsCreatesOneAtomPerSpec(t *testing.T) {
	s := &Scenario{Atoms: []AtomSpec{{Name: "a", Initial: 0}, {Name: "b", Initial: "x"}}}
	atoms := s.buildAtoms()

	require.Len(t, atoms, 2)
	assert.Equal(t, 0, atoms["a"].Initial())
	assert.Equal(t, "x", atoms["b"].Initial())
}
