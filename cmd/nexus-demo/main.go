// Command nexus-demo loads a scenario file and drives the time-travel
// engine end to end: preloaded atoms, scripted writes, captures, undo/redo,
// printing store state and history stats as it goes (SPEC_FULL.md §A).
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/nexus-state/nexus-state/internal/atom"
	"github.com/nexus-state/nexus-state/internal/store"
	"github.com/nexus-state/nexus-state/internal/timetravel"
	"github.com/nexus-state/nexus-state/pkg/log"
)

func main() {
	scenarioPath := flag.String("scenario", "", "path to a scenario YAML file")
	jsonLogs := flag.Bool("json-logs", false, "emit logs as JSON instead of console format")
	flag.Parse()

	logCfg := log.DefaultConfig()
	logCfg.JSONOutput = *jsonLogs
	log.Init(logCfg)

	if *scenarioPath == "" {
		fmt.Fprintln(os.Stderr, "usage: nexus-demo --scenario <file.yaml>")
		os.Exit(2)
	}

	scenario, err := LoadScenario(*scenarioPath)
	if err != nil {
		log.Logger.Fatal().Err(err).Msg("failed to load scenario")
	}

	registry := atom.NewRegistry()
	s := store.New(store.DefaultConfig())

	atoms := scenario.buildAtoms()
	cfg := timetravel.DefaultConfig()
	for _, a := range atoms {
		cfg.Atoms = append(cfg.Atoms, a)
	}

	controller := timetravel.New(registry, s, cfg)
	defer controller.Dispose()

	logger := log.WithComponent("nexus-demo")
	logger.Info().Str("scenario", scenario.Name).Int("steps", len(scenario.Steps)).Msg("running scenario")

	for i, step := range scenario.Steps {
		switch {
		case step.Set != "":
			a, ok := atoms[step.Set]
			if !ok {
				logger.Warn().Str("atom", step.Set).Msg("step references unknown atom, skipping")
				continue
			}
			if err := controller.Set(a, step.Value); err != nil {
				logger.Error().Err(err).Int("step", i).Msg("set failed")
			}
		case step.Capture != "":
			controller.Capture(step.Capture)
		case step.Undo:
			if _, err := controller.Undo(); err != nil {
				logger.Warn().Err(err).Int("step", i).Msg("undo failed")
			}
		case step.Redo:
			if _, err := controller.Redo(); err != nil {
				logger.Warn().Err(err).Int("step", i).Msg("redo failed")
			}
		}
		printState(controller, atoms)
	}

	stats := controller.GetHistoryStats()
	logger.Info().
		Int("past", stats.PastCount).
		Bool("hasCurrent", stats.HasCurrent).
		Int("future", stats.FutureCount).
		Msg("final history stats")
}

func printState(c *timetravel.Controller, atoms map[string]*atom.Atom) {
	values := make(map[string]any, len(atoms))
	for name, a := range atoms {
		if v, err := c.GetStore().Get(a); err == nil {
			values[name] = v
		}
	}
	fmt.Printf("state: %v\n", values)
}
