package timetravel

import (
	"github.com/nexus-state/nexus-state/internal/atom"
	"github.com/nexus-state/nexus-state/internal/delta"
	"github.com/nexus-state/nexus-state/internal/history"
	"github.com/nexus-state/nexus-state/internal/restore"
	"github.com/nexus-state/nexus-state/internal/snapshot"
)

// Config configures a Controller (spec.md §6, enumerated options).
type Config struct {
	History    history.Config
	Creator    snapshot.CreatorConfig
	Delta      delta.Config
	Restore    restore.Config
	Transaction restore.TransactionConfig

	// Atoms are preloaded and tracked at construction (spec.md §6 "atoms").
	Atoms []*atom.Atom
}

// DefaultConfig wires every component's own DefaultConfig together, with
// the delta engine disabled by default (spec.md's plain History Manager is
// the default time-travel backend; SetDeltaStrategy or Delta.Enabled opts
// into the delta-aware one).
func DefaultConfig() Config {
	cfg := Config{
		History:     history.DefaultConfig(),
		Creator:     snapshot.DefaultCreatorConfig(),
		Delta:       delta.DefaultConfig(),
		Restore:     restore.DefaultConfig(),
		Transaction: restore.DefaultTransactionConfig(),
	}
	cfg.Creator.AutoCapture = true
	cfg.Delta.Enabled = false
	return cfg
}
