package delta

import "time"

// ChangeDetection selects shallow vs deep equality when diffing two
// snapshots (spec.md §4.7, Open Question (d)).
type ChangeDetection int

const (
	Shallow ChangeDetection = iota
	Deep
)

// Config configures the delta engine (spec.md §6 "deltaSnapshots").
type Config struct {
	Enabled bool

	FullSnapshotInterval int
	MaxChainLength       int
	MaxChainAge          time.Duration
	MaxChainSize         int // bytes, estimated

	ChangeDetection    ChangeDetection
	SkipEmptyDeltas    bool
	ReconstructOnDemand bool
	CacheReconstructed bool
	MaxCacheSize       int
}

// DefaultConfig returns a conservative delta policy: a full snapshot every
// 10 entries, capped chain length 10, 256-entry reconstruction cache.
func DefaultConfig() Config {
	return Config{
		Enabled:              true,
		FullSnapshotInterval: 10,
		MaxChainLength:       10,
		ChangeDetection:      Shallow,
		SkipEmptyDeltas:      true,
		ReconstructOnDemand:  true,
		CacheReconstructed:   true,
		MaxCacheSize:         256,
	}
}
