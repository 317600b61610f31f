package history

// Config configures a Manager (spec.md §6 "maxHistory").
type Config struct {
	// MaxHistory bounds |past| + |future| + (current?1:0). Zero means only
	// current is ever retained.
	MaxHistory int

	// Compressor, if set, is offered every snapshot added and may replace
	// it with a compressed stand-in (spec.md §4.6 step 5).
	Compressor Compressor
}

// DefaultConfig returns an unbounded-ish but sane default: 50 slots, no
// compression.
func DefaultConfig() Config {
	return Config{MaxHistory: 50}
}
