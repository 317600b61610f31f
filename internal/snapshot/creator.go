package snapshot

import (
	"time"

	"github.com/google/uuid"

	"github.com/nexus-state/nexus-state/internal/atom"
	"github.com/nexus-state/nexus-state/internal/serialize"
	"github.com/nexus-state/nexus-state/internal/store"
)

// CreatorConfig configures a Creator.
type CreatorConfig struct {
	IncludeTypes   []atom.Variant
	ExcludeAtoms   []string
	AutoCapture    bool
	SkipStateCheck bool
	Transform      func(*Snapshot) *Snapshot
	Serializer     serialize.Config
}

// DefaultCreatorConfig returns the default creator configuration: every
// variant included, nothing excluded, permissive serialization.
func DefaultCreatorConfig() CreatorConfig {
	return CreatorConfig{
		IncludeTypes: []atom.Variant{atom.Primitive, atom.Writable, atom.Computed},
		Serializer:   serialize.DefaultConfig(),
	}
}

// Listener receives the full Snapshot on create.
type Listener func(*Snapshot)

// Creator implements spec.md §4.3.
type Creator struct {
	registry *atom.Registry
	store    *store.Store
	cfg      CreatorConfig
	ser      *serialize.Serializer
	exclude  map[string]struct{}
	lastAuto *Snapshot
	subs     []Listener
}

// NewCreator builds a Creator over the given registry and store.
func NewCreator(registry *atom.Registry, s *store.Store, cfg CreatorConfig) *Creator {
	exclude := make(map[string]struct{}, len(cfg.ExcludeAtoms))
	for _, n := range cfg.ExcludeAtoms {
		exclude[n] = struct{}{}
	}
	return &Creator{
		registry: registry,
		store:    s,
		cfg:      cfg,
		ser:      serialize.New(cfg.Serializer),
		exclude:  exclude,
	}
}

// Subscribe registers a listener invoked on every successful Create.
func (c *Creator) Subscribe(l Listener) {
	c.subs = append(c.subs, l)
}

func (c *Creator) includesVariant(v atom.Variant) bool {
	for _, t := range c.cfg.IncludeTypes {
		if t == v {
			return true
		}
	}
	return false
}

// CreateOptions parameterizes one Create call.
type CreateOptions struct {
	Action         string
	AtomIDs        []atom.ID // nil means "every registered atom"
	SkipStateCheck bool
}

// Create enumerates the target atoms, applies the variant/exclude/readable
// filters in order, serializes surviving values, and assembles a Snapshot.
// It returns (nil, nil) -- not an error -- when auto-capture suppression
// elects to skip emission (spec.md §4.3).
func (c *Creator) Create(opts CreateOptions) (*Snapshot, error) {
	var targets []*atom.Atom
	if opts.AtomIDs != nil {
		for _, id := range opts.AtomIDs {
			if a, ok := c.registry.Get(id); ok {
				targets = append(targets, a)
			}
		}
	} else {
		targets = c.registry.GetAll()
	}

	state := make(map[string]Entry, len(targets))
	for _, a := range targets {
		if !c.includesVariant(a.Variant()) {
			continue
		}
		if _, excluded := c.exclude[a.Name()]; excluded {
			continue
		}
		value, err := c.store.Get(a)
		if err != nil {
			continue // "read succeeds" filter: drop atoms whose read fails
		}
		sv, err := c.ser.Serialize(value)
		if err != nil {
			continue
		}
		name := a.Name()
		if name == "" {
			name = a.String()
		}
		state[name] = Entry{
			Value:        sv,
			Variant:      a.Variant(),
			Name:         name,
			AtomIDString: a.String(),
		}
	}

	snap := &Snapshot{
		ID: uuid.NewString(),
		Metadata: Metadata{
			Timestamp: time.Now(),
			Action:    opts.Action,
			AtomCount: len(state),
		},
		State: state,
	}

	if c.cfg.Transform != nil {
		snap = c.cfg.Transform(snap)
	}

	if c.cfg.AutoCapture && opts.Action == "" && !opts.SkipStateCheck && !c.cfg.SkipStateCheck {
		if c.lastAuto != nil && c.lastAuto.StateEqual(snap) {
			return nil, nil
		}
	}
	if c.cfg.AutoCapture && opts.Action == "" {
		c.lastAuto = snap
	}

	for _, l := range c.subs {
		l(snap)
	}
	return snap, nil
}

// Result is the outcome of CreateWithResult -- never an error return, per
// spec.md §4.3 "Never throws".
type Result struct {
	Success   bool
	Snapshot  *Snapshot
	Duration  time.Duration
	Timestamp time.Time
	AtomCount int
	Error     error
}

// CreateWithResult wraps Create, converting any error into a failed Result
// rather than propagating it.
func (c *Creator) CreateWithResult(opts CreateOptions) Result {
	start := time.Now()
	snap, err := c.Create(opts)
	res := Result{
		Duration:  time.Since(start),
		Timestamp: time.Now(),
	}
	if err != nil {
		res.Error = err
		return res
	}
	res.Success = true
	res.Snapshot = snap
	if snap != nil {
		res.AtomCount = snap.Metadata.AtomCount
	}
	return res
}
