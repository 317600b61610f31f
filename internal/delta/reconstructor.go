package delta

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/nexus-state/nexus-state/internal/snapshot"
)

// cacheKey identifies a reconstructed state by (chain tail id, target
// index) (spec.md §4.7 "Reconstructor").
type cacheKey struct {
	chainTailID string
	index       int
}

// Reconstructor replays a full snapshot followed by a chain of deltas to
// produce the state at any index in the chain.
type Reconstructor struct {
	cache *lru.Cache[cacheKey, *snapshot.Snapshot]
}

// NewReconstructor builds a Reconstructor with an LRU cache of the given
// size; size<=0 disables caching.
func NewReconstructor(size int) *Reconstructor {
	if size <= 0 {
		return &Reconstructor{}
	}
	c, _ := lru.New[cacheKey, *snapshot.Snapshot](size)
	return &Reconstructor{cache: c}
}

// Reconstruct applies full and the first n deltas of chain, in order, to
// produce the state at index n (0 meaning "just full"). chainTailID
// identifies the chain for cache lookups; optimizePath means checking the
// cache for any nearer index before replaying from scratch.
func (r *Reconstructor) Reconstruct(chainTailID string, full *snapshot.Snapshot, chain []*Delta, n int) (*snapshot.Snapshot, error) {
	if n < 0 || n > len(chain) {
		n = len(chain)
	}

	start := 0
	base := full
	if r.cache != nil {
		for i := n; i > 0; i-- {
			if cached, ok := r.cache.Get(cacheKey{chainTailID, i}); ok {
				base = cached
				start = i
				break
			}
		}
	}

	result := cloneSnapshot(base)
	for i := start; i < n; i++ {
		applyDelta(result, chain[i])
		if r.cache != nil {
			r.cache.Add(cacheKey{chainTailID, i + 1}, cloneSnapshot(result))
		}
	}
	return result, nil
}

func cloneSnapshot(s *snapshot.Snapshot) *snapshot.Snapshot {
	out := &snapshot.Snapshot{ID: s.ID, Metadata: s.Metadata, State: make(map[string]snapshot.Entry, len(s.State))}
	for k, v := range s.State {
		out.State[k] = v
	}
	return out
}

func applyDelta(s *snapshot.Snapshot, d *Delta) {
	s.ID = d.TargetID
	for _, ch := range d.Changes {
		switch ch.Op {
		case OpAdd, OpModify:
			entry := s.State[ch.AtomName]
			if ch.NewValue != nil {
				entry.Value = *ch.NewValue
			}
			entry.Name = ch.AtomName
			s.State[ch.AtomName] = entry
		case OpRemove:
			delete(s.State, ch.AtomName)
		}
	}
	s.Metadata.AtomCount = len(s.State)
}
