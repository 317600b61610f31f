package store

import (
	"github.com/nexus-state/nexus-state/internal/atom"
)

// patternTrieNode is a node in the prefix trie over dotted/namespaced atom
// names, generalized from the teacher's internal/storage/pubsub.go
// PatternTrieNode (there indexed by channel-name prefix; here by atom-name
// prefix, since atoms have no wildcard glob, only a namespace prefix).
type patternTrieNode struct {
	children map[byte]*patternTrieNode
	subs     []*patternSub
}

type patternSub struct {
	id      uint64
	prefix  string
	listener Listener
	removed  bool
}

// patternIndex is the store's PSUBSCRIBE-style index: listeners registered
// against a name prefix rather than one atom id (SPEC_FULL.md §D
// "Pattern-aware subscriptions").
type patternIndex struct {
	root    *patternTrieNode
	nextID  uint64
	byPrefix map[string][]*patternSub
}

func newPatternIndex() *patternIndex {
	return &patternIndex{
		root:     &patternTrieNode{children: make(map[byte]*patternTrieNode)},
		byPrefix: make(map[string][]*patternSub),
	}
}

func (p *patternIndex) insert(sub *patternSub) {
	node := p.root
	for i := 0; i < len(sub.prefix); i++ {
		c := sub.prefix[i]
		if node.children[c] == nil {
			node.children[c] = &patternTrieNode{children: make(map[byte]*patternTrieNode)}
		}
		node = node.children[c]
	}
	node.subs = append(node.subs, sub)
	p.byPrefix[sub.prefix] = append(p.byPrefix[sub.prefix], sub)
}

// matching returns every non-removed subscription whose prefix is a prefix
// of name, walking the trie alongside name the same way the teacher's
// GetMatchingPatterns walks alongside a channel name.
func (p *patternIndex) matching(name string) []*patternSub {
	var result []*patternSub
	node := p.root
	result = append(result, node.subs...)
	for i := 0; i < len(name); i++ {
		c := name[i]
		next := node.children[c]
		if next == nil {
			break
		}
		node = next
		result = append(result, node.subs...)
	}
	return result
}

// SubscribePattern registers a listener notified whenever any atom whose
// name has the given prefix changes (including when it changes because a
// computed atom depending on it changes, same affected-set semantics as
// SubscribeAtom). Supplemental to spec.md's exact-match SubscribeAtom,
// grounded on the teacher's PSUBSCRIBE pattern matching.
func (s *Store) SubscribePattern(prefix string, listener Listener, opts SubscribeOptions) (Unsubscribe, error) {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return nil, ErrStoreDestroyed
	}
	if s.patterns == nil {
		s.patterns = newPatternIndex()
	}
	s.patterns.nextID++
	sub := &patternSub{id: s.patterns.nextID, prefix: prefix, listener: listener}
	s.patterns.insert(sub)
	s.mu.Unlock()

	if opts.FireImmediately {
		s.mu.Lock()
		state := s.snapshotValuesLocked()
		s.mu.Unlock()
		s.invokePatternListener(sub, Event{NewState: state})
	}
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		sub.removed = true
	}, nil
}

func (s *Store) invokePatternListener(sub *patternSub, event Event) {
	defer func() {
		if r := recover(); r != nil {
			_ = r
		}
	}()
	sub.listener(event)
}

// notifyPatternsLocked fires every pattern subscription whose prefix
// matches the name of any atom in affected. Called alongside notifyLocked
// so exact and prefix subscribers see the same event shape.
func (s *Store) notifyPatternsLocked(affected map[atom.ID]struct{}) {
	if s.patterns == nil {
		return
	}
	seen := map[uint64]struct{}{}
	var hits []*patternSub
	for id := range affected {
		name := s.nameLocked(id)
		if name == "" {
			continue
		}
		for _, sub := range s.patterns.matching(name) {
			if sub.removed {
				continue
			}
			if _, ok := seen[sub.id]; ok {
				continue
			}
			seen[sub.id] = struct{}{}
			hits = append(hits, sub)
		}
	}
	if len(hits) == 0 {
		return
	}
	state := s.snapshotValuesLocked()
	event := Event{NewState: state}
	for _, sub := range hits {
		s.invokePatternListener(sub, event)
	}
}
