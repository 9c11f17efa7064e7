package journal

import (
	"fmt"
	"sync"

	"github.com/hxrts/aura/internal/fact"
	"github.com/hxrts/aura/internal/ids"
)

// nsKey makes fact.NS usable as a map key.
type nsKey struct {
	kind      fact.NamespaceKind
	authority ids.AuthorityId
	context   ids.ContextId
}

func keyOf(ns fact.NS) nsKey {
	return nsKey{kind: ns.Kind, authority: ns.Authority, context: ns.Context}
}

// Store is the process-wide, per-namespace journal owner (spec §3
// "journals are owned by the process-wide state store"). Journals are
// created lazily on first access.
type Store struct {
	mu       sync.RWMutex
	journals map[nsKey]*Journal
}

// NewStore returns an empty journal store.
func NewStore() *Store {
	return &Store{journals: make(map[nsKey]*Journal)}
}

// GetOrCreate returns the journal for ns, creating an empty one if absent.
func (s *Store) GetOrCreate(ns fact.NS) *Journal {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := keyOf(ns)
	j, ok := s.journals[k]
	if !ok {
		j = New(ns)
		s.journals[k] = j
	}
	return j
}

// Get returns the journal for ns if it exists.
func (s *Store) Get(ns fact.NS) (*Journal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.journals[keyOf(ns)]
	return j, ok
}

// Merge joins delta into the stored journal for its namespace, creating it
// if necessary.
func (s *Store) Merge(ns fact.NS, delta *Journal) error {
	if delta == nil {
		return nil
	}
	if !delta.Namespace().Equal(ns) {
		return fmt.Errorf("journal: store merge namespace mismatch: delta is %s, requested %s", delta.Namespace(), ns)
	}
	target := s.GetOrCreate(ns)
	return target.MergeInPlace(delta)
}
