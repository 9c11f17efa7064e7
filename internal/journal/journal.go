// Package journal implements the Fact CRDT (spec §4.1, component C1): a
// per-namespace set of immutable facts forming a join-semilattice with
// deterministic reduction to derived state. The join-semilattice laws
// (associative, commutative, idempotent join, with the empty set as
// bottom) are characterized by the property tests in journal_test.go.
package journal

import (
	"fmt"
	"sync"

	"github.com/hxrts/aura/crypto"
	"github.com/hxrts/aura/internal/aeerrors"
	"github.com/hxrts/aura/internal/clock"
	"github.com/hxrts/aura/internal/fact"
	"github.com/hxrts/aura/internal/ids"
)

// Journal is the tuple (namespace, facts) of spec §3. Writers hold the
// exclusive lock for the duration of AddFact (spec §5: "writers hold
// exclusive access for the duration of add_fact + persist").
type Journal struct {
	mu        sync.RWMutex
	namespace fact.NS
	facts     map[clock.OrderTime]fact.Fact
}

// New constructs an empty journal (the bottom element of the semilattice)
// for the given namespace.
func New(ns fact.NS) *Journal {
	return &Journal{namespace: ns, facts: make(map[clock.OrderTime]fact.Fact)}
}

// Namespace returns the journal's namespace.
func (j *Journal) Namespace() fact.NS {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.namespace
}

// namespaceOf resolves the namespace a piece of content says it belongs to,
// where the content carries one explicitly (Snapshot/DomainGeneric). Facts
// whose content doesn't carry an intrinsic namespace (the handwritten
// Relational case, supplied by the hosting RelationalContext) are exempt
// from this check — see AddFact.
func namespaceOf(c fact.Content) (fact.NS, bool, error) {
	if c.Kind == fact.ContentRelational {
		return fact.NS{}, false, nil
	}
	ns, err := c.Namespace()
	if err != nil {
		return fact.NS{}, false, err
	}
	return ns, true, nil
}

// AddFact inserts a fact into the set. Insertion is idempotent: re-adding a
// fact whose OrderTime already exists is a no-op success (spec §4.1). Fails
// with NamespaceMismatch if the fact's content carries an incompatible
// namespace tag.
func (j *Journal) AddFact(f fact.Fact) error {
	ns, checked, err := namespaceOf(f.Content)
	if err != nil {
		return aeerrors.Wrap(aeerrors.Invalid, "journal: resolve fact namespace", err)
	}
	if checked && !ns.Equal(j.namespaceOfLocked()) {
		return aeerrors.New(aeerrors.NamespaceMismatch,
			fmt.Sprintf("journal: fact namespace %s does not match journal namespace %s", ns, j.Namespace()))
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	j.facts[f.Order] = f
	return nil
}

func (j *Journal) namespaceOfLocked() fact.NS {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.namespace
}

// Join returns a new journal holding the set-union of this journal's and
// other's facts. Fails with NamespaceMismatch if the namespaces differ
// (spec §3, §4.1).
func (j *Journal) Join(other *Journal) (*Journal, error) {
	if other == nil {
		return j.Clone(), nil
	}
	j.mu.RLock()
	other.mu.RLock()
	defer j.mu.RUnlock()
	defer other.mu.RUnlock()

	if !j.namespace.Equal(other.namespace) {
		return nil, aeerrors.New(aeerrors.NamespaceMismatch,
			fmt.Sprintf("journal: cannot join %s with %s", j.namespace, other.namespace))
	}

	merged := &Journal{namespace: j.namespace, facts: make(map[clock.OrderTime]fact.Fact, len(j.facts)+len(other.facts))}
	for k, v := range j.facts {
		merged.facts[k] = v
	}
	for k, v := range other.facts {
		merged.facts[k] = v
	}
	return merged, nil
}

// MergeInPlace joins other's facts into this journal, mutating it. Used by
// the Journal effect's production handler when merging a peer delta.
func (j *Journal) MergeInPlace(other *Journal) error {
	if other == nil {
		return nil
	}
	other.mu.RLock()
	defer other.mu.RUnlock()

	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.namespace.Equal(other.namespace) {
		return aeerrors.New(aeerrors.NamespaceMismatch,
			fmt.Sprintf("journal: cannot merge %s into %s", other.namespace, j.namespace))
	}
	for k, v := range other.facts {
		j.facts[k] = v
	}
	return nil
}

// Clone returns a deep copy of the journal.
func (j *Journal) Clone() *Journal {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := &Journal{namespace: j.namespace, facts: make(map[clock.OrderTime]fact.Fact, len(j.facts))}
	for k, v := range j.facts {
		out.facts[k] = v
	}
	return out
}

// Facts returns a snapshot of the fact set, sorted by (OrderTime,
// content-hash) as spec §4.1 requires for deterministic tie-breaking.
func (j *Journal) Facts() []fact.Fact {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]fact.Fact, 0, len(j.facts))
	for _, f := range j.facts {
		out = append(out, f)
	}
	SortFacts(out)
	return out
}

// Len reports the number of facts currently held.
func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.facts)
}

// SortFacts orders facts by (OrderTime, content-hash): OrderTime already
// embeds a content-hash fragment and a sequence/authority prefix, so in
// practice comparing OrderTime alone is the tie-break, but ties on OrderTime
// are impossible by construction (spec §3: equality is OrderTime equality).
// The explicit content-hash fallback keeps the contract correct even if a
// future OrderTime scheme collides.
func SortFacts(facts []fact.Fact) {
	contentHash := func(f fact.Fact) ids.Hash32 {
		enc, err := fact.Encode(f)
		if err != nil {
			return ids.Hash32{}
		}
		return crypto.Blake3(enc)
	}
	for i := 1; i < len(facts); i++ {
		for k := i; k > 0; k-- {
			a, b := facts[k-1], facts[k]
			if a.Order.Compare(b.Order) < 0 {
				break
			}
			if a.Order.Compare(b.Order) == 0 {
				ha, hb := contentHash(a), contentHash(b)
				if ha.Compare(hb) <= 0 {
					break
				}
			}
			facts[k-1], facts[k] = facts[k], facts[k-1]
		}
	}
}

// Commitment returns a Merkle-root fingerprint over the sorted fact set's
// content hashes (grounded on aura-crypto's merkle.rs), suitable for
// inclusion in a ceremony Prestate (spec §4.5, §8 scenario).
func (j *Journal) Commitment() ids.Hash32 {
	facts := j.Facts()
	leaves := make([]ids.Hash32, 0, len(facts))
	for _, f := range facts {
		enc, err := fact.Encode(f)
		if err != nil {
			continue
		}
		leaves = append(leaves, crypto.Blake3(enc))
	}
	return crypto.MerkleRoot(leaves)
}
