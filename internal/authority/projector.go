package authority

import (
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/hxrts/aura/internal/fact"
	"github.com/hxrts/aura/internal/journal"
)

// Projector serves Reduce results off a journal.Store, collapsing concurrent
// callers asking for the same namespace's current snapshot into a single
// Reduce pass (SPEC_FULL.md §B: x/sync/singleflight). Reduce itself stays
// pure and stateless; Projector only adds request coalescing on top.
type Projector struct {
	store            *journal.Store
	initialThreshold int
	initialTotal     int
	g                singleflight.Group
}

// NewProjector constructs a Projector reading from store. initialThreshold
// and initialTotal seed Reduce for namespaces with no facts yet.
func NewProjector(store *journal.Store, initialThreshold, initialTotal int) *Projector {
	return &Projector{store: store, initialThreshold: initialThreshold, initialTotal: initialTotal}
}

// StateAt reduces the current journal for ns. Concurrent calls for the same
// namespace and commitment share one Reduce invocation; calls that arrive
// while the journal is being mutated naturally key off the post-mutation
// commitment and so never observe a stale coalesced result.
func (p *Projector) StateAt(ns fact.NS) (State, error) {
	j, ok := p.store.Get(ns)
	if !ok {
		return emptyState(p.initialThreshold, p.initialTotal), nil
	}

	key := fmt.Sprintf("%s@%s", ns, j.Commitment())
	v, err, _ := p.g.Do(key, func() (interface{}, error) {
		return Reduce(j, p.initialThreshold, p.initialTotal)
	})
	if err != nil {
		return State{}, err
	}
	return v.(State), nil
}
