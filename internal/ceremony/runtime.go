package ceremony

import (
	"fmt"
	"sync"

	"github.com/hxrts/aura/internal/ids"
)

// Runtime tracks every ceremony active on this process, keyed by
// CeremonyId, and sweeps for deadline expiry (spec §5 "Timeouts": "each
// ceremony carries a physical-time deadline; exceeding it transitions the
// ceremony to Aborted{reason: timeout}"). One Runtime instance is shared
// across all ceremony kinds: it stores the Kind on each Record but does not
// dispatch on it; callers invoke the kind-specific Finalize function
// themselves.
type Runtime struct {
	mu        sync.RWMutex
	ceremonies map[ids.CeremonyId]*Record
}

// NewRuntime returns an empty ceremony tracker.
func NewRuntime() *Runtime {
	return &Runtime{ceremonies: make(map[ids.CeremonyId]*Record)}
}

// Propose registers a new ceremony in Preparing and immediately advances it
// to AwaitingEpoch, modeling "proposal+prestate" having been broadcast
// synchronously with registration (spec §4.5's state diagram).
func (rt *Runtime) Propose(id ids.CeremonyId, kind Kind, participants []Participant, threshold int, prestate Prestate, deadlineMs uint64) (*Record, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if _, exists := rt.ceremonies[id]; exists {
		return nil, fmt.Errorf("ceremony: id %s already in use", id)
	}
	rec := New(id, kind, participants, threshold, prestate, deadlineMs)
	if err := rec.BeginAwaitingEpoch(); err != nil {
		return nil, err
	}
	rt.ceremonies[id] = rec
	return rec, nil
}

// Get returns the record for id, if tracked.
func (rt *Runtime) Get(id ids.CeremonyId) (*Record, bool) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	r, ok := rt.ceremonies[id]
	return r, ok
}

// HandleResponse records a participant's response against the named
// ceremony.
func (rt *Runtime) HandleResponse(id ids.CeremonyId, who ids.AuthorityId, resp Response) (acceptCount int, err error) {
	rec, ok := rt.Get(id)
	if !ok {
		return 0, fmt.Errorf("ceremony: unknown ceremony %s", id)
	}
	return rec.RecordResponse(who, resp)
}

// Supersede marks an earlier ceremony as superseded by a fresher one, per
// spec §4.5's supersession rule; callers detect staleness by comparing
// prestate hashes before calling this.
func (rt *Runtime) Supersede(id, by ids.CeremonyId, reason SupersessionReason) error {
	rec, ok := rt.Get(id)
	if !ok {
		return fmt.Errorf("ceremony: unknown ceremony %s", id)
	}
	return rec.Supersede(by, reason)
}

// Cancel aborts a ceremony with ExplicitCancel semantics (spec §4.5).
func (rt *Runtime) Cancel(id ids.CeremonyId) error {
	rec, ok := rt.Get(id)
	if !ok {
		return fmt.Errorf("ceremony: unknown ceremony %s", id)
	}
	return rec.Abort(ReasonExplicitCancel.String())
}

// SweepTimeouts aborts every non-terminal ceremony whose deadline has
// passed nowMs, returning the ids it aborted. cmd/aurad drives it from a
// one-second ticker loop.
func (rt *Runtime) SweepTimeouts(nowMs uint64) []ids.CeremonyId {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	var aborted []ids.CeremonyId
	for id, rec := range rt.ceremonies {
		if rec.CheckTimeout(nowMs) {
			aborted = append(aborted, id)
		}
	}
	return aborted
}

// Prune removes terminal ceremonies from the tracking table older than
// nothing in particular — callers decide retention policy; this just drops
// every currently-terminal entry, useful after its commit/abort/supersede
// fact has already been durably appended to the hosting journal.
func (rt *Runtime) Prune() {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	for id, rec := range rt.ceremonies {
		if rec.State().Terminal() {
			delete(rt.ceremonies, id)
		}
	}
}

// Active returns the count of non-terminal ceremonies.
func (rt *Runtime) Active() int {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	n := 0
	for _, rec := range rt.ceremonies {
		if !rec.State().Terminal() {
			n++
		}
	}
	return n
}
