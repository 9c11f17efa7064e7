// Package ceremony implements the Ceremony Runtime (spec §4.5, component
// C5): multi-party state machines that consume peer messages, drive local
// effect calls, and terminate by appending a consensus-signed commit fact to
// the relevant journal. Grounded on the original Rust implementation's
// aura-core/ceremony (StandardCeremonyFact, SupersessionReason) and
// aura-consensus/dkg/ceremony.rs (config validation + consensus handoff
// shape), adapted to Go's explicit-state-machine idiom.
package ceremony

import (
	"fmt"
	"sync"
	"time"

	"github.com/hxrts/aura/internal/clock"
	"github.com/hxrts/aura/internal/ids"
)

// State is one node of the ceremony state machine (spec §4.5).
type State int

const (
	StatePreparing State = iota + 1
	StateAwaitingEpoch
	StateCommitted
	StateAborted
	StateSuperseded
)

func (s State) String() string {
	switch s {
	case StatePreparing:
		return "preparing"
	case StateAwaitingEpoch:
		return "awaiting_epoch"
	case StateCommitted:
		return "committed"
	case StateAborted:
		return "aborted"
	case StateSuperseded:
		return "superseded"
	default:
		return "unknown"
	}
}

func (s State) Terminal() bool {
	return s == StateCommitted || s == StateAborted || s == StateSuperseded
}

// Kind distinguishes the supported ceremony protocols (spec §4.5).
type Kind int

const (
	KindDKG Kind = iota + 1
	KindThresholdSigning
	KindGuardian
	KindRecovery
	KindEpochRotation
)

func (k Kind) String() string {
	switch k {
	case KindDKG:
		return "dkg"
	case KindThresholdSigning:
		return "threshold_signing"
	case KindGuardian:
		return "guardian"
	case KindRecovery:
		return "recovery"
	case KindEpochRotation:
		return "epoch_rotation"
	default:
		return "unknown"
	}
}

// SupersessionReason explains why a ceremony transitioned to Superseded
// (spec §4.5).
type SupersessionReason int

const (
	ReasonPrestateStale SupersessionReason = iota + 1
	ReasonNewerRequest
	ReasonExplicitCancel
	ReasonTimeout
	ReasonPrecedence
)

func (r SupersessionReason) String() string {
	switch r {
	case ReasonPrestateStale:
		return "prestate_stale"
	case ReasonNewerRequest:
		return "newer_request"
	case ReasonExplicitCancel:
		return "explicit_cancel"
	case ReasonTimeout:
		return "timeout"
	case ReasonPrecedence:
		return "precedence"
	default:
		return "unknown"
	}
}

// Prestate is the tuple of commitments a ceremony's consensus sub-protocol
// runs against (spec §4.5): authority ratchet-tree commitments plus the
// hosting context journal's commitment, captured at proposal time so a
// fresher proposal can be detected by hash mismatch (supersession).
type Prestate struct {
	AuthorityCommitments map[ids.AuthorityId]ids.Hash32
	ContextCommitment     ids.Hash32
}

// Hash folds the prestate into a single fingerprint for stale-proposal
// comparisons, by feeding the sorted authority commitments plus the context
// commitment through blake3.
func (p Prestate) Hash(blake3 func([]byte) ids.Hash32) ids.Hash32 {
	authorities := make([]ids.AuthorityId, 0, len(p.AuthorityCommitments))
	for a := range p.AuthorityCommitments {
		authorities = append(authorities, a)
	}
	ids.SortAuthorityIds(authorities)
	var buf []byte
	for _, a := range authorities {
		buf = append(buf, a.Bytes()...)
		buf = append(buf, p.AuthorityCommitments[a].Bytes()...)
	}
	buf = append(buf, p.ContextCommitment.Bytes()...)
	return blake3(buf)
}

// Equal compares two prestates by their folded hash.
func (p Prestate) Equal(other Prestate, blake3 func([]byte) ids.Hash32) bool {
	return p.Hash(blake3).Compare(other.Hash(blake3)) == 0
}

// ConsensusProof is the result of the small consensus sub-protocol every
// binding-mutating ceremony runs against its Prestate (spec §4.5). Reducers
// reject any binding fact whose proof does not verify.
type ConsensusProof struct {
	ConsensusID ids.Hash32
	Prestate    Prestate
	Signers     []ids.AuthorityId
	Aggregate   []byte // opaque aggregate signature bytes, verified by the caller's ThresholdGroup
}

// Participant is one party to a ceremony, addressed by authority id and
// network address.
type Participant struct {
	Authority ids.AuthorityId
	Addr      string
}

// Record is the shared state every ceremony instance carries, regardless of
// Kind (spec §4.5's state-machine diagram plus terminal-state metadata).
type Record struct {
	mu sync.RWMutex

	ID           ids.CeremonyId
	Kind         Kind
	Participants []Participant
	Threshold    int
	Prestate     Prestate
	Deadline     uint64 // physical-time millis; 0 means no deadline

	state     State
	consensus *ConsensusProof
	commitAt  *clock.TimeStamp
	abortedReason string
	supersededBy  ids.CeremonyId
	supersededReason SupersessionReason

	responses map[ids.AuthorityId]Response
}

// Response is one participant's reply to a ceremony proposal.
type Response struct {
	Accept  bool
	Payload []byte // ceremony-specific (dealer package, signature share, guardian accept/decline, ...)
}

// New starts a ceremony record in Preparing.
func New(id ids.CeremonyId, kind Kind, participants []Participant, threshold int, prestate Prestate, deadlineMs uint64) *Record {
	return &Record{
		ID:           id,
		Kind:         kind,
		Participants: participants,
		Threshold:    threshold,
		Prestate:     prestate,
		Deadline:     deadlineMs,
		state:        StatePreparing,
		responses:    make(map[ids.AuthorityId]Response),
	}
}

func (r *Record) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// BeginAwaitingEpoch transitions Preparing -> AwaitingEpoch once the local
// proposal + prestate has been broadcast.
func (r *Record) BeginAwaitingEpoch() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StatePreparing {
		return fmt.Errorf("ceremony: %s cannot enter awaiting_epoch from %s", r.ID, r.state)
	}
	r.state = StateAwaitingEpoch
	return nil
}

// RecordResponse stores a participant's response while AwaitingEpoch,
// returning the current accept count.
func (r *Record) RecordResponse(who ids.AuthorityId, resp Response) (acceptCount int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateAwaitingEpoch {
		return 0, fmt.Errorf("ceremony: %s not awaiting responses (state %s)", r.ID, r.state)
	}
	r.responses[who] = resp
	for _, resp := range r.responses {
		if resp.Accept {
			acceptCount++
		}
	}
	return acceptCount, nil
}

// Responses returns a snapshot of recorded responses.
func (r *Record) Responses() map[ids.AuthorityId]Response {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[ids.AuthorityId]Response, len(r.responses))
	for k, v := range r.responses {
		out[k] = v
	}
	return out
}

// ThresholdReached reports whether enough accepting responses have arrived.
func (r *Record) ThresholdReached() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	accepted := 0
	for _, resp := range r.responses {
		if resp.Accept {
			accepted++
		}
	}
	return accepted >= r.Threshold
}

// Commit transitions AwaitingEpoch -> Committed, recording the consensus
// proof and wall-clock commit time.
func (r *Record) Commit(proof ConsensusProof, at clock.TimeStamp) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateAwaitingEpoch {
		return fmt.Errorf("ceremony: %s cannot commit from %s", r.ID, r.state)
	}
	r.state = StateCommitted
	r.consensus = &proof
	r.commitAt = &at
	return nil
}

// Abort transitions Preparing or AwaitingEpoch -> Aborted.
func (r *Record) Abort(reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Terminal() {
		return fmt.Errorf("ceremony: %s already terminal (%s)", r.ID, r.state)
	}
	r.state = StateAborted
	r.abortedReason = reason
	return nil
}

// Supersede transitions Preparing or AwaitingEpoch -> Superseded, per spec §4.5: a fresher
// proposal whose prestate hash matches current reduced state supersedes an
// earlier one whose prestate has gone stale (and related reasons).
func (r *Record) Supersede(by ids.CeremonyId, reason SupersessionReason) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Terminal() {
		return fmt.Errorf("ceremony: %s already terminal (%s)", r.ID, r.state)
	}
	r.state = StateSuperseded
	r.supersededBy = by
	r.supersededReason = reason
	return nil
}

// Expired reports whether nowMs has passed the ceremony's deadline.
func (r *Record) Expired(nowMs uint64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Deadline != 0 && nowMs >= r.Deadline
}

// AbortReason returns the recorded abort reason, if any.
func (r *Record) AbortReason() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.abortedReason
}

// ConsensusResult returns the recorded consensus proof and commit time, if
// the ceremony is Committed.
func (r *Record) ConsensusResult() (ConsensusProof, clock.TimeStamp, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.consensus == nil || r.commitAt == nil {
		return ConsensusProof{}, clock.TimeStamp{}, false
	}
	return *r.consensus, *r.commitAt, true
}

// CheckTimeout aborts the ceremony with reason "timeout" if its deadline has
// passed while not yet terminal (spec §5 "Timeouts").
func (r *Record) CheckTimeout(nowMs uint64) bool {
	if r.Expired(nowMs) && !r.State().Terminal() {
		_ = r.Abort("timeout")
		return true
	}
	return false
}

// deadlineFromNow is a small helper ceremony constructors use to turn a
// relative timeout into an absolute deadline.
func deadlineFromNow(nowMs uint64, timeout time.Duration) uint64 {
	if timeout <= 0 {
		return 0
	}
	return nowMs + uint64(timeout.Milliseconds())
}
