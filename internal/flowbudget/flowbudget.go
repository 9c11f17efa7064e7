// Package flowbudget implements the per-(context, peer) flow budget
// accounting of spec §3/§4.3 (component C3): a CRDT-mergeable spend counter
// gating information release, plus the atomic charge algorithm and signed
// Receipt format.
package flowbudget

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/hxrts/aura/crypto"
	"github.com/hxrts/aura/internal/aeerrors"
	"github.com/hxrts/aura/internal/ids"
)

// Budget is the per-(context, peer) record of spec §3: {limit, spent,
// epoch} where spent <= limit when limit > 0. A zero limit means
// unlimited.
type Budget struct {
	Limit uint64
	Spent uint64
	Epoch uint64
}

// Headroom returns how much more may be spent before hitting the limit, or
// true unlimited when Limit is 0.
func (b Budget) Headroom() (amount uint64, unlimited bool) {
	if b.Limit == 0 {
		return 0, true
	}
	if b.Spent >= b.Limit {
		return 0, false
	}
	return b.Limit - b.Spent, false
}

// Merge implements the CRDT merge rule of spec §3: spent := max(spent_a,
// spent_b) within the same epoch; a higher epoch supersedes entirely.
func Merge(a, b Budget) Budget {
	if a.Epoch != b.Epoch {
		if a.Epoch > b.Epoch {
			return a
		}
		return b
	}
	out := a
	if b.Spent > out.Spent {
		out.Spent = b.Spent
	}
	if b.Limit > out.Limit {
		out.Limit = b.Limit
	}
	return out
}

// key identifies a (ContextId, AuthorityId) budget record.
type key struct {
	Context ids.ContextId
	Peer    ids.AuthorityId
}

// Store holds flow budgets under its own mutex, not the journal's lock: a
// charge and the fact append that follows it are separate steps, and the
// guard chain refunds the charge when the append fails.
type Store struct {
	mu      sync.Mutex
	budgets map[key]Budget
}

// NewStore returns an empty budget store.
func NewStore() *Store {
	return &Store{budgets: make(map[key]Budget)}
}

// Get returns the current budget for (ctx, peer), or the zero-spend budget
// at epoch 0 if none has been set.
func (s *Store) Get(ctx ids.ContextId, peer ids.AuthorityId) Budget {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.budgets[key{ctx, peer}]
}

// Set installs a budget directly (used when initializing limits, or when
// merging a peer's replica via Merge).
func (s *Store) Set(ctx ids.ContextId, peer ids.AuthorityId, b Budget) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budgets[key{ctx, peer}] = b
}

// MergeFrom merges an observed remote budget into the local one using the
// CRDT rule above.
func (s *Store) MergeFrom(ctx ids.ContextId, peer ids.AuthorityId, remote Budget) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{ctx, peer}
	s.budgets[k] = Merge(s.budgets[k], remote)
}

// Receipt is the signed proof of a flow-budget charge (spec §6): opaque to
// the journal (receipts are not themselves facts) but consumable by
// downstream auditors.
type Receipt struct {
	ContextID      ids.ContextId
	LocalAuthority ids.AuthorityId
	Peer           ids.AuthorityId
	Epoch          uint64
	Cost           uint32
	Nonce          [8]byte
	Fingerprint    ids.Hash32
	Signature      []byte
}

// Encode produces the canonical Receipt serialization (spec §6).
func (r Receipt) Encode() []byte {
	buf := make([]byte, 0, 16+16+32+8+4+8+32+len(r.Signature))
	buf = append(buf, r.ContextID.Bytes()...)
	buf = append(buf, r.LocalAuthority.Bytes()...)
	buf = append(buf, r.Peer.Bytes()...)
	var u64 [8]byte
	binary.BigEndian.PutUint64(u64[:], r.Epoch)
	buf = append(buf, u64[:]...)
	var u32 [4]byte
	binary.BigEndian.PutUint32(u32[:], r.Cost)
	buf = append(buf, u32[:]...)
	buf = append(buf, r.Nonce[:]...)
	buf = append(buf, r.Fingerprint.Bytes()...)
	buf = append(buf, r.Signature...)
	return buf
}

func (r Receipt) signingBytes() []byte {
	buf := make([]byte, 0, 16+16+32+8+4+8+32)
	buf = append(buf, r.ContextID.Bytes()...)
	buf = append(buf, r.LocalAuthority.Bytes()...)
	buf = append(buf, r.Peer.Bytes()...)
	var u64 [8]byte
	binary.BigEndian.PutUint64(u64[:], r.Epoch)
	buf = append(buf, u64[:]...)
	var u32 [4]byte
	binary.BigEndian.PutUint32(u32[:], r.Cost)
	buf = append(buf, u32[:]...)
	buf = append(buf, r.Nonce[:]...)
	buf = append(buf, r.Fingerprint.Bytes()...)
	return buf
}

// Charge performs the atomic read-modify-write of spec §4.3: check
// headroom, deduct cost, return a receipt (or fail with BudgetExceeded).
// signer signs the resulting receipt; nonce must be caller-supplied
// (typically from the Random effect) so receipts are unlinkable across
// charges without a shared counter.
func (s *Store) Charge(ctx ids.ContextId, local, peer ids.AuthorityId, epoch uint64, cost uint32, nonce [8]byte, signer func([]byte) []byte) (Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{ctx, peer}
	budget := s.budgets[k]
	if budget.Epoch == 0 && budget.Limit == 0 && budget.Spent == 0 {
		budget.Epoch = epoch
	}

	headroom, unlimited := budget.Headroom()
	if !unlimited && uint64(cost) > headroom {
		return Receipt{}, aeerrors.New(aeerrors.BudgetExceeded,
			fmt.Sprintf("flowbudget: required %d, available %d", cost, headroom))
	}

	budget.Spent += uint64(cost) // saturating in practice: bounded by the headroom check above
	s.budgets[k] = budget

	fingerprint := crypto.Blake3(append(ctx.Bytes(), peer.Bytes()...))
	receipt := Receipt{
		ContextID: ctx, LocalAuthority: local, Peer: peer,
		Epoch: epoch, Cost: cost, Nonce: nonce, Fingerprint: fingerprint,
	}
	if signer != nil {
		receipt.Signature = signer(receipt.signingBytes())
	}
	return receipt, nil
}

// Refund reverses a prior Charge of cost against (ctx, peer) at epoch. The
// guard chain calls this when the journal append following a successful
// charge fails, so the charge never remains as observable progress without
// its corresponding fact (spec §4.3, §7: no partial progress). A no-op if
// the budget has since rotated past epoch, since the charge no longer
// applies to the current record.
func (s *Store) Refund(ctx ids.ContextId, peer ids.AuthorityId, epoch uint64, cost uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{ctx, peer}
	budget := s.budgets[k]
	if budget.Epoch != epoch {
		return
	}
	if uint64(cost) > budget.Spent {
		budget.Spent = 0
	} else {
		budget.Spent -= uint64(cost)
	}
	s.budgets[k] = budget
}
