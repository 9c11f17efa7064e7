package authority

import (
	"fmt"

	"github.com/hxrts/aura/internal/fact"
	"github.com/hxrts/aura/internal/journal"
)

// Reduce is the pure function Journal -> Result<AuthorityState> of spec
// §4.1/§4.2. It is deterministic: given the same journal contents, it
// produces byte-for-byte identical results on every invocation (spec §8
// invariant 4), and an empty journal reduces to the identity authority
// state (spec §8 boundary behavior).
//
// Facts already accepted into the journal are treated as pre-validated
// mutations (signature verification happens once, at proposal time, via
// RatchetTree.ApplyAttestedOp — see internal/ceremony's
// FinalizeEpochRotation). Reduction itself never re-verifies signatures; doing so
// here would make reduction depend on which group key was active at each
// historical point, which is exactly the kind of non-pure, order-sensitive
// computation spec §4.1 rules out. Conflicting device adds/removes are
// resolved by canonical fact ordering (OrderTime, then content-hash) with
// structurally-redundant mutations absorbed as no-ops (see
// RatchetTree.applyForReduce), realizing spec §4.1's "highest epoch, then
// fact order" tie-break.
func Reduce(j *journal.Journal, initialThreshold, initialTotal int) (State, error) {
	if j == nil {
		return emptyState(initialThreshold, initialTotal), nil
	}
	ns := j.Namespace()
	if ns.Kind != fact.NamespaceAuthority {
		return State{}, fmt.Errorf("authority: reduce called on non-authority namespace %s", ns)
	}

	tree := NewRatchetTree(initialThreshold, initialTotal)
	facts := j.Facts() // already canonically ordered

	for _, f := range facts {
		if f.Content.Kind != fact.ContentDomainGeneric || f.Content.Generic == nil {
			continue
		}
		g := f.Content.Generic
		if g.TypeID != TypeIDAttestedOp {
			continue // unknown/foreign type-ids produce no deltas, spec §9
		}
		if !g.Namespace.Equal(ns) {
			continue
		}
		op, err := DecodeAttestedOp(g.Payload)
		if err != nil {
			// Serialization errors are fatal per spec §7: reduction stops
			// at the first undecodable fact and returns the error with no
			// state.
			return State{}, fmt.Errorf("authority: decode attested op at order %s: %w", f.Order, err)
		}
		tree.applyForReduce(op.Op)
	}

	policy := tree.RootPolicy()
	return State{
		Devices:    tree.ActiveDevices(),
		Threshold:  policy.Threshold,
		Total:      policy.Total,
		Epoch:      tree.Epoch,
		Commitment: tree.Commitment(),
	}, nil
}

func emptyState(threshold, total int) State {
	tree := NewRatchetTree(threshold, total)
	return State{
		Threshold:  threshold,
		Total:      total,
		Epoch:      0,
		Commitment: tree.Commitment(),
	}
}
