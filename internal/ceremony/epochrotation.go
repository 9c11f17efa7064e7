package ceremony

import (
	"fmt"

	aecrypto "github.com/hxrts/aura/crypto"
	"github.com/hxrts/aura/internal/authority"
	"github.com/hxrts/aura/internal/ids"
)

// EpochRotationProposal requests a new ratchet-tree epoch for an authority,
// carried out by coordinator + participants (spec §4.5 "Epoch rotation":
// "atomic with respect to other mutations — old epoch finalizes before new
// becomes active").
type EpochRotationProposal struct {
	Authority   ids.AuthorityId
	Affected    []authority.NodeIndex
	Coordinator ids.AuthorityId
}

// FinalizeEpochRotation applies the rotation to tree once the ceremony's
// Record has reached threshold, producing the AttestedOp that the guard
// chain appends to the authority journal. The caller supplies group and the
// aggregate signature gathered over the course of the ceremony's signing
// round (see SigningSession), so the epoch only becomes active once a
// quorum of the prior epoch's devices has attested to it — "old epoch
// finalizes before new becomes active" is enforced by RatchetTree.apply's
// sequential pre-state check, not by this function.
func FinalizeEpochRotation(proposal EpochRotationProposal, record *Record, tree *authority.RatchetTree, group aecrypto.ThresholdGroup, aggregate aecrypto.AggregateSignature) (ids.Hash32, authority.AttestedOp, error) {
	if !record.ThresholdReached() {
		return ids.Hash32{}, authority.AttestedOp{}, fmt.Errorf("ceremony: epoch rotation %s has not reached threshold", record.ID)
	}
	op := authority.RotateEpoch(proposal.Affected)
	preCommit := tree.Commitment()

	working := tree.Clone()
	attested := authority.AttestedOp{PreCommit: preCommit, Op: op, Aggregate: aggregate}

	// Compute the expected new commitment by applying the op to a scratch
	// clone, then package the fully-formed AttestedOp with that as
	// NewCommit so ApplyAttestedOp's own recomputation check passes when it
	// is applied to the live tree below.
	if err := applyRotateForCommitment(working, op); err != nil {
		return ids.Hash32{}, authority.AttestedOp{}, err
	}
	attested.NewCommit = working.Commitment()

	newCommit, err := tree.ApplyAttestedOp(group, attested)
	if err != nil {
		return ids.Hash32{}, authority.AttestedOp{}, fmt.Errorf("ceremony: apply epoch rotation: %w", err)
	}
	return newCommit, attested, nil
}

// applyRotateForCommitment mirrors RatchetTree.apply's OpRotateEpoch case on
// a scratch clone so FinalizeEpochRotation can precompute NewCommit before
// calling the strict ApplyAttestedOp path on the real tree. RotateEpoch
// touches no node payload, so this is just the epoch-increment side effect;
// kept as its own tiny helper rather than exporting apply itself, which
// the authority package deliberately keeps unexported (mutation is only supposed to
// happen via ApplyAttestedOp's checked path).
func applyRotateForCommitment(tree *authority.RatchetTree, op authority.TreeOp) error {
	_ = op
	tree.Epoch++
	return nil
}
