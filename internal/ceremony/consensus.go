package ceremony

import (
	aecrypto "github.com/hxrts/aura/crypto"
	"github.com/hxrts/aura/internal/ids"
)

// RunConsensus executes the small consensus sub-protocol every
// binding-mutating ceremony runs against its Prestate (spec §4.5): a
// committed ConsensusProof is only produced if the aggregate signature over
// the prestate's folded hash meets the group's threshold. Grounded on the
// original implementation's run_consensus handoff
// (aura-consensus/dkg/ceremony.rs: "let consensus_commit =
// run_consensus(prestate, &commit, params, ...)").
func RunConsensus(prestate Prestate, group aecrypto.ThresholdGroup, aggregate aecrypto.AggregateSignature, blake3 func([]byte) ids.Hash32) (ConsensusProof, error) {
	hash := prestate.Hash(blake3)
	if !group.VerifyAggregate(hash.Bytes(), aggregate) {
		return ConsensusProof{}, errConsensusNotReached{threshold: group.Threshold}
	}
	var signers []ids.AuthorityId
	consensusID := blake3(append(append([]byte(nil), hash.Bytes()...), flattenAggregate(aggregate)...))
	return ConsensusProof{
		ConsensusID: consensusID,
		Prestate:    prestate,
		Signers:     signers,
		Aggregate:   flattenAggregate(aggregate),
	}, nil
}

func flattenAggregate(agg aecrypto.AggregateSignature) []byte {
	var out []byte
	for i, present := range agg.SignerBitmap {
		if present {
			out = append(out, byte(1))
			out = append(out, agg.Signatures[i]...)
		} else {
			out = append(out, byte(0))
		}
	}
	return out
}

type errConsensusNotReached struct{ threshold int }

func (e errConsensusNotReached) Error() string {
	return "ceremony: consensus aggregate signature below threshold"
}
