package ceremony

import (
	"fmt"

	aecrypto "github.com/hxrts/aura/crypto"
	"github.com/hxrts/aura/internal/ids"
)

// SigningSession drives a threshold (FROST-style) signing ceremony's two
// rounds (spec §4.5: "nonce commit -> signature share -> aggregate -> single
// signature fact with signer bitmap"). The interactive nonce math itself is
// out of scope (spec §1 Non-goals: "full FROST protocol implementation");
// this models the round bookkeeping and the aggregate-verification handoff
// into crypto.ThresholdGroup, which is the piece the rest of Aura depends on
// (ratchet tree AttestedOps, ceremony commits).
type SigningSession struct {
	Group   aecrypto.ThresholdGroup
	Message []byte

	nonceCommits map[ids.AuthorityId][]byte
	shares       map[ids.AuthorityId][]byte
}

// NewSigningSession starts round 1 bookkeeping for signing msg under group.
func NewSigningSession(group aecrypto.ThresholdGroup, msg []byte) *SigningSession {
	return &SigningSession{
		Group:        group,
		Message:      msg,
		nonceCommits: make(map[ids.AuthorityId][]byte),
		shares:       make(map[ids.AuthorityId][]byte),
	}
}

// RecordNonceCommit stores round 1's per-signer nonce commitment.
func (s *SigningSession) RecordNonceCommit(signer ids.AuthorityId, commit []byte) {
	s.nonceCommits[signer] = commit
}

// RecordShare stores round 2's per-signer signature share. A share is, in
// this simplified single-signer-per-slot model, a full Ed25519 signature
// over Message; aggregation counts distinct valid shares against threshold
// rather than combining partial scalars, matching crypto.ThresholdGroup's
// verification contract.
func (s *SigningSession) RecordShare(signer ids.AuthorityId, share []byte) {
	s.shares[signer] = share
}

// Ready reports whether enough shares have arrived to attempt aggregation.
func (s *SigningSession) Ready() bool {
	return len(s.shares) >= s.Group.Threshold
}

// Aggregate builds the AggregateSignature bitmap-indexed to Group.Signers
// and verifies it meets threshold, returning an error if short.
func (s *SigningSession) Aggregate(signerIndex map[ids.AuthorityId]int) (aecrypto.AggregateSignature, error) {
	agg := aecrypto.AggregateSignature{
		SignerBitmap: make([]bool, len(s.Group.Signers)),
		Signatures:   make([][]byte, len(s.Group.Signers)),
	}
	for signer, share := range s.shares {
		idx, ok := signerIndex[signer]
		if !ok || idx < 0 || idx >= len(s.Group.Signers) {
			return aecrypto.AggregateSignature{}, fmt.Errorf("ceremony: signer %s has no index in signer set", signer)
		}
		agg.SignerBitmap[idx] = true
		agg.Signatures[idx] = share
	}
	if !s.Group.VerifyAggregate(s.Message, agg) {
		return aecrypto.AggregateSignature{}, fmt.Errorf("ceremony: aggregate signature does not meet threshold %d", s.Group.Threshold)
	}
	return agg, nil
}

// TypeIDSignatureFact is the fact-type ID a committed aggregate signature is
// recorded under.
const TypeIDSignatureFact = "ceremony.threshold_signature"
