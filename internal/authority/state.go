package authority

import (
	"github.com/hxrts/aura/internal/clock"
	"github.com/hxrts/aura/internal/fact"
	"github.com/hxrts/aura/internal/ids"
)

// State is the reduction result of an authority-namespace journal (spec §3
// "AuthorityState"): device set, threshold parameters, current epoch, and
// ratchet-tree root commitment.
type State struct {
	Devices   []ids.DeviceId
	Threshold int
	Total     int
	Epoch     uint64
	Commitment ids.Hash32
}

// HasDevice reports whether d is an active member.
func (s State) HasDevice(d ids.DeviceId) bool {
	for _, dev := range s.Devices {
		if dev == d {
			return true
		}
	}
	return false
}

// TypeIDAttestedOp is the fact-type ID under which AttestedOps are
// recorded as domain-generic facts in an authority journal.
const TypeIDAttestedOp = "authority.attested_op"

// NewAttestedOpFact wraps an AttestedOp as the domain-generic fact appended
// to an authority journal once the guard chain has accepted the mutation.
func NewAttestedOpFact(authorityID ids.AuthorityId, order clock.OrderTime, ts clock.TimeStamp, op AttestedOp) fact.Fact {
	return fact.Fact{
		Order:     order,
		Timestamp: ts,
		Content: fact.Content{
			Kind: fact.ContentDomainGeneric,
			Generic: &fact.DomainGenericContent{
				Namespace: fact.AuthorityNamespace(authorityID),
				TypeID:    TypeIDAttestedOp,
				Payload:   EncodeAttestedOp(op),
			},
		},
	}
}
