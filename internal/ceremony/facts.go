package ceremony

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/hxrts/aura/internal/clock"
	"github.com/hxrts/aura/internal/fact"
	"github.com/hxrts/aura/internal/ids"
)

// StandardCeremonyFactKind tags the canonical ceremony fact set shared
// across every ceremony Kind (spec §4.5: "Every transition is itself a
// fact"), grounded on the original implementation's StandardCeremonyFact
// enum (aura-core/ceremony/facts.rs).
type StandardCeremonyFactKind uint8

const (
	FactInitiated StandardCeremonyFactKind = iota + 1
	FactAcceptanceReceived
	FactCommitted
	FactAborted
	FactSuperseded
)

// TypeIDStandardCeremonyFact is the domain-generic fact-type ID under which
// ceremony transitions are recorded.
const TypeIDStandardCeremonyFact = "ceremony.standard_fact"

// StandardCeremonyFact is one recorded ceremony state transition.
type StandardCeremonyFact struct {
	CeremonyID  ids.CeremonyId
	Kind        StandardCeremonyFactKind
	TimestampMs uint64

	// Committed
	ConsensusID ids.Hash32
	CommittedAt uint64

	// Aborted
	AbortReason string

	// Superseded
	SupersededBy     ids.CeremonyId
	SupersessionKind SupersessionReason
}

// Encode serializes a StandardCeremonyFact (spec §6 canonical-encoding
// discipline: fixed fields then a tag-selected variant body).
func Encode(f StandardCeremonyFact) []byte {
	var buf bytes.Buffer
	buf.Write(f.CeremonyID.Bytes())
	buf.WriteByte(byte(f.Kind))
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], f.TimestampMs)
	buf.Write(ts[:])

	switch f.Kind {
	case FactCommitted:
		buf.Write(f.ConsensusID.Bytes())
		var c [8]byte
		binary.BigEndian.PutUint64(c[:], f.CommittedAt)
		buf.Write(c[:])
	case FactAborted:
		reason := []byte(f.AbortReason)
		var l [binary.MaxVarintLen64]byte
		n := binary.PutUvarint(l[:], uint64(len(reason)))
		buf.Write(l[:n])
		buf.Write(reason)
	case FactSuperseded:
		buf.Write(f.SupersededBy.Bytes())
		buf.WriteByte(byte(f.SupersessionKind))
	}
	return buf.Bytes()
}

// Decode parses bytes written by Encode.
func Decode(b []byte) (StandardCeremonyFact, error) {
	if len(b) < 16+1+8 {
		return StandardCeremonyFact{}, fmt.Errorf("ceremony: malformed standard fact (%d bytes)", len(b))
	}
	id, err := ids.ID128FromBytes(b[0:16])
	if err != nil {
		return StandardCeremonyFact{}, err
	}
	kind := StandardCeremonyFactKind(b[16])
	ts := binary.BigEndian.Uint64(b[17:25])
	rest := b[25:]

	out := StandardCeremonyFact{CeremonyID: ids.CeremonyId(id), Kind: kind, TimestampMs: ts}
	switch kind {
	case FactCommitted:
		if len(rest) != 32+8 {
			return StandardCeremonyFact{}, fmt.Errorf("ceremony: malformed committed fact body")
		}
		consensusID, err := ids.Hash32FromBytes(rest[0:32])
		if err != nil {
			return StandardCeremonyFact{}, err
		}
		out.ConsensusID = consensusID
		out.CommittedAt = binary.BigEndian.Uint64(rest[32:40])
	case FactAborted:
		n, nbytes := binary.Uvarint(rest)
		if nbytes <= 0 {
			return StandardCeremonyFact{}, fmt.Errorf("ceremony: malformed aborted fact reason length")
		}
		reasonBytes := rest[nbytes:]
		if uint64(len(reasonBytes)) < n {
			return StandardCeremonyFact{}, fmt.Errorf("ceremony: truncated aborted fact reason")
		}
		out.AbortReason = string(reasonBytes[:n])
	case FactSuperseded:
		if len(rest) != 16+1 {
			return StandardCeremonyFact{}, fmt.Errorf("ceremony: malformed superseded fact body")
		}
		by, err := ids.ID128FromBytes(rest[0:16])
		if err != nil {
			return StandardCeremonyFact{}, err
		}
		out.SupersededBy = ids.CeremonyId(by)
		out.SupersessionKind = SupersessionReason(rest[16])
	}
	return out, nil
}

// NewFact wraps a StandardCeremonyFact as a domain-generic fact hosted in
// the given namespace (an authority or context journal, depending on Kind).
func NewFact(ns fact.NS, order clock.OrderTime, ts clock.TimeStamp, f StandardCeremonyFact) fact.Fact {
	return fact.Fact{
		Order:     order,
		Timestamp: ts,
		Content: fact.Content{
			Kind: fact.ContentDomainGeneric,
			Generic: &fact.DomainGenericContent{
				Namespace: ns,
				TypeID:    TypeIDStandardCeremonyFact,
				Payload:   Encode(f),
			},
		},
	}
}

// Status is the reduced projection of a ceremony's fact sequence (spec
// §4.5 "reducers project these into CeremonyStatus for views").
type Status struct {
	CeremonyID ids.CeremonyId
	State      State

	ConsensusID ids.Hash32
	CommittedAt uint64

	AbortReason string

	SupersededBy     ids.CeremonyId
	SupersessionKind SupersessionReason
}

// Reduce folds a sequence of StandardCeremonyFacts (already in canonical
// journal order) into a Status. Facts for ceremonies other than id are
// ignored, so callers can pass a whole journal's decoded ceremony facts.
func Reduce(id ids.CeremonyId, facts []StandardCeremonyFact) Status {
	status := Status{CeremonyID: id, State: StatePreparing}
	for _, f := range facts {
		if f.CeremonyID != id {
			continue
		}
		switch f.Kind {
		case FactInitiated:
			status.State = StatePreparing
		case FactAcceptanceReceived:
			status.State = StateAwaitingEpoch
		case FactCommitted:
			status.State = StateCommitted
			status.ConsensusID = f.ConsensusID
			status.CommittedAt = f.CommittedAt
		case FactAborted:
			status.State = StateAborted
			status.AbortReason = f.AbortReason
		case FactSuperseded:
			status.State = StateSuperseded
			status.SupersededBy = f.SupersededBy
			status.SupersessionKind = f.SupersessionKind
		}
	}
	return status
}
