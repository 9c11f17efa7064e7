package authority

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"
	"fmt"

	"github.com/hxrts/aura/crypto"
	"github.com/hxrts/aura/internal/ids"
)

// EncodeAttestedOp serializes an AttestedOp for storage as a domain-generic
// fact payload (AttestedOp format, spec §6):
//
//	pre_commit(32) || op_kind(1) || op_body || new_commit(32) || aggregate_signature
func EncodeAttestedOp(op AttestedOp) []byte {
	var buf bytes.Buffer
	buf.Write(op.PreCommit.Bytes())
	buf.Write(op.Op.encode())
	buf.Write(op.NewCommit.Bytes())

	var countBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(countBuf[:], uint64(len(op.Aggregate.Signatures)))
	buf.Write(countBuf[:n])
	for i, sig := range op.Aggregate.Signatures {
		if op.Aggregate.SignerBitmap[i] {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
		n := binary.PutUvarint(countBuf[:], uint64(len(sig)))
		buf.Write(countBuf[:n])
		buf.Write(sig)
	}
	return buf.Bytes()
}

// DecodeAttestedOp is the inverse of EncodeAttestedOp. opKind must be known
// up front by peeking the byte after the 32-byte pre-commit, since TreeOp's
// body length is variable per kind.
func DecodeAttestedOp(b []byte) (AttestedOp, error) {
	r := bytes.NewReader(b)
	var preCommit [32]byte
	if _, err := r.Read(preCommit[:]); err != nil {
		return AttestedOp{}, fmt.Errorf("authority: read pre_commit: %w", err)
	}
	kindByte, err := r.ReadByte()
	if err != nil {
		return AttestedOp{}, fmt.Errorf("authority: read op kind: %w", err)
	}
	op := TreeOp{Kind: OpKind(kindByte)}
	switch op.Kind {
	case OpAddLeaf:
		var devID [16]byte
		if _, err := r.Read(devID[:]); err != nil {
			return AttestedOp{}, fmt.Errorf("authority: read device id: %w", err)
		}
		did, err := ids.DeviceIdFromBytes(devID[:])
		if err != nil {
			return AttestedOp{}, err
		}
		pub := make(ed25519.PublicKey, ed25519.PublicKeySize)
		if _, err := r.Read(pub); err != nil {
			return AttestedOp{}, fmt.Errorf("authority: read pubkey: %w", err)
		}
		op.DeviceID = did
		op.DevicePubKey = pub
	case OpRemoveLeaf:
		var leafID [16]byte
		if _, err := r.Read(leafID[:]); err != nil {
			return AttestedOp{}, fmt.Errorf("authority: read leaf id: %w", err)
		}
		lid, err := ids.DeviceIdFromBytes(leafID[:])
		if err != nil {
			return AttestedOp{}, err
		}
		var reasonBuf [4]byte
		if _, err := r.Read(reasonBuf[:]); err != nil {
			return AttestedOp{}, fmt.Errorf("authority: read reason code: %w", err)
		}
		op.LeafID = lid
		op.ReasonCode = binary.BigEndian.Uint32(reasonBuf[:])
	case OpChangePolicy:
		idxByte, err := r.ReadByte()
		if err != nil {
			return AttestedOp{}, fmt.Errorf("authority: read node index: %w", err)
		}
		thByte, err := r.ReadByte()
		if err != nil {
			return AttestedOp{}, fmt.Errorf("authority: read threshold: %w", err)
		}
		totByte, err := r.ReadByte()
		if err != nil {
			return AttestedOp{}, fmt.Errorf("authority: read total: %w", err)
		}
		op.NodeIdx = NodeIndex(idxByte)
		op.NewPolicy = Policy{Threshold: int(thByte), Total: int(totByte)}
	case OpRotateEpoch:
		countByte, err := r.ReadByte()
		if err != nil {
			return AttestedOp{}, fmt.Errorf("authority: read affected-node count: %w", err)
		}
		affected := make([]NodeIndex, countByte)
		for i := range affected {
			b, err := r.ReadByte()
			if err != nil {
				return AttestedOp{}, fmt.Errorf("authority: read affected node: %w", err)
			}
			affected[i] = NodeIndex(b)
		}
		op.AffectedNodes = affected
	default:
		return AttestedOp{}, fmt.Errorf("authority: unknown op kind %d", kindByte)
	}

	var newCommit [32]byte
	if _, err := r.Read(newCommit[:]); err != nil {
		return AttestedOp{}, fmt.Errorf("authority: read new_commit: %w", err)
	}
	nc, err := ids.Hash32FromBytes(newCommit[:])
	if err != nil {
		return AttestedOp{}, err
	}
	pc, err := ids.Hash32FromBytes(preCommit[:])
	if err != nil {
		return AttestedOp{}, err
	}

	count, err := binary.ReadUvarint(r)
	if err != nil {
		return AttestedOp{}, fmt.Errorf("authority: read signature count: %w", err)
	}
	agg := crypto.AggregateSignature{
		SignerBitmap: make([]bool, count),
		Signatures:   make([][]byte, count),
	}
	for i := uint64(0); i < count; i++ {
		present, err := r.ReadByte()
		if err != nil {
			return AttestedOp{}, fmt.Errorf("authority: read bitmap entry: %w", err)
		}
		agg.SignerBitmap[i] = present == 1
		sigLen, err := binary.ReadUvarint(r)
		if err != nil {
			return AttestedOp{}, fmt.Errorf("authority: read signature length: %w", err)
		}
		sig := make([]byte, sigLen)
		if sigLen > 0 {
			if _, err := r.Read(sig); err != nil {
				return AttestedOp{}, fmt.Errorf("authority: read signature: %w", err)
			}
		}
		agg.Signatures[i] = sig
	}

	return AttestedOp{PreCommit: pc, Op: op, NewCommit: nc, Aggregate: agg}, nil
}
