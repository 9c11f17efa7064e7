package fact

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/hxrts/aura/internal/clock"
	"github.com/hxrts/aura/internal/ids"
)

// Canonical wire/disk encoding of spec §6:
//
//	Fact := OrderTime(32) || TimeStamp || FactContent
//	TimeStamp := tag(1) || { physical: u64_ms || opt(u64_uncertainty)
//	                        | logical: vector_clock || u64_lamport
//	                        | order: OrderTime }
//	FactContent := tag(1) || variant_body
//
// Aura always stamps a fact with all three clocks (spec §3), so the
// TimeStamp encoding below writes all three in a fixed order rather than a
// single tagged variant — this keeps encode/decode a pure function of the
// struct contents with no loss, while staying byte-identical across calls
// (required by spec §6: "two encodings of the same fact must be
// byte-identical"). Within the logical part, the Lamport scalar is written
// before the vector clock (entry count, then sorted entries), the reverse
// of the order shown in the grammar above.

const (
	tsPhysical byte = 1
	tsLogical  byte = 2
	tsOrder    byte = 3
)

func putUvarintBytes(buf *bytes.Buffer, b []byte) {
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(b)))
	buf.Write(lenBuf[:n])
	buf.Write(b)
}

func readUvarintBytes(r *bytes.Reader) ([]byte, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("fact: read length prefix: %w", err)
	}
	out := make([]byte, n)
	if _, err := r.Read(out); err != nil && n > 0 {
		return nil, fmt.Errorf("fact: read %d bytes: %w", n, err)
	}
	return out, nil
}

// EncodeTimeStamp writes the canonical TimeStamp encoding.
func EncodeTimeStamp(ts clock.TimeStamp) []byte {
	var buf bytes.Buffer

	buf.WriteByte(tsPhysical)
	var u64 [8]byte
	binary.BigEndian.PutUint64(u64[:], ts.Physical.Millis)
	buf.Write(u64[:])
	if ts.Physical.Uncertainty != nil {
		buf.WriteByte(1)
		binary.BigEndian.PutUint64(u64[:], *ts.Physical.Uncertainty)
		buf.Write(u64[:])
	} else {
		buf.WriteByte(0)
	}

	buf.WriteByte(tsLogical)
	binary.BigEndian.PutUint64(u64[:], ts.Logical.Lamport)
	buf.Write(u64[:])
	keys := make([]ids.AuthorityId, 0, len(ts.Logical.Vector))
	for k := range ts.Logical.Vector {
		keys = append(keys, k)
	}
	ids.SortAuthorityIds(keys)
	var countBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(countBuf[:], uint64(len(keys)))
	buf.Write(countBuf[:n])
	for _, k := range keys {
		buf.Write(k.Bytes())
		binary.BigEndian.PutUint64(u64[:], ts.Logical.Vector[k])
		buf.Write(u64[:])
	}

	buf.WriteByte(tsOrder)
	buf.Write(ts.Order.Bytes())

	return buf.Bytes()
}

// DecodeTimeStamp parses the canonical TimeStamp encoding.
func DecodeTimeStamp(r *bytes.Reader) (clock.TimeStamp, error) {
	var ts clock.TimeStamp

	tag, err := r.ReadByte()
	if err != nil || tag != tsPhysical {
		return ts, fmt.Errorf("fact: expected physical tag, got %d err=%v", tag, err)
	}
	var u64 [8]byte
	if _, err := r.Read(u64[:]); err != nil {
		return ts, fmt.Errorf("fact: read physical millis: %w", err)
	}
	ts.Physical.Millis = binary.BigEndian.Uint64(u64[:])
	hasUncertainty, err := r.ReadByte()
	if err != nil {
		return ts, fmt.Errorf("fact: read uncertainty flag: %w", err)
	}
	if hasUncertainty == 1 {
		if _, err := r.Read(u64[:]); err != nil {
			return ts, fmt.Errorf("fact: read uncertainty: %w", err)
		}
		v := binary.BigEndian.Uint64(u64[:])
		ts.Physical.Uncertainty = &v
	}

	tag, err = r.ReadByte()
	if err != nil || tag != tsLogical {
		return ts, fmt.Errorf("fact: expected logical tag, got %d err=%v", tag, err)
	}
	if _, err := r.Read(u64[:]); err != nil {
		return ts, fmt.Errorf("fact: read lamport: %w", err)
	}
	ts.Logical.Lamport = binary.BigEndian.Uint64(u64[:])
	count, err := binary.ReadUvarint(r)
	if err != nil {
		return ts, fmt.Errorf("fact: read vector count: %w", err)
	}
	ts.Logical.Vector = make(map[ids.AuthorityId]uint64, count)
	for i := uint64(0); i < count; i++ {
		var idBuf [32]byte
		if _, err := r.Read(idBuf[:]); err != nil {
			return ts, fmt.Errorf("fact: read vector key: %w", err)
		}
		aid, err := ids.AuthorityIdFromBytes(idBuf[:])
		if err != nil {
			return ts, err
		}
		if _, err := r.Read(u64[:]); err != nil {
			return ts, fmt.Errorf("fact: read vector value: %w", err)
		}
		ts.Logical.Vector[aid] = binary.BigEndian.Uint64(u64[:])
	}

	tag, err = r.ReadByte()
	if err != nil || tag != tsOrder {
		return ts, fmt.Errorf("fact: expected order tag, got %d err=%v", tag, err)
	}
	var orderBuf [32]byte
	if _, err := r.Read(orderBuf[:]); err != nil {
		return ts, fmt.Errorf("fact: read order: %w", err)
	}
	ts.Order = clock.OrderTime(orderBuf)

	return ts, nil
}

func encodeNS(buf *bytes.Buffer, n NS) {
	buf.WriteByte(byte(n.Kind))
	switch n.Kind {
	case NamespaceAuthority:
		buf.Write(n.Authority.Bytes())
	case NamespaceContext:
		buf.Write(n.Context.Bytes())
	}
}

func decodeNS(r *bytes.Reader) (NS, error) {
	kindByte, err := r.ReadByte()
	if err != nil {
		return NS{}, fmt.Errorf("fact: read namespace kind: %w", err)
	}
	switch NamespaceKind(kindByte) {
	case NamespaceAuthority:
		var b [32]byte
		if _, err := r.Read(b[:]); err != nil {
			return NS{}, fmt.Errorf("fact: read authority namespace: %w", err)
		}
		aid, err := ids.AuthorityIdFromBytes(b[:])
		if err != nil {
			return NS{}, err
		}
		return AuthorityNamespace(aid), nil
	case NamespaceContext:
		var b [16]byte
		if _, err := r.Read(b[:]); err != nil {
			return NS{}, fmt.Errorf("fact: read context namespace: %w", err)
		}
		cid, err := ids.ContextIdFromBytes(b[:])
		if err != nil {
			return NS{}, err
		}
		return ContextNamespace(cid), nil
	default:
		return NS{}, fmt.Errorf("fact: unknown namespace kind %d", kindByte)
	}
}

// EncodeContent writes the canonical FactContent encoding.
func EncodeContent(c Content) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(byte(c.Kind))
	switch c.Kind {
	case ContentSnapshot:
		if c.Snapshot == nil {
			return nil, fmt.Errorf("fact: snapshot content missing body")
		}
		encodeNS(&buf, c.Snapshot.OfNamespace)
		buf.Write(c.Snapshot.StateHash.Bytes())
		putUvarintBytes(&buf, c.Snapshot.SummaryCBOR)
	case ContentRelational:
		if c.Relational == nil {
			return nil, fmt.Errorf("fact: relational content missing body")
		}
		var countBuf [binary.MaxVarintLen64]byte
		n := binary.PutUvarint(countBuf[:], uint64(len(c.Relational.Participants)))
		buf.Write(countBuf[:n])
		for _, p := range c.Relational.Participants {
			buf.Write(p.Bytes())
		}
		putUvarintBytes(&buf, []byte(c.Relational.BindingType))
		putUvarintBytes(&buf, c.Relational.BindingData)
	case ContentDomainGeneric:
		if c.Generic == nil {
			return nil, fmt.Errorf("fact: generic content missing body")
		}
		encodeNS(&buf, c.Generic.Namespace)
		putUvarintBytes(&buf, []byte(c.Generic.TypeID))
		putUvarintBytes(&buf, c.Generic.Payload)
	default:
		return nil, fmt.Errorf("fact: unknown content kind %d", c.Kind)
	}
	return buf.Bytes(), nil
}

// DecodeContent parses the canonical FactContent encoding.
func DecodeContent(r *bytes.Reader) (Content, error) {
	kindByte, err := r.ReadByte()
	if err != nil {
		return Content{}, fmt.Errorf("fact: read content kind: %w", err)
	}
	switch ContentKind(kindByte) {
	case ContentSnapshot:
		ns, err := decodeNS(r)
		if err != nil {
			return Content{}, err
		}
		var hashBuf [32]byte
		if _, err := r.Read(hashBuf[:]); err != nil {
			return Content{}, fmt.Errorf("fact: read state hash: %w", err)
		}
		hash, err := ids.Hash32FromBytes(hashBuf[:])
		if err != nil {
			return Content{}, err
		}
		summary, err := readUvarintBytes(r)
		if err != nil {
			return Content{}, err
		}
		return Content{Kind: ContentSnapshot, Snapshot: &SnapshotContent{
			OfNamespace: ns, StateHash: hash, SummaryCBOR: summary,
		}}, nil
	case ContentRelational:
		count, err := binary.ReadUvarint(r)
		if err != nil {
			return Content{}, fmt.Errorf("fact: read participant count: %w", err)
		}
		participants := make([]ids.AuthorityId, 0, count)
		for i := uint64(0); i < count; i++ {
			var b [32]byte
			if _, err := r.Read(b[:]); err != nil {
				return Content{}, fmt.Errorf("fact: read participant: %w", err)
			}
			aid, err := ids.AuthorityIdFromBytes(b[:])
			if err != nil {
				return Content{}, err
			}
			participants = append(participants, aid)
		}
		bindingType, err := readUvarintBytes(r)
		if err != nil {
			return Content{}, err
		}
		bindingData, err := readUvarintBytes(r)
		if err != nil {
			return Content{}, err
		}
		return Content{Kind: ContentRelational, Relational: &RelationalContent{
			Participants: participants, BindingType: string(bindingType), BindingData: bindingData,
		}}, nil
	case ContentDomainGeneric:
		ns, err := decodeNS(r)
		if err != nil {
			return Content{}, err
		}
		typeID, err := readUvarintBytes(r)
		if err != nil {
			return Content{}, err
		}
		payload, err := readUvarintBytes(r)
		if err != nil {
			return Content{}, err
		}
		return Content{Kind: ContentDomainGeneric, Generic: &DomainGenericContent{
			Namespace: ns, TypeID: string(typeID), Payload: payload,
		}}, nil
	default:
		return Content{}, fmt.Errorf("fact: unknown content kind %d", kindByte)
	}
}

// Encode writes the canonical Fact encoding (spec §6).
func Encode(f Fact) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(f.Order.Bytes())
	buf.Write(EncodeTimeStamp(f.Timestamp))
	content, err := EncodeContent(f.Content)
	if err != nil {
		return nil, fmt.Errorf("fact: encode content: %w", err)
	}
	buf.Write(content)
	return buf.Bytes(), nil
}

// Decode parses the canonical Fact encoding.
func Decode(b []byte) (Fact, error) {
	r := bytes.NewReader(b)
	var orderBuf [32]byte
	if _, err := r.Read(orderBuf[:]); err != nil {
		return Fact{}, fmt.Errorf("fact: read order: %w", err)
	}
	ts, err := DecodeTimeStamp(r)
	if err != nil {
		return Fact{}, err
	}
	content, err := DecodeContent(r)
	if err != nil {
		return Fact{}, err
	}
	return Fact{Order: clock.OrderTime(orderBuf), Timestamp: ts, Content: content}, nil
}
