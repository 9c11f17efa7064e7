// Package network implements the production Network effect handler (spec
// §4.4, §6): a websocket-based transport carrying the message envelope
// format all peer-to-peer messages share. Grounded on the teacher's
// network/service.go (gRPC relay) and network/auth.go (authenticator)
// shape, adapted to a plain websocket transport since the spec places
// concrete wire formats for LAN/WAN transport out of scope (§1) and only
// specifies the envelope layer above it.
package network

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/hxrts/aura/internal/ids"
)

const envelopeVersion uint16 = 1

// Envelope is the outer wrapper every peer-to-peer message shares (spec
// §6): {version, session_id, sender, timestamp, payload}. Payload parsing
// is dispatched by session_id at the receiving ceremony/session layer;
// this package only frames and defrays bytes.
type Envelope struct {
	Version   uint16
	SessionID ids.SessionId
	Sender    ids.AuthorityId
	Timestamp uint64 // millis
	Payload   []byte
}

// NewEnvelope builds an envelope with the current protocol version.
func NewEnvelope(session ids.SessionId, sender ids.AuthorityId, timestampMillis uint64, payload []byte) Envelope {
	return Envelope{Version: envelopeVersion, SessionID: session, Sender: sender, Timestamp: timestampMillis, Payload: payload}
}

// Encode serializes the envelope to bytes for transport.
func (e Envelope) Encode() []byte {
	var buf bytes.Buffer
	var u16 [2]byte
	binary.BigEndian.PutUint16(u16[:], e.Version)
	buf.Write(u16[:])
	buf.Write(e.SessionID.Bytes())
	buf.Write(e.Sender.Bytes())
	var u64 [8]byte
	binary.BigEndian.PutUint64(u64[:], e.Timestamp)
	buf.Write(u64[:])
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(e.Payload)))
	buf.Write(lenBuf[:n])
	buf.Write(e.Payload)
	return buf.Bytes()
}

// DecodeEnvelope parses an envelope from bytes.
func DecodeEnvelope(b []byte) (Envelope, error) {
	r := bytes.NewReader(b)
	var u16 [2]byte
	if _, err := r.Read(u16[:]); err != nil {
		return Envelope{}, fmt.Errorf("network: read version: %w", err)
	}
	version := binary.BigEndian.Uint16(u16[:])

	var sessionBuf [16]byte
	if _, err := r.Read(sessionBuf[:]); err != nil {
		return Envelope{}, fmt.Errorf("network: read session id: %w", err)
	}
	session, err := ids.ID128FromBytes(sessionBuf[:])
	if err != nil {
		return Envelope{}, err
	}

	var senderBuf [32]byte
	if _, err := r.Read(senderBuf[:]); err != nil {
		return Envelope{}, fmt.Errorf("network: read sender: %w", err)
	}
	sender, err := ids.AuthorityIdFromBytes(senderBuf[:])
	if err != nil {
		return Envelope{}, err
	}

	var u64 [8]byte
	if _, err := r.Read(u64[:]); err != nil {
		return Envelope{}, fmt.Errorf("network: read timestamp: %w", err)
	}
	timestamp := binary.BigEndian.Uint64(u64[:])

	payloadLen, err := binary.ReadUvarint(r)
	if err != nil {
		return Envelope{}, fmt.Errorf("network: read payload length: %w", err)
	}
	payload := make([]byte, payloadLen)
	if payloadLen > 0 {
		if _, err := r.Read(payload); err != nil {
			return Envelope{}, fmt.Errorf("network: read payload: %w", err)
		}
	}

	return Envelope{
		Version:   version,
		SessionID: ids.SessionId(session),
		Sender:    sender,
		Timestamp: timestamp,
		Payload:   payload,
	}, nil
}

// Age returns how old the envelope is relative to nowMillis.
func (e Envelope) Age(nowMillis uint64) time.Duration {
	if nowMillis < e.Timestamp {
		return 0
	}
	return time.Duration(nowMillis-e.Timestamp) * time.Millisecond
}
