// Package ids defines the opaque, totally-ordered identifiers used
// throughout Aura (spec §3 "Identifiers"). Every identifier is a fixed-size
// byte array so it can be used as a map key, sorted, and content-addressed
// without an allocation per comparison.
package ids

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sort"
)

// ID128 is a 16-byte identifier (device, context, session, ceremony, channel).
type ID128 [16]byte

// ID256 is a 32-byte identifier (authority) and also backs Hash32.
type ID256 [32]byte

func (id ID128) String() string { return hex.EncodeToString(id[:]) }
func (id ID256) String() string { return hex.EncodeToString(id[:]) }

func (id ID128) Bytes() []byte { return append([]byte(nil), id[:]...) }
func (id ID256) Bytes() []byte { return append([]byte(nil), id[:]...) }

func (id ID128) IsZero() bool { return id == ID128{} }
func (id ID256) IsZero() bool { return id == ID256{} }

// Compare implements the total order spec §3 requires for every identifier:
// plain big-endian byte comparison.
func (id ID128) Compare(other ID128) int { return bytes.Compare(id[:], other[:]) }
func (id ID256) Compare(other ID256) int { return bytes.Compare(id[:], other[:]) }

func ID128FromBytes(b []byte) (ID128, error) {
	var id ID128
	if len(b) != len(id) {
		return id, fmt.Errorf("ids: expected %d bytes, got %d", len(id), len(b))
	}
	copy(id[:], b)
	return id, nil
}

func ID256FromBytes(b []byte) (ID256, error) {
	var id ID256
	if len(b) != len(id) {
		return id, fmt.Errorf("ids: expected %d bytes, got %d", len(id), len(b))
	}
	copy(id[:], b)
	return id, nil
}

func ID128FromHex(s string) (ID128, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return ID128{}, fmt.Errorf("ids: decode hex: %w", err)
	}
	return ID128FromBytes(b)
}

func ID256FromHex(s string) (ID256, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return ID256{}, fmt.Errorf("ids: decode hex: %w", err)
	}
	return ID256FromBytes(b)
}

// Domain-specific aliases. These are distinct Go types (not just type
// aliases) so the compiler catches an AuthorityId passed where a ContextId
// is expected, matching spec §9's "internal device hiding" discipline.
type (
	AuthorityId ID256
	DeviceId    ID128
	ContextId   ID128
	SessionId   ID128
	CeremonyId  ID128
	ChannelId   ID128
	Hash32      ID256
)

func (id AuthorityId) String() string   { return ID256(id).String() }
func (id DeviceId) String() string      { return ID128(id).String() }
func (id ContextId) String() string     { return ID128(id).String() }
func (id SessionId) String() string     { return ID128(id).String() }
func (id CeremonyId) String() string    { return ID128(id).String() }
func (id ChannelId) String() string     { return ID128(id).String() }
func (id Hash32) String() string        { return ID256(id).String() }

func (id AuthorityId) Bytes() []byte { return ID256(id).Bytes() }
func (id DeviceId) Bytes() []byte    { return ID128(id).Bytes() }
func (id ContextId) Bytes() []byte   { return ID128(id).Bytes() }
func (id SessionId) Bytes() []byte   { return ID128(id).Bytes() }
func (id CeremonyId) Bytes() []byte  { return ID128(id).Bytes() }
func (id ChannelId) Bytes() []byte   { return ID128(id).Bytes() }
func (id Hash32) Bytes() []byte      { return ID256(id).Bytes() }

func (id AuthorityId) Compare(other AuthorityId) int { return ID256(id).Compare(ID256(other)) }
func (id DeviceId) Compare(other DeviceId) int       { return ID128(id).Compare(ID128(other)) }
func (id ContextId) Compare(other ContextId) int     { return ID128(id).Compare(ID128(other)) }
func (id SessionId) Compare(other SessionId) int     { return ID128(id).Compare(ID128(other)) }
func (id CeremonyId) Compare(other CeremonyId) int   { return ID128(id).Compare(ID128(other)) }
func (id ChannelId) Compare(other ChannelId) int     { return ID128(id).Compare(ID128(other)) }
func (id Hash32) Compare(other Hash32) int           { return ID256(id).Compare(ID256(other)) }

func AuthorityIdFromBytes(b []byte) (AuthorityId, error) {
	id, err := ID256FromBytes(b)
	return AuthorityId(id), err
}

func DeviceIdFromBytes(b []byte) (DeviceId, error) {
	id, err := ID128FromBytes(b)
	return DeviceId(id), err
}

func ContextIdFromBytes(b []byte) (ContextId, error) {
	id, err := ID128FromBytes(b)
	return ContextId(id), err
}

func Hash32FromBytes(b []byte) (Hash32, error) {
	id, err := ID256FromBytes(b)
	return Hash32(id), err
}

// SortAuthorityIds sorts a slice in place by the canonical total order,
// implementing spec §9's "sort participants by AuthorityId, assign indices
// positionally" open-question resolution.
func SortAuthorityIds(ids []AuthorityId) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Compare(ids[j]) < 0 })
}
