package relctx

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/hxrts/aura/internal/ids"
)

// Fact-type IDs for the built-in relational bindings (spec §4.6 examples:
// "chat, guardian, invitation"). Higher layers may register further type
// IDs through the same fact.Registry without touching this package.
const (
	TypeIDGuardianBinding   = "relctx.guardian_binding"
	TypeIDInvitationBinding = "relctx.invitation_binding"
	TypeIDChannelMembership = "relctx.channel_membership"
)

// GuardianBinding records that Guardian has accepted responsibility for
// Principal's recovery, committed by a guardian ceremony (spec §4.5).
type GuardianBinding struct {
	Principal ids.AuthorityId
	Guardian  ids.AuthorityId
	Threshold int // guardians required to authorize a recovery
}

// EncodeGuardianBinding serializes a GuardianBinding for BindingData.
func EncodeGuardianBinding(b GuardianBinding) []byte {
	var buf bytes.Buffer
	buf.Write(b.Principal.Bytes())
	buf.Write(b.Guardian.Bytes())
	var t [4]byte
	binary.BigEndian.PutUint32(t[:], uint32(b.Threshold))
	buf.Write(t[:])
	return buf.Bytes()
}

// DecodeGuardianBinding parses bytes written by EncodeGuardianBinding.
func DecodeGuardianBinding(b []byte) (GuardianBinding, error) {
	if len(b) != 32+32+4 {
		return GuardianBinding{}, fmt.Errorf("relctx: malformed guardian binding (%d bytes)", len(b))
	}
	principal, err := ids.AuthorityIdFromBytes(b[0:32])
	if err != nil {
		return GuardianBinding{}, err
	}
	guardian, err := ids.AuthorityIdFromBytes(b[32:64])
	if err != nil {
		return GuardianBinding{}, err
	}
	threshold := binary.BigEndian.Uint32(b[64:68])
	return GuardianBinding{Principal: principal, Guardian: guardian, Threshold: int(threshold)}, nil
}

// InvitationBinding records an outstanding invitation for Invitee to join
// Channel, issued by Inviter.
type InvitationBinding struct {
	Channel ids.ChannelId
	Inviter ids.AuthorityId
	Invitee ids.AuthorityId
	Expiry  uint64 // millis, 0 means no expiry
}

func EncodeInvitationBinding(b InvitationBinding) []byte {
	var buf bytes.Buffer
	buf.Write(b.Channel.Bytes())
	buf.Write(b.Inviter.Bytes())
	buf.Write(b.Invitee.Bytes())
	var t [8]byte
	binary.BigEndian.PutUint64(t[:], b.Expiry)
	buf.Write(t[:])
	return buf.Bytes()
}

func DecodeInvitationBinding(b []byte) (InvitationBinding, error) {
	if len(b) != 16+32+32+8 {
		return InvitationBinding{}, fmt.Errorf("relctx: malformed invitation binding (%d bytes)", len(b))
	}
	channel, err := ids.ID128FromBytes(b[0:16])
	if err != nil {
		return InvitationBinding{}, err
	}
	inviter, err := ids.AuthorityIdFromBytes(b[16:48])
	if err != nil {
		return InvitationBinding{}, err
	}
	invitee, err := ids.AuthorityIdFromBytes(b[48:80])
	if err != nil {
		return InvitationBinding{}, err
	}
	expiry := binary.BigEndian.Uint64(b[80:88])
	return InvitationBinding{Channel: ids.ChannelId(channel), Inviter: inviter, Invitee: invitee, Expiry: expiry}, nil
}

// ChannelMembership records that Member has joined Channel (chat group
// membership, spec §4.6's "chat" example feature).
type ChannelMembership struct {
	Channel ids.ChannelId
	Member  ids.AuthorityId
	Joined  bool // false marks a departure
}

func EncodeChannelMembership(b ChannelMembership) []byte {
	var buf bytes.Buffer
	buf.Write(b.Channel.Bytes())
	buf.Write(b.Member.Bytes())
	if b.Joined {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

func DecodeChannelMembership(b []byte) (ChannelMembership, error) {
	if len(b) != 16+32+1 {
		return ChannelMembership{}, fmt.Errorf("relctx: malformed channel membership (%d bytes)", len(b))
	}
	channel, err := ids.ID128FromBytes(b[0:16])
	if err != nil {
		return ChannelMembership{}, err
	}
	member, err := ids.AuthorityIdFromBytes(b[16:48])
	if err != nil {
		return ChannelMembership{}, err
	}
	return ChannelMembership{Channel: ids.ChannelId(channel), Member: member, Joined: b[48] == 1}, nil
}
