package relctx

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hxrts/aura/internal/ids"
)

func TestInvitationBindingRoundTrips(t *testing.T) {
	cases := []InvitationBinding{
		{Channel: ids.ChannelId{1}, Inviter: ids.AuthorityId{2}, Invitee: ids.AuthorityId{3}, Expiry: 1_700_000_000},
		{Channel: ids.ChannelId{9}, Inviter: ids.AuthorityId{4}, Invitee: ids.AuthorityId{5}, Expiry: 0},
	}
	for _, want := range cases {
		got, err := DecodeInvitationBinding(EncodeInvitationBinding(want))
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestDecodeInvitationBindingRejectsMalformedInput(t *testing.T) {
	_, err := DecodeInvitationBinding([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestChannelMembershipRoundTrips(t *testing.T) {
	cases := []ChannelMembership{
		{Channel: ids.ChannelId{1}, Member: ids.AuthorityId{2}, Joined: true},
		{Channel: ids.ChannelId{1}, Member: ids.AuthorityId{2}, Joined: false},
	}
	for _, want := range cases {
		got, err := DecodeChannelMembership(EncodeChannelMembership(want))
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestDecodeChannelMembershipRejectsMalformedInput(t *testing.T) {
	_, err := DecodeChannelMembership([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestDecodeGuardianBindingRejectsMalformedInput(t *testing.T) {
	_, err := DecodeGuardianBinding([]byte{1, 2, 3})
	require.Error(t, err)
}
