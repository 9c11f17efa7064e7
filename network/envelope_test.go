package network

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hxrts/aura/internal/ids"
)

func TestEnvelopeRoundTrips(t *testing.T) {
	e := NewEnvelope(ids.SessionId{1}, ids.AuthorityId{2}, 1_000, []byte("payload"))

	decoded, err := DecodeEnvelope(e.Encode())
	require.NoError(t, err)
	require.Equal(t, e, decoded)
}

func TestEnvelopeRoundTripsWithEmptyPayload(t *testing.T) {
	e := NewEnvelope(ids.SessionId{1}, ids.AuthorityId{2}, 0, nil)
	decoded, err := DecodeEnvelope(e.Encode())
	require.NoError(t, err)
	require.Equal(t, []byte{}, decoded.Payload)
}

func TestEnvelopeAgeClampsToZeroForFutureTimestamps(t *testing.T) {
	e := NewEnvelope(ids.SessionId{1}, ids.AuthorityId{2}, 5_000, nil)
	require.Equal(t, int64(0), e.Age(1_000).Milliseconds())
}

func TestEnvelopeAgeComputesElapsedDuration(t *testing.T) {
	e := NewEnvelope(ids.SessionId{1}, ids.AuthorityId{2}, 1_000, nil)
	require.Equal(t, int64(500), e.Age(1_500).Milliseconds())
}

func TestDecodeEnvelopeRejectsTruncatedInput(t *testing.T) {
	_, err := DecodeEnvelope([]byte{0, 1})
	require.Error(t, err)
}
