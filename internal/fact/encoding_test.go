package fact

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hxrts/aura/internal/clock"
	"github.com/hxrts/aura/internal/ids"
)

func TestTimeStampRoundTrips(t *testing.T) {
	uncertainty := uint64(5)
	ts := clock.TimeStamp{
		Physical: clock.PhysicalTime{Millis: 12345, Uncertainty: &uncertainty},
		Logical: clock.LogicalTime{
			Lamport: 7,
			Vector:  map[ids.AuthorityId]uint64{{1}: 3, {2}: 4},
		},
		Order: clock.NewOrderTime(1, ids.AuthorityId{1}, ids.Hash32{9}),
	}

	encoded := EncodeTimeStamp(ts)
	decoded, err := DecodeTimeStamp(bytes.NewReader(encoded))
	require.NoError(t, err)
	require.Equal(t, ts, decoded)
}

func TestTimeStampRoundTripsWithoutUncertainty(t *testing.T) {
	ts := clock.TimeStamp{
		Physical: clock.PhysicalTime{Millis: 1},
		Logical:  clock.LogicalTime{Vector: map[ids.AuthorityId]uint64{}},
	}
	encoded := EncodeTimeStamp(ts)
	decoded, err := DecodeTimeStamp(bytes.NewReader(encoded))
	require.NoError(t, err)
	require.Equal(t, ts, decoded)
}

func TestEncodeTimeStampIsDeterministicUnderMapOrdering(t *testing.T) {
	ts := clock.TimeStamp{Logical: clock.LogicalTime{Vector: map[ids.AuthorityId]uint64{
		{3}: 30, {1}: 10, {2}: 20,
	}}}
	a := EncodeTimeStamp(ts)
	b := EncodeTimeStamp(ts)
	require.Equal(t, a, b)
}

func TestContentRoundTripsEachVariant(t *testing.T) {
	cases := []Content{
		{Kind: ContentSnapshot, Snapshot: &SnapshotContent{
			OfNamespace: AuthorityNamespace(ids.AuthorityId{1}),
			StateHash:   ids.Hash32{2},
			SummaryCBOR: []byte{0xa1, 0x02},
		}},
		{Kind: ContentRelational, Relational: &RelationalContent{
			Participants: []ids.AuthorityId{{1}, {2}},
			BindingType:  "relctx.guardian_binding",
			BindingData:  []byte("binding-bytes"),
		}},
		{Kind: ContentDomainGeneric, Generic: &DomainGenericContent{
			Namespace: ContextNamespace(ids.ContextId{4}),
			TypeID:    "test.generic",
			Payload:   []byte("payload"),
		}},
	}

	for _, c := range cases {
		encoded, err := EncodeContent(c)
		require.NoError(t, err)
		decoded, err := DecodeContent(bytes.NewReader(encoded))
		require.NoError(t, err)
		require.Equal(t, c, decoded)
	}
}

func TestEncodeContentRejectsMissingBody(t *testing.T) {
	_, err := EncodeContent(Content{Kind: ContentSnapshot})
	require.Error(t, err)
}

func TestFactRoundTrips(t *testing.T) {
	f := Fact{
		Order: clock.NewOrderTime(1, ids.AuthorityId{1}, ids.Hash32{2}),
		Timestamp: clock.TimeStamp{
			Physical: clock.PhysicalTime{Millis: 99},
			Logical:  clock.LogicalTime{Vector: map[ids.AuthorityId]uint64{}},
			Order:    clock.NewOrderTime(1, ids.AuthorityId{1}, ids.Hash32{2}),
		},
		Content: Content{Kind: ContentDomainGeneric, Generic: &DomainGenericContent{
			Namespace: AuthorityNamespace(ids.AuthorityId{1}),
			TypeID:    "test.fact",
			Payload:   []byte("hello"),
		}},
	}

	encoded, err := Encode(f)
	require.NoError(t, err)
	decoded, err := Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, f, decoded)
}

func TestDecodeRejectsTruncatedInput(t *testing.T) {
	_, err := Decode([]byte{1, 2, 3})
	require.Error(t, err)
}
