package ids

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestID128RoundTripsThroughBytesAndHex(t *testing.T) {
	var id ID128
	id[0], id[15] = 0xAB, 0xCD
	back, err := ID128FromBytes(id.Bytes())
	require.NoError(t, err)
	require.Equal(t, id, back)

	fromHex, err := ID128FromHex(id.String())
	require.NoError(t, err)
	require.Equal(t, id, fromHex)
}

func TestID128FromBytesRejectsWrongLength(t *testing.T) {
	_, err := ID128FromBytes([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestID256RoundTripsThroughBytesAndHex(t *testing.T) {
	var id ID256
	id[0], id[31] = 0xAB, 0xCD
	back, err := ID256FromBytes(id.Bytes())
	require.NoError(t, err)
	require.Equal(t, id, back)

	fromHex, err := ID256FromHex(id.String())
	require.NoError(t, err)
	require.Equal(t, id, fromHex)
}

func TestID256FromBytesRejectsWrongLength(t *testing.T) {
	_, err := ID256FromBytes(make([]byte, 31))
	require.Error(t, err)
}

func TestIsZero(t *testing.T) {
	require.True(t, ID128{}.IsZero())
	require.True(t, ID256{}.IsZero())

	nonZero := ID128{1}
	require.False(t, nonZero.IsZero())
}

func TestCompareOrdersLexicographically(t *testing.T) {
	a := ID128{1}
	b := ID128{2}
	require.Negative(t, a.Compare(b))
	require.Positive(t, b.Compare(a))
	require.Zero(t, a.Compare(a))
}

func TestDomainAliasesRoundTripThroughDedicatedConstructors(t *testing.T) {
	authBytes := make([]byte, 32)
	authBytes[0] = 9
	auth, err := AuthorityIdFromBytes(authBytes)
	require.NoError(t, err)
	require.Equal(t, authBytes, auth.Bytes())

	devBytes := make([]byte, 16)
	devBytes[0] = 3
	dev, err := DeviceIdFromBytes(devBytes)
	require.NoError(t, err)
	require.Equal(t, devBytes, dev.Bytes())

	ctxBytes := make([]byte, 16)
	ctxBytes[0] = 4
	ctx, err := ContextIdFromBytes(ctxBytes)
	require.NoError(t, err)
	require.Equal(t, ctxBytes, ctx.Bytes())

	hashBytes := make([]byte, 32)
	hashBytes[0] = 5
	hash, err := Hash32FromBytes(hashBytes)
	require.NoError(t, err)
	require.Equal(t, hashBytes, hash.Bytes())
}

func TestSortAuthorityIdsOrdersDeterministically(t *testing.T) {
	a := AuthorityId{1}
	b := AuthorityId{2}
	c := AuthorityId{3}

	shuffled := []AuthorityId{c, a, b}
	SortAuthorityIds(shuffled)
	require.Equal(t, []AuthorityId{a, b, c}, shuffled)
}
