package clock

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hxrts/aura/internal/ids"
)

func TestLogicalTimeAdvanceIncrementsLamportAndSelfEntry(t *testing.T) {
	self := ids.AuthorityId{1}
	t0 := NewLogicalTime()
	t1 := t0.Advance(self)
	require.Equal(t, uint64(1), t1.Lamport)
	require.Equal(t, uint64(1), t1.Vector[self])
	require.Zero(t, t0.Lamport, "Advance must not mutate the receiver")
}

func TestLogicalTimeMergeTakesEntrywiseMaxThenAdvances(t *testing.T) {
	self := ids.AuthorityId{1}
	other := ids.AuthorityId{2}

	local := NewLogicalTime().Advance(self) // Lamport=1, {self:1}
	remote := NewLogicalTime().Advance(other).Advance(other).Advance(other) // Lamport=3, {other:3}

	merged := local.Merge(self, remote)
	require.Equal(t, uint64(4), merged.Lamport) // max(1,3)+1
	require.Equal(t, uint64(3), merged.Vector[other])
	require.Equal(t, uint64(4), merged.Vector[self])
}

func TestLogicalTimeHappensBeforeDetectsCausalPrecedence(t *testing.T) {
	self := ids.AuthorityId{1}
	a := NewLogicalTime().Advance(self)
	b := a.Advance(self)
	require.True(t, a.HappensBefore(b))
	require.False(t, b.HappensBefore(a))
}

func TestLogicalTimeHappensBeforeIsFalseForConcurrentClocks(t *testing.T) {
	self := ids.AuthorityId{1}
	other := ids.AuthorityId{2}
	a := NewLogicalTime().Advance(self)
	b := NewLogicalTime().Advance(other)
	require.False(t, a.HappensBefore(b))
	require.False(t, b.HappensBefore(a))
}

func TestLogicalTimeCloneDoesNotShareVectorMap(t *testing.T) {
	self := ids.AuthorityId{1}
	original := NewLogicalTime().Advance(self)
	clone := original.Clone()
	clone.Vector[ids.AuthorityId{9}] = 100
	require.NotContains(t, original.Vector, ids.AuthorityId{9})
}

func TestNewOrderTimeIsDeterministicAndTotallyOrdered(t *testing.T) {
	origin := ids.AuthorityId{1}
	hash := ids.Hash32{1}
	a := NewOrderTime(1, origin, hash)
	b := NewOrderTime(1, origin, hash)
	require.Equal(t, a, b)
	require.Zero(t, a.Compare(b))

	higherSeq := NewOrderTime(2, origin, hash)
	require.Negative(t, a.Compare(higherSeq))
}

func TestSortOrderTimesOrdersBySequencePrefix(t *testing.T) {
	origin := ids.AuthorityId{1}
	hash := ids.Hash32{1}
	times := []OrderTime{
		NewOrderTime(3, origin, hash),
		NewOrderTime(1, origin, hash),
		NewOrderTime(2, origin, hash),
	}
	SortOrderTimes(times)
	require.Equal(t, NewOrderTime(1, origin, hash), times[0])
	require.Equal(t, NewOrderTime(2, origin, hash), times[1])
	require.Equal(t, NewOrderTime(3, origin, hash), times[2])
}
