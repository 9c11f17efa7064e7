package journal

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hxrts/aura/internal/clock"
	"github.com/hxrts/aura/internal/fact"
	"github.com/hxrts/aura/internal/ids"
)

func testAuthority(b byte) ids.AuthorityId {
	var id ids.AuthorityId
	id[0] = b
	return id
}

func genericFact(ns fact.NS, seq uint64, payload string) fact.Fact {
	authority := testAuthority(1)
	hash := ids.Hash32{}
	hash[0] = byte(seq)
	order := clock.NewOrderTime(seq, authority, hash)
	return fact.Fact{
		Order:     order,
		Timestamp: clock.TimeStamp{Order: order},
		Content: fact.Content{
			Kind: fact.ContentDomainGeneric,
			Generic: &fact.DomainGenericContent{
				Namespace: ns,
				TypeID:    "test.payload",
				Payload:   []byte(payload),
			},
		},
	}
}

func journalWithFacts(t *testing.T, ns fact.NS, n int) *Journal {
	t.Helper()
	j := New(ns)
	for i := 0; i < n; i++ {
		require.NoError(t, j.AddFact(genericFact(ns, uint64(i), "v")))
	}
	return j
}

func TestJoinIsCommutative(t *testing.T) {
	ns := fact.AuthorityNamespace(testAuthority(9))
	a := journalWithFacts(t, ns, 3)
	b := journalWithFacts(t, ns, 5)

	ab, err := a.Join(b)
	require.NoError(t, err)
	ba, err := b.Join(a)
	require.NoError(t, err)

	require.ElementsMatch(t, ab.Facts(), ba.Facts())
}

func TestJoinIsAssociative(t *testing.T) {
	ns := fact.AuthorityNamespace(testAuthority(9))
	a := journalWithFacts(t, ns, 2)
	b := journalWithFacts(t, ns, 3)
	c := journalWithFacts(t, ns, 4)

	ab, err := a.Join(b)
	require.NoError(t, err)
	abThenC, err := ab.Join(c)
	require.NoError(t, err)

	bc, err := b.Join(c)
	require.NoError(t, err)
	aThenBC, err := a.Join(bc)
	require.NoError(t, err)

	require.ElementsMatch(t, abThenC.Facts(), aThenBC.Facts())
}

func TestJoinIsIdempotent(t *testing.T) {
	ns := fact.AuthorityNamespace(testAuthority(9))
	a := journalWithFacts(t, ns, 4)

	aa, err := a.Join(a)
	require.NoError(t, err)

	require.ElementsMatch(t, a.Facts(), aa.Facts())
}

func TestJoinWithEmptyIsIdentity(t *testing.T) {
	ns := fact.AuthorityNamespace(testAuthority(9))
	a := journalWithFacts(t, ns, 3)
	empty := New(ns)

	merged, err := a.Join(empty)
	require.NoError(t, err)
	require.ElementsMatch(t, a.Facts(), merged.Facts())
}

func TestJoinRejectsNamespaceMismatch(t *testing.T) {
	a := journalWithFacts(t, fact.AuthorityNamespace(testAuthority(1)), 1)
	b := journalWithFacts(t, fact.AuthorityNamespace(testAuthority(2)), 1)

	_, err := a.Join(b)
	require.Error(t, err)
}

func TestAddFactIsIdempotent(t *testing.T) {
	ns := fact.AuthorityNamespace(testAuthority(1))
	j := New(ns)
	f := genericFact(ns, 0, "v")

	require.NoError(t, j.AddFact(f))
	require.NoError(t, j.AddFact(f))
	require.Equal(t, 1, j.Len())
}

func TestMergeInPlaceConverges(t *testing.T) {
	ns := fact.AuthorityNamespace(testAuthority(1))
	a := journalWithFacts(t, ns, 3)
	b := journalWithFacts(t, ns, 5)

	aClone := a.Clone()
	require.NoError(t, aClone.MergeInPlace(b))

	bClone := b.Clone()
	require.NoError(t, bClone.MergeInPlace(a))

	require.Equal(t, aClone.Commitment(), bClone.Commitment())
}

func TestCommitmentIsOrderIndependentOfInsertion(t *testing.T) {
	ns := fact.AuthorityNamespace(testAuthority(1))
	forward := New(ns)
	backward := New(ns)

	facts := make([]fact.Fact, 5)
	for i := range facts {
		facts[i] = genericFact(ns, uint64(i), "v")
	}
	for _, f := range facts {
		require.NoError(t, forward.AddFact(f))
	}
	for i := len(facts) - 1; i >= 0; i-- {
		require.NoError(t, backward.AddFact(facts[i]))
	}

	require.Equal(t, forward.Commitment(), backward.Commitment())
}

func TestEmptyJournalCommitmentIsStable(t *testing.T) {
	ns := fact.AuthorityNamespace(testAuthority(1))
	a := New(ns)
	b := New(ns)
	require.Equal(t, a.Commitment(), b.Commitment())
}
