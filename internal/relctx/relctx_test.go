package relctx

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hxrts/aura/internal/clock"
	"github.com/hxrts/aura/internal/fact"
	"github.com/hxrts/aura/internal/ids"
)

func registryWithGuardianBinding(t *testing.T) *fact.Registry {
	t.Helper()
	reg := fact.NewRegistry()
	err := reg.Register(TypeIDGuardianBinding, fact.TypeRegistration{
		Decode: func(b []byte) (any, error) { return DecodeGuardianBinding(b) },
		Reduce: func(b []byte) ([]fact.DomainDelta, error) {
			_, err := DecodeGuardianBinding(b)
			if err != nil {
				return nil, err
			}
			return []fact.DomainDelta{{TypeID: TypeIDGuardianBinding, Summary: "guardian bound"}}, nil
		},
	})
	require.NoError(t, err)
	return reg
}

func TestAddFactRejectsNonParticipant(t *testing.T) {
	principal := ids.AuthorityId{1}
	guardian := ids.AuthorityId{2}
	outsider := ids.AuthorityId{3}

	c := New(ids.ContextId{1}, []ids.AuthorityId{principal, guardian}, registryWithGuardianBinding(t))

	binding := EncodeGuardianBinding(GuardianBinding{Principal: principal, Guardian: outsider, Threshold: 1})
	f := NewRelationalFact(clock.NewOrderTime(0, principal, ids.Hash32{}), clock.TimeStamp{}, []ids.AuthorityId{principal, outsider}, TypeIDGuardianBinding, binding)

	err := c.AddFact(f)
	require.Error(t, err)
	require.Zero(t, len(c.Facts()))
}

func TestAddFactAcceptsAndFansOutDeltas(t *testing.T) {
	principal := ids.AuthorityId{1}
	guardian := ids.AuthorityId{2}

	c := New(ids.ContextId{1}, []ids.AuthorityId{principal, guardian}, registryWithGuardianBinding(t))

	var got []fact.DomainDelta
	c.Subscribe(func(ctx ids.ContextId, deltas []fact.DomainDelta) {
		got = append(got, deltas...)
	})

	binding := EncodeGuardianBinding(GuardianBinding{Principal: principal, Guardian: guardian, Threshold: 1})
	f := NewRelationalFact(clock.NewOrderTime(0, principal, ids.Hash32{}), clock.TimeStamp{}, []ids.AuthorityId{principal, guardian}, TypeIDGuardianBinding, binding)

	require.NoError(t, c.AddFact(f))
	require.Len(t, c.Facts(), 1)
	require.Len(t, got, 1)
	require.Equal(t, TypeIDGuardianBinding, got[0].TypeID)
}

func TestAddFactRejectsNonRelationalContent(t *testing.T) {
	c := New(ids.ContextId{1}, []ids.AuthorityId{{1}}, registryWithGuardianBinding(t))
	f := fact.Fact{Content: fact.Content{Kind: fact.ContentSnapshot, Snapshot: &fact.SnapshotContent{}}}
	require.Error(t, c.AddFact(f))
}

func TestUnknownBindingTypeProducesNoDeltasButIsRetained(t *testing.T) {
	principal := ids.AuthorityId{1}
	c := New(ids.ContextId{1}, []ids.AuthorityId{principal}, fact.NewRegistry())

	f := NewRelationalFact(clock.NewOrderTime(0, principal, ids.Hash32{}), clock.TimeStamp{}, []ids.AuthorityId{principal}, "unknown.type", []byte("x"))
	require.NoError(t, c.AddFact(f))
	require.Len(t, c.Facts(), 1)
}

func TestGuardianBindingRoundTrips(t *testing.T) {
	want := GuardianBinding{Principal: ids.AuthorityId{1}, Guardian: ids.AuthorityId{2}, Threshold: 3}
	got, err := DecodeGuardianBinding(EncodeGuardianBinding(want))
	require.NoError(t, err)
	require.Equal(t, want, got)
}
