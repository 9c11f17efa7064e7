package main

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hxrts/aura/internal/fact"
	"github.com/hxrts/aura/internal/ids"
)

func TestAuthorityKeyRegistryResolvesKeyAtExactEpoch(t *testing.T) {
	reg := newAuthorityKeyRegistry()
	authority := ids.AuthorityId{1}
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	reg.set(authority, 0, pub)
	reg.set(authority, 1, pub)

	got, err := reg.GroupPublicKeyAt(authority, 1)
	require.NoError(t, err)
	require.Equal(t, pub, got)
}

func TestAuthorityKeyRegistryRejectsUnknownAuthority(t *testing.T) {
	reg := newAuthorityKeyRegistry()
	_, err := reg.GroupPublicKeyAt(ids.AuthorityId{9}, 0)
	require.Error(t, err)
}

func TestAuthorityKeyRegistryRejectsUnknownEpoch(t *testing.T) {
	reg := newAuthorityKeyRegistry()
	authority := ids.AuthorityId{1}
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	reg.set(authority, 0, pub)

	_, err = reg.GroupPublicKeyAt(authority, 5)
	require.Error(t, err)
}

func TestContextRegistryOpenIsIdempotentPerContextID(t *testing.T) {
	reg := newContextRegistry(fact.NewRegistry())
	id := ids.ContextId{1}
	participants := []ids.AuthorityId{{1}, {2}}

	first := reg.open(id, participants)
	second := reg.open(id, participants)
	require.Same(t, first, second)
}

func TestContextRegistryOpenCreatesDistinctContextsPerID(t *testing.T) {
	reg := newContextRegistry(fact.NewRegistry())
	a := reg.open(ids.ContextId{1}, []ids.AuthorityId{{1}})
	b := reg.open(ids.ContextId{2}, []ids.AuthorityId{{1}})
	require.NotSame(t, a, b)
}
