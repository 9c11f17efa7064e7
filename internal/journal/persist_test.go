package journal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hxrts/aura/internal/fact"
	"github.com/hxrts/aura/internal/ids"
	"github.com/hxrts/aura/storage"
)

func testContextID(b byte) ids.ContextId {
	var id ids.ContextId
	id[0] = b
	return id
}

// blobStore adapts storage.BlobStore (sync, no context) to journal.Blob.
type blobStore struct {
	backing storage.BlobStore
}

func (b blobStore) Put(_ context.Context, key string, value []byte) error {
	return b.backing.Put(key, value)
}

func (b blobStore) Get(_ context.Context, key string) ([]byte, error) {
	return b.backing.Get(key)
}

func (b blobStore) List(_ context.Context, prefix string) ([]string, error) {
	return b.backing.List(prefix)
}

func TestPersistThenLoadRoundTripsEveryFact(t *testing.T) {
	ns := fact.AuthorityNamespace(testAuthority(9))
	j := journalWithFacts(t, ns, 5)
	store := blobStore{backing: storage.NewMemDB()}
	ctx := context.Background()

	require.NoError(t, j.Persist(ctx, store))

	loaded, err := Load(ctx, store, ns)
	require.NoError(t, err)
	require.Equal(t, j.Len(), loaded.Len())
	require.Equal(t, j.Commitment(), loaded.Commitment())
}

func TestLoadOfNeverPersistedNamespaceReturnsEmptyJournal(t *testing.T) {
	ns := fact.ContextNamespace(testContextID(1))
	store := blobStore{backing: storage.NewMemDB()}

	loaded, err := Load(context.Background(), store, ns)
	require.NoError(t, err)
	require.Zero(t, loaded.Len())
	require.True(t, loaded.Namespace().Equal(ns))
}

func TestPersistIsIdempotentAcrossRepeatedCalls(t *testing.T) {
	ns := fact.AuthorityNamespace(testAuthority(3))
	j := journalWithFacts(t, ns, 2)
	store := blobStore{backing: storage.NewMemDB()}
	ctx := context.Background()

	require.NoError(t, j.Persist(ctx, store))
	require.NoError(t, j.Persist(ctx, store))

	loaded, err := Load(ctx, store, ns)
	require.NoError(t, err)
	require.Equal(t, j.Len(), loaded.Len())
}

func TestStorePersistAllAndLoadNamespaceRoundTrip(t *testing.T) {
	authorityNS := fact.AuthorityNamespace(testAuthority(1))
	contextNS := fact.ContextNamespace(testContextID(2))

	s := NewStore()
	require.NoError(t, s.GetOrCreate(authorityNS).AddFact(genericFact(authorityNS, 0, "a")))
	require.NoError(t, s.GetOrCreate(contextNS).AddFact(genericFact(contextNS, 0, "c")))

	store := blobStore{backing: storage.NewMemDB()}
	ctx := context.Background()
	require.NoError(t, s.PersistAll(ctx, store))

	fresh := NewStore()
	require.NoError(t, fresh.LoadNamespace(ctx, store, authorityNS))
	require.NoError(t, fresh.LoadNamespace(ctx, store, contextNS))

	got, ok := fresh.Get(authorityNS)
	require.True(t, ok)
	require.Equal(t, 1, got.Len())

	got, ok = fresh.Get(contextNS)
	require.True(t, ok)
	require.Equal(t, 1, got.Len())
}
</content>
