package journal

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/hxrts/aura/internal/fact"
	"github.com/hxrts/aura/storage"
)

// Blob is the minimal Storage-effect surface Persist/Load need: a
// context-scoped Put/Get/List over byte blobs. effects.Storage satisfies
// this interface structurally, so the Journal effect's production handler
// can pass its backing Storage straight through without journal importing
// the effects package (which itself imports journal).
type Blob interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

const journalComponent = "journal"

func factKey(ns fact.NS, order [32]byte) string {
	return storage.Key(journalComponent, ns.String(), hex.EncodeToString(order[:]))
}

func factPrefix(ns fact.NS) string {
	return storage.Key(journalComponent, ns.String(), "")
}

// Persist round-trips every fact currently held through the Storage effect
// (spec §4.1 "persist(journal)"), one blob per fact keyed by the
// "<component>:<identifier>:<field>" convention of spec §6 (storage.Key),
// so a later Load can recover the exact fact set via List+Get.
func (j *Journal) Persist(ctx context.Context, store Blob) error {
	for _, f := range j.Facts() {
		enc, err := fact.Encode(f)
		if err != nil {
			return fmt.Errorf("journal: persist: encode fact: %w", err)
		}
		if err := store.Put(ctx, factKey(j.Namespace(), f.Order), enc); err != nil {
			return fmt.Errorf("journal: persist: put fact: %w", err)
		}
	}
	return nil
}

// Load reconstructs the journal for ns from whatever facts were previously
// persisted under it (spec §4.1 "load() -> journal"). Returns an empty
// journal, not an error, if nothing was ever persisted for ns.
func Load(ctx context.Context, store Blob, ns fact.NS) (*Journal, error) {
	keys, err := store.List(ctx, factPrefix(ns))
	if err != nil {
		return nil, fmt.Errorf("journal: load: list: %w", err)
	}

	j := New(ns)
	for _, k := range keys {
		enc, err := store.Get(ctx, k)
		if err != nil {
			return nil, fmt.Errorf("journal: load: get %q: %w", k, err)
		}
		f, err := fact.Decode(enc)
		if err != nil {
			return nil, fmt.Errorf("journal: load: decode %q: %w", k, err)
		}
		if err := j.AddFact(f); err != nil {
			return nil, fmt.Errorf("journal: load: add fact %q: %w", k, err)
		}
	}
	return j, nil
}

// PersistAll persists every journal currently held by the store. Called at
// shutdown so no fact is lost across a process restart.
func (s *Store) PersistAll(ctx context.Context, store Blob) error {
	s.mu.RLock()
	journals := make([]*Journal, 0, len(s.journals))
	for _, j := range s.journals {
		journals = append(journals, j)
	}
	s.mu.RUnlock()

	for _, j := range journals {
		if err := j.Persist(ctx, store); err != nil {
			return err
		}
	}
	return nil
}

// LoadNamespace loads ns from store and merges it into the store's live
// journal for that namespace, creating it if absent. Called at startup for
// every namespace the process expects to serve.
func (s *Store) LoadNamespace(ctx context.Context, store Blob, ns fact.NS) error {
	loaded, err := Load(ctx, store, ns)
	if err != nil {
		return err
	}
	return s.Merge(ns, loaded)
}
</content>
