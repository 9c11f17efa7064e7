// Package storage implements the Storage effect's backing key-value store
// (spec §4.4, §6): a generic byte-blob store so Aura can run against an
// in-memory backend (tests, simulation) or a persistent one (production),
// adapted from the teacher's storage/db.go Database interface.
package storage

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// BlobStore is the interface both backends satisfy; internal/effects'
// production Storage handler adapts it to the effect interface.
type BlobStore interface {
	Exists(key string) (bool, error)
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Delete(key string) error
	List(prefix string) ([]string, error)
	Close() error
}

// MemDB is an in-memory BlobStore, used for tests and Simulation mode.
type MemDB struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemDB returns an empty in-memory store.
func NewMemDB() *MemDB {
	return &MemDB{data: make(map[string][]byte)}
}

func (db *MemDB) Exists(key string) (bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	_, ok := db.data[key]
	return ok, nil
}

func (db *MemDB) Get(key string) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	v, ok := db.data[key]
	if !ok {
		return nil, fmt.Errorf("storage: key %q not found", key)
	}
	return append([]byte(nil), v...), nil
}

func (db *MemDB) Put(key string, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.data[key] = append([]byte(nil), value...)
	return nil
}

func (db *MemDB) Delete(key string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.data, key)
	return nil
}

func (db *MemDB) List(prefix string) ([]string, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	var out []string
	for k := range db.data {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (db *MemDB) Close() error { return nil }

// LevelDB is a persistent BlobStore backed by goleveldb, matching the
// teacher's storage/db.go LevelDB shape.
type LevelDB struct {
	db *leveldb.DB
}

// NewLevelDB opens (or creates) a LevelDB store at path.
func NewLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: open leveldb at %s: %w", path, err)
	}
	return &LevelDB{db: db}, nil
}

func (l *LevelDB) Exists(key string) (bool, error) {
	return l.db.Has([]byte(key), nil)
}

func (l *LevelDB) Get(key string) ([]byte, error) {
	v, err := l.db.Get([]byte(key), nil)
	if err != nil {
		return nil, fmt.Errorf("storage: get %q: %w", key, err)
	}
	return v, nil
}

func (l *LevelDB) Put(key string, value []byte) error {
	if err := l.db.Put([]byte(key), value, nil); err != nil {
		return fmt.Errorf("storage: put %q: %w", key, err)
	}
	return nil
}

func (l *LevelDB) Delete(key string) error {
	if err := l.db.Delete([]byte(key), nil); err != nil {
		return fmt.Errorf("storage: delete %q: %w", key, err)
	}
	return nil
}

func (l *LevelDB) List(prefix string) ([]string, error) {
	iter := l.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	defer iter.Release()
	var out []string
	for iter.Next() {
		out = append(out, string(iter.Key()))
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("storage: list prefix %q: %w", prefix, err)
	}
	return out, nil
}

func (l *LevelDB) Close() error { return l.db.Close() }

// Key builds the "<component>:<identifier>:<field>" convention of spec §6.
func Key(component, identifier, field string) string {
	return fmt.Sprintf("%s:%s:%s", component, identifier, field)
}
