package vault

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

type memoryObject struct {
	blob    []byte
	written time.Time
}

// MemoryStore is the in-process vault backend used in development and
// tests. Objects never expire; the vault is append-only by contract.
type MemoryStore struct {
	cache *cache.Cache
}

var _ ObjectStore = &MemoryStore{}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cache: cache.New(cache.NoExpiration, 0),
	}
}

func (s *MemoryStore) Put(_ context.Context, key string, blob []byte) error {
	// Copy so later caller mutations cannot reach the stored object.
	stored := make([]byte, len(blob))
	copy(stored, blob)
	s.cache.Set(key, memoryObject{blob: stored, written: time.Now()}, cache.NoExpiration)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	x, found := s.cache.Get(key)
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	obj := x.(memoryObject)
	out := make([]byte, len(obj.blob))
	copy(out, obj.blob)
	return out, nil
}

func (s *MemoryStore) List(_ context.Context, prefix string, limit int) ([]string, error) {
	type entry struct {
		key     string
		written time.Time
	}
	var entries []entry
	for key, item := range s.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			entries = append(entries, entry{key: key, written: item.Object.(memoryObject).written})
		}
	}

	// Most recent first; key as tie-breaker for same-instant writes.
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].written.Equal(entries[j].written) {
			return entries[i].key > entries[j].key
		}
		return entries[i].written.After(entries[j].written)
	})

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if limit > 0 && len(keys) >= limit {
			break
		}
		keys = append(keys, e.key)
	}
	return keys, nil
}
