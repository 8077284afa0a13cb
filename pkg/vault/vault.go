package vault

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no object exists under the key.
var ErrNotFound = errors.New("vault: object not found")

// ObjectStore is the append-only MemoryVault contract. Keys are
// time+hash derived path strings ("psyche_states/<user>/<version>.json"),
// so concurrent writers never race on the same key and a write is never
// an in-place update.
type ObjectStore interface {
	Put(ctx context.Context, key string, blob []byte) error
	Get(ctx context.Context, key string) ([]byte, error)

	// List returns up to limit keys under the prefix, most recent
	// first. A limit <= 0 means no limit. The prefix is expected to be
	// a directory-style path ending in "/".
	List(ctx context.Context, prefix string, limit int) ([]string, error)
}
