package psyche

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"time"

	"everlight-os/internal/pkg/logger"
	"everlight-os/pkg/vault"
)

// Version identifies one immutable state write. Versions are never
// overwritten: every sync produces a new one. The id combines a
// nanosecond timestamp with the content hash, so identical snapshots
// written twice still get distinct versions.
type Version struct {
	UserID      string    `json:"user_id"`
	Timestamp   time.Time `json:"timestamp"`
	ContentHash string    `json:"content_hash"`
	BlobKey     string    `json:"blob_key"`
}

func (v *Version) ID() string {
	return fmt.Sprintf("%s_%s_%s", v.UserID, v.Timestamp.Format(versionTimeLayout), v.ContentHash)
}

const versionTimeLayout = "20060102T150405.000000000"

// VersionStore keeps per-user versioned state blobs in the vault,
// append-only under psyche_states/<user>/.
type VersionStore struct {
	store  vault.ObjectStore
	logger logger.ILogger
}

func NewVersionStore(store vault.ObjectStore, log logger.ILogger) *VersionStore {
	return &VersionStore{store: store, logger: log}
}

func userPrefix(userID string) string {
	return fmt.Sprintf("psyche_states/%s/", userID)
}

func (s *VersionStore) Save(ctx context.Context, userID string, state State) (*Version, error) {
	blob, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}

	h := fnv.New64a()
	h.Write(blob)
	contentHash := fmt.Sprintf("%x", h.Sum64())

	now := time.Now().UTC()
	version := &Version{
		UserID:      userID,
		Timestamp:   now,
		ContentHash: contentHash,
		BlobKey:     fmt.Sprintf("%s%s_%s.json", userPrefix(userID), now.Format(versionTimeLayout), contentHash),
	}

	if err := s.store.Put(ctx, version.BlobKey, blob); err != nil {
		return nil, fmt.Errorf("store state version: %w", err)
	}
	return version, nil
}

// Recent returns up to limit most recent states for the user, newest
// first. Individual unreadable blobs are skipped, not fatal.
func (s *VersionStore) Recent(ctx context.Context, userID string, limit int) ([]State, error) {
	keys, err := s.store.List(ctx, userPrefix(userID), limit)
	if err != nil {
		return nil, fmt.Errorf("list state versions: %w", err)
	}

	states := make([]State, 0, len(keys))
	for _, key := range keys {
		blob, err := s.store.Get(ctx, key)
		if err != nil {
			s.logger.Warn("PsycheSync", "Skipping unreadable state version", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
			continue
		}
		var state State
		if err := json.Unmarshal(blob, &state); err != nil {
			s.logger.Warn("PsycheSync", "Skipping corrupt state version", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
			continue
		}
		states = append(states, state)
	}
	return states, nil
}
