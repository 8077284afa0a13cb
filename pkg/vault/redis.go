package vault

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps vault objects as plain values and maintains one
// sorted-set index per directory, scored by write time, so List can
// return keys most-recent-first without scanning.
type RedisStore struct {
	rdb       *redis.Client
	namespace string
}

var _ ObjectStore = &RedisStore{}

func NewRedisStore(rdb *redis.Client, namespace string) *RedisStore {
	return &RedisStore{rdb: rdb, namespace: namespace}
}

func (s *RedisStore) objectKey(key string) string {
	return s.namespace + ":obj:" + key
}

func (s *RedisStore) indexKey(dir string) string {
	return s.namespace + ":idx:" + dir
}

func (s *RedisStore) Put(ctx context.Context, key string, blob []byte) error {
	if err := s.rdb.Set(ctx, s.objectKey(key), blob, 0).Err(); err != nil {
		return fmt.Errorf("vault: redis set %s: %w", key, err)
	}

	dir := path.Dir(key)
	score := float64(time.Now().UnixNano())
	if err := s.rdb.ZAdd(ctx, s.indexKey(dir), redis.Z{Score: score, Member: key}).Err(); err != nil {
		return fmt.Errorf("vault: redis index %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	blob, err := s.rdb.Get(ctx, s.objectKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("vault: redis get %s: %w", key, err)
	}
	return blob, nil
}

func (s *RedisStore) List(ctx context.Context, prefix string, limit int) ([]string, error) {
	dir := strings.TrimSuffix(prefix, "/")
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}

	keys, err := s.rdb.ZRevRange(ctx, s.indexKey(dir), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("vault: redis list %s: %w", prefix, err)
	}
	return keys, nil
}
