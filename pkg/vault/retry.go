package vault

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy parameterizes the exponential backoff applied to vault
// writes: base delay doubling up to the cap, bounded attempt count.
type RetryPolicy struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	MaxRetries int
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		BaseDelay:  200 * time.Millisecond,
		MaxDelay:   5 * time.Second,
		MaxRetries: 4,
	}
}

// RetryingStore decorates an ObjectStore with write retries. Only Put is
// retried: keys are content/path derived, so reapplying a write is safe.
// Reads degrade at the caller instead.
type RetryingStore struct {
	next   ObjectStore
	policy RetryPolicy
}

var _ ObjectStore = &RetryingStore{}

func NewRetryingStore(next ObjectStore, policy RetryPolicy) *RetryingStore {
	return &RetryingStore{next: next, policy: policy}
}

func (s *RetryingStore) Put(ctx context.Context, key string, blob []byte) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.policy.BaseDelay
	eb.MaxInterval = s.policy.MaxDelay
	eb.Multiplier = 2

	operation := func() (struct{}, error) {
		return struct{}{}, s.next.Put(ctx, key, blob)
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(uint(s.policy.MaxRetries)),
	)
	return err
}

func (s *RetryingStore) Get(ctx context.Context, key string) ([]byte, error) {
	return s.next.Get(ctx, key)
}

func (s *RetryingStore) List(ctx context.Context, prefix string, limit int) ([]string, error) {
	return s.next.List(ctx, prefix, limit)
}
