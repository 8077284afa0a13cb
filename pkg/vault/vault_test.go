package vault

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	blob := []byte(`{"state":"grounded"}`)
	if err := store.Put(ctx, "psyche_states/user1/v1.json", blob); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := store.Get(ctx, "psyche_states/user1/v1.json")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, blob) {
		t.Errorf("Get = %s, want %s", got, blob)
	}
}

func TestMemoryStoreGetMissing(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Get(context.Background(), "nowhere/nothing.json")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreListMostRecentFirst(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		key := fmt.Sprintf("psyche_states/user1/v%d.json", i)
		if err := store.Put(ctx, key, []byte("{}")); err != nil {
			t.Fatalf("Put: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}
	if err := store.Put(ctx, "psyche_states/user2/v0.json", []byte("{}")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	keys, err := store.List(ctx, "psyche_states/user1/", 3)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(keys) != 3 {
		t.Fatalf("len(keys) = %d, want 3", len(keys))
	}
	want := []string{
		"psyche_states/user1/v3.json",
		"psyche_states/user1/v2.json",
		"psyche_states/user1/v1.json",
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("keys[%d] = %s, want %s", i, keys[i], want[i])
		}
	}
}

// flakyStore fails the first N writes, then delegates to a MemoryStore.
type flakyStore struct {
	*MemoryStore
	failures int
}

func (s *flakyStore) Put(ctx context.Context, key string, blob []byte) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("transient store outage")
	}
	return s.MemoryStore.Put(ctx, key, blob)
}

func TestRetryingStoreRecoversTransientFailures(t *testing.T) {
	flaky := &flakyStore{MemoryStore: NewMemoryStore(), failures: 2}
	store := NewRetryingStore(flaky, RetryPolicy{
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		MaxRetries: 4,
	})

	if err := store.Put(context.Background(), "memories/x.json", []byte("{}")); err != nil {
		t.Fatalf("Put should succeed after retries: %v", err)
	}
	if _, err := store.Get(context.Background(), "memories/x.json"); err != nil {
		t.Errorf("Get after retried Put: %v", err)
	}
}

func TestRetryingStoreGivesUp(t *testing.T) {
	flaky := &flakyStore{MemoryStore: NewMemoryStore(), failures: 10}
	store := NewRetryingStore(flaky, RetryPolicy{
		BaseDelay:  time.Millisecond,
		MaxDelay:   2 * time.Millisecond,
		MaxRetries: 3,
	})

	if err := store.Put(context.Background(), "memories/x.json", []byte("{}")); err == nil {
		t.Error("Put should fail once the attempt budget is exhausted")
	}
}
