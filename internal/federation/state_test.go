package federation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStateStore(t *testing.T, ttl time.Duration) (*StateStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStateStore(client, ttl), mr
}

func TestStateIssueAndConsume(t *testing.T) {
	store, _ := newTestStateStore(t, time.Minute)
	ctx := context.Background()

	state, err := store.Issue(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if state == "" {
		t.Fatal("empty state")
	}
	if err := store.Consume(ctx, state); err != nil {
		t.Fatalf("consume: %v", err)
	}
}

func TestStateConsumeIsOneTime(t *testing.T) {
	store, _ := newTestStateStore(t, time.Minute)
	ctx := context.Background()

	state, err := store.Issue(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Consume(ctx, state); err != nil {
		t.Fatal(err)
	}
	if err := store.Consume(ctx, state); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("replay accepted: %v", err)
	}
}

func TestStateConsumeUnknown(t *testing.T) {
	store, _ := newTestStateStore(t, time.Minute)
	ctx := context.Background()

	if err := store.Consume(ctx, "never-issued"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	if err := store.Consume(ctx, ""); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("empty state: %v", err)
	}
}

func TestStateExpires(t *testing.T) {
	store, mr := newTestStateStore(t, time.Minute)
	ctx := context.Background()

	state, err := store.Issue(ctx)
	if err != nil {
		t.Fatal(err)
	}
	mr.FastForward(2 * time.Minute)

	if err := store.Consume(ctx, state); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expired state accepted: %v", err)
	}
}

func TestStatesAreUnique(t *testing.T) {
	store, _ := newTestStateStore(t, time.Minute)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		state, err := store.Issue(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if seen[state] {
			t.Fatalf("duplicate state %q", state)
		}
		seen[state] = true
	}
}
