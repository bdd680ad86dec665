package lease

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisLeaser(t *testing.T, ttl time.Duration) (*RedisLeaser, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLeaser(client, ttl), server
}

func TestRedisLeaserExclusive(t *testing.T) {
	ctx := context.Background()
	leaser, server := newTestRedisLeaser(t, 2*time.Minute)

	first, err := leaser.Acquire(ctx, "t-1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if first.TicketID() != "t-1" {
		t.Fatalf("unexpected ticket id %q", first.TicketID())
	}
	if ttl := server.TTL(leaseKey("t-1")); ttl != 2*time.Minute {
		t.Fatalf("expected lease ttl 2m, got %s", ttl)
	}

	if _, err := leaser.Acquire(ctx, "t-1"); !errors.Is(err, ErrHeld) {
		t.Fatalf("expected ErrHeld, got %v", err)
	}
	if _, err := leaser.Acquire(ctx, "t-2"); err != nil {
		t.Fatalf("other ticket must be independent: %v", err)
	}

	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if server.Exists(leaseKey("t-1")) {
		t.Fatalf("release must delete the key")
	}
	if _, err := leaser.Acquire(ctx, "t-1"); err != nil {
		t.Fatalf("expected re-acquire after release, got %v", err)
	}
}

func TestRedisLeaserStaleReleaseKeepsNewHolder(t *testing.T) {
	ctx := context.Background()
	leaser, server := newTestRedisLeaser(t, time.Minute)

	stale, err := leaser.Acquire(ctx, "t-1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	server.FastForward(2 * time.Minute)
	fresh, err := leaser.Acquire(ctx, "t-1")
	if err != nil {
		t.Fatalf("expected expired lease to be re-acquirable, got %v", err)
	}
	freshToken, err := server.Get(leaseKey("t-1"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if err := stale.Release(ctx); err != nil {
		t.Fatalf("release stale: %v", err)
	}
	got, err := server.Get(leaseKey("t-1"))
	if err != nil || got != freshToken {
		t.Fatalf("stale release removed the new holder's key (got %q, %v)", got, err)
	}
	if _, err := leaser.Acquire(ctx, "t-1"); !errors.Is(err, ErrHeld) {
		t.Fatalf("expected fresh lease to survive stale release, got %v", err)
	}

	if err := fresh.Release(ctx); err != nil {
		t.Fatalf("release fresh: %v", err)
	}
	if server.Exists(leaseKey("t-1")) {
		t.Fatalf("fresh holder's release must delete the key")
	}
}

func TestRedisLeaserReleaseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	leaser, server := newTestRedisLeaser(t, time.Minute)

	held, err := leaser.Acquire(ctx, "t-1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := held.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}

	other, err := leaser.Acquire(ctx, "t-1")
	if err != nil {
		t.Fatalf("acquire by another worker: %v", err)
	}
	if err := held.Release(ctx); err != nil {
		t.Fatalf("second release: %v", err)
	}
	if !server.Exists(leaseKey("t-1")) {
		t.Fatalf("repeated release must not touch another holder's key")
	}
	_ = other.Release(ctx)
}

func TestRedisLeaserUnavailable(t *testing.T) {
	leaser, server := newTestRedisLeaser(t, time.Minute)
	server.Close()

	_, err := leaser.Acquire(context.Background(), "t-1")
	if err == nil || errors.Is(err, ErrHeld) {
		t.Fatalf("expected a connection error distinct from ErrHeld, got %v", err)
	}
}
