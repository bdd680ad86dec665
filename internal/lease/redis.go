package lease

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "autoclose:lease:ticket:"

// releaseScript deletes the key only while it still carries our token, so an
// expired lease re-acquired by someone else is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisLeaser implements Leaser with SET NX PX keys shared by every worker.
type RedisLeaser struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLeaser returns a Redis-backed leaser whose holds expire after ttl.
func NewRedisLeaser(client *redis.Client, ttl time.Duration) *RedisLeaser {
	return &RedisLeaser{client: client, ttl: ttl}
}

// Acquire takes the lease for ticketID or returns ErrHeld.
func (r *RedisLeaser) Acquire(ctx context.Context, ticketID string) (Lease, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, leaseKey(ticketID), token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("lease/redis: acquire %s: %w", ticketID, err)
	}
	if !ok {
		return nil, ErrHeld
	}
	return &redisLease{client: r.client, ticketID: ticketID, token: token}, nil
}

type redisLease struct {
	client   *redis.Client
	ticketID string
	token    string
	once     sync.Once
	err      error
}

func (l *redisLease) TicketID() string { return l.ticketID }

func (l *redisLease) Release(ctx context.Context) error {
	l.once.Do(func() {
		if err := releaseScript.Run(ctx, l.client, []string{leaseKey(l.ticketID)}, l.token).Err(); err != nil {
			l.err = fmt.Errorf("lease/redis: release %s: %w", l.ticketID, err)
		}
	})
	return l.err
}

func leaseKey(ticketID string) string {
	return keyPrefix + ticketID
}
