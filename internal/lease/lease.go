// Package lease provides exclusive, time-bounded holds on individual tickets
// so that overlapping closure runs never process the same ticket twice.
package lease

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrHeld is returned by Acquire when another holder owns the lease.
var ErrHeld = errors.New("lease held by another worker")

// Leaser hands out per-ticket leases.
type Leaser interface {
	Acquire(ctx context.Context, ticketID string) (Lease, error)
}

// Lease is an acquired hold. Release is safe to call more than once.
type Lease interface {
	TicketID() string
	Release(ctx context.Context) error
}

// MemoryLeaser keeps leases in process memory. It guards a single process
// only and is used when Redis is not reachable.
type MemoryLeaser struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	leases map[string]memoryHold
}

type memoryHold struct {
	token     string
	expiresAt time.Time
}

// NewMemoryLeaser builds an in-process leaser whose holds expire after ttl.
func NewMemoryLeaser(ttl time.Duration) *MemoryLeaser {
	return &MemoryLeaser{
		ttl:    ttl,
		now:    time.Now,
		leases: make(map[string]memoryHold),
	}
}

// Acquire takes the lease for ticketID unless a live hold exists.
func (m *MemoryLeaser) Acquire(ctx context.Context, ticketID string) (Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if hold, ok := m.leases[ticketID]; ok && now.Before(hold.expiresAt) {
		return nil, ErrHeld
	}
	token := uuid.NewString()
	m.leases[ticketID] = memoryHold{token: token, expiresAt: now.Add(m.ttl)}
	return &memoryLease{owner: m, ticketID: ticketID, token: token}, nil
}

func (m *MemoryLeaser) release(ticketID, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hold, ok := m.leases[ticketID]; ok && hold.token == token {
		delete(m.leases, ticketID)
	}
}

type memoryLease struct {
	owner    *MemoryLeaser
	ticketID string
	token    string
	once     sync.Once
}

func (l *memoryLease) TicketID() string { return l.ticketID }

func (l *memoryLease) Release(context.Context) error {
	l.once.Do(func() { l.owner.release(l.ticketID, l.token) })
	return nil
}
