package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/ticket-autoclose/internal/domain"
	"github.com/spec-kit/ticket-autoclose/internal/events"
	"github.com/spec-kit/ticket-autoclose/internal/lease"
	"github.com/spec-kit/ticket-autoclose/internal/repository"
)

var testNow = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

const testThreshold = 3 * 24 * time.Hour

func daysAgo(n int) time.Time {
	return testNow.Add(-time.Duration(n) * 24 * time.Hour)
}

// fakeTicketStore is an in-memory TicketRepository preserving insertion order.
type fakeTicketStore struct {
	mu           sync.Mutex
	tickets      map[string]*domain.Ticket
	order        []string
	listErr      error
	updateErrs   map[string]error
	rowLocked    map[string]bool
	beforeUpdate func(current *domain.Ticket)
	listCalls    int
	writes       int
}

func newFakeTicketStore(tickets ...domain.Ticket) *fakeTicketStore {
	s := &fakeTicketStore{
		tickets:    make(map[string]*domain.Ticket),
		updateErrs: make(map[string]error),
		rowLocked:  make(map[string]bool),
	}
	for _, t := range tickets {
		t := t
		s.tickets[t.ID] = &t
		s.order = append(s.order, t.ID)
	}
	return s
}

func (s *fakeTicketStore) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return nil, fmt.Errorf("ticket %s: not found", id)
	}
	cp := *t
	return &cp, nil
}

func (s *fakeTicketStore) ListByStatusAndActivity(_ context.Context, status domain.TicketStatus, olderThan time.Time) ([]domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []domain.Ticket
	for _, id := range s.order {
		t := s.tickets[id]
		if t.Status == status && t.InactiveSince(olderThan) {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (s *fakeTicketStore) LeaseAndUpdate(_ context.Context, id string, mutate repository.TicketMutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.updateErrs[id]; err != nil {
		return err
	}
	if s.rowLocked[id] {
		return fmt.Errorf("%w: %s", repository.ErrLeaseConflict, id)
	}
	stored, ok := s.tickets[id]
	if !ok {
		return fmt.Errorf("ticket %s: not found", id)
	}
	if s.beforeUpdate != nil {
		s.beforeUpdate(stored)
	}
	working := *stored
	if err := mutate(&working); err != nil {
		return err
	}
	*stored = working
	s.writes++
	return nil
}

func (s *fakeTicketStore) status(id string) domain.TicketStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tickets[id].Status
}

// fakeDirectory maps account IDs to primary addresses.
type fakeDirectory struct {
	emails map[string]string
	errs   map[string]error
}

func (d *fakeDirectory) FindPrimaryEmail(_ context.Context, accountID string) (string, bool, error) {
	if err := d.errs[accountID]; err != nil {
		return "", false, err
	}
	email, ok := d.emails[accountID]
	return email, ok, nil
}

// fakeTransport records every send attempt.
type fakeTransport struct {
	mu      sync.Mutex
	sent    []domain.NotificationMessage
	failFor map[string]error
	onSend  func(msg domain.NotificationMessage)
}

func (t *fakeTransport) Send(_ context.Context, msg domain.NotificationMessage) error {
	t.mu.Lock()
	t.sent = append(t.sent, msg)
	hook := t.onSend
	err := t.failFor[msg.To]
	t.mu.Unlock()
	if hook != nil {
		hook(msg)
	}
	return err
}

func (t *fakeTransport) attempts() []domain.NotificationMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.NotificationMessage, len(t.sent))
	copy(out, t.sent)
	return out
}

type harness struct {
	store     *fakeTicketStore
	directory *fakeDirectory
	transport *fakeTransport
	leaser    *lease.MemoryLeaser
	logs      *observer.ObservedLogs
	events    *[]events.Event
	service   *ClosureService
}

func newHarness(tickets ...domain.Ticket) *harness {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	h := &harness{
		store:     newFakeTicketStore(tickets...),
		directory: &fakeDirectory{emails: map[string]string{}, errs: map[string]error{}},
		transport: &fakeTransport{failFor: map[string]error{}},
		leaser:    lease.NewMemoryLeaser(time.Minute),
		logs:      logs,
		events:    &[]events.Event{},
	}

	dispatcher := events.NewInMemoryDispatcher()
	record := func(_ context.Context, e events.Event) error {
		*h.events = append(*h.events, e)
		return nil
	}
	for _, et := range []events.EventType{
		events.EventTicketAutoClosed,
		events.EventClosureNotification,
		events.EventClosureTicketSkipped,
		events.EventClosureRunCompleted,
		events.EventClosureRunFailed,
	} {
		dispatcher.Subscribe(et, record)
	}

	closer := NewTicketCloser(h.store)
	closer.now = func() time.Time { return testNow }
	h.service = NewClosureService(ClosureDependencies{
		TicketRepo: h.store,
		Leaser:     h.leaser,
		Closer:     closer,
		Notifier:   NewNotifier(h.directory, h.transport, logger),
		Dispatcher: dispatcher,
		Logger:     logger,
		Content: NotificationContent{
			Subject: "Ticket Closed Due to Inactivity",
			Body:    "Hi,\n\nJust letting you know this ticket has been closed due to inactivity.",
		},
	})
	h.service.clock = func() time.Time { return testNow }
	return h
}

func (h *harness) run(ctx context.Context) (domain.RunReport, error) {
	return h.service.RunInactivityClosure(ctx, testNow, testThreshold)
}

func (h *harness) warnings() []observer.LoggedEntry {
	return h.logs.FilterLevelExact(zapcore.WarnLevel).All()
}

func waiting(id, account string, lastActivity time.Time) domain.Ticket {
	return domain.Ticket{
		ID:                id,
		CustomerAccountID: account,
		Status:            domain.TicketStatusWaitingForCustomer,
		LastActivityAt:    lastActivity,
	}
}
