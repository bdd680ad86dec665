package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spec-kit/ticket-autoclose/internal/domain"
	apperrors "github.com/spec-kit/ticket-autoclose/pkg/util"
)

func newTestCloser(store *fakeTicketStore) *TicketCloser {
	closer := NewTicketCloser(store)
	closer.now = func() time.Time { return testNow }
	return closer
}

func TestCloseSetsStatusAndClosedAt(t *testing.T) {
	store := newFakeTicketStore(waiting("T1", "A1", daysAgo(5)))

	if err := newTestCloser(store).Close(context.Background(), waiting("T1", "A1", daysAgo(5)), daysAgo(3)); err != nil {
		t.Fatalf("close: %v", err)
	}
	got, _ := store.GetByID(context.Background(), "T1")
	if got.Status != domain.TicketStatusClosed {
		t.Fatalf("expected closed, got %s", got.Status)
	}
	if got.ClosedAt == nil || !got.ClosedAt.Equal(testNow) {
		t.Fatalf("unexpected closed_at %v", got.ClosedAt)
	}
}

func TestCloseIsNoOpOnClosedTicket(t *testing.T) {
	closed := waiting("T1", "A1", daysAgo(5))
	closed.Status = domain.TicketStatusClosed
	store := newFakeTicketStore(closed)

	err := newTestCloser(store).Close(context.Background(), waiting("T1", "A1", daysAgo(5)), daysAgo(3))
	if !errors.Is(err, ErrAlreadyClosed) {
		t.Fatalf("expected ErrAlreadyClosed, got %v", err)
	}
	if store.writes != 0 {
		t.Fatalf("closing a closed ticket must not write")
	}
}

func TestCloseRejectsNewerActivity(t *testing.T) {
	store := newFakeTicketStore(waiting("T1", "A1", daysAgo(1)))

	err := newTestCloser(store).Close(context.Background(), waiting("T1", "A1", daysAgo(5)), daysAgo(3))
	if !errors.Is(err, ErrTicketChanged) {
		t.Fatalf("expected ErrTicketChanged, got %v", err)
	}
	if store.status("T1") != domain.TicketStatusWaitingForCustomer {
		t.Fatalf("ticket must stay open")
	}
}

func TestCloseMapsStoreErrors(t *testing.T) {
	store := newFakeTicketStore(waiting("T1", "A1", daysAgo(5)), waiting("T2", "A2", daysAgo(5)))
	store.rowLocked["T1"] = true
	store.updateErrs["T2"] = errors.New("serialization failure")
	closer := newTestCloser(store)

	if code := apperrors.CodeOf(closer.Close(context.Background(), waiting("T1", "A1", daysAgo(5)), daysAgo(3))); code != apperrors.CodeLeaseConflict {
		t.Fatalf("expected lease conflict, got %s", code)
	}
	if code := apperrors.CodeOf(closer.Close(context.Background(), waiting("T2", "A2", daysAgo(5)), daysAgo(3))); code != apperrors.CodePersistFailed {
		t.Fatalf("expected persist failure, got %s", code)
	}
}

func TestCloseAcceptsNewerActivityStillPastCutoff(t *testing.T) {
	store := newFakeTicketStore(waiting("T1", "A1", daysAgo(5)))

	err := newTestCloser(store).Close(context.Background(), waiting("T1", "A1", daysAgo(10)), daysAgo(3))
	if err != nil {
		t.Fatalf("ticket still inactive past the cutoff must close, got %v", err)
	}
	if store.status("T1") != domain.TicketStatusClosed {
		t.Fatalf("expected closed, got %s", store.status("T1"))
	}
}

func TestCloseRejectsCancelledTicket(t *testing.T) {
	cancelled := waiting("T1", "A1", daysAgo(5))
	cancelled.Status = domain.TicketStatusCancelled
	store := newFakeTicketStore(cancelled)

	err := newTestCloser(store).Close(context.Background(), waiting("T1", "A1", daysAgo(5)), daysAgo(3))
	if !errors.Is(err, ErrTicketChanged) {
		t.Fatalf("expected ErrTicketChanged, got %v", err)
	}
	if store.writes != 0 {
		t.Fatalf("cancelled ticket must not be written")
	}
}
