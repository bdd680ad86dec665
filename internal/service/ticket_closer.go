package service

import (
	"context"
	"errors"
	"time"

	"github.com/spec-kit/ticket-autoclose/internal/domain"
	"github.com/spec-kit/ticket-autoclose/internal/repository"
	apperrors "github.com/spec-kit/ticket-autoclose/pkg/util"
)

var (
	// ErrAlreadyClosed means the stored ticket is closed; nothing was written.
	ErrAlreadyClosed = errors.New("ticket already closed")
	// ErrTicketChanged means the ticket moved on after it was selected.
	ErrTicketChanged = errors.New("ticket changed since selection")
)

// TicketCloser moves a selected ticket to the closed state.
type TicketCloser struct {
	tickets repository.TicketRepository
	now     func() time.Time
}

// NewTicketCloser constructs the closer.
func NewTicketCloser(tickets repository.TicketRepository) *TicketCloser {
	return &TicketCloser{tickets: tickets, now: time.Now}
}

// Close persists status CLOSED for ticket as a single-record update. The
// caller must hold the ticket's lease. The stored record is re-checked under
// the row lock: a closed record yields ErrAlreadyClosed, and a record that
// left the selected status or saw activity at or after cutoff yields
// ErrTicketChanged.
func (c *TicketCloser) Close(ctx context.Context, ticket domain.Ticket, cutoff time.Time) error {
	err := c.tickets.LeaseAndUpdate(ctx, ticket.ID, func(current *domain.Ticket) error {
		if current.Status == domain.TicketStatusClosed {
			return ErrAlreadyClosed
		}
		if current.Status.Terminal() || current.Status != ticket.Status || !current.InactiveSince(cutoff) {
			return ErrTicketChanged
		}
		closedAt := c.now().UTC()
		current.Status = domain.TicketStatusClosed
		current.ClosedAt = &closedAt
		return nil
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrAlreadyClosed), errors.Is(err, ErrTicketChanged):
		return err
	case errors.Is(err, repository.ErrLeaseConflict):
		return apperrors.NewLeaseConflict(ticket.ID, err)
	default:
		return apperrors.NewPersistFailure(ticket.ID, err)
	}
}
