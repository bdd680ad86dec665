package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-autoclose/internal/domain"
	"github.com/spec-kit/ticket-autoclose/internal/events"
	"github.com/spec-kit/ticket-autoclose/internal/lease"
	"github.com/spec-kit/ticket-autoclose/internal/repository"
	apperrors "github.com/spec-kit/ticket-autoclose/pkg/util"
)

const defaultTicketTimeout = time.Minute

// NotificationContent is the fixed message sent for every auto-closed ticket.
type NotificationContent struct {
	Subject string
	Body    string
}

// ClosureService selects inactive tickets and drives close + notify for each.
type ClosureService struct {
	tickets       repository.TicketRepository
	leaser        lease.Leaser
	closer        *TicketCloser
	notifier      *Notifier
	dispatcher    events.Dispatcher
	logger        *zap.Logger
	content       NotificationContent
	ticketTimeout time.Duration
	clock         func() time.Time
}

// ClosureDependencies bundles collaborators for the closure service.
type ClosureDependencies struct {
	TicketRepo    repository.TicketRepository
	Leaser        lease.Leaser
	Closer        *TicketCloser
	Notifier      *Notifier
	Dispatcher    events.Dispatcher
	Logger        *zap.Logger
	Content       NotificationContent
	TicketTimeout time.Duration
}

// NewClosureService constructs the service.
func NewClosureService(deps ClosureDependencies) *ClosureService {
	timeout := deps.TicketTimeout
	if timeout <= 0 {
		timeout = defaultTicketTimeout
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClosureService{
		tickets:       deps.TicketRepo,
		leaser:        deps.Leaser,
		closer:        deps.Closer,
		notifier:      deps.Notifier,
		dispatcher:    deps.Dispatcher,
		logger:        logger.Named("closure"),
		content:       deps.Content,
		ticketTimeout: timeout,
		clock:         time.Now,
	}
}

// RunInactivityClosure closes every WAITING_FOR_CUSTOMER ticket whose last
// activity is older than now-threshold and notifies its customer.
//
// Candidates are queried once. Each ticket is processed under its own lease
// and its failures are logged and recorded in the report without stopping
// the run. Only a failed candidate query is returned as an error. ctx is
// checked before every ticket; a ticket already in progress always finishes.
func (s *ClosureService) RunInactivityClosure(ctx context.Context, now time.Time, threshold time.Duration) (domain.RunReport, error) {
	report := domain.RunReport{
		RunID:     uuid.NewString(),
		StartedAt: s.clock().UTC(),
		Cutoff:    now.Add(-threshold).UTC(),
	}
	if threshold <= 0 {
		return report, apperrors.NewValidationError("inactivity threshold must be positive",
			map[string]any{"threshold": threshold.String()})
	}
	log := s.logger.With(zap.String("run_id", report.RunID))

	candidates, err := s.tickets.ListByStatusAndActivity(ctx, domain.TicketStatusWaitingForCustomer, report.Cutoff)
	if err != nil {
		log.Error("select inactive tickets", zap.Error(err))
		s.publishEvent(ctx, events.Event{
			Type:    events.EventClosureRunFailed,
			RunID:   report.RunID,
			Payload: events.ClosureRunFailedPayload{Error: err.Error()},
		})
		return report, apperrors.NewSelectionFailure(err)
	}
	report.Selected = len(candidates)
	log.Info("inactive tickets selected",
		zap.Int("count", report.Selected),
		zap.Time("cutoff", report.Cutoff))

	for _, ticket := range candidates {
		if ctx.Err() != nil {
			report.Cancelled = true
			log.Warn("closure run cancelled",
				zap.Int("processed", len(report.Tickets)),
				zap.Int("remaining", report.Selected-len(report.Tickets)))
			break
		}
		report.Record(s.processTicket(ctx, log, report.RunID, report.Cutoff, ticket))
	}

	report.FinishedAt = s.clock().UTC()
	s.publishEvent(ctx, events.Event{
		Type:    events.EventClosureRunCompleted,
		RunID:   report.RunID,
		Payload: events.ClosureRunCompletedPayload{Report: report},
	})
	log.Info("closure run finished",
		zap.Int("selected", report.Selected),
		zap.Int("closed", report.Closed),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Int("sent", report.Sent),
		zap.Int("no_address", report.NoAddress),
		zap.Int("send_failed", report.SendFailed),
		zap.Duration("duration", report.FinishedAt.Sub(report.StartedAt)))

	if report.Cancelled {
		return report, ctx.Err()
	}
	return report, nil
}

// processTicket runs lease → close → notify for one ticket. The unit is
// detached from run cancellation and bounded by ticketTimeout instead.
func (s *ClosureService) processTicket(runCtx context.Context, log *zap.Logger, runID string, cutoff time.Time, ticket domain.Ticket) domain.TicketOutcome {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(runCtx), s.ticketTimeout)
	defer cancel()

	log = log.With(zap.String("ticket_id", ticket.ID), zap.String("account_id", ticket.CustomerAccountID))
	outcome := domain.TicketOutcome{
		TicketID:          ticket.ID,
		CustomerAccountID: ticket.CustomerAccountID,
	}

	held, err := s.leaser.Acquire(ctx, ticket.ID)
	if err != nil {
		outcome.Error = err.Error()
		if errors.Is(err, lease.ErrHeld) {
			outcome.Disposition = domain.DispositionLeaseConflict
			log.Warn("ticket leased by another worker; skipping")
		} else {
			outcome.Disposition = domain.DispositionFailed
			log.Warn("acquire ticket lease", zap.Error(err))
		}
		s.publishSkipped(ctx, runID, outcome)
		return outcome
	}
	defer func() {
		if err := held.Release(ctx); err != nil {
			log.Warn("release ticket lease", zap.Error(err))
		}
	}()

	if err := s.closer.Close(ctx, ticket, cutoff); err != nil {
		outcome.Error = err.Error()
		switch {
		case errors.Is(err, ErrAlreadyClosed):
			outcome.Disposition = domain.DispositionAlreadyClosed
			log.Info("ticket already closed; skipping notification")
		case errors.Is(err, ErrTicketChanged):
			outcome.Disposition = domain.DispositionChanged
			log.Info("ticket changed since selection; leaving open")
		case apperrors.CodeOf(err) == apperrors.CodeLeaseConflict:
			outcome.Disposition = domain.DispositionLeaseConflict
			log.Warn("ticket row locked by another writer; skipping", zap.Error(err))
		default:
			outcome.Disposition = domain.DispositionFailed
			log.Warn("close ticket", zap.Error(err))
		}
		s.publishSkipped(ctx, runID, outcome)
		return outcome
	}
	outcome.Disposition = domain.DispositionClosed
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketAutoClosed,
		RunID:    runID,
		TicketID: ticket.ID,
		Payload: events.TicketAutoClosedPayload{
			CustomerAccountID: ticket.CustomerAccountID,
			OldStatus:         ticket.Status,
			LastActivityAt:    ticket.LastActivityAt,
		},
	})

	outcome.Notification = s.notifier.Notify(ctx, ticket.CustomerAccountID, s.content.Subject, s.content.Body)
	s.publishEvent(ctx, events.Event{
		Type:     events.EventClosureNotification,
		RunID:    runID,
		TicketID: ticket.ID,
		Payload: events.ClosureNotificationPayload{
			CustomerAccountID: ticket.CustomerAccountID,
			Outcome:           outcome.Notification,
		},
	})
	log.Info("ticket closed due to inactivity", zap.String("notification", string(outcome.Notification)))
	return outcome
}

func (s *ClosureService) publishSkipped(ctx context.Context, runID string, outcome domain.TicketOutcome) {
	s.publishEvent(ctx, events.Event{
		Type:     events.EventClosureTicketSkipped,
		RunID:    runID,
		TicketID: outcome.TicketID,
		Payload: events.ClosureTicketSkippedPayload{
			Disposition: outcome.Disposition,
			Reason:      outcome.Error,
		},
	})
}

func (s *ClosureService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	event.Timestamp = s.clock().UTC()
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Debug("event handler failed", zap.String("type", string(event.Type)), zap.Error(err))
	}
}
