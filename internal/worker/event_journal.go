package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-autoclose/internal/events"
)

// EventJournal writes every closure event to a dedicated "events" logger so
// that log shipping sees the full event stream alongside the service logs.
type EventJournal struct {
	logger *zap.Logger
}

// StartEventJournal subscribes the journal to all closure events.
func StartEventJournal(dispatcher events.Dispatcher, logger *zap.Logger) *EventJournal {
	if dispatcher == nil {
		return nil
	}
	j := &EventJournal{logger: logger.Named("events")}
	dispatcher.Subscribe(events.EventTicketAutoClosed, j.handle)
	dispatcher.Subscribe(events.EventClosureNotification, j.handle)
	dispatcher.Subscribe(events.EventClosureTicketSkipped, j.handle)
	dispatcher.Subscribe(events.EventClosureRunCompleted, j.handleRunCompleted)
	dispatcher.Subscribe(events.EventClosureRunFailed, j.handle)
	return j
}

func (j *EventJournal) handle(_ context.Context, event events.Event) error {
	j.logger.Info(string(event.Type),
		zap.String("event_id", event.ID),
		zap.String("run_id", event.RunID),
		zap.String("ticket_id", event.TicketID),
		zap.Time("timestamp", event.Timestamp),
		zap.Any("payload", event.Payload))
	return nil
}

// handleRunCompleted logs counters only; per-ticket lines were already
// journaled as they happened.
func (j *EventJournal) handleRunCompleted(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ClosureRunCompletedPayload)
	if !ok {
		return j.handle(context.Background(), event)
	}
	report := payload.Report
	j.logger.Info(string(event.Type),
		zap.String("event_id", event.ID),
		zap.String("run_id", event.RunID),
		zap.Time("timestamp", event.Timestamp),
		zap.String("trigger", report.Trigger),
		zap.Int("selected", report.Selected),
		zap.Int("closed", report.Closed),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Int("sent", report.Sent),
		zap.Int("no_address", report.NoAddress),
		zap.Int("send_failed", report.SendFailed),
		zap.Bool("cancelled", report.Cancelled))
	return nil
}
