package events

import (
	"time"

	"github.com/spec-kit/ticket-autoclose/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketAutoClosed     EventType = "ticket_auto_closed"
	EventClosureNotification  EventType = "closure_notification"
	EventClosureTicketSkipped EventType = "closure_ticket_skipped"
	EventClosureRunCompleted  EventType = "closure_run_completed"
	EventClosureRunFailed     EventType = "closure_run_failed"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	RunID     string      `json:"run_id"`
	TicketID  string      `json:"ticket_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketAutoClosedPayload payload.
type TicketAutoClosedPayload struct {
	CustomerAccountID string              `json:"customer_account_id"`
	OldStatus         domain.TicketStatus `json:"old_status"`
	LastActivityAt    time.Time           `json:"last_activity_at"`
}

// ClosureNotificationPayload payload.
type ClosureNotificationPayload struct {
	CustomerAccountID string               `json:"customer_account_id"`
	Outcome           domain.NotifyOutcome `json:"outcome"`
}

// ClosureTicketSkippedPayload payload.
type ClosureTicketSkippedPayload struct {
	Disposition domain.TicketDisposition `json:"disposition"`
	Reason      string                   `json:"reason,omitempty"`
}

// ClosureRunCompletedPayload payload.
type ClosureRunCompletedPayload struct {
	Report domain.RunReport `json:"report"`
}

// ClosureRunFailedPayload payload.
type ClosureRunFailedPayload struct {
	Error string `json:"error"`
}
