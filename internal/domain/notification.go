package domain

import "time"

// NotificationMessage is the transient email built for one closed ticket.
type NotificationMessage struct {
	Subject string
	Body    string
	To      string
}

// NotifyOutcome is the result of a single notification attempt.
type NotifyOutcome string

const (
	NotifySent           NotifyOutcome = "SENT"
	NotifyNoAddressFound NotifyOutcome = "NO_ADDRESS_FOUND"
	NotifySendFailed     NotifyOutcome = "SEND_FAILED"
)

// TicketDisposition describes what a closure run did with one selected ticket.
type TicketDisposition string

const (
	DispositionClosed        TicketDisposition = "CLOSED"
	DispositionAlreadyClosed TicketDisposition = "ALREADY_CLOSED"
	DispositionChanged       TicketDisposition = "CHANGED"
	DispositionLeaseConflict TicketDisposition = "LEASE_CONFLICT"
	DispositionFailed        TicketDisposition = "FAILED"
)

// TicketOutcome is one line of a RunReport.
type TicketOutcome struct {
	TicketID          string            `json:"ticket_id"`
	CustomerAccountID string            `json:"customer_account_id"`
	Disposition       TicketDisposition `json:"disposition"`
	Notification      NotifyOutcome     `json:"notification,omitempty"`
	Error             string            `json:"error,omitempty"`
}

// RunReport summarises one invocation of the inactivity closure job.
type RunReport struct {
	RunID      string          `json:"run_id"`
	Trigger    string          `json:"trigger"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Cutoff     time.Time       `json:"cutoff"`
	Selected   int             `json:"selected"`
	Closed     int             `json:"closed"`
	Skipped    int             `json:"skipped"`
	Failed     int             `json:"failed"`
	Sent       int             `json:"sent"`
	NoAddress  int             `json:"no_address"`
	SendFailed int             `json:"send_failed"`
	Cancelled  bool            `json:"cancelled"`
	Tickets    []TicketOutcome `json:"tickets"`
}

// Record appends a ticket outcome and updates the counters.
func (r *RunReport) Record(outcome TicketOutcome) {
	r.Tickets = append(r.Tickets, outcome)
	switch outcome.Disposition {
	case DispositionClosed:
		r.Closed++
	case DispositionFailed:
		r.Failed++
	default:
		r.Skipped++
	}
	switch outcome.Notification {
	case NotifySent:
		r.Sent++
	case NotifyNoAddressFound:
		r.NoAddress++
	case NotifySendFailed:
		r.SendFailed++
	}
}
