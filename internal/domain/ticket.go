package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusNew                TicketStatus = "NEW"
	TicketStatusInProgress         TicketStatus = "IN_PROGRESS"
	TicketStatusWaitingForCustomer TicketStatus = "WAITING_FOR_CUSTOMER"
	TicketStatusResolved           TicketStatus = "RESOLVED"
	TicketStatusClosed             TicketStatus = "CLOSED"
	TicketStatusCancelled          TicketStatus = "CANCELLED"
)

// Terminal reports whether no further workflow transition applies.
func (s TicketStatus) Terminal() bool {
	return s == TicketStatusClosed || s == TicketStatusCancelled
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID                string
	ExternalKey       string
	CustomerAccountID string
	Title             string
	Status            TicketStatus
	LastActivityAt    time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
	ClosedAt          *time.Time
}

// InactiveSince reports whether the ticket saw no activity at or after cutoff.
func (t Ticket) InactiveSince(cutoff time.Time) bool {
	return t.LastActivityAt.Before(cutoff)
}
