package domain

import "time"

// TicketChangeType captures what changed in a history entry.
type TicketChangeType string

const (
	ChangeTypeStatus TicketChangeType = "STATUS_CHANGE"
)

// ChangeActorType indicates who performed a change.
type ChangeActorType string

// ChangeActorSystem marks entries written by background jobs.
const ChangeActorSystem ChangeActorType = "SYSTEM"

// TicketHistory is an immutable audit trail entry.
type TicketHistory struct {
	ID            string
	TicketID      string
	ChangedByType ChangeActorType
	ChangedByID   *string
	ChangeType    TicketChangeType
	OldValue      map[string]any
	NewValue      map[string]any
	CreatedAt     time.Time
}

// StatusChange builds a system-authored status transition entry.
func StatusChange(ticketID string, from, to TicketStatus) TicketHistory {
	return TicketHistory{
		TicketID:      ticketID,
		ChangedByType: ChangeActorSystem,
		ChangeType:    ChangeTypeStatus,
		OldValue:      map[string]any{"status": from},
		NewValue:      map[string]any{"status": to},
	}
}
