package dto

import (
	"time"

	"github.com/spec-kit/ticket-autoclose/internal/domain"
)

// TicketDetailResponse provides ticket info with its status trail.
type TicketDetailResponse struct {
	ID                string                  `json:"id"`
	ExternalKey       string                  `json:"external_key"`
	CustomerAccountID string                  `json:"customer_account_id"`
	Title             string                  `json:"title"`
	Status            domain.TicketStatus     `json:"status"`
	LastActivityAt    time.Time               `json:"last_activity_at"`
	CreatedAt         time.Time               `json:"created_at"`
	UpdatedAt         time.Time               `json:"updated_at"`
	ClosedAt          *time.Time              `json:"closed_at"`
	History           []TicketHistoryResponse `json:"history"`
}

// TicketHistoryResponse is one audit entry.
type TicketHistoryResponse struct {
	ID            string                  `json:"id"`
	ChangedByType domain.ChangeActorType  `json:"changed_by_type"`
	ChangedByID   *string                 `json:"changed_by_id,omitempty"`
	ChangeType    domain.TicketChangeType `json:"change_type"`
	OldValue      map[string]any          `json:"old_value"`
	NewValue      map[string]any          `json:"new_value"`
	CreatedAt     time.Time               `json:"created_at"`
}

// RunSummaryResponse is the run report without per-ticket lines.
type RunSummaryResponse struct {
	RunID      string    `json:"run_id"`
	Trigger    string    `json:"trigger"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Cutoff     time.Time `json:"cutoff"`
	Selected   int       `json:"selected"`
	Closed     int       `json:"closed"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	Sent       int       `json:"sent"`
	NoAddress  int       `json:"no_address"`
	SendFailed int       `json:"send_failed"`
	Cancelled  bool      `json:"cancelled"`
}

// NewRunSummary drops the per-ticket lines from a report.
func NewRunSummary(r domain.RunReport) RunSummaryResponse {
	return RunSummaryResponse{
		RunID:      r.RunID,
		Trigger:    r.Trigger,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Cutoff:     r.Cutoff,
		Selected:   r.Selected,
		Closed:     r.Closed,
		Skipped:    r.Skipped,
		Failed:     r.Failed,
		Sent:       r.Sent,
		NoAddress:  r.NoAddress,
		SendFailed: r.SendFailed,
		Cancelled:  r.Cancelled,
	}
}
