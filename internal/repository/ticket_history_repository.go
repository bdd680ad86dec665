package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-autoclose/internal/domain"
)

// TicketHistoryRepository reads a ticket's audit trail.
type TicketHistoryRepository interface {
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error)
}

type ticketHistoryRepository struct {
	pool pgxPool
}

// NewTicketHistoryRepository builds repository.
func NewTicketHistoryRepository(pool *pgxpool.Pool) TicketHistoryRepository {
	return &ticketHistoryRepository{pool: pool}
}

// recordStatusChange writes a system-authored status transition inside tx
// and returns the stored entry.
func recordStatusChange(ctx context.Context, tx pgx.Tx, ticketID string, from, to domain.TicketStatus) (domain.TicketHistory, error) {
	const query = `
        INSERT INTO ticket_history (ticket_id, changed_by_type, changed_by_id, change_type, old_value, new_value)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	entry := domain.StatusChange(ticketID, from, to)
	err := tx.QueryRow(ctx, query,
		entry.TicketID,
		entry.ChangedByType,
		entry.ChangedByID,
		entry.ChangeType,
		entry.OldValue,
		entry.NewValue,
	).Scan(&entry.ID, &entry.CreatedAt)
	return entry, err
}

// ListByTicket returns entries oldest first; id breaks ties between entries
// written in the same transaction.
func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	const query = `
        SELECT id, ticket_id, changed_by_type, changed_by_id, change_type, old_value, new_value, created_at
        FROM ticket_history WHERE ticket_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.TicketHistory, error) {
		var entry domain.TicketHistory
		err := row.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.ChangedByType,
			&entry.ChangedByID,
			&entry.ChangeType,
			&entry.OldValue,
			&entry.NewValue,
			&entry.CreatedAt,
		)
		return entry, err
	})
}
