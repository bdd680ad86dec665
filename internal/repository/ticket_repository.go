package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-autoclose/internal/domain"
)

// pgLockNotAvailable is SQLSTATE 55P03, raised by FOR UPDATE NOWAIT.
const pgLockNotAvailable = "55P03"

// ErrLeaseConflict is returned when another transaction holds the ticket row.
var ErrLeaseConflict = errors.New("ticket row locked by another writer")

// TicketMutation edits a locked ticket in place. Returning an error aborts
// the update and is passed back to the caller unchanged.
type TicketMutation func(ticket *domain.Ticket) error

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListByStatusAndActivity(ctx context.Context, status domain.TicketStatus, olderThan time.Time) ([]domain.Ticket, error)
	LeaseAndUpdate(ctx context.Context, id string, mutate TicketMutation) error
}

type ticketRepository struct {
	pool pgxPool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, external_key, customer_account_id, title, status,
               last_activity_at, created_at, updated_at, closed_at`

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

// ListByStatusAndActivity returns every ticket in status whose last activity
// is strictly before olderThan, oldest first.
func (r *ticketRepository) ListByStatusAndActivity(ctx context.Context, status domain.TicketStatus, olderThan time.Time) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + `
        FROM tickets
        WHERE status=$1 AND last_activity_at < $2
        ORDER BY last_activity_at ASC, id ASC`

	rows, err := r.pool.Query(ctx, query, status, olderThan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

// LeaseAndUpdate locks a single ticket row, applies mutate and persists the
// result in one transaction. Status transitions are recorded in ticket_history
// within the same transaction.
func (r *ticketRepository) LeaseAndUpdate(ctx context.Context, id string, mutate TicketMutation) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1 FOR UPDATE NOWAIT`
	ticket, err := scanTicket(tx.QueryRow(ctx, query, id))
	if err != nil {
		if isLockNotAvailable(err) {
			return fmt.Errorf("%w: %s", ErrLeaseConflict, id)
		}
		return err
	}

	before := ticket.Status
	if err := mutate(ticket); err != nil {
		return err
	}

	const update = `
        UPDATE tickets SET title=$1, status=$2, last_activity_at=$3, closed_at=$4, updated_at=NOW()
        WHERE id=$5`
	cmd, err := tx.Exec(ctx, update,
		ticket.Title,
		ticket.Status,
		ticket.LastActivityAt,
		ticket.ClosedAt,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	if before != ticket.Status {
		if _, err := recordStatusChange(ctx, tx, ticket.ID, before, ticket.Status); err != nil {
			return fmt.Errorf("record status change: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.ExternalKey,
		&ticket.CustomerAccountID,
		&ticket.Title,
		&ticket.Status,
		&ticket.LastActivityAt,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ClosedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func isLockNotAvailable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgLockNotAvailable
}
