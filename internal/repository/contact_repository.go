package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-autoclose/internal/domain"
)

// ContactDirectory resolves customer contact details.
type ContactDirectory interface {
	// FindPrimaryEmail returns the primary address for an account. found is
	// false when the account has no primary address.
	FindPrimaryEmail(ctx context.Context, accountID string) (email string, found bool, err error)
}

type contactRepository struct {
	pool pgxPool
}

// NewContactRepository returns a Postgres-backed directory.
func NewContactRepository(pool *pgxpool.Pool) ContactDirectory {
	return &contactRepository{pool: pool}
}

// FindPrimaryEmail picks the oldest row when an account has several
// addresses flagged primary.
func (r *contactRepository) FindPrimaryEmail(ctx context.Context, accountID string) (string, bool, error) {
	const query = `
        SELECT id, account_id, email, is_primary FROM customer_emails
        WHERE account_id=$1 AND is_primary AND email <> ''
        ORDER BY id ASC
        LIMIT 1`

	var contact domain.CustomerContact
	err := r.pool.QueryRow(ctx, query, accountID).Scan(
		&contact.ID,
		&contact.AccountID,
		&contact.Email,
		&contact.IsPrimary,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return contact.Email, true, nil
}
