/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * It contains all the necessary SQL queries to interact with the `payouts` table,
 * including the FOR UPDATE row-locking primitive the processing engine relies on.
 *
 * @dependencies
 * - context, errors, fmt: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/transfa/payout-service/internal/domain"
)

var (
	ErrPayoutNotFound = errors.New("payout not found")
)

const payoutColumns = "id, amount, currency, recipient_details, status, comment, deleted, created_at, updated_at"

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type payoutRow interface {
	Scan(dest ...any) error
}

func scanPayout(row payoutRow) (*domain.Payout, error) {
	var p domain.Payout
	err := row.Scan(
		&p.ID,
		&p.Amount,
		&p.Currency,
		&p.RecipientDetails,
		&p.Status,
		&p.Comment,
		&p.Deleted,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPayoutNotFound
		}
		return nil, err
	}
	return &p, nil
}

// CreatePayout inserts a new payout record in status pending.
func (r *PostgresRepository) CreatePayout(ctx context.Context, p *domain.Payout) error {
	query := `
		INSERT INTO payouts (amount, currency, recipient_details, status, comment)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	if p.Status == "" {
		p.Status = domain.StatusPending
	}
	err := r.db.QueryRow(ctx, query, p.Amount, p.Currency, p.RecipientDetails, p.Status, p.Comment).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert payout: %w", err)
	}
	return nil
}

// FindPayoutByID fetches one payout, excluding soft-deleted rows unless asked
// for explicitly. The engine passes includeDeleted=true because its guards
// must observe the deleted flag instead of having the row silently hidden.
func (r *PostgresRepository) FindPayoutByID(ctx context.Context, id int64, includeDeleted bool) (*domain.Payout, error) {
	query := "SELECT " + payoutColumns + " FROM payouts WHERE id = $1"
	if !includeDeleted {
		query += " AND deleted = FALSE"
	}
	return scanPayout(r.db.QueryRow(ctx, query, id))
}

// ListPayouts returns active payouts, newest first.
func (r *PostgresRepository) ListPayouts(ctx context.Context, opts ListPayoutsOptions) ([]domain.Payout, error) {
	limit := opts.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	query := "SELECT " + payoutColumns + ` FROM payouts
		WHERE deleted = FALSE
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`
	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list payouts: %w", err)
	}
	defer rows.Close()

	payouts := make([]domain.Payout, 0)
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, err
		}
		payouts = append(payouts, *p)
	}
	return payouts, rows.Err()
}

// LockPayout acquires an exclusive row lock on the payout and runs fn with
// the freshly read row. The deferred rollback guarantees the lock is released
// on every exit path; a commit after fn makes the rollback a no-op. The row
// is read without a deleted predicate so fn can apply the cancellation guard.
func (r *PostgresRepository) LockPayout(ctx context.Context, id int64, fn LockedFunc) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin lock transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := "SELECT " + payoutColumns + " FROM payouts WHERE id = $1 FOR UPDATE"
	p, err := scanPayout(tx.QueryRow(ctx, query, id))
	if err != nil {
		return err
	}

	newStatus, apply, err := fn(p)
	if err != nil {
		return err
	}

	if apply {
		_, err = tx.Exec(ctx, "UPDATE payouts SET status = $1, updated_at = NOW() WHERE id = $2", newStatus, id)
		if err != nil {
			return fmt.Errorf("update payout status under lock: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit lock transaction: %w", err)
	}
	return nil
}

// SetPayoutStatus writes the status directly, bypassing the row lock. Only
// the creation flow uses this, to force failed before the job ever reaches
// a worker.
func (r *PostgresRepository) SetPayoutStatus(ctx context.Context, id int64, status string) error {
	tag, err := r.db.Exec(ctx, "UPDATE payouts SET status = $1, updated_at = NOW() WHERE id = $2", status, id)
	if err != nil {
		return fmt.Errorf("set payout status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPayoutNotFound
	}
	return nil
}

// UpdatePayoutFields applies the restricted partial update to an active payout.
func (r *PostgresRepository) UpdatePayoutFields(ctx context.Context, id int64, status, comment *string) (*domain.Payout, error) {
	sets := make([]string, 0, 3)
	args := make([]any, 0, 3)

	if status != nil {
		args = append(args, *status)
		sets = append(sets, fmt.Sprintf("status = $%d", len(args)))
	}
	if comment != nil {
		args = append(args, *comment)
		sets = append(sets, fmt.Sprintf("comment = $%d", len(args)))
	}
	if len(sets) == 0 {
		return r.FindPayoutByID(ctx, id, false)
	}
	sets = append(sets, "updated_at = NOW()")

	args = append(args, id)
	query := fmt.Sprintf(
		"UPDATE payouts SET %s WHERE id = $%d AND deleted = FALSE RETURNING %s",
		strings.Join(sets, ", "), len(args), payoutColumns,
	)
	return scanPayout(r.db.QueryRow(ctx, query, args...))
}

// SoftDeletePayout flips the deleted flag. The flag is monotonic: a second
// delete reports changed=false and writes nothing.
func (r *PostgresRepository) SoftDeletePayout(ctx context.Context, id int64) (bool, error) {
	tag, err := r.db.Exec(ctx,
		"UPDATE payouts SET deleted = TRUE, updated_at = NOW() WHERE id = $1 AND deleted = FALSE", id)
	if err != nil {
		return false, fmt.Errorf("soft delete payout: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	// Distinguish "already deleted" from "never existed".
	var exists bool
	if err := r.db.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM payouts WHERE id = $1)", id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check payout existence: %w", err)
	}
	if !exists {
		return false, ErrPayoutNotFound
	}
	return false, nil
}
