/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract for all
 * data access operations required by the payout-service. By defining an interface,
 * we decouple the application's business logic from the specific database implementation
 * (e.g., PostgreSQL), making the code more modular and easier to test.
 *
 * @dependencies
 * - context: Standard Go library.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"

	"github.com/transfa/payout-service/internal/domain"
)

// LockedFunc receives the payout row while it is held under an exclusive
// row lock, soft-deleted records included so guards can inspect the deleted
// flag. Returning apply=false commits without writing; returning a non-nil
// error rolls the transaction back.
type LockedFunc func(p *domain.Payout) (newStatus string, apply bool, err error)

// ListPayoutsOptions controls pagination of the payout list endpoint.
type ListPayoutsOptions struct {
	Limit  int
	Offset int
}

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// CreatePayout inserts a new payout in status pending and fills in the
	// generated id and timestamps.
	CreatePayout(ctx context.Context, p *domain.Payout) error

	// FindPayoutByID fetches one payout. Soft-deleted rows are excluded
	// unless includeDeleted is set; the exclusion is an explicit predicate
	// at the call site rather than implicit filtering buried in the
	// persistence layer.
	FindPayoutByID(ctx context.Context, id int64, includeDeleted bool) (*domain.Payout, error)

	// ListPayouts returns active (non-deleted) payouts, newest first.
	ListPayouts(ctx context.Context, opts ListPayoutsOptions) ([]domain.Payout, error)

	// LockPayout runs fn with the payout row locked FOR UPDATE inside a
	// transaction. The lock is released on every exit path. This is the
	// only way the processing engine mutates a payout's status.
	LockPayout(ctx context.Context, id int64, fn LockedFunc) error

	// SetPayoutStatus writes the status without taking the row lock. Used
	// only by the creation flow to force a payout to failed when the job
	// queue refuses the work, before any worker can ever see the record.
	SetPayoutStatus(ctx context.Context, id int64, status string) error

	// UpdatePayoutFields applies the restricted partial update (status
	// and/or comment) to an active payout and returns the updated row.
	UpdatePayoutFields(ctx context.Context, id int64, status, comment *string) (*domain.Payout, error)

	// SoftDeletePayout marks the payout deleted. It reports false when the
	// record was already deleted, so callers can stay idempotent.
	SoftDeletePayout(ctx context.Context, id int64) (bool, error)
}
