/**
 * @description
 * This file contains the state transition engine, the core of the payout
 * pipeline. A payout advances pending -> processing -> completed|failed in
 * three phases: a locked claim, an unlocked gateway call, and a locked
 * finalize. Soft deletion is cooperative cancellation, checked each time the
 * row lock is taken.
 *
 * @dependencies
 * - context, fmt, log: Standard Go libraries.
 * - internal/domain, internal/store: For domain models and data access.
 */

package app

import (
	"context"
	"fmt"
	"log"

	"github.com/transfa/payout-service/internal/domain"
	"github.com/transfa/payout-service/internal/store"
)

// Engine advances a payout through its status state machine.
type Engine struct {
	repo    store.Repository
	gateway Gateway
}

// NewEngine creates a new processing engine.
func NewEngine(repo store.Repository, gateway Gateway) *Engine {
	return &Engine{repo: repo, gateway: gateway}
}

// ProcessPayout executes the full three-phase sequence for one payout.
//
// Phase A claims the record under a row lock: a deleted record or one whose
// status already advanced past pending is skipped silently, which makes the
// claim idempotent across duplicate job deliveries. Phase B calls the gateway
// with no lock held, so a slow transfer never blocks other workers on the
// row. Phase C re-takes the lock and writes the terminal status, unless the
// record was deleted mid-flight, in which case it is intentionally left in
// processing.
//
// store.ErrPayoutNotFound is terminal for the job; any other error is a
// technical failure the caller may retry.
func (e *Engine) ProcessPayout(ctx context.Context, payoutID int64) error {
	log.Printf("level=info component=engine msg=\"processing payout\" payout_id=%d", payoutID)

	claimed := false
	err := e.repo.LockPayout(ctx, payoutID, func(p *domain.Payout) (string, bool, error) {
		if p.Deleted {
			log.Printf("level=info component=engine msg=\"payout already deleted, skipping\" payout_id=%d", payoutID)
			return "", false, nil
		}
		if p.Status != domain.StatusPending {
			log.Printf("level=warn component=engine msg=\"payout already claimed or finished, skipping\" payout_id=%d status=%s", payoutID, p.Status)
			return "", false, nil
		}
		claimed = true
		return domain.StatusProcessing, true, nil
	})
	if err != nil {
		return fmt.Errorf("claim payout %d: %w", payoutID, err)
	}
	if !claimed {
		return nil
	}

	succeeded, elapsed, err := e.gateway.Call(ctx)
	if err != nil {
		return fmt.Errorf("gateway call for payout %d: %w", payoutID, err)
	}

	finalStatus := domain.StatusFailed
	if succeeded {
		finalStatus = domain.StatusCompleted
	}

	cancelled := false
	err = e.repo.LockPayout(ctx, payoutID, func(p *domain.Payout) (string, bool, error) {
		if p.Deleted {
			// Deleted after the claim: leave the record in processing
			// rather than finishing a cancelled payout.
			cancelled = true
			return "", false, nil
		}
		return finalStatus, true, nil
	})
	if err != nil {
		return fmt.Errorf("finalize payout %d: %w", payoutID, err)
	}

	if cancelled {
		log.Printf("level=info component=engine msg=\"payout deleted during gateway call, status left as processing\" payout_id=%d", payoutID)
		return nil
	}

	log.Printf("level=info component=engine msg=\"payout finished\" payout_id=%d status=%s gateway_latency=%s", payoutID, finalStatus, elapsed)
	return nil
}
