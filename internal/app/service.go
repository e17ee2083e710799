/**
 * @description
 * This file contains the core business logic for the payout-service. The
 * `Service` struct orchestrates the payout lifecycle around the processing
 * engine: validated creation with job enqueuing, reads that hide soft-deleted
 * records, the restricted partial update, and idempotent soft deletion.
 *
 * Key features:
 * - Enforces the creation-time contract: when the job queue refuses the work,
 *   the payout is forced to failed in the same flow and the error is
 *   surfaced, so no worker ever sees the record.
 * - Field-level validation matches the public API contract (positive amount,
 *   currency whitelist, bounded recipient details).
 *
 * @dependencies
 * - context, errors, fmt, log, regexp, strings, time: Standard Go libraries.
 * - internal/domain, internal/store: For domain models and data access.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/transfa/payout-service/internal/domain"
	"github.com/transfa/payout-service/internal/store"
)

const maxRecipientDetailsLen = 255

var recipientDetailsPattern = regexp.MustCompile(`^[\w\s\-.,:;@"'()\[\]#%&*+=]+$`)

// ValidationError carries per-field validation messages for the API layer.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msgs := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, strings.Join(msgs, "; ")))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// Service provides the payout lifecycle operations consumed by the API layer.
type Service struct {
	repo         store.Repository
	enqueuer     Enqueuer
	enqueueDelay time.Duration
}

// NewService creates a new payout service instance.
func NewService(repo store.Repository, enqueuer Enqueuer, enqueueDelay time.Duration) *Service {
	return &Service{
		repo:         repo,
		enqueuer:     enqueuer,
		enqueueDelay: enqueueDelay,
	}
}

func validateCreate(req domain.CreatePayoutRequest) error {
	var verr ValidationError
	if req.Amount <= 0 {
		verr.add("amount", "amount must be positive")
	}
	if !domain.Currencies[req.Currency] {
		verr.add("currency", "unsupported currency")
	}
	details := strings.TrimSpace(req.RecipientDetails)
	if details == "" {
		verr.add("recipient_details", "recipient details are required")
	} else if len(req.RecipientDetails) > maxRecipientDetailsLen {
		verr.add("recipient_details", fmt.Sprintf("recipient details must not exceed %d characters", maxRecipientDetailsLen))
	} else if !recipientDetailsPattern.MatchString(req.RecipientDetails) {
		verr.add("recipient_details", "recipient details contain unsupported characters")
	}
	return verr.orNil()
}

// CreatePayout persists a pending payout and enqueues its processing job.
// On ErrEnqueueUnavailable the payout is forced to failed before the error
// is returned; the job never reached the queue.
func (s *Service) CreatePayout(ctx context.Context, req domain.CreatePayoutRequest) (*domain.Payout, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	payout := &domain.Payout{
		Amount:           req.Amount,
		Currency:         req.Currency,
		RecipientDetails: req.RecipientDetails,
		Status:           domain.StatusPending,
		Comment:          req.Comment,
	}
	if err := s.repo.CreatePayout(ctx, payout); err != nil {
		return nil, fmt.Errorf("create payout: %w", err)
	}

	jobID, err := s.enqueuer.Submit(ctx, payout.ID, s.enqueueDelay)
	if err != nil {
		log.Printf("level=error component=service msg=\"failed to enqueue payout job\" payout_id=%d err=%v", payout.ID, err)
		if failErr := s.repo.SetPayoutStatus(ctx, payout.ID, domain.StatusFailed); failErr != nil {
			log.Printf("level=error component=service msg=\"failed to force payout to failed after enqueue error\" payout_id=%d err=%v", payout.ID, failErr)
		} else {
			payout.Status = domain.StatusFailed
		}
		if errors.Is(err, ErrEnqueueUnavailable) {
			return payout, err
		}
		return payout, fmt.Errorf("%w: %v", ErrEnqueueUnavailable, err)
	}

	log.Printf("level=info component=service msg=\"payout created and enqueued\" payout_id=%d job_id=%s delay=%s", payout.ID, jobID, s.enqueueDelay)
	return payout, nil
}

// GetPayout returns one active payout. Soft-deleted records behave as absent.
func (s *Service) GetPayout(ctx context.Context, id int64) (*domain.Payout, error) {
	return s.repo.FindPayoutByID(ctx, id, false)
}

// ListPayouts returns active payouts, newest first.
func (s *Service) ListPayouts(ctx context.Context, opts store.ListPayoutsOptions) ([]domain.Payout, error) {
	return s.repo.ListPayouts(ctx, opts)
}

// UpdatePayout applies the restricted partial update. Only status and
// comment may change; the status value must belong to the vocabulary.
func (s *Service) UpdatePayout(ctx context.Context, id int64, req domain.UpdatePayoutRequest) (*domain.Payout, error) {
	if req.Status != nil && !domain.ValidStatus(*req.Status) {
		verr := &ValidationError{}
		verr.add("status", "invalid status value")
		return nil, verr
	}
	return s.repo.UpdatePayoutFields(ctx, id, req.Status, req.Comment)
}

// DeletePayout soft-deletes the payout. Deleting an already deleted record
// is a no-op; the engine observes the flag at its next lock acquisition.
func (s *Service) DeletePayout(ctx context.Context, id int64) error {
	changed, err := s.repo.SoftDeletePayout(ctx, id)
	if err != nil {
		return err
	}
	if !changed {
		log.Printf("level=info component=service msg=\"payout already deleted\" payout_id=%d", id)
	}
	return nil
}
