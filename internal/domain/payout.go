/**
 * @description
 * This file defines the core domain models for the payout-service.
 * These structs represent the payout record and its request/response DTOs
 * used throughout the service's business logic, database interactions, and API layers.
 *
 * @notes
 * - Amounts are stored as `int64` to represent the value in the smallest currency
 *   unit (cents), which avoids floating-point inaccuracies with financial data.
 * - Payouts are never physically deleted; the `deleted` flag marks a record
 *   cancelled while it stays visible to the processing engine's guards.
 */

package domain

import "time"

// Payout statuses. Transitions only follow pending -> processing and
// processing -> completed|failed; completed and failed are terminal.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// ValidStatus reports whether s belongs to the payout status vocabulary.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// TerminalStatus reports whether no further engine-driven transition leaves s.
func TerminalStatus(s string) bool {
	return s == StatusCompleted || s == StatusFailed
}

// Supported payout currencies.
var Currencies = map[string]bool{
	"USD": true,
	"EUR": true,
	"RUB": true,
}

// Payout represents a request to pay money out to an external recipient.
// This struct maps directly to the `payouts` table in the database.
type Payout struct {
	ID               int64     `json:"id"`
	Amount           int64     `json:"amount"` // in cents
	Currency         string    `json:"currency"`
	RecipientDetails string    `json:"recipient_details"`
	Status           string    `json:"status"`
	Comment          *string   `json:"comment,omitempty"`
	Deleted          bool      `json:"-"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// CreatePayoutRequest is the DTO for incoming payout creation API requests.
type CreatePayoutRequest struct {
	Amount           int64   `json:"amount"` // in cents
	Currency         string  `json:"currency"`
	RecipientDetails string  `json:"recipient_details"`
	Comment          *string `json:"comment,omitempty"`
}

// UpdatePayoutRequest is the DTO for the restricted partial-update endpoint.
// Only status and comment may be changed after creation.
type UpdatePayoutRequest struct {
	Status  *string `json:"status,omitempty"`
	Comment *string `json:"comment,omitempty"`
}
