package domain

import (
	"time"

	"github.com/google/uuid"
)

// PayoutJob is the unit of work published to the job queue when a payout is
// created and carried through the worker runtime. It references the payout by
// id; the record itself is always re-read under lock before any mutation.
type PayoutJob struct {
	JobID     uuid.UUID `json:"job_id"`
	PayoutID  int64     `json:"payout_id"`
	Attempt   int       `json:"attempt"` // 0 for the first delivery
	NotBefore time.Time `json:"not_before"`
}
