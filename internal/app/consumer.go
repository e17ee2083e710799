package app

import (
	"encoding/json"
	"errors"
	"log"

	"github.com/transfa/payout-service/internal/domain"
)

// PayoutJobConsumer bridges broker deliveries into the worker runtime.
type PayoutJobConsumer struct {
	scheduler *Scheduler
}

func NewPayoutJobConsumer(scheduler *Scheduler) *PayoutJobConsumer {
	return &PayoutJobConsumer{scheduler: scheduler}
}

// HandleMessage parses a payout job payload and hands it to the scheduler.
// The returned bool drives ack/nack: true acknowledges the delivery, false
// leaves it on the broker for redelivery.
func (c *PayoutJobConsumer) HandleMessage(body []byte) bool {
	var job domain.PayoutJob
	if err := json.Unmarshal(body, &job); err != nil {
		log.Printf("payout-consumer: failed to unmarshal payload: %v", err)
		return true
	}

	if job.PayoutID <= 0 {
		log.Printf("payout-consumer: missing payout id in job %s; acknowledging to drop", job.JobID)
		return true
	}

	if err := c.scheduler.Dispatch(job); err != nil {
		if errors.Is(err, ErrEnqueueUnavailable) {
			log.Printf("payout-consumer: worker pool saturated, re-queuing job %s", job.JobID)
			return false
		}
		log.Printf("payout-consumer: dispatch error for job %s: %v", job.JobID, err)
		return false
	}

	return true
}
