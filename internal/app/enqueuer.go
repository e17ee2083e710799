/**
 * @description
 * This file defines the job enqueuer used by the creation flow. The default
 * implementation publishes the job to RabbitMQ; a failed publish surfaces as
 * ErrEnqueueUnavailable so the caller can force the payout to failed before
 * any worker ever sees it.
 *
 * @dependencies
 * - context, encoding/json, fmt, time: Standard Go libraries.
 * - github.com/google/uuid: Job handle generation.
 * - internal/domain: The job message model.
 */

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/transfa/payout-service/internal/domain"
)

// Enqueuer submits a deferred payout job, returning its handle.
type Enqueuer interface {
	Submit(ctx context.Context, payoutID int64, delay time.Duration) (uuid.UUID, error)
}

// JobPublisher publishes a raw job payload to a named queue. Satisfied by
// pkg/rabbitmq.JobProducer.
type JobPublisher interface {
	Publish(ctx context.Context, queue string, body []byte) error
}

// QueueEnqueuer publishes payout jobs to the broker queue consumed by the
// worker runtime.
type QueueEnqueuer struct {
	publisher JobPublisher
	queue     string
}

// NewQueueEnqueuer creates an enqueuer bound to one queue.
func NewQueueEnqueuer(publisher JobPublisher, queue string) *QueueEnqueuer {
	return &QueueEnqueuer{publisher: publisher, queue: queue}
}

// Submit publishes a job due no earlier than delay from now.
func (e *QueueEnqueuer) Submit(ctx context.Context, payoutID int64, delay time.Duration) (uuid.UUID, error) {
	job := domain.PayoutJob{
		JobID:     uuid.New(),
		PayoutID:  payoutID,
		Attempt:   0,
		NotBefore: time.Now().Add(delay),
	}
	body, err := json.Marshal(job)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal payout job: %w", err)
	}
	if err := e.publisher.Publish(ctx, e.queue, body); err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrEnqueueUnavailable, err)
	}
	return job.JobID, nil
}
