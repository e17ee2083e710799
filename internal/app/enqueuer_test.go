package app

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/transfa/payout-service/internal/domain"
)

type publisherStub struct {
	err   error
	queue string
	body  []byte
}

func (p *publisherStub) Publish(ctx context.Context, queue string, body []byte) error {
	p.queue = queue
	p.body = body
	return p.err
}

func TestQueueEnqueuer_PublishesJobWithDueTime(t *testing.T) {
	pub := &publisherStub{}
	enq := NewQueueEnqueuer(pub, "payout_service.process_payout")

	before := time.Now()
	jobID, err := enq.Submit(context.Background(), 7, 5*time.Second)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if jobID == uuid.Nil {
		t.Fatal("expected a job handle")
	}
	if pub.queue != "payout_service.process_payout" {
		t.Fatalf("unexpected queue %q", pub.queue)
	}

	var job domain.PayoutJob
	if err := json.Unmarshal(pub.body, &job); err != nil {
		t.Fatalf("published body is not a job: %v", err)
	}
	if job.PayoutID != 7 || job.Attempt != 0 || job.JobID != jobID {
		t.Fatalf("unexpected job payload: %+v", job)
	}
	if job.NotBefore.Before(before.Add(5 * time.Second)) {
		t.Fatalf("expected due time at least 5s out, got %s", job.NotBefore)
	}
}

func TestQueueEnqueuer_PublishFailureIsEnqueueUnavailable(t *testing.T) {
	pub := &publisherStub{err: errors.New("channel closed")}
	enq := NewQueueEnqueuer(pub, "payout_service.process_payout")

	_, err := enq.Submit(context.Background(), 7, time.Second)
	if !errors.Is(err, ErrEnqueueUnavailable) {
		t.Fatalf("expected ErrEnqueueUnavailable, got %v", err)
	}
}
