package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/transfa/payout-service/internal/domain"
	"github.com/transfa/payout-service/internal/store"
)

// processorStub records executions and returns scripted errors.
type processorStub struct {
	mu       sync.Mutex
	calls    []time.Time
	err      error
	failures int // fail this many times, then succeed; negative fails forever
	block    chan struct{}
}

func (p *processorStub) ProcessPayout(ctx context.Context, payoutID int64) error {
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	p.calls = append(p.calls, time.Now())
	n := len(p.calls)
	p.mu.Unlock()

	if p.failures < 0 || n <= p.failures {
		return p.err
	}
	return nil
}

func (p *processorStub) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func (p *processorStub) callTimes() []time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]time.Time, len(p.calls))
	copy(out, p.calls)
	return out
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func testJob(payoutID int64) domain.PayoutJob {
	return domain.PayoutJob{
		JobID:     uuid.New(),
		PayoutID:  payoutID,
		Attempt:   0,
		NotBefore: time.Now(),
	}
}

func fastRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 2}
}

func TestSchedulerExecutesDueJob(t *testing.T) {
	processor := &processorStub{}
	s := NewScheduler(processor, fastRetryPolicy(), WithWorkers(2))
	s.Start()
	defer s.Stop()

	if err := s.Dispatch(testJob(7)); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	waitUntil(t, time.Second, func() bool { return processor.callCount() == 1 })
}

func TestSchedulerHonorsNotBefore(t *testing.T) {
	processor := &processorStub{}
	s := NewScheduler(processor, fastRetryPolicy(), WithWorkers(1))
	s.Start()
	defer s.Stop()

	due := time.Now().Add(60 * time.Millisecond)
	job := testJob(7)
	job.NotBefore = due
	if err := s.Dispatch(job); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	waitUntil(t, time.Second, func() bool { return processor.callCount() == 1 })
	executedAt := processor.callTimes()[0]
	if executedAt.Before(due) {
		t.Fatalf("job executed at %s, before its due time %s", executedAt, due)
	}
}

func TestSchedulerRetriesTransientFailuresUpToCap(t *testing.T) {
	processor := &processorStub{err: errors.New("db connection lost"), failures: -1}
	s := NewScheduler(processor, fastRetryPolicy(), WithWorkers(2))
	s.Start()
	defer s.Stop()

	if err := s.Dispatch(testJob(7)); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	// Initial execution plus exactly MaxAttempts retries, then abandoned.
	waitUntil(t, 2*time.Second, func() bool { return processor.callCount() == 4 })
	time.Sleep(50 * time.Millisecond)
	if got := processor.callCount(); got != 4 {
		t.Fatalf("expected retries to stop at the cap (4 executions), got %d", got)
	}
}

func TestSchedulerRecoversAfterTransientFailure(t *testing.T) {
	processor := &processorStub{err: errors.New("temporary outage"), failures: 2}
	s := NewScheduler(processor, fastRetryPolicy(), WithWorkers(1))
	s.Start()
	defer s.Stop()

	if err := s.Dispatch(testJob(7)); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	waitUntil(t, 2*time.Second, func() bool { return processor.callCount() == 3 })
	time.Sleep(50 * time.Millisecond)
	if got := processor.callCount(); got != 3 {
		t.Fatalf("expected no retries after success, got %d executions", got)
	}
}

func TestSchedulerDropsMissingRecordWithoutRetry(t *testing.T) {
	processor := &processorStub{err: store.ErrPayoutNotFound, failures: -1}
	s := NewScheduler(processor, fastRetryPolicy(), WithWorkers(1))
	s.Start()
	defer s.Stop()

	if err := s.Dispatch(testJob(404)); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	waitUntil(t, time.Second, func() bool { return processor.callCount() == 1 })
	time.Sleep(50 * time.Millisecond)
	if got := processor.callCount(); got != 1 {
		t.Fatalf("expected missing record to never be retried, got %d executions", got)
	}
}

func TestDispatchFailsWhenStopped(t *testing.T) {
	s := NewScheduler(&processorStub{}, fastRetryPolicy())

	if err := s.Dispatch(testJob(7)); !errors.Is(err, ErrEnqueueUnavailable) {
		t.Fatalf("expected ErrEnqueueUnavailable before start, got %v", err)
	}

	s.Start()
	s.Stop()
	if err := s.Dispatch(testJob(7)); !errors.Is(err, ErrEnqueueUnavailable) {
		t.Fatalf("expected ErrEnqueueUnavailable after stop, got %v", err)
	}
}

func TestDispatchFailsWhenSaturated(t *testing.T) {
	block := make(chan struct{})
	processor := &processorStub{block: block}
	s := NewScheduler(processor, fastRetryPolicy(), WithWorkers(1), WithQueueSize(1))
	s.Start()
	defer func() {
		close(block)
		s.Stop()
	}()

	// First job occupies the worker, second fills the buffer.
	if err := s.Dispatch(testJob(1)); err != nil {
		t.Fatalf("dispatch 1 failed: %v", err)
	}
	waitUntil(t, time.Second, func() bool {
		return s.Dispatch(testJob(2)) == nil
	})

	if err := s.Dispatch(testJob(3)); !errors.Is(err, ErrEnqueueUnavailable) {
		t.Fatalf("expected ErrEnqueueUnavailable when saturated, got %v", err)
	}
}
