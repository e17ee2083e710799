/**
 * @description
 * This file contains the worker runtime that executes payout jobs. Jobs enter
 * through Dispatch (fed by the RabbitMQ consumer or, in tests, directly), sit
 * on a bounded channel, and are picked up by a pool of workers. Each worker
 * waits until the job's due time, runs the engine, and reschedules the job
 * with backoff and jitter when the engine reports a technical failure.
 *
 * @dependencies
 * - context, errors, log, sync, time: Standard Go libraries.
 * - internal/domain, internal/store: For the job model and terminal errors.
 */

package app

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/transfa/payout-service/internal/domain"
	"github.com/transfa/payout-service/internal/store"
)

// ErrEnqueueUnavailable is returned when the job pipeline cannot accept work:
// the broker refused the publish, or the runtime is stopped or saturated.
var ErrEnqueueUnavailable = errors.New("job queue unavailable")

// Processor executes one payout job. Satisfied by *Engine.
type Processor interface {
	ProcessPayout(ctx context.Context, payoutID int64) error
}

// Scheduler runs a fixed pool of workers over a bounded job buffer. Jobs for
// different payouts execute concurrently and in no particular order.
type Scheduler struct {
	processor  Processor
	retry      RetryPolicy
	workers    int
	jobTimeout time.Duration

	jobs   chan domain.PayoutJob
	stopCh chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithWorkers sets the number of concurrent workers.
func WithWorkers(n int) SchedulerOption {
	return func(s *Scheduler) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithQueueSize sets the job buffer capacity.
func WithQueueSize(n int) SchedulerOption {
	return func(s *Scheduler) {
		if n > 0 {
			s.jobs = make(chan domain.PayoutJob, n)
		}
	}
}

// WithJobTimeout bounds a single engine execution.
func WithJobTimeout(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.jobTimeout = d
		}
	}
}

// NewScheduler creates a worker runtime with the given retry policy.
func NewScheduler(processor Processor, retry RetryPolicy, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		processor:  processor,
		retry:      retry,
		workers:    4,
		jobTimeout: 30 * time.Second,
		jobs:       make(chan domain.PayoutJob, 64),
		stopCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the worker goroutines. It returns immediately.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true

	log.Printf("level=info component=scheduler msg=\"worker pool starting\" workers=%d queue_size=%d", s.workers, cap(s.jobs))
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
}

// Stop signals the workers and waits for in-flight jobs to finish. Jobs still
// waiting on their due time are dropped; the durable broker queue redelivers
// them on the next start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	log.Printf("level=info component=scheduler msg=\"worker pool stopped\"")
}

// Dispatch hands a job to the pool. It fails with ErrEnqueueUnavailable when
// the runtime is stopped or the buffer is full, so the caller can leave the
// message on the broker.
func (s *Scheduler) Dispatch(job domain.PayoutJob) error {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if !running {
		return ErrEnqueueUnavailable
	}

	select {
	case s.jobs <- job:
		return nil
	default:
		return ErrEnqueueUnavailable
	}
}

func (s *Scheduler) worker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopCh:
			return
		case job := <-s.jobs:
			s.runJob(job)
		}
	}
}

// runJob waits until the job is due, executes it, and applies the retry
// policy on technical failure.
func (s *Scheduler) runJob(job domain.PayoutJob) {
	if wait := time.Until(job.NotBefore); wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-s.stopCh:
			timer.Stop()
			return
		case <-timer.C:
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	err := s.processor.ProcessPayout(ctx, job.PayoutID)
	cancel()
	if err == nil {
		return
	}

	if errors.Is(err, store.ErrPayoutNotFound) {
		// Absent record (distinct from soft-deleted): terminal, never retried.
		log.Printf("level=error component=scheduler msg=\"payout not found, dropping job\" job_id=%s payout_id=%d", job.JobID, job.PayoutID)
		return
	}

	retryNum := job.Attempt + 1
	if retryNum > s.retry.MaxAttempts {
		// Retry budget exhausted. The job is abandoned; the record keeps
		// whatever status its last completed phase left behind.
		log.Printf("level=error component=scheduler msg=\"retries exhausted, abandoning job\" job_id=%s payout_id=%d attempts=%d err=%v",
			job.JobID, job.PayoutID, job.Attempt, err)
		return
	}

	delay := s.retry.NextDelay(retryNum)
	job.Attempt = retryNum
	job.NotBefore = time.Now().Add(delay)
	log.Printf("level=warn component=scheduler msg=\"job failed, rescheduling\" job_id=%s payout_id=%d retry=%d delay=%s err=%v",
		job.JobID, job.PayoutID, retryNum, delay, err)

	if dispatchErr := s.Dispatch(job); dispatchErr != nil {
		log.Printf("level=error component=scheduler msg=\"reschedule rejected, dropping job\" job_id=%s payout_id=%d err=%v",
			job.JobID, job.PayoutID, dispatchErr)
	}
}
