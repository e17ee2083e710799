/**
 * @description
 * This file defines the payment gateway capability used by the processing
 * engine. The service ships with a simulator; a production integration
 * performs a real gateway call behind the same interface.
 *
 * @dependencies
 * - context, math/rand/v2, sync, time: Standard Go libraries.
 */

package app

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// Gateway is the external payment gateway capability. Call blocks for the
// duration of the (possibly simulated) transfer and reports whether the
// gateway accepted it, along with the observed latency.
type Gateway interface {
	Call(ctx context.Context) (succeeded bool, elapsed time.Duration, err error)
}

// SimulatedGateway stands in for a real payment gateway. Each call waits a
// latency sampled uniformly from [MinLatency, MaxLatency] and succeeds with
// SuccessPercent probability. Randomness comes from an injectable source so
// outcomes are reproducible in tests.
type SimulatedGateway struct {
	minLatency     time.Duration
	maxLatency     time.Duration
	successPercent int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulatedGateway creates a simulator with the given latency range and
// success rate (0-100). Passing a nil rng selects a time-seeded source.
func NewSimulatedGateway(minLatency, maxLatency time.Duration, successPercent int, rng *rand.Rand) *SimulatedGateway {
	if maxLatency < minLatency {
		maxLatency = minLatency
	}
	if successPercent < 0 {
		successPercent = 0
	}
	if successPercent > 100 {
		successPercent = 100
	}
	if rng == nil {
		now := time.Now()
		rng = rand.New(rand.NewPCG(uint64(now.UnixNano()), uint64(now.Unix())))
	}
	return &SimulatedGateway{
		minLatency:     minLatency,
		maxLatency:     maxLatency,
		successPercent: successPercent,
		rng:            rng,
	}
}

// Call waits the sampled latency (respecting ctx cancellation) and returns
// the sampled outcome. No lock is held by callers during this wait.
func (g *SimulatedGateway) Call(ctx context.Context) (bool, time.Duration, error) {
	g.mu.Lock()
	spread := int64(g.maxLatency - g.minLatency)
	latency := g.minLatency
	if spread > 0 {
		latency += time.Duration(g.rng.Int64N(spread + 1))
	}
	succeeded := g.rng.IntN(100) < g.successPercent
	g.mu.Unlock()

	timer := time.NewTimer(latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false, 0, ctx.Err()
	case <-timer.C:
	}
	return succeeded, latency, nil
}
