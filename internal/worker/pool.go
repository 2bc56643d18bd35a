package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/larknotice/card-dispatch/internal/config"
	"github.com/larknotice/card-dispatch/internal/provider"
	"github.com/larknotice/card-dispatch/internal/queue"
	"github.com/larknotice/card-dispatch/internal/ratelimiter"
	"github.com/larknotice/card-dispatch/internal/repository"
)

// MetricHooks carries the metric callback functions injected by main.
// Using a struct keeps the pool constructor signature clean.
type MetricHooks struct {
	OnSent   func(host string, latency time.Duration)
	OnFailed func(host string)
}

// Pool manages the lifecycle of all dispatch workers.
// All workers share the same priority queue — the queue's double-select
// pattern handles priority ordering internally.
type Pool struct {
	workers []*Worker
	wg      sync.WaitGroup
}

// NewPool creates the configured number of identical dispatch workers.
// Per-target fairness is handled by the rate limiter, not by dedicating
// workers to targets.
func NewPool(
	cfg *config.Config,
	q *queue.PriorityQueue,
	repo repository.NotificationRepository,
	prov provider.Provider,
	limiter *ratelimiter.TargetLimiters,
	logger *zap.Logger,
	hooks MetricHooks,
) *Pool {
	workers := make([]*Worker, cfg.DispatchWorkers)

	for i := range workers {
		workers[i] = NewWorker(
			i, q, repo, prov, limiter,
			logger.With(zap.Int("worker_id", i)),
			hooks.OnSent,
			hooks.OnFailed,
		)
	}

	return &Pool{workers: workers}
}

// Start launches all workers as goroutines.
// The provided ctx is forwarded to every worker; cancelling it
// triggers a graceful shutdown of the entire pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
}

// Wait blocks until every worker has returned after ctx is cancelled.
// Call this after cancelling the context to ensure in-flight messages finish.
func (p *Pool) Wait() {
	p.wg.Wait()
}
