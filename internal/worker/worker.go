package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/larknotice/card-dispatch/internal/domain"
	"github.com/larknotice/card-dispatch/internal/provider"
	"github.com/larknotice/card-dispatch/internal/queue"
	"github.com/larknotice/card-dispatch/internal/ratelimiter"
	"github.com/larknotice/card-dispatch/internal/repository"
)

// Worker is a single goroutine that continuously pulls items from the priority
// queue, applies per-host rate limiting, and delivers the card via the provider.
// Delivery failure is terminal: the notification is marked failed and the
// error recorded for the operator; there is no retry scheduling.
type Worker struct {
	id      int
	q       *queue.PriorityQueue
	repo    repository.NotificationRepository
	prov    provider.Provider
	limiter *ratelimiter.TargetLimiters
	logger  *zap.Logger

	// Hooks for metrics — injected by the pool so the worker stays metrics-agnostic.
	onSent   func(host string, latency time.Duration)
	onFailed func(host string)
}

// NewWorker constructs a worker. onSent and onFailed are optional (nil = no-op).
func NewWorker(
	id int,
	q *queue.PriorityQueue,
	repo repository.NotificationRepository,
	prov provider.Provider,
	limiter *ratelimiter.TargetLimiters,
	logger *zap.Logger,
	onSent func(string, time.Duration),
	onFailed func(string),
) *Worker {
	if onSent == nil {
		onSent = func(string, time.Duration) {}
	}
	if onFailed == nil {
		onFailed = func(string) {}
	}
	return &Worker{
		id: id, q: q, repo: repo, prov: prov,
		limiter: limiter, logger: logger,
		onSent: onSent, onFailed: onFailed,
	}
}

// Run blocks until ctx is cancelled, processing one queue item per iteration.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker started", zap.Int("id", w.id))
	for {
		item, ok := w.q.Dequeue(ctx)
		if !ok {
			w.logger.Info("worker stopping", zap.Int("id", w.id))
			return
		}
		w.process(ctx, item)
	}
}

func (w *Worker) process(ctx context.Context, item queue.Item) {
	start := time.Now()
	log := w.logger.With(
		zap.String("notification_id", item.NotificationID),
		zap.String("target_host", item.TargetHost),
	)

	n, err := w.repo.GetByID(ctx, item.NotificationID)
	if err != nil {
		log.Error("failed to fetch notification", zap.Error(err))
		return
	}

	// A cancellation between enqueue and processing time is valid; skip silently.
	if n.Status == domain.StatusCancelled {
		log.Debug("notification was cancelled before processing")
		return
	}

	if err := w.repo.UpdateStatus(ctx, n.ID, domain.StatusProcessing); err != nil {
		log.Error("failed to mark as processing", zap.Error(err))
		return
	}

	// Block here until the per-host rate limiter grants a token.
	host := n.TargetHost()
	if err := w.limiter.Wait(ctx, host); err != nil {
		// ctx cancelled while waiting — worker is shutting down.
		return
	}

	resp, err := w.prov.Send(ctx, n)
	elapsed := time.Since(start)

	if err != nil {
		log.Warn("card delivery failed", zap.Error(err))
		if markErr := w.repo.MarkFailed(ctx, n.ID, err.Error()); markErr != nil {
			log.Error("failed to mark notification as failed", zap.Error(markErr))
		}
		w.updateBatchCounts(n, log)
		w.onFailed(host)
		return
	}

	now := time.Now().UTC()
	if err := w.repo.MarkSent(ctx, n.ID, now); err != nil {
		log.Error("failed to mark as sent", zap.Error(err))
		return
	}

	w.updateBatchCounts(n, log)
	w.onSent(host, elapsed)
	log.Info("card delivered",
		zap.String("webhook_msg", resp.Msg),
		zap.Duration("latency", elapsed),
	)
}

// updateBatchCounts refreshes the parent batch counters asynchronously if the
// notification belongs to a batch.
func (w *Worker) updateBatchCounts(n *domain.Notification, log *zap.Logger) {
	if n.BatchID == nil {
		return
	}
	go func() {
		if err := w.repo.UpdateBatchCounts(context.Background(), *n.BatchID); err != nil {
			log.Warn("failed to update batch counts", zap.Error(err))
		}
	}()
}
