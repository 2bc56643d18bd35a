package queue

import (
	"context"
	"fmt"

	"github.com/larknotice/card-dispatch/internal/domain"
)

// PriorityQueue holds cards awaiting delivery in three buffered channels,
// one per priority tier.
//
// The buffers are sized for webhook traffic where most cards are routine
// build results. High (1000) carries failure alerts that engineers act on
// immediately, so it is kept small enough that back-pressure surfaces fast.
// Normal (5000) absorbs the steady stream of per-build cards. Low (2000)
// holds digests and other traffic nobody is waiting on.
type PriorityQueue struct {
	high   chan Item
	normal chan Item
	low    chan Item
}

func New() *PriorityQueue {
	return &PriorityQueue{
		high:   make(chan Item, 1000),
		normal: make(chan Item, 5000),
		low:    make(chan Item, 2000),
	}
}

// Enqueue places an item on the channel matching its priority. It never
// blocks: a full tier returns ErrQueueFull so API handlers and the
// scheduler can report the overload instead of hanging on a send.
func (q *PriorityQueue) Enqueue(item Item) error {
	switch item.Priority {
	case domain.PriorityHigh:
		select {
		case q.high <- item:
			return nil
		default:
			return domain.ErrQueueFull
		}
	case domain.PriorityNormal:
		select {
		case q.normal <- item:
			return nil
		default:
			return domain.ErrQueueFull
		}
	case domain.PriorityLow:
		select {
		case q.low <- item:
			return nil
		default:
			return domain.ErrQueueFull
		}
	default:
		return fmt.Errorf("unknown priority %q", item.Priority)
	}
}

// Dequeue returns the next item for a dispatch worker, blocking until one
// arrives or ctx is cancelled.
//
// Two selects enforce the priority contract. The first is non-blocking and
// checks high only, so a waiting failure alert is always taken before any
// routine card. Only with high empty does the worker fall into the blocking
// select over all three tiers plus ctx.Done(), which lets it sleep instead
// of spinning while still waking for whichever tier fills first.
//
// The false return means ctx was cancelled, the shutdown signal for workers.
func (q *PriorityQueue) Dequeue(ctx context.Context) (Item, bool) {
	select {
	case item := <-q.high:
		return item, true
	default:
	}

	select {
	case item := <-q.high:
		return item, true
	case item := <-q.normal:
		return item, true
	case item := <-q.low:
		return item, true
	case <-ctx.Done():
		return Item{}, false
	}
}

// Depths reports how many cards are waiting in each tier. Feeds both the
// JSON snapshot endpoint and the Prometheus queue depth gauges.
func (q *PriorityQueue) Depths() (high, normal, low int) {
	return len(q.high), len(q.normal), len(q.low)
}
