package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/larknotice/card-dispatch/internal/domain"
	"github.com/larknotice/card-dispatch/internal/provider"
	"github.com/larknotice/card-dispatch/internal/queue"
	"github.com/larknotice/card-dispatch/internal/ratelimiter"
	"github.com/larknotice/card-dispatch/internal/repository"
	"github.com/larknotice/card-dispatch/internal/worker"
)

// stubProvider lets each test script the delivery outcome.
type stubProvider struct {
	err   error
	calls atomic.Int64
}

func (s *stubProvider) Send(_ context.Context, _ *domain.Notification) (*provider.SendResponse, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return &provider.SendResponse{Code: 0, Msg: "success"}, nil
}

func seedNotification(t *testing.T, repo *repository.MockNotificationRepository, status domain.Status) *domain.Notification {
	t.Helper()
	n := &domain.Notification{
		ID:     "n-1",
		Target: "https://open.larksuite.com/open-apis/bot/v2/hook/abc",
		Card: domain.Card{
			Elements: json.RawMessage(`[{"tag":"div"}]`),
		},
		Priority: domain.PriorityNormal,
		Status:   status,
	}
	if err := repo.Create(context.Background(), n); err != nil {
		t.Fatal(err)
	}
	return n
}

// runOne starts a worker, lets it process until the notification leaves the
// given status, then shuts the worker down.
func runOne(t *testing.T, repo *repository.MockNotificationRepository, prov provider.Provider, n *domain.Notification, waitFor func(domain.Status) bool) domain.Status {
	t.Helper()

	q := queue.New()
	_ = q.Enqueue(queue.Item{NotificationID: n.ID, TargetHost: n.TargetHost(), Priority: n.Priority})

	w := worker.NewWorker(0, q, repo, prov, ratelimiter.New(100), zap.NewNop(), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()

	deadline := time.After(2 * time.Second)
	for {
		got, err := repo.GetByID(context.Background(), n.ID)
		if err != nil {
			t.Fatal(err)
		}
		if waitFor(got.Status) {
			cancel()
			<-done
			return got.Status
		}
		select {
		case <-deadline:
			cancel()
			<-done
			t.Fatalf("timed out waiting for status change, still %s", got.Status)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestWorker_DeliversAndMarksSent(t *testing.T) {
	repo := repository.NewMockNotificationRepository()
	n := seedNotification(t, repo, domain.StatusQueued)
	prov := &stubProvider{}

	status := runOne(t, repo, prov, n, func(s domain.Status) bool { return s == domain.StatusSent })

	if status != domain.StatusSent {
		t.Fatalf("expected sent, got %s", status)
	}
	if prov.calls.Load() != 1 {
		t.Fatalf("expected exactly one delivery attempt, got %d", prov.calls.Load())
	}

	got, _ := repo.GetByID(context.Background(), n.ID)
	if got.SentAt == nil {
		t.Fatal("expected sent_at to be recorded")
	}
}

// TestWorker_FailureIsTerminal verifies a failed delivery goes straight to
// status=failed with the error recorded, and is never re-attempted.
func TestWorker_FailureIsTerminal(t *testing.T) {
	repo := repository.NewMockNotificationRepository()
	n := seedNotification(t, repo, domain.StatusQueued)
	prov := &stubProvider{err: errors.New("connection refused")}

	status := runOne(t, repo, prov, n, func(s domain.Status) bool { return s == domain.StatusFailed })

	if status != domain.StatusFailed {
		t.Fatalf("expected failed, got %s", status)
	}
	if prov.calls.Load() != 1 {
		t.Fatalf("expected exactly one delivery attempt, got %d", prov.calls.Load())
	}

	got, _ := repo.GetByID(context.Background(), n.ID)
	if got.ErrorMessage == nil || *got.ErrorMessage != "connection refused" {
		t.Fatalf("expected recorded error message, got %v", got.ErrorMessage)
	}
}

// TestWorker_SkipsCancelled verifies an item cancelled between enqueue and
// processing is skipped without a delivery attempt.
func TestWorker_SkipsCancelled(t *testing.T) {
	repo := repository.NewMockNotificationRepository()
	n := seedNotification(t, repo, domain.StatusCancelled)
	prov := &stubProvider{}

	q := queue.New()
	_ = q.Enqueue(queue.Item{NotificationID: n.ID, TargetHost: n.TargetHost(), Priority: n.Priority})

	w := worker.NewWorker(0, q, repo, prov, ratelimiter.New(100), zap.NewNop(), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()

	// Give the worker time to dequeue and (incorrectly) deliver.
	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done

	if prov.calls.Load() != 0 {
		t.Fatalf("expected no delivery attempt for a cancelled notification, got %d", prov.calls.Load())
	}
	got, _ := repo.GetByID(context.Background(), n.ID)
	if got.Status != domain.StatusCancelled {
		t.Fatalf("expected status to remain cancelled, got %s", got.Status)
	}
}
