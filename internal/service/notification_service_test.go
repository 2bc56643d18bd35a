package service_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/larknotice/card-dispatch/internal/domain"
	"github.com/larknotice/card-dispatch/internal/queue"
	"github.com/larknotice/card-dispatch/internal/repository"
	"github.com/larknotice/card-dispatch/internal/service"
)

func newService() (*service.NotificationService, *repository.MockNotificationRepository, *queue.PriorityQueue) {
	repo := repository.NewMockNotificationRepository()
	q := queue.New()
	svc := service.NewNotificationService(repo, q, zap.NewNop())
	return svc, repo, q
}

func timeInFuture() time.Time {
	return time.Now().UTC().Add(time.Hour)
}

var validReq = domain.CreateNotificationRequest{
	Target: "https://open.larksuite.com/open-apis/bot/v2/hook/abc123",
	Card: domain.Card{
		Header:   json.RawMessage(`{"title":{"tag":"plain_text","content":"Build #7"}}`),
		Elements: json.RawMessage(`[{"tag":"div"}]`),
	},
	Priority: domain.PriorityNormal,
}

func TestNotificationService_Create(t *testing.T) {
	svc, _, q := newService()
	ctx := context.Background()

	n, isDuplicate, err := svc.Create(ctx, validReq, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if isDuplicate {
		t.Fatal("expected isDuplicate=false for a new notification")
	}
	if n.ID == "" {
		t.Fatal("expected a non-empty ID")
	}
	if n.Status != domain.StatusQueued {
		t.Fatalf("expected status=queued, got %s", n.Status)
	}

	high, normal, low := q.Depths()
	if high+normal+low == 0 {
		t.Fatal("expected item to be enqueued")
	}
}

func TestNotificationService_Create_InvalidRequest(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*domain.CreateNotificationRequest)
		expectedErr error
	}{
		{
			"relative target",
			func(r *domain.CreateNotificationRequest) { r.Target = "/hook/abc" },
			domain.ErrInvalidTarget,
		},
		{
			"non-http scheme",
			func(r *domain.CreateNotificationRequest) { r.Target = "ftp://host/hook" },
			domain.ErrInvalidTarget,
		},
		{
			"bad priority",
			func(r *domain.CreateNotificationRequest) { r.Priority = "urgent" },
			domain.ErrInvalidPriority,
		},
		{
			"empty card",
			func(r *domain.CreateNotificationRequest) { r.Card = domain.Card{} },
			domain.ErrEmptyCard,
		},
		{
			"oversized card",
			func(r *domain.CreateNotificationRequest) {
				huge := `["` + strings.Repeat("x", domain.MaxCardBytes) + `"]`
				r.Card.Elements = json.RawMessage(huge)
			},
			domain.ErrCardTooLarge,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, _, _ := newService()
			bad := validReq
			tc.mutate(&bad)
			_, _, err := svc.Create(context.Background(), bad, "")
			if err != tc.expectedErr {
				t.Fatalf("expected %v, got %v", tc.expectedErr, err)
			}
		})
	}
}

func TestNotificationService_Create_IdempotencyReturnsDuplicate(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()

	key := "idem-key-123"
	first, isDup, err := svc.Create(ctx, validReq, key)
	if err != nil || isDup {
		t.Fatalf("first call: err=%v isDup=%v", err, isDup)
	}

	second, isDup, err := svc.Create(ctx, validReq, key)
	if err != nil {
		t.Fatalf("second call: unexpected error: %v", err)
	}
	if !isDup {
		t.Fatal("expected isDuplicate=true for repeated idempotency key")
	}
	if second.ID != first.ID {
		t.Fatal("expected same notification ID on duplicate")
	}
}

func TestNotificationService_Create_Scheduled(t *testing.T) {
	svc, _, q := newService()

	scheduled := validReq
	at := timeInFuture()
	scheduled.ScheduledAt = &at

	n, _, err := svc.Create(context.Background(), scheduled, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Status != domain.StatusScheduled {
		t.Fatalf("expected status=scheduled, got %s", n.Status)
	}

	high, normal, low := q.Depths()
	if high+normal+low != 0 {
		t.Fatal("scheduled notifications must bypass the queue until due")
	}
}

func TestNotificationService_Cancel_States(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		status      domain.Status
		expectedErr error
	}{
		{"pending can be cancelled", domain.StatusPending, nil},
		{"queued can be cancelled", domain.StatusQueued, nil},
		{"already cancelled", domain.StatusCancelled, domain.ErrAlreadyCancelled},
		{"processing cannot be cancelled", domain.StatusProcessing, domain.ErrNotCancellable},
		{"sent cannot be cancelled", domain.StatusSent, domain.ErrNotCancellable},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, repo, _ := newService()

			n, _, _ := svc.Create(ctx, validReq, "")
			_ = repo.UpdateStatus(ctx, n.ID, tc.status)

			err := svc.Cancel(ctx, n.ID)
			if err != tc.expectedErr {
				t.Fatalf("expected %v, got %v", tc.expectedErr, err)
			}
		})
	}
}

func TestNotificationService_Cancel_NotFound(t *testing.T) {
	svc, _, _ := newService()
	err := svc.Cancel(context.Background(), "nonexistent-id")
	if err != domain.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNotificationService_CreateBatch_Limits(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()

	if _, err := svc.CreateBatch(ctx, nil); err != domain.ErrBatchEmpty {
		t.Fatalf("expected ErrBatchEmpty, got %v", err)
	}

	tooMany := make([]domain.CreateNotificationRequest, 1001)
	for i := range tooMany {
		tooMany[i] = validReq
	}
	if _, err := svc.CreateBatch(ctx, tooMany); err != domain.ErrBatchTooLarge {
		t.Fatalf("expected ErrBatchTooLarge, got %v", err)
	}
}

func TestNotificationService_CreateBatch(t *testing.T) {
	svc, _, q := newService()

	batch, err := svc.CreateBatch(context.Background(), []domain.CreateNotificationRequest{validReq, validReq, validReq})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if batch.Total != 3 {
		t.Fatalf("expected total=3, got %d", batch.Total)
	}

	high, normal, low := q.Depths()
	if high+normal+low != 3 {
		t.Fatalf("expected 3 enqueued items, got %d", high+normal+low)
	}
}
