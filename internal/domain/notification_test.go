package domain_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/larknotice/card-dispatch/internal/domain"
)

func validRequest() domain.CreateNotificationRequest {
	return domain.CreateNotificationRequest{
		Target: "https://open.larksuite.com/open-apis/bot/v2/hook/abc123",
		Card: domain.Card{
			Header:   json.RawMessage(`{"title":{"tag":"plain_text","content":"Deploy finished"}}`),
			Elements: json.RawMessage(`[{"tag":"div"}]`),
		},
		Priority: domain.PriorityNormal,
	}
}

func TestCreateNotificationRequest_Validate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*domain.CreateNotificationRequest)
		expected error
	}{
		{"valid", func(*domain.CreateNotificationRequest) {}, nil},
		{"http target is allowed", func(r *domain.CreateNotificationRequest) {
			r.Target = "http://hooks.internal:8080/card"
		}, nil},
		{"empty target", func(r *domain.CreateNotificationRequest) { r.Target = "" }, domain.ErrInvalidTarget},
		{"missing scheme", func(r *domain.CreateNotificationRequest) { r.Target = "open.larksuite.com/hook" }, domain.ErrInvalidTarget},
		{"non-http scheme", func(r *domain.CreateNotificationRequest) { r.Target = "mailto:x@y.z" }, domain.ErrInvalidTarget},
		{"bad priority", func(r *domain.CreateNotificationRequest) { r.Priority = "asap" }, domain.ErrInvalidPriority},
		{"empty card", func(r *domain.CreateNotificationRequest) { r.Card = domain.Card{} }, domain.ErrEmptyCard},
		{"oversized card", func(r *domain.CreateNotificationRequest) {
			r.Card.Elements = json.RawMessage(`["` + strings.Repeat("a", domain.MaxCardBytes) + `"]`)
		}, domain.ErrCardTooLarge},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(&req)
			if err := req.Validate(); err != tc.expected {
				t.Fatalf("expected %v, got %v", tc.expected, err)
			}
		})
	}
}

func TestPriority_IsValid(t *testing.T) {
	for _, p := range []domain.Priority{domain.PriorityHigh, domain.PriorityNormal, domain.PriorityLow} {
		if !p.IsValid() {
			t.Fatalf("expected %s to be valid", p)
		}
	}
	if domain.Priority("urgent").IsValid() {
		t.Fatal("expected urgent to be invalid")
	}
}

func TestNotification_TargetHost(t *testing.T) {
	n := &domain.Notification{Target: "https://open.larksuite.com/open-apis/bot/v2/hook/abc"}
	if got := n.TargetHost(); got != "open.larksuite.com" {
		t.Fatalf("expected open.larksuite.com, got %q", got)
	}
}
