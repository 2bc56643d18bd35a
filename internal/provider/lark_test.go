package provider_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/larknotice/card-dispatch/internal/domain"
	"github.com/larknotice/card-dispatch/internal/provider"
)

func testNotification(target string) *domain.Notification {
	return &domain.Notification{
		ID:     "n-1",
		Target: target,
		Card: domain.Card{
			Header:   json.RawMessage(`{"title":{"tag":"plain_text","content":"Build #42"}}`),
			Elements: json.RawMessage(`[{"tag":"div","text":{"tag":"lark_md","content":"**SUCCESS**"}}]`),
		},
		Priority: domain.PriorityNormal,
	}
}

func TestLarkProvider_Send(t *testing.T) {
	var gotBody map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json, got %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"code": 0, "msg": "success"}) //nolint:errcheck
	}))
	defer srv.Close()

	p := provider.NewLarkProvider(srv.Client(), 5*time.Second)
	resp, err := p.Send(context.Background(), testNotification(srv.URL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Code != 0 {
		t.Fatalf("expected code=0, got %d", resp.Code)
	}

	if string(gotBody["msg_type"]) != `"interactive"` {
		t.Fatalf("expected msg_type interactive, got %s", gotBody["msg_type"])
	}
	// The card must pass through byte-for-byte equivalent, not reshaped.
	var card domain.Card
	if err := json.Unmarshal(gotBody["card"], &card); err != nil {
		t.Fatalf("card did not round-trip: %v", err)
	}
	if len(card.Elements) == 0 {
		t.Fatal("card elements were dropped in transit")
	}
}

func TestLarkProvider_Send_PlatformRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"code": 19001, "msg": "param invalid"}) //nolint:errcheck
	}))
	defer srv.Close()

	p := provider.NewLarkProvider(srv.Client(), 5*time.Second)
	_, err := p.Send(context.Background(), testNotification(srv.URL))
	if err == nil {
		t.Fatal("expected an error for a non-zero platform code")
	}
}

func TestLarkProvider_Send_UnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := provider.NewLarkProvider(srv.Client(), 5*time.Second)
	_, err := p.Send(context.Background(), testNotification(srv.URL))
	if err == nil {
		t.Fatal("expected an error for a 502 response")
	}
}

func TestLarkProvider_Send_Timeout(t *testing.T) {
	blocked := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		<-blocked
	}))
	defer srv.Close()
	defer close(blocked)

	p := provider.NewLarkProvider(srv.Client(), 50*time.Millisecond)
	_, err := p.Send(context.Background(), testNotification(srv.URL))
	if err == nil {
		t.Fatal("expected a timeout error")
	}
}
