package ratelimiter_test

import (
	"context"
	"testing"
	"time"

	"github.com/larknotice/card-dispatch/internal/ratelimiter"
)

func TestTargetLimiters_GrantsWithinRate(t *testing.T) {
	tl := ratelimiter.New(100)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// The first burst of tokens is available immediately.
	for i := 0; i < 100; i++ {
		if err := tl.Wait(ctx, "open.larksuite.com"); err != nil {
			t.Fatalf("token %d: unexpected error: %v", i, err)
		}
	}
}

func TestTargetLimiters_IndependentHosts(t *testing.T) {
	tl := ratelimiter.New(1)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// Exhausting one host's bucket must not block a different host.
	if err := tl.Wait(ctx, "a.example.com"); err != nil {
		t.Fatal(err)
	}
	if err := tl.Wait(ctx, "b.example.com"); err != nil {
		t.Fatalf("second host should have its own bucket: %v", err)
	}
}

func TestTargetLimiters_ContextCancellation(t *testing.T) {
	tl := ratelimiter.New(1)
	ctx, cancel := context.WithCancel(context.Background())

	// Drain the single token, then cancel while the next Wait is blocked.
	if err := tl.Wait(ctx, "h"); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- tl.Wait(ctx, "h") }()
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected an error after context cancellation")
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after context cancellation")
	}
}
