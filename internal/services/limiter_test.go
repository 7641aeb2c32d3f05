package services

import (
	"context"
	"testing"
	"time"
)

func TestLimiterSpacesCalls(t *testing.T) {
	l := NewLimiter(40 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Wait(ctx); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 70*time.Millisecond {
		t.Fatalf("expected calls to be spaced, took %s", elapsed)
	}
}

func TestLimiterDisabled(t *testing.T) {
	l := NewLimiter(0)
	start := time.Now()
	for i := 0; i < 100; i++ {
		if err := l.Wait(context.Background()); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("disabled limiter should not pace calls, took %s", elapsed)
	}
}

func TestLimiterHonoursCancellation(t *testing.T) {
	l := NewLimiter(time.Hour)
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Wait(ctx); err == nil {
		t.Fatal("expected error from cancelled wait")
	}
}
