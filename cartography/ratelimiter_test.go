package cartography

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiterConcurrencyCap(t *testing.T) {
	l := NewRateLimiter(1, time.Millisecond)
	ctx := context.Background()

	g1, err := l.Acquire(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		g2, err := l.Acquire(ctx)
		if err != nil {
			return
		}
		close(acquired)
		g2.Release()
	}()

	select {
	case <-acquired:
		t.Fatalf("second acquire should block until first is released")
	case <-time.After(20 * time.Millisecond):
	}

	g1.Release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatalf("second acquire never unblocked after release")
	}
}

func TestRateLimiterFromCrawlDelayDefaultsTo100ms(t *testing.T) {
	l := NewRateLimiterFromCrawlDelay(nil, 2)
	if l.delayer.Limit() <= 0 {
		t.Fatalf("expected a positive default rate")
	}
}

func TestRateLimiterRespectsCrawlDelay(t *testing.T) {
	delay := float32(0.05)
	l := NewRateLimiterFromCrawlDelay(&delay, 5)

	ctx := context.Background()
	start := time.Now()
	g1, _ := l.Acquire(ctx)
	g1.Release()
	g2, _ := l.Acquire(ctx)
	g2.Release()
	elapsed := time.Since(start)

	if elapsed < 40*time.Millisecond {
		t.Fatalf("expected min-delay spacing between acquires, elapsed=%v", elapsed)
	}
}
