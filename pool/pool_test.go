package pool

import (
	"context"
	"testing"
	"time"

	"github.com/use-agent/cortex/cortexerr"
	"github.com/use-agent/cortex/renderer"
)

func TestResourceGovernorCanAcquire(t *testing.T) {
	g := NewResourceGovernor(256, 15000)
	if !g.CanAcquire(128) {
		t.Fatal("expected room for a 128MB context under a 256MB limit")
	}
	g.RecordAllocation(128 * bytesPerMB)
	if !g.CanAcquire(128) {
		t.Fatal("expected exactly one more 128MB context to fit")
	}
	g.RecordAllocation(128 * bytesPerMB)
	if g.CanAcquire(1) {
		t.Fatal("expected no room left at the limit")
	}
	g.RecordDeallocation(128 * bytesPerMB)
	if !g.CanAcquire(128) {
		t.Fatal("expected room again after deallocation")
	}
}

func TestResourceGovernorUsageMB(t *testing.T) {
	g := NewResourceGovernor(512, 15000)
	g.RecordAllocation(128 * bytesPerMB)
	if got := g.UsageMB(); got != 128 {
		t.Fatalf("expected 128MB usage, got %f", got)
	}
	if got := g.LimitMB(); got != 512 {
		t.Fatalf("expected 512MB limit, got %d", got)
	}
}

func TestPoolAcquireRelease(t *testing.T) {
	r := renderer.NewFakeRenderer()
	governor := NewResourceGovernor(1024, 15000)
	p := NewContextPool(r, 2, governor)

	h, err := p.Acquire(context.Background(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ActiveCount() != 1 {
		t.Fatalf("expected active count 1, got %d", p.ActiveCount())
	}
	if p.Available() != 1 {
		t.Fatalf("expected 1 permit available, got %d", p.Available())
	}

	if err := h.Release(); err != nil {
		t.Fatalf("unexpected release error: %v", err)
	}
	if p.ActiveCount() != 0 {
		t.Fatalf("expected active count 0 after release, got %d", p.ActiveCount())
	}
	if p.Available() != 2 {
		t.Fatalf("expected both permits free, got %d", p.Available())
	}

	// Release is idempotent.
	if err := h.Release(); err != nil {
		t.Fatalf("second release should be a no-op, got %v", err)
	}
}

func TestPoolMemoryExhaustion(t *testing.T) {
	r := renderer.NewFakeRenderer()
	governor := NewResourceGovernor(128, 15000) // room for exactly one context
	p := NewContextPool(r, 5, governor)

	h1, err := p.Acquire(context.Background(), false)
	if err != nil {
		t.Fatalf("unexpected error on first acquire: %v", err)
	}

	_, err = p.Acquire(context.Background(), false)
	if err == nil {
		t.Fatal("expected ResourceExhausted on second acquire")
	}
	if !cortexerr.Is(err, cortexerr.ResourceExhausted) {
		t.Fatalf("expected ResourceExhausted, got %v", err)
	}

	if err := h1.Release(); err != nil {
		t.Fatalf("unexpected release error: %v", err)
	}

	if _, err := p.Acquire(context.Background(), false); err != nil {
		t.Fatalf("expected acquire to succeed after release, got %v", err)
	}
}

func TestPoolConcurrencyLimit(t *testing.T) {
	r := renderer.NewFakeRenderer()
	governor := NewResourceGovernor(4096, 15000)
	p := NewContextPool(r, 1, governor)

	h1, err := p.Acquire(context.Background(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := p.Acquire(ctx, false); err == nil {
		t.Fatal("expected second acquire to block and eventually time out")
	}

	if err := h1.Release(); err != nil {
		t.Fatalf("unexpected release error: %v", err)
	}
	if _, err := p.Acquire(context.Background(), false); err != nil {
		t.Fatalf("expected acquire to succeed once the permit frees up, got %v", err)
	}
}
