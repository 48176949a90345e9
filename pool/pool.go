package pool

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/use-agent/cortex/cortexerr"
	"github.com/use-agent/cortex/renderer"
)

// DefaultContextMB is the estimated memory footprint of one browser
// context, used as the governor's admission-control unit (§5 resource
// limits: "a context estimated at 128 MB by default").
const DefaultContextMB = 128

// ContextHandle is a borrowed renderer.RenderContext checked out from
// the pool. Release must be called when the caller is done with it; the
// first call closes the underlying context, frees its semaphore permit,
// and returns its memory estimate to the governor, and later calls do
// nothing.
type ContextHandle struct {
	ctx  renderer.RenderContext
	pool *ContextPool
	once sync.Once
}

// Context returns the underlying render context.
func (h *ContextHandle) Context() renderer.RenderContext {
	return h.ctx
}

// Release closes the context and returns its permit/memory to the pool.
// Safe to call more than once.
func (h *ContextHandle) Release() error {
	var err error
	h.once.Do(func() {
		err = h.ctx.Close()
		h.pool.active.Add(-1)
		h.pool.governor.RecordDeallocation(h.pool.estimatedMB * bytesPerMB)
		<-h.pool.permits
	})
	return err
}

// ContextPool is a semaphore-gated factory of renderer.RenderContext
// handles, admission-controlled by a ResourceGovernor (§4.9, §5).
// Unlike the page-handle pool it is adapted from, contexts are not
// reused across acquisitions: every Acquire creates a fresh context and
// every Release closes it, matching the "acquire creates, drop closes"
// contract in §4.9.
type ContextPool struct {
	renderer    renderer.Renderer
	governor    *ResourceGovernor
	permits     chan struct{}
	maxContexts int
	estimatedMB uint64
	active      atomic.Int32
}

// NewContextPool creates a pool backed by renderer, gated to maxContexts
// concurrent render contexts and the given memory governor.
func NewContextPool(r renderer.Renderer, maxContexts int, governor *ResourceGovernor) *ContextPool {
	if maxContexts < 1 {
		maxContexts = 1
	}
	return &ContextPool{
		renderer:    r,
		governor:    governor,
		permits:     make(chan struct{}, maxContexts),
		maxContexts: maxContexts,
		estimatedMB: DefaultContextMB,
	}
}

// Acquire takes a concurrency permit and creates a new RenderContext. It
// first consults the memory governor without blocking: if admitting
// another context would exceed the configured limit, it fails
// immediately with cortexerr.ResourceExhausted rather than queueing, so
// the caller can retry once other contexts release (§4.9, §5).
func (p *ContextPool) Acquire(ctx context.Context, stealth bool) (*ContextHandle, error) {
	if !p.governor.CanAcquire(p.estimatedMB) {
		return nil, cortexerr.New(cortexerr.ResourceExhausted, "browser pool memory limit reached", nil)
	}

	select {
	case p.permits <- struct{}{}:
	case <-ctx.Done():
		return nil, cortexerr.New(cortexerr.Cancelled, "context cancelled waiting for pool permit", ctx.Err())
	}

	rc, err := p.renderer.NewContext(ctx, stealth)
	if err != nil {
		<-p.permits
		return nil, err
	}

	p.governor.RecordAllocation(p.estimatedMB * bytesPerMB)
	p.active.Add(1)

	return &ContextHandle{ctx: rc, pool: p}, nil
}

// ActiveCount returns the number of currently checked-out contexts.
func (p *ContextPool) ActiveCount() int {
	return int(p.active.Load())
}

// MaxContexts returns the configured concurrency limit.
func (p *ContextPool) MaxContexts() int {
	return p.maxContexts
}

// Available returns the number of free concurrency permits.
func (p *ContextPool) Available() int {
	return p.maxContexts - len(p.permits)
}

// Governor returns the pool's memory governor.
func (p *ContextPool) Governor() *ResourceGovernor {
	return p.governor
}
