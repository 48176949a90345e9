// Package pool implements the browser context pool and memory governor
// (§4.9): a semaphore-gated pool of renderer.RenderContext handles,
// admission-controlled by an atomic byte budget, adapted from the
// teacher's adaptive page-handle pool (engine/adaptive_pool.go).
package pool

import "sync/atomic"

const bytesPerMB = 1024 * 1024

// ResourceGovernor enforces a memory budget across all live render
// contexts. Pool.Acquire consults it before calling the renderer
// factory; record_allocation/deallocation track estimated usage per
// context the same way the pool accounts active/idle handles.
type ResourceGovernor struct {
	usage           atomic.Uint64 // bytes currently outstanding
	limit           uint64        // bytes
	requestTimeoutMs uint64
}

// NewResourceGovernor creates a governor with a memory limit in
// megabytes and a per-request timeout in milliseconds.
func NewResourceGovernor(memoryLimitMB, requestTimeoutMs uint64) *ResourceGovernor {
	return &ResourceGovernor{
		limit:            memoryLimitMB * bytesPerMB,
		requestTimeoutMs: requestTimeoutMs,
	}
}

// CanAcquire reports whether allocating another estimatedMB-sized
// context would stay within the memory limit.
func (g *ResourceGovernor) CanAcquire(estimatedMB uint64) bool {
	return g.usage.Load()+estimatedMB*bytesPerMB <= g.limit
}

// RecordAllocation adds bytes to the outstanding usage counter.
func (g *ResourceGovernor) RecordAllocation(bytes uint64) {
	g.usage.Add(bytes)
}

// RecordDeallocation subtracts bytes from the outstanding usage counter.
func (g *ResourceGovernor) RecordDeallocation(bytes uint64) {
	g.usage.Add(^(bytes - 1)) // unsigned subtract, mirrors atomic fetch_sub
}

// UsageBytes returns current estimated memory usage in bytes.
func (g *ResourceGovernor) UsageBytes() uint64 {
	return g.usage.Load()
}

// UsageMB returns current estimated memory usage in megabytes.
func (g *ResourceGovernor) UsageMB() float64 {
	return float64(g.UsageBytes()) / float64(bytesPerMB)
}

// RequestTimeoutMs is the per-request timeout configured on the governor.
func (g *ResourceGovernor) RequestTimeoutMs() uint64 {
	return g.requestTimeoutMs
}

// LimitMB is the configured memory limit in megabytes.
func (g *ResourceGovernor) LimitMB() uint64 {
	return g.limit / bytesPerMB
}
