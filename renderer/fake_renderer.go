package renderer

import (
	"context"
	"sync"
	"time"
)

// FakeRenderer is a scripted Renderer test double (§9 Design Note "Dynamic
// dispatch over renderers"): it never launches a browser, returning
// pre-programmed NavigationResult/ExecuteJS responses keyed by URL so
// cartography/live package tests can exercise the full pipeline without a
// Chromium process.
type FakeRenderer struct {
	mu sync.Mutex

	// Navigations maps a requested URL to the result Navigate should return.
	Navigations map[string]*NavigationResult

	// JSResults maps an exact script string to the value ExecuteJS returns.
	JSResults map[string]any

	// Contexts records every context created, for assertions in tests.
	Contexts []*FakeRenderContext
}

// NewFakeRenderer creates an empty scripted renderer.
func NewFakeRenderer() *FakeRenderer {
	return &FakeRenderer{
		Navigations: make(map[string]*NavigationResult),
		JSResults:   make(map[string]any),
	}
}

func (f *FakeRenderer) NewContext(_ context.Context, stealth bool) (RenderContext, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ctx := &FakeRenderContext{parent: f, stealth: stealth}
	f.Contexts = append(f.Contexts, ctx)
	return ctx, nil
}

// FakeRenderContext is the RenderContext half of FakeRenderer.
type FakeRenderContext struct {
	parent  *FakeRenderer
	stealth bool
	current string
	closed  bool
}

func (c *FakeRenderContext) Navigate(_ context.Context, url string, _ time.Duration) (*NavigationResult, error) {
	c.parent.mu.Lock()
	defer c.parent.mu.Unlock()
	c.current = url
	if result, ok := c.parent.Navigations[url]; ok {
		return result, nil
	}
	return &NavigationResult{FinalURL: url, Status: 200, LoadTimeMs: 10}, nil
}

func (c *FakeRenderContext) ExecuteJS(_ context.Context, src string) (any, error) {
	c.parent.mu.Lock()
	defer c.parent.mu.Unlock()
	if result, ok := c.parent.JSResults[src]; ok {
		return result, nil
	}
	return nil, nil
}

func (c *FakeRenderContext) GetURL() string { return c.current }

func (c *FakeRenderContext) Close() error {
	c.closed = true
	return nil
}
