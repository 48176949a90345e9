// Package renderer defines Cortex's capability interface over a headless
// browser: Renderer creates RenderContexts, and a RenderContext can
// navigate, execute JavaScript, and report its current URL (§6, §9 Design
// Note "Dynamic dispatch over renderers"). There is one production backend
// (go-rod/go-rod-stealth) and one scripted test double; callers depend only
// on the interfaces below.
package renderer

import (
	"context"
	"time"
)

// NavigationResult is the outcome of a RenderContext.Navigate call (§6).
type NavigationResult struct {
	FinalURL      string
	Status        int
	RedirectChain []string
	LoadTimeMs    uint64
}

// RenderContext is one browser tab/context: navigate, run JS, read the
// current URL, and release the underlying resource.
type RenderContext interface {
	// Navigate loads url, waiting up to timeout for the page to settle.
	Navigate(ctx context.Context, url string, timeout time.Duration) (*NavigationResult, error)

	// ExecuteJS evaluates src in the page and returns its JSON-decoded
	// result.
	ExecuteJS(ctx context.Context, src string) (any, error)

	// GetURL returns the context's current URL.
	GetURL() string

	// Close releases the context's resources. Safe to call more than once.
	Close() error
}

// Renderer is a factory for RenderContexts, backed by a pool-managed
// browser instance.
type Renderer interface {
	NewContext(ctx context.Context, stealth bool) (RenderContext, error)
}
