package cartography

import (
	"context"
	"testing"
	"time"

	"github.com/use-agent/cortex/renderer"
)

// stubExtractionLoader returns canned extraction results keyed by the
// context's current URL, letting crawler tests control link graphs without
// a real renderer.
type stubExtractionLoader struct {
	byURL map[string]*ExtractionResult
}

func (s *stubExtractionLoader) InjectAndRun(_ context.Context, rc renderer.RenderContext) (*ExtractionResult, error) {
	if r, ok := s.byURL[rc.GetURL()]; ok {
		return r, nil
	}
	return &ExtractionResult{}, nil
}

func TestCrawlerDiscoversInternalLinks(t *testing.T) {
	fake := renderer.NewFakeRenderer()
	loader := &stubExtractionLoader{byURL: map[string]*ExtractionResult{
		"https://example.com/": {
			Navigation: []NavigationLink{
				{Type: "internal", URL: "https://example.com/a"},
				{Type: "external", URL: "https://other.com/x"},
			},
		},
		"https://example.com/a": {
			Navigation: []NavigationLink{
				{Type: "internal", URL: "https://example.com/b#frag"},
			},
		},
		"https://example.com/b": {},
	}}

	limiter := NewRateLimiter(4, time.Millisecond)
	crawler := NewCrawler(fake, loader, limiter)

	pages := crawler.CrawlAndDiscover(context.Background(), []string{"https://example.com/"}, 10)

	if len(pages) != 3 {
		t.Fatalf("expected 3 discovered pages, got %d: %+v", len(pages), pages)
	}

	seen := make(map[string]bool)
	for _, p := range pages {
		seen[p.URL] = true
	}
	for _, want := range []string{"https://example.com/", "https://example.com/a", "https://example.com/b"} {
		if !seen[want] {
			t.Errorf("expected page %s to be discovered, got %v", want, seen)
		}
	}
}

func TestCrawlerRespectsMaxPages(t *testing.T) {
	fake := renderer.NewFakeRenderer()
	loader := &stubExtractionLoader{byURL: map[string]*ExtractionResult{
		"https://example.com/": {
			Navigation: []NavigationLink{
				{Type: "internal", URL: "https://example.com/a"},
				{Type: "internal", URL: "https://example.com/b"},
				{Type: "internal", URL: "https://example.com/c"},
			},
		},
	}}

	limiter := NewRateLimiter(4, time.Millisecond)
	crawler := NewCrawler(fake, loader, limiter)

	pages := crawler.CrawlAndDiscover(context.Background(), []string{"https://example.com/"}, 2)
	if len(pages) > 2 {
		t.Fatalf("expected at most 2 pages, got %d", len(pages))
	}
}
