package cartography

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/use-agent/cortex/renderer"
)

// DiscoveredPage is one page rendered and extracted during a crawl.
type DiscoveredPage struct {
	URL             string
	FinalURL        string
	Status          int
	Extraction      *ExtractionResult
	NavResult       *renderer.NavigationResult
	DiscoveredLinks []string
}

// crawlWorkers bounds how many goroutines concurrently pull URLs off the
// crawl queue; actual request concurrency is still gated by the crawler's
// RateLimiter.
const crawlWorkers = 4

// navigateTimeout bounds a single page's render (§4.2).
const navigateTimeout = 30 * time.Second

// Crawler discovers pages breadth-first using a Renderer, recursing only
// into internal/pagination links (§4.2 strategy, grounded in the acquisition
// pipeline's render step).
type Crawler struct {
	renderer  renderer.Renderer
	extractor ExtractionLoader
	limiter   *RateLimiter
}

// NewCrawler builds a Crawler over the given renderer, extraction loader,
// and per-domain rate limiter.
func NewCrawler(r renderer.Renderer, extractor ExtractionLoader, limiter *RateLimiter) *Crawler {
	return &Crawler{renderer: r, extractor: extractor, limiter: limiter}
}

// CrawlAndDiscover crawls breadth-first from entryURLs, following only
// same-domain internal/pagination links, until maxPages pages have been
// rendered or the queue is exhausted.
func (c *Crawler) CrawlAndDiscover(ctx context.Context, entryURLs []string, maxPages int) []DiscoveredPage {
	var mu sync.Mutex
	queue := append([]string(nil), entryURLs...)
	visited := make(map[string]struct{}, maxPages)
	var results []DiscoveredPage

	next := func() (string, bool) {
		mu.Lock()
		defer mu.Unlock()
		if len(results) >= maxPages || len(queue) == 0 {
			return "", false
		}
		for len(queue) > 0 {
			url := queue[0]
			queue = queue[1:]
			if _, seen := visited[url]; seen {
				continue
			}
			visited[url] = struct{}{}
			return url, true
		}
		return "", false
	}

	enqueue := func(links []string) {
		mu.Lock()
		defer mu.Unlock()
		for _, l := range links {
			if _, seen := visited[l]; !seen {
				queue = append(queue, l)
			}
		}
	}

	record := func(page DiscoveredPage) bool {
		mu.Lock()
		defer mu.Unlock()
		if len(results) >= maxPages {
			return false
		}
		results = append(results, page)
		return true
	}

	var wg sync.WaitGroup
	for i := 0; i < crawlWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				url, ok := next()
				if !ok {
					return
				}

				guard, err := c.limiter.Acquire(ctx)
				if err != nil {
					return
				}
				page, err := c.renderPage(ctx, url)
				guard.Release()
				if err != nil {
					slog.Warn("crawler: failed to render page", "url", url, "error", err)
					continue
				}

				enqueue(page.DiscoveredLinks)
				if !record(*page) {
					return
				}
			}
		}()
	}
	wg.Wait()

	return results
}

// renderPage navigates to url in a fresh browser context, runs extraction,
// and resolves its internal/pagination links for the crawl queue.
func (c *Crawler) renderPage(ctx context.Context, url string) (*DiscoveredPage, error) {
	rc, err := c.renderer.NewContext(ctx, false)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	navResult, err := rc.Navigate(ctx, url, navigateTimeout)
	if err != nil {
		return nil, err
	}

	extraction, err := c.extractor.InjectAndRun(ctx, rc)
	if err != nil {
		return nil, err
	}

	links := extractCrawlLinks(extraction.Navigation, url)

	return &DiscoveredPage{
		URL:             url,
		FinalURL:        navResult.FinalURL,
		Status:          navResult.Status,
		Extraction:      extraction,
		NavResult:       navResult,
		DiscoveredLinks: links,
	}, nil
}

// extractCrawlLinks keeps only same-domain internal/pagination links,
// stripping fragments so the queue/visited set dedupes on the bare URL.
func extractCrawlLinks(navigation []NavigationLink, sourceURL string) []string {
	domain := ExtractDomain(sourceURL)

	var links []string
	for _, n := range navigation {
		if n.Type != "internal" && n.Type != "pagination" {
			continue
		}
		if ExtractDomain(n.URL) != domain {
			continue
		}
		links = append(links, stripFragment(n.URL))
	}
	return links
}

func stripFragment(url string) string {
	if idx := strings.IndexByte(url, '#'); idx >= 0 {
		return url[:idx]
	}
	return url
}
