// Package cartographer wires the browser pool, crawler, acquisition
// pipeline, map cache, and live-interaction session manager into the one
// long-lived object the API layer closes over — Cortex's analogue of the
// teacher's scraper.Scraper, generalized from "one browser + page pool"
// to "one browser + context pool + everything MAP/QUERY/PATHFIND/
// PERCEIVE/REFRESH/WATCH/ACT need to run against it."
package cartographer

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/use-agent/cortex/acquisition"
	"github.com/use-agent/cortex/cache"
	"github.com/use-agent/cortex/cartography"
	"github.com/use-agent/cortex/cleaner"
	"github.com/use-agent/cortex/config"
	"github.com/use-agent/cortex/live"
	"github.com/use-agent/cortex/pool"
	"github.com/use-agent/cortex/renderer"
	"github.com/use-agent/cortex/sitemap"
)

// crawlConcurrency bounds the per-domain crawl rate limiter, matching
// cartography.crawlWorkers so the limiter never starves the worker pool.
const crawlConcurrency = 4

// defaultCrawlDelay is not referenced by BuildMap: a domain whose robots.txt
// has no Crawl-delay directive gets the 100ms default of
// cartography.NewRateLimiterFromCrawlDelay instead.
const defaultCrawlDelay = 250 * time.Millisecond

// Service is the long-lived object backing every Cortex API/MCP
// operation: one headless Chromium process, its context pool and memory
// governor, the HTTP acquisition client, the on-disk+hot map cache, and
// the live-interaction session manager.
type Service struct {
	cfg config.CortexConfig

	renderer   *renderer.RodRenderer
	pool       *pool.ContextPool
	governor   *pool.ResourceGovernor
	extractor  cartography.ExtractionLoader
	httpClient *acquisition.HttpClient
	maps       *cache.HotCache
	sessions   *live.SessionManager
	cleaner    *cleaner.Cleaner

	startTime time.Time
}

// NewService launches the renderer and builds every dependency around
// it. Call Close on shutdown to release the Chromium process.
func NewService(cfg *config.Config) (*Service, error) {
	r, err := renderer.NewRodRenderer(renderer.RodRendererConfig{
		ChromiumPath: cfg.Cortex.ChromiumPath,
		NoSandbox:    cfg.Cortex.ChromiumNoSandbox,
		Proxy:        cfg.Browser.DefaultProxy,
		Headless:     cfg.Browser.Headless,
	})
	if err != nil {
		return nil, err
	}

	governor := pool.NewResourceGovernor(cfg.Cortex.MemoryLimitMB, cfg.Cortex.ContextRequestTimeoutMs)
	ctxPool := pool.NewContextPool(r, cfg.Cortex.MaxContexts, governor)

	diskCache, err := cache.NewMapCache(filepath.Join(cfg.Cortex.Home, "maps"))
	if err != nil {
		return nil, err
	}
	hot := cache.NewHotCache(diskCache, cfg.Cortex.HotCacheMaxEntries, cfg.Cortex.HotCacheTTL)

	return &Service{
		cfg:        cfg.Cortex,
		renderer:   r,
		pool:       ctxPool,
		governor:   governor,
		extractor:  cartography.DOMExtractionLoader{},
		httpClient: acquisition.NewHttpClient(),
		maps:       hot,
		sessions:   live.NewSessionManager(cfg.Cortex.SessionTimeout),
		cleaner:    cleaner.NewCleaner(),
		startTime:  time.Now(),
	}, nil
}

// Stats summarizes pool utilization for the health endpoint.
type Stats struct {
	ActiveContexts int     `json:"active_contexts"`
	MaxContexts    int     `json:"max_contexts"`
	MemoryUsageMB  float64 `json:"memory_usage_mb"`
	MemoryLimitMB  uint64  `json:"memory_limit_mb"`
	ActiveSessions int     `json:"active_sessions"`
}

// Stats returns a snapshot of the pool's and session manager's current
// state.
func (s *Service) Stats() Stats {
	return Stats{
		ActiveContexts: s.pool.ActiveCount(),
		MaxContexts:    s.pool.MaxContexts(),
		MemoryUsageMB:  s.governor.UsageMB(),
		MemoryLimitMB:  s.governor.LimitMB(),
		ActiveSessions: s.sessions.ActiveCount(),
	}
}

// StartTime is when the service was constructed, for uptime reporting.
func (s *Service) StartTime() time.Time {
	return s.startTime
}

// Close releases the underlying Chromium process. Call on shutdown.
func (s *Service) Close() error {
	return s.renderer.Close()
}

// BuildMap discovers a domain's candidate URLs (robots/sitemap/homepage/
// feeds/HEAD-scan), classifies and samples a render-budget-bounded subset
// (§4.5), crawls breadth-first from that subset up to maxPages, interpolates
// feature vectors for every classified candidate the sampler left unrendered
// (§4.4), assembles the resulting SiteMap, and persists it to the map cache
// (§4.2, §4.1, §5 "Map cache").
func (s *Service) BuildMap(ctx context.Context, domain string, maxPages int) (*sitemap.SiteMap, error) {
	if maxPages <= 0 || maxPages > s.cfg.MaxCrawlRender {
		maxPages = s.cfg.MaxCrawlRender
	}

	crawlCtx := ctx
	var cancel context.CancelFunc
	if s.cfg.CrawlDeadline > 0 {
		crawlCtx, cancel = context.WithTimeout(ctx, s.cfg.CrawlDeadline)
		defer cancel()
	}

	discovery := acquisition.Discover(crawlCtx, s.httpClient, domain, s.cfg.MaxCrawlNodes)

	limiter := cartography.NewRateLimiterFromCrawlDelay(discovery.Robots.CrawlDelay, crawlConcurrency)
	crawler := cartography.NewCrawler(s.renderer, s.extractor, limiter)

	candidates := discovery.URLs
	if len(candidates) == 0 {
		candidates = []string{fmt.Sprintf("https://%s/", domain)}
	}

	// Classify every discovered candidate up front (cheap, no render) so the
	// sampler can pick a render-budget-bounded subset (§4.5) and the rest
	// fall back to interpolated nodes (§4.4) instead of being dropped.
	classified := make([]cartography.ClassifiedURL, len(candidates))
	for i, u := range candidates {
		pageType, confidence := cartography.ClassifyURL(u, domain)
		classified[i] = cartography.ClassifiedURL{URL: u, PageType: pageType, Confidence: confidence}
	}

	entryURLs := cartography.SelectSamples(classified, maxPages)
	pages := crawler.CrawlAndDiscover(crawlCtx, entryURLs, maxPages)

	rendered := make(map[string]struct{}, len(pages))
	for _, p := range pages {
		rendered[p.URL] = struct{}{}
		rendered[p.FinalURL] = struct{}{}
	}

	var unrendered []cartography.UnrenderedURL
	for _, c := range classified {
		if _, ok := rendered[c.URL]; ok {
			continue
		}
		unrendered = append(unrendered, cartography.UnrenderedURL{
			URL:        c.URL,
			PageType:   c.PageType,
			Confidence: c.Confidence,
		})
	}

	m := cartography.BuildSiteMap(domain, pages, unrendered)

	if err := s.maps.Save(domain, m); err != nil {
		return nil, err
	}
	return m, nil
}

// LoadMap returns domain's cached SiteMap, erring with NotFound if none
// has been built yet.
func (s *Service) LoadMap(domain string) (*sitemap.SiteMap, error) {
	return s.maps.Load(domain)
}

// Perceive acquires a fresh render context, renders url, and returns its
// classification/features/content, releasing the context afterward.
func (s *Service) Perceive(ctx context.Context, url string, includeContent bool) (*live.PerceiveResult, error) {
	handle, err := s.pool.Acquire(ctx, false)
	if err != nil {
		return nil, err
	}
	defer handle.Release()

	return live.Perceive(ctx, handle.Context(), s.extractor, s.cleaner, url, includeContent)
}

// Refresh re-renders the nodes req selects against domain's map,
// updating it in place and re-saving to the cache.
func (s *Service) Refresh(ctx context.Context, domain string, req live.RefreshRequest) (*live.RefreshResult, error) {
	m, err := s.maps.Load(domain)
	if err != nil {
		return nil, err
	}

	result, err := live.Refresh(ctx, s.renderer, s.extractor, m, req)
	if err != nil {
		return nil, err
	}
	if err := s.maps.Save(domain, m); err != nil {
		return nil, err
	}
	return result, nil
}

// Watch polls domain's map for duration, invoking onDelta as each change
// is found, and persists the updated map once polling stops.
func (s *Service) Watch(ctx context.Context, domain string, req live.WatchRequest, duration time.Duration, onDelta func(live.WatchDelta)) ([]live.WatchDelta, error) {
	m, err := s.maps.Load(domain)
	if err != nil {
		return nil, err
	}

	deltas := live.Watch(ctx, s.renderer, s.httpClient, s.extractor, m, req, duration, onDelta)

	if err := s.maps.Save(domain, m); err != nil {
		return nil, err
	}
	return deltas, nil
}

// Act opens a fresh render context, navigates to url, and executes
// opcode against it.
func (s *Service) Act(ctx context.Context, url string, opcode sitemap.OpCode, params map[string]string) (*live.ActResult, error) {
	handle, err := s.pool.Acquire(ctx, false)
	if err != nil {
		return nil, err
	}
	defer handle.Release()

	return live.Act(ctx, handle.Context(), url, opcode, params)
}

// OpenSession acquires a render context and registers it under a new
// session id for a multi-step ACT flow (§4.12).
func (s *Service) OpenSession(ctx context.Context) (string, error) {
	handle, err := s.pool.Acquire(ctx, false)
	if err != nil {
		return "", err
	}
	id := s.sessions.Create(sessionContext{handle})
	return id, nil
}

// CloseSession ends a session opened by OpenSession, releasing its
// render context.
func (s *Service) CloseSession(id string) error {
	return s.sessions.Close(id)
}

// Session returns the render context for an open session id.
func (s *Service) Session(id string) (renderer.RenderContext, error) {
	session, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	return session.Context(), nil
}

// sessionContext adapts a pool.ContextHandle to renderer.RenderContext so
// SessionManager can own the handle and release its permit/memory back to
// the pool on Close, instead of just closing the underlying browser
// context directly.
type sessionContext struct {
	handle *pool.ContextHandle
}

func (s sessionContext) Navigate(ctx context.Context, url string, timeout time.Duration) (*renderer.NavigationResult, error) {
	return s.handle.Context().Navigate(ctx, url, timeout)
}

func (s sessionContext) ExecuteJS(ctx context.Context, src string) (any, error) {
	return s.handle.Context().ExecuteJS(ctx, src)
}

func (s sessionContext) GetURL() string {
	return s.handle.Context().GetURL()
}

func (s sessionContext) Close() error {
	return s.handle.Release()
}
