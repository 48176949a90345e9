package acquisition

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/use-agent/cortex/cartography"
)

// userAgent is the agent name ParseRobots uses to pick the robots.txt group
// whose rules and crawl-delay apply. It is not sent on the wire: HttpClient
// requests carry a Chrome User-Agent header.
const userAgent = "Cortex-Agent"

const robotsFetchTimeout = 15 * time.Second
const homepageFetchTimeout = 15 * time.Second

// DiscoveryResult is the union of every HTTP-only strategy's output
// (§4.2): a capped, deduplicated, robots-filtered candidate URL set ready
// to hand a renderer, plus the robots rules the crawler's rate limiter
// needs for its crawl-delay.
type DiscoveryResult struct {
	Robots    *cartography.RobotsRules
	URLs      []string
	Feeds     []FeedEntry
	LoginURLs []string
}

// Discover runs robots.txt, sitemap.xml, homepage/login-path, feed, and
// HEAD-scan strategies against domain and unions their results into one
// renderable URL set, capped at maxURLs (§4.2 strategies 1-5).
//
// Each strategy is independent: a failed fetch just contributes nothing,
// matching §4.2's "one's failure does not abort others."
func Discover(ctx context.Context, client *HttpClient, domain string, maxURLs int) *DiscoveryResult {
	result := &DiscoveryResult{}

	homepageURL := fmt.Sprintf("https://%s/", domain)

	robots := fetchRobots(ctx, client, domain)
	result.Robots = robots

	seeds := append([]string(nil), robots.Sitemaps...)
	seeds = append(seeds, fmt.Sprintf("https://%s/sitemap.xml", domain))
	sitemapURLs := FetchSitemapURLs(ctx, client, seeds)

	var homepageHTML string
	if resp, err := client.Get(ctx, homepageURL, homepageFetchTimeout); err == nil && resp.Status == 200 {
		homepageHTML = string(resp.Body)
	}
	links := ScanHomepage(homepageHTML, domain)
	result.LoginURLs = links.LoginURLs

	result.Feeds = DiscoverFeeds(ctx, client, homepageHTML, domain)

	candidates := make([]string, 0, len(sitemapURLs)+len(links.InternalURLs)+len(result.Feeds)+1)
	candidates = append(candidates, homepageURL)
	candidates = append(candidates, sitemapURLs...)
	candidates = append(candidates, links.InternalURLs...)
	for _, entry := range result.Feeds {
		candidates = append(candidates, entry.URL)
	}

	allowed := filterAllowed(candidates, robots, domain)
	if len(allowed) > maxURLs {
		allowed = allowed[:maxURLs]
	}

	heads := ScanHeads(ctx, client, allowed)
	result.URLs = FilterHTMLURLs(heads)

	return result
}

// fetchRobots retrieves and parses domain's robots.txt, returning empty
// (permit-everything) rules when the fetch fails — a missing robots.txt
// is not an error (§4.2 strategy 1, §7 "non-200 skipped, not errors").
func fetchRobots(ctx context.Context, client *HttpClient, domain string) *cartography.RobotsRules {
	url := fmt.Sprintf("https://%s/robots.txt", domain)
	resp, err := client.Get(ctx, url, robotsFetchTimeout)
	if err != nil || resp.Status != 200 {
		return &cartography.RobotsRules{}
	}
	return cartography.ParseRobots(string(resp.Body), userAgent)
}

// filterAllowed dedupes candidates (same-domain only) and drops any path
// robots.txt disallows.
func filterAllowed(candidates []string, robots *cartography.RobotsRules, domain string) []string {
	seen := make(map[string]struct{}, len(candidates))
	var out []string
	for _, c := range candidates {
		if c == "" || !sameDomain(c, domain) {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		if !robots.IsAllowed(pathOf(c)) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func pathOf(rawURL string) string {
	rest := strings.TrimPrefix(strings.TrimPrefix(rawURL, "https://"), "http://")
	if idx := strings.IndexByte(rest, '/'); idx >= 0 {
		return rest[idx:]
	}
	return "/"
}
