package cartography

import "testing"

func TestIsAllowed(t *testing.T) {
	txt := `
User-agent: *
Disallow: /admin
Allow: /admin/public
Crawl-delay: 2
Sitemap: https://example.com/sitemap.xml
`
	rules := ParseRobots(txt, "cortex-agent")

	cases := []struct {
		path string
		want bool
	}{
		{"/", true},
		{"/admin", false},
		{"/admin/secret", false},
		{"/admin/public", true},
		{"/admin/public/page", true},
	}
	for _, tc := range cases {
		if got := rules.IsAllowed(tc.path); got != tc.want {
			t.Errorf("IsAllowed(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}

	if rules.CrawlDelay == nil || *rules.CrawlDelay != 2 {
		t.Fatalf("expected crawl-delay 2, got %v", rules.CrawlDelay)
	}
	if len(rules.Sitemaps) != 1 || rules.Sitemaps[0] != "https://example.com/sitemap.xml" {
		t.Fatalf("expected one sitemap directive, got %v", rules.Sitemaps)
	}
}

func TestParseRobotsSpecificAgentOverridesWildcard(t *testing.T) {
	txt := `
User-agent: *
Disallow: /

User-agent: cortex-agent
Disallow: /private
`
	rules := ParseRobots(txt, "cortex-agent")
	if !rules.IsAllowed("/anything") {
		t.Fatalf("expected specific group to override wildcard disallow-all")
	}
	if rules.IsAllowed("/private") {
		t.Fatalf("expected /private disallowed under specific group")
	}
}

func TestPathMatchesGlobAndAnchor(t *testing.T) {
	if !pathMatches("/foo/bar", "/foo*") {
		t.Fatalf("expected glob prefix match")
	}
	if pathMatches("/foo/bar", "/foo$") {
		t.Fatalf("expected anchor to require exact match")
	}
	if !pathMatches("/foo", "/foo$") {
		t.Fatalf("expected anchor to match exact path")
	}
}
