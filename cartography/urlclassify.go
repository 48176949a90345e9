// Package cartography turns a domain into a classified, feature-encoded,
// clustered set of pages ready for assembly into a sitemap.SiteMap.
package cartography

import (
	"strings"

	"github.com/use-agent/cortex/sitemap"
)

// ClassifyURL classifies a URL into a page type and confidence score using
// substring patterns over its path (§4.3 signal 3).
func ClassifyURL(url, _domain string) (sitemap.PageType, float32) {
	path := strings.ToLower(extractPath(url))

	switch {
	case path == "/" || path == "":
		return sitemap.PageHome, 0.9
	case containsAny(path, "/dp/", "/product/", "/item/", "/p/", "/products/", "/pd/"):
		return sitemap.PageProductDetail, 0.8
	case strings.Contains(path, "/search") || strings.Contains(path, "/s?") || strings.HasPrefix(path, "/s/"):
		return sitemap.PageSearchResults, 0.8
	case containsAny(path, "/category/", "/c/", "/collections/", "/shop/"):
		return sitemap.PageProductListing, 0.7
	case containsAny(path, "/cart", "/basket", "/bag"):
		return sitemap.PageCart, 0.9
	case strings.Contains(path, "/checkout"):
		return sitemap.PageCheckout, 0.9
	case containsAny(path, "/login", "/signin", "/sign-in", "/auth"):
		return sitemap.PageLogin, 0.85
	case containsAny(path, "/account", "/profile", "/settings"):
		return sitemap.PageAccount, 0.7
	case containsAny(path, "/blog/", "/post/", "/article/", "/news/", "/stories/"):
		return sitemap.PageArticle, 0.75
	case containsAny(path, "/docs/", "/documentation/", "/wiki/", "/guide/"):
		return sitemap.PageDocumentation, 0.7
	case strings.Contains(path, "/about"):
		return sitemap.PageAboutPage, 0.85
	case strings.Contains(path, "/contact"):
		return sitemap.PageContactPage, 0.85
	case strings.Contains(path, "/faq") || strings.Contains(path, "/help"):
		return sitemap.PageFaq, 0.8
	case strings.Contains(path, "/pricing") || strings.Contains(path, "/plans"):
		return sitemap.PagePricingPage, 0.85
	case containsAny(path, "/privacy", "/terms", "/tos", "/legal"):
		return sitemap.PageLegal, 0.8
	case strings.Contains(path, "/download"):
		return sitemap.PageDownloadPage, 0.8
	case hasAnySuffix(path, ".pdf", ".zip", ".tar.gz"):
		return sitemap.PageDownloadPage, 0.9
	case hasAnySuffix(path, ".jpg", ".png", ".gif", ".mp4"):
		return sitemap.PageMediaPage, 0.9
	case containsAny(path, "/forum", "/discuss", "/community"):
		return sitemap.PageForum, 0.7
	case strings.Contains(path, "/sitemap"):
		return sitemap.PageSitemapPage, 0.8
	case containsAny(path, "/archive", "/tags/", "/categories/"):
		return sitemap.PageProductListing, 0.5
	default:
		return sitemap.PageUnknown, 0.3
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func hasAnySuffix(s string, suffixes ...string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}

// extractPath extracts the path component from a URL without a full URL
// parse, matching the original cartography classifier's simple approach.
func extractPath(url string) string {
	rest, ok := strings.CutPrefix(url, "https://")
	if !ok {
		rest, ok = strings.CutPrefix(url, "http://")
	}
	if !ok {
		return url
	}
	if slash := strings.IndexByte(rest, '/'); slash >= 0 {
		return rest[slash:]
	}
	return "/"
}

// ExtractDomain extracts the host component from a URL.
func ExtractDomain(url string) string {
	rest, ok := strings.CutPrefix(url, "https://")
	if !ok {
		rest, ok = strings.CutPrefix(url, "http://")
	}
	if !ok {
		rest = url
	}
	if slash := strings.IndexByte(rest, '/'); slash >= 0 {
		return rest[:slash]
	}
	return rest
}
