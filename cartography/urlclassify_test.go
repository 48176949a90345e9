package cartography

import (
	"testing"

	"github.com/use-agent/cortex/sitemap"
)

func TestClassifyURL(t *testing.T) {
	cases := []struct {
		url  string
		want sitemap.PageType
	}{
		{"https://amazon.com/", sitemap.PageHome},
		{"https://amazon.com/dp/B0EXAMPLE", sitemap.PageProductDetail},
		{"https://example.com/blog/my-post", sitemap.PageArticle},
		{"https://example.com/about", sitemap.PageAboutPage},
		{"https://example.com/contact", sitemap.PageContactPage},
		{"https://shop.com/cart", sitemap.PageCart},
		{"https://shop.com/checkout", sitemap.PageCheckout},
		{"https://example.com/login", sitemap.PageLogin},
		{"https://example.com/unknown-page", sitemap.PageUnknown},
	}
	for _, tc := range cases {
		pt, _ := ClassifyURL(tc.url, "")
		if pt != tc.want {
			t.Errorf("ClassifyURL(%q) = %v, want %v", tc.url, pt, tc.want)
		}
	}
}

func TestClassifyURLUnknownConfidence(t *testing.T) {
	_, conf := ClassifyURL("https://example.com/unknown", "example.com")
	if conf != 0.3 {
		t.Fatalf("expected 0.3 confidence for unknown, got %v", conf)
	}
}
