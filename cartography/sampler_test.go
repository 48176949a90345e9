package cartography

import (
	"testing"

	"github.com/use-agent/cortex/sitemap"
)

func TestSelectSamplesAlwaysIncludesHome(t *testing.T) {
	classified := []ClassifiedURL{
		{URL: "https://x.com/a", PageType: sitemap.PageArticle, Confidence: 0.9},
		{URL: "https://x.com/", PageType: sitemap.PageHome, Confidence: 0.99},
		{URL: "https://x.com/b", PageType: sitemap.PageArticle, Confidence: 0.8},
	}
	got := SelectSamples(classified, 2)
	if len(got) == 0 || got[0] != "https://x.com/" {
		t.Fatalf("expected home page first, got %v", got)
	}
}

func TestSelectSamplesRespectsBudget(t *testing.T) {
	var classified []ClassifiedURL
	for i := 0; i < 50; i++ {
		classified = append(classified, ClassifiedURL{URL: string(rune('a' + i%26)), PageType: sitemap.PageArticle, Confidence: float32(i)})
	}
	got := SelectSamples(classified, 10)
	if len(got) > 10 {
		t.Fatalf("expected at most 10 samples, got %d", len(got))
	}
}

func TestSelectSamplesNoDuplicates(t *testing.T) {
	classified := []ClassifiedURL{
		{URL: "https://x.com/", PageType: sitemap.PageHome, Confidence: 1.0},
		{URL: "https://x.com/a", PageType: sitemap.PageArticle, Confidence: 0.5},
	}
	got := SelectSamples(classified, 5)
	seen := make(map[string]bool)
	for _, u := range got {
		if seen[u] {
			t.Fatalf("duplicate url in selection: %s", u)
		}
		seen[u] = true
	}
}

func TestSelectSamplesEmpty(t *testing.T) {
	if got := SelectSamples(nil, 5); got != nil {
		t.Fatalf("expected nil for empty input, got %v", got)
	}
}
