// Package live implements the PERCEIVE/REFRESH/WATCH/ACT operations of
// live page interaction (§4.10), plus the browser-session manager
// (§4.12) and native WebSocket client (§4.11) that back them.
package live

import (
	"context"
	"time"

	"github.com/use-agent/cortex/cartography"
	"github.com/use-agent/cortex/cleaner"
	"github.com/use-agent/cortex/renderer"
	"github.com/use-agent/cortex/sitemap"
)

// navigateTimeout is how long PERCEIVE waits for a page to settle,
// matching the navigation default elsewhere in the acquisition pipeline.
const navigateTimeout = 30 * time.Second

// SparseFeature is one non-zero entry of a 128-dimension feature vector.
type SparseFeature struct {
	Dim   int     `json:"dim"`
	Value float32 `json:"value"`
}

// PerceiveResult is the outcome of rendering and classifying one URL.
type PerceiveResult struct {
	URL        string           `json:"url"`
	FinalURL   string           `json:"final_url"`
	PageType   sitemap.PageType `json:"page_type"`
	Confidence float32          `json:"confidence"`
	Features   []SparseFeature  `json:"features"`
	Content    *string          `json:"content,omitempty"`
	LoadTimeMs uint64           `json:"load_time_ms"`
}

// Perceive renders url in ctx, classifies the page, and encodes its
// feature vector. When includeContent is true, the page's rendered HTML is
// also captured and reduced to Markdown via cl; cl may be nil when
// includeContent is false.
func Perceive(ctx context.Context, rc renderer.RenderContext, extractor cartography.ExtractionLoader, cl *cleaner.Cleaner, url string, includeContent bool) (*PerceiveResult, error) {
	navResult, err := rc.Navigate(ctx, url, navigateTimeout)
	if err != nil {
		return nil, err
	}

	extraction, err := extractor.InjectAndRun(ctx, rc)
	if err != nil {
		extraction = &cartography.ExtractionResult{}
	}

	pageType, confidence := cartography.ClassifyPage(extraction, navResult.FinalURL)
	features := cartography.EncodeFeatures(extraction, navResult, navResult.FinalURL, pageType, confidence)

	var content *string
	if includeContent && cl != nil {
		if text, err := extractMarkdownContent(ctx, rc, cl, navResult.FinalURL); err == nil {
			content = &text
		}
	}

	return &PerceiveResult{
		URL:        url,
		FinalURL:   navResult.FinalURL,
		PageType:   pageType,
		Confidence: confidence,
		Features:   sparseFeatures(features),
		Content:    content,
		LoadTimeMs: navResult.LoadTimeMs,
	}, nil
}

// sparseFeatures keeps only non-zero entries, mirroring the wire format
// the map query layer returns (§4.4 "sparse non-zero features").
func sparseFeatures(f [sitemap.FeatureDim]float32) []SparseFeature {
	var out []SparseFeature
	for i, v := range f {
		if v != 0 {
			out = append(out, SparseFeature{Dim: i, Value: v})
		}
	}
	return out
}

// extractMarkdownContent pulls the rendered DOM's outer HTML and reduces
// it to Markdown through readability + html-to-markdown, so PERCEIVE hands
// an agent the same clean-content shape the teacher's /scrape endpoint
// does, rather than a raw innerText dump.
func extractMarkdownContent(ctx context.Context, rc renderer.RenderContext, cl *cleaner.Cleaner, sourceURL string) (string, error) {
	result, err := rc.ExecuteJS(ctx, "document.documentElement.outerHTML")
	if err != nil {
		return "", err
	}
	html, _ := result.(string)
	return cl.Markdown(html, sourceURL)
}
