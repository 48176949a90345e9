package cartography

import (
	"testing"

	"github.com/use-agent/cortex/sitemap"
)

func TestClassifyFromURLFallback(t *testing.T) {
	extraction := &ExtractionResult{}
	pt, conf := ClassifyPage(extraction, "https://shop.com/product/widget-123")
	if pt != sitemap.PageProductDetail {
		t.Fatalf("expected ProductDetail, got %v", pt)
	}
	if conf <= 0.5 {
		t.Fatalf("expected confidence > 0.5, got %v", conf)
	}
}

func TestClassifyFromSchema(t *testing.T) {
	meta := SchemaMetadata{JSONLDType: "Product"}
	pt, conf, ok := classifyFromSchema(meta)
	if !ok {
		t.Fatalf("expected schema classification to succeed")
	}
	if pt != sitemap.PageProductDetail {
		t.Fatalf("expected ProductDetail, got %v", pt)
	}
	if conf <= 0.9 {
		t.Fatalf("expected confidence > 0.9, got %v", conf)
	}
}

func TestClassifyPageDOMAndURLAgreeBoostsConfidence(t *testing.T) {
	extraction := &ExtractionResult{
		Content: []ContentBlock{{Type: "price"}},
		Actions: []DiscoveredAction{{OpCode: sitemap.OpAddToCart}},
	}
	pt, conf := ClassifyPage(extraction, "https://shop.com/dp/widget-123")
	if pt != sitemap.PageProductDetail {
		t.Fatalf("expected ProductDetail, got %v", pt)
	}
	// dom_conf=0.85, url_conf=0.8 -> (0.85+0.8)/2+0.1 = 0.925
	if conf < 0.9 || conf > 1.0 {
		t.Fatalf("expected boosted confidence near 0.925, got %v", conf)
	}
}

func TestClassifyPageDOMWinsOverURLWhenDisagreeing(t *testing.T) {
	extraction := &ExtractionResult{
		Structure: PageStructure{FormCount: 1},
		Actions:   []DiscoveredAction{{OpCode: sitemap.OpLoginClick}},
	}
	// URL looks like an article, but DOM says login with higher confidence.
	pt, conf := ClassifyPage(extraction, "https://example.com/news/weird-page")
	if pt != sitemap.PageLogin {
		t.Fatalf("expected DOM heuristic (Login) to win, got %v", pt)
	}
	if conf != 0.85 {
		t.Fatalf("expected raw DOM confidence 0.85, got %v", conf)
	}
}
