package cartography

import (
	"testing"

	"github.com/use-agent/cortex/renderer"
	"github.com/use-agent/cortex/sitemap"
)

func TestEncodeFeaturesBasicDimensions(t *testing.T) {
	extraction := &ExtractionResult{
		Metadata:  SchemaMetadata{HasJSONLD: true, Robots: "index, follow"},
		Structure: PageStructure{TextDensity: 0.4, FormFieldCount: 2},
		Content: []ContentBlock{
			{Type: "heading", Text: "Title"},
			{Type: "paragraph", Text: "some body text"},
		},
	}
	nav := &renderer.NavigationResult{FinalURL: "https://example.com/a", Status: 200, LoadTimeMs: 500}

	f := EncodeFeatures(extraction, nav, "https://example.com/a", sitemap.PageArticle, 0.9)

	if f[FeatPageType] != float32(sitemap.PageArticle)/31.0 {
		t.Errorf("unexpected page type dim: %v", f[FeatPageType])
	}
	if f[FeatPageTypeConfidence] != 0.9 {
		t.Errorf("unexpected confidence dim: %v", f[FeatPageTypeConfidence])
	}
	if f[FeatIsHTTPS] != 1.0 {
		t.Errorf("expected https flag set")
	}
	if f[FeatHasStructuredData] != 1.0 {
		t.Errorf("expected structured data flag set for JSON-LD")
	}
	if f[FeatHeadingCount] <= 0 {
		t.Errorf("expected nonzero heading count dim")
	}
}

func TestEncodeFeaturesSessionDimsStayZero(t *testing.T) {
	extraction := &ExtractionResult{}
	nav := &renderer.NavigationResult{}
	f := EncodeFeatures(extraction, nav, "http://x.com/", sitemap.PageUnknown, 0.3)
	for i := 112; i < sitemap.FeatureDim; i++ {
		if f[i] != 0 {
			t.Fatalf("expected session dim %d to be zero at mapping time, got %v", i, f[i])
		}
	}
}

func TestEncodeFeaturesNonHTTPS(t *testing.T) {
	extraction := &ExtractionResult{}
	nav := &renderer.NavigationResult{}
	f := EncodeFeatures(extraction, nav, "http://insecure.com/", sitemap.PageUnknown, 0.1)
	if f[FeatIsHTTPS] != 0 {
		t.Fatalf("expected https flag unset for http:// url")
	}
}
