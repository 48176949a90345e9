package live

import (
	"context"
	"testing"

	"github.com/use-agent/cortex/cartography"
	"github.com/use-agent/cortex/cleaner"
	"github.com/use-agent/cortex/renderer"
)

type stubExtractionLoader struct {
	byURL map[string]*cartography.ExtractionResult
}

func (s *stubExtractionLoader) InjectAndRun(_ context.Context, rc renderer.RenderContext) (*cartography.ExtractionResult, error) {
	if r, ok := s.byURL[rc.GetURL()]; ok {
		return r, nil
	}
	return &cartography.ExtractionResult{}, nil
}

func TestPerceiveBasic(t *testing.T) {
	fake := renderer.NewFakeRenderer()
	fake.Navigations["https://example.com/"] = &renderer.NavigationResult{
		FinalURL: "https://example.com/", Status: 200, LoadTimeMs: 120,
	}
	loader := &stubExtractionLoader{byURL: map[string]*cartography.ExtractionResult{
		"https://example.com/": {},
	}}

	rc, err := fake.NewContext(context.Background(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := Perceive(context.Background(), rc, loader, nil, "https://example.com/", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.FinalURL != "https://example.com/" {
		t.Fatalf("unexpected final url: %s", result.FinalURL)
	}
	if result.LoadTimeMs != 120 {
		t.Fatalf("expected load time 120, got %d", result.LoadTimeMs)
	}
	if result.Content != nil {
		t.Fatalf("expected nil content when includeContent=false, got %v", *result.Content)
	}
	if len(result.Features) == 0 {
		t.Fatal("expected some non-zero features")
	}
}

func TestPerceiveWithContent(t *testing.T) {
	fake := renderer.NewFakeRenderer()
	fake.JSResults["document.documentElement.outerHTML"] = "<html><body><p>hello world</p></body></html>"
	loader := &stubExtractionLoader{byURL: map[string]*cartography.ExtractionResult{}}
	cl := cleaner.NewCleaner()

	rc, _ := fake.NewContext(context.Background(), false)
	result, err := Perceive(context.Background(), rc, loader, cl, "https://example.com/", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Content == nil || *result.Content == "" {
		t.Fatalf("expected non-empty markdown content, got %v", result.Content)
	}
}

func TestPerceiveNilClSkipsContent(t *testing.T) {
	fake := renderer.NewFakeRenderer()
	loader := &stubExtractionLoader{byURL: map[string]*cartography.ExtractionResult{}}

	rc, _ := fake.NewContext(context.Background(), false)
	result, err := Perceive(context.Background(), rc, loader, nil, "https://example.com/", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Content != nil {
		t.Fatalf("expected nil content when cl is nil even with includeContent=true, got %v", *result.Content)
	}
}
