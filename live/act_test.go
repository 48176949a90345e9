package live

import (
	"context"
	"testing"

	"github.com/use-agent/cortex/renderer"
	"github.com/use-agent/cortex/sitemap"
)

func TestActClickSuccess(t *testing.T) {
	fake := renderer.NewFakeRenderer()
	fake.Navigations["https://example.com/"] = &renderer.NavigationResult{
		FinalURL: "https://example.com/", Status: 200, LoadTimeMs: 5,
	}
	script := buildActionScript(sitemap.OpClick, map[string]string{"selector": "#buy"})
	fake.JSResults[script] = map[string]any{"success": true}

	rc, _ := fake.NewContext(context.Background(), false)
	result, err := Act(context.Background(), rc, "https://example.com/", sitemap.OpClick, map[string]string{"selector": "#buy"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatal("expected success")
	}
	if result.NewURL != "https://example.com/" {
		t.Fatalf("unexpected new url: %s", result.NewURL)
	}
}

func TestActUnscriptedDefaultsToFailure(t *testing.T) {
	fake := renderer.NewFakeRenderer()
	rc, _ := fake.NewContext(context.Background(), false)
	result, err := Act(context.Background(), rc, "https://example.com/", sitemap.OpClick, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure when no JS result is scripted")
	}
}

func TestBuildActionScriptUnsupportedOpcode(t *testing.T) {
	script := buildActionScript(sitemap.OpCode{Category: 0xFF, Action: 0xFF}, nil)
	if script == "" {
		t.Fatal("expected a non-empty fallback script")
	}
}

func TestParamOr(t *testing.T) {
	params := map[string]string{"selector": "#a"}
	if v := paramOr(params, "selector", "fallback"); v != "#a" {
		t.Fatalf("expected #a, got %s", v)
	}
	if v := paramOr(params, "missing", "fallback"); v != "fallback" {
		t.Fatalf("expected fallback, got %s", v)
	}
}

func TestJsEscape(t *testing.T) {
	if got := jsEscape(`it's`); got != `it\'s` {
		t.Fatalf("unexpected escape: %s", got)
	}
}
