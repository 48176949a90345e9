package cleaner

import (
	"strings"
	"testing"
)

func TestCleanerMarkdown(t *testing.T) {
	cl := NewCleaner()
	html := `<html><body><article><h1>Title</h1><p>Some paragraph text long enough to pass readability's minimum content length threshold check for extraction.</p></article></body></html>`

	md, err := cl.Markdown(html, "https://example.com/article")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if md == "" {
		t.Fatal("expected non-empty markdown output")
	}
}

func TestCleanerMarkdownFallsBackOnShortContent(t *testing.T) {
	cl := NewCleaner()
	// Too short for readability to consider a real article; Markdown
	// should still return something rather than erroring.
	md, err := cl.Markdown("<p>hi</p>", "https://example.com/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if md == "" {
		t.Fatal("expected non-empty fallback markdown output")
	}
}

func TestAutoExtractRacesReadabilityAndPruning(t *testing.T) {
	html := `<html><body>
		<nav class="sidebar"><a href="/a">a</a><a href="/b">b</a><a href="/c">c</a></nav>
		<section class="main-content"><p>` + strings.Repeat("substantial article content ", 40) + `</p></section>
	</body></html>`

	article := autoExtract(html, "https://example.com/article")
	if strings.TrimSpace(article.TextContent) == "" {
		t.Fatal("expected autoExtract to return non-empty text content")
	}
}
