package cartography

import (
	"strings"
	"testing"
)

const sampleProductHTML = `
<html>
<head>
<script type="application/ld+json">{"@type": "Product", "offers": {"availability": "InStock"}}</script>
<meta name="robots" content="index, follow">
</head>
<body>
<h1>Widget</h1>
<p>A fine widget for all occasions.</p>
<span class="price" data-price="19.99">$19.99</span>
<button data-action="add-to-cart">Add to Cart</button>
<form><input name="q"></form>
<a href="/other-page">Other page</a>
<a href="https://external.com/page">External</a>
<a href="#section">Anchor only</a>
</body>
</html>`

func TestExtractFromHTMLMetadata(t *testing.T) {
	result, err := ExtractFromHTML(sampleProductHTML, "https://shop.example.com/widget")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Metadata.HasJSONLD {
		t.Fatalf("expected JSON-LD to be detected")
	}
	if result.Metadata.JSONLDType != "Product" {
		t.Fatalf("expected Product JSON-LD type, got %q", result.Metadata.JSONLDType)
	}
	if result.Metadata.Availability != "InStock" {
		t.Fatalf("expected InStock availability, got %q", result.Metadata.Availability)
	}
}

func TestExtractFromHTMLContentBlocks(t *testing.T) {
	result, err := ExtractFromHTML(sampleProductHTML, "https://shop.example.com/widget")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var foundPrice, foundHeading bool
	for _, c := range result.Content {
		if c.Type == "price" && c.Value == 19.99 {
			foundPrice = true
		}
		if c.Type == "heading" {
			foundHeading = true
		}
	}
	if !foundPrice {
		t.Fatalf("expected a price content block, got %+v", result.Content)
	}
	if !foundHeading {
		t.Fatalf("expected a heading content block")
	}
}

func TestExtractFromHTMLNavigationClassification(t *testing.T) {
	result, err := ExtractFromHTML(sampleProductHTML, "https://shop.example.com/widget")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var internal, external int
	for _, n := range result.Navigation {
		switch n.Type {
		case "internal":
			internal++
		case "external":
			external++
		}
	}
	if internal == 0 {
		t.Fatalf("expected at least one internal link")
	}
	if external == 0 {
		t.Fatalf("expected at least one external link")
	}
	for _, n := range result.Navigation {
		if strings.Contains(n.URL, "#section") {
			t.Fatalf("anchor-only link should have been skipped")
		}
	}
}

func TestExtractFromHTMLActions(t *testing.T) {
	result, err := ExtractFromHTML(sampleProductHTML, "https://shop.example.com/widget")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Actions) == 0 {
		t.Fatalf("expected at least one discovered action")
	}
}

func TestResolveURLAbsoluteUnchanged(t *testing.T) {
	got := resolveURL("https://example.com/base/", "https://other.com/page")
	if got != "https://other.com/page" {
		t.Fatalf("expected absolute href returned verbatim, got %q", got)
	}
}

func TestResolveURLRelative(t *testing.T) {
	got := resolveURL("https://example.com/base/", "child")
	if got != "https://example.com/base/child" {
		t.Fatalf("unexpected resolved url: %q", got)
	}
}
