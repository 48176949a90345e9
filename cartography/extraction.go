package cartography

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/use-agent/cortex/cortexerr"
	"github.com/use-agent/cortex/renderer"
	"github.com/use-agent/cortex/sitemap"
)

// ExtractionLoader is the wire contract for the renderer-side extractor
// (§6): given a live render context, it returns content/actions/navigation/
// structure/metadata for the currently loaded page. The extractor JS
// bundles themselves are out of scope (§1); this is a same-process
// fallback implementation grounded on go-readability/goquery DOM analysis
// of the rendered page's HTML, used whenever no richer JS extractor is
// injected.
type ExtractionLoader interface {
	InjectAndRun(ctx context.Context, rc renderer.RenderContext) (*ExtractionResult, error)
}

// DOMExtractionLoader extracts page signals by pulling the rendered page's
// outer HTML and running goquery/go-readability over it.
type DOMExtractionLoader struct{}

func (DOMExtractionLoader) InjectAndRun(ctx context.Context, rc renderer.RenderContext) (*ExtractionResult, error) {
	raw, err := rc.ExecuteJS(ctx, "document.documentElement.outerHTML")
	if err != nil {
		return nil, err
	}
	htmlContent, _ := raw.(string)
	return ExtractFromHTML(htmlContent, rc.GetURL())
}

// ExtractFromHTML runs the DOM-heuristic extraction pipeline directly over
// an HTML document string, independent of any renderer — used both by
// DOMExtractionLoader (post-render) and by live's FetchNodeFeaturesHTTP
// (HTTP-only, no render).
func ExtractFromHTML(htmlContent, pageURL string) (*ExtractionResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, cortexerr.New(cortexerr.Parse, "parsing extraction HTML", err)
	}

	result := &ExtractionResult{}
	result.Metadata = extractMetadata(doc)
	result.Content = extractContent(doc)
	result.Structure = extractStructure(doc, htmlContent, pageURL)
	result.Navigation = extractNavigation(doc, pageURL)
	result.Actions = extractActions(doc)

	return result, nil
}

func extractMetadata(doc *goquery.Document) SchemaMetadata {
	var meta SchemaMetadata

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var payload map[string]any
		if err := json.Unmarshal([]byte(s.Text()), &payload); err != nil {
			return true
		}
		meta.HasJSONLD = true
		if t, ok := payload["@type"].(string); ok {
			meta.JSONLDType = t
		}
		if offers, ok := payload["offers"].(map[string]any); ok {
			if avail, ok := offers["availability"].(string); ok {
				meta.Availability = lastPathSegment(avail)
			}
		}
		return meta.JSONLDType == ""
	})

	if typ, ok := doc.Find("[itemtype]").First().Attr("itemtype"); ok {
		meta.HasSchemaOrg = true
		meta.SchemaOrgType = lastPathSegment(typ)
	}

	if og, ok := doc.Find(`meta[property^="og:"]`).First().Attr("content"); ok && og != "" {
		meta.HasOpenGraph = true
	}

	if robots, ok := doc.Find(`meta[name="robots"]`).Attr("content"); ok {
		meta.Robots = strings.ToLower(robots)
	}

	return meta
}

func lastPathSegment(s string) string {
	if idx := strings.LastIndexByte(s, '/'); idx >= 0 {
		return s[idx+1:]
	}
	return s
}

func extractContent(doc *goquery.Document) []ContentBlock {
	var blocks []ContentBlock

	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		blocks = append(blocks, ContentBlock{Type: "heading", Text: strings.TrimSpace(s.Text())})
	})
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text != "" {
			blocks = append(blocks, ContentBlock{Type: "paragraph", Text: text})
		}
	})
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		blocks = append(blocks, ContentBlock{Type: "image"})
	})
	doc.Find("table").Each(func(_ int, s *goquery.Selection) {
		blocks = append(blocks, ContentBlock{Type: "table"})
	})
	doc.Find("ul, ol").Each(func(_ int, s *goquery.Selection) {
		blocks = append(blocks, ContentBlock{Type: "list"})
	})

	doc.Find(`[itemprop="price"], .price, [data-price]`).Each(func(_ int, s *goquery.Selection) {
		text := priceAttr(s)
		if text == "" {
			return
		}
		if v, err := strconv.ParseFloat(stripCurrency(text), 64); err == nil {
			blocks = append(blocks, ContentBlock{Type: "price", Value: v})
		}
	})

	doc.Find(`[itemprop="ratingValue"], .rating`).Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if v, err := strconv.ParseFloat(text, 64); err == nil {
			blocks = append(blocks, ContentBlock{Type: "rating", Value: v})
		}
	})

	return blocks
}

func priceAttr(s *goquery.Selection) string {
	if v, ok := s.Attr("data-price"); ok {
		return v
	}
	if v, ok := s.Attr("content"); ok {
		return v
	}
	return strings.TrimSpace(s.Text())
}

func stripCurrency(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func extractStructure(doc *goquery.Document, htmlContent, pageURL string) PageStructure {
	var st PageStructure
	st.FormCount = doc.Find("form").Length()
	st.FormFieldCount = doc.Find("input, select, textarea").Length()
	st.VideoCount = doc.Find("video").Length()
	st.HasSearch = doc.Find(`input[type="search"], form[role="search"], input[name="q"]`).Length() > 0

	if parsed, err := url.Parse(pageURL); err == nil {
		if article, err := readability.FromReader(strings.NewReader(htmlContent), parsed); err == nil && len(htmlContent) > 0 {
			st.TextDensity = float64(len(article.TextContent)) / float64(len(htmlContent))
			if st.TextDensity > 1 {
				st.TextDensity = 1
			}
		}
	}

	return st
}

func extractNavigation(doc *goquery.Document, pageURL string) []NavigationLink {
	domain := ExtractDomain(pageURL)
	var links []NavigationLink

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}
		abs := resolveURL(pageURL, href)
		linkType := "external"
		if ExtractDomain(abs) == domain {
			linkType = "internal"
		}
		if rel, _ := s.Attr("rel"); rel == "next" || rel == "prev" {
			linkType = "pagination"
		}
		if isInBreadcrumb(s) {
			linkType = "breadcrumb"
		}
		links = append(links, NavigationLink{Type: linkType, URL: abs})
	})

	doc.Find(`[class*="pagination"] a, nav[aria-label="pagination"] a`).Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok && href != "" {
			links = append(links, NavigationLink{Type: "pagination", URL: resolveURL(pageURL, href)})
		}
	})

	return links
}

func isInBreadcrumb(s *goquery.Selection) bool {
	class, _ := s.Closest(`[class*="breadcrumb"]`).Attr("class")
	return class != ""
}

// resolveURL resolves href against base, returning href verbatim if it is
// already absolute (§8 law: resolve_url(base, absolute) == absolute).
func resolveURL(base, href string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	refURL, err := url.Parse(href)
	if err != nil {
		return href
	}
	return baseURL.ResolveReference(refURL).String()
}

func extractActions(doc *goquery.Document) []DiscoveredAction {
	var actions []DiscoveredAction

	doc.Find(`[data-action="add-to-cart"], button[name="add-to-cart"], .add-to-cart`).Each(func(_ int, s *goquery.Selection) {
		actions = append(actions, DiscoveredAction{OpCode: sitemap.OpAddToCart, Selector: selectorFor(s), Risk: sitemap.RiskCautious})
	})
	doc.Find("button").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.Contains(strings.ToLower(s.Text()), "add to cart") {
			actions = append(actions, DiscoveredAction{OpCode: sitemap.OpAddToCart, Selector: selectorFor(s), Risk: sitemap.RiskCautious})
		}
		return true
	})

	doc.Find(`button[type="submit"], input[type="submit"], .login-btn`).Each(func(_ int, s *goquery.Selection) {
		if strings.Contains(strings.ToLower(s.Text()), "log in") || strings.Contains(strings.ToLower(s.Text()), "sign in") {
			actions = append(actions, DiscoveredAction{OpCode: sitemap.OpLoginClick, Selector: selectorFor(s), Risk: sitemap.RiskSafe})
		}
	})

	doc.Find("form").Each(func(_ int, s *goquery.Selection) {
		actions = append(actions, DiscoveredAction{OpCode: sitemap.OpSubmitForm, Selector: selectorFor(s), Risk: sitemap.RiskDestructive})
	})

	return actions
}

func selectorFor(s *goquery.Selection) string {
	if id, ok := s.Attr("id"); ok && id != "" {
		return "#" + id
	}
	if name, ok := s.Attr("name"); ok && name != "" {
		return s.Nodes[0].Data + `[name="` + name + `"]`
	}
	return s.Nodes[0].Data
}
