package cartography

import (
	"strings"

	"github.com/use-agent/cortex/sitemap"
)

// SchemaMetadata carries whatever schema.org / JSON-LD type information an
// acquisition strategy managed to pull off a page (§4.2 strategy 6), plus the
// structured-data presence signals the feature encoder needs.
type SchemaMetadata struct {
	JSONLDType    string
	SchemaOrgType string

	HasJSONLD    bool
	HasSchemaOrg bool
	HasOpenGraph bool

	// Robots is the content of <meta name="robots">, lowercased; empty means
	// "index" (the implicit default).
	Robots string

	// Availability is schema.org Offer.availability (e.g. "InStock",
	// "OutOfStock"), read from JSON-LD or microdata offers when present.
	Availability string
}

// ContentBlock is one piece of extracted page content, tagged by role. The
// Value/Original/ReviewCount fields are only meaningful for Type=="price"
// and Type=="rating" respectively, mirroring the extractor's tagged-variant
// payload (see Design Note "Untyped extractor payloads").
type ContentBlock struct {
	Type string // "heading", "paragraph", "price", "rating", "image", "table", "list", "video"

	Text string

	Value       float64 // price or rating value
	Original    float64 // pre-discount price, 0 if none
	ReviewCount float64 // rating review count
}

// DiscoveredAction is one candidate action surfaced during extraction, ahead
// of it being promoted to a sitemap.ActionRecord.
type DiscoveredAction struct {
	OpCode   sitemap.OpCode
	Selector string
	Risk     uint8
}

// NavigationLink is one link discovered in a page's navigation extraction.
type NavigationLink struct {
	Type string // "internal", "external", "pagination", "breadcrumb"
	URL  string
}

// PageStructure holds DOM-shape signals used by the heuristic classifier and
// the feature encoder.
type PageStructure struct {
	FormCount      int
	FormFieldCount int
	TextDensity    float64
	HasSearch      bool
	VideoCount     int
}

// ExtractionResult is the acquisition/render layer's output for a single
// page: everything ClassifyPage and the feature encoder need.
type ExtractionResult struct {
	Metadata   SchemaMetadata
	Structure  PageStructure
	Content    []ContentBlock
	Actions    []DiscoveredAction
	Navigation []NavigationLink
}

// ClassifyPage classifies a page using schema metadata, URL patterns, and DOM
// heuristics, in that order of precedence (§4.3).
func ClassifyPage(extraction *ExtractionResult, url string) (sitemap.PageType, float32) {
	if pt, conf, ok := classifyFromSchema(extraction.Metadata); ok && conf > 0.8 {
		return pt, conf
	}

	domain := ExtractDomain(url)
	urlType, urlConf := ClassifyURL(url, domain)

	if domType, domConf, ok := classifyFromDOM(extraction); ok {
		if domType == urlType {
			return domType, domConf/2.0+urlConf/2.0+0.1
		}
		if domConf > urlConf {
			return domType, domConf
		}
	}

	return urlType, urlConf
}

// classifyFromSchema maps a schema.org / JSON-LD @type to a PageType, JSON-LD
// taking precedence over a bare schemaOrg type field.
func classifyFromSchema(meta SchemaMetadata) (sitemap.PageType, float32, bool) {
	typeStr := meta.JSONLDType
	if typeStr == "" {
		typeStr = meta.SchemaOrgType
	}
	if typeStr == "" {
		return 0, 0, false
	}

	switch strings.ToLower(typeStr) {
	case "product":
		return sitemap.PageProductDetail, 0.95, true
	case "article", "newsarticle", "blogposting":
		return sitemap.PageArticle, 0.95, true
	case "faqpage":
		return sitemap.PageFaq, 0.95, true
	case "aboutpage":
		return sitemap.PageAboutPage, 0.95, true
	case "contactpage":
		return sitemap.PageContactPage, 0.95, true
	case "collectionpage", "searchresultspage":
		return sitemap.PageSearchResults, 0.95, true
	case "itemlist", "offerlist":
		return sitemap.PageProductListing, 0.95, true
	case "checkoutpage":
		return sitemap.PageCheckout, 0.95, true
	case "profilepage":
		return sitemap.PageAccount, 0.95, true
	case "mediagallery", "imageobject", "videoobject":
		return sitemap.PageMediaPage, 0.95, true
	case "discussionforumposting":
		return sitemap.PageForum, 0.95, true
	case "review":
		return sitemap.PageReviewList, 0.95, true
	default:
		return 0, 0, false
	}
}

// classifyFromDOM applies structural heuristics over extracted content and
// discovered actions.
func classifyFromDOM(extraction *ExtractionResult) (sitemap.PageType, float32, bool) {
	formCount := extraction.Structure.FormCount
	textDensity := extraction.Structure.TextDensity

	var hasPrices, hasCartAction, hasLoginForm bool
	var headingCount int
	for _, c := range extraction.Content {
		switch c.Type {
		case "price":
			hasPrices = true
		case "heading":
			headingCount++
		}
	}
	for _, a := range extraction.Actions {
		if a.OpCode == sitemap.OpAddToCart {
			hasCartAction = true
		}
		if a.OpCode == sitemap.OpLoginClick {
			hasLoginForm = true
		}
	}

	switch {
	case hasPrices && hasCartAction:
		return sitemap.PageProductDetail, 0.85, true
	case hasLoginForm && formCount > 0:
		return sitemap.PageLogin, 0.85, true
	case formCount >= 3 && hasPrices:
		return sitemap.PageCheckout, 0.7, true
	case headingCount >= 2 && textDensity > 0.3:
		return sitemap.PageArticle, 0.7, true
	default:
		return 0, 0, false
	}
}
