package cartography

import (
	"math"
	"strings"

	"github.com/use-agent/cortex/renderer"
	"github.com/use-agent/cortex/sitemap"
)

// Feature dimension indices (§4.4). Grouped by the spec's named bands:
// page-identity (0-15), content metrics (16-47), commerce (48-63),
// navigation (64-79), trust/safety (80-95), actions (96-111), session
// (112-127, left zero at mapping time).
const (
	FeatPageType = iota
	FeatPageTypeConfidence
	FeatLoadTime
	FeatIsHTTPS
	FeatURLPathDepth
	FeatURLHasQuery
	FeatURLHasFragment
	FeatHasStructuredData
	FeatMetaRobotsIndex
	FeatRedirectCount
	// dims 10-15 reserved for future page-identity signals
)

const (
	FeatTextDensity = 16 + iota
	FeatHeadingCount
	FeatParagraphCount
	FeatImageCount
	FeatTableCount
	FeatListCount
	FeatTextLengthLog
	FeatFormFieldCount
	FeatVideoPresent
	// dims 25-47 reserved
)

const (
	FeatPrice = 48 + iota
	FeatPriceOriginal
	FeatDiscountPct
	FeatRating
	FeatReviewCountLog
	FeatAvailability
	// dims 54-63 reserved
)

const (
	FeatLinkCountInternal = 64 + iota
	FeatLinkCountExternal
	FeatOutboundLinks
	FeatPaginationPresent
	FeatBreadcrumbDepth
	FeatSearchAvailable
	FeatIsDeadEnd
	// dims 71-79 reserved
)

const (
	FeatTLSValid = 80 + iota
	FeatContentFreshness
	// dims 82-95 reserved
)

const (
	FeatActionCount = 96 + iota
	FeatSafeActionRatio
	FeatCautiousActionRatio
	FeatDestructiveActionRatio
	FeatPrimaryCTAPresent
	// dims 101-111 reserved
)

// EncodeFeatures maps an extraction result and navigation info to a
// 128-float feature vector (§4.4). Every formula here is a contract: the
// binary format and query semantics depend on reproducing it exactly.
func EncodeFeatures(extraction *ExtractionResult, nav *renderer.NavigationResult, url string, pageType sitemap.PageType, confidence float32) [sitemap.FeatureDim]float32 {
	var f [sitemap.FeatureDim]float32

	f[FeatPageType] = float32(pageType) / 31.0
	f[FeatPageTypeConfidence] = confidence
	f[FeatLoadTime] = normalizeLoadTime(nav.LoadTimeMs)
	f[FeatIsHTTPS] = boolF(strings.HasPrefix(url, "https://"))
	f[FeatURLPathDepth] = float32(countPathDepth(url)) / 10.0
	f[FeatURLHasQuery] = boolF(strings.Contains(url, "?"))
	f[FeatURLHasFragment] = boolF(strings.Contains(url, "#"))
	f[FeatHasStructuredData] = hasStructuredData(extraction.Metadata)
	f[FeatMetaRobotsIndex] = metaRobotsIndex(extraction.Metadata)
	f[FeatRedirectCount] = float32(len(nav.RedirectChain)) / 5.0

	encodeContentFeatures(extraction, &f)
	encodeCommerceFeatures(extraction, &f)
	encodeNavigationFeatures(extraction, &f)

	f[FeatTLSValid] = boolF(strings.HasPrefix(url, "https://"))
	f[FeatContentFreshness] = 1.0 // just mapped, so fresh

	encodeActionFeatures(extraction.Actions, &f)

	// Session dimensions (112-127) stay zero at mapping time.

	return f
}

func boolF(b bool) float32 {
	if b {
		return 1.0
	}
	return 0.0
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func normalizeLoadTime(ms uint64) float32 {
	return 1.0 - clamp(float32(ms)/10_000.0, 0, 1)
}

func countPathDepth(url string) int {
	path := extractPath(url)
	if q := strings.IndexByte(path, '?'); q >= 0 {
		path = path[:q]
	}
	if h := strings.IndexByte(path, '#'); h >= 0 {
		path = path[:h]
	}
	segments := strings.Split(path, "/")
	count := 0
	for _, s := range segments {
		if s != "" {
			count++
		}
	}
	return count
}

func hasStructuredData(meta SchemaMetadata) float32 {
	if meta.HasJSONLD || meta.HasSchemaOrg {
		return 1.0
	}
	if meta.HasOpenGraph {
		return 0.5
	}
	return 0.0
}

func metaRobotsIndex(meta SchemaMetadata) float32 {
	robots := meta.Robots
	if robots == "" {
		robots = "index"
	}
	if strings.Contains(robots, "noindex") {
		return 0.0
	}
	return 1.0
}

func encodeContentFeatures(extraction *ExtractionResult, f *[sitemap.FeatureDim]float32) {
	f[FeatTextDensity] = float32(extraction.Structure.TextDensity)

	var headings, paragraphs, images, tables, lists int
	var totalTextLen int
	for _, c := range extraction.Content {
		switch c.Type {
		case "heading":
			headings++
		case "paragraph":
			paragraphs++
		case "image":
			images++
		case "table":
			tables++
		case "list":
			lists++
		}
		totalTextLen += len(c.Text)
	}

	f[FeatHeadingCount] = clamp(float32(headings)/10.0, 0, 1)
	f[FeatParagraphCount] = clamp(float32(paragraphs)/20.0, 0, 1)
	f[FeatImageCount] = clamp(float32(images)/20.0, 0, 1)
	f[FeatTableCount] = clamp(float32(tables)/5.0, 0, 1)
	f[FeatListCount] = clamp(float32(lists)/10.0, 0, 1)
	f[FeatTextLengthLog] = clamp(float32(math.Log(float64(totalTextLen)+1))/12.0, 0, 1)

	f[FeatFormFieldCount] = clamp(float32(extraction.Structure.FormFieldCount)/20.0, 0, 1)
	f[FeatVideoPresent] = boolF(extraction.Structure.VideoCount > 0)
}

func encodeCommerceFeatures(extraction *ExtractionResult, f *[sitemap.FeatureDim]float32) {
	for _, c := range extraction.Content {
		switch c.Type {
		case "price":
			f[FeatPrice] = clamp(float32(c.Value)/1000.0, 0, 1)
			if c.Original > 0 {
				f[FeatPriceOriginal] = clamp(float32(c.Original)/1000.0, 0, 1)
				f[FeatDiscountPct] = clamp(float32(1.0-c.Value/c.Original), 0, 1)
			}
		case "rating":
			f[FeatRating] = clamp(float32(c.Value)/5.0, 0, 1)
			f[FeatReviewCountLog] = clamp(float32(math.Log(c.ReviewCount+1))/10.0, 0, 1)
		}
	}

	switch extraction.Metadata.Availability {
	case "InStock":
		f[FeatAvailability] = 1.0
	case "OutOfStock":
		f[FeatAvailability] = 0.0
	default:
		f[FeatAvailability] = 0.5
	}
}

func encodeNavigationFeatures(extraction *ExtractionResult, f *[sitemap.FeatureDim]float32) {
	var internal, external, breadcrumbs int
	var hasPagination bool
	for _, n := range extraction.Navigation {
		switch n.Type {
		case "internal":
			internal++
		case "external":
			external++
		case "pagination":
			hasPagination = true
		case "breadcrumb":
			breadcrumbs++
		}
	}

	f[FeatLinkCountInternal] = clamp(float32(internal)/100.0, 0, 1)
	f[FeatLinkCountExternal] = clamp(float32(external)/50.0, 0, 1)
	f[FeatOutboundLinks] = clamp(float32(internal+external)/100.0, 0, 1)
	f[FeatPaginationPresent] = boolF(hasPagination)
	f[FeatBreadcrumbDepth] = clamp(float32(breadcrumbs)/5.0, 0, 1)

	f[FeatSearchAvailable] = boolF(extraction.Structure.HasSearch)
	f[FeatIsDeadEnd] = boolF(f[FeatOutboundLinks] < 0.01)
}

func encodeActionFeatures(actions []DiscoveredAction, f *[sitemap.FeatureDim]float32) {
	total := float32(len(actions))
	f[FeatActionCount] = clamp(total/20.0, 0, 1)
	if total == 0 {
		return
	}

	var safe, cautious, destructive float32
	var hasCTA bool
	for _, a := range actions {
		switch a.Risk {
		case sitemap.RiskSafe:
			safe++
		case sitemap.RiskCautious:
			cautious++
		case sitemap.RiskDestructive:
			destructive++
		}
		if a.OpCode.Category == sitemap.CategoryCommerce || a.OpCode.Category == sitemap.CategoryAuth {
			hasCTA = true
		}
	}

	f[FeatSafeActionRatio] = safe / total
	f[FeatCautiousActionRatio] = cautious / total
	f[FeatDestructiveActionRatio] = destructive / total
	f[FeatPrimaryCTAPresent] = boolF(hasCTA)
}
