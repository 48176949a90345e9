package cartography

import (
	"math"

	"github.com/use-agent/cortex/sitemap"
)

// defaultEdgeWeight is used for edges with no stronger signal to derive a
// weight from (§4.1 EdgeRecord.weight is 1..=255, higher meaning stronger
// relationship).
const defaultEdgeWeight uint8 = 100

// paginationEdgeWeight ranks pagination relationships above a plain
// navigation link, since they chain through an ordered sequence rather than
// branching out.
const paginationEdgeWeight uint8 = 160

// UnrenderedURL is a URL the sampler left out of the render budget (§4.5):
// it was classified (by URL pattern or structured data found during
// acquisition) but never handed to the browser pool. BuildSiteMap still
// gives it a node, with a feature vector interpolated from rendered
// same-type samples (§4.4 "Interpolation") rather than encoded directly.
type UnrenderedURL struct {
	URL        string
	PageType   sitemap.PageType
	Confidence float32
}

// BuildSiteMap assembles a crawl's DiscoveredPages into a complete SiteMap:
// one node per distinct rendered page, plus one interpolated node per
// sampled-out URL in unrendered, CSR edges from each rendered page's
// resolved navigation links, ActionRecords from each rendered page's
// discovered actions, and a final clustering pass over the resulting
// feature vectors (§4.1, §4.4, §4.6).
//
// Only links that resolve to another node already in the map — rendered or
// interpolated — become edges; BuildSiteMap has no notion of a dangling
// reference to a page outside the map.
func BuildSiteMap(domain string, pages []DiscoveredPage, unrendered []UnrenderedURL) *sitemap.SiteMap {
	m := &sitemap.SiteMap{Version: 1, Domain: domain}

	index := make(map[string]int, len(pages)+len(unrendered))
	for _, p := range pages {
		key := stripFragment(p.FinalURL)
		if _, exists := index[key]; exists {
			continue
		}
		index[key] = len(m.URLs)

		pageType, confidence := ClassifyPage(p.Extraction, p.URL)
		features := EncodeFeatures(p.Extraction, p.NavResult, p.URL, pageType, confidence)

		m.URLs = append(m.URLs, key)
		m.Nodes = append(m.Nodes, sitemap.NodeRecord{
			PageType:    pageType,
			Confidence:  uint8(clampF(confidence*255, 0, 255)),
			Flags:       nodeFlags(p),
			Freshness:   255,
			FeatureNorm: featureNorm(features),
		})
		m.Features = append(m.Features, features)
	}

	samplesByType := make(map[sitemap.PageType][][sitemap.FeatureDim]float32, len(m.Nodes))
	for i, n := range m.Nodes {
		samplesByType[n.PageType] = append(samplesByType[n.PageType], m.Features[i])
	}

	for _, u := range unrendered {
		key := stripFragment(u.URL)
		if _, exists := index[key]; exists {
			continue
		}
		index[key] = len(m.URLs)

		features := InterpolateFeatures(u.PageType, samplesByType[u.PageType])

		m.URLs = append(m.URLs, key)
		m.Nodes = append(m.Nodes, sitemap.NodeRecord{
			PageType:    u.PageType,
			Confidence:  uint8(clampF(features[FeatPageTypeConfidence]*255, 0, 255)),
			Flags:       0,
			Freshness:   0,
			FeatureNorm: featureNorm(features),
		})
		m.Features = append(m.Features, features)
	}

	buildEdges(m, pages, index)
	buildActions(m, pages)

	ComputeClusters(m)
	return m
}

// nodeFlags derives a page's NodeFlags from its extraction (§4.1 NodeFlags).
func nodeFlags(p DiscoveredPage) sitemap.NodeFlags {
	var f sitemap.NodeFlags
	f |= sitemap.FlagIsRendered

	if p.Extraction != nil {
		if p.Extraction.Metadata.HasJSONLD || p.Extraction.Metadata.HasSchemaOrg {
			f |= sitemap.FlagHasStructuredData
		}
		for _, n := range p.Extraction.Navigation {
			if n.Type == "pagination" {
				f |= sitemap.FlagIsPaginated
				break
			}
		}
		if len(p.DiscoveredLinks) == 0 && len(p.Extraction.Actions) == 0 {
			f |= sitemap.FlagIsDeadEnd
		}
	} else if len(p.DiscoveredLinks) == 0 {
		f |= sitemap.FlagIsDeadEnd
	}

	return f
}

// buildEdges walks each page's discovered links in crawl order, resolving
// them to node indices and writing the CSR edge_index/edges pair (§4.1).
// BuildSiteMap runs once pages are fully collected, so edges can be built in
// a single index-ordered pass rather than incrementally.
func buildEdges(m *sitemap.SiteMap, pages []DiscoveredPage, index map[string]int) {
	byKey := make(map[string]*DiscoveredPage, len(pages))
	for i := range pages {
		byKey[stripFragment(pages[i].FinalURL)] = &pages[i]
	}

	n := len(m.URLs)
	m.EdgeIndex = make([]uint32, n+1)

	for i, url := range m.URLs {
		page := byKey[url]
		if page != nil {
			for _, link := range page.DiscoveredLinks {
				target, ok := index[stripFragment(link)]
				if !ok || target == i {
					continue
				}
				edgeType, weight := classifyEdge(page, link)
				flags := sitemap.EdgeFlags(0)
				if edgeType == sitemap.EdgePagination {
					flags |= sitemap.EdgeFlagPagination
				}
				if m.Nodes[target].Flags&sitemap.FlagRequiresAuth != 0 {
					flags |= sitemap.EdgeFlagRequiresAuth
				}
				m.Edges = append(m.Edges, sitemap.EdgeRecord{
					TargetNode: uint32(target),
					EdgeType:   edgeType,
					Weight:     weight,
					Flags:      flags,
				})
			}
		}
		m.EdgeIndex[i+1] = uint32(len(m.Edges))
	}
}

// classifyEdge looks up how target was discovered on page (internal vs.
// pagination) to pick its EdgeType and weight.
func classifyEdge(page *DiscoveredPage, target string) (sitemap.EdgeType, uint8) {
	if page.Extraction != nil {
		strippedTarget := stripFragment(target)
		for _, n := range page.Extraction.Navigation {
			if stripFragment(n.URL) != strippedTarget {
				continue
			}
			if n.Type == "pagination" {
				return sitemap.EdgePagination, paginationEdgeWeight
			}
			break
		}
	}
	return sitemap.EdgeNavigation, defaultEdgeWeight
}

// buildActions writes the ActionIndex/Actions CSR pair from each page's
// DiscoveredActions (§4.1 ActionRecord). SelectorRef indexes the action's
// position within its own page's action list; the selector string itself
// lives with the ExtractionResult that produced it, not in the serialized
// map, since no action-selector string pool exists on the wire (§6).
func buildActions(m *sitemap.SiteMap, pages []DiscoveredPage) {
	byKey := make(map[string]*DiscoveredPage, len(pages))
	for i := range pages {
		byKey[stripFragment(pages[i].FinalURL)] = &pages[i]
	}

	n := len(m.URLs)
	m.ActionIndex = make([]uint32, n+1)

	for i, url := range m.URLs {
		page := byKey[url]
		if page != nil && page.Extraction != nil {
			for ref, a := range page.Extraction.Actions {
				m.Actions = append(m.Actions, sitemap.ActionRecord{
					OpCode:      a.OpCode,
					SelectorRef: uint32(ref),
					Risk:        a.Risk,
					Confidence:  m.Nodes[i].Confidence,
				})
			}
		}
		m.ActionIndex[i+1] = uint32(len(m.Actions))
	}
}

func featureNorm(f [sitemap.FeatureDim]float32) float32 {
	var sum float64
	for _, v := range f {
		sum += float64(v) * float64(v)
	}
	return float32(math.Sqrt(sum))
}

func clampF(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
