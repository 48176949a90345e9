package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/cortex/cartographer"
	"github.com/use-agent/cortex/sitemap"
)

// mapNodeSummary is one page's JSON-facing projection of a sitemap.NodeRecord.
type mapNodeSummary struct {
	Index      uint32  `json:"index"`
	URL        string  `json:"url"`
	PageType   string  `json:"page_type"`
	Confidence float32 `json:"confidence"`
}

// mapResponse is the JSON projection of a sitemap.SiteMap returned to API
// callers; the binary CSR format (§6) stays internal to the map cache.
type mapResponse struct {
	Domain       string           `json:"domain"`
	NodeCount    int              `json:"node_count"`
	ClusterCount int              `json:"cluster_count"`
	Nodes        []mapNodeSummary `json:"nodes"`
}

func summarize(domain string, m *sitemap.SiteMap) mapResponse {
	nodes := make([]mapNodeSummary, len(m.Nodes))
	for i, n := range m.Nodes {
		nodes[i] = mapNodeSummary{
			Index:      uint32(i),
			URL:        m.URLs[i],
			PageType:   n.PageType.String(),
			Confidence: float32(n.Confidence) / 255.0,
		}
	}
	return mapResponse{
		Domain:       domain,
		NodeCount:    m.NodeCount(),
		ClusterCount: m.ClusterCount(),
		Nodes:        nodes,
	}
}

// buildMapRequest is the optional body of POST /api/v1/map/:domain.
type buildMapRequest struct {
	MaxPages int `json:"max_pages"`
}

// PostMap returns a handler for POST /api/v1/map/:domain: crawl the domain
// from scratch (or rebuild its cached map) and persist the result.
func PostMap(svc *cartographer.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		domain := c.Param("domain")

		var req buildMapRequest
		// Body is optional; ignore a bind error on an empty body.
		_ = c.ShouldBindJSON(&req)

		m, err := svc.BuildMap(c.Request.Context(), domain, req.MaxPages)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, summarize(domain, m))
	}
}

// GetMap returns a handler for GET /api/v1/map/:domain: fetch the
// previously built map from cache without re-crawling.
func GetMap(svc *cartographer.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		domain := c.Param("domain")

		m, err := svc.LoadMap(domain)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, summarize(domain, m))
	}
}
