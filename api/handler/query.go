package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/cortex/cartographer"
	"github.com/use-agent/cortex/cortexerr"
	"github.com/use-agent/cortex/sitemap"
)

// featureRangeRequest is the JSON shape of one sitemap.FeatureRange.
type featureRangeRequest struct {
	Dimension int      `json:"dimension"`
	Min       *float32 `json:"min"`
	Max       *float32 `json:"max"`
}

// queryRequest is the body of POST /api/v1/map/:domain/query: either a
// Filter call (page_types/feature_ranges/flags) or, when target_features
// is set, a Nearest cosine-similarity call.
type queryRequest struct {
	PageTypes      []string              `json:"page_types"`
	FeatureRanges  []featureRangeRequest `json:"feature_ranges"`
	SortByFeature  *int                  `json:"sort_by_feature"`
	SortAscending  bool                  `json:"sort_ascending"`
	Limit          int                   `json:"limit"`
	TargetFeatures []float32             `json:"target_features"`
	K              int                   `json:"k"`
}

var pageTypesByName = func() map[string]sitemap.PageType {
	m := make(map[string]sitemap.PageType)
	for pt := sitemap.PageUnknown; pt <= sitemap.PageForm; pt++ {
		m[pt.String()] = pt
	}
	return m
}()

// PostQuery returns a handler for POST /api/v1/map/:domain/query (§4.1
// Filter/Nearest).
func PostQuery(svc *cartographer.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		domain := c.Param("domain")

		var req queryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, cortexerr.New(cortexerr.Unsupported, err.Error(), err))
			return
		}

		m, err := svc.LoadMap(domain)
		if err != nil {
			respondError(c, err)
			return
		}

		if len(req.TargetFeatures) > 0 {
			var target [sitemap.FeatureDim]float32
			for i := 0; i < len(req.TargetFeatures) && i < sitemap.FeatureDim; i++ {
				target[i] = req.TargetFeatures[i]
			}
			k := req.K
			if k <= 0 {
				k = 10
			}
			c.JSON(http.StatusOK, gin.H{"matches": m.Nearest(target, k)})
			return
		}

		q := sitemap.NodeQuery{
			SortByFeature: req.SortByFeature,
			SortAscending: req.SortAscending,
			Limit:         req.Limit,
		}
		if len(req.PageTypes) > 0 {
			q.PageTypes = make(map[sitemap.PageType]struct{}, len(req.PageTypes))
			for _, name := range req.PageTypes {
				if pt, ok := pageTypesByName[name]; ok {
					q.PageTypes[pt] = struct{}{}
				}
			}
		}
		for _, r := range req.FeatureRanges {
			q.FeatureRanges = append(q.FeatureRanges, sitemap.FeatureRange{
				Dimension: r.Dimension,
				Min:       r.Min,
				Max:       r.Max,
			})
		}

		c.JSON(http.StatusOK, gin.H{"matches": m.Filter(q)})
	}
}
