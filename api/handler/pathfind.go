package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/cortex/cartographer"
	"github.com/use-agent/cortex/cortexerr"
	"github.com/use-agent/cortex/sitemap"
)

// pathRequest is the body of POST /api/v1/map/:domain/path (§4.1 ShortestPath).
type pathRequest struct {
	From              uint32 `json:"from"`
	To                uint32 `json:"to"`
	AvoidAuth         bool   `json:"avoid_auth"`
	AvoidStateChanges bool   `json:"avoid_state_changes"`
	Minimize          string `json:"minimize"` // "hops" (default), "weight", "state_changes"
}

func parseMinimize(s string) sitemap.PathMinimize {
	switch s {
	case "weight":
		return sitemap.MinimizeWeight
	case "state_changes":
		return sitemap.MinimizeStateChanges
	default:
		return sitemap.MinimizeHops
	}
}

// PostPath returns a handler for POST /api/v1/map/:domain/path.
func PostPath(svc *cartographer.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		domain := c.Param("domain")

		var req pathRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, cortexerr.New(cortexerr.Unsupported, err.Error(), err))
			return
		}

		m, err := svc.LoadMap(domain)
		if err != nil {
			respondError(c, err)
			return
		}

		path := m.ShortestPath(req.From, req.To, sitemap.PathConstraints{
			AvoidAuth:         req.AvoidAuth,
			AvoidStateChanges: req.AvoidStateChanges,
			Minimize:          parseMinimize(req.Minimize),
		})
		if path == nil {
			respondError(c, cortexerr.New(cortexerr.NotFound, "no path between the given nodes under the given constraints", nil))
			return
		}

		c.JSON(http.StatusOK, path)
	}
}
