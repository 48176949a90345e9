package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/cortex/cartographer"
	"github.com/use-agent/cortex/cortexerr"
	"github.com/use-agent/cortex/live"
)

// refreshRequest is the body of POST /api/v1/refresh (§4.10 REFRESH).
type refreshRequest struct {
	Domain         string   `json:"domain"`
	Nodes          []uint32 `json:"nodes"`
	Cluster        *uint16  `json:"cluster"`
	StaleThreshold *float64 `json:"stale_threshold"`
}

// PostRefresh returns a handler for POST /api/v1/refresh: re-render the
// selected nodes of domain's cached map and persist the update.
func PostRefresh(svc *cartographer.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req refreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, cortexerr.New(cortexerr.Unsupported, err.Error(), err))
			return
		}
		if req.Domain == "" {
			respondError(c, cortexerr.New(cortexerr.Unsupported, "domain is required", nil))
			return
		}

		result, err := svc.Refresh(c.Request.Context(), req.Domain, live.RefreshRequest{
			Nodes:          req.Nodes,
			Cluster:        req.Cluster,
			StaleThreshold: req.StaleThreshold,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}
