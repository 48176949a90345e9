package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/cortex/cartographer"
)

// healthResponse mirrors the teacher's models.HealthResponse shape,
// substituting context-pool stats for page-pool stats.
type healthResponse struct {
	Status    string              `json:"status"`
	Uptime    string              `json:"uptime"`
	PoolStats cartographer.Stats  `json:"pool_stats"`
	Version   string              `json:"version"`
}

// Health returns a handler for GET /api/v1/health. Degrades status when
// the context pool is over 80% utilized, the same threshold the teacher's
// page pool uses.
func Health(svc *cartographer.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := svc.Stats()

		status := "healthy"
		if stats.MaxContexts > 0 && stats.ActiveContexts > int(float64(stats.MaxContexts)*0.8) {
			status = "degraded"
		}

		c.JSON(http.StatusOK, healthResponse{
			Status:    status,
			Uptime:    time.Since(svc.StartTime()).Round(time.Second).String(),
			PoolStats: stats,
			Version:   "0.1.0",
		})
	}
}
