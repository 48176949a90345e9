package api

import (
	"github.com/gin-gonic/gin"

	"github.com/use-agent/cortex/api/handler"
	"github.com/use-agent/cortex/api/middleware"
	"github.com/use-agent/cortex/cartographer"
	"github.com/use-agent/cortex/config"
)

// NewRouter creates a configured Gin engine with all routes and
// middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoint is intentionally outside auth so monitoring probes
// always work.
func NewRouter(svc *cartographer.Service, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	v1.GET("/health", handler.Health(svc))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	protected.POST("/map/:domain", handler.PostMap(svc))
	protected.GET("/map/:domain", handler.GetMap(svc))
	protected.POST("/map/:domain/query", handler.PostQuery(svc))
	protected.POST("/map/:domain/path", handler.PostPath(svc))

	protected.POST("/perceive", handler.PostPerceive(svc))
	protected.POST("/refresh", handler.PostRefresh(svc))
	protected.POST("/watch", handler.PostWatch(svc))
	protected.POST("/act", handler.PostAct(svc))

	protected.POST("/sessions", handler.PostSession(svc))
	protected.DELETE("/sessions/:id", handler.DeleteSession(svc))

	return r
}
