package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/cortex/cartographer"
	"github.com/use-agent/cortex/cortexerr"
	"github.com/use-agent/cortex/live"
)

// watchRequest is the body of POST /api/v1/watch (§4.10 WATCH).
type watchRequest struct {
	Domain     string   `json:"domain"`
	Nodes      []uint32 `json:"nodes"`
	Cluster    *uint16  `json:"cluster"`
	Features   []int    `json:"features"`
	IntervalMs int64    `json:"interval_ms"`
	DurationMs int64    `json:"duration_ms"`
}

const (
	defaultWatchInterval = 5 * time.Second
	defaultWatchDuration = 30 * time.Second
)

// PostWatch returns a handler for POST /api/v1/watch: poll the selected
// nodes, streaming each live.WatchDelta as an SSE event the moment it's
// found, the same shape the teacher's handleScrapeSSE uses for /scrape.
func PostWatch(svc *cartographer.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req watchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, cortexerr.New(cortexerr.Unsupported, err.Error(), err))
			return
		}
		if req.Domain == "" {
			respondError(c, cortexerr.New(cortexerr.Unsupported, "domain is required", nil))
			return
		}

		interval := defaultWatchInterval
		if req.IntervalMs > 0 {
			interval = time.Duration(req.IntervalMs) * time.Millisecond
		}
		duration := defaultWatchDuration
		if req.DurationMs > 0 {
			duration = time.Duration(req.DurationMs) * time.Millisecond
		}

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")

		writeSSE(c, "watch.started", gin.H{"domain": req.Domain})

		onDelta := func(d live.WatchDelta) {
			writeSSE(c, "watch.delta", d)
		}

		_, err := svc.Watch(c.Request.Context(), req.Domain, live.WatchRequest{
			Domain:   req.Domain,
			Nodes:    req.Nodes,
			Cluster:  req.Cluster,
			Features: req.Features,
			Interval: interval,
		}, duration, onDelta)
		if err != nil {
			writeSSE(c, "watch.error", gin.H{"error": err.Error()})
			return
		}

		writeSSE(c, "watch.completed", nil)
	}
}
