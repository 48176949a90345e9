package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/cortex/cartographer"
	"github.com/use-agent/cortex/cortexerr"
	"github.com/use-agent/cortex/live"
	"github.com/use-agent/cortex/renderer"
	"github.com/use-agent/cortex/sitemap"
)

// actRequest is the body of POST /api/v1/act (§4.10 ACT). Category/Action
// select a sitemap.OpCode; Params feeds the dispatch table (e.g. selector,
// value, form_selector).
type actRequest struct {
	URL      string            `json:"url"`
	Category uint8             `json:"category"`
	Action   uint8             `json:"action"`
	Params   map[string]string `json:"params"`
	Session  string            `json:"session,omitempty"`
}

// PostAct returns a handler for POST /api/v1/act. When session is set,
// the action runs against that open live.Session's render context instead
// of a fresh one, letting multi-step flows (login → navigate → purchase)
// share browser state (§4.12).
func PostAct(svc *cartographer.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req actRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, cortexerr.New(cortexerr.Unsupported, err.Error(), err))
			return
		}
		if req.URL == "" {
			respondError(c, cortexerr.New(cortexerr.Unsupported, "url is required", nil))
			return
		}

		opcode := sitemap.OpCode{Category: req.Category, Action: req.Action}

		var result *live.ActResult
		var err error
		if req.Session != "" {
			var rc renderer.RenderContext
			rc, err = svc.Session(req.Session)
			if err == nil {
				result, err = live.Act(c.Request.Context(), rc, req.URL, opcode, req.Params)
			}
		} else {
			result, err = svc.Act(c.Request.Context(), req.URL, opcode, req.Params)
		}
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}
