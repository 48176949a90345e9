package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/cortex/cartographer"
	"github.com/use-agent/cortex/cortexerr"
)

// perceiveRequest is the body of POST /api/v1/perceive (§4.10 PERCEIVE).
type perceiveRequest struct {
	URL            string `json:"url"`
	IncludeContent bool   `json:"include_content"`
}

// PostPerceive returns a handler for POST /api/v1/perceive: render url
// once and return its classification/features/content without touching
// any cached map.
func PostPerceive(svc *cartographer.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req perceiveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, cortexerr.New(cortexerr.Unsupported, err.Error(), err))
			return
		}
		if req.URL == "" {
			respondError(c, cortexerr.New(cortexerr.Unsupported, "url is required", nil))
			return
		}

		result, err := svc.Perceive(c.Request.Context(), req.URL, req.IncludeContent)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}
