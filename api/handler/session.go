package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/cortex/cartographer"
)

// PostSession returns a handler for POST /api/v1/sessions: open a
// persistent browser context for a multi-step ACT flow (§4.12) and
// return its id for use as PostAct's session field.
func PostSession(svc *cartographer.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := svc.OpenSession(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"session": id})
	}
}

// DeleteSession returns a handler for DELETE /api/v1/sessions/:id:
// release the session's render context.
func DeleteSession(svc *cartographer.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.CloseSession(c.Param("id")); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
