// Package handler implements the Gin handlers backing every Cortex HTTP
// endpoint, one file per operation, each a constructor closing over a
// *cartographer.Service — the same shape as the teacher's api/handler
// package.
package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/cortex/cortexerr"
)

// errorEnvelope is the JSON body written on any handler failure.
type errorEnvelope struct {
	Success bool             `json:"success"`
	Error   *cortexerr.Detail `json:"error"`
}

// respondError maps err to a cortexerr.Error (wrapping it if it isn't
// already one) and writes the corresponding status + error envelope.
func respondError(c *gin.Context, err error) {
	cerr, ok := err.(*cortexerr.Error)
	if !ok {
		cerr = cortexerr.New(cortexerr.Unsupported, err.Error(), err)
	}
	c.JSON(mapErrorToStatus(cerr), errorEnvelope{Error: cerr.ToDetail()})
}

// mapErrorToStatus translates a cortexerr.Kind to the HTTP status code
// the teacher's mapErrorToStatus plays for models.ScrapeError codes.
func mapErrorToStatus(e *cortexerr.Error) int {
	switch e.Kind {
	case cortexerr.NotFound:
		return http.StatusNotFound
	case cortexerr.HttpStatus:
		return http.StatusBadGateway
	case cortexerr.Network:
		return http.StatusBadGateway
	case cortexerr.ResourceExhausted:
		return http.StatusTooManyRequests
	case cortexerr.Cancelled:
		return http.StatusGatewayTimeout
	case cortexerr.Unsupported:
		return http.StatusBadRequest
	case cortexerr.Parse, cortexerr.Corrupt:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeSSE writes one SSE event, matching the teacher's handleScrapeSSE
// wire format exactly (event: name / data: json / blank line).
func writeSSE(c *gin.Context, event string, data interface{}) {
	jsonData, _ := json.Marshal(data)
	fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, jsonData)
	c.Writer.Flush()
}
