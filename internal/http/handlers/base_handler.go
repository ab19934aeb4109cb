// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"zonerev/internal/modules/aggregate"
	"zonerev/internal/modules/runs"
	"zonerev/internal/modules/stats"
)

type errorResponse struct {
	Error  string       `json:"error"`
	Report *runs.Report `json:"report,omitempty"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// writeRunError maps pipeline errors to status codes. Failed runs carry their
// report so callers see how far the run got.
func writeRunError(c *gin.Context, err error, report *runs.Report) {
	switch {
	case errors.Is(err, runs.ErrLocked):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, runs.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, aggregate.ErrUnknownGrain),
		errors.Is(err, stats.ErrInvalidWindow),
		errors.Is(err, stats.ErrRowOutsideWindow):
		writeError(c, http.StatusBadRequest, err.Error())
	default:
		writeJSON(c, http.StatusInternalServerError, errorResponse{Error: err.Error(), Report: report})
	}
}
