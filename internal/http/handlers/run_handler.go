// README: Run handlers: trigger a recompute and read the last run report.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"zonerev/internal/modules/aggregate"
	"zonerev/internal/modules/runs"
	"zonerev/internal/types"
)

type RunService interface {
	Run(ctx context.Context, g aggregate.Grain, window types.TimeRange) (runs.Report, error)
	Location() *time.Location
	Status() runs.Status
}

// Lookbacks give the default window per grain when a request omits one.
type Lookbacks struct {
	Hourly time.Duration
	Daily  time.Duration
}

type RunHandler struct {
	runs      RunService
	lookbacks Lookbacks
	now       func() time.Time
}

func NewRunHandler(svc RunService, lookbacks Lookbacks) *RunHandler {
	return &RunHandler{runs: svc, lookbacks: lookbacks, now: time.Now}
}

type triggerRunReq struct {
	Grain string     `json:"grain"`
	From  *time.Time `json:"from"`
	To    *time.Time `json:"to"`
}

// Trigger runs the pipeline synchronously and returns its report.
func (h *RunHandler) Trigger(c *gin.Context) {
	var req triggerRunReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	g, err := aggregate.ParseGrain(req.Grain)
	if err != nil {
		writeRunError(c, err, nil)
		return
	}
	if (req.From == nil) != (req.To == nil) {
		writeError(c, http.StatusBadRequest, "from and to must be given together")
		return
	}

	var window types.TimeRange
	if req.From != nil {
		window = types.TimeRange{From: *req.From, To: *req.To}
	} else {
		lookback := h.lookbacks.Hourly
		if g == aggregate.Daily {
			lookback = h.lookbacks.Daily
		}
		window = g.Window(h.now(), lookback, h.runs.Location())
	}

	report, err := h.runs.Run(c.Request.Context(), g, window)
	if err != nil {
		writeRunError(c, err, &report)
		return
	}
	writeJSON(c, http.StatusOK, report)
}

// Last returns the latest report of ?grain= (default hourly).
func (h *RunHandler) Last(c *gin.Context) {
	g, err := aggregate.ParseGrain(c.DefaultQuery("grain", "hourly"))
	if err != nil {
		writeRunError(c, err, nil)
		return
	}
	report, err := h.runs.Status().Last(c.Request.Context(), g.String())
	if err != nil {
		writeRunError(c, err, nil)
		return
	}
	writeJSON(c, http.StatusOK, report)
}
