// README: HTTP router registration for the ops API.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"zonerev/internal/http/handlers"
	"zonerev/internal/http/middleware"
	"zonerev/internal/infra"
	"zonerev/internal/logger"
)

// OpsRole is the custom claim value allowed to trigger runs.
const OpsRole = "ops"

type RouterDeps struct {
	Runs      handlers.RunService
	Lookbacks handlers.Lookbacks
	Metrics   http.Handler
	// Verifier nil disables authentication.
	Verifier infra.TokenVerifier
	Logger   logger.Logger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = logger.Get()
	}
	r := gin.New()
	r.Use(middleware.Recovery(deps.Logger), middleware.Logging(deps.Logger))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	api := r.Group("/api", middleware.Auth(deps.Verifier), middleware.RequireRole(deps.Verifier, OpsRole))
	runHandler := handlers.NewRunHandler(deps.Runs, deps.Lookbacks)
	api.POST("/runs", runHandler.Trigger)
	api.GET("/runs/last", runHandler.Last)

	return r
}
