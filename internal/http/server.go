// README: HTTP server wrapper with timeouts sized for synchronous pipeline runs.
package http

import (
	"net/http"
	"time"
)

func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		// POST /api/runs blocks until the run finishes
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}
}
