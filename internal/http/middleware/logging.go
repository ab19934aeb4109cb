// README: Request logging through the structured logger.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"zonerev/internal/logger"
)

func Logging(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info(c.Request.Context(), "http request",
			logger.String("method", c.Request.Method),
			logger.String("path", c.FullPath()),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("elapsed", time.Since(start)),
			logger.String("uid", CallerUID(c)),
		)
	}
}
