package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bitbucket.org/redfibra/fieldops_backend/utils"
)

const correlationHeader = "X-Correlation-Id"

// CorrelationMiddleware propagates (or mints) a correlation id per request
// so maintenance runs triggered over HTTP can be traced through the logs.
func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Request.Header.Get(correlationHeader)
		if id == "" {
			id = uuid.NewString()
		}
		ctx := utils.SetCorrelationIdInContext(c.Request.Context(), id)
		c.Request = c.Request.WithContext(ctx)
		c.Writer.Header().Set(correlationHeader, id)
		c.Next()
	}
}
