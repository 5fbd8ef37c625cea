package middlewares

import (
	"crypto/subtle"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"bitbucket.org/redfibra/fieldops_backend/utils"
)

// AuthMiddleware gates the API on a static bearer token (ADMIN_API_TOKEN).
// Role/session handling lives in the identity gateway in front of this
// service; the X-Role header it forwards is carried into the request
// context for logging.
func AuthMiddleware() gin.HandlerFunc {
	expected := strings.TrimSpace(os.Getenv("ADMIN_API_TOKEN"))
	return func(c *gin.Context) {
		if expected == "" {
			c.Next()
			return
		}

		auth := c.Request.Header.Get("Authorization")
		const bearer = "Bearer "
		if !strings.HasPrefix(auth, bearer) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		token := auth[len(bearer):]
		if subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), token)
		if role := c.Request.Header.Get("X-Role"); role != "" {
			ctx = utils.SetRoleInContext(ctx, role)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
