package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"etaservice/internal/utils"
	"etaservice/pkg/logger"
)

// AdminRequired validates the bearer token against secret and requires the
// admin role. Without a configured secret every admin request is refused.
func AdminRequired(secret string, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.UnauthorizedResponse(c)
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			utils.ErrorResponse(c, http.StatusUnauthorized, "UNAUTHORIZED", "bearer token required")
			c.Abort()
			return
		}

		claims, err := utils.ValidateToken(tokenString, secret)
		if err != nil {
			message := utils.ErrInvalidToken
			if errors.Is(err, jwt.ErrTokenExpired) {
				message = utils.ErrTokenExpired
			}
			log.LogSecurityEvent("invalid_admin_token", "medium", map[string]interface{}{
				"path":       c.Request.URL.Path,
				"client_ip":  c.ClientIP(),
				"request_id": c.GetString(utils.ContextKeyRequest),
				"error":      err.Error(),
			})
			utils.ErrorResponse(c, http.StatusUnauthorized, "UNAUTHORIZED", message)
			c.Abort()
			return
		}

		if claims.Role != utils.AdminRole {
			log.LogSecurityEvent("admin_access_denied", "low", map[string]interface{}{
				"path":    c.Request.URL.Path,
				"subject": claims.Subject,
				"role":    claims.Role,
			})
			utils.ForbiddenResponse(c)
			c.Abort()
			return
		}

		c.Set(utils.ContextKeySubject, claims.Subject)
		c.Set(utils.ContextKeyUserRole, claims.Role)
		c.Next()
	}
}
