package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/listenme/listenme/internal/auth"
	appErrors "github.com/listenme/listenme/pkg/errors"
	"github.com/listenme/listenme/pkg/response"
)

const (
	CtxClaimsKey  = "authClaims"
	CtxUserIDKey  = "userID"
	CtxEmailKey   = "userEmail"
	CtxIsAdminKey = "isAdmin"
)

// Auth enforces JWT authentication using the supplied JWT service. Expired
// tokens get a distinct message so clients know to log in again rather than
// treat the token as corrupt.
func Auth(jwt *iauth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		token := strings.TrimSpace(authz[7:])
		claims, err := jwt.Verify(token)
		if err != nil {
			c.Header("WWW-Authenticate", "Bearer")
			if errors.Is(err, iauth.ErrTokenExpired) {
				response.Error(c, appErrors.ErrTokenExpired)
			} else {
				response.Error(c, appErrors.ErrTokenInvalid)
			}
			c.Abort()
			return
		}

		// Propagate identity into request context
		c.Set(CtxClaimsKey, claims)
		c.Set(CtxUserIDKey, claims.UserID)
		c.Set(CtxEmailKey, claims.Email)
		c.Set(CtxIsAdminKey, claims.IsAdmin)

		c.Next()
	}
}

// RequireAdmin rejects requests whose token lacks the admin flag. It must run
// after Auth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool(CtxIsAdminKey) {
			response.Error(c, appErrors.ErrAdminRequired)
			c.Abort()
			return
		}
		c.Next()
	}
}

// UserID extracts the authenticated user id placed by Auth.
func UserID(c *gin.Context) string {
	return c.GetString(CtxUserIDKey)
}
