// Package middleware holds the gin middleware shared by every route group.
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/reignacare/service-booking/internal/platform/auth"
	"github.com/reignacare/service-booking/internal/platform/response"
)

const (
	contextKeyUserID   = "user_id"
	contextKeyUserRole = "user_role"
)

// AuthMiddleware verifies the bearer token and stores the actor in the context.
func AuthMiddleware(jwtManager *auth.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			response.Unauthorized(c, "missing bearer token")
			return
		}
		authenticate(c, jwtManager, token)
	}
}

// QueryTokenAuthMiddleware verifies a token passed as ?token=, for clients that
// cannot set headers (browser websockets).
func QueryTokenAuthMiddleware(jwtManager *auth.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			response.Unauthorized(c, "missing token")
			return
		}
		authenticate(c, jwtManager, token)
	}
}

func authenticate(c *gin.Context, jwtManager *auth.JWTManager, token string) {
	actor, err := jwtManager.Verify(token)
	if err != nil {
		response.Unauthorized(c, "invalid or expired token")
		return
	}
	c.Set(contextKeyUserID, actor.ID)
	c.Set(contextKeyUserRole, actor.Role)
	c.Next()
}

// RequireRole aborts with 403 unless the actor holds one of the roles.
func RequireRole(roles ...auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := GetUserRole(c)
		if !ok {
			response.Unauthorized(c, "unauthorized")
			return
		}
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		response.Forbidden(c, "insufficient role")
	}
}

// GetUserID returns the authenticated user id.
func GetUserID(c *gin.Context) (uint64, bool) {
	v, ok := c.Get(contextKeyUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok
}

// GetUserRole returns the authenticated user role.
func GetUserRole(c *gin.Context) (auth.Role, bool) {
	v, ok := c.Get(contextKeyUserRole)
	if !ok {
		return "", false
	}
	role, ok := v.(auth.Role)
	return role, ok
}

// GetActor returns the authenticated actor.
func GetActor(c *gin.Context) (auth.Actor, bool) {
	id, ok := GetUserID(c)
	if !ok {
		return auth.Actor{}, false
	}
	role, ok := GetUserRole(c)
	if !ok {
		return auth.Actor{}, false
	}
	return auth.Actor{ID: id, Role: role}, true
}
