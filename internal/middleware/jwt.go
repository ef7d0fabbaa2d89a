package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/creators-notebook/backend/internal/auth"
	"github.com/creators-notebook/backend/pkg/response"
)

const (
	// ContextUserNo is the key for the numeric user handle in gin context.
	ContextUserNo = "user_no"
	// ContextUserEmail is the key for user email in gin context.
	ContextUserEmail = "user_email"
)

// JWT returns a middleware that validates JWT and sets user claims in context.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextUserNo, claims.UserNo)
		c.Set(ContextUserEmail, claims.Email)
		c.Next()
	}
}

// JWTOptional sets user claims when a valid token is present but lets
// anonymous requests through. Used on routes that serve public projects.
func JWTOptional(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.Next()
			return
		}
		if claims, err := jwtService.Validate(parts[1]); err == nil {
			c.Set(ContextUserNo, claims.UserNo)
			c.Set(ContextUserEmail, claims.Email)
		}
		c.Next()
	}
}

// UserNo returns the authenticated user's numeric handle from context.
// The second return is false for anonymous requests.
func UserNo(c *gin.Context) (int64, bool) {
	v, ok := c.Get(ContextUserNo)
	if !ok {
		return 0, false
	}
	no, ok := v.(int64)
	return no, ok
}
