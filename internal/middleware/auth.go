package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/ward-api/pkg/auth"
	apperrors "github.com/jwalitptl/ward-api/pkg/errors"
	"github.com/jwalitptl/ward-api/pkg/httputil"
)

const (
	ContextSubject = "subject"
	ContextRole    = "role"
)

type AuthMiddleware struct {
	jwt auth.JWTService
}

func NewAuthMiddleware(jwt auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt}
}

// Authenticate verifies the bearer token and sets the caller in context
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			unauthorized(c, errors.New("missing authorization header"))
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			unauthorized(c, errors.New("invalid authorization format"))
			return
		}

		claims, err := m.jwt.ValidateToken(parts[1])
		if err != nil {
			unauthorized(c, err)
			return
		}

		c.Set(ContextSubject, claims.Subject)
		c.Set(ContextRole, claims.Role)
		c.Next()
	}
}

// RequireRole lets only callers whose token carries one of roles through.
func (m *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(ContextRole)
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		httputil.RespondWithError(c, &apperrors.AppError{
			Code:    apperrors.ErrForbidden,
			Message: "permission denied",
		})
		c.Abort()
	}
}

func unauthorized(c *gin.Context, err error) {
	httputil.RespondWithError(c, apperrors.Unauthorized(err))
	c.Abort()
}
