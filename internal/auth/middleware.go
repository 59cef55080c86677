package auth

import (
	"strings"

	"github.com/gin-gonic/gin"

	ierr "sop-portal/portal-backend/internal/errors"
)

const (
	ContextKeyRole    = "auth_role"
	ContextKeySubject = "auth_subject"

	// HeaderRole carries the role when token auth is disabled.
	HeaderRole = "X-User-Role"
)

// Middleware puts the caller's role on the context. With tokens enabled the role comes
// from the bearer token (or the access_token query parameter); otherwise it is read
// from the X-User-Role header.
func Middleware(s *Service, tokensEnabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !tokensEnabled {
			c.Set(ContextKeyRole, strings.TrimSpace(c.GetHeader(HeaderRole)))
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found {
			// browsers cannot set headers on a websocket handshake
			token, found = c.GetQuery("access_token")
		}
		if !found || strings.TrimSpace(token) == "" {
			c.Error(ierr.NewError("missing bearer token").
				WithHint("Authorization required").
				Mark(ierr.ErrPermissionDenied))
			c.Abort()
			return
		}

		claims, err := s.ValidateToken(strings.TrimSpace(token))
		if err != nil {
			c.Error(err)
			c.Abort()
			return
		}

		c.Set(ContextKeyRole, claims.Role)
		c.Set(ContextKeySubject, claims.Subject)
		c.Next()
	}
}

// RoleFromContext returns the raw role string set by Middleware.
func RoleFromContext(c *gin.Context) (string, bool) {
	role := c.GetString(ContextKeyRole)
	return role, role != ""
}
