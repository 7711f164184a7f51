package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	auditcontext "github.com/smallbiznis/tka-invoice/internal/auditcontext"
	obsmiddleware "github.com/smallbiznis/tka-invoice/internal/observability/logger"
	obstracing "github.com/smallbiznis/tka-invoice/internal/observability/tracing"
)

const contextActorRoleKey = obstracing.ActorRoleKey

// RequireActorRole rejects requests the gateway did not tag with a role.
func (s *Server) RequireActorRole() gin.HandlerFunc {
	return func(c *gin.Context) {
		role := actorRole(c)
		if role == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Set(contextActorRoleKey, role)
		c.Next()
	}
}

func (s *Server) authorize(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.authzSvc == nil {
			AbortWithError(c, ErrForbidden)
			return
		}
		role := c.GetString(contextActorRoleKey)
		if role == "" {
			role = actorRole(c)
		}
		if err := s.authzSvc.Authorize(c.Request.Context(), role, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func actorRole(c *gin.Context) string {
	if role := auditcontext.ActorRole(c.Request.Context()); role != "" {
		return role
	}
	return strings.ToLower(strings.TrimSpace(c.GetHeader(obsmiddleware.ActorRoleHeader)))
}
