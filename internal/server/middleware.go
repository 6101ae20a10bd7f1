package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/casebridge/internal/actor"
	userdomain "github.com/smallbiznis/casebridge/internal/user/domain"
)

const (
	headerUserID   = "X-User-ID"
	contextUserKey = "current_user"
)

// ExternalPushAuth authenticates the upstream system of record with a shared
// bearer token and stamps the external-system actor on the request context.
// Without a configured token every push is rejected.
func (s *Server) ExternalPushAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
		if s.cfg.ExternalPushToken == "" || token != s.cfg.ExternalPushToken {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := actor.WithActor(c.Request.Context(), actor.ExternalSystem())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// UserContext resolves the portal user from the X-User-ID header and stamps
// the human actor on the request context.
func (s *Server) UserContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(headerUserID))
		if raw == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		userID, err := snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		user, err := s.userSvc.GetByID(c.Request.Context(), userID)
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := actor.WithActor(c.Request.Context(), actor.Human(user.ID))
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextUserKey, user)
		c.Next()
	}
}

// RequireSuperAdmin gates destructive operations on the superadmin role.
func (s *Server) RequireSuperAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if user.Role != userdomain.RoleSuperAdmin {
			AbortWithError(c, ErrForbidden)
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) (userdomain.User, bool) {
	value, exists := c.Get(contextUserKey)
	if !exists {
		return userdomain.User{}, false
	}
	user, ok := value.(userdomain.User)
	return user, ok
}
