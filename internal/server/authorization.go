package server

import (
	"github.com/gin-gonic/gin"
)

// Actor is the signed-in staff member behind a request.
type Actor struct {
	ID   string
	Role string
}

func (s *Server) authorize(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.authorizeWithContext(c, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func (s *Server) authorizeWithContext(c *gin.Context, object string, action string) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return ErrUnauthorized
	}
	if s.authzSvc == nil {
		return ErrForbidden
	}
	return s.authzSvc.Authorize(c.Request.Context(), actor.ID, actor.Role, object, action)
}

func actorFromContext(c *gin.Context) (Actor, bool) {
	if c == nil {
		return Actor{}, false
	}
	userID := c.GetString(contextUserIDKey)
	if userID == "" {
		return Actor{}, false
	}
	return Actor{ID: userID, Role: c.GetString(contextRoleKey)}, true
}
