package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/team-taskboard/internal/constants"
	apierrors "github.com/yukikurage/team-taskboard/internal/errors"
	"github.com/yukikurage/team-taskboard/internal/models"
)

// SessionVerifier resolves a raw session token to an actor.
type SessionVerifier interface {
	Authenticate(raw string) (models.Actor, error)
}

// RequireAuth checks the session cookie and attaches the actor to the context
func RequireAuth(verifier SessionVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(constants.SessionCookieName)
		if err != nil || raw == "" {
			apierrors.Unauthorized(c, "")
			return
		}

		actor, err := verifier.Authenticate(raw)
		if err != nil {
			apierrors.InvalidSession(c, "")
			return
		}

		// Store identity in context for easy access in handlers
		c.Set(constants.ContextKeyUserID, actor.UserID)
		c.Set(constants.ContextKeyRole, actor.Role)
		c.Next()
	}
}

// GetUserID retrieves the current user ID from context
func GetUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get(constants.ContextKeyUserID)
	if !exists {
		return "", false
	}

	id, ok := userID.(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// GetActor retrieves the authenticated identity from context
func GetActor(c *gin.Context) (models.Actor, bool) {
	userID, ok := GetUserID(c)
	if !ok {
		return models.Actor{}, false
	}

	role, _ := c.Get(constants.ContextKeyRole)
	switch v := role.(type) {
	case models.Role:
		return models.Actor{UserID: userID, Role: v}, true
	case string:
		return models.Actor{UserID: userID, Role: models.Role(v)}, true
	default:
		return models.Actor{UserID: userID, Role: models.RoleUser}, true
	}
}
