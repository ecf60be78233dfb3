package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vblendo1/koisando-green-alien/internal/apperr"
	"github.com/vblendo1/koisando-green-alien/internal/models"
	"github.com/vblendo1/koisando-green-alien/internal/security"
)

const actorKey = "actor"

// RoleResolver loads the role rows of a user.
type RoleResolver interface {
	Roles(ctx context.Context, userID string) ([]models.Role, error)
}

// Auth verifies the bearer token and stores the caller as a models.Actor.
func Auth(secret string, roles RoleResolver, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_token", "message": "bearer token required"})
			return
		}

		claims, err := security.ParseAccessToken(strings.TrimPrefix(authHeader, "Bearer "), secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "message": "token is invalid or expired"})
			return
		}

		rows, err := roles.Roles(c.Request.Context(), claims.UserID)
		if err != nil {
			log.Error().Err(err).Str("user_id", claims.UserID).Msg("resolve roles failed")
			status := http.StatusInternalServerError
			if apperr.IsRetryable(err) {
				status = http.StatusServiceUnavailable
			}
			c.AbortWithStatusJSON(status, gin.H{"error": "role_lookup_failed", "message": "could not resolve user role"})
			return
		}

		c.Set(actorKey, models.Actor{UserID: claims.UserID, Role: models.RoleFor(rows)})
		c.Next()
	}
}

// ActorFrom returns the caller stored by Auth.
func ActorFrom(c *gin.Context) (models.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return models.Actor{}, false
	}
	actor, ok := v.(models.Actor)
	return actor, ok
}
