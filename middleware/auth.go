package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"tutorlink/utils"
)

const actorIDKey = "actorID"

// ActorAuthMiddleware verifies the bearer token and stores the caller's
// verified identity in the request context. The engine trusts this identity;
// no further credential checks happen downstream.
func ActorAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "insufficient authorization"})
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		actorID, err := utils.ExtractActorIDFromToken(tokenString)
		if err != nil || actorID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "insufficient authorization"})
			return
		}

		c.Set(actorIDKey, actorID)
		c.Next()
	}
}

// ActorID returns the verified caller identity set by ActorAuthMiddleware.
func ActorID(c *gin.Context) string {
	v, ok := c.Get(actorIDKey)
	if !ok {
		return ""
	}
	id, _ := v.(string)
	return id
}
