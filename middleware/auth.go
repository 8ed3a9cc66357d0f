package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	userRepo "handyhub/database/repository/user"
	"handyhub/services/booking"
	"handyhub/utils"

	"github.com/gin-gonic/gin"
)

const actorContextKey = "actor"

// cachedActor fetches a previously resolved actor for this exact token from
// the auth cache. Returns false when the cache is not configured or misses.
func cachedActor(ctx context.Context, key string) (booking.Actor, bool) {
	if utils.AuthCacheClient == nil {
		return booking.Actor{}, false
	}
	raw, err := utils.AuthCacheClient.Get(ctx, key).Result()
	if err != nil {
		return booking.Actor{}, false
	}
	var actor booking.Actor
	if err := json.Unmarshal([]byte(raw), &actor); err != nil {
		return booking.Actor{}, false
	}
	return actor, true
}

func cacheActor(ctx context.Context, key string, actor booking.Actor) {
	if utils.AuthCacheClient == nil {
		return
	}
	if raw, err := json.Marshal(actor); err == nil {
		utils.AuthCacheClient.Set(ctx, key, raw, utils.AuthCacheTTL)
	}
}

// JWTAuthMiddleware validates the bearer token, loads the acting account and
// places it on the request context as a booking.Actor. Resolved actors are
// cached per token hash so repeated requests skip the account lookup.
func JWTAuthMiddleware(users userRepo.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Insufficient authorization"})
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		id, role, _, err := utils.ExtractClaimsFromToken(tokenString)
		if err != nil || id == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Insufficient authorization"})
			return
		}

		cacheKey := utils.AuthCachePrefix + utils.HashToken(tokenString)
		if actor, ok := cachedActor(c.Request.Context(), cacheKey); ok {
			c.Set(actorContextKey, actor)
			c.Next()
			return
		}

		u, err := users.GetByID(id)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Account lookup failed"})
			return
		}
		if u == nil || (role != "" && u.Role != role) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Insufficient authorization"})
			return
		}

		actor := booking.Actor{
			ID:    u.ID,
			Role:  u.Role,
			Email: u.Email,
			Name:  u.Name,
		}
		cacheActor(c.Request.Context(), cacheKey, actor)
		c.Set(actorContextKey, actor)
		c.Next()
	}
}

// ActorFrom returns the authenticated actor placed by JWTAuthMiddleware.
func ActorFrom(c *gin.Context) (booking.Actor, bool) {
	v, ok := c.Get(actorContextKey)
	if !ok {
		return booking.Actor{}, false
	}
	actor, ok := v.(booking.Actor)
	return actor, ok
}

// RequireRole gates a route group to one role.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Insufficient authorization"})
			return
		}
		if actor.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "This action requires the " + role + " role"})
			return
		}
		c.Next()
	}
}
