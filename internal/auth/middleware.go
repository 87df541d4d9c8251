package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/party-queue/pkg/jwt"
	"github.com/party-queue/pkg/redis"
)

const (
	CookieName     = "uid_token"
	UserIDHeader   = "X-User-ID"
	contextUserKey = "user_id"
)

// SessionStore keeps the server-side record of issued tokens.
type SessionStore interface {
	StoreSession(ctx context.Context, session *redis.Session) error
	GetSession(ctx context.Context, userID string) (*redis.Session, error)
	DeleteSession(ctx context.Context, userID string) error
}

type MiddlewareConfig struct {
	Tokens   *jwt.Manager
	Sessions SessionStore
	// AllowHeaderIdentity accepts a bare X-User-ID header. Development only.
	AllowHeaderIdentity bool
	Logger              *zap.Logger
}

// AuthMiddleware resolves the caller's guest identity and stores it under
// "user_id" in the gin context.
func AuthMiddleware(cfg MiddlewareConfig) gin.HandlerFunc {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		var tokenUser string
		if token := bearerToken(c); token != "" {
			claims, err := cfg.Tokens.ValidateToken(token)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
				return
			}
			if cfg.Sessions != nil {
				if _, err := cfg.Sessions.GetSession(c.Request.Context(), claims.UserID); err != nil {
					if errors.Is(err, redis.ErrSessionNotFound) {
						c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
						return
					}
					logger.Error("failed to load session", zap.String("user_id", claims.UserID), zap.Error(err))
					c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "session store unavailable"})
					return
				}
			}
			tokenUser = claims.UserID
		}

		var headerUser string
		if cfg.AllowHeaderIdentity {
			headerUser = strings.TrimSpace(c.GetHeader(UserIDHeader))
		}

		if tokenUser != "" && headerUser != "" && !strings.EqualFold(tokenUser, headerUser) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "conflicting identities: token and X-User-ID differ"})
			return
		}

		raw := headerUser
		if raw == "" {
			raw = tokenUser
		}
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
			return
		}
		userID, err := uuid.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
			return
		}

		c.Set(contextUserKey, userID.String())
		c.Next()
	}
}

// bearerToken reads the token from the cookie, the Authorization header or
// the token query parameter (used by websocket clients), in that order.
func bearerToken(c *gin.Context) string {
	if cookie, err := c.Cookie(CookieName); err == nil && cookie != "" {
		return cookie
	}
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return c.Query("token")
}
