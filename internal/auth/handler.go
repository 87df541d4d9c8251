package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/party-queue/internal/room"
	"github.com/party-queue/pkg/jwt"
	"github.com/party-queue/pkg/models"
	"github.com/party-queue/pkg/redis"
)

// GuestCreator registers guest identities.
type GuestCreator interface {
	CreateGuest(ctx context.Context, displayName string) (*models.User, error)
}

type HandlerConfig struct {
	Guests       GuestCreator
	Tokens       *jwt.Manager
	Sessions     SessionStore
	CookieSecure bool
	Logger       *zap.Logger
}

type Handler struct {
	guests       GuestCreator
	tokens       *jwt.Manager
	sessions     SessionStore
	cookieSecure bool
	logger       *zap.Logger
}

func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		guests:       cfg.Guests,
		tokens:       cfg.Tokens,
		sessions:     cfg.Sessions,
		cookieSecure: cfg.CookieSecure,
		logger:       logger,
	}
}

// RegisterRoutes mounts the public guest route and, behind protect, the
// session routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, protect gin.HandlerFunc) {
	auth := r.Group("/auth")
	{
		auth.POST("/guest", h.createGuest)

		protected := auth.Group("", protect)
		protected.GET("/me", h.me)
		protected.POST("/logout", h.logout)
	}
}

type GuestRequest struct {
	DisplayName string `json:"display_name"`
}

type GuestResponse struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Token       string `json:"token"`
}

func (h *Handler) createGuest(c *gin.Context) {
	var req GuestRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	user, err := h.guests.CreateGuest(c.Request.Context(), req.DisplayName)
	if err != nil {
		message := "internal error"
		var serviceErr *room.ServiceError
		if errors.As(err, &serviceErr) {
			message = serviceErr.Message()
		}
		c.JSON(room.StatusCode(err), gin.H{"error": message})
		return
	}

	token, expiresAt, err := h.tokens.GenerateToken(user.ID.String())
	if err != nil {
		h.logger.Error("failed to generate token", zap.String("user_id", user.ID.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	if h.sessions != nil {
		session := &redis.Session{UserID: user.ID.String(), DisplayName: user.DisplayName, ExpiresAt: expiresAt}
		if err := h.sessions.StoreSession(c.Request.Context(), session); err != nil {
			h.logger.Error("failed to store session", zap.String("user_id", user.ID.String()), zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to store session"})
			return
		}
	}

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	c.JSON(http.StatusCreated, GuestResponse{
		UserID:      user.ID.String(),
		DisplayName: user.DisplayName,
		Token:       token,
	})
}

func (h *Handler) me(c *gin.Context) {
	userID := c.GetString(contextUserKey)
	response := gin.H{"user_id": userID}
	if h.sessions != nil {
		if session, err := h.sessions.GetSession(c.Request.Context(), userID); err == nil {
			response["display_name"] = session.DisplayName
			response["expires_at"] = session.ExpiresAt
		}
	}
	c.JSON(http.StatusOK, response)
}

func (h *Handler) logout(c *gin.Context) {
	userID := c.GetString(contextUserKey)
	if h.sessions != nil {
		if err := h.sessions.DeleteSession(c.Request.Context(), userID); err != nil {
			h.logger.Error("failed to delete session", zap.String("user_id", userID), zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to delete session"})
			return
		}
	}

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}
