package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/party-queue/internal/auth"
	"github.com/party-queue/internal/catalog"
	"github.com/party-queue/internal/room"
	"github.com/party-queue/internal/ws"
	"github.com/party-queue/pkg/jwt"
)

var (
	errMissingRoomService = errors.New("room service dependency required")
	errMissingCatalog     = errors.New("catalog dependency required")
	errMissingTokens      = errors.New("token manager dependency required")
)

type Dependencies struct {
	RoomService *room.Service
	Catalog     *catalog.Service
	Tokens      *jwt.Manager
	// Sessions and Listener are optional; without a Listener the
	// websocket route is not mounted.
	Sessions auth.SessionStore
	Listener ws.Listener

	AllowedOrigins      []string
	AllowHeaderIdentity bool
	CookieSecure        bool
	Logger              *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.RoomService == nil {
		return nil, errMissingRoomService
	}
	if deps.Catalog == nil {
		return nil, errMissingCatalog
	}
	if deps.Tokens == nil {
		return nil, errMissingTokens
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
	router.Use(corsMiddleware(deps.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	protect := auth.AuthMiddleware(auth.MiddlewareConfig{
		Tokens:              deps.Tokens,
		Sessions:            deps.Sessions,
		AllowHeaderIdentity: deps.AllowHeaderIdentity,
		Logger:              logger,
	})

	v1 := router.Group("/api/v1")

	// Public routes
	auth.NewHandler(auth.HandlerConfig{
		Guests:       deps.RoomService,
		Tokens:       deps.Tokens,
		Sessions:     deps.Sessions,
		CookieSecure: deps.CookieSecure,
		Logger:       logger,
	}).RegisterRoutes(v1, protect)
	catalog.NewHandler(deps.Catalog).RegisterRoutes(v1)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(protect)
	{
		room.NewHandler(deps.RoomService).RegisterRoutes(protected)

		if deps.Listener != nil {
			ws.NewHandler(deps.RoomService, deps.Listener, deps.AllowedOrigins, logger).RegisterRoutes(protected)
		}
	}

	return router, nil
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", auth.UserIDHeader},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) == 0 {
		cfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		cfg.AllowOrigins = allowedOrigins
	}
	return cors.New(cfg)
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if userID := c.GetString("user_id"); userID != "" {
			fields = append(fields, zap.String("user_id", userID))
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Warn("request failed", fields...)
			return
		}
		logger.Debug("request handled", fields...)
	}
}
