package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/party-queue/internal/auth"
	"github.com/party-queue/internal/catalog"
	"github.com/party-queue/internal/room"
	"github.com/party-queue/internal/server"
	"github.com/party-queue/internal/ws"
	"github.com/party-queue/pkg/database"
	"github.com/party-queue/pkg/events"
	"github.com/party-queue/pkg/jwt"
	"github.com/party-queue/pkg/redis"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

func runServer(ctx context.Context) error {
	appConfig, logger, db, cleanup, err := bootstrap()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := appConfig.ValidateServe(); err != nil {
		return err
	}
	if appConfig.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := database.Migrate(db, logger); err != nil {
		return err
	}

	// Interfaces stay nil unless the backing service is configured.
	var (
		sessions    auth.SessionStore
		listener    ws.Listener
		broadcaster room.Broadcaster
	)
	if appConfig.RedisAddress != "" {
		redisClient, err := redis.Connect(ctx, appConfig.RedisAddress, appConfig.RedisPassword)
		if err != nil {
			return err
		}
		defer redisClient.Close()

		pubsub := redis.NewBroadcaster(redisClient)
		sessions = redis.NewSessionStore(redisClient)
		listener = pubsub
		broadcaster = pubsub
		logger.Info("redis connected", zap.String("address", appConfig.RedisAddress))
	} else {
		logger.Warn("redis not configured; sessions and realtime updates disabled")
	}

	var publisher events.Publisher = events.NopPublisher{}
	if len(appConfig.KafkaBrokers) > 0 {
		kafkaClient := events.NewKafkaClient(appConfig.KafkaBrokers, appConfig.KafkaTopic, "")
		defer kafkaClient.Close()
		publisher = kafkaClient
		logger.Info("publishing room events", zap.Strings("brokers", appConfig.KafkaBrokers), zap.String("topic", appConfig.KafkaTopic))
	}

	roomService, err := room.NewService(room.ServiceConfig{
		Database:    db,
		Clock:       time.Now,
		Publisher:   publisher,
		Broadcaster: broadcaster,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	catalogService, err := catalog.NewService(db, logger)
	if err != nil {
		return err
	}

	tokenManager := jwt.NewManager(jwt.Config{
		SigningSecret: []byte(appConfig.SigningSecret),
		TTL:           appConfig.SessionTTL,
	})

	handler, err := server.NewHTTPHandler(server.Dependencies{
		RoomService:         roomService,
		Catalog:             catalogService,
		Tokens:              tokenManager,
		Sessions:            sessions,
		Listener:            listener,
		AllowedOrigins:      appConfig.AllowedOrigins,
		AllowHeaderIdentity: appConfig.AllowHeaderIdentity,
		CookieSecure:        appConfig.CookieSecure,
		Logger:              logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("server shutting down")
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
