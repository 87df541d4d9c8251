package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/party-queue/internal/catalog"
	"github.com/party-queue/internal/config"
	"github.com/party-queue/internal/logging"
	"github.com/party-queue/internal/spotify"
	"github.com/party-queue/pkg/database"
	"github.com/party-queue/pkg/events"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, db, cleanup, err := bootstrap()
			if err != nil {
				return err
			}
			defer cleanup()
			return database.Migrate(db, logger)
		},
	}
}

func newSeedCommand() *cobra.Command {
	var (
		spotifyQuery string
		limit        int
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the sample catalog, optionally importing tracks from Spotify",
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig, logger, db, cleanup, err := bootstrap()
			if err != nil {
				return err
			}
			defer cleanup()

			if err := database.Migrate(db, logger); err != nil {
				return err
			}

			catalogService, err := catalog.NewService(db, logger)
			if err != nil {
				return err
			}
			added, err := catalogService.Seed(cmd.Context())
			if err != nil {
				return err
			}
			logger.Info("catalog seeded", zap.Int("added", added))

			if spotifyQuery == "" {
				return nil
			}

			client, err := spotify.NewClient(spotify.Config{
				ClientID:     appConfig.SpotifyClientID,
				ClientSecret: appConfig.SpotifyClientSecret,
			})
			if err != nil {
				return err
			}
			imported, err := catalog.NewImporter(catalogService, client).Import(cmd.Context(), spotifyQuery, limit)
			if err != nil {
				return err
			}
			logger.Info("spotify tracks imported", zap.String("query", spotifyQuery), zap.Int("tracks", len(imported)))
			return nil
		},
	}

	cmd.Flags().StringVar(&spotifyQuery, "spotify-query", "", "Import tracks matching this Spotify search")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum tracks to import from Spotify")
	return cmd
}

// newEventsCommand tails the room event topic, one log line per event.
func newEventsCommand() *cobra.Command {
	var groupID string

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Tail room events from Kafka",
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}
			if len(appConfig.KafkaBrokers) == 0 {
				return fmt.Errorf("kafka.brokers is required")
			}

			logger, err := logging.NewLogger(appConfig.LogLevel, !appConfig.IsProduction())
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			client := events.NewKafkaClient(appConfig.KafkaBrokers, appConfig.KafkaTopic, groupID)
			defer client.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			err = client.ConsumeEvents(ctx, func(event events.Event) error {
				logger.Info("room event",
					zap.String("type", string(event.Type)),
					zap.String("room_code", event.RoomCode),
					zap.String("user_id", event.UserID),
					zap.Time("timestamp", event.Timestamp),
					zap.ByteString("payload", event.Payload),
				)
				return nil
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&groupID, "group-id", "partyq-events-tail", "Kafka consumer group")
	return cmd
}
