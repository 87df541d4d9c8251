package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/party-queue/internal/config"
	"github.com/party-queue/internal/logging"
	"github.com/party-queue/pkg/database"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "partyq",
		Short: "Party mode music queue",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		SilenceUsage: true,
	}

	setupFlags(rootCmd)
	rootCmd.AddCommand(newServeCommand(), newMigrateCommand(), newSeedCommand(), newEventsCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-driver", defaults.GetString("database.driver"), "Database driver (sqlite, postgres, mysql)")
	cmd.PersistentFlags().String("database-dsn", defaults.GetString("database.dsn"), "Database DSN or SQLite path")
	cmd.PersistentFlags().String("redis-address", defaults.GetString("redis.address"), "Redis address for sessions and realtime fan-out")
	cmd.PersistentFlags().String("kafka-brokers", defaults.GetString("kafka.brokers"), "Comma separated Kafka brokers for room events")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Session token signing secret (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.driver", "database-driver")
	bindFlag(cmd, "database.dsn", "database-dsn")
	bindFlag(cmd, "redis.address", "redis-address")
	bindFlag(cmd, "kafka.brokers", "kafka-brokers")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	// A missing .env is normal outside local development.
	_ = config.LoadDotEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

// bootstrap loads configuration, builds the logger and opens the database.
// The returned cleanup closes the pool and flushes the logger.
func bootstrap() (config.AppConfig, *zap.Logger, *gorm.DB, func(), error) {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return config.AppConfig{}, nil, nil, nil, err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel, !appConfig.IsProduction())
	if err != nil {
		return config.AppConfig{}, nil, nil, nil, err
	}

	db, err := database.Open(appConfig.DatabaseDriver, appConfig.DatabaseDSN, logger)
	if err != nil {
		logger.Sync() //nolint:errcheck
		return config.AppConfig{}, nil, nil, nil, err
	}

	cleanup := func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
		logger.Sync() //nolint:errcheck
	}
	return appConfig, logger, db, cleanup, nil
}
