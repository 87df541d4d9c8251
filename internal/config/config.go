package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/party-queue/pkg/database"
	"github.com/party-queue/pkg/events"
)

const (
	envPrefix          = "PARTYQ"
	defaultHTTPAddress = "0.0.0.0:8080"
	defaultDriver      = database.DriverSQLite
	defaultDSN         = "partyq.db"
	defaultLogLevel    = "info"
	defaultSessionTTL  = 24 * time.Hour
	defaultEnv         = "development"
	productionEnv      = "production"
)

// AppConfig captures runtime configuration for the API server and CLI.
type AppConfig struct {
	Env         string
	HTTPAddress string
	LogLevel    string

	DatabaseDriver string
	DatabaseDSN    string

	RedisAddress  string
	RedisPassword string

	KafkaBrokers []string
	KafkaTopic   string

	SigningSecret       string
	SessionTTL          time.Duration
	AllowHeaderIdentity bool
	CookieSecure        bool

	AllowedOrigins []string

	SpotifyClientID     string
	SpotifyClientSecret string
}

// LoadDotEnv reads a .env file into the process environment if one exists.
func LoadDotEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil {
		return fmt.Errorf("no .env file loaded: %w", err)
	}
	return nil
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("env", defaultEnv)
	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("database.driver", defaultDriver)
	configViper.SetDefault("database.dsn", defaultDSN)
	configViper.SetDefault("redis.address", "")
	configViper.SetDefault("redis.password", "")
	configViper.SetDefault("kafka.brokers", "")
	configViper.SetDefault("kafka.topic", events.DefaultTopic)
	configViper.SetDefault("auth.signing_secret", "")
	configViper.SetDefault("auth.session_ttl", defaultSessionTTL)
	configViper.SetDefault("auth.allow_header_identity", false)
	configViper.SetDefault("auth.cookie_secure", false)
	configViper.SetDefault("cors.allowed_origins", "http://localhost:5173")
	configViper.SetDefault("spotify.client_id", "")
	configViper.SetDefault("spotify.client_secret", "")
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		Env:                 strings.ToLower(strings.TrimSpace(configViper.GetString("env"))),
		HTTPAddress:         configViper.GetString("http.address"),
		LogLevel:            configViper.GetString("log.level"),
		DatabaseDriver:      strings.ToLower(strings.TrimSpace(configViper.GetString("database.driver"))),
		DatabaseDSN:         configViper.GetString("database.dsn"),
		RedisAddress:        configViper.GetString("redis.address"),
		RedisPassword:       configViper.GetString("redis.password"),
		KafkaBrokers:        splitList(configViper.GetString("kafka.brokers")),
		KafkaTopic:          configViper.GetString("kafka.topic"),
		SigningSecret:       configViper.GetString("auth.signing_secret"),
		SessionTTL:          configViper.GetDuration("auth.session_ttl"),
		AllowHeaderIdentity: configViper.GetBool("auth.allow_header_identity"),
		CookieSecure:        configViper.GetBool("auth.cookie_secure"),
		AllowedOrigins:      splitList(configViper.GetString("cors.allowed_origins")),
		SpotifyClientID:     configViper.GetString("spotify.client_id"),
		SpotifyClientSecret: configViper.GetString("spotify.client_secret"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

// IsProduction reports whether the service runs with production settings.
func (c AppConfig) IsProduction() bool {
	return c.Env == productionEnv
}

func (c AppConfig) validate() error {
	switch c.DatabaseDriver {
	case database.DriverSQLite, database.DriverPostgres, database.DriverMySQL:
	default:
		return fmt.Errorf("database.driver must be one of sqlite, postgres, mysql; got %q", c.DatabaseDriver)
	}
	if strings.TrimSpace(c.DatabaseDSN) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("auth.session_ttl must be positive")
	}
	if c.IsProduction() && c.AllowHeaderIdentity {
		return fmt.Errorf("auth.allow_header_identity must be off in production")
	}
	return nil
}

// ValidateServe checks the settings only the HTTP server needs.
func (c AppConfig) ValidateServe() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	return nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
