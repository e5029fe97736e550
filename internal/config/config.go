package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	LocalStore LocalStoreConfig
	Sync       SyncConfig
	Auth       AuthConfig
	Logging    LoggingConfig
	Server     ServerConfig
	CORS       CORSConfig
	RateLimit  RateLimitConfig
}

type AppConfig struct {
	Name        string
	Environment string
	Port        int
	// OrganizationID is the tenant this process serves. Empty means the
	// engine runs against the fixed local demo dataset.
	OrganizationID string
}

// DatabaseConfig is the central row store connection. Enabled=false means
// no remote connection is configured: every mutation queues locally.
type DatabaseConfig struct {
	Enabled         bool
	Host            string
	Port            int
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
}

// LocalStoreConfig is the durable local queue location
type LocalStoreConfig struct {
	// Path of the SQLite file holding queued mutations; ":memory:" keeps
	// the queue ephemeral
	Path string
}

// SyncConfig tunes the drain behavior
type SyncConfig struct {
	// DrainCron is the background drain schedule (robfig/cron syntax)
	DrainCron string
	// NotificationCap bounds the in-memory notification list
	NotificationCap int
	// StartOffline starts the engine with the connectivity flag down
	StartOffline bool
}

type AuthConfig struct {
	// JWTSecret verifies the HMAC-signed bearer tokens issued by the
	// external identity provider
	JWTSecret string
}

type LoggingConfig struct {
	Level  string
	Format string
}

type ServerConfig struct {
	ReadTimeout    int
	WriteTimeout   int
	RequestTimeout int
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// RateLimitConfig holds request rate limiting configuration
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
}

// ConnectionString builds the postgres DSN for the central store
func (d *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// ConnMaxLifetimeDuration returns the connection lifetime as a duration
func (d *DatabaseConfig) ConnMaxLifetimeDuration() time.Duration {
	return time.Duration(d.ConnMaxLifetime) * time.Second
}

// ReadTimeoutDuration returns the server read timeout as a duration
func (s *ServerConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns the server write timeout as a duration
func (s *ServerConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// RequestTimeoutDuration returns the per-request timeout as a duration
func (s *ServerConfig) RequestTimeoutDuration() time.Duration {
	return time.Duration(s.RequestTimeout) * time.Second
}

// Load reads configuration from environment variables, with a .env file
// in development
func Load() (*Config, error) {
	// Best effort; production sets real environment variables
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	cfg := &Config{
		App: AppConfig{
			Name:           v.GetString("app.name"),
			Environment:    v.GetString("app.environment"),
			Port:           v.GetInt("app.port"),
			OrganizationID: v.GetString("app.organization_id"),
		},
		Database: DatabaseConfig{
			Enabled:         v.GetBool("database.enabled"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			Name:            v.GetString("database.name"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
		},
		LocalStore: LocalStoreConfig{
			Path: v.GetString("localstore.path"),
		},
		Sync: SyncConfig{
			DrainCron:       v.GetString("sync.drain_cron"),
			NotificationCap: v.GetInt("sync.notification_cap"),
			StartOffline:    v.GetBool("sync.start_offline"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("auth.jwt_secret"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
		Server: ServerConfig{
			ReadTimeout:    v.GetInt("server.read_timeout"),
			WriteTimeout:   v.GetInt("server.write_timeout"),
			RequestTimeout: v.GetInt("server.request_timeout"),
		},
		CORS: CORSConfig{
			AllowedOrigins:   v.GetStringSlice("cors.allowed_origins"),
			AllowedMethods:   v.GetStringSlice("cors.allowed_methods"),
			AllowedHeaders:   v.GetStringSlice("cors.allowed_headers"),
			AllowCredentials: v.GetBool("cors.allow_credentials"),
			MaxAge:           v.GetInt("cors.max_age"),
		},
		RateLimit: RateLimitConfig{
			Enabled:           v.GetBool("ratelimit.enabled"),
			RequestsPerMinute: v.GetInt("ratelimit.requests_per_minute"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.Enabled && c.App.OrganizationID == "" {
		return fmt.Errorf("app.organization_id is required when the central store is enabled")
	}
	if c.App.Environment == "production" && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required in production")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "fieldops-api")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.organization_id", "")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "fieldops")
	v.SetDefault("database.user", "fieldops_user")
	v.SetDefault("database.password", "")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 300)

	v.SetDefault("localstore.path", "fieldops-queue.db")

	v.SetDefault("sync.drain_cron", "@every 1m")
	v.SetDefault("sync.notification_cap", 40)
	v.SetDefault("sync.start_offline", false)

	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("server.read_timeout", 15)
	v.SetDefault("server.write_timeout", 15)
	v.SetDefault("server.request_timeout", 60)

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Accept", "Authorization", "Content-Type"})
	v.SetDefault("cors.allow_credentials", true)
	v.SetDefault("cors.max_age", 300)

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.requests_per_minute", 300)
}
