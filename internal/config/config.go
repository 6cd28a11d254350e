// Package config loads and exposes application configuration (TOML).
package config

import (
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Default configuration values used when a field is missing in TOML.
const (
	DefaultConfigPath      = "config.toml"
	DefaultHTTPAddr        = ":8080"
	DefaultStorageDriver   = "postgres"
	DefaultPGHost          = "127.0.0.1"
	DefaultPGPort          = 5432
	DefaultPGUser          = "postgres"
	DefaultPGDatabase      = "msgbridge"
	DefaultPGSSLMode       = "disable"
	DefaultWhatsAppBaseURL = "https://graph.facebook.com"
	DefaultWhatsAppVersion = "v15.0"
	DefaultChatwootBaseURL = "https://app.chatwoot.com"
	DefaultJWTExpiresIn    = "24h"
)

// Storage drivers accepted in [storage].
const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// Config is the root application configuration loaded from TOML.
type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Admin    AdminConfig    `toml:"admin"`
	Storage  StorageConfig  `toml:"storage"`
	Postgres PostgresConfig `toml:"postgres"`
	Channels ChannelsConfig `toml:"channels"`
	Mirror   MirrorConfig   `toml:"mirror"`
}

// LogConfig holds logging level and format (e.g. level=info, format=text).
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ServerConfig holds the HTTP server listen address.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// AdminConfig holds the JWT secret guarding the /admin API. An empty secret disables it.
type AdminConfig struct {
	JWTSecret    string `toml:"jwt_secret"`
	JWTExpiresIn string `toml:"jwt_expires_in"`
}

// StorageConfig selects the storage backend ("postgres" or "memory"). AutoMigrate applies
// pending migrations when the bridge starts.
type StorageConfig struct {
	Driver      string `toml:"driver"`
	AutoMigrate bool   `toml:"auto_migrate"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

// ChannelsConfig groups per-channel settings. A channel is mounted only when enabled.
type ChannelsConfig struct {
	WhatsApp WhatsAppConfig `toml:"whatsapp"`
	Chatwoot ChatwootConfig `toml:"chatwoot"`
	Web      WebConfig      `toml:"web"`
}

// WhatsAppConfig configures the cloud messaging webhook channel.
type WhatsAppConfig struct {
	Enabled     bool    `toml:"enabled"`
	NumberID    string  `toml:"number_id"`
	Token       string  `toml:"token"`
	VerifyToken string  `toml:"verify_token"`
	BaseURL     string  `toml:"base_url"`
	APIVersion  string  `toml:"api_version"`
	RatePerSec  float64 `toml:"rate_per_sec"`
}

// ChatwootConfig configures the business-chat webhook channel.
type ChatwootConfig struct {
	Enabled     bool    `toml:"enabled"`
	UserAPIKey  string  `toml:"user_api_key"`
	BaseURL     string  `toml:"base_url"`
	AccountID   int64   `toml:"account_id"`
	InboxID     int64   `toml:"inbox_id"`
	VerifyToken string  `toml:"verify_token"`
	RatePerSec  float64 `toml:"rate_per_sec"`
}

// WebConfig configures the browser chat channel.
type WebConfig struct {
	Enabled            bool     `toml:"enabled"`
	AllowedOrigins     []string `toml:"allowed_origins"`
	AuthorizationToken string   `toml:"authorization_token"`
}

// MirrorConfig groups conversation mirrors.
type MirrorConfig struct {
	Chatwoot ChatwootMirrorConfig `toml:"chatwoot"`
}

// ChatwootMirrorConfig configures mirroring of non-Chatwoot conversations into a Chatwoot inbox.
type ChatwootMirrorConfig struct {
	Enabled   bool   `toml:"enabled"`
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	AccountID int64  `toml:"account_id"`
	InboxID   int64  `toml:"inbox_id"`
}

// Load reads and parses the TOML config file at path and applies default values for missing fields.
// A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}
	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))

	return cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Admin: AdminConfig{
			JWTExpiresIn: DefaultJWTExpiresIn,
		},
		Storage: StorageConfig{
			Driver: DefaultStorageDriver,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		Channels: ChannelsConfig{
			WhatsApp: WhatsAppConfig{
				BaseURL:    DefaultWhatsAppBaseURL,
				APIVersion: DefaultWhatsAppVersion,
			},
			Chatwoot: ChatwootConfig{
				BaseURL: DefaultChatwootBaseURL,
			},
		},
		Mirror: MirrorConfig{
			Chatwoot: ChatwootMirrorConfig{
				BaseURL: DefaultChatwootBaseURL,
			},
		},
	}
}
