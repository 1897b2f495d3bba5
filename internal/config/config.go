// Package config loads gateway configuration from a TOML file with defaults.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

const (
	DefaultConfigPath     = "config.toml"
	DefaultHTTPAddr       = ":8080"
	DefaultJWTExpiresIn   = "24h"
	DefaultPGHost         = "127.0.0.1"
	DefaultPGPort         = 5432
	DefaultPGUser         = "postgres"
	DefaultPGDatabase     = "omnigate"
	DefaultPGSSLMode      = "disable"
	DefaultMetaAPIVersion = "v21.0"
	DefaultMetaBaseURL    = "https://graph.facebook.com"
	DefaultEventExchange  = "omnigate.messages"
)

type Config struct {
	Log         LogConfig         `toml:"log"`
	Server      ServerConfig      `toml:"server"`
	Auth        AuthConfig        `toml:"auth"`
	Postgres    PostgresConfig    `toml:"postgres"`
	Meta        MetaConfig        `toml:"meta"`
	Bridge      BridgeConfig      `toml:"bridge"`
	Courier     CourierConfig     `toml:"courier"`
	ReplyEngine ReplyEngineConfig `toml:"reply_engine"`
	Events      EventsConfig      `toml:"events"`
	Webhook     WebhookConfig     `toml:"webhook"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type AuthConfig struct {
	JWTSecret    string `toml:"jwt_secret"`
	JWTExpiresIn string `toml:"jwt_expires_in"`
}

type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

// DSN renders the pgx connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

// MetaConfig holds credentials for the official Graph-style business API.
type MetaConfig struct {
	BaseURL        string `toml:"base_url"`
	APIVersion     string `toml:"api_version"`
	AccessToken    string `toml:"access_token"`
	BusinessID     string `toml:"business_id"`
	VerifyToken    string `toml:"verify_token"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// BridgeConfig holds credentials for the session-based aggregator.
type BridgeConfig struct {
	BaseURL        string `toml:"base_url"`
	AdminKey       string `toml:"admin_key"`
	WebhookURL     string `toml:"webhook_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// CourierConfig holds credentials for the secondary stateless aggregator.
type CourierConfig struct {
	BaseURL        string `toml:"base_url"`
	Token          string `toml:"token"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// ReplyEngineConfig points at the external reply-generation collaborator.
type ReplyEngineConfig struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// EventsConfig configures the optional AMQP message-created publisher.
type EventsConfig struct {
	AMQPURL  string `toml:"amqp_url"`
	Exchange string `toml:"exchange"`
}

// Enabled reports whether event publishing is configured.
func (c EventsConfig) Enabled() bool {
	return c.AMQPURL != ""
}

// WebhookConfig controls periodic idempotent webhook re-registration.
type WebhookConfig struct {
	ReconcileCron string `toml:"reconcile_cron"`
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Auth: AuthConfig{
			JWTExpiresIn: DefaultJWTExpiresIn,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		Meta: MetaConfig{
			BaseURL:    DefaultMetaBaseURL,
			APIVersion: DefaultMetaAPIVersion,
		},
		Events: EventsConfig{
			Exchange: DefaultEventExchange,
		},
		Webhook: WebhookConfig{
			ReconcileCron: "@every 1h",
		},
	}

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

	return cfg, nil
}
