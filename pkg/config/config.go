// Package config builds the immutable runtime configuration for the
// Elyterra backend tooling. It is constructed once at startup from the
// process environment and passed by reference; nothing reads ambient
// environment state after that.
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Environment names.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config holds every setting the tooling consumes.
type Config struct {
	Env        string
	APITitle   string
	APIVersion string

	// Database connection settings. DatabaseURL wins when set; otherwise it
	// is composed from the discrete fields.
	DatabaseURL      string
	PostgresUser     string
	PostgresPassword string
	PostgresHost     string
	PostgresPort     int
	PostgresDB       string

	// CORSOrigins is the allow-list for browser clients.
	CORSOrigins []string

	SecretKey string

	// HTTP listener settings.
	ListenHost string
	ListenPort int

	// Workers is the size of the production worker pool.
	Workers int

	LogLevel string
}

// Load constructs a Config from the process environment, applying the same
// defaults the platform has always shipped with.
func Load() (*Config, error) {
	v := viper.New()
	v.SetDefault("env", EnvDevelopment)
	v.SetDefault("api_title", "ElyterraX API")
	v.SetDefault("api_version", "1.0.0")
	v.SetDefault("database_url", "")
	v.SetDefault("postgres_user", "admin")
	v.SetDefault("postgres_password", "admin")
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_db", "realestate_dev")
	v.SetDefault("cors_origins", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("secret_key", "")
	v.SetDefault("listen_host", "0.0.0.0")
	v.SetDefault("listen_port", 8000)
	v.SetDefault("web_concurrency", 4)
	v.SetDefault("log_level", "info")
	v.AutomaticEnv()

	cfg := &Config{
		Env:              strings.ToLower(v.GetString("env")),
		APITitle:         v.GetString("api_title"),
		APIVersion:       v.GetString("api_version"),
		DatabaseURL:      v.GetString("database_url"),
		PostgresUser:     v.GetString("postgres_user"),
		PostgresPassword: v.GetString("postgres_password"),
		PostgresHost:     v.GetString("postgres_host"),
		PostgresPort:     v.GetInt("postgres_port"),
		PostgresDB:       v.GetString("postgres_db"),
		CORSOrigins:      splitOrigins(v.GetString("cors_origins")),
		SecretKey:        v.GetString("secret_key"),
		ListenHost:       v.GetString("listen_host"),
		ListenPort:       v.GetInt("listen_port"),
		Workers:          v.GetInt("web_concurrency"),
		LogLevel:         v.GetString("log_level"),
	}

	if cfg.PostgresPort <= 0 || cfg.PostgresPort > 65535 {
		return nil, fmt.Errorf("invalid postgres port %d", cfg.PostgresPort)
	}
	if cfg.Workers < 1 {
		return nil, fmt.Errorf("worker pool size must be at least 1, got %d", cfg.Workers)
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = cfg.postgresURL(cfg.PostgresDB)
	}
	return cfg, nil
}

// IsProduction reports whether the production launch mode applies.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// ListenAddr returns the host:port the HTTP service binds to.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.ListenHost, strconv.Itoa(c.ListenPort))
}

// AdminDatabaseURL returns a connection string against the server's
// maintenance database, for probing and database creation.
func (c *Config) AdminDatabaseURL() string {
	return c.postgresURL("postgres")
}

func (c *Config) postgresURL(dbname string) string {
	userInfo := ""
	if c.PostgresUser != "" {
		userInfo = c.PostgresUser
		if c.PostgresPassword != "" {
			userInfo += ":" + c.PostgresPassword
		}
		userInfo += "@"
	}
	return fmt.Sprintf("postgres://%s%s:%d/%s?sslmode=disable", userInfo, c.PostgresHost, c.PostgresPort, dbname)
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
