package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	GinMode string
	Port    string

	Database DatabaseConfig
	Session  SessionConfig
	Mail     MailConfig
	Admin    AdminConfig

	CORSAllowedOrigins []string
	LogLevel           string
	LogFormat          string
	UpcomingWindowDays int
}

type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	QueryTimeout    time.Duration
}

type SessionConfig struct {
	Store         string
	Secret        string
	MaxAge        int
	RedisHost     string
	RedisPort     string
	RedisPassword string
}

type MailConfig struct {
	From         string
	FromName     string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	Timeout      time.Duration
}

// SMTPEnabled reports whether SMTP credentials are configured.
func (m MailConfig) SMTPEnabled() bool {
	return m.SMTPUsername != "" && m.SMTPPassword != ""
}

// AdminConfig describes the bootstrap administrator created on startup.
type AdminConfig struct {
	Username string
	Email    string
	Password string
}

func (a AdminConfig) Enabled() bool {
	return a.Email != "" && a.Password != ""
}

var defaults = map[string]any{
	"GIN_MODE":             "debug",
	"PORT":                 "8080",
	"DB_DRIVER":            "postgres",
	"DB_HOST":              "localhost",
	"DB_PORT":              "5432",
	"DB_USER":              "postgres",
	"DB_PASSWORD":          "",
	"DB_NAME":              "task_management",
	"DB_SSLMODE":           "disable",
	"DB_PATH":              "task_management.db",
	"DB_MAX_OPEN_CONNS":    25,
	"DB_MAX_IDLE_CONNS":    5,
	"DB_CONN_MAX_LIFETIME": "30m",
	"DB_QUERY_TIMEOUT":     "5s",
	"SESSION_STORE":        "redis",
	"SESSION_SECRET":       "default-secret-key-change-me",
	"SESSION_MAX_AGE":      86400 * 7,
	"REDIS_HOST":           "localhost",
	"REDIS_PORT":           "6379",
	"REDIS_PASSWORD":       "",
	"CORS_ALLOWED_ORIGINS": "http://localhost:5173,http://localhost:3000",
	"LOG_LEVEL":            "info",
	"LOG_FORMAT":           "json",
	"MAIL_FROM":            "noreply@taskmanager.com",
	"MAIL_FROM_NAME":       "Task Manager",
	"SMTP_HOST":            "smtp.gmail.com",
	"SMTP_PORT":            587,
	"SMTP_USERNAME":        "",
	"SMTP_PASSWORD":        "",
	"MAIL_TIMEOUT":         "10s",
	"ADMIN_USERNAME":       "admin",
	"ADMIN_EMAIL":          "",
	"ADMIN_PASSWORD":       "",
	"UPCOMING_WINDOW_DAYS": 7,
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	cfg := &Config{
		GinMode: v.GetString("GIN_MODE"),
		Port:    v.GetString("PORT"),
		Database: DatabaseConfig{
			Driver:          strings.ToLower(v.GetString("DB_DRIVER")),
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetString("DB_PORT"),
			User:            v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			Name:            v.GetString("DB_NAME"),
			SSLMode:         v.GetString("DB_SSLMODE"),
			Path:            v.GetString("DB_PATH"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
			QueryTimeout:    v.GetDuration("DB_QUERY_TIMEOUT"),
		},
		Session: SessionConfig{
			Store:         strings.ToLower(v.GetString("SESSION_STORE")),
			Secret:        v.GetString("SESSION_SECRET"),
			MaxAge:        v.GetInt("SESSION_MAX_AGE"),
			RedisHost:     v.GetString("REDIS_HOST"),
			RedisPort:     v.GetString("REDIS_PORT"),
			RedisPassword: v.GetString("REDIS_PASSWORD"),
		},
		Mail: MailConfig{
			From:         v.GetString("MAIL_FROM"),
			FromName:     v.GetString("MAIL_FROM_NAME"),
			SMTPHost:     v.GetString("SMTP_HOST"),
			SMTPPort:     v.GetInt("SMTP_PORT"),
			SMTPUsername: v.GetString("SMTP_USERNAME"),
			SMTPPassword: v.GetString("SMTP_PASSWORD"),
			Timeout:      v.GetDuration("MAIL_TIMEOUT"),
		},
		Admin: AdminConfig{
			Username: v.GetString("ADMIN_USERNAME"),
			Email:    v.GetString("ADMIN_EMAIL"),
			Password: v.GetString("ADMIN_PASSWORD"),
		},
		CORSAllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		LogLevel:           v.GetString("LOG_LEVEL"),
		LogFormat:          v.GetString("LOG_FORMAT"),
		UpcomingWindowDays: v.GetInt("UPCOMING_WINDOW_DAYS"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsProduction reports whether gin runs in release mode.
func (c *Config) IsProduction() bool {
	return c.GinMode == "release"
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}

	switch c.Session.Store {
	case "redis", "cookie":
	default:
		return fmt.Errorf("unsupported SESSION_STORE %q", c.Session.Store)
	}

	if c.Session.Secret == "" {
		return errors.New("SESSION_SECRET must not be empty")
	}
	if c.UpcomingWindowDays <= 0 {
		return fmt.Errorf("UPCOMING_WINDOW_DAYS must be positive, got %d", c.UpcomingWindowDays)
	}
	return nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}
