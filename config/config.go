package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	App        AppConfig        `envPrefix:"APP_"`
	Server     ServerConfig     `envPrefix:"SERVER_"`
	Log        LogConfig        `envPrefix:"LOG_"`
	Database   DatabaseConfig   `envPrefix:"DATABASE_"`
	Mail       MailConfig       `envPrefix:"MAIL_"`
	JWT        JWTConfig        `envPrefix:"JWT_"`
	Admin      AdminConfig      `envPrefix:"ADMIN_"`
	Newsletter NewsletterConfig `envPrefix:"NEWSLETTER_"`
	CORS       CORSConfig       `envPrefix:"CORS_"`
	RateLimit  RateLimitConfig  `envPrefix:"RATE_LIMIT_"`
	Redis      RedisConfig      `envPrefix:"REDIS_"`
}

type AppConfig struct {
	Name string `env:"NAME" envDefault:"Hapo Group Newsletter"`
	URL  string `env:"URL" envDefault:"http://localhost:8080"`
}

type ServerConfig struct {
	Port           string   `env:"PORT" envDefault:"8080"`
	Host           string   `env:"HOST" envDefault:"localhost"`
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
	Output string `env:"OUTPUT" envDefault:"stdout"`
}

type DatabaseConfig struct {
	Driver      string `env:"DRIVER" envDefault:"sqlite"`
	DSN         string `env:"DSN" envDefault:"newsletter.db"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`
}

type MailConfig struct {
	Host         string `env:"HOST" envDefault:"localhost"`
	Port         int    `env:"PORT" envDefault:"587"`
	Username     string `env:"USERNAME"`
	Password     string `env:"PASSWORD"`
	Encryption   string `env:"ENCRYPTION" envDefault:"tls"`
	FromAddress  string `env:"FROM_ADDRESS" envDefault:"newsletter@hapogroup.co.za"`
	FromName     string `env:"FROM_NAME" envDefault:"Hapo Group"`
	TemplatesDir string `env:"TEMPLATES_DIR"`
}

type JWTConfig struct {
	SecretKey    string        `env:"SECRET_KEY"`
	Algorithm    string        `env:"ALGORITHM" envDefault:"HS256"`
	AccessExpiry time.Duration `env:"ACCESS_EXPIRY" envDefault:"1h"`
	Issuer       string        `env:"ISSUER" envDefault:"hapo-newsletter"`
}

// AdminConfig describes the single account allowed to broadcast.
// PasswordHash is a bcrypt hash.
type AdminConfig struct {
	Email        string `env:"EMAIL" envDefault:"admin@hapogroup.co.za"`
	PasswordHash string `env:"PASSWORD_HASH"`
}

type NewsletterConfig struct {
	NotifyAddress        string `env:"NOTIFY_ADDRESS" envDefault:"admin@hapogroup.co.za"`
	DefaultSenderName    string `env:"DEFAULT_SENDER_NAME" envDefault:"Hapo Group"`
	SiteURL              string `env:"SITE_URL" envDefault:"https://hapogroup.co.za"`
	BroadcastConcurrency int    `env:"BROADCAST_CONCURRENCY" envDefault:"8"`
	ReturnToken          bool   `env:"RETURN_TOKEN" envDefault:"true"`
	TimeZone             string `env:"TIME_ZONE" envDefault:"Africa/Johannesburg"`
}

type CORSConfig struct {
	AllowOrigins []string `env:"ALLOW_ORIGINS" envSeparator:"," envDefault:"*"`
}

type CountingMode string

const (
	CountAll      CountingMode = "all"
	CountFailures CountingMode = "failures"
	CountSuccess  CountingMode = "success"
)

type RateLimitConfig struct {
	Enabled   bool          `env:"ENABLED" envDefault:"true"`
	Store     string        `env:"STORE" envDefault:"memory"`
	Rate      int           `env:"RATE" envDefault:"10"`
	Period    time.Duration `env:"PERIOD" envDefault:"1m"`
	CountMode CountingMode  `env:"COUNT_MODE" envDefault:"all"`
}

type RedisConfig struct {
	URL string `env:"URL" envDefault:"redis://localhost:6379/0"`
}

func LoadConfig(cfg *Config) error {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	if err := env.Parse(cfg); err != nil {
		return err
	}

	return Validate(cfg)
}

func Validate(cfg *Config) error {
	if err := validateJWTConfig(&cfg.JWT); err != nil {
		return err
	}

	switch cfg.RateLimit.Store {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported rate limit store: %s (supported: memory, redis)", cfg.RateLimit.Store)
	}

	if cfg.Newsletter.BroadcastConcurrency < 1 {
		return errors.New("newsletter broadcast concurrency must be at least 1")
	}

	return nil
}

var weakSecretPatterns = []string{"password", "secret", "test", "example", "default", "change"}

func validateJWTConfig(cfg *JWTConfig) error {
	if len(cfg.SecretKey) < 32 {
		return errors.New("JWT secret key must be at least 32 characters long")
	}

	lower := strings.ToLower(cfg.SecretKey)
	for _, pattern := range weakSecretPatterns {
		if strings.Contains(lower, pattern) {
			return fmt.Errorf("JWT secret key contains weak patterns (%q)", pattern)
		}
	}

	if cfg.Algorithm != "HS256" {
		return fmt.Errorf("unsupported JWT algorithm: %s (supported: HS256)", cfg.Algorithm)
	}

	return nil
}
