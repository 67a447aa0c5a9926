package testutils

import (
	"time"

	"github.com/hapogroup/newsletter/config"
	"golang.org/x/crypto/bcrypt"
)

const (
	AdminEmail    = "admin@example.com"
	AdminPassword = "Password123"
)

func GetTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name: "Test App",
			URL:  "http://localhost:8080",
		},
		Database: config.DatabaseConfig{
			Driver: "sqlite",
			DSN:    ":memory:",
		},
		Mail: config.MailConfig{
			Host:        "localhost",
			Port:        587,
			FromAddress: "newsletter@example.com",
			FromName:    "Test App",
		},
		JWT: config.JWTConfig{
			SecretKey:    "test-secret-key-32-chars-long!!",
			Algorithm:    "HS256",
			AccessExpiry: 15 * time.Minute,
			Issuer:       "test-issuer",
		},
		Admin: config.AdminConfig{
			Email:        AdminEmail,
			PasswordHash: mustHash(AdminPassword),
		},
		Newsletter: config.NewsletterConfig{
			NotifyAddress:        "notify@example.com",
			DefaultSenderName:    "Hapo Group",
			SiteURL:              "https://hapogroup.co.za",
			BroadcastConcurrency: 4,
			ReturnToken:          true,
			TimeZone:             "Africa/Johannesburg",
		},
		CORS: config.CORSConfig{
			AllowOrigins: []string{"*"},
		},
		RateLimit: config.RateLimitConfig{
			Enabled:   false,
			Store:     "memory",
			Rate:      10,
			Period:    time.Minute,
			CountMode: config.CountAll,
		},
	}
}

func mustHash(password string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return string(hash)
}

var TestEmails = struct {
	Valid   string
	Other   string
	Invalid []string
}{
	Valid: "a@x.com",
	Other: "b@x.com",
	Invalid: []string{
		"",
		"invalid-email",
		"missing-domain@",
		"@missing-local.com",
		"no-tld@example",
		"spaces in@example.com",
	},
}
