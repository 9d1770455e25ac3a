package testutils

import (
	"time"

	"github.com/trustbridge/auth/config"
	"golang.org/x/crypto/bcrypt"
)

func GetTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name: "TrustBridge",
			Env:  "test",
			URL:  "http://localhost:8080",
		},
		JWT: config.JWTConfig{
			AccessSecret:  "test-access-secret-32-chars-ok!!",
			RefreshSecret: "test-refresh-secret-32-chars-ok!",
			Issuer:        "trustbridge-auth-test",
			AccessExpiry:  time.Hour,
			RefreshExpiry: 7 * 24 * time.Hour,
		},
		RefreshToken: config.RefreshTokenConfig{
			MaxActivePerUser: 5,
			CleanupInterval:  time.Hour,
			CookieName:       "refresh_token",
			CookiePath:       "/api/auth",
		},
		Auth: config.AuthConfig{
			BcryptCost:        bcrypt.MinCost,
			MinPasswordLength: 8,
		},
		Database: config.DatabaseConfig{
			Driver: "sqlite",
			DSN:    ":memory:",
		},
	}
}
