package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	App          AppConfig          `envPrefix:"TB_APP_"`
	Server       ServerConfig       `envPrefix:"TB_SERVER_"`
	Log          LogConfig          `envPrefix:"TB_LOG_"`
	Database     DatabaseConfig     `envPrefix:"TB_DATABASE_"`
	JWT          JWTConfig          `envPrefix:"TB_JWT_"`
	RefreshToken RefreshTokenConfig `envPrefix:"TB_REFRESH_TOKEN_"`
	Auth         AuthConfig         `envPrefix:"TB_AUTH_"`
	Redis        RedisConfig        `envPrefix:"TB_REDIS_"`
	Mail         MailConfig         `envPrefix:"TB_MAIL_"`
	RateLimit    RateLimitConfig    `envPrefix:"TB_RATELIMIT_"`
}

type AppConfig struct {
	Name string `env:"NAME" envDefault:"TrustBridge"`
	Env  string `env:"ENV" envDefault:"development"`
	URL  string `env:"URL" envDefault:"http://localhost:8080"`
}

type ServerConfig struct {
	Port string `env:"PORT" envDefault:"8080"`
	Host string `env:"HOST" envDefault:"localhost"`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
	Output string `env:"OUTPUT" envDefault:"stdout"`
}

type DatabaseConfig struct {
	Driver      string `env:"DRIVER" envDefault:"sqlite"`
	DSN         string `env:"DSN" envDefault:"trustbridge.db"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`
}

type JWTConfig struct {
	// AccessSecret and RefreshSecret are deliberately separate so a leaked
	// access-token secret cannot be used to forge refresh tokens.
	AccessSecret  string        `env:"ACCESS_SECRET" envDefault:"your-jwt-secret"`
	RefreshSecret string        `env:"REFRESH_SECRET" envDefault:"your-refresh-token-secret"`
	Issuer        string        `env:"ISSUER" envDefault:"trustbridge-auth"`
	AccessExpiry  time.Duration `env:"ACCESS_EXPIRY" envDefault:"1h"`
	RefreshExpiry time.Duration `env:"REFRESH_EXPIRY" envDefault:"168h"`
}

type RefreshTokenConfig struct {
	// MaxActivePerUser caps simultaneously active refresh tokens per wallet.
	// Fresh logins beyond the cap revoke the oldest tokens.
	MaxActivePerUser int           `env:"MAX_ACTIVE_PER_USER" envDefault:"5"`
	CleanupInterval  time.Duration `env:"CLEANUP_INTERVAL" envDefault:"1h"`
	CookieName       string        `env:"COOKIE_NAME" envDefault:"refresh_token"`
	CookiePath       string        `env:"COOKIE_PATH" envDefault:"/api/auth"`
	// AllowedOrigins is the refresh-endpoint origin allow-list. Empty means
	// origin pinning is disabled.
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`
}

type AuthConfig struct {
	BcryptCost        int `env:"BCRYPT_COST" envDefault:"12"`
	MinPasswordLength int `env:"MIN_PASSWORD_LENGTH" envDefault:"8"`
}

type RedisConfig struct {
	Enabled bool   `env:"ENABLED" envDefault:"false"`
	URL     string `env:"URL" envDefault:"redis://localhost:6379/0"`
}

type MailConfig struct {
	Enabled     bool   `env:"ENABLED" envDefault:"false"`
	Host        string `env:"HOST" envDefault:"localhost"`
	Port        int    `env:"PORT" envDefault:"587"`
	Username    string `env:"USERNAME"`
	Password    string `env:"PASSWORD"`
	Encryption  string `env:"ENCRYPTION" envDefault:"starttls"`
	FromAddress string `env:"FROM_ADDRESS"`
	FromName    string `env:"FROM_NAME" envDefault:"TrustBridge Security"`
}

type RateLimitConfig struct {
	Enabled bool          `env:"ENABLED" envDefault:"true"`
	Rate    int           `env:"RATE" envDefault:"5"`
	Period  time.Duration `env:"PERIOD" envDefault:"15m"`
}

func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

func LoadConfig(cfg any) error {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	return env.Parse(cfg)
}
