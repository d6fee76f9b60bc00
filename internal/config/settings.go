package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Settings is the process configuration, read from .env and the environment.
type Settings struct {
	AppAddr string `mapstructure:"APP_ADDR"`
	GinMode string `mapstructure:"GIN_MODE"`

	DBHost     string `mapstructure:"DB_HOST"`
	DBPort     string `mapstructure:"DB_PORT"`
	DBUser     string `mapstructure:"DB_USER"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBName     string `mapstructure:"DB_NAME"`
	DBSSLMode  string `mapstructure:"DB_SSLMODE"`
	DBTimezone string `mapstructure:"DB_TIMEZONE"`

	JWTSecret string        `mapstructure:"JWT_SECRET"`
	TokenTTL  time.Duration `mapstructure:"TOKEN_TTL"`

	CORSOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`

	LogFile  string `mapstructure:"LOG_FILE"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	RedisURL     string `mapstructure:"REDIS_URL"`
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic   string `mapstructure:"KAFKA_TOPIC"`

	NewRelicAppName string `mapstructure:"NEW_RELIC_APP_NAME"`
	NewRelicLicense string `mapstructure:"NEW_RELIC_LICENSE_KEY"`

	SeedAdminEmail    string `mapstructure:"SEED_ADMIN_EMAIL"`
	SeedAdminPassword string `mapstructure:"SEED_ADMIN_PASSWORD"`
}

// devJWTSecret lets a local checkout start without configuration; release mode refuses it.
const devJWTSecret = "supersecret"

var defaults = map[string]interface{}{
	"APP_ADDR":              ":8080",
	"GIN_MODE":              "",
	"DB_HOST":               "localhost",
	"DB_PORT":               "5432",
	"DB_USER":               "postgres",
	"DB_PASSWORD":           "password",
	"DB_NAME":               "busops",
	"DB_SSLMODE":            "disable",
	"DB_TIMEZONE":           "UTC",
	"JWT_SECRET":            devJWTSecret,
	"TOKEN_TTL":             72 * time.Hour,
	"CORS_ALLOWED_ORIGINS":  "http://localhost:3000",
	"LOG_FILE":              "./logs/app.log",
	"LOG_LEVEL":             "info",
	"REDIS_URL":             "",
	"KAFKA_BROKERS":         "",
	"KAFKA_TOPIC":           "dayend-events",
	"NEW_RELIC_APP_NAME":    "busops",
	"NEW_RELIC_LICENSE_KEY": "",
	"SEED_ADMIN_EMAIL":      "",
	"SEED_ADMIN_PASSWORD":   "",
}

// Load reads .env (if present) and then the environment, falling back to defaults.
func Load() (*Settings, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found – relying on env vars")
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
		// AutomaticEnv only covers keys viper already knows about
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}
	v.AutomaticEnv()

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &s, nil
}

func (s *Settings) Validate() error {
	if strings.TrimSpace(s.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	if s.GinMode == "release" && s.JWTSecret == devJWTSecret {
		return fmt.Errorf("JWT_SECRET must be set in release mode")
	}
	if s.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	if (s.SeedAdminEmail == "") != (s.SeedAdminPassword == "") {
		return fmt.Errorf("SEED_ADMIN_EMAIL and SEED_ADMIN_PASSWORD must be set together")
	}
	return nil
}

// DSN builds the PostgreSQL data source name.
func (s *Settings) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		s.DBHost, s.DBUser, s.DBPassword, s.DBName, s.DBPort, s.DBSSLMode, s.DBTimezone,
	)
}

// AllowedOrigins splits the comma separated CORS origin list.
func (s *Settings) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(s.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func (s *Settings) Brokers() []string {
	var out []string
	for _, b := range strings.Split(s.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
