package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

// Execution modes. Development substitutes the mock persistence layer and
// sentinel OTP codes for the real identity provider.
const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
)

// Config holds all configuration for the application.
type Config struct {
	Port      string `mapstructure:"PORT"`
	GinMode   string `mapstructure:"GIN_MODE"`
	AppEnv    string `mapstructure:"APP_ENV"`
	ClientURL string `mapstructure:"CLIENT_URL"`

	// Identity provider / document store (production mode).
	FirebaseProjectID                string `mapstructure:"FIREBASE_PROJECT_ID"`
	FirebaseWebAPIKey                string `mapstructure:"FIREBASE_WEB_API_KEY"`
	GoogleApplicationCredentials     string `mapstructure:"GOOGLE_APPLICATION_CREDENTIALS"`
	FirebaseServiceAccountJSONBase64 string `mapstructure:"FIREBASE_SERVICE_ACCOUNT_JSON_BASE64"`

	// Local durable storage backing the mock adapter (development mode).
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
}

// IsDevelopment reports whether the mock execution mode is selected.
func (c *Config) IsDevelopment() bool {
	return strings.ToLower(c.AppEnv) == ModeDevelopment
}

// LoadConfig loads configuration from environment variables using Viper.
func LoadConfig() (*Config, error) {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("GIN_MODE", "debug")
	viper.SetDefault("APP_ENV", ModeDevelopment)
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_DB", 0)

	for _, key := range []string{
		"PORT", "GIN_MODE", "APP_ENV", "CLIENT_URL",
		"FIREBASE_PROJECT_ID", "FIREBASE_WEB_API_KEY",
		"GOOGLE_APPLICATION_CREDENTIALS", "FIREBASE_SERVICE_ACCOUNT_JSON_BASE64",
		"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
	} {
		viper.BindEnv(key)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, errors.New("failed to unmarshal config: " + err.Error())
	}

	switch strings.ToLower(cfg.AppEnv) {
	case ModeDevelopment:
		if cfg.RedisAddr == "" {
			return nil, errors.New("REDIS_ADDR is required in development mode")
		}
	case ModeProduction:
		if cfg.FirebaseProjectID == "" {
			return nil, errors.New("FIREBASE_PROJECT_ID is required in production mode")
		}
		if cfg.FirebaseWebAPIKey == "" {
			return nil, errors.New("FIREBASE_WEB_API_KEY is required in production mode")
		}
		if cfg.GoogleApplicationCredentials == "" && cfg.FirebaseServiceAccountJSONBase64 == "" {
			return nil, errors.New("either GOOGLE_APPLICATION_CREDENTIALS or FIREBASE_SERVICE_ACCOUNT_JSON_BASE64 is required in production mode")
		}
	default:
		return nil, errors.New("APP_ENV must be 'development' or 'production'")
	}

	return &cfg, nil
}
