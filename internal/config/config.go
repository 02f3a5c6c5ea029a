package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration. Secrets (bridge API key, Deriv
// payment-agent token, internal API key) have no defaults and must be supplied
// via the environment.
type Config struct {
	AppEnv         string `mapstructure:"APP_ENV"`
	Port           string `mapstructure:"PORT"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	DatabaseURL    string `mapstructure:"DATABASE_URL"`

	BridgeBaseURL string `mapstructure:"BRIDGE_BASE_URL"`
	BridgeAPIKey  string `mapstructure:"BRIDGE_API_KEY"`

	DerivEndpoint string `mapstructure:"DERIV_ENDPOINT"`
	DerivAppID    string `mapstructure:"DERIV_APP_ID"`
	DerivToken    string `mapstructure:"DERIV_TOKEN"`

	InternalAPIKey string `mapstructure:"INTERNAL_API_KEY"`
	OpsPhone       string `mapstructure:"OPS_PHONE"`

	WorkerSchedule  string `mapstructure:"WORKER_SCHEDULE"`
	WorkerBatchSize int    `mapstructure:"WORKER_BATCH_SIZE"`
	JobMaxAttempts  int    `mapstructure:"JOB_MAX_ATTEMPTS"`
	JobRetrySeconds int    `mapstructure:"JOB_RETRY_SECONDS"`
	JobStaleSeconds int    `mapstructure:"JOB_STALE_SECONDS"`
}

func Load() (*Config, error) {
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ALLOWED_ORIGINS", "*")
	viper.SetDefault("BRIDGE_BASE_URL", "https://stepakash.com")
	viper.SetDefault("DERIV_ENDPOINT", "ws.derivws.com")
	viper.SetDefault("DERIV_APP_ID", "76420")
	viper.SetDefault("WORKER_SCHEDULE", "@every 30s")
	viper.SetDefault("WORKER_BATCH_SIZE", 10)
	viper.SetDefault("JOB_MAX_ATTEMPTS", 3)
	viper.SetDefault("JOB_RETRY_SECONDS", 60)
	viper.SetDefault("JOB_STALE_SECONDS", 300)
	viper.AutomaticEnv()

	// Bind explicitly so the values appear in Unmarshal.
	for _, key := range []string{
		"APP_ENV", "PORT", "ALLOWED_ORIGINS", "DATABASE_URL",
		"BRIDGE_BASE_URL", "BRIDGE_API_KEY",
		"DERIV_ENDPOINT", "DERIV_APP_ID", "DERIV_TOKEN",
		"INTERNAL_API_KEY", "OPS_PHONE",
		"WORKER_SCHEDULE", "WORKER_BATCH_SIZE", "JOB_MAX_ATTEMPTS", "JOB_RETRY_SECONDS", "JOB_STALE_SECONDS",
	} {
		_ = viper.BindEnv(key)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	for name, value := range map[string]string{
		"DATABASE_URL":     cfg.DatabaseURL,
		"BRIDGE_API_KEY":   cfg.BridgeAPIKey,
		"DERIV_TOKEN":      cfg.DerivToken,
		"INTERNAL_API_KEY": cfg.InternalAPIKey,
	} {
		if value == "" {
			return nil, fmt.Errorf("%s environment variable is required", name)
		}
	}

	return &cfg, nil
}
