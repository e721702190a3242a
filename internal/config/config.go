package config

import (
	"fmt"
	"time"

	env "github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	Port        int    `env:"PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv      string `env:"APP_ENV" envDefault:"production"`

	PSPEnvironment          string `env:"PSP_ENVIRONMENT" envDefault:"sandbox"`
	PSPBaseURL              string `env:"PSP_BASE_URL"`
	PSPClientID             string `env:"PSP_CLIENT_ID,required"`
	PSPClientSecret         string `env:"PSP_CLIENT_SECRET,required"`
	PSPWebhookID            string `env:"PSP_WEBHOOK_ID,required"`
	PSPPartnerAttributionID string `env:"PSP_PARTNER_ATTRIBUTION_ID" envDefault:"Connector_Cart_Checkout"`
	PSPTimeoutS             int    `env:"PSP_TIMEOUT_S" envDefault:"10"`

	SessionJWTSecret      string `env:"SESSION_JWT_SECRET,required"`
	SessionTTLMin         int    `env:"SESSION_TTL_MIN" envDefault:"30"`
	OperationsAPIKeyHash  string `env:"OPERATIONS_API_KEY_HASH,required"`
	WebhookPollIntervalMS int    `env:"WEBHOOK_POLL_INTERVAL_MS" envDefault:"1000"`

	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if cfg.PSPEnvironment != "sandbox" && cfg.PSPEnvironment != "live" {
		return nil, fmt.Errorf("config.Load: PSP_ENVIRONMENT must be sandbox or live, got %q", cfg.PSPEnvironment)
	}
	return &cfg, nil
}

func (c *Config) PSPTimeout() time.Duration {
	return time.Duration(c.PSPTimeoutS) * time.Second
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMin) * time.Minute
}

func (c *Config) WebhookPollInterval() time.Duration {
	return time.Duration(c.WebhookPollIntervalMS) * time.Millisecond
}
