package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds every setting the services read from the environment.
type Config struct {
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	RabbitMQURL string `envconfig:"RABBITMQ_URL" required:"true"`
	RedisAddr   string `envconfig:"REDIS_ADDR" default:"localhost:6379"`

	HTTPAddr  string `envconfig:"HTTP_ADDR" default:":8080"`
	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`

	StripeSecretKey     string `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `envconfig:"STRIPE_WEBHOOK_SECRET"`

	// AwardPolicy is "single" or "cascade".
	AwardPolicy string `envconfig:"AWARD_POLICY" default:"single"`

	OutboxBatchSize    int `envconfig:"OUTBOX_BATCH_SIZE" default:"50"`
	OutboxIntervalSecs int `envconfig:"OUTBOX_INTERVAL_SECS" default:"2"`
	GatewayTimeoutSecs int `envconfig:"GATEWAY_TIMEOUT_SECS" default:"15"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	return &cfg, nil
}
