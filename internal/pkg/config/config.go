package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	KafkaBrokers           []string      `env:"KAFKA_BROKERS,required" envSeparator:","`
	KafkaTopic             string        `env:"KAFKA_TOPIC" envDefault:"network-logs"`
	KafkaGroupID           string        `env:"KAFKA_GROUP_ID" envDefault:"threat-ingestor"`
	KafkaBatchSize         int           `env:"KAFKA_BATCH_SIZE" envDefault:"5"`
	KafkaBatchWait         time.Duration `env:"KAFKA_BATCH_WAIT" envDefault:"3s"`
	KafkaCommitCheckpoints bool          `env:"KAFKA_COMMIT_CHECKPOINTS" envDefault:"true"`

	PostgresURL string `env:"POSTGRES_URL,required"`

	// RedisAddr is optional; when empty the dedup cache is disabled and
	// every lookup goes straight to the store.
	RedisAddr     string        `env:"REDIS_ADDR"`
	DedupCacheTTL time.Duration `env:"DEDUP_CACHE_TTL" envDefault:"1h"`

	InferenceURL     string        `env:"INFERENCE_URL" envDefault:"http://localhost:8001/predict"`
	InferenceAPIKey  string        `env:"INFERENCE_API_KEY,required"`
	InferenceTimeout time.Duration `env:"INFERENCE_TIMEOUT" envDefault:"5s"`

	AnomalyThreshold   float64 `env:"ANOMALY_THRESHOLD" envDefault:"0.05"`
	NormalTrafficLabel string  `env:"NORMAL_TRAFFIC_LABEL" envDefault:"Normal"`

	// SlackWebhookURL is optional; alerts fall back to stdout without it.
	SlackWebhookURL string `env:"SLACK_WEBHOOK_URL"`

	OpsServerAddr string `env:"OPS_SERVER_ADDR" envDefault:":2112"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
