// Package config loads service settings from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Storage backends accepted by STORE_BACKEND.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

type Telemetry struct {
	OTLPEndpoint   string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4317"`
	TracingEnabled bool   `envconfig:"TRACING_ENABLED" default:"true"`
}

type Store struct {
	Backend     string `envconfig:"STORE_BACKEND" default:"file"`
	DataDir     string `envconfig:"DATA_DIR" default:"./data"`
	PostgresURL string `envconfig:"POSTGRES_URL"`
	RedisURL    string `envconfig:"REDIS_URL"`
	RedisPrefix string `envconfig:"REDIS_PREFIX" default:"pizzaflow"`
}

func (s Store) validate() error {
	switch s.Backend {
	case BackendFile:
		if s.DataDir == "" {
			return fmt.Errorf("DATA_DIR is required for the file backend")
		}
	case BackendPostgres:
		if s.PostgresURL == "" {
			return fmt.Errorf("POSTGRES_URL is required for the postgres backend")
		}
	case BackendRedis:
		if s.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", s.Backend)
	}
	return nil
}

type API struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Store Store  `ignored:"false" split_words:"true"`

	KafkaBrokers     []string `envconfig:"KAFKA_BROKERS"`
	OrderEventsTopic string   `envconfig:"ORDER_EVENTS_TOPIC" default:"order.events"`

	PaymentURL       string        `envconfig:"PAYMENT_URL" default:"https://api.stripe.com"`
	PaymentSecretKey string        `envconfig:"PAYMENT_SECRET_KEY" required:"true"`
	PaymentTimeout   time.Duration `envconfig:"PAYMENT_TIMEOUT" default:"15s"`
	Currency         string        `envconfig:"CURRENCY" default:"usd"`

	MailServiceURL string `envconfig:"MAIL_SERVICE_URL"`
	MailFrom       string `envconfig:"MAIL_FROM" default:"Pizzaflow <orders@pizzaflow.local>"`

	TokenTTL        time.Duration `envconfig:"TOKEN_TTL" default:"1h"`
	CatalogSeedFile string        `envconfig:"CATALOG_SEED_FILE"`
	TaskLimit       int           `envconfig:"TASK_LIMIT" default:"32"`
	TaskTimeout     time.Duration `envconfig:"TASK_TIMEOUT" default:"30s"`

	Telemetry Telemetry
}

func LoadAPI() (*API, error) {
	var cfg API
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Store.validate(); err != nil {
		return nil, err
	}
	if cfg.TokenTTL <= 0 {
		return nil, fmt.Errorf("TOKEN_TTL must be positive")
	}
	return &cfg, nil
}

type Worker struct {
	KafkaBrokers     []string `envconfig:"KAFKA_BROKERS" required:"true"`
	OrderEventsTopic string   `envconfig:"ORDER_EVENTS_TOPIC" default:"order.events"`
	GroupID          string   `envconfig:"CONSUMER_GROUP" default:"notification-worker"`

	SMSURL        string `envconfig:"SMS_URL" default:"https://api.twilio.com"`
	SMSAccountSID string `envconfig:"SMS_ACCOUNT_SID" required:"true"`
	SMSAuthToken  string `envconfig:"SMS_AUTH_TOKEN" required:"true"`
	SMSFrom       string `envconfig:"SMS_FROM" required:"true"`

	Telemetry Telemetry
}

func LoadWorker() (*Worker, error) {
	var cfg Worker
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type Email struct {
	Port     string        `envconfig:"PORT" default:"8084"`
	MaxDelay time.Duration `envconfig:"MAX_DELAY" default:"200ms"`
}

func LoadEmail() (*Email, error) {
	var cfg Email
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type Gateway struct {
	Port   string `envconfig:"PORT" default:"8000"`
	APIURL string `envconfig:"API_SERVICE_URL" required:"true"`

	Telemetry Telemetry
}

func LoadGateway() (*Gateway, error) {
	var cfg Gateway
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type Migrate struct {
	PostgresURL    string `envconfig:"POSTGRES_URL" required:"true"`
	MigrationsPath string `envconfig:"MIGRATIONS_PATH" default:"file://migrations"`
}

func LoadMigrate() (*Migrate, error) {
	var cfg Migrate
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
