package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"bulkops/internal/domain"
)

type DBConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	Name           string
	SSLMode        string
	MigrationsPath string
}

type KafkaConfig struct {
	BrokerURL            string
	ConsumerGroup        string
	SandboxTopic         string
	InitializeItemsTopic string
	ProcessTopic         string
}

type OutboxConfig struct {
	PollInterval time.Duration
	PollTimeout  time.Duration
	BatchSize    int
}

type IdempotencyConfig struct {
	Store          string
	RedisAddr      string
	TTL            time.Duration
	InboxRetention time.Duration
	SweepSchedule  string
}

type CatalogConfig struct {
	URL                         string
	BulkOperationURI            string
	BulkOperationItemsURI       string
	SupportedBulkOpsURI         string
	BulkOperationTotalRecordURI string
	ServiceClient               string
	RateLimit                   float64
}

type SearchConfig struct {
	URL           string
	SearchURI     string
	ServiceClient string
	RateLimit     float64
}

type OAuth2Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

type Config struct {
	Provider                 string
	InitializeItemsBatchSize int
	HTTPPort                 int
	HTTPClientTimeout        time.Duration
	LogLevel                 string

	DB          DBConfig
	Kafka       KafkaConfig
	Outbox      OutboxConfig
	Idempotency IdempotencyConfig
	Catalog     CatalogConfig
	Search      SearchConfig
	OAuth2      OAuth2Config
}

const (
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

var defaults = map[string]any{
	"BULKOPS_PROVIDER":            "postgres",
	"INITIALIZE_ITEMS_BATCH_SIZE": 50,
	"HTTP_PORT":                   8080,
	"HTTP_CLIENT_TIMEOUT":         "30s",
	"LOG_LEVEL":                   "info",

	"BULKOPS_DB_HOST":     "localhost",
	"BULKOPS_DB_PORT":     5432,
	"BULKOPS_DB_USER":     "user",
	"BULKOPS_DB_PASSWORD": "password",
	"BULKOPS_DB_NAME":     "bulkops_db",
	"BULKOPS_DB_SSLMODE":  "disable",
	"MIGRATIONS_PATH":     "file:///app/migrations",

	"KAFKA_BROKER_URL":             "localhost:9092",
	"KAFKA_CONSUMER_GROUP":         "bulkops-service-group",
	"KAFKA_SANDBOX_TOPIC":          "bulkops.sandbox",
	"KAFKA_INITIALIZE_ITEMS_TOPIC": "bulkops.initialize-items",
	"KAFKA_PROCESS_TOPIC":          "bulkops.process",

	"OUTBOX_POLL_INTERVAL": "1s",
	"OUTBOX_POLL_TIMEOUT":  "500ms",
	"OUTBOX_BATCH_SIZE":    100,

	"IDEMPOTENCY_STORE":    StorePostgres,
	"REDIS_ADDR":           "localhost:6379",
	"IDEMPOTENCY_TTL":      "168h",
	"INBOX_RETENTION":      "168h",
	"INBOX_SWEEP_SCHEDULE": "@hourly",

	"CATALOG_URL":                              "http://localhost:8081",
	"CATALOG_BULK_OPERATION_URI":               "/bulk-operations",
	"CATALOG_BULK_OPERATION_ITEMS_URI":         "/items",
	"CATALOG_SUPPORTED_BULK_OPS_URI":           "/bulk-operations/supported",
	"CATALOG_BULK_OPERATION_TOTAL_RECORDS_URI": "/total-records",
	"CATALOG_SERVICE_CLIENT":                   "bulkopsclient",
	"CATALOG_RATE_LIMIT":                       0,

	"SEARCH_URL":            "http://localhost:8082",
	"SEARCH_URI":            "/search",
	"SEARCH_SERVICE_CLIENT": "bulkopsclient",
	"SEARCH_RATE_LIMIT":     0,

	"OAUTH2_TOKEN_URL":     "",
	"OAUTH2_CLIENT_ID":     "",
	"OAUTH2_CLIENT_SECRET": "",
	"OAUTH2_SCOPES":        "",
}

// LoadConfig reads the configuration from the environment.
func LoadConfig() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	r := &reader{v: v}
	cfg := &Config{}

	cfg.Provider = strings.ToLower(v.GetString("BULKOPS_PROVIDER"))
	cfg.InitializeItemsBatchSize = r.int("INITIALIZE_ITEMS_BATCH_SIZE")
	cfg.HTTPPort = r.int("HTTP_PORT")
	cfg.HTTPClientTimeout = r.duration("HTTP_CLIENT_TIMEOUT")
	cfg.LogLevel = v.GetString("LOG_LEVEL")

	cfg.DB.Host = v.GetString("BULKOPS_DB_HOST")
	cfg.DB.Port = r.int("BULKOPS_DB_PORT")
	cfg.DB.User = v.GetString("BULKOPS_DB_USER")
	cfg.DB.Password = v.GetString("BULKOPS_DB_PASSWORD")
	cfg.DB.Name = v.GetString("BULKOPS_DB_NAME")
	cfg.DB.SSLMode = v.GetString("BULKOPS_DB_SSLMODE")
	cfg.DB.MigrationsPath = v.GetString("MIGRATIONS_PATH")

	cfg.Kafka.BrokerURL = v.GetString("KAFKA_BROKER_URL")
	cfg.Kafka.ConsumerGroup = v.GetString("KAFKA_CONSUMER_GROUP")
	cfg.Kafka.SandboxTopic = v.GetString("KAFKA_SANDBOX_TOPIC")
	cfg.Kafka.InitializeItemsTopic = v.GetString("KAFKA_INITIALIZE_ITEMS_TOPIC")
	cfg.Kafka.ProcessTopic = v.GetString("KAFKA_PROCESS_TOPIC")

	cfg.Outbox.PollInterval = r.duration("OUTBOX_POLL_INTERVAL")
	cfg.Outbox.PollTimeout = r.duration("OUTBOX_POLL_TIMEOUT")
	cfg.Outbox.BatchSize = r.int("OUTBOX_BATCH_SIZE")

	cfg.Idempotency.Store = strings.ToLower(v.GetString("IDEMPOTENCY_STORE"))
	cfg.Idempotency.RedisAddr = v.GetString("REDIS_ADDR")
	cfg.Idempotency.TTL = r.duration("IDEMPOTENCY_TTL")
	cfg.Idempotency.InboxRetention = r.duration("INBOX_RETENTION")
	cfg.Idempotency.SweepSchedule = v.GetString("INBOX_SWEEP_SCHEDULE")

	cfg.Catalog.URL = v.GetString("CATALOG_URL")
	cfg.Catalog.BulkOperationURI = v.GetString("CATALOG_BULK_OPERATION_URI")
	cfg.Catalog.BulkOperationItemsURI = v.GetString("CATALOG_BULK_OPERATION_ITEMS_URI")
	cfg.Catalog.SupportedBulkOpsURI = v.GetString("CATALOG_SUPPORTED_BULK_OPS_URI")
	cfg.Catalog.BulkOperationTotalRecordURI = v.GetString("CATALOG_BULK_OPERATION_TOTAL_RECORDS_URI")
	cfg.Catalog.ServiceClient = v.GetString("CATALOG_SERVICE_CLIENT")
	cfg.Catalog.RateLimit = r.float("CATALOG_RATE_LIMIT")

	cfg.Search.URL = v.GetString("SEARCH_URL")
	cfg.Search.SearchURI = v.GetString("SEARCH_URI")
	cfg.Search.ServiceClient = v.GetString("SEARCH_SERVICE_CLIENT")
	cfg.Search.RateLimit = r.float("SEARCH_RATE_LIMIT")

	cfg.OAuth2.TokenURL = v.GetString("OAUTH2_TOKEN_URL")
	cfg.OAuth2.ClientID = v.GetString("OAUTH2_CLIENT_ID")
	cfg.OAuth2.ClientSecret = v.GetString("OAUTH2_CLIENT_SECRET")
	cfg.OAuth2.Scopes = splitList(v.GetString("OAUTH2_SCOPES"))

	if err := errors.Join(r.errs...); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.InitializeItemsBatchSize <= 0 {
		errs = append(errs, fmt.Errorf("INITIALIZE_ITEMS_BATCH_SIZE must be positive, got %d", c.InitializeItemsBatchSize))
	}
	if c.Outbox.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("OUTBOX_BATCH_SIZE must be positive, got %d", c.Outbox.BatchSize))
	}
	if c.Outbox.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("OUTBOX_POLL_INTERVAL must be positive, got %s", c.Outbox.PollInterval))
	}
	if c.Idempotency.Store != StorePostgres && c.Idempotency.Store != StoreRedis {
		errs = append(errs, fmt.Errorf("IDEMPOTENCY_STORE must be %q or %q, got %q", StorePostgres, StoreRedis, c.Idempotency.Store))
	}
	if c.Catalog.RateLimit < 0 || c.Search.RateLimit < 0 {
		errs = append(errs, errors.New("rate limits must not be negative"))
	}
	if len(c.GetKafkaBrokers()) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKER_URL must list at least one broker"))
	}
	return errors.Join(errs...)
}

// DurableDispatch reports whether outgoing messages go through the outbox.
func (c *Config) DurableDispatch() bool {
	return c.Provider != "none"
}

// NeedsDatabase reports whether any component is backed by Postgres.
func (c *Config) NeedsDatabase() bool {
	return c.DurableDispatch() || c.Idempotency.Store == StorePostgres
}

func (c *Config) GetDBConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Name, c.DB.SSLMode)
}

func (c *Config) GetDBMigrationConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name, c.DB.SSLMode)
}

func (c *Config) GetKafkaBrokers() []string {
	return splitList(c.Kafka.BrokerURL)
}

// Topics returns the topic of each outgoing message type.
func (c *Config) Topics() map[domain.MessageType]string {
	return map[domain.MessageType]string{
		domain.MessageTypeCreateSandbox:   c.Kafka.SandboxTopic,
		domain.MessageTypeInitializeItems: c.Kafka.InitializeItemsTopic,
		domain.MessageTypeProcess:         c.Kafka.ProcessTopic,
	}
}

type reader struct {
	v    *viper.Viper
	errs []error
}

func (r *reader) int(key string) int {
	raw := strings.TrimSpace(r.v.GetString(key))
	value, err := strconv.Atoi(raw)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid integer %q", key, raw))
	}
	return value
}

func (r *reader) float(key string) float64 {
	raw := strings.TrimSpace(r.v.GetString(key))
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid number %q", key, raw))
	}
	return value
}

func (r *reader) duration(key string) time.Duration {
	raw := strings.TrimSpace(r.v.GetString(key))
	value, err := time.ParseDuration(raw)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid duration %q", key, raw))
	}
	return value
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
