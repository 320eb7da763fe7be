package config

import "time"

type Config struct {
	AppName                       string `env:"APP_NAME" env-default:"icvsb-api"`
	Port                          int    `env:"PORT" env-default:"3000"`
	LogLevel                      string `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool   `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int    `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"60"`
	HttpServerReadTimeoutSeconds  int    `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int    `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int    `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	ReadHeaderTimeoutSeconds      int    `env:"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS" env-default:"10"`

	// Store URL; sqlite://<path> or postgres://<dsn>
	DatabaseConnectionURL string `env:"ICVSB_DATABASE_CONNECTION_URL" env-default:"sqlite://icvsb.db"`
	// Store log path
	DatabaseLogFile string `env:"ICVSB_DATABASE_LOG_FILE" env-default:"icvsb.db.log"`
	// Global log sink; empty means standard output
	LoggerFile string `env:"ICVSB_LOGGER_FILE" env-default:""`
	// Migration Folder Path; empty picks db/migrations/<driver>
	DatabaseMigrationFolderPath string `env:"DB_MIGRATION_FOLDER_PATH" env-default:""`
	// Database Migration Version
	DatabaseMigrationVersion int `env:"DB_MIGRATION_VERSION" env-default:"0"`

	// Provider credentials and endpoints
	GoogleAPIKey         string `env:"GOOGLE_API_KEY" env-default:""`
	GoogleEndpoint       string `env:"GOOGLE_VISION_ENDPOINT" env-default:""`
	AmazonEndpoint       string `env:"AMAZON_REKOGNITION_ENDPOINT" env-default:""`
	AmazonAuthorization  string `env:"AMAZON_AUTHORIZATION" env-default:""`
	AzureSubscriptionKey string `env:"AZURE_SUBSCRIPTION_KEY" env-default:""`
	AzureEndpoint        string `env:"AZURE_VISION_ENDPOINT" env-default:""`
	// Per-call provider deadline
	ProviderTimeout time.Duration `env:"ICVSB_PROVIDER_TIMEOUT" env-default:"30s"`

	// Webhook POST deadline
	WebhookTimeout time.Duration `env:"ICVSB_WEBHOOK_TIMEOUT" env-default:"10s"`

	// Redis host; empty keeps the label cache in memory
	RedisHost string `env:"ICVSB_REDIS_HOST" env-default:""`
	// Redis port
	RedisPort int `env:"ICVSB_REDIS_PORT" env-default:"6379"`
	// Redis password
	RedisPassword string `env:"ICVSB_REDIS_PASSWORD" env-default:""`
	// Redis database number
	RedisDB int `env:"ICVSB_REDIS_DB" env-default:"0"`
	// Label cache TTL in redis
	RedisCacheTTL time.Duration `env:"ICVSB_REDIS_CACHE_TTL" env-default:"24h"`
	// Label cache capacity in memory
	LabelsCacheCapacity int `env:"ICVSB_LABELS_CACHE_CAPACITY" env-default:"4096"`

	// Kafka brokers (comma-separated); empty disables lifecycle events
	KafkaBrokers string `env:"ICVSB_KAFKA_BROKERS" env-default:""`
	// Kafka topic for key lifecycle events
	KafkaEventsTopic string `env:"ICVSB_KAFKA_EVENTS_TOPIC" env-default:"icvsb-events"`

	// Static landing page path
	StaticIndexPath string `env:"ICVSB_STATIC_INDEX" env-default:"static/index.html"`

	// Tracing settings
	// Enable OTLP tracing export (set to true to send traces to collector)
	OTLPEnabled bool `env:"OTLP_ENABLED" env-default:"false"`
	// OTLP collector endpoint
	OTLPEndpoint string `env:"OTLP_ENDPOINT" env-default:"localhost:4317"`
	// Disable TLS for OTLP (for local development)
	OTLPInsecure bool `env:"OTLP_INSECURE" env-default:"true"`
}
