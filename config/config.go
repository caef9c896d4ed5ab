package config

import "time"

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"fern-api"`
	Version                       string   `env:"APP_VERSION" env-default:"dev"`
	Port                          int      `env:"PORT" env-default:"3004"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	AllowMethods                  []string `env:"HTTP_SERVER_ALLOW_METHODS" env-default:"GET,POST,PUT,PATCH,DELETE,HEAD"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// Blob store backend: s3, postgres, or memory.
	BlobStoreDriver string `env:"BLOB_STORE_DRIVER" env-default:"s3"`

	// S3 backend
	S3Bucket         string        `env:"S3_BUCKET" env-default:""`
	S3Region         string        `env:"S3_REGION" env-default:"us-east-1"`
	S3Endpoint       string        `env:"S3_ENDPOINT" env-default:""`
	S3UsePathStyle   bool          `env:"S3_USE_PATH_STYLE" env-default:"false"`
	S3RequestTimeout time.Duration `env:"S3_REQUEST_TIMEOUT" env-default:"10s"`

	// PostgreSQL backend
	DatabaseDriver              string        `env:"DB_DRIVER" env-default:"postgres"`
	DatabaseHost                string        `env:"DB_HOST" env-default:""`
	DatabasePort                string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName            string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword            string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                string        `env:"DB_NAME" env-default:"fern"`
	DatabaseSSLMode             string        `env:"DB_SSL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns        int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns        int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime     time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	DatabaseMigrationFolderPath string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`

	// Entity storage
	MaxPayloadBytes          int64  `env:"MAX_PAYLOAD_BYTES" env-default:"1048576"` // 1MB
	EntityNamespace          string `env:"ENTITY_NAMESPACE" env-default:"entities"`
	EntitySecondaryNamespace string `env:"ENTITY_SECONDARY_NAMESPACE" env-default:"legacy/entities"`
	UserNamespace            string `env:"USER_NAMESPACE" env-default:"users"`
	UserSecondaryNamespace   string `env:"USER_SECONDARY_NAMESPACE" env-default:"legacy/users"`
	GameNamespace            string `env:"GAME_NAMESPACE" env-default:"games"`
	GameSecondaryNamespace   string `env:"GAME_SECONDARY_NAMESPACE" env-default:"legacy/games"`

	// Kafka producer (entity lifecycle events)
	KafkaEnabled      bool     `env:"KAFKA_ENABLED" env-default:"false"`
	KafkaBrokers      []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaOutputTopic  string   `env:"KAFKA_OUTPUT_TOPIC" env-default:"entity-events"`
	KafkaBatchSize    int      `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout int      `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks int      `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`

	// Tracing
	TracingEnabled       bool          `env:"TRACING_ENABLED" env-default:"false"`
	TracingOTLPEndpoint  string        `env:"TRACING_OTLP_ENDPOINT" env-default:"localhost:4317"`
	TracingOTLPInsecure  bool          `env:"TRACING_OTLP_INSECURE" env-default:"true"`
	TracingExportTimeout time.Duration `env:"TRACING_EXPORT_TIMEOUT" env-default:"10s"`
}
