package app

import (
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/service/orders"
	"github.com/vladislavdragonenkov/storefront/internal/storage/appwrite"
)

// Драйверы документного хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
	StorageDriverAppwrite = "appwrite"
)

// Драйверы хранилища idempotency-ключей.
const (
	IdempotencyDriverMemory   = "memory"
	IdempotencyDriverRedis    = "redis"
	IdempotencyDriverPostgres = "postgres"
)

// DefaultOutboxCollection — коллекция outbox-сообщений по умолчанию.
const DefaultOutboxCollection = "outbox"

// Config описывает настройки запуска витрины.
type Config struct {
	HTTPAddr       string
	GRPCAddr       string
	MetricsAddr    string
	RequestTimeout time.Duration

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool
	Appwrite            appwrite.Config

	// StorageRetryAttempts — попытки для чтений и Update удалённого хранилища.
	// 1 (по умолчанию) отключает повторы: сбой хранилища сразу завершает вызов ошибкой.
	StorageRetryAttempts int
	StorageRetryDelay    time.Duration

	Collections      orders.Collections
	OutboxCollection string

	IdempotencyDriver           string
	RedisURL                    string
	IdempotencyTTL              time.Duration
	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int

	KafkaBrokers  []string
	KafkaClientID string
	KafkaTopic    string
	KafkaDLQTopic string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration
	OutboxMaxPending   int
}

// DefaultConfig возвращает конфигурацию для локального запуска на in-memory хранилище.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:       ":8080",
		GRPCAddr:       ":50051",
		MetricsAddr:    ":9090",
		RequestTimeout: 30 * time.Second,

		StorageDriver:        StorageDriverMemory,
		PostgresAutoMigrate:  true,
		StorageRetryAttempts: 1,
		StorageRetryDelay:    100 * time.Millisecond,

		Collections:      orders.DefaultCollections(),
		OutboxCollection: DefaultOutboxCollection,

		IdempotencyDriver:           IdempotencyDriverMemory,
		IdempotencyTTL:              24 * time.Hour,
		IdempotencyCleanupInterval:  time.Minute,
		IdempotencyCleanupBatchSize: 500,

		KafkaClientID: "storefront",
		KafkaTopic:    kafka.TopicOrderEvents,
		KafkaDLQTopic: kafka.TopicDeadLetterQueue,

		OutboxPollInterval: time.Second,
		OutboxBatchSize:    100,
		OutboxMaxAttempts:  3,
		OutboxRetryDelay:   200 * time.Millisecond,
		OutboxMaxPending:   1000,
	}
}
