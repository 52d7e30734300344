package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/app"
)

const (
	envHTTPAddr       = "STOREFRONT_HTTP_ADDR"
	envGRPCAddr       = "STOREFRONT_GRPC_ADDR"
	envMetricsAddr    = "STOREFRONT_METRICS_ADDR"
	envRequestTimeout = "STOREFRONT_REQUEST_TIMEOUT"
	envLogLevel       = "STOREFRONT_LOG_LEVEL"

	envStorageDriver       = "STOREFRONT_STORAGE_DRIVER"
	envPostgresDSN         = "STOREFRONT_POSTGRES_DSN"
	envPostgresAutoMigrate = "STOREFRONT_POSTGRES_AUTO_MIGRATE"
	envStorageRetries      = "STOREFRONT_STORAGE_RETRY_ATTEMPTS"
	envStorageRetryDelay   = "STOREFRONT_STORAGE_RETRY_DELAY"

	envAppwriteEndpoint = "STOREFRONT_APPWRITE_ENDPOINT"
	envAppwriteProject  = "STOREFRONT_APPWRITE_PROJECT"
	envAppwriteAPIKey   = "STOREFRONT_APPWRITE_API_KEY"
	envAppwriteDatabase = "STOREFRONT_APPWRITE_DATABASE"

	envCollectionInventory  = "STOREFRONT_COLLECTION_INVENTORY"
	envCollectionOrders     = "STOREFRONT_COLLECTION_ORDERS"
	envCollectionOrderItems = "STOREFRONT_COLLECTION_ORDER_ITEMS"
	envCollectionOutbox     = "STOREFRONT_COLLECTION_OUTBOX"

	envIdempotencyDriver           = "STOREFRONT_IDEMPOTENCY_DRIVER"
	envRedisURL                    = "STOREFRONT_REDIS_URL"
	envIdempotencyTTL              = "STOREFRONT_IDEMPOTENCY_TTL"
	envIdempotencyCleanupInterval  = "STOREFRONT_IDEMPOTENCY_CLEANUP_INTERVAL"
	envIdempotencyCleanupBatchSize = "STOREFRONT_IDEMPOTENCY_CLEANUP_BATCH_SIZE"

	envKafkaBrokers  = "STOREFRONT_KAFKA_BROKERS"
	envKafkaClientID = "STOREFRONT_KAFKA_CLIENT_ID"
	envKafkaTopic    = "STOREFRONT_KAFKA_TOPIC"
	envKafkaDLQTopic = "STOREFRONT_KAFKA_DLQ_TOPIC"

	envOutboxPollInterval = "STOREFRONT_OUTBOX_POLL_INTERVAL"
	envOutboxBatchSize    = "STOREFRONT_OUTBOX_BATCH_SIZE"
	envOutboxMaxAttempts  = "STOREFRONT_OUTBOX_MAX_ATTEMPTS"
	envOutboxRetryDelay   = "STOREFRONT_OUTBOX_RETRY_DELAY"
	envOutboxMaxPending   = "STOREFRONT_OUTBOX_MAX_PENDING"
)

// envLookup — сигнатура os.LookupEnv, подменяемая в тестах.
type envLookup func(key string) (string, bool)

func positive[T int | time.Duration](v T) bool    { return v > 0 }
func nonNegative[T int | time.Duration](v T) bool { return v >= 0 }

// readConfigFromEnv накладывает переменные окружения на app.DefaultConfig().
// Некорректные значения не прерывают запуск: остаётся значение по умолчанию, а в warnings — причина.
func readConfigFromEnv(lookup envLookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	lower := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.ToLower(strings.TrimSpace(v))
		}
	}
	boolean := func(key string, dst *bool) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		parsed, err := parseBool(v)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v, using default %t", key, err, *dst))
			return
		}
		*dst = parsed
	}
	integer := func(key string, dst *int, valid func(int) bool, rule string) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		parsed, err := parseInt(v, valid, rule)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v, using default %d", key, err, *dst))
			return
		}
		*dst = parsed
	}
	duration := func(key string, dst *time.Duration, valid func(time.Duration) bool, rule string) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		parsed, err := parseDuration(v, valid, rule)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v, using default %s", key, err, *dst))
			return
		}
		*dst = parsed
	}

	str(envHTTPAddr, &cfg.HTTPAddr)
	str(envGRPCAddr, &cfg.GRPCAddr)
	str(envMetricsAddr, &cfg.MetricsAddr)
	duration(envRequestTimeout, &cfg.RequestTimeout, positive[time.Duration], "must be > 0")

	lower(envStorageDriver, &cfg.StorageDriver)
	str(envPostgresDSN, &cfg.PostgresDSN)
	boolean(envPostgresAutoMigrate, &cfg.PostgresAutoMigrate)
	integer(envStorageRetries, &cfg.StorageRetryAttempts, positive[int], "must be > 0")
	duration(envStorageRetryDelay, &cfg.StorageRetryDelay, positive[time.Duration], "must be > 0")

	str(envAppwriteEndpoint, &cfg.Appwrite.Endpoint)
	str(envAppwriteProject, &cfg.Appwrite.ProjectID)
	str(envAppwriteAPIKey, &cfg.Appwrite.APIKey)
	str(envAppwriteDatabase, &cfg.Appwrite.DatabaseID)

	str(envCollectionInventory, &cfg.Collections.Inventory)
	str(envCollectionOrders, &cfg.Collections.Orders)
	str(envCollectionOrderItems, &cfg.Collections.OrderItems)
	str(envCollectionOutbox, &cfg.OutboxCollection)

	lower(envIdempotencyDriver, &cfg.IdempotencyDriver)
	str(envRedisURL, &cfg.RedisURL)
	duration(envIdempotencyTTL, &cfg.IdempotencyTTL, positive[time.Duration], "must be > 0")
	duration(envIdempotencyCleanupInterval, &cfg.IdempotencyCleanupInterval, positive[time.Duration], "must be > 0")
	integer(envIdempotencyCleanupBatchSize, &cfg.IdempotencyCleanupBatchSize, positive[int], "must be > 0")

	if v, ok := lookup(envKafkaBrokers); ok {
		cfg.KafkaBrokers = splitList(v)
	}
	str(envKafkaClientID, &cfg.KafkaClientID)
	str(envKafkaTopic, &cfg.KafkaTopic)
	str(envKafkaDLQTopic, &cfg.KafkaDLQTopic)

	duration(envOutboxPollInterval, &cfg.OutboxPollInterval, positive[time.Duration], "must be > 0")
	integer(envOutboxBatchSize, &cfg.OutboxBatchSize, positive[int], "must be > 0")
	integer(envOutboxMaxAttempts, &cfg.OutboxMaxAttempts, positive[int], "must be > 0")
	duration(envOutboxRetryDelay, &cfg.OutboxRetryDelay, nonNegative[time.Duration], "must be >= 0")
	integer(envOutboxMaxPending, &cfg.OutboxMaxPending, nonNegative[int], "must be >= 0")

	return cfg, warnings
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool %q", raw)
	}
}

func parseInt(raw string, valid func(int) bool, rule string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", raw)
	}
	if !valid(v) {
		return 0, fmt.Errorf("value %d %s", v, rule)
	}
	return v, nil
}

func parseDuration(raw string, valid func(time.Duration) bool, rule string) (time.Duration, error) {
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	if !valid(v) {
		return 0, fmt.Errorf("value %s %s", v, rule)
	}
	return v, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
