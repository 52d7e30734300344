package app

import (
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
)

func TestDefaultConfig_Values(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.HTTPAddr != ":8080" {
		t.Errorf("expected HTTPAddr :8080, got %s", cfg.HTTPAddr)
	}
	if cfg.GRPCAddr != ":50051" {
		t.Errorf("expected GRPCAddr :50051, got %s", cfg.GRPCAddr)
	}
	if cfg.MetricsAddr != ":9090" {
		t.Errorf("expected MetricsAddr :9090, got %s", cfg.MetricsAddr)
	}
	if cfg.StorageDriver != StorageDriverMemory {
		t.Errorf("expected StorageDriver %s, got %s", StorageDriverMemory, cfg.StorageDriver)
	}
	if cfg.IdempotencyDriver != IdempotencyDriverMemory {
		t.Errorf("expected IdempotencyDriver %s, got %s", IdempotencyDriverMemory, cfg.IdempotencyDriver)
	}
	if !cfg.PostgresAutoMigrate {
		t.Error("expected PostgresAutoMigrate to be true")
	}
	if cfg.Collections.Orders != "orders" || cfg.Collections.OrderItems != "order_items" || cfg.Collections.Inventory != "inventory" {
		t.Errorf("unexpected default collections: %+v", cfg.Collections)
	}
	if cfg.OutboxCollection != DefaultOutboxCollection {
		t.Errorf("expected outbox collection %s, got %s", DefaultOutboxCollection, cfg.OutboxCollection)
	}
	if cfg.KafkaTopic != kafka.TopicOrderEvents || cfg.KafkaDLQTopic != kafka.TopicDeadLetterQueue {
		t.Errorf("unexpected kafka topics: %s / %s", cfg.KafkaTopic, cfg.KafkaDLQTopic)
	}
	if len(cfg.KafkaBrokers) != 0 {
		t.Error("kafka must be disabled by default")
	}
	if cfg.IdempotencyTTL != 24*time.Hour {
		t.Errorf("expected IdempotencyTTL 24h, got %s", cfg.IdempotencyTTL)
	}
	if cfg.OutboxPollInterval <= 0 {
		t.Error("expected OutboxPollInterval to be > 0")
	}
	if cfg.OutboxBatchSize <= 0 {
		t.Error("expected OutboxBatchSize to be > 0")
	}
	if cfg.OutboxMaxAttempts <= 0 {
		t.Error("expected OutboxMaxAttempts to be > 0")
	}
	if cfg.OutboxRetryDelay < 0 {
		t.Error("expected OutboxRetryDelay to be >= 0")
	}
	if cfg.OutboxMaxPending <= 0 {
		t.Error("expected OutboxMaxPending to be > 0")
	}
	if cfg.IdempotencyCleanupInterval <= 0 {
		t.Error("expected IdempotencyCleanupInterval to be > 0")
	}
	if cfg.IdempotencyCleanupBatchSize <= 0 {
		t.Error("expected IdempotencyCleanupBatchSize to be > 0")
	}
	if cfg.StorageRetryAttempts != 1 {
		t.Errorf("expected StorageRetryAttempts 1, got %d", cfg.StorageRetryAttempts)
	}
}

func TestStorageRetryConfig_OffUnlessConfigured(t *testing.T) {
	retry := storageRetryConfig(DefaultConfig())
	if retry.MaxAttempts != 1 {
		t.Fatalf("expected a single attempt by default, got %d", retry.MaxAttempts)
	}

	cfg := DefaultConfig()
	cfg.StorageRetryAttempts = 4
	cfg.StorageRetryDelay = 50 * time.Millisecond
	retry = storageRetryConfig(cfg)
	if retry.MaxAttempts != 4 || retry.InitialDelay != 50*time.Millisecond {
		t.Fatalf("unexpected retry config: %+v", retry)
	}
}

func TestConfig_EmptyCollectionsFallBackToDefaults(t *testing.T) {
	cfg := Config{}
	collections := cfg.Collections.WithDefaults()

	if collections.Orders != "orders" {
		t.Errorf("expected orders collection, got %q", collections.Orders)
	}
	if collections.Inventory != "inventory" {
		t.Errorf("expected inventory collection, got %q", collections.Inventory)
	}
}
