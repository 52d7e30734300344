package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/docstore"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/storage/appwrite"
	"github.com/vladislavdragonenkov/storefront/internal/storage/document"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
	"github.com/vladislavdragonenkov/storefront/internal/storage/redis"
)

const (
	storageBreakerFailures = 5
	storageBreakerReset    = 10 * time.Second
)

// runtimeDependencies — хранилища, выбранные конфигурацией.
type runtimeDependencies struct {
	store           docstore.Store
	outboxRepo      domain.OutboxRepository
	idempotencyRepo domain.IdempotencyRepository
	// cleanupRequired — репозиторий ключей не удаляет их сам (нет TTL на стороне хранилища).
	cleanupRequired bool
	checkers        map[string]healthcheck.Checker
	closers         []func() error
}

func (d *runtimeDependencies) addCloser(fn func() error) {
	d.closers = append(d.closers, fn)
}

// closeFn закрывает соединения в обратном порядке открытия.
func (d *runtimeDependencies) closeFn() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (deps *runtimeDependencies, err error) {
	deps = &runtimeDependencies{checkers: make(map[string]healthcheck.Checker)}
	defer func() {
		if err != nil {
			if closeErr := deps.closeFn(); closeErr != nil {
				logger.WithError(closeErr).Warn("failed to release partially initialized dependencies")
			}
		}
	}()

	driver := strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	var (
		raw     docstore.Store
		pgStore *postgres.Store
	)
	switch driver {
	case "", StorageDriverMemory:
		driver = StorageDriverMemory
		raw = memory.NewDocumentStore()
	case StorageDriverPostgres:
		pgStore, err = openPostgres(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		deps.addCloser(pgStore.Close)
		raw = postgres.NewDocumentStore(pgStore)
	case StorageDriverAppwrite:
		client, clientErr := appwrite.NewClient(cfg.Appwrite, appwrite.WithLogger(logger.WithField("storage", "appwrite")))
		if clientErr != nil {
			return nil, fmt.Errorf("init appwrite client: %w", clientErr)
		}
		raw = client
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}

	if pinger, ok := raw.(healthcheck.Pinger); ok {
		deps.checkers["storage"] = healthcheck.NewPingChecker("storage", pinger, true)
	}
	if driver != StorageDriverMemory {
		storeLogger := logger.WithField("storage", driver)
		breaker := docstore.NewCircuitBreaker(storageBreakerFailures, storageBreakerReset, storeLogger)
		raw = docstore.Resilient(raw, storageRetryConfig(cfg), breaker, storeLogger)
	}
	deps.store = docstore.Instrument(raw, metrics.NewDocstoreMetrics(driver))

	collection := cfg.OutboxCollection
	if collection == "" {
		collection = DefaultOutboxCollection
	}
	deps.outboxRepo = document.NewOutboxRepository(deps.store, collection)

	if err := initIdempotency(ctx, cfg, deps, pgStore, logger); err != nil {
		return nil, err
	}

	logger.WithFields(log.Fields{
		"storage":     driver,
		"idempotency": cfg.IdempotencyDriver,
	}).Info("runtime dependencies initialized")
	return deps, nil
}

// storageRetryConfig включает повторы только при явной настройке StorageRetryAttempts > 1.
func storageRetryConfig(cfg Config) docstore.RetryConfig {
	retry := docstore.DefaultRetryConfig()
	if cfg.StorageRetryAttempts > 1 {
		retry.MaxAttempts = cfg.StorageRetryAttempts
	}
	if cfg.StorageRetryDelay > 0 {
		retry.InitialDelay = cfg.StorageRetryDelay
	}
	return retry
}

func openPostgres(ctx context.Context, cfg Config, logger *log.Entry) (*postgres.Store, error) {
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("postgres dsn is required")
	}
	store, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if cfg.PostgresAutoMigrate {
		if err := store.MigrateUp(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		logger.Info("postgres migrations applied")
	}
	return store, nil
}

func initIdempotency(ctx context.Context, cfg Config, deps *runtimeDependencies, pgStore *postgres.Store, logger *log.Entry) error {
	switch strings.ToLower(strings.TrimSpace(cfg.IdempotencyDriver)) {
	case "", IdempotencyDriverMemory:
		deps.idempotencyRepo = memory.NewIdempotencyRepository()
		deps.cleanupRequired = true
	case IdempotencyDriverRedis:
		client, err := redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("init redis: %w", err)
		}
		deps.addCloser(client.Close)
		repo := redis.NewIdempotencyRepository(client)
		deps.idempotencyRepo = repo
		deps.checkers["idempotency"] = healthcheck.NewPingChecker("idempotency", repo, true)
	case IdempotencyDriverPostgres:
		if pgStore == nil {
			store, err := openPostgres(ctx, cfg, logger)
			if err != nil {
				return err
			}
			deps.addCloser(store.Close)
			pgStore = store
			deps.checkers["idempotency"] = healthcheck.NewPingChecker("idempotency", store, true)
		}
		deps.idempotencyRepo = postgres.NewIdempotencyRepository(pgStore)
		deps.cleanupRequired = true
	default:
		return fmt.Errorf("unsupported idempotency driver %q", cfg.IdempotencyDriver)
	}
	return nil
}
