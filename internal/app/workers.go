package app

import (
	"context"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/idempotency"
	"github.com/vladislavdragonenkov/storefront/internal/service/outbox"
)

const workerStopTimeout = 5 * time.Second

// backgroundWorker — фоновая горутина с собственной отменой.
type backgroundWorker struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}
}

func startWorker(ctx context.Context, name string, run func(context.Context), logger *log.Entry) backgroundWorker {
	workerCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		run(workerCtx)
	}()
	logger.WithField("worker", name).Info("background worker started")
	return backgroundWorker{name: name, cancel: cancel, done: done}
}

// stopWorkers отменяет воркеры и ждёт их завершения не дольше workerStopTimeout каждый.
func stopWorkers(workers []backgroundWorker, logger *log.Entry) {
	for _, w := range workers {
		if w.cancel != nil {
			w.cancel()
		}
	}
	for _, w := range workers {
		if w.done == nil {
			continue
		}
		select {
		case <-w.done:
		case <-time.After(workerStopTimeout):
			logger.WithField("worker", w.name).Warn("worker did not stop in time")
		}
	}
}

func newOutboxWorker(cfg Config, repo domain.OutboxRepository, producer *kafka.Producer, logger *log.Entry) *outbox.Worker {
	return outbox.NewWorker(
		repo,
		kafka.NewOutboxPublisher(producer, cfg.KafkaTopic),
		outbox.WithLogger(logger.WithField("worker", "outbox")),
		outbox.WithDLQPublisher(kafka.NewDeadLetterPublisher(producer, cfg.KafkaDLQTopic)),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	)
}

func newCleanupWorker(cfg Config, repo domain.IdempotencyRepository, logger *log.Entry) *idempotency.CleanupWorker {
	driver := strings.ToLower(strings.TrimSpace(cfg.IdempotencyDriver))
	if driver == "" {
		driver = IdempotencyDriverMemory
	}
	return idempotency.NewCleanupWorker(
		repo,
		driver,
		idempotency.WithCleanupLogger(logger.WithField("worker", "idempotency-cleanup")),
		idempotency.WithCleanupObserver(metrics.NewIdempotencyCleanupMetrics()),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
	)
}
