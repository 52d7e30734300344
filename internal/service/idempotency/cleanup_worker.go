// Package idempotency защищает оформление заказа от повторов по idempotency-key
// и вычищает просроченные ключи.
package idempotency

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	defaultCleanupInterval  = 10 * time.Minute
	defaultCleanupBatchSize = 500
)

// CleanupResult — итог одного прохода очистки.
type CleanupResult struct {
	Driver   string
	Cutoff   time.Time
	Deleted  int
	Batches  int
	Duration time.Duration
}

// CleanupObserver получает итог каждого прохода (метрики).
type CleanupObserver interface {
	ObserveCleanup(result CleanupResult, err error)
}

// CleanupOption настраивает CleanupWorker.
type CleanupOption func(*CleanupWorker)

// WithCleanupLogger задаёт logger; поля component и driver добавляются сами.
func WithCleanupLogger(logger *log.Entry) CleanupOption {
	return func(w *CleanupWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithInterval задаёт интервал между проходами.
func WithInterval(interval time.Duration) CleanupOption {
	return func(w *CleanupWorker) {
		if interval > 0 {
			w.interval = interval
		}
	}
}

// WithBatchSize задаёт размер одной порции удаления.
func WithBatchSize(batchSize int) CleanupOption {
	return func(w *CleanupWorker) {
		if batchSize > 0 {
			w.batchSize = batchSize
		}
	}
}

// WithCleanupClock подменяет источник времени.
func WithCleanupClock(now func() time.Time) CleanupOption {
	return func(w *CleanupWorker) {
		if now != nil {
			w.now = now
		}
	}
}

// WithCleanupObserver подключает метрики очистки.
func WithCleanupObserver(observer CleanupObserver) CleanupOption {
	return func(w *CleanupWorker) {
		w.observer = observer
	}
}

// CleanupWorker периодически удаляет просроченные ключи идемпотентности
// у драйверов без собственного TTL (memory, postgres). Redis истекает ключи сам,
// и для него воркер не запускается.
type CleanupWorker struct {
	repo      domain.IdempotencyRepository
	driver    string
	logger    *log.Entry
	observer  CleanupObserver
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

// NewCleanupWorker создаёт воркер очистки для ключей драйвера driver.
func NewCleanupWorker(repo domain.IdempotencyRepository, driver string, options ...CleanupOption) *CleanupWorker {
	if driver == "" {
		driver = "unknown"
	}
	w := &CleanupWorker{
		repo:      repo,
		driver:    driver,
		logger:    log.NewEntry(log.StandardLogger()),
		interval:  defaultCleanupInterval,
		batchSize: defaultCleanupBatchSize,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, option := range options {
		option(w)
	}
	w.logger = w.logger.WithFields(log.Fields{
		"component":          "idempotency-cleanup",
		"idempotency_driver": driver,
	})
	return w
}

// Driver возвращает драйвер, ключи которого чистит воркер.
func (w *CleanupWorker) Driver() string { return w.driver }

// Run чистит ключи сразу и затем раз в interval до отмены ctx.
func (w *CleanupWorker) Run(ctx context.Context) {
	if w.repo == nil {
		w.logger.Warn("idempotency cleanup disabled: no repository")
		return
	}
	w.logger.WithFields(log.Fields{
		"interval":   w.interval,
		"batch_size": w.batchSize,
	}).Info("idempotency cleanup started")

	w.runOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *CleanupWorker) runOnce(ctx context.Context) {
	result, err := w.DeleteExpired(ctx, w.now())
	if errors.Is(err, context.Canceled) {
		return
	}
	if w.observer != nil {
		w.observer.ObserveCleanup(result, err)
	}

	entry := w.logger.WithFields(log.Fields{
		"cutoff":  result.Cutoff,
		"deleted": result.Deleted,
		"batches": result.Batches,
	})
	switch {
	case err != nil:
		entry.WithError(err).Warn("idempotency cleanup failed")
	case result.Deleted > 0:
		entry.Info("expired idempotency keys removed")
	default:
		entry.Debug("no expired idempotency keys")
	}
}

// DeleteExpired удаляет записи с TTL не позже before порциями batchSize, пока
// порция не окажется неполной. Нулевой before означает «сейчас».
func (w *CleanupWorker) DeleteExpired(ctx context.Context, before time.Time) (result CleanupResult, err error) {
	start := w.now()
	if before.IsZero() {
		before = start
	}
	result = CleanupResult{Driver: w.driver, Cutoff: before}
	defer func() { result.Duration = w.now().Sub(start) }()

	for {
		if err = ctx.Err(); err != nil {
			return result, err
		}

		var deleted int
		deleted, err = w.repo.DeleteExpired(ctx, before, w.batchSize)
		if err != nil {
			return result, err
		}
		result.Batches++
		result.Deleted += deleted
		if deleted < w.batchSize {
			return result, nil
		}
	}
}
