package docstore

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// ErrCircuitOpen — хранилище недавно падало подряд, запросы временно не отправляются.
var ErrCircuitOpen = errors.New("document store circuit breaker is open")

// RetryConfig — повторы временных ошибок с экспоненциальной задержкой.
// MaxAttempts = 1 означает «без повторов».
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig возвращает конфигурацию без повторов: ошибка хранилища
// сразу возвращается вызывающему. Задержки используются, если MaxAttempts поднят.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   1,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2.0,
	}
}

// IsTransient сообщает, имеет ли смысл повторить запрос.
// Ошибка может сама объявить себя временной через метод Transient() bool.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, ErrCircuitOpen) {
		return false
	}
	var t interface{ Transient() bool }
	if errors.As(err, &t) {
		return t.Transient()
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// circuitState — состояние предохранителя.
type circuitState int

const (
	circuitClosed circuitState = iota
	circuitOpen
	circuitHalfOpen
)

// CircuitBreaker размыкается после maxFailures временных ошибок подряд
// и пропускает пробный запрос через resetTimeout.
type CircuitBreaker struct {
	mu           sync.Mutex
	maxFailures  int
	resetTimeout time.Duration
	failures     int
	openedAt     time.Time
	state        circuitState
	now          func() time.Time
	logger       *log.Entry
}

// NewCircuitBreaker создаёт предохранитель.
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration, logger *log.Entry) *CircuitBreaker {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if logger == nil {
		logger = log.WithField("component", "docstore-breaker")
	}
	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		state:        circuitClosed,
		now:          time.Now,
		logger:       logger,
	}
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case circuitOpen:
		if cb.now().Sub(cb.openedAt) < cb.resetTimeout {
			return false
		}
		cb.state = circuitHalfOpen
		cb.logger.Info("circuit breaker half-open")
		return true
	case circuitHalfOpen:
		// Пока пробный запрос не вернулся, остальные отклоняются.
		return false
	default:
		return true
	}
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !IsTransient(err) {
		if cb.state != circuitClosed {
			cb.logger.Info("circuit breaker closed")
		}
		cb.state = circuitClosed
		cb.failures = 0
		return
	}

	cb.failures++
	if cb.state == circuitHalfOpen || cb.failures >= cb.maxFailures {
		if cb.state != circuitOpen {
			cb.logger.WithField("failures", cb.failures).Warn("circuit breaker opened")
		}
		cb.state = circuitOpen
		cb.openedAt = cb.now()
	}
}

// resilientStore защищает хранилище предохранителем и, если разрешено, повторяет идемпотентные операции.
// Create не повторяется: повтор после таймаута может создать второй документ.
type resilientStore struct {
	next    Store
	retry   RetryConfig
	breaker *CircuitBreaker
	logger  *log.Entry
	sleep   func(ctx context.Context, d time.Duration) error
}

// Resilient оборачивает next повторами и предохранителем. breaker может быть nil.
// Ping пробрасывается, если его умеет next.
func Resilient(next Store, retry RetryConfig, breaker *CircuitBreaker, logger *log.Entry) Store {
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = 1
	}
	if retry.BackoffFactor < 1 {
		retry.BackoffFactor = 1
	}
	if logger == nil {
		logger = log.WithField("component", "docstore-retry")
	}
	s := &resilientStore{next: next, retry: retry, breaker: breaker, logger: logger, sleep: sleepCtx}
	if pinger, ok := next.(Pinger); ok {
		return &resilientPinger{resilientStore: s, pinger: pinger}
	}
	return s
}

func (s *resilientStore) call(ctx context.Context, op, collection string, retryable bool, fn func() error) error {
	attempts := 1
	if retryable {
		attempts = s.retry.MaxAttempts
	}
	delay := s.retry.InitialDelay

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if s.breaker != nil && !s.breaker.allow() {
			return ErrCircuitOpen
		}
		err = fn()
		if s.breaker != nil {
			s.breaker.record(err)
		}
		if err == nil || !IsTransient(err) || attempt == attempts {
			break
		}

		s.logger.WithFields(log.Fields{
			"operation":  op,
			"collection": collection,
			"attempt":    attempt,
			"delay":      delay,
		}).WithError(err).Warn("document store call failed, retrying")
		if sleepErr := s.sleep(ctx, delay); sleepErr != nil {
			return err
		}
		delay = time.Duration(float64(delay) * s.retry.BackoffFactor)
		if s.retry.MaxDelay > 0 && delay > s.retry.MaxDelay {
			delay = s.retry.MaxDelay
		}
	}
	return err
}

func (s *resilientStore) List(ctx context.Context, collection string, opts ...QueryOption) ([]Document, error) {
	var docs []Document
	err := s.call(ctx, "list", collection, true, func() error {
		var err error
		docs, err = s.next.List(ctx, collection, opts...)
		return err
	})
	return docs, err
}

func (s *resilientStore) Get(ctx context.Context, collection, id string) (Document, error) {
	var doc Document
	err := s.call(ctx, "get", collection, true, func() error {
		var err error
		doc, err = s.next.Get(ctx, collection, id)
		return err
	})
	return doc, err
}

func (s *resilientStore) Create(ctx context.Context, collection string, fields Fields) (Document, error) {
	var doc Document
	err := s.call(ctx, "create", collection, false, func() error {
		var err error
		doc, err = s.next.Create(ctx, collection, fields)
		return err
	})
	return doc, err
}

func (s *resilientStore) Update(ctx context.Context, collection, id string, patch Fields) (Document, error) {
	var doc Document
	err := s.call(ctx, "update", collection, true, func() error {
		var err error
		doc, err = s.next.Update(ctx, collection, id, patch)
		return err
	})
	return doc, err
}

func (s *resilientStore) Delete(ctx context.Context, collection, id string) error {
	return s.call(ctx, "delete", collection, false, func() error {
		return s.next.Delete(ctx, collection, id)
	})
}

type resilientPinger struct {
	*resilientStore
	pinger Pinger
}

func (s *resilientPinger) Ping(ctx context.Context) error {
	return s.pinger.Ping(ctx)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
