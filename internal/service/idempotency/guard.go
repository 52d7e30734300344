package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// DefaultTTL — сколько хранится ответ по ключу.
const DefaultTTL = 24 * time.Hour

// markTimeout ограничивает сохранение результата после завершения fn.
const markTimeout = 5 * time.Second

// Response — сохраняемый ответ защищённой операции.
type Response struct {
	Status int
	Body   []byte
}

// Guard выполняет операцию не больше одного раза на idempotency-key
// и повторно отдаёт сохранённый ответ.
type Guard struct {
	repo   domain.IdempotencyRepository
	ttl    time.Duration
	logger *log.Entry
	now    func() time.Time
}

// NewGuard создаёт Guard. ttl <= 0 означает DefaultTTL.
func NewGuard(repo domain.IdempotencyRepository, ttl time.Duration, logger *log.Entry) *Guard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = log.WithField("component", "idempotency")
	}
	return &Guard{
		repo:   repo,
		ttl:    ttl,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// HashRequest строит отпечаток запроса, с которым связывается ключ.
func HashRequest(method string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// Do запускает fn, если ключ новый, иначе возвращает сохранённый ответ (replayed=true).
// Ошибки:
//   - domain.ErrIdempotencyHashMismatch — ключ уже использован с другим запросом;
//   - domain.ErrIdempotencyKeyAlreadyExists — запрос с этим ключом ещё выполняется.
//
// Ответы со статусом >= 400 тоже сохраняются: повтор частично оформленного
// заказа не должен создавать второй заказ.
func (g *Guard) Do(ctx context.Context, key, requestHash string, fn func(context.Context) Response) (resp Response, replayed bool, err error) {
	record, err := g.repo.CreateProcessing(ctx, key, requestHash, g.now().Add(g.ttl))
	if err != nil {
		return g.replay(record, err)
	}

	resp = fn(ctx)

	// Результат сохраняется и после отмены запроса (таймаут, обрыв соединения),
	// иначе ключ останется в processing до истечения TTL.
	markCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), markTimeout)
	defer cancel()

	entry := g.logger.WithFields(log.Fields{
		"idempotency_key": key,
		"status":          resp.Status,
	})
	if resp.Status >= 400 {
		if markErr := g.repo.MarkFailed(markCtx, key, resp.Body, resp.Status); markErr != nil {
			entry.WithError(markErr).Warn("failed to store idempotency failure response")
		}
		return resp, false, nil
	}
	if markErr := g.repo.MarkDone(markCtx, key, resp.Body, resp.Status); markErr != nil {
		entry.WithError(markErr).Warn("failed to store idempotent success response")
	}
	return resp, false, nil
}

func (g *Guard) replay(record domain.IdempotencyRecord, createErr error) (Response, bool, error) {
	switch {
	case errors.Is(createErr, domain.ErrIdempotencyHashMismatch):
		return Response{}, false, createErr
	case errors.Is(createErr, domain.ErrIdempotencyKeyAlreadyExists):
		switch record.Status {
		case domain.IdempotencyStatusDone, domain.IdempotencyStatusFailed:
			return Response{Status: record.HTTPStatus, Body: record.ResponseBody}, true, nil
		case domain.IdempotencyStatusProcessing:
			return Response{}, false, createErr
		default:
			return Response{}, false, fmt.Errorf("unknown idempotency record status %q", record.Status)
		}
	default:
		return Response{}, false, fmt.Errorf("create idempotency record: %w", createErr)
	}
}
