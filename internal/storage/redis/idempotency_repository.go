// Package redis хранит ключи идемпотентности оформления заказа в Redis.
// TTL записи выставляется самим Redis, поэтому cleanup worker здесь не нужен.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	defaultKeyPrefix = "storefront:idempotency:"
	opTimeout        = 2 * time.Second
	markRetries      = 3
)

// record — JSON-представление domain.IdempotencyRecord в Redis.
type record struct {
	Key          string                   `json:"key"`
	RequestHash  string                   `json:"request_hash"`
	ResponseBody []byte                   `json:"response_body,omitempty"`
	HTTPStatus   int                      `json:"http_status,omitempty"`
	Status       domain.IdempotencyStatus `json:"status"`
	TTLAt        time.Time                `json:"ttl_at"`
	CreatedAt    time.Time                `json:"created_at"`
	UpdatedAt    time.Time                `json:"updated_at"`
}

func (r record) toDomain() domain.IdempotencyRecord {
	return domain.IdempotencyRecord{
		Key:          r.Key,
		RequestHash:  r.RequestHash,
		ResponseBody: append([]byte(nil), r.ResponseBody...),
		HTTPStatus:   r.HTTPStatus,
		Status:       r.Status,
		TTLAt:        r.TTLAt,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// IdempotencyRepository — реализация domain.IdempotencyRepository на go-redis.
type IdempotencyRepository struct {
	client goredis.UniversalClient
	prefix string
	now    func() time.Time
}

// Option настраивает IdempotencyRepository.
type Option func(*IdempotencyRepository)

// WithKeyPrefix задаёт префикс ключей.
func WithKeyPrefix(prefix string) Option {
	return func(r *IdempotencyRepository) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(r *IdempotencyRepository) {
		if now != nil {
			r.now = now
		}
	}
}

// NewClient разбирает redis:// URL и проверяет соединение.
func NewClient(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewIdempotencyRepository создаёт репозиторий поверх готового клиента.
func NewIdempotencyRepository(client goredis.UniversalClient, opts ...Option) *IdempotencyRepository {
	r := &IdempotencyRepository{
		client: client,
		prefix: defaultKeyPrefix,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Ping проверяет доступность Redis.
func (r *IdempotencyRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// CreateProcessing атомарно занимает ключ через SET NX с TTL до ttlAt.
func (r *IdempotencyRepository) CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (domain.IdempotencyRecord, error) {
	key = strings.TrimSpace(key)
	requestHash = strings.TrimSpace(requestHash)
	if key == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyRequired
	}
	if requestHash == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyRequestHashRequired
	}

	now := r.now()
	if ttlAt.IsZero() {
		ttlAt = now.Add(24 * time.Hour)
	}
	rec := record{
		Key:         key,
		RequestHash: requestHash,
		Status:      domain.IdempotencyStatusProcessing,
		TTLAt:       ttlAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("marshal idempotency record: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	ok, err := r.client.SetNX(ctx, r.prefix+key, payload, ttlUntil(now, ttlAt)).Result()
	if err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("create idempotency record: %w", err)
	}
	if ok {
		return rec.toDomain(), nil
	}

	existing, err := r.load(ctx, r.client, key)
	if err != nil {
		if errors.Is(err, domain.ErrIdempotencyKeyNotFound) {
			// ключ истёк между SETNX и GET
			return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyAlreadyExists
		}
		return domain.IdempotencyRecord{}, err
	}
	if existing.RequestHash != requestHash {
		return existing.toDomain(), domain.ErrIdempotencyHashMismatch
	}
	return existing.toDomain(), domain.ErrIdempotencyKeyAlreadyExists
}

func (r *IdempotencyRepository) Get(ctx context.Context, key string) (domain.IdempotencyRecord, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyRequired
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rec, err := r.load(ctx, r.client, key)
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}
	return rec.toDomain(), nil
}

func (r *IdempotencyRepository) MarkDone(ctx context.Context, key string, responseBody []byte, httpStatus int) error {
	return r.mark(ctx, key, domain.IdempotencyStatusDone, responseBody, httpStatus)
}

func (r *IdempotencyRepository) MarkFailed(ctx context.Context, key string, responseBody []byte, httpStatus int) error {
	return r.mark(ctx, key, domain.IdempotencyStatusFailed, responseBody, httpStatus)
}

// DeleteExpired ничего не делает: Redis удаляет ключи по TTL сам.
func (r *IdempotencyRepository) DeleteExpired(context.Context, time.Time, int) (int, error) {
	return 0, nil
}

// mark обновляет запись под WATCH, сохраняя оставшийся TTL.
func (r *IdempotencyRepository) mark(ctx context.Context, key string, status domain.IdempotencyStatus, body []byte, httpStatus int) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.ErrIdempotencyKeyRequired
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	redisKey := r.prefix + key
	txf := func(tx *goredis.Tx) error {
		rec, err := r.load(ctx, tx, key)
		if err != nil {
			return err
		}
		rec.Status = status
		rec.ResponseBody = append([]byte(nil), body...)
		rec.HTTPStatus = httpStatus
		rec.UpdatedAt = r.now()

		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal idempotency record: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, redisKey, payload, goredis.KeepTTL)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < markRetries; attempt++ {
		err := r.client.Watch(ctx, txf, redisKey)
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		if err != nil && !errors.Is(err, domain.ErrIdempotencyKeyNotFound) {
			return fmt.Errorf("mark idempotency key %s: %w", key, err)
		}
		return err
	}
	return fmt.Errorf("mark idempotency key %s: %w", key, goredis.TxFailedErr)
}

// getter — общее у *goredis.Client и *goredis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
}

func (r *IdempotencyRepository) load(ctx context.Context, c getter, key string) (record, error) {
	raw, err := c.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return record{}, domain.ErrIdempotencyKeyNotFound
		}
		return record{}, fmt.Errorf("get idempotency record: %w", err)
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return record{}, fmt.Errorf("decode idempotency record %s: %w", key, err)
	}
	if !rec.Status.Valid() {
		return record{}, fmt.Errorf("invalid idempotency status %q for key %s", rec.Status, key)
	}
	return rec, nil
}

// ttlUntil переводит абсолютный срок в TTL; истёкший срок даёт минимальный TTL.
func ttlUntil(now, ttlAt time.Time) time.Duration {
	ttl := ttlAt.Sub(now)
	if ttl < time.Millisecond {
		return time.Millisecond
	}
	return ttl
}

var _ domain.IdempotencyRepository = (*IdempotencyRepository)(nil)
