// Package document содержит репозитории, которые хранят служебные данные
// в той же документной базе, что и заказы.
package document

import (
	"context"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/storefront/internal/docstore"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// statsScanLimit ограничивает выборку для Stats: хранилище не умеет считать документы.
const statsScanLimit = 1000

type outboxRecord struct {
	AggregateType string              `json:"aggregateType"`
	AggregateID   string              `json:"aggregateId"`
	EventType     string              `json:"eventType"`
	Payload       string              `json:"payload"`
	Status        domain.OutboxStatus `json:"status"`
}

// OutboxRepository хранит outbox-сообщения отдельной коллекцией документов.
type OutboxRepository struct {
	store      docstore.Store
	collection string
}

// NewOutboxRepository создаёт outbox поверх store.
func NewOutboxRepository(store docstore.Store, collection string) *OutboxRepository {
	if collection == "" {
		collection = "outbox"
	}
	return &OutboxRepository{store: store, collection: collection}
}

// Enqueue сохраняет событие со статусом pending. Идентификатор назначает хранилище.
func (r *OutboxRepository) Enqueue(ctx context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	fields, err := docstore.Encode(outboxRecord{
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		EventType:     msg.EventType,
		Payload:       string(msg.Payload),
		Status:        domain.OutboxStatusPending,
	})
	if err != nil {
		return domain.OutboxMessage{}, err
	}

	doc, err := r.store.Create(ctx, r.collection, fields)
	if err != nil {
		return domain.OutboxMessage{}, fmt.Errorf("enqueue outbox message: %w", err)
	}
	return decodeOutbox(doc)
}

// PullPending возвращает до limit самых старых pending-сообщений.
func (r *OutboxRepository) PullPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	docs, err := r.store.List(ctx, r.collection,
		docstore.Equal("status", string(domain.OutboxStatusPending)),
		docstore.OrderAsc(docstore.FieldCreatedAt),
		docstore.Limit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("pull pending outbox messages: %w", err)
	}

	result := make([]domain.OutboxMessage, 0, len(docs))
	for _, doc := range docs {
		msg, err := decodeOutbox(doc)
		if err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	return result, nil
}

// Stats возвращает размер backlog (не больше statsScanLimit) и время самого старого сообщения.
func (r *OutboxRepository) Stats(ctx context.Context) (domain.OutboxStats, error) {
	docs, err := r.store.List(ctx, r.collection,
		docstore.Equal("status", string(domain.OutboxStatusPending)),
		docstore.OrderAsc(docstore.FieldCreatedAt),
		docstore.Limit(statsScanLimit),
	)
	if err != nil {
		return domain.OutboxStats{}, fmt.Errorf("outbox stats: %w", err)
	}

	stats := domain.OutboxStats{PendingCount: len(docs)}
	if len(docs) > 0 {
		stats.OldestPendingAt = docs[0].CreatedAt
	}
	return stats, nil
}

// MarkSent переводит сообщение в статус sent.
func (r *OutboxRepository) MarkSent(ctx context.Context, id string) error {
	return r.mark(ctx, id, domain.OutboxStatusSent)
}

// MarkFailed переводит сообщение в статус failed.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id string) error {
	return r.mark(ctx, id, domain.OutboxStatusFailed)
}

func (r *OutboxRepository) mark(ctx context.Context, id string, status domain.OutboxStatus) error {
	if _, err := r.store.Update(ctx, r.collection, id, docstore.Fields{"status": string(status)}); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return fmt.Errorf("%s: %w", id, domain.ErrOutboxMessageNotFound)
		}
		return fmt.Errorf("mark outbox message %s as %s: %w", id, status, err)
	}
	return nil
}

func decodeOutbox(doc docstore.Document) (domain.OutboxMessage, error) {
	var rec outboxRecord
	if err := doc.Decode(&rec); err != nil {
		return domain.OutboxMessage{}, err
	}
	return domain.OutboxMessage{
		ID:            doc.ID,
		AggregateType: rec.AggregateType,
		AggregateID:   rec.AggregateID,
		EventType:     rec.EventType,
		Payload:       []byte(rec.Payload),
		CreatedAt:     doc.CreatedAt,
	}, nil
}

var _ domain.OutboxRepository = (*OutboxRepository)(nil)
