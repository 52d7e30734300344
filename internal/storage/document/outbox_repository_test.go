package document_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/document"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func newRepo() *document.OutboxRepository {
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		current = current.Add(time.Second)
		return current
	}
	return document.NewOutboxRepository(memory.NewDocumentStore(memory.WithClock(clock)), "outbox")
}

func TestOutboxRepository_EnqueuePull(t *testing.T) {
	ctx := context.Background()
	repo := newRepo()

	first, err := repo.Enqueue(ctx, domain.OutboxMessage{
		AggregateType: domain.AggregateTypeOrder,
		AggregateID:   "order-1",
		EventType:     string(domain.EventTypeOrderCreated),
		Payload:       []byte(`{"order_id":"order-1"}`),
	})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if first.ID == "" {
		t.Fatal("expected store-assigned id")
	}
	if _, err := repo.Enqueue(ctx, domain.OutboxMessage{AggregateID: "order-2", EventType: "order.created", Payload: []byte(`{}`)}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	pending, err := repo.PullPending(ctx, 10)
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending messages, got %d", len(pending))
	}
	if pending[0].AggregateID != "order-1" {
		t.Fatalf("expected oldest message first, got %s", pending[0].AggregateID)
	}
	if string(pending[0].Payload) != `{"order_id":"order-1"}` {
		t.Fatalf("payload must round trip, got %s", pending[0].Payload)
	}
}

func TestOutboxRepository_MarkAndStats(t *testing.T) {
	ctx := context.Background()
	repo := newRepo()

	sent, _ := repo.Enqueue(ctx, domain.OutboxMessage{AggregateID: "order-1", EventType: "order.created"})
	failed, _ := repo.Enqueue(ctx, domain.OutboxMessage{AggregateID: "order-2", EventType: "order.created"})
	pending, _ := repo.Enqueue(ctx, domain.OutboxMessage{AggregateID: "order-3", EventType: "order.created"})

	if err := repo.MarkSent(ctx, sent.ID); err != nil {
		t.Fatalf("mark sent failed: %v", err)
	}
	if err := repo.MarkFailed(ctx, failed.ID); err != nil {
		t.Fatalf("mark failed failed: %v", err)
	}

	stats, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.PendingCount != 1 {
		t.Fatalf("expected 1 pending message, got %d", stats.PendingCount)
	}
	if !stats.OldestPendingAt.Equal(pending.CreatedAt) {
		t.Fatalf("expected oldest pending at %s, got %s", pending.CreatedAt, stats.OldestPendingAt)
	}

	if err := repo.MarkSent(ctx, "missing"); !errors.Is(err, domain.ErrOutboxMessageNotFound) {
		t.Fatalf("expected ErrOutboxMessageNotFound, got %v", err)
	}
}
