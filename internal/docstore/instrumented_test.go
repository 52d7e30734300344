package docstore_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/docstore"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

type observation struct {
	op, collection string
	err            error
}

type recordingObserver struct {
	mu  sync.Mutex
	obs []observation
}

func (r *recordingObserver) ObserveRequest(op, collection string, err error, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.obs = append(r.obs, observation{op: op, collection: collection, err: err})
}

func TestInstrument(t *testing.T) {
	ctx := context.Background()
	observer := &recordingObserver{}
	store := docstore.Instrument(memory.NewDocumentStore(), observer)

	doc, err := store.Create(ctx, "orders", docstore.Fields{"orderNumber": "ORD-001"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := store.Update(ctx, "orders", doc.ID, docstore.Fields{"status": "completed"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, err := store.List(ctx, "orders"); err != nil {
		t.Fatalf("List: %v", err)
	}
	if _, err := store.Get(ctx, "orders", "missing"); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.Delete(ctx, "orders", doc.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	wantOps := []string{"create", "update", "list", "get", "delete"}
	if len(observer.obs) != len(wantOps) {
		t.Fatalf("got %d observations, want %d", len(observer.obs), len(wantOps))
	}
	for i, op := range wantOps {
		if observer.obs[i].op != op || observer.obs[i].collection != "orders" {
			t.Fatalf("observation %d = %+v, want %s", i, observer.obs[i], op)
		}
	}
	if !errors.Is(observer.obs[3].err, docstore.ErrNotFound) {
		t.Fatalf("get error must be observed, got %v", observer.obs[3].err)
	}

	pinger, ok := store.(docstore.Pinger)
	if !ok {
		t.Fatal("instrumented memory store must keep Ping")
	}
	if err := pinger.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestInstrument_NilObserver(t *testing.T) {
	inner := memory.NewDocumentStore()
	if got := docstore.Instrument(inner, nil); got != docstore.Store(inner) {
		t.Fatal("nil observer must return the store unchanged")
	}
}
