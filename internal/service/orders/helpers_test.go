package orders_test

import (
	"context"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/docstore"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/orders"
	"github.com/vladislavdragonenkov/storefront/internal/storage/document"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

// testClock — управляемые часы, общие для хранилища и сервиса.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// hookStore оборачивает хранилище и позволяет вмешаться в конкретный вызов.
type hookStore struct {
	docstore.Store

	mu      sync.Mutex
	lists   map[string]int
	creates map[string]int
	// beforeList вызывается перед n-м List по коллекции.
	beforeList func(collection string, n int)
	// failCreate возвращает ошибку для n-го Create по коллекции.
	failCreate func(collection string, n int) error
	// failList возвращает ошибку для n-го List по коллекции.
	failList func(collection string, n int) error
}

func newHookStore(inner docstore.Store) *hookStore {
	return &hookStore{
		Store:   inner,
		lists:   make(map[string]int),
		creates: make(map[string]int),
	}
}

func (h *hookStore) List(ctx context.Context, collection string, opts ...docstore.QueryOption) ([]docstore.Document, error) {
	h.mu.Lock()
	h.lists[collection]++
	n := h.lists[collection]
	h.mu.Unlock()

	if h.beforeList != nil {
		h.beforeList(collection, n)
	}
	if h.failList != nil {
		if err := h.failList(collection, n); err != nil {
			return nil, err
		}
	}
	return h.Store.List(ctx, collection, opts...)
}

func (h *hookStore) Create(ctx context.Context, collection string, fields docstore.Fields) (docstore.Document, error) {
	h.mu.Lock()
	h.creates[collection]++
	n := h.creates[collection]
	h.mu.Unlock()

	if h.failCreate != nil {
		if err := h.failCreate(collection, n); err != nil {
			return docstore.Document{}, err
		}
	}
	return h.Store.Create(ctx, collection, fields)
}

type fixture struct {
	t      *testing.T
	ctx    context.Context
	clock  *testClock
	mem    *memory.DocumentStore
	hooks  *hookStore
	outbox *document.OutboxRepository
	svc    *orders.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := &testClock{now: time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)}
	mem := memory.NewDocumentStore(memory.WithClock(clock.Now))
	hooks := newHookStore(mem)
	outbox := document.NewOutboxRepository(mem, "outbox")

	logger := log.New()
	logger.SetLevel(log.PanicLevel)

	svc := orders.NewService(hooks, orders.DefaultCollections(), log.NewEntry(logger),
		orders.WithOutbox(outbox),
		orders.WithClock(clock.Now, time.UTC),
	)

	return &fixture{
		t:      t,
		ctx:    context.Background(),
		clock:  clock,
		mem:    mem,
		hooks:  hooks,
		outbox: outbox,
		svc:    svc,
	}
}

// seedStock создаёт запись остатков и возвращает её id.
func (f *fixture) seedStock(businessID, productID string, stock int) string {
	f.t.Helper()
	doc, err := f.mem.Create(f.ctx, "inventory", docstore.Fields{
		"productId":  productID,
		"businessId": businessID,
		"stock":      stock,
		"minStock":   0,
	})
	if err != nil {
		f.t.Fatalf("seed inventory: %v", err)
	}
	return doc.ID
}

// seedOrder кладёт заказ напрямую в хранилище, минуя сервис.
func (f *fixture) seedOrder(businessID, number string, total int64) string {
	f.t.Helper()
	doc, err := f.mem.Create(f.ctx, "orders", docstore.Fields{
		"businessId":  businessID,
		"orderNumber": number,
		"total":       total,
		"itemsCount":  1,
		"status":      "pending",
	})
	if err != nil {
		f.t.Fatalf("seed order: %v", err)
	}
	return doc.ID
}

func (f *fixture) stock(productID string) int {
	f.t.Helper()
	docs, err := f.mem.List(f.ctx, "inventory", docstore.Equal("productId", productID))
	if err != nil {
		f.t.Fatalf("list inventory: %v", err)
	}
	if len(docs) == 0 {
		f.t.Fatalf("no inventory for %s", productID)
	}
	var rec struct {
		Stock int `json:"stock"`
	}
	if err := docs[0].Decode(&rec); err != nil {
		f.t.Fatalf("decode inventory: %v", err)
	}
	return rec.Stock
}

func (f *fixture) pendingEvents() []domain.OutboxMessage {
	f.t.Helper()
	events, err := f.outbox.PullPending(f.ctx, 100)
	if err != nil {
		f.t.Fatalf("pull outbox: %v", err)
	}
	return events
}

func item(productID, name string, qty int, price int64) domain.RequestItem {
	return domain.RequestItem{
		ProductID:   productID,
		ProductName: name,
		Quantity:    qty,
		UnitPrice:   price,
		Subtotal:    int64(qty) * price,
	}
}

func request(businessID string, items ...domain.RequestItem) domain.OrderRequest {
	req := domain.OrderRequest{BusinessID: businessID, Items: items}
	for _, it := range items {
		req.Total += it.Subtotal
		req.ItemsCount += it.Quantity
	}
	return req
}
