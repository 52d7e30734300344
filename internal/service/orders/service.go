// Package orders реализует оформление и чтение заказов витрины поверх
// удалённого документного хранилища без транзакций.
package orders

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/docstore"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/inventory"
)

const (
	// DefaultListLimit — лимит выдачи list, если клиент не указал свой.
	DefaultListLimit = 100
	// MaxListLimit ограничивает лимит сверху.
	MaxListLimit = 1000
	// ItemsLimit — сколько позиций читается для одного заказа.
	ItemsLimit = 100
	// StatsOrdersLimit и StatsItemsLimit — окно выборки для статистики дашборда.
	StatsOrdersLimit = 1000
	StatsItemsLimit  = 10000
	// TopProductsLimit — размер рейтинга товаров.
	TopProductsLimit = 5
)

// Collections — имена коллекций, с которыми работает сервис.
type Collections struct {
	Inventory  string
	Orders     string
	OrderItems string
}

// DefaultCollections возвращает имена коллекций по умолчанию.
func DefaultCollections() Collections {
	return Collections{
		Inventory:  "inventory",
		Orders:     "orders",
		OrderItems: "order_items",
	}
}

// WithDefaults подставляет имена по умолчанию вместо пустых.
func (c Collections) WithDefaults() Collections {
	def := DefaultCollections()
	if c.Inventory == "" {
		c.Inventory = def.Inventory
	}
	if c.Orders == "" {
		c.Orders = def.Orders
	}
	if c.OrderItems == "" {
		c.OrderItems = def.OrderItems
	}
	return c
}

// Service — сервис заказов.
type Service struct {
	store       docstore.Store
	collections Collections
	inventory   *inventory.Repository
	outbox      domain.OutboxRepository
	metrics     *metrics.CheckoutMetrics
	logger      *log.Entry
	now         func() time.Time
	location    *time.Location
}

// Option настраивает Service.
type Option func(*Service)

// WithOutbox включает запись событий заказа в outbox.
func WithOutbox(repo domain.OutboxRepository) Option {
	return func(s *Service) {
		s.outbox = repo
	}
}

// WithMetrics подключает метрики оформления.
func WithMetrics(m *metrics.CheckoutMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock задаёт источник времени и часовой пояс, по которому считается «сегодня».
func WithClock(now func() time.Time, location *time.Location) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
		if location != nil {
			s.location = location
		}
	}
}

// NewService создаёт сервис заказов.
func NewService(store docstore.Store, collections Collections, logger *log.Entry, opts ...Option) *Service {
	if logger == nil {
		logger = log.WithField("component", "orders")
	}
	collections = collections.WithDefaults()
	s := &Service{
		store:       store,
		collections: collections,
		inventory:   inventory.NewRepository(store, collections.Inventory),
		logger:      logger,
		now:         time.Now,
		location:    time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
