// Package httpapi — HTTP/JSON API магазина поверх chi.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/idempotency"
	"github.com/vladislavdragonenkov/storefront/internal/service/inventory"
)

const (
	// HeaderIdempotencyKey — заголовок ключа идемпотентности оформления заказа.
	HeaderIdempotencyKey = "Idempotency-Key"
	// HeaderIdempotentReplay выставляется, когда ответ взят из сохранённого.
	HeaderIdempotentReplay = "Idempotent-Replayed"

	defaultRequestTimeout = 30 * time.Second
	maxBodyBytes          = 1 << 20
)

// OrderService — операции с заказами, которые нужны API.
type OrderService interface {
	Create(ctx context.Context, req domain.OrderRequest) (domain.Order, error)
	List(ctx context.Context, businessID string, limit int) ([]domain.Order, error)
	Get(ctx context.Context, orderID string) (domain.Order, error)
	GetItems(ctx context.Context, orderID string) ([]domain.LineItem, error)
	GetStats(ctx context.Context, businessID string) (domain.OrderStats, error)
	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) (domain.Order, error)
}

// InventoryService — операции со складом.
type InventoryService interface {
	GetByProduct(ctx context.Context, productID string) (domain.Inventory, error)
	List(ctx context.Context, businessID string, limit int) ([]domain.Inventory, error)
	SetStock(ctx context.Context, businessID, productID string, update inventory.StockUpdate) (domain.Inventory, error)
}

// Server держит зависимости обработчиков.
type Server struct {
	orders    OrderService
	inventory InventoryService
	guard     *idempotency.Guard
	logger    *log.Entry
	timeout   time.Duration
}

// Option настраивает Server.
type Option func(*Server)

// WithIdempotencyGuard включает обязательный Idempotency-Key для POST /v1/orders.
func WithIdempotencyGuard(guard *idempotency.Guard) Option {
	return func(s *Server) {
		s.guard = guard
	}
}

// WithRequestTimeout задаёт таймаут обработки запроса.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(s *Server) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// NewServer создаёт Server.
func NewServer(orders OrderService, inv InventoryService, logger *log.Entry, opts ...Option) *Server {
	if logger == nil {
		logger = log.WithField("component", "http-api")
	}
	s := &Server{
		orders:    orders,
		inventory: inv,
		logger:    logger,
		timeout:   defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes собирает роутер.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/orders", s.createOrder)
		r.Route("/orders/{orderID}", func(r chi.Router) {
			r.Get("/", s.getOrder)
			r.Get("/items", s.getOrderItems)
			r.Patch("/status", s.updateOrderStatus)
		})
		r.Route("/businesses/{businessID}", func(r chi.Router) {
			r.Get("/orders", s.listOrders)
			r.Get("/orders/stats", s.orderStats)
			r.Get("/inventory", s.listInventory)
			r.Get("/inventory/{productID}", s.getInventory)
			r.Put("/inventory/{productID}", s.putInventory)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", nil)
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)

		entry := s.logger.WithFields(log.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"bytes":       ww.BytesWritten(),
			"duration_ms": time.Since(started).Milliseconds(),
			"request_id":  middleware.GetReqID(r.Context()),
		})
		if ww.Status() >= http.StatusInternalServerError {
			entry.Warn("request failed")
			return
		}
		entry.Debug("request served")
	})
}
