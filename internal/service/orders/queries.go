package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/docstore"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// List возвращает заказы магазина, новые первыми. limit <= 0 означает DefaultListLimit.
func (s *Service) List(ctx context.Context, businessID string, limit int) ([]domain.Order, error) {
	if businessID == "" {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, domain.ErrBusinessRequired)
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return s.listOrders(ctx, businessID, limit)
}

func (s *Service) listOrders(ctx context.Context, businessID string, limit int) ([]domain.Order, error) {
	docs, err := s.store.List(ctx, s.collections.Orders,
		docstore.Equal(fieldBusinessID, businessID),
		docstore.OrderDesc(docstore.FieldCreatedAt),
		docstore.Limit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list orders for %s: %w", businessID, err)
	}

	result := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		order, err := decodeOrder(doc)
		if err != nil {
			return nil, err
		}
		result = append(result, order)
	}
	return result, nil
}

// Get возвращает заказ по идентификатору или domain.ErrOrderNotFound.
func (s *Service) Get(ctx context.Context, orderID string) (domain.Order, error) {
	doc, err := s.store.Get(ctx, s.collections.Orders, orderID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return domain.Order{}, fmt.Errorf("order %s: %w", orderID, domain.ErrOrderNotFound)
		}
		return domain.Order{}, fmt.Errorf("get order %s: %w", orderID, err)
	}
	return decodeOrder(doc)
}

// GetItems возвращает позиции заказа (не больше ItemsLimit).
func (s *Service) GetItems(ctx context.Context, orderID string) ([]domain.LineItem, error) {
	docs, err := s.store.List(ctx, s.collections.OrderItems,
		docstore.Equal(fieldOrderID, orderID),
		docstore.Limit(ItemsLimit),
	)
	if err != nil {
		return nil, fmt.Errorf("list items for order %s: %w", orderID, err)
	}

	result := make([]domain.LineItem, 0, len(docs))
	for _, doc := range docs {
		item, err := decodeLineItem(doc)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, nil
}

// GetStats считает агрегаты дашборда в памяти по последним StatsOrdersLimit заказам
// и StatsItemsLimit позициям магазина. «Сегодня» начинается с локальной полуночи.
func (s *Service) GetStats(ctx context.Context, businessID string) (domain.OrderStats, error) {
	if businessID == "" {
		return domain.OrderStats{}, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, domain.ErrBusinessRequired)
	}

	orders, err := s.listOrders(ctx, businessID, StatsOrdersLimit)
	if err != nil {
		return domain.OrderStats{}, err
	}

	midnight := startOfDay(s.now(), s.location)
	stats := domain.OrderStats{TotalOrders: len(orders)}
	for _, order := range orders {
		stats.TotalRevenue += order.Total
		if !order.CreatedAt.Before(midnight) {
			stats.TodayOrders++
			stats.TodayRevenue += order.Total
		}
	}

	docs, err := s.store.List(ctx, s.collections.OrderItems,
		docstore.Equal(fieldBusinessID, businessID),
		docstore.Limit(StatsItemsLimit),
	)
	if err != nil {
		return domain.OrderStats{}, fmt.Errorf("list items for business %s: %w", businessID, err)
	}
	items := make([]domain.LineItem, 0, len(docs))
	for _, doc := range docs {
		item, err := decodeLineItem(doc)
		if err != nil {
			return domain.OrderStats{}, err
		}
		items = append(items, item)
	}
	stats.TopProducts = topProducts(items, TopProductsLimit)

	return stats, nil
}

// topProducts агрегирует позиции по товару и сортирует по количеству;
// при равенстве выше товар с меньшим productId.
func topProducts(items []domain.LineItem, limit int) []domain.TopProduct {
	index := make(map[string]int)
	products := make([]domain.TopProduct, 0)
	for _, item := range items {
		if i, ok := index[item.ProductID]; ok {
			products[i].TotalQuantity += item.Quantity
			products[i].TotalRevenue += item.Subtotal
			continue
		}
		index[item.ProductID] = len(products)
		products = append(products, domain.TopProduct{
			ProductID:     item.ProductID,
			ProductName:   item.ProductName,
			TotalQuantity: item.Quantity,
			TotalRevenue:  item.Subtotal,
		})
	}

	sort.SliceStable(products, func(i, j int) bool {
		if products[i].TotalQuantity != products[j].TotalQuantity {
			return products[i].TotalQuantity > products[j].TotalQuantity
		}
		return products[i].ProductID < products[j].ProductID
	})

	if len(products) > limit {
		products = products[:limit]
	}
	return products
}

func startOfDay(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// UpdateStatus меняет статус заказа (действие владельца магазина в админке).
func (s *Service) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) (domain.Order, error) {
	if !status.Valid() {
		return domain.Order{}, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, status)
	}

	current, err := s.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if current.Status == status {
		return current, nil
	}

	doc, err := s.store.Update(ctx, s.collections.Orders, orderID, docstore.Fields{fieldStatus: string(status)})
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return domain.Order{}, fmt.Errorf("order %s: %w", orderID, domain.ErrOrderNotFound)
		}
		return domain.Order{}, fmt.Errorf("update order %s status: %w", orderID, err)
	}
	updated, err := decodeOrder(doc)
	if err != nil {
		return domain.Order{}, err
	}

	s.metrics.RecordStatusChange(string(status))
	s.enqueueEvent(ctx, newOrderEvent(domain.EventTypeOrderStatusChanged, updated, nil, current.Status))
	s.logger.WithFields(log.Fields{
		"order_id":     updated.ID,
		"order_number": updated.OrderNumber,
		"from":         current.Status,
		"to":           status,
	}).Info("order status changed")

	return updated, nil
}
