package orders

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/docstore"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

// Фазы оформления (лейбл метрик и поле логов).
const (
	phaseValidateStock = "validate_stock"
	phaseAllocate      = "allocate_number"
	phaseCreateOrder   = "create_order"
	phaseLineItems     = "line_items"
)

// Create оформляет заказ в четыре последовательные фазы:
// проверка остатков, выдача номера, запись заказа, позиции со списанием остатков.
//
// Хранилище не даёт транзакций, поэтому:
//   - между проверкой и списанием остаток может измениться (списание идёт от свежего значения);
//   - два параллельных оформления могут получить одинаковый номер;
//   - при ошибке в третьей или четвёртой фазе уже созданные записи не откатываются,
//     ошибка оборачивается в *domain.PartialOrderError.
func (s *Service) Create(ctx context.Context, req domain.OrderRequest) (domain.Order, error) {
	start := s.now()
	s.metrics.CheckoutStarted()

	logger := s.logger.WithFields(log.Fields{
		"business_id": req.BusinessID,
		"items":       len(req.Items),
	})

	order, err := s.create(ctx, req, logger)
	s.metrics.CheckoutFinished(outcomeOf(err), s.now().Sub(start))
	if err != nil {
		return domain.Order{}, err
	}

	s.enqueueEvent(ctx, newOrderEvent(domain.EventTypeOrderCreated, order, req.Items, ""))
	logger.WithFields(log.Fields{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"total":        order.Total,
	}).Info("order created")

	return order, nil
}

func (s *Service) create(ctx context.Context, req domain.OrderRequest, logger *log.Entry) (domain.Order, error) {
	if errs := req.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, errors.Join(errs...))
	}

	phaseStart := s.now()
	if err := s.validateStock(ctx, req.Items); err != nil {
		if domain.IsStockError(err) {
			logger.WithError(err).Warn("checkout rejected by stock validation")
		}
		return domain.Order{}, err
	}
	s.metrics.RecordPhaseDuration(phaseValidateStock, s.now().Sub(phaseStart))

	phaseStart = s.now()
	number, err := s.allocateOrderNumber(ctx, req.BusinessID)
	if err != nil {
		return domain.Order{}, err
	}
	s.metrics.RecordPhaseDuration(phaseAllocate, s.now().Sub(phaseStart))

	phaseStart = s.now()
	order, err := s.createOrderRecord(ctx, req, number)
	if err != nil {
		return domain.Order{}, err
	}
	s.metrics.RecordPhaseDuration(phaseCreateOrder, s.now().Sub(phaseStart))

	phaseStart = s.now()
	for i, item := range req.Items {
		if err := s.createLineItem(ctx, order, item); err != nil {
			return domain.Order{}, s.partial(order, i, domain.StepLineItem, err, logger)
		}
		if err := s.decrementStock(ctx, item, logger); err != nil {
			return domain.Order{}, s.partial(order, i, domain.StepStockDecrement, err, logger)
		}
	}
	s.metrics.RecordPhaseDuration(phaseLineItems, s.now().Sub(phaseStart))

	return order, nil
}

// validateStock проверяет каждую позицию по текущему состоянию склада.
// Резерв между позициями не ведётся: два одинаковых товара проверяются независимо.
func (s *Service) validateStock(ctx context.Context, items []domain.RequestItem) error {
	for _, item := range items {
		inv, found, err := s.inventory.FindByProduct(ctx, item.ProductID)
		if err != nil {
			return fmt.Errorf("%s: %w", phaseValidateStock, err)
		}
		if !found {
			return &domain.NoInventoryRecordError{Product: productLabel(item)}
		}
		if inv.Stock < item.Quantity {
			return &domain.InsufficientStockError{
				Product:   productLabel(item),
				Available: inv.Stock,
				Requested: item.Quantity,
			}
		}
	}
	return nil
}

// allocateOrderNumber читает последний заказ магазина и выдаёт следующий номер.
func (s *Service) allocateOrderNumber(ctx context.Context, businessID string) (string, error) {
	docs, err := s.store.List(ctx, s.collections.Orders,
		docstore.Equal(fieldBusinessID, businessID),
		docstore.OrderDesc(docstore.FieldCreatedAt),
		docstore.Limit(1),
	)
	if err != nil {
		return "", fmt.Errorf("%s: list last order: %w", phaseAllocate, err)
	}

	last := ""
	if len(docs) > 0 {
		var rec orderRecord
		if err := docs[0].Decode(&rec); err != nil {
			return "", fmt.Errorf("%s: %w", phaseAllocate, err)
		}
		last = rec.OrderNumber
	}

	number, err := domain.NextOrderNumber(last)
	if err != nil {
		return "", fmt.Errorf("%s: %w", phaseAllocate, err)
	}
	return number, nil
}

func (s *Service) createOrderRecord(ctx context.Context, req domain.OrderRequest, number string) (domain.Order, error) {
	fields, err := docstore.Encode(orderRecord{
		BusinessID:    req.BusinessID,
		OrderNumber:   number,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		Total:         req.Total,
		ItemsCount:    req.ItemsCount,
		Status:        domain.OrderStatusPending,
	})
	if err != nil {
		return domain.Order{}, fmt.Errorf("%s: %w", phaseCreateOrder, err)
	}

	doc, err := s.store.Create(ctx, s.collections.Orders, fields)
	if err != nil {
		return domain.Order{}, fmt.Errorf("%s %s: %w", phaseCreateOrder, number, err)
	}
	return decodeOrder(doc)
}

func (s *Service) createLineItem(ctx context.Context, order domain.Order, item domain.RequestItem) error {
	fields, err := docstore.Encode(lineItemRecord{
		OrderID:     order.ID,
		BusinessID:  order.BusinessID,
		ProductID:   item.ProductID,
		ProductName: item.ProductName,
		Quantity:    item.Quantity,
		UnitPrice:   item.UnitPrice,
		Subtotal:    item.Subtotal,
	})
	if err != nil {
		return err
	}
	if _, err := s.store.Create(ctx, s.collections.OrderItems, fields); err != nil {
		return fmt.Errorf("create line item %s: %w", item.ProductID, err)
	}
	return nil
}

// decrementStock перечитывает остаток и списывает количество от свежего значения.
// Если запись остатков исчезла после проверки, списание молча пропускается.
func (s *Service) decrementStock(ctx context.Context, item domain.RequestItem, logger *log.Entry) error {
	inv, found, err := s.inventory.FindByProduct(ctx, item.ProductID)
	if err != nil {
		return err
	}
	if !found {
		s.metrics.RecordDecrementSkipped()
		logger.WithField("product_id", item.ProductID).Warn("inventory record disappeared before decrement, skipping")
		return nil
	}

	next := inv.Stock - item.Quantity
	if err := s.inventory.SetStock(ctx, inv.ID, next); err != nil {
		return err
	}
	s.metrics.RecordStockDecrement()
	logger.WithFields(log.Fields{
		"product_id": item.ProductID,
		"from":       inv.Stock,
		"to":         next,
	}).Debug("stock decremented")
	return nil
}

func (s *Service) partial(order domain.Order, completed int, step string, err error, logger *log.Entry) error {
	logger.WithError(err).WithFields(log.Fields{
		"order_id":        order.ID,
		"order_number":    order.OrderNumber,
		"completed_items": completed,
		"failed_step":     step,
	}).Error("order partially created, manual reconciliation required")

	return &domain.PartialOrderError{
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		CompletedItems: completed,
		FailedStep:     step,
		Err:            fmt.Errorf("%s: %w", phaseLineItems, err),
	}
}

func outcomeOf(err error) string {
	var partial *domain.PartialOrderError
	switch {
	case err == nil:
		return metrics.OutcomeCreated
	case errors.As(err, &partial):
		return metrics.OutcomePartial
	case errors.Is(err, domain.ErrInvalidRequest):
		return metrics.OutcomeInvalid
	case errors.Is(err, domain.ErrNoInventoryRecord):
		return metrics.OutcomeNoInventory
	case errors.Is(err, domain.ErrInsufficientStock):
		return metrics.OutcomeInsufficientStock
	default:
		return metrics.OutcomeFailed
	}
}

func productLabel(item domain.RequestItem) string {
	if item.ProductName != "" {
		return item.ProductName
	}
	return item.ProductID
}
