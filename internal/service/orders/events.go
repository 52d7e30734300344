package orders

import (
	"context"
	"encoding/json"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func newOrderEvent(eventType domain.EventType, order domain.Order, items []domain.RequestItem, previous domain.OrderStatus) domain.OrderEvent {
	return domain.OrderEvent{
		EventType:      eventType,
		OrderID:        order.ID,
		BusinessID:     order.BusinessID,
		OrderNumber:    order.OrderNumber,
		Status:         order.Status,
		PreviousStatus: previous,
		Total:          order.Total,
		ItemsCount:     order.ItemsCount,
		Items:          items,
		Timestamp:      order.UpdatedAt,
	}
}

// enqueueEvent пишет событие в outbox. Ошибка записи не отменяет уже выполненную операцию.
func (s *Service) enqueueEvent(ctx context.Context, event domain.OrderEvent) {
	if s.outbox == nil {
		return
	}

	payload, err := json.Marshal(event)
	if err == nil {
		_, err = s.outbox.Enqueue(ctx, domain.OutboxMessage{
			AggregateType: domain.AggregateTypeOrder,
			AggregateID:   event.OrderID,
			EventType:     string(event.EventType),
			Payload:       payload,
		})
	}
	s.metrics.RecordOutboxEnqueue(err)
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id":   event.OrderID,
			"event_type": event.EventType,
		}).Error("failed to enqueue order event")
	}
}
