package domain

import "time"

// EventType определяет тип доменного события заказа.
type EventType string

const (
	EventTypeOrderCreated       EventType = "order.created"
	EventTypeOrderStatusChanged EventType = "order.status_changed"
)

// AggregateTypeOrder — тип агрегата для outbox-сообщений о заказах.
const AggregateTypeOrder = "order"

// OrderEvent — полезная нагрузка события заказа, которая уходит в outbox.
type OrderEvent struct {
	EventType      EventType     `json:"event_type"`
	OrderID        string        `json:"order_id"`
	BusinessID     string        `json:"business_id"`
	OrderNumber    string        `json:"order_number"`
	Status         OrderStatus   `json:"status"`
	PreviousStatus OrderStatus   `json:"previous_status,omitempty"`
	Total          int64         `json:"total"`
	ItemsCount     int           `json:"items_count"`
	Items          []RequestItem `json:"items,omitempty"`
	Timestamp      time.Time     `json:"timestamp"`
}
