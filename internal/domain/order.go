package domain

import "time"

// OrderStatus описывает жизненный цикл заказа витрины.
type OrderStatus string

const (
	// OrderStatusPending — заказ оформлен и ждёт обработки владельцем магазина.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusCompleted — заказ выдан/доставлен покупателю.
	OrderStatusCompleted OrderStatus = "completed"
	// OrderStatusCancelled — заказ отменён.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusCompleted, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// Order — запись заказа конкретного магазина (business).
// Total хранится в минимальных денежных единицах так, как его прислал клиент.
type Order struct {
	ID            string      `json:"id"`
	BusinessID    string      `json:"businessId"`
	OrderNumber   string      `json:"orderNumber"`
	CustomerName  string      `json:"customerName,omitempty"`
	CustomerPhone string      `json:"customerPhone,omitempty"`
	Total         int64       `json:"total"`
	ItemsCount    int         `json:"itemsCount"`
	Status        OrderStatus `json:"status"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// LineItem — позиция заказа. После создания не изменяется.
type LineItem struct {
	ID          string    `json:"id"`
	OrderID     string    `json:"orderId"`
	BusinessID  string    `json:"businessId"`
	ProductID   string    `json:"productId"`
	ProductName string    `json:"productName"`
	Quantity    int       `json:"quantity"`
	UnitPrice   int64     `json:"unitPrice"`
	Subtotal    int64     `json:"subtotal"`
	CreatedAt   time.Time `json:"createdAt"`
}

// RequestItem — позиция во входящем запросе на оформление заказа.
type RequestItem struct {
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unitPrice"`
	Subtotal    int64  `json:"subtotal"`
}

// OrderRequest — запрос на оформление заказа.
// Total и ItemsCount принимаются от клиента как есть и не пересчитываются.
type OrderRequest struct {
	BusinessID    string        `json:"businessId"`
	Items         []RequestItem `json:"items"`
	Total         int64         `json:"total"`
	ItemsCount    int           `json:"itemsCount"`
	CustomerName  string        `json:"customerName,omitempty"`
	CustomerPhone string        `json:"customerPhone,omitempty"`
}

// ValidateInvariants проверяет структуру запроса и возвращает список замечаний.
func (r *OrderRequest) ValidateInvariants() []error {
	var errs []error

	if r.BusinessID == "" {
		errs = append(errs, ErrBusinessRequired)
	}
	if len(r.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if r.Total < 0 {
		errs = append(errs, ErrAmountNegative)
	}
	for _, item := range r.Items {
		if item.ProductID == "" {
			errs = append(errs, ErrProductRequired)
		}
		if item.Quantity <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.UnitPrice < 0 || item.Subtotal < 0 {
			errs = append(errs, ErrItemPriceInvalid)
		}
	}

	return errs
}
