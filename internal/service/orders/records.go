package orders

import (
	"github.com/vladislavdragonenkov/storefront/internal/docstore"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Поля документов, по которым сервис фильтрует выборки.
const (
	fieldBusinessID = "businessId"
	fieldOrderID    = "orderId"
	fieldStatus     = "status"
)

type orderRecord struct {
	BusinessID    string             `json:"businessId"`
	OrderNumber   string             `json:"orderNumber"`
	CustomerName  string             `json:"customerName,omitempty"`
	CustomerPhone string             `json:"customerPhone,omitempty"`
	Total         int64              `json:"total"`
	ItemsCount    int                `json:"itemsCount"`
	Status        domain.OrderStatus `json:"status"`
}

type lineItemRecord struct {
	OrderID     string `json:"orderId"`
	BusinessID  string `json:"businessId"`
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unitPrice"`
	Subtotal    int64  `json:"subtotal"`
}

func decodeOrder(doc docstore.Document) (domain.Order, error) {
	var rec orderRecord
	if err := doc.Decode(&rec); err != nil {
		return domain.Order{}, err
	}
	return domain.Order{
		ID:            doc.ID,
		BusinessID:    rec.BusinessID,
		OrderNumber:   rec.OrderNumber,
		CustomerName:  rec.CustomerName,
		CustomerPhone: rec.CustomerPhone,
		Total:         rec.Total,
		ItemsCount:    rec.ItemsCount,
		Status:        rec.Status,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}, nil
}

func decodeLineItem(doc docstore.Document) (domain.LineItem, error) {
	var rec lineItemRecord
	if err := doc.Decode(&rec); err != nil {
		return domain.LineItem{}, err
	}
	return domain.LineItem{
		ID:          doc.ID,
		OrderID:     rec.OrderID,
		BusinessID:  rec.BusinessID,
		ProductID:   rec.ProductID,
		ProductName: rec.ProductName,
		Quantity:    rec.Quantity,
		UnitPrice:   rec.UnitPrice,
		Subtotal:    rec.Subtotal,
		CreatedAt:   doc.CreatedAt,
	}, nil
}
