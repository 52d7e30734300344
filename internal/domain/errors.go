package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest — общий признак структурно некорректного запроса.
	ErrInvalidRequest = errors.New("invalid request")
	// Ошибка отсутствующего идентификатора магазина.
	ErrBusinessRequired = errors.New("businessId is required")
	// Ошибка отсутствующего идентификатора товара.
	ErrProductRequired = errors.New("productId is required")
	// Ошибка отсутствия хотя бы одного товара в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка отрицательной суммы заказа.
	ErrAmountNegative = errors.New("total must be non-negative")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item quantity must be greater than zero")
	// Ошибка, если цена или подытог позиции отрицательные.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка отрицательного остатка при ручной установке.
	ErrStockNegative = errors.New("stock must be non-negative")
	// ErrInvalidStatus — статус заказа вне допустимого набора.
	ErrInvalidStatus = errors.New("invalid order status")
	// ErrOrderNotFound возвращается, если заказ не найден.
	ErrOrderNotFound = errors.New("order not found")
	// ErrInventoryNotFound возвращается, если у товара нет складской записи.
	ErrInventoryNotFound = errors.New("inventory record not found")
	// ErrInventoryForeign — складская запись товара принадлежит другому магазину.
	ErrInventoryForeign = errors.New("inventory record belongs to another business")
	// ErrNoInventoryRecord — оформление заказа невозможно: у товара нет складской записи.
	ErrNoInventoryRecord = errors.New("no inventory record")
	// ErrInsufficientStock — оформление заказа невозможно: остатка не хватает.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrOrderNumberMalformed — у последнего заказа номер без числового суффикса.
	ErrOrderNumberMalformed = errors.New("malformed order number")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
	// ErrOutboxMessageNotFound — сообщение outbox не найдено.
	ErrOutboxMessageNotFound = errors.New("outbox message not found")

	// Ошибки idempotency-key.
	ErrIdempotencyKeyRequired         = errors.New("idempotency key is required")
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	ErrIdempotencyKeyNotFound         = errors.New("idempotency key not found")
	ErrIdempotencyKeyAlreadyExists    = errors.New("idempotency key already exists")
	ErrIdempotencyHashMismatch        = errors.New("idempotency key reused with different request")
)

// NoInventoryRecordError сообщает, что для товара нет складской записи.
type NoInventoryRecordError struct {
	Product string
}

func (e *NoInventoryRecordError) Error() string {
	return fmt.Sprintf("no inventory record for product %q", e.Product)
}

func (e *NoInventoryRecordError) Unwrap() error { return ErrNoInventoryRecord }

// InsufficientStockError сообщает, что запрошено больше, чем есть на складе.
type InsufficientStockError struct {
	Product   string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %q: available %d, requested %d", e.Product, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// IsStockError проверяет, что ошибка пришла из проверки остатков.
func IsStockError(err error) bool {
	return errors.Is(err, ErrNoInventoryRecord) || errors.Is(err, ErrInsufficientStock)
}

// IsIdempotencyConflict проверяет, что ключ уже использован.
func IsIdempotencyConflict(err error) bool {
	return errors.Is(err, ErrIdempotencyKeyAlreadyExists) || errors.Is(err, ErrIdempotencyHashMismatch)
}

// Шаги обработки позиции, на которых может прерваться оформление.
const (
	// StepLineItem — позиция не создана.
	StepLineItem = "line_item"
	// StepStockDecrement — позиция создана, остаток не списан.
	StepStockDecrement = "stock_decrement"
)

// PartialOrderError сообщает, что запись заказа уже создана, но оформление
// прервалось на позициях или списании остатков. Созданное не откатывается.
// CompletedItems — позиции, прошедшие оба шага; FailedStep уточняет, что
// успело записаться для позиции с индексом CompletedItems.
type PartialOrderError struct {
	OrderID        string
	OrderNumber    string
	CompletedItems int
	FailedStep     string
	Err            error
}

func (e *PartialOrderError) Error() string {
	return fmt.Sprintf("order %s (%s) partially created, %d items completed, failed at %s: %v",
		e.OrderNumber, e.OrderID, e.CompletedItems, e.FailedStep, e.Err)
}

func (e *PartialOrderError) Unwrap() error { return e.Err }
