package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestDescribeError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{
			name:   "validation",
			err:    fmt.Errorf("%w: %w", domain.ErrInvalidRequest, domain.ErrItemsRequired),
			status: http.StatusBadRequest,
			code:   "invalid_request",
		},
		{
			name:   "invalid status",
			err:    domain.ErrInvalidStatus,
			status: http.StatusBadRequest,
			code:   "invalid_request",
		},
		{
			name:   "order not found",
			err:    fmt.Errorf("order o-1: %w", domain.ErrOrderNotFound),
			status: http.StatusNotFound,
			code:   "not_found",
		},
		{
			name:   "inventory not found",
			err:    domain.ErrInventoryNotFound,
			status: http.StatusNotFound,
			code:   "not_found",
		},
		{
			name:   "no inventory record",
			err:    &domain.NoInventoryRecordError{Product: "Tea"},
			status: http.StatusConflict,
			code:   "no_inventory_record",
		},
		{
			name:   "insufficient stock",
			err:    &domain.InsufficientStockError{Product: "Tea", Available: 1, Requested: 3},
			status: http.StatusConflict,
			code:   "insufficient_stock",
		},
		{
			name:   "partial order",
			err:    &domain.PartialOrderError{OrderID: "o-1", OrderNumber: "ORD-001", CompletedItems: 1, Err: errors.New("boom")},
			status: http.StatusInternalServerError,
			code:   "partial_order",
		},
		{
			name:   "key required",
			err:    domain.ErrIdempotencyKeyRequired,
			status: http.StatusBadRequest,
			code:   "idempotency_key_required",
		},
		{
			name:   "hash mismatch",
			err:    domain.ErrIdempotencyHashMismatch,
			status: http.StatusUnprocessableEntity,
			code:   "idempotency_key_reused",
		},
		{
			name:   "in progress",
			err:    domain.ErrIdempotencyKeyAlreadyExists,
			status: http.StatusConflict,
			code:   "request_in_progress",
		},
		{
			name:   "unknown",
			err:    errors.New("connection reset"),
			status: http.StatusInternalServerError,
			code:   "internal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			status, body := describeError(tt.err)
			if status != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, status)
			}
			if body.Error != tt.code {
				t.Fatalf("expected code %q, got %q", tt.code, body.Error)
			}
		})
	}
}

func TestDescribeError_StockDetails(t *testing.T) {
	t.Parallel()

	_, body := describeError(fmt.Errorf("validate: %w", &domain.InsufficientStockError{Product: "Tea", Available: 2, Requested: 5}))
	if body.Details["product"] != "Tea" || body.Details["available"] != 2 || body.Details["requested"] != 5 {
		t.Fatalf("unexpected details: %#v", body.Details)
	}
}

func TestDescribeError_HidesInternalMessage(t *testing.T) {
	t.Parallel()

	_, body := describeError(errors.New("dial tcp 10.0.0.1:443: secret"))
	if body.Message != "internal error" {
		t.Fatalf("internal error text leaked: %q", body.Message)
	}
}
