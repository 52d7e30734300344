package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// ErrorResponse — тело ответа с ошибкой.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message, Details: details})
}

// describeError сопоставляет доменную ошибку HTTP-статусу и телу ответа.
func describeError(err error) (int, ErrorResponse) {
	var (
		noInventory *domain.NoInventoryRecordError
		shortage    *domain.InsufficientStockError
		partial     *domain.PartialOrderError
	)

	switch {
	case errors.As(err, &noInventory):
		return http.StatusConflict, ErrorResponse{
			Error:   "no_inventory_record",
			Message: err.Error(),
			Details: map[string]any{"product": noInventory.Product},
		}
	case errors.As(err, &shortage):
		return http.StatusConflict, ErrorResponse{
			Error:   "insufficient_stock",
			Message: err.Error(),
			Details: map[string]any{
				"product":   shortage.Product,
				"available": shortage.Available,
				"requested": shortage.Requested,
			},
		}
	case errors.As(err, &partial):
		return http.StatusInternalServerError, ErrorResponse{
			Error:   "partial_order",
			Message: err.Error(),
			Details: map[string]any{
				"orderId":        partial.OrderID,
				"orderNumber":    partial.OrderNumber,
				"completedItems": partial.CompletedItems,
				"failedStep":     partial.FailedStep,
			},
		}
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrInvalidStatus):
		return http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()}
	case errors.Is(err, domain.ErrOrderNotFound), errors.Is(err, domain.ErrInventoryNotFound):
		return http.StatusNotFound, ErrorResponse{Error: "not_found", Message: err.Error()}
	case errors.Is(err, domain.ErrIdempotencyKeyRequired):
		return http.StatusBadRequest, ErrorResponse{Error: "idempotency_key_required", Message: err.Error()}
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		return http.StatusUnprocessableEntity, ErrorResponse{Error: "idempotency_key_reused", Message: err.Error()}
	case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
		return http.StatusConflict, ErrorResponse{Error: "request_in_progress", Message: err.Error()}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: "internal", Message: "internal error"}
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, body := describeError(err)
	if status >= http.StatusInternalServerError {
		s.logger.WithError(err).WithField("path", r.URL.Path).Error("request failed")
	}
	writeJSON(w, status, body)
}
