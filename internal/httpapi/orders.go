package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/idempotency"
)

type updateStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

type itemsResponse struct {
	Items []domain.LineItem `json:"items"`
}

type ordersResponse struct {
	Orders []domain.Order `json:"orders"`
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "read body: "+err.Error(), nil)
		return
	}

	if s.guard == nil {
		resp := s.checkout(r.Context(), body)
		writeRaw(w, resp)
		return
	}

	key := r.Header.Get(HeaderIdempotencyKey)
	if key == "" {
		s.fail(w, r, domain.ErrIdempotencyKeyRequired)
		return
	}

	resp, replayed, err := s.guard.Do(r.Context(), key, idempotency.HashRequest(r.Method, body), func(ctx context.Context) idempotency.Response {
		return s.checkout(ctx, body)
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if replayed {
		w.Header().Set(HeaderIdempotentReplay, "true")
	}
	writeRaw(w, resp)
}

// checkout выполняет оформление и сразу сериализует ответ, чтобы его можно было сохранить.
func (s *Server) checkout(ctx context.Context, body []byte) idempotency.Response {
	var req domain.OrderRequest
	if err := decodeStrict(body, &req); err != nil {
		return encodeResponse(describeError(fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)))
	}

	order, err := s.orders.Create(ctx, req)
	if err != nil {
		var partial *domain.PartialOrderError
		if errors.As(err, &partial) || !domain.IsStockError(err) {
			s.logger.WithError(err).WithField("business_id", req.BusinessID).Warn("checkout failed")
		}
		return encodeResponse(describeError(err))
	}
	return encodeResponse(http.StatusCreated, order)
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := s.orders.Get(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) getOrderItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.orders.GetItems(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if items == nil {
		items = []domain.LineItem{}
	}
	writeJSON(w, http.StatusOK, itemsResponse{Items: items})
}

func (s *Server) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	order, err := s.orders.UpdateStatus(r.Context(), chi.URLParam(r, "orderID"), req.Status)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	orders, err := s.orders.List(r.Context(), chi.URLParam(r, "businessID"), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	writeJSON(w, http.StatusOK, ordersResponse{Orders: orders})
}

func (s *Server) orderStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.orders.GetStats(r.Context(), chi.URLParam(r, "businessID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if stats.TopProducts == nil {
		stats.TopProducts = []domain.TopProduct{}
	}
	writeJSON(w, http.StatusOK, stats)
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, fmt.Errorf("%w: limit must be a non-negative integer", domain.ErrInvalidRequest)
	}
	return limit, nil
}

func decodeBody(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: read body: %w", domain.ErrInvalidRequest, err)
	}
	if err := decodeStrict(body, v); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}
	return nil
}

func decodeStrict(body []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}

func encodeResponse(status int, v any) idempotency.Response {
	body, err := json.Marshal(v)
	if err != nil {
		return idempotency.Response{
			Status: http.StatusInternalServerError,
			Body:   []byte(`{"error":"internal","message":"encode response"}`),
		}
	}
	return idempotency.Response{Status: status, Body: body}
}

func writeRaw(w http.ResponseWriter, resp idempotency.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}
