package httpapi

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/inventory"
)

type inventoryResponse struct {
	Inventory []inventoryView `json:"inventory"`
}

// inventoryView добавляет к записи вычисляемый признак низкого остатка.
type inventoryView struct {
	domain.Inventory
	LowStock bool `json:"lowStock"`
}

func viewOf(inv domain.Inventory) inventoryView {
	return inventoryView{Inventory: inv, LowStock: inv.LowStock()}
}

func (s *Server) listInventory(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	records, err := s.inventory.List(r.Context(), chi.URLParam(r, "businessID"), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	views := make([]inventoryView, 0, len(records))
	for _, inv := range records {
		views = append(views, viewOf(inv))
	}
	writeJSON(w, http.StatusOK, inventoryResponse{Inventory: views})
}

func (s *Server) getInventory(w http.ResponseWriter, r *http.Request) {
	businessID := chi.URLParam(r, "businessID")
	productID := chi.URLParam(r, "productID")

	inv, err := s.inventory.GetByProduct(r.Context(), productID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	// Записи чужого магазина не раскрываются.
	if inv.BusinessID != businessID {
		s.fail(w, r, fmt.Errorf("product %s: %w", productID, domain.ErrInventoryNotFound))
		return
	}
	writeJSON(w, http.StatusOK, viewOf(inv))
}

func (s *Server) putInventory(w http.ResponseWriter, r *http.Request) {
	businessID := chi.URLParam(r, "businessID")
	productID := chi.URLParam(r, "productID")

	var update inventory.StockUpdate
	if err := decodeBody(r, &update); err != nil {
		s.fail(w, r, err)
		return
	}

	inv, err := s.inventory.SetStock(r.Context(), businessID, productID, update)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(inv))
}
