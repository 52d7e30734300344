package inventory

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// DefaultListLimit — лимит выдачи остатков магазина.
const DefaultListLimit = 100

// StockUpdate — ручная установка остатка из админки.
type StockUpdate struct {
	Stock    int `json:"stock"`
	MinStock int `json:"minStock"`
	MaxStock int `json:"maxStock,omitempty"`
}

// Service — администрирование остатков.
type Service struct {
	repo   *Repository
	logger *log.Entry
}

// NewService создаёт сервис остатков.
func NewService(repo *Repository, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "inventory")
	}
	return &Service{repo: repo, logger: logger}
}

// GetByProduct возвращает остаток товара или domain.ErrInventoryNotFound.
func (s *Service) GetByProduct(ctx context.Context, productID string) (domain.Inventory, error) {
	inv, found, err := s.repo.FindByProduct(ctx, productID)
	if err != nil {
		return domain.Inventory{}, err
	}
	if !found {
		return domain.Inventory{}, fmt.Errorf("product %s: %w", productID, domain.ErrInventoryNotFound)
	}
	return inv, nil
}

// List возвращает остатки магазина.
func (s *Service) List(ctx context.Context, businessID string, limit int) ([]domain.Inventory, error) {
	if businessID == "" {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, domain.ErrBusinessRequired)
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return s.repo.ListByBusiness(ctx, businessID, limit)
}

// SetStock обновляет существующую запись товара или создаёт новую.
func (s *Service) SetStock(ctx context.Context, businessID, productID string, update StockUpdate) (domain.Inventory, error) {
	switch {
	case businessID == "":
		return domain.Inventory{}, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, domain.ErrBusinessRequired)
	case productID == "":
		return domain.Inventory{}, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, domain.ErrProductRequired)
	case update.Stock < 0 || update.MinStock < 0 || update.MaxStock < 0:
		return domain.Inventory{}, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, domain.ErrStockNegative)
	}

	existing, found, err := s.repo.FindByProduct(ctx, productID)
	if err != nil {
		return domain.Inventory{}, err
	}

	logger := s.logger.WithFields(log.Fields{
		"business_id": businessID,
		"product_id":  productID,
		"stock":       update.Stock,
	})

	if found && existing.BusinessID != businessID {
		return domain.Inventory{}, fmt.Errorf("%w: product %s: %w", domain.ErrInvalidRequest, productID, domain.ErrInventoryForeign)
	}

	if found {
		existing.Stock = update.Stock
		existing.MinStock = update.MinStock
		existing.MaxStock = update.MaxStock
		updated, err := s.repo.Update(ctx, existing)
		if err != nil {
			return domain.Inventory{}, err
		}
		logger.Info("inventory updated")
		return updated, nil
	}

	created, err := s.repo.Create(ctx, domain.Inventory{
		ProductID:  productID,
		BusinessID: businessID,
		Stock:      update.Stock,
		MinStock:   update.MinStock,
		MaxStock:   update.MaxStock,
	})
	if err != nil {
		return domain.Inventory{}, err
	}
	logger.Info("inventory created")
	return created, nil
}
