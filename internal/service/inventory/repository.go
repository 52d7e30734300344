// Package inventory работает со складскими остатками в документном хранилище.
package inventory

import (
	"context"
	"fmt"

	"github.com/vladislavdragonenkov/storefront/internal/docstore"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	fieldProductID  = "productId"
	fieldBusinessID = "businessId"
	fieldStock      = "stock"
)

type inventoryRecord struct {
	ProductID  string `json:"productId"`
	BusinessID string `json:"businessId"`
	Stock      int    `json:"stock"`
	MinStock   int    `json:"minStock"`
	MaxStock   int    `json:"maxStock,omitempty"`
}

// Repository читает и изменяет документы коллекции остатков.
type Repository struct {
	store      docstore.Store
	collection string
}

// NewRepository создаёт репозиторий остатков поверх store.
func NewRepository(store docstore.Store, collection string) *Repository {
	if collection == "" {
		collection = "inventory"
	}
	return &Repository{store: store, collection: collection}
}

// FindByProduct возвращает первую запись с указанным productId.
// found=false без ошибки означает, что записи нет.
func (r *Repository) FindByProduct(ctx context.Context, productID string) (inv domain.Inventory, found bool, err error) {
	docs, err := r.store.List(ctx, r.collection, docstore.Equal(fieldProductID, productID), docstore.Limit(1))
	if err != nil {
		return domain.Inventory{}, false, fmt.Errorf("list inventory for %s: %w", productID, err)
	}
	if len(docs) == 0 {
		return domain.Inventory{}, false, nil
	}
	inv, err = decode(docs[0])
	if err != nil {
		return domain.Inventory{}, false, err
	}
	return inv, true, nil
}

// ListByBusiness возвращает записи остатков магазина.
func (r *Repository) ListByBusiness(ctx context.Context, businessID string, limit int) ([]domain.Inventory, error) {
	docs, err := r.store.List(ctx, r.collection,
		docstore.Equal(fieldBusinessID, businessID),
		docstore.OrderAsc(fieldProductID),
		docstore.Limit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list inventory for business %s: %w", businessID, err)
	}

	result := make([]domain.Inventory, 0, len(docs))
	for _, doc := range docs {
		inv, err := decode(doc)
		if err != nil {
			return nil, err
		}
		result = append(result, inv)
	}
	return result, nil
}

// SetStock перезаписывает остаток в документе id.
func (r *Repository) SetStock(ctx context.Context, id string, stock int) error {
	if _, err := r.store.Update(ctx, r.collection, id, docstore.Fields{fieldStock: stock}); err != nil {
		return fmt.Errorf("update inventory %s: %w", id, err)
	}
	return nil
}

// Update перезаписывает пороги и остаток существующей записи.
func (r *Repository) Update(ctx context.Context, inv domain.Inventory) (domain.Inventory, error) {
	// maxStock отправляется всегда: 0 сбрасывает ранее заданный порог.
	patch := docstore.Fields{
		fieldStock: inv.Stock,
		"minStock": inv.MinStock,
		"maxStock": inv.MaxStock,
	}
	doc, err := r.store.Update(ctx, r.collection, inv.ID, patch)
	if err != nil {
		return domain.Inventory{}, fmt.Errorf("update inventory %s: %w", inv.ID, err)
	}
	return decode(doc)
}

// Create сохраняет новую запись остатков.
func (r *Repository) Create(ctx context.Context, inv domain.Inventory) (domain.Inventory, error) {
	fields, err := docstore.Encode(inventoryRecord{
		ProductID:  inv.ProductID,
		BusinessID: inv.BusinessID,
		Stock:      inv.Stock,
		MinStock:   inv.MinStock,
		MaxStock:   inv.MaxStock,
	})
	if err != nil {
		return domain.Inventory{}, err
	}
	doc, err := r.store.Create(ctx, r.collection, fields)
	if err != nil {
		return domain.Inventory{}, fmt.Errorf("create inventory for %s: %w", inv.ProductID, err)
	}
	return decode(doc)
}

func decode(doc docstore.Document) (domain.Inventory, error) {
	var rec inventoryRecord
	if err := doc.Decode(&rec); err != nil {
		return domain.Inventory{}, err
	}
	return domain.Inventory{
		ID:         doc.ID,
		ProductID:  rec.ProductID,
		BusinessID: rec.BusinessID,
		Stock:      rec.Stock,
		MinStock:   rec.MinStock,
		MaxStock:   rec.MaxStock,
	}, nil
}
