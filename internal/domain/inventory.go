package domain

// Inventory — складской остаток товара в магазине.
type Inventory struct {
	ID         string `json:"id"`
	ProductID  string `json:"productId"`
	BusinessID string `json:"businessId"`
	Stock      int    `json:"stock"`
	MinStock   int    `json:"minStock"`
	// MaxStock необязателен, 0 означает «не задан».
	MaxStock int `json:"maxStock,omitempty"`
}

// LowStock сообщает, опустился ли остаток до порога minStock.
func (i Inventory) LowStock() bool {
	return i.MinStock > 0 && i.Stock <= i.MinStock
}
