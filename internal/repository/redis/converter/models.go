package converter

import "time"

// ProductRedisModel — JSON-представление продукта в кэше.
// Цена хранится строкой с двумя знаками, чтобы не терять точность.
type ProductRedisModel struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Category      string    `json:"category"`
	Price         string    `json:"price"`
	Description   *string   `json:"description"`
	StockQuantity int32     `json:"stock_quantity"`
	SKU           *string   `json:"sku"`
	Status        int16     `json:"status"`
	Image         *string   `json:"image"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
