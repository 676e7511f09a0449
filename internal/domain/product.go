package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultProductStatus — статус активного продукта.
const DefaultProductStatus int16 = 1

// Product описывает продукт
type Product struct {
	ID            int64
	Name          string
	Category      string
	Price         decimal.Decimal // NUMERIC(10,2)
	Description   *string
	StockQuantity int32
	SKU           *string
	Status        int16
	Image         *string // ссылка на файл в хранилище изображений или внешняя ссылка
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewProduct(name string, category string, price decimal.Decimal) *Product {
	return &Product{
		Name:     name,
		Category: category,
		Price:    price,
		Status:   DefaultProductStatus,
	}
}

// ProductPatch описывает частичное обновление: nil-поля не меняются.
type ProductPatch struct {
	Name          *string
	Category      *string
	Price         *decimal.Decimal
	Description   *string
	StockQuantity *int32
	SKU           *string
	Status        *int16
	Image         *string
}

// Empty сообщает, что обновлять нечего.
func (p *ProductPatch) Empty() bool {
	return p.Name == nil &&
		p.Category == nil &&
		p.Price == nil &&
		p.Description == nil &&
		p.StockQuantity == nil &&
		p.SKU == nil &&
		p.Status == nil &&
		p.Image == nil
}

// Apply переносит заданные поля патча в продукт.
func (p *ProductPatch) Apply(product *Product) {
	if p.Name != nil {
		product.Name = *p.Name
	}
	if p.Category != nil {
		product.Category = *p.Category
	}
	if p.Price != nil {
		product.Price = *p.Price
	}
	if p.Description != nil {
		product.Description = p.Description
	}
	if p.StockQuantity != nil {
		product.StockQuantity = *p.StockQuantity
	}
	if p.SKU != nil {
		product.SKU = p.SKU
	}
	if p.Status != nil {
		product.Status = *p.Status
	}
	if p.Image != nil {
		product.Image = p.Image
	}
}
