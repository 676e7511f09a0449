package converter

import (
	"fmt"

	"github.com/DRSN-tech/product-api/internal/domain"
	"github.com/shopspring/decimal"
)

type ProductConverter interface {
	ToRedisModel(entity *domain.Product) *ProductRedisModel
	ToEntity(model *ProductRedisModel) (*domain.Product, error)
	ToArrRedisModel(entities []*domain.Product) []*ProductRedisModel
}

type ProductConverterImpl struct{}

func NewProductConverter() *ProductConverterImpl {
	return &ProductConverterImpl{}
}

func (ProductConverterImpl) ToRedisModel(entity *domain.Product) *ProductRedisModel {
	return &ProductRedisModel{
		ID:            entity.ID,
		Name:          entity.Name,
		Category:      entity.Category,
		Price:         entity.Price.StringFixed(2),
		Description:   entity.Description,
		StockQuantity: entity.StockQuantity,
		SKU:           entity.SKU,
		Status:        entity.Status,
		Image:         entity.Image,
		CreatedAt:     entity.CreatedAt,
		UpdatedAt:     entity.UpdatedAt,
	}
}

func (ProductConverterImpl) ToEntity(model *ProductRedisModel) (*domain.Product, error) {
	price, err := decimal.NewFromString(model.Price)
	if err != nil {
		return nil, fmt.Errorf("invalid cached price %q: %w", model.Price, err)
	}

	return &domain.Product{
		ID:            model.ID,
		Name:          model.Name,
		Category:      model.Category,
		Price:         price,
		Description:   model.Description,
		StockQuantity: model.StockQuantity,
		SKU:           model.SKU,
		Status:        model.Status,
		Image:         model.Image,
		CreatedAt:     model.CreatedAt,
		UpdatedAt:     model.UpdatedAt,
	}, nil
}

func (c ProductConverterImpl) ToArrRedisModel(entities []*domain.Product) []*ProductRedisModel {
	result := make([]*ProductRedisModel, 0, len(entities))
	for _, entity := range entities {
		result = append(result, c.ToRedisModel(entity))
	}

	return result
}
