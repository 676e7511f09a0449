package usecase

import (
	"time"

	"github.com/DRSN-tech/product-api/internal/domain"
)

// productEventPayload — JSON-представление события в Kafka.
type productEventPayload struct {
	EventID    string                `json:"event_id"`
	Type       string                `json:"type"`
	ProductID  int64                 `json:"product_id"`
	Product    *productEventSnapshot `json:"product"`
	OccurredAt time.Time             `json:"occurred_at"`
}

type productEventSnapshot struct {
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

func newProductEventPayload(event *domain.ProductEvent) *productEventPayload {
	payload := &productEventPayload{
		EventID:    event.EventID,
		Type:       string(event.Type),
		ProductID:  event.ProductID,
		OccurredAt: event.OccurredAt,
	}

	if pr := event.Product; pr != nil {
		payload.Product = &productEventSnapshot{
			ID:            pr.ID,
			Name:          pr.Name,
			Category:      pr.Category,
			Price:         pr.Price.StringFixed(2),
			Description:   pr.Description,
			StockQuantity: pr.StockQuantity,
			SKU:           pr.SKU,
			Status:        pr.Status,
			Image:         pr.Image,
			CreatedAt:     pr.CreatedAt,
			UpdatedAt:     pr.UpdatedAt,
		}
	}

	return payload
}
