package domain

import (
	"time"

	"github.com/google/uuid"
)

type ProductEventType string

const (
	ProductCreated ProductEventType = "created"
	ProductUpdated ProductEventType = "updated"
	ProductDeleted ProductEventType = "deleted"
)

// ProductEvent описывает изменение продукта, которое публикуется в Kafka.
// Product равен nil для события удаления.
type ProductEvent struct {
	EventID    string
	Type       ProductEventType
	ProductID  int64
	Product    *Product
	OccurredAt time.Time
}

func NewProductEvent(eventType ProductEventType, productID int64, product *Product) *ProductEvent {
	return &ProductEvent{
		EventID:    uuid.NewString(),
		Type:       eventType,
		ProductID:  productID,
		Product:    product,
		OccurredAt: time.Now().UTC(),
	}
}
