package usecase

import (
	"context"

	"github.com/DRSN-tech/product-api/internal/domain"
)

type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) (*domain.Product, error)
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
	// GetForUpdate блокирует строку до конца транзакции (SELECT ... FOR UPDATE).
	GetForUpdate(ctx context.Context, id int64) (*domain.Product, error)
	List(ctx context.Context, req *ListProductsReq) ([]*domain.Product, error)
	Update(ctx context.Context, id int64, patch *domain.ProductPatch) (*domain.Product, error)
	Delete(ctx context.Context, id int64) error
}

// ImageRepository — бэкенд хранилища файлов (диск или MinIO).
type ImageRepository interface {
	// Upload не перезаписывает существующий файл: возвращает e.ErrImageExists.
	Upload(ctx context.Context, filename string, image *domain.Image) error
	// Delete удаляет файл; отсутствующий файл не считается ошибкой.
	Delete(ctx context.Context, filename string) error
	Get(ctx context.Context, filename string) (*ImageObject, error)
}

type CacheRepository interface {
	GetProducts(ctx context.Context, ids []int64) (map[int64]*domain.Product, error)
	SetProducts(ctx context.Context, products []*domain.Product) error
	DeleteProducts(ctx context.Context, ids []int64) error
}

type OutboxRepository interface {
	Create(ctx context.Context, event *OutboxEvent) (*OutboxEvent, error)
	GetAndMarkAsProcessing(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkAsProcessed(ctx context.Context, id int64) error
}
