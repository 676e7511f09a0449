package usecase

import (
	"context"

	"github.com/DRSN-tech/product-api/internal/domain"
)

type ImageDecoder interface {
	DecodeBase64(raw string) (*domain.Image, error)
	DecodeFile(part *FilePart) (*domain.Image, error)
	MaxSize() int64
}

type ImagesInfra interface {
	// StoreImage записывает изображение под новым уникальным именем и возвращает ссылку на него.
	StoreImage(ctx context.Context, image *domain.Image) (string, error)
	// DeleteImage удаляет файл по ссылке. Чужие ссылки и отсутствующие файлы игнорируются.
	DeleteImage(ctx context.Context, reference string) error
	CleanupImages(references []string)
	// OwnsReference сообщает, что ссылка указывает на файл хранилища.
	OwnsReference(reference string) bool
	OpenImage(ctx context.Context, filename string) (*ImageObject, error)
	ResolveURL(reference string) string
}

type MessageProducer interface {
	WriteRawMessage(ctx context.Context, req *WriteRawMessageReq) error
}

// TxManager выполняет fn в транзакции БД.
type TxManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}
