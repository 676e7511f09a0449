package usecase

import (
	"io"
	"time"
)

// PRODUCT USECASE

// FilePart — файл из multipart-запроса.
type FilePart struct {
	Filename    string
	ContentType string // по умолчанию application/octet-stream
	Data        []byte
	Size        int64
}

// UploadPayload — изображение, пришедшее в запросе.
// Приоритет: Base64 > File > Reference.
type UploadPayload struct {
	Base64    *string   // image_base64: data URL или «голый» base64
	File      *FilePart // файл image из multipart
	Reference *string   // image: готовая ссылка, сохраняется как есть
}

// Empty сообщает, что изображение в запросе не передано.
func (u *UploadPayload) Empty() bool {
	return (u.Base64 == nil || *u.Base64 == "") && u.File == nil && (u.Reference == nil || *u.Reference == "")
}

// ProductInput — сырые значения полей продукта из запроса. nil означает, что поле не передано.
type ProductInput struct {
	Name          *string
	Category      *string
	Price         *string
	Description   *string
	StockQuantity *string
	SKU           *string
	Status        *string
	Upload        UploadPayload
}

// CreateProductReq — запрос на создание продукта.
type CreateProductReq struct {
	ProductInput
}

// UpdateProductReq — запрос на частичное обновление продукта.
type UpdateProductReq struct {
	ID int64
	ProductInput
}

// ListProductsReq — фильтр списка продуктов.
type ListProductsReq struct {
	Category *string
}

// ImageObject — открытый на чтение файл изображения.
type ImageObject struct {
	Name        string
	Body        io.ReadCloser
	Size        int64
	ContentType string
	ModTime     time.Time
}

// OUTBOX

type OutboxStatus int16

const (
	Pending OutboxStatus = iota
	Processing
	Processed
)

type OutboxEventType string

// OutboxEvent — событие, сохранённое в таблицу outbox_events в одной транзакции с изменением продукта.
type OutboxEvent struct {
	ID          int64
	EventID     string
	EventType   OutboxEventType
	ProductID   int64
	Payload     []byte
	Status      OutboxStatus
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// INFRASTRUCTURE

// WriteRawMessageReq — готовое сообщение для Kafka.
type WriteRawMessageReq struct {
	ProductID int64
	EventID   string
	EventType OutboxEventType
	Payload   []byte
}

// MAPPERS

func NewCreateProductReq(input ProductInput) *CreateProductReq {
	return &CreateProductReq{ProductInput: input}
}

func NewUpdateProductReq(id int64, input ProductInput) *UpdateProductReq {
	return &UpdateProductReq{ID: id, ProductInput: input}
}

func NewListProductsReq(category *string) *ListProductsReq {
	return &ListProductsReq{Category: category}
}

func NewWriteRawMessageReq(event *OutboxEvent) *WriteRawMessageReq {
	return &WriteRawMessageReq{
		ProductID: event.ProductID,
		EventID:   event.EventID,
		EventType: event.EventType,
		Payload:   event.Payload,
	}
}

func NewFilePart(filename string, contentType string, data []byte) *FilePart {
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return &FilePart{
		Filename:    filename,
		ContentType: contentType,
		Data:        data,
		Size:        int64(len(data)),
	}
}
