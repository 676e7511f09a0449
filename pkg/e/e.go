package e

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// Внутренние ошибки с транзакциями
	ErrTransactionNotFound = fmt.Errorf("transaction not found")

	// 400 Bad Request
	ErrStatusBadRequest   = fmt.Errorf("bad request")
	ErrMalformedMultipart = fmt.Errorf("malformed multipart body")
	ErrInvalidJSON        = fmt.Errorf("invalid JSON body")

	// 404 Not Found
	ErrProductNotFound  = fmt.Errorf("product not found")
	ErrImageNotFound    = fmt.Errorf("image not found")
	ErrInvalidProductID = fmt.Errorf("invalid product id")

	// 413 Request Entity Too Large
	ErrBodyTooLarge = fmt.Errorf("request body too large")

	// Ошибки изображений
	ErrInvalidImageData     = fmt.Errorf("invalid image data")
	ErrImageTooLarge        = fmt.Errorf("image too large")
	ErrUnsupportedMediaType = fmt.Errorf("unsupported media type")
	ErrImageExists          = fmt.Errorf("image already exists")

	// 500 Internal Server Error
	ErrStorageIO           = fmt.Errorf("image storage failure")
	ErrInternalServerError = fmt.Errorf("internal server error")

	// Ошибки конфигурации
	ErrIncorrectEnvVariable = fmt.Errorf("incorrect environment variable")
)

// ValidationError описывает ошибки валидации по полям запроса (422).
type ValidationError struct {
	Fields map[string][]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string][]string)}
}

// Add добавляет причину для поля.
func (v *ValidationError) Add(field, reason string) {
	v.Fields[field] = append(v.Fields[field], reason)
}

// Empty сообщает, что ни одной ошибки не добавлено.
func (v *ValidationError) Empty() bool {
	return len(v.Fields) == 0
}

// OrNil возвращает nil, если ошибок нет. Удобно в конце валидации.
func (v *ValidationError) OrNil() error {
	if v.Empty() {
		return nil
	}

	return v
}

func (v *ValidationError) Error() string {
	fields := make([]string, 0, len(v.Fields))
	for field := range v.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, strings.Join(v.Fields[field], "; ")))
	}

	return "validation failed: " + strings.Join(parts, ", ")
}

// AsValidation достаёт ValidationError из цепочки ошибок.
func AsValidation(err error) (*ValidationError, bool) {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return vErr, true
	}

	return nil, false
}

// Wrap оборачивает ошибку
func Wrap(msg string, err error) error {
	return fmt.Errorf("%s: %w", msg, err)
}
