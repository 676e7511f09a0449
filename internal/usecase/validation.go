package usecase

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/DRSN-tech/product-api/internal/domain"
	"github.com/DRSN-tech/product-api/pkg/e"
	"github.com/shopspring/decimal"
)

const (
	maxStringLen = 255
	maxStatus    = 127
)

// maxPrice — верхняя граница NUMERIC(10,2), не включительно.
var maxPrice = decimal.New(1, 8)

// validateProductInput проверяет переданные поля и собирает из них патч.
// При создании name, category и price обязательны; при обновлении проверяются
// только переданные поля, пустые необязательные поля пропускаются.
func validateProductInput(in *ProductInput, create bool, verr *e.ValidationError) *domain.ProductPatch {
	patch := &domain.ProductPatch{}

	patch.Name = requiredString(verr, "name", in.Name, create)
	patch.Category = requiredString(verr, "category", in.Category, create)

	if raw, ok := present(in.Price, create); ok {
		if price, reason := parsePrice(raw); reason != "" {
			verr.Add("price", reason)
		} else {
			patch.Price = &price
		}
	}

	if v := filled(in.Description); v != nil {
		patch.Description = v
	}

	if v := filled(in.StockQuantity); v != nil {
		n, err := strconv.ParseInt(strings.TrimSpace(*v), 10, 32)
		switch {
		case err != nil:
			verr.Add("stock_quantity", "The stock quantity must be an integer.")
		case n < 0:
			verr.Add("stock_quantity", "The stock quantity must be at least 0.")
		default:
			stock := int32(n)
			patch.StockQuantity = &stock
		}
	}

	if v := filled(in.SKU); v != nil {
		if utf8.RuneCountInString(*v) > maxStringLen {
			verr.Add("sku", tooLong("sku"))
		} else {
			patch.SKU = v
		}
	}

	if v := filled(in.Status); v != nil {
		n, err := strconv.ParseInt(strings.TrimSpace(*v), 10, 16)
		switch {
		case err != nil:
			verr.Add("status", "The status must be an integer.")
		case n < 0 || n > maxStatus:
			verr.Add("status", fmt.Sprintf("The status must be between 0 and %d.", maxStatus))
		default:
			status := int16(n)
			patch.Status = &status
		}
	}

	return patch
}

// requiredString проверяет поле с правилом required|string|max:255.
// При обновлении отсутствующее поле пропускается, а переданное пустое считается ошибкой.
func requiredString(verr *e.ValidationError, field string, value *string, create bool) *string {
	raw, ok := present(value, create)
	if !ok {
		return nil
	}

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		verr.Add(field, fmt.Sprintf("The %s field is required.", label(field)))
		return nil
	}
	if utf8.RuneCountInString(trimmed) > maxStringLen {
		verr.Add(field, tooLong(field))
		return nil
	}

	return &trimmed
}

// present возвращает значение поля и признак того, что его нужно проверять.
// Обязательное поле проверяется всегда, даже если не передано.
func present(value *string, required bool) (string, bool) {
	if value == nil {
		return "", required
	}

	return *value, true
}

// filled возвращает значение, только если оно передано и не пустое.
func filled(value *string) *string {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil
	}

	return value
}

func parsePrice(raw string) (decimal.Decimal, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Decimal{}, "The price field is required."
	}

	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, "The price must be a number."
	}

	switch {
	case price.IsNegative():
		return decimal.Decimal{}, "The price must be at least 0."
	case !price.Equal(price.Round(2)):
		return decimal.Decimal{}, "The price may not have more than 2 decimal places."
	case price.GreaterThanOrEqual(maxPrice):
		return decimal.Decimal{}, "The price may not be greater than 99999999.99."
	}

	return price.Round(2), ""
}

func tooLong(field string) string {
	return fmt.Sprintf("The %s may not be greater than %d characters.", label(field), maxStringLen)
}

func imageTooLarge(field string, maxSize int64) string {
	return fmt.Sprintf("The %s may not be greater than %d kilobytes.", label(field), maxSize/1024)
}

// NewImageTooLargeError возвращает ошибку валидации для слишком большого файла из поля field.
func NewImageTooLargeError(field string, maxSize int64) error {
	verr := e.NewValidationError()
	verr.Add(field, imageTooLarge(field, maxSize))

	return verr
}

func label(field string) string {
	return strings.ReplaceAll(field, "_", " ")
}

func isImageTooLarge(err error) bool {
	return errors.Is(err, e.ErrImageTooLarge)
}
