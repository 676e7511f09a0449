package http

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/DRSN-tech/product-api/internal/domain"
	"github.com/DRSN-tech/product-api/internal/usecase"
	"github.com/DRSN-tech/product-api/pkg/e"
	"github.com/go-chi/chi/v5"
	"github.com/jimlawless/whereami"
)

const (
	fieldImage       = "image"
	fieldImageBase64 = "image_base64"
)

type ErrorResponse struct {
	Error    string              `json:"error"`
	Message  string              `json:"message"`
	Messages map[string][]string `json:"messages,omitempty"`
}

// ProductResponse — продукт в ответах API.
type ProductResponse struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Category      string    `json:"category"`
	Price         string    `json:"price"`
	Description   *string   `json:"description"`
	StockQuantity int32     `json:"stock_quantity"`
	SKU           *string   `json:"sku"`
	Status        int16     `json:"status"`
	Image         *string   `json:"image"`
	ImageURL      *string   `json:"image_url"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type ProductEnvelope struct {
	Message string           `json:"message"`
	Product *ProductResponse `json:"product"`
}

type ProductListEnvelope struct {
	Message  string             `json:"message"`
	Products []*ProductResponse `json:"products"`
}

type DeleteEnvelope struct {
	Message string `json:"message"`
	ID      int64  `json:"id"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func NewErrorResponse(title, message string) *ErrorResponse {
	return &ErrorResponse{
		Error:   title,
		Message: message,
	}
}

// ToHTTPResponse выбирает код ответа и заголовок ошибки по её классу.
func ToHTTPResponse(err error) (int, string) {
	var maxBytesErr *http.MaxBytesError

	switch {
	case errors.Is(err, e.ErrProductNotFound), errors.Is(err, e.ErrInvalidProductID):
		return http.StatusNotFound, "Product not found"
	case errors.Is(err, e.ErrImageNotFound):
		return http.StatusNotFound, "Image not found"
	case errors.Is(err, e.ErrBodyTooLarge), errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge, "Request body too large"
	case errors.Is(err, e.ErrMalformedMultipart),
		errors.Is(err, e.ErrInvalidJSON),
		errors.Is(err, e.ErrStatusBadRequest):
		return http.StatusBadRequest, "Bad request"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func WriteError(w http.ResponseWriter, err error) {
	if verr, ok := e.AsValidation(err); ok {
		WriteJSON(w, http.StatusUnprocessableEntity, &ErrorResponse{
			Error:    "Validation failed",
			Message:  "The given data was invalid.",
			Messages: verr.Fields,
		})
		return
	}

	code, title := ToHTTPResponse(err)
	WriteJSON(w, code, NewErrorResponse(title, publicMessage(code, err)))
}

// publicMessage возвращает текст ошибки для клиента. Внутренние подробности не раскрываются.
func publicMessage(code int, err error) string {
	switch {
	case code == http.StatusInternalServerError:
		return e.ErrInternalServerError.Error()
	case errors.Is(err, e.ErrProductNotFound), errors.Is(err, e.ErrInvalidProductID):
		return e.ErrProductNotFound.Error()
	case errors.Is(err, e.ErrImageNotFound):
		return e.ErrImageNotFound.Error()
	case code == http.StatusRequestEntityTooLarge:
		return e.ErrBodyTooLarge.Error()
	case errors.Is(err, e.ErrMalformedMultipart):
		return e.ErrMalformedMultipart.Error()
	case errors.Is(err, e.ErrInvalidJSON):
		return e.ErrInvalidJSON.Error()
	default:
		return e.ErrStatusBadRequest.Error()
	}
}

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func toProductResponse(product *domain.Product, resolve func(string) string) *ProductResponse {
	resp := &ProductResponse{
		ID:            product.ID,
		Name:          product.Name,
		Category:      product.Category,
		Price:         product.Price.StringFixed(2),
		Description:   product.Description,
		StockQuantity: product.StockQuantity,
		SKU:           product.SKU,
		Status:        product.Status,
		Image:         product.Image,
		CreatedAt:     product.CreatedAt,
		UpdatedAt:     product.UpdatedAt,
	}

	if product.Image != nil && *product.Image != "" {
		url := resolve(*product.Image)
		resp.ImageURL = &url
	}

	return resp
}

func parseProductID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, e.Wrap(whereami.WhereAmI(), e.ErrInvalidProductID)
	}

	return id, nil
}

// mediaType возвращает медиа-тип из Content-Type без параметров.
func mediaType(r *http.Request) string {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return ""
	}

	return mt
}

// inputFromJSON читает тело как JSON-объект. Числа сохраняются в исходном виде,
// null означает, что поле не передано.
func inputFromJSON(body io.Reader) (usecase.ProductInput, error) {
	var input usecase.ProductInput

	dec := json.NewDecoder(body)
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return input, nil
		}

		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return input, e.Wrap(whereami.WhereAmI(), e.ErrBodyTooLarge)
		}

		return input, e.Wrap(whereami.WhereAmI(), errors.Join(e.ErrInvalidJSON, err))
	}

	fields := make(map[string]string, len(raw))
	for key, value := range raw {
		if s, ok := jsonScalar(value); ok {
			fields[key] = s
		}
	}

	return inputFromFields(fields, nil), nil
}

func jsonScalar(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		// массивы и объекты не проходят валидацию как скаляры
		b, _ := json.Marshal(v)
		return string(b), true
	}
}

// inputFromFields собирает ProductInput из полей формы и файлов.
func inputFromFields(fields map[string]string, files map[string]*usecase.FilePart) usecase.ProductInput {
	get := func(key string) *string {
		v, ok := fields[key]
		if !ok {
			return nil
		}
		return &v
	}

	input := usecase.ProductInput{
		Name:          get("name"),
		Category:      get("category"),
		Price:         get("price"),
		Description:   get("description"),
		StockQuantity: get("stock_quantity"),
		SKU:           get("sku"),
		Status:        get("status"),
	}

	input.Upload.Base64 = get(fieldImageBase64)
	input.Upload.Reference = get(fieldImage)
	if file, ok := files[fieldImage]; ok {
		input.Upload.File = file
	}

	return input
}

func bodyTooLarge(err error) bool {
	var maxBytesErr *http.MaxBytesError
	return errors.As(err, &maxBytesErr) || strings.Contains(err.Error(), "request body too large")
}
