package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/DRSN-tech/product-api/internal/usecase"
	"github.com/DRSN-tech/product-api/pkg/e"
	"github.com/DRSN-tech/product-api/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/jimlawless/whereami"
)

// multipartMemory: сколько multipart-тела держится в памяти при создании.
const multipartMemory = 8 << 20

type ProductHandler struct {
	productUsecase usecase.ProductUC
	parser         *MultipartParser
	logger         logger.Logger
	maxRequestSize int64
	maxImageSize   int64
}

func NewProductHandler(productUsecase usecase.ProductUC, logger logger.Logger, maxRequestSize, maxImageSize int64) *ProductHandler {
	return &ProductHandler{
		productUsecase: productUsecase,
		parser:         NewMultipartParser(maxImageSize),
		logger:         logger,
		maxRequestSize: maxRequestSize,
		maxImageSize:   maxImageSize,
	}
}

// welcome
//
//	@Summary	Информация об API
//	@Tags		service
//	@Produce	json
//	@Success	200	{object}	map[string]interface{}
//	@Router		/ [get]
func (p *ProductHandler) welcome(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Welcome to Product API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"GET /ping":                  "Test API connection",
			"GET /products":              "List all products",
			"GET /products/{id}":         "Get a product",
			"POST /products":             "Create a new product",
			"PUT /products/{id}":         "Update a product",
			"PATCH /products/{id}":       "Update a product",
			"DELETE /products/{id}":      "Delete a product",
			"GET /storage/images/{name}": "Get a product image",
			"GET /swagger/index.html":    "API documentation",
		},
	})
}

// ping
//
//	@Summary	Проверка доступности
//	@Tags		service
//	@Produce	json
//	@Success	200	{object}	MessageResponse
//	@Router		/ping [get]
func (p *ProductHandler) ping(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, &MessageResponse{Message: "API is working"})
}

// listProducts
//
//	@Summary	Список товаров
//	@Tags		products
//	@Produce	json
//	@Param		category	query		string	false	"Фильтр по категории"
//	@Success	200			{object}	ProductListEnvelope
//	@Failure	500			{object}	ErrorResponse
//	@Router		/products [get]
func (p *ProductHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	var category *string
	if c := r.URL.Query().Get("category"); c != "" {
		category = &c
	}

	products, err := p.productUsecase.ListProducts(r.Context(), usecase.NewListProductsReq(category))
	if err != nil {
		p.fail(w, r, err)
		return
	}

	resp := make([]*ProductResponse, 0, len(products))
	for _, product := range products {
		resp = append(resp, toProductResponse(product, p.productUsecase.ResolveImageURL))
	}

	WriteJSON(w, http.StatusOK, &ProductListEnvelope{
		Message:  "Products retrieved successfully",
		Products: resp,
	})
}

// getProduct
//
//	@Summary	Товар по ID
//	@Tags		products
//	@Produce	json
//	@Param		id	path		int	true	"ID товара"
//	@Success	200	{object}	ProductEnvelope
//	@Failure	404	{object}	ErrorResponse
//	@Router		/products/{id} [get]
func (p *ProductHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseProductID(r)
	if err != nil {
		p.fail(w, r, err)
		return
	}

	product, err := p.productUsecase.GetProduct(r.Context(), id)
	if err != nil {
		p.fail(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, &ProductEnvelope{
		Message: "Product retrieved successfully",
		Product: toProductResponse(product, p.productUsecase.ResolveImageURL),
	})
}

// createProduct
//
//	@Summary		Создание товара
//	@Description	Принимает multipart/form-data (файл в поле image), x-www-form-urlencoded или JSON (image — готовая ссылка, image_base64 — data URL или base64)
//	@Tags			products
//	@Accept			json,mpfd,x-www-form-urlencoded
//	@Produce		json
//	@Param			name			formData	string	true	"Название"
//	@Param			category		formData	string	true	"Категория"
//	@Param			price			formData	number	true	"Цена"
//	@Param			description		formData	string	false	"Описание"
//	@Param			stock_quantity	formData	int		false	"Остаток"
//	@Param			sku				formData	string	false	"Артикул"
//	@Param			status			formData	int		false	"Статус"
//	@Param			image			formData	file	false	"Изображение"
//	@Param			image_base64	formData	string	false	"Изображение в base64"
//	@Success		201				{object}	ProductEnvelope
//	@Failure		400				{object}	ErrorResponse
//	@Failure		413				{object}	ErrorResponse
//	@Failure		422				{object}	ErrorResponse
//	@Failure		500				{object}	ErrorResponse
//	@Router			/products [post]
func (p *ProductHandler) createProduct(w http.ResponseWriter, r *http.Request) {
	input, err := p.readInput(w, r, false)
	if err != nil {
		p.fail(w, r, err)
		return
	}

	product, err := p.productUsecase.CreateProduct(r.Context(), usecase.NewCreateProductReq(input))
	if err != nil {
		p.fail(w, r, err)
		return
	}

	p.logger.Infof("product %d created", product.ID)
	WriteJSON(w, http.StatusCreated, &ProductEnvelope{
		Message: "Product created successfully",
		Product: toProductResponse(product, p.productUsecase.ResolveImageURL),
	})
}

// updateProduct
//
//	@Summary		Частичное обновление товара
//	@Description	Меняются только переданные поля. Тело как у создания.
//	@Tags			products
//	@Accept			json,mpfd,x-www-form-urlencoded
//	@Produce		json
//	@Param			id	path		int	true	"ID товара"
//	@Success		200	{object}	ProductEnvelope
//	@Failure		404	{object}	ErrorResponse
//	@Failure		422	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/products/{id} [put]
//	@Router			/products/{id} [patch]
func (p *ProductHandler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseProductID(r)
	if err != nil {
		p.fail(w, r, err)
		return
	}

	// Неизвестный ID даёт 404 раньше любых ошибок разбора тела.
	if _, err := p.productUsecase.GetProduct(r.Context(), id); err != nil {
		p.fail(w, r, err)
		return
	}

	input, err := p.readInput(w, r, true)
	if err != nil {
		p.fail(w, r, err)
		return
	}

	product, err := p.productUsecase.UpdateProduct(r.Context(), usecase.NewUpdateProductReq(id, input))
	if err != nil {
		p.fail(w, r, err)
		return
	}

	p.logger.Infof("product %d updated", product.ID)
	WriteJSON(w, http.StatusOK, &ProductEnvelope{
		Message: "Product updated successfully",
		Product: toProductResponse(product, p.productUsecase.ResolveImageURL),
	})
}

// deleteProduct
//
//	@Summary	Удаление товара
//	@Tags		products
//	@Produce	json
//	@Param		id	path		int	true	"ID товара"
//	@Success	200	{object}	DeleteEnvelope
//	@Failure	404	{object}	ErrorResponse
//	@Router		/products/{id} [delete]
func (p *ProductHandler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseProductID(r)
	if err != nil {
		p.fail(w, r, err)
		return
	}

	if err := p.productUsecase.DeleteProduct(r.Context(), id); err != nil {
		p.fail(w, r, err)
		return
	}

	p.logger.Infof("product %d deleted", id)
	WriteJSON(w, http.StatusOK, &DeleteEnvelope{
		Message: "Product deleted successfully",
		ID:      id,
	})
}

// serveImage
//
//	@Summary	Файл изображения
//	@Tags		images
//	@Produce	image/jpeg,image/png,image/gif
//	@Param		filename	path	string	true	"Имя файла"
//	@Success	200
//	@Failure	404	{object}	ErrorResponse
//	@Router		/storage/images/{filename} [get]
func (p *ProductHandler) serveImage(w http.ResponseWriter, r *http.Request) {
	obj, err := p.productUsecase.OpenImage(r.Context(), chi.URLParam(r, "filename"))
	if err != nil {
		p.fail(w, r, err)
		return
	}
	defer obj.Body.Close()

	w.Header().Set("Content-Type", obj.ContentType)
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	if !obj.ModTime.IsZero() {
		w.Header().Set("Last-Modified", obj.ModTime.UTC().Format(http.TimeFormat))
	}
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, obj.Body); err != nil {
		p.logger.Warnf("failed to stream image %s: %v", obj.Name, err)
	}
}

// readInput разбирает тело запроса в ProductInput по Content-Type.
// На обновлении multipart-тело разбирается MultipartParser.
func (p *ProductHandler) readInput(w http.ResponseWriter, r *http.Request, update bool) (usecase.ProductInput, error) {
	r.Body = http.MaxBytesReader(w, r.Body, p.maxRequestSize)

	switch mediaType(r) {
	case multipartFormData:
		if update {
			form, ok, err := p.parser.Parse(r.Header.Get("Content-Type"), r.Body)
			if err != nil || !ok {
				return usecase.ProductInput{}, err
			}
			return form.Input(), nil
		}

		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			if errors.Is(err, http.ErrMissingBoundary) {
				return usecase.ProductInput{}, nil
			}
			if bodyTooLarge(err) {
				return usecase.ProductInput{}, e.Wrap(whereami.WhereAmI(), e.ErrBodyTooLarge)
			}
			return usecase.ProductInput{}, e.Wrap(whereami.WhereAmI(), errors.Join(e.ErrMalformedMultipart, err))
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()

		form, err := formFromRequest(r, p.maxImageSize)
		if err != nil {
			return usecase.ProductInput{}, err
		}
		return form.Input(), nil

	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			if bodyTooLarge(err) {
				return usecase.ProductInput{}, e.Wrap(whereami.WhereAmI(), e.ErrBodyTooLarge)
			}
			return usecase.ProductInput{}, e.Wrap(whereami.WhereAmI(), errors.Join(e.ErrStatusBadRequest, err))
		}

		form, err := formFromRequest(r, p.maxImageSize)
		if err != nil {
			return usecase.ProductInput{}, err
		}
		return form.Input(), nil

	default:
		return inputFromJSON(r.Body)
	}
}

// fail пишет ошибку в ответ и в лог. 5xx логируются как error.
func (p *ProductHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusUnprocessableEntity
	if _, ok := e.AsValidation(err); !ok {
		status, _ = ToHTTPResponse(err)
	}

	if status >= http.StatusInternalServerError {
		p.logger.Errorf(err, "%s %s: %d", r.Method, r.URL.Path, status)
	} else {
		p.logger.Warnf("%s %s: %d: %v", r.Method, r.URL.Path, status, err)
	}

	WriteError(w, err)
}
