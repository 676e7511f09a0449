package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/DRSN-tech/product-api/internal/cfg"
	"github.com/DRSN-tech/product-api/internal/domain"
	"github.com/DRSN-tech/product-api/internal/usecase"
	"github.com/DRSN-tech/product-api/pkg/e"
	"github.com/DRSN-tech/product-api/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const testMaxImageSize = 1024

// memProductUC хранит продукты в памяти и проверяет только обязательные поля.
type memProductUC struct {
	mu           sync.Mutex
	nextID       int64
	products     map[int64]*domain.Product
	images       map[string][]byte
	lastUpload   usecase.UploadPayload
	lastCategory *string
	panicOnList  bool
}

func newMemProductUC() *memProductUC {
	return &memProductUC{
		products: make(map[int64]*domain.Product),
		images:   make(map[string][]byte),
	}
}

func (m *memProductUC) ListProducts(_ context.Context, req *usecase.ListProductsReq) ([]*domain.Product, error) {
	if m.panicOnList {
		panic("boom")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastCategory = req.Category
	out := make([]*domain.Product, 0, len(m.products))
	for id := int64(1); id <= m.nextID; id++ {
		p, ok := m.products[id]
		if !ok {
			continue
		}
		if req.Category != nil && p.Category != *req.Category {
			continue
		}
		out = append(out, p)
	}

	return out, nil
}

func (m *memProductUC) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[id]
	if !ok {
		return nil, e.Wrap("mem", e.ErrProductNotFound)
	}

	return p, nil
}

func (m *memProductUC) CreateProduct(_ context.Context, req *usecase.CreateProductReq) (*domain.Product, error) {
	verr := e.NewValidationError()
	for field, v := range map[string]*string{"name": req.Name, "category": req.Category, "price": req.Price} {
		if v == nil || *v == "" {
			verr.Add(field, "The "+field+" field is required.")
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	price, err := decimal.NewFromString(*req.Price)
	if err != nil {
		verr.Add("price", "The price must be a number.")
		return nil, verr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	p := domain.NewProduct(*req.Name, *req.Category, price)
	p.ID = m.nextID
	p.Image = m.storeUpload(req.Upload)
	m.products[p.ID] = p

	return p, nil
}

func (m *memProductUC) UpdateProduct(_ context.Context, req *usecase.UpdateProductReq) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[req.ID]
	if !ok {
		return nil, e.Wrap("mem", e.ErrProductNotFound)
	}

	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Price != nil {
		price, err := decimal.NewFromString(*req.Price)
		if err != nil {
			verr := e.NewValidationError()
			verr.Add("price", "The price must be a number.")
			return nil, verr
		}
		p.Price = price
	}
	if image := m.storeUpload(req.Upload); image != nil {
		p.Image = image
	}

	return p, nil
}

func (m *memProductUC) DeleteProduct(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.products[id]; !ok {
		return e.Wrap("mem", e.ErrProductNotFound)
	}
	delete(m.products, id)

	return nil
}

func (m *memProductUC) OpenImage(_ context.Context, filename string) (*usecase.ImageObject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.images[filename]
	if !ok {
		return nil, e.Wrap("mem", e.ErrImageNotFound)
	}

	return &usecase.ImageObject{
		Name:        filename,
		Body:        io.NopCloser(bytes.NewReader(data)),
		Size:        int64(len(data)),
		ContentType: "image/png",
	}, nil
}

func (m *memProductUC) ResolveImageURL(reference string) string {
	return "http://localhost:8080/" + reference
}

// storeUpload вызывается под m.mu.
func (m *memProductUC) storeUpload(upload usecase.UploadPayload) *string {
	m.lastUpload = upload
	switch {
	case upload.File != nil:
		m.images[upload.File.Filename] = upload.File.Data
		ref := "storage/images/" + upload.File.Filename
		return &ref
	case upload.Reference != nil && *upload.Reference != "":
		ref := *upload.Reference
		return &ref
	default:
		return nil
	}
}

type ProductHandlerTestSuite struct {
	suite.Suite
	uc     *memProductUC
	router *chi.Mux
}

func (s *ProductHandlerTestSuite) SetupTest() {
	s.uc = newMemProductUC()
	s.router = newTestRouter(s.uc, 1<<20)
}

func TestProductHandler(t *testing.T) {
	suite.Run(t, new(ProductHandlerTestSuite))
}

func newTestRouter(uc usecase.ProductUC, maxRequestSize int64) *chi.Mux {
	r := chi.NewRouter()
	NewRouter(r, logger.NewNopLogger(),
		&cfg.HTTPConfig{MaxRequestSize: maxRequestSize, SwaggerHost: "localhost:8080"},
		&cfg.StorageCfg{PublicPrefix: "storage/images", MaxImageSize: testMaxImageSize},
	).Init(uc)

	return r
}

func (s *ProductHandlerTestSuite) do(method, path, contentType string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	return rec
}

func (s *ProductHandlerTestSuite) doJSON(method, path, body string) *httptest.ResponseRecorder {
	return s.do(method, path, "application/json", strings.NewReader(body))
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func multipartBody(t *testing.T, fields map[string]string, fileField, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, filename)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	return &buf, mw.FormDataContentType()
}

func (s *ProductHandlerTestSuite) TestProductLifecycle() {
	rec := s.doJSON(http.MethodPost, "/products", `{"name":"Pen","category":"Stationery","price":1.5}`)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	s.Equal("application/json", rec.Header().Get("Content-Type"))

	created := decodeBody[ProductEnvelope](s.T(), rec)
	s.Equal("Product created successfully", created.Message)
	s.Equal("Pen", created.Product.Name)
	s.Equal("1.50", created.Product.Price)
	s.Nil(created.Product.Image)
	s.Nil(created.Product.ImageURL)

	rec = s.doJSON(http.MethodPut, "/products/1", `{"price":2.00}`)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeBody[ProductEnvelope](s.T(), rec)
	s.Equal("2.00", updated.Product.Price)
	s.Equal("Pen", updated.Product.Name)

	rec = s.do(http.MethodGet, "/products/1", "", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("2.00", decodeBody[ProductEnvelope](s.T(), rec).Product.Price)

	rec = s.do(http.MethodDelete, "/products/1", "", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	deleted := decodeBody[DeleteEnvelope](s.T(), rec)
	s.Equal(int64(1), deleted.ID)
	s.Equal("Product deleted successfully", deleted.Message)

	rec = s.do(http.MethodGet, "/products/1", "", nil)
	s.Require().Equal(http.StatusNotFound, rec.Code)
	notFound := decodeBody[ErrorResponse](s.T(), rec)
	s.Equal("Product not found", notFound.Error)
	s.Equal(e.ErrProductNotFound.Error(), notFound.Message)
}

func (s *ProductHandlerTestSuite) TestListProducts_CategoryFilter() {
	s.doJSON(http.MethodPost, "/products", `{"name":"Pen","category":"Stationery","price":"1.5"}`)
	s.doJSON(http.MethodPost, "/products", `{"name":"Mug","category":"Kitchen","price":"7"}`)

	rec := s.do(http.MethodGet, "/products?category=Kitchen", "", nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	list := decodeBody[ProductListEnvelope](s.T(), rec)
	s.Require().Len(list.Products, 1)
	s.Equal("Mug", list.Products[0].Name)
	s.Equal("7.00", list.Products[0].Price)
	s.Require().NotNil(s.uc.lastCategory)
	s.Equal("Kitchen", *s.uc.lastCategory)
}

func (s *ProductHandlerTestSuite) TestListProducts_EmptyIsArray() {
	rec := s.do(http.MethodGet, "/products", "", nil)

	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"products":[]`)
	s.Nil(s.uc.lastCategory)
}

func (s *ProductHandlerTestSuite) TestUnknownAndMalformedIDs() {
	for _, path := range []string{"/products/42", "/products/abc", "/products/0", "/products/-3"} {
		for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodPatch, http.MethodDelete} {
			rec := s.doJSON(method, path, `{"name":"x"}`)
			s.Equal(http.StatusNotFound, rec.Code, "%s %s", method, path)
			s.Equal("Product not found", decodeBody[ErrorResponse](s.T(), rec).Error)
		}
	}
}

func (s *ProductHandlerTestSuite) TestUpdate_UnknownIDBeforeBodyErrors() {
	bodies := map[string]func() (io.Reader, string){
		"oversized image": func() (io.Reader, string) {
			return multipartBody(s.T(), nil, "image", "big.png", bytes.Repeat([]byte{1}, testMaxImageSize+1))
		},
		"invalid json": func() (io.Reader, string) {
			return strings.NewReader(`{"name":`), "application/json"
		},
		"corrupted multipart": func() (io.Reader, string) {
			return strings.NewReader("--xyz\r\nContent-Disposition: form-data; name=\"price\"\r\n\r\n2"),
				"multipart/form-data; boundary=xyz"
		},
	}

	for _, method := range []string{http.MethodPut, http.MethodPatch} {
		for name, build := range bodies {
			body, ct := build()
			rec := s.do(method, "/products/42", ct, body)

			s.Equal(http.StatusNotFound, rec.Code, "%s %s", method, name)
			s.Equal("Product not found", decodeBody[ErrorResponse](s.T(), rec).Error)
		}
	}
}

func (s *ProductHandlerTestSuite) TestCreate_ValidationFailed() {
	rec := s.doJSON(http.MethodPost, "/products", `{"price":null}`)

	s.Require().Equal(http.StatusUnprocessableEntity, rec.Code)
	resp := decodeBody[ErrorResponse](s.T(), rec)
	s.Equal("Validation failed", resp.Error)
	s.Equal("The given data was invalid.", resp.Message)
	s.Contains(resp.Messages, "name")
	s.Contains(resp.Messages, "category")
	s.Contains(resp.Messages, "price")
}

func (s *ProductHandlerTestSuite) TestCreate_EmptyBodyIsValidationError() {
	rec := s.do(http.MethodPost, "/products", "application/json", nil)

	s.Equal(http.StatusUnprocessableEntity, rec.Code)
}

func (s *ProductHandlerTestSuite) TestCreate_InvalidJSON() {
	rec := s.doJSON(http.MethodPost, "/products", `{"name":`)

	s.Require().Equal(http.StatusBadRequest, rec.Code)
	resp := decodeBody[ErrorResponse](s.T(), rec)
	s.Equal(e.ErrInvalidJSON.Error(), resp.Message)
}

func (s *ProductHandlerTestSuite) TestCreate_BodyTooLarge() {
	s.router = newTestRouter(s.uc, 64)

	body := `{"name":"` + strings.Repeat("a", 200) + `","category":"c","price":"1"}`
	rec := s.doJSON(http.MethodPost, "/products", body)

	s.Require().Equal(http.StatusRequestEntityTooLarge, rec.Code)
	s.Equal("Request body too large", decodeBody[ErrorResponse](s.T(), rec).Error)
}

func (s *ProductHandlerTestSuite) TestCreate_FormURLEncoded() {
	rec := s.do(http.MethodPost, "/products", "application/x-www-form-urlencoded",
		strings.NewReader("name=Pen&category=Stationery&price=1.5&image=https%3A%2F%2Fcdn.example.com%2Fpen.png"))

	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	product := decodeBody[ProductEnvelope](s.T(), rec).Product
	s.Require().NotNil(product.Image)
	s.Equal("https://cdn.example.com/pen.png", *product.Image)
}

func (s *ProductHandlerTestSuite) TestCreate_Multipart() {
	body, ct := multipartBody(s.T(),
		map[string]string{"name": "Pen", "category": "Stationery", "price": "1.5"},
		"image", "pen.png", []byte("png-bytes"))

	rec := s.do(http.MethodPost, "/products", ct, body)

	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	product := decodeBody[ProductEnvelope](s.T(), rec).Product
	s.Require().NotNil(product.Image)
	s.Equal("storage/images/pen.png", *product.Image)
	s.Require().NotNil(product.ImageURL)
	s.Equal("http://localhost:8080/storage/images/pen.png", *product.ImageURL)

	s.Require().NotNil(s.uc.lastUpload.File)
	s.Equal([]byte("png-bytes"), s.uc.lastUpload.File.Data)
}

func (s *ProductHandlerTestSuite) TestCreate_MultipartImageTooLarge() {
	body, ct := multipartBody(s.T(),
		map[string]string{"name": "Pen", "category": "Stationery", "price": "1.5"},
		"image", "pen.png", bytes.Repeat([]byte{1}, testMaxImageSize+1))

	rec := s.do(http.MethodPost, "/products", ct, body)

	s.Require().Equal(http.StatusUnprocessableEntity, rec.Code)
	s.Contains(decodeBody[ErrorResponse](s.T(), rec).Messages, "image")
}

func (s *ProductHandlerTestSuite) TestUpdate_Multipart() {
	s.doJSON(http.MethodPost, "/products", `{"name":"Pen","category":"Stationery","price":"1.5"}`)

	body, ct := multipartBody(s.T(), map[string]string{"price": "3.25"}, "image", "new.png", []byte("new"))
	rec := s.do(http.MethodPut, "/products/1", ct, body)

	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	product := decodeBody[ProductEnvelope](s.T(), rec).Product
	s.Equal("3.25", product.Price)
	s.Equal("Pen", product.Name)
	s.Require().NotNil(product.Image)
	s.Equal("storage/images/new.png", *product.Image)
}

func (s *ProductHandlerTestSuite) TestUpdate_MultipartImageTooLarge() {
	s.doJSON(http.MethodPost, "/products", `{"name":"Pen","category":"Stationery","price":"1.5"}`)

	body, ct := multipartBody(s.T(), nil, "image", "big.png", bytes.Repeat([]byte{1}, testMaxImageSize+1))
	rec := s.do(http.MethodPatch, "/products/1", ct, body)

	s.Require().Equal(http.StatusUnprocessableEntity, rec.Code)
	resp := decodeBody[ErrorResponse](s.T(), rec)
	s.Equal([]string{"The image may not be greater than 1 kilobytes."}, resp.Messages["image"])
}

func (s *ProductHandlerTestSuite) TestUpdate_MalformedMultipart() {
	s.doJSON(http.MethodPost, "/products", `{"name":"Pen","category":"Stationery","price":"1.5"}`)

	rec := s.do(http.MethodPut, "/products/1", "multipart/form-data; boundary=xyz",
		strings.NewReader("--xyz\r\nContent-Disposition: form-data; name=\"price\"\r\n\r\n2"))

	s.Require().Equal(http.StatusBadRequest, rec.Code)
	s.Equal(e.ErrMalformedMultipart.Error(), decodeBody[ErrorResponse](s.T(), rec).Message)
}

func (s *ProductHandlerTestSuite) TestServeImage() {
	s.uc.images["pen.png"] = []byte("png-bytes")

	rec := s.do(http.MethodGet, "/storage/images/pen.png", "", nil)

	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("image/png", rec.Header().Get("Content-Type"))
	s.Equal("9", rec.Header().Get("Content-Length"))
	s.Equal("png-bytes", rec.Body.String())
}

func (s *ProductHandlerTestSuite) TestServeImage_NotFound() {
	rec := s.do(http.MethodGet, "/storage/images/missing.png", "", nil)

	s.Require().Equal(http.StatusNotFound, rec.Code)
	s.Equal("Image not found", decodeBody[ErrorResponse](s.T(), rec).Error)
}

func (s *ProductHandlerTestSuite) TestServiceRoutes() {
	rec := s.do(http.MethodGet, "/ping", "", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("API is working", decodeBody[MessageResponse](s.T(), rec).Message)

	rec = s.do(http.MethodGet, "/", "", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "Welcome to Product API")

	rec = s.do(http.MethodGet, "/nowhere", "", nil)
	s.Require().Equal(http.StatusNotFound, rec.Code)
	s.Equal("Not found", decodeBody[ErrorResponse](s.T(), rec).Error)
}

func (s *ProductHandlerTestSuite) TestRecoverer() {
	s.uc.panicOnList = true

	rec := s.do(http.MethodGet, "/products", "", nil)

	s.Require().Equal(http.StatusInternalServerError, rec.Code)
	resp := decodeBody[ErrorResponse](s.T(), rec)
	s.Equal("Internal server error", resp.Error)
	s.Equal(e.ErrInternalServerError.Error(), resp.Message)
}

func TestToHTTPResponse(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"not found", e.Wrap("op", e.ErrProductNotFound), http.StatusNotFound},
		{"invalid id", e.ErrInvalidProductID, http.StatusNotFound},
		{"image not found", e.ErrImageNotFound, http.StatusNotFound},
		{"too large", e.Wrap("op", e.ErrBodyTooLarge), http.StatusRequestEntityTooLarge},
		{"max bytes", &http.MaxBytesError{Limit: 1}, http.StatusRequestEntityTooLarge},
		{"malformed", e.ErrMalformedMultipart, http.StatusBadRequest},
		{"storage", e.Wrap("op", e.ErrStorageIO), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := ToHTTPResponse(tt.err)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestWriteError_HidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteError(rec, e.Wrap("pgdb: password=secret", e.ErrStorageIO))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret")
}

func TestInputFromJSON(t *testing.T) {
	input, err := inputFromJSON(strings.NewReader(
		`{"name":"Pen","price":1.50,"stock_quantity":3,"description":null,"image_base64":"data:image/png;base64,AAAA"}`))
	require.NoError(t, err)

	require.NotNil(t, input.Name)
	assert.Equal(t, "Pen", *input.Name)
	require.NotNil(t, input.Price)
	assert.Equal(t, "1.50", *input.Price)
	require.NotNil(t, input.StockQuantity)
	assert.Equal(t, "3", *input.StockQuantity)
	assert.Nil(t, input.Description)
	assert.Nil(t, input.Category)
	require.NotNil(t, input.Upload.Base64)
	assert.Nil(t, input.Upload.File)
}
