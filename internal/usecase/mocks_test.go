package usecase_test

import (
	"context"
	"strings"
	"sync"

	"github.com/DRSN-tech/product-api/internal/domain"
	"github.com/DRSN-tech/product-api/internal/usecase"
	"github.com/stretchr/testify/mock"
)

type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) Create(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	args := m.Called(ctx, product)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *MockProductRepository) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *MockProductRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *MockProductRepository) List(ctx context.Context, req *usecase.ListProductsReq) ([]*domain.Product, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Product), args.Error(1)
}

func (m *MockProductRepository) Update(ctx context.Context, id int64, patch *domain.ProductPatch) (*domain.Product, error) {
	args := m.Called(ctx, id, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *MockProductRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockImagesInfra struct {
	mock.Mock
}

func (m *MockImagesInfra) StoreImage(ctx context.Context, image *domain.Image) (string, error) {
	args := m.Called(ctx, image)
	return args.String(0), args.Error(1)
}

func (m *MockImagesInfra) DeleteImage(ctx context.Context, reference string) error {
	args := m.Called(ctx, reference)
	return args.Error(0)
}

func (m *MockImagesInfra) CleanupImages(references []string) {
	m.Called(references)
}

// OwnsReference не записывается в mock: хранилищу принадлежат ссылки под storage/images/.
func (m *MockImagesInfra) OwnsReference(reference string) bool {
	return strings.HasPrefix(reference, "storage/images/")
}

func (m *MockImagesInfra) OpenImage(ctx context.Context, filename string) (*usecase.ImageObject, error) {
	args := m.Called(ctx, filename)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.ImageObject), args.Error(1)
}

func (m *MockImagesInfra) ResolveURL(reference string) string {
	args := m.Called(reference)
	return args.String(0)
}

type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) Create(ctx context.Context, event *usecase.OutboxEvent) (*usecase.OutboxEvent, error) {
	args := m.Called(ctx, event)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.OutboxEvent), args.Error(1)
}

func (m *MockOutboxRepository) GetAndMarkAsProcessing(ctx context.Context, limit int) ([]*usecase.OutboxEvent, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*usecase.OutboxEvent), args.Error(1)
}

func (m *MockOutboxRepository) MarkAsProcessed(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// fakeTxManager вызывает fn без транзакции и возвращает её ошибку либо commitErr.
type fakeTxManager struct {
	commitErr error
	calls     int
}

func (f *fakeTxManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	if err := fn(ctx); err != nil {
		return err
	}
	return f.commitErr
}

// memoryCache — кэш в памяти, безопасный для фонового заполнения.
type memoryCache struct {
	mu       sync.Mutex
	products map[int64]*domain.Product
	deleted  []int64
}

func newMemoryCache() *memoryCache {
	return &memoryCache{products: make(map[int64]*domain.Product)}
}

func (c *memoryCache) GetProducts(_ context.Context, ids []int64) (map[int64]*domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := make(map[int64]*domain.Product)
	for _, id := range ids {
		if p, ok := c.products[id]; ok {
			result[id] = p
		}
	}
	return result, nil
}

func (c *memoryCache) SetProducts(_ context.Context, products []*domain.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range products {
		c.products[p.ID] = p
	}
	return nil
}

func (c *memoryCache) DeleteProducts(_ context.Context, ids []int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range ids {
		delete(c.products, id)
		c.deleted = append(c.deleted, id)
	}
	return nil
}

func (c *memoryCache) has(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.products[id]
	return ok
}
