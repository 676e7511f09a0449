package usecase_test

import (
	"context"
	"time"

	"github.com/DRSN-tech/product-api/internal/domain"
	"github.com/DRSN-tech/product-api/internal/infrastructure/imagecodec"
	"github.com/DRSN-tech/product-api/internal/usecase"
	"github.com/DRSN-tech/product-api/pkg/e"
	"github.com/DRSN-tech/product-api/pkg/logger"
	"github.com/stretchr/testify/mock"
)

// gatedCache задерживает запись в кэш, пока не закрыт release.
type gatedCache struct {
	*memoryCache
	entered chan struct{}
	release chan struct{}
	filled  chan struct{}
}

func newGatedCache() *gatedCache {
	return &gatedCache{
		memoryCache: newMemoryCache(),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
		filled:      make(chan struct{}),
	}
}

func (c *gatedCache) SetProducts(ctx context.Context, products []*domain.Product) error {
	close(c.entered)
	<-c.release
	defer close(c.filled)

	return c.memoryCache.SetProducts(ctx, products)
}

func (s *ProductUseCaseTestSuite) TestGetProduct_SlowFillDoesNotOutliveDelete() {
	cache := newGatedCache()
	uc := usecase.NewProductUC(s.repo, cache, s.outbox, s.tx, imagecodec.NewCodec(2<<20), s.images, logger.NewNopLogger())

	s.repo.On("GetByID", mock.Anything, int64(1)).Return(pen(1, nil), nil).Once()
	s.repo.On("GetForUpdate", mock.Anything, int64(1)).Return(pen(1, nil), nil).Once()
	s.repo.On("Delete", mock.Anything, int64(1)).Return(nil).Once()

	_, err := uc.GetProduct(s.ctx, 1)
	s.Require().NoError(err)
	<-cache.entered

	done := make(chan error, 1)
	go func() { done <- uc.DeleteProduct(s.ctx, 1) }()

	deleted := false
	select {
	case err := <-done:
		s.Require().NoError(err)
		deleted = true
	case <-time.After(50 * time.Millisecond):
	}

	close(cache.release)
	<-cache.filled
	if !deleted {
		s.Require().NoError(<-done)
	}

	s.False(cache.has(1))

	s.repo.On("GetByID", mock.Anything, int64(1)).Return(nil, e.ErrProductNotFound).Once()
	_, err = uc.GetProduct(s.ctx, 1)
	s.ErrorIs(err, e.ErrProductNotFound)
}

func (s *ProductUseCaseTestSuite) TestGetProduct_ReadOverlappingDeleteIsNotCached() {
	s.repo.On("GetForUpdate", mock.Anything, int64(1)).Return(pen(1, nil), nil).Once()
	s.repo.On("Delete", mock.Anything, int64(1)).Return(nil).Once()
	// Удаление коммитится, пока чтение ещё держит старую строку.
	s.repo.On("GetByID", mock.Anything, int64(1)).
		Run(func(mock.Arguments) { s.Require().NoError(s.uc.DeleteProduct(s.ctx, 1)) }).
		Return(pen(1, nil), nil).Once()

	_, err := s.uc.GetProduct(s.ctx, 1)
	s.Require().NoError(err)

	s.Never(func() bool { return s.cache.has(1) }, 100*time.Millisecond, 10*time.Millisecond)
}
