package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DRSN-tech/product-api/internal/domain"
	"github.com/DRSN-tech/product-api/pkg/e"
	"github.com/DRSN-tech/product-api/pkg/logger"
)

const cacheFillTimeout = 500 * time.Millisecond

// ProductUseCase реализует бизнес-логику управления продуктами и их изображениями.
type ProductUseCase struct {
	productRepo ProductRepository
	cacheRepo   CacheRepository
	outboxRepo  OutboxRepository // nil, если публикация событий выключена
	txManager   TxManager
	decoder     ImageDecoder
	imagesInfra ImagesInfra
	logger      logger.Logger

	// cacheEpoch растёт при каждой инвалидации. Фоновое заполнение кэша
	// пропускается, если эпоха сменилась после чтения из БД.
	cacheEpoch atomic.Uint64
	cacheMu    sync.RWMutex
}

func NewProductUC(
	productRepo ProductRepository,
	cacheRepo CacheRepository,
	outboxRepo OutboxRepository,
	txManager TxManager,
	decoder ImageDecoder,
	imagesInfra ImagesInfra,
	logger logger.Logger,
) *ProductUseCase {
	return &ProductUseCase{
		productRepo: productRepo,
		cacheRepo:   cacheRepo,
		outboxRepo:  outboxRepo,
		txManager:   txManager,
		decoder:     decoder,
		imagesInfra: imagesInfra,
		logger:      logger,
	}
}

// ListProducts возвращает все продукты, опционально отфильтрованные по категории.
func (p *ProductUseCase) ListProducts(ctx context.Context, req *ListProductsReq) ([]*domain.Product, error) {
	const op = "ProductUseCase.ListProducts"

	products, err := p.productRepo.List(ctx, req)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return products, nil
}

// GetProduct возвращает продукт по ID, сначала заглядывая в кэш.
func (p *ProductUseCase) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	const op = "ProductUseCase.GetProduct"

	cached, err := p.cacheRepo.GetProducts(ctx, []int64{id})
	if err != nil {
		p.logger.Warnf("Failed to read product %d from cache: %v", id, err)
	} else if product, ok := cached[id]; ok {
		return product, nil
	}

	epoch := p.cacheEpoch.Load()
	product, err := p.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	// Фоновое добавление продукта в кэш
	go func() {
		p.cacheMu.RLock()
		defer p.cacheMu.RUnlock()

		if p.cacheEpoch.Load() != epoch {
			return
		}

		bgCtx, cancel := context.WithTimeout(context.Background(), cacheFillTimeout)
		defer cancel()

		if err := p.cacheRepo.SetProducts(bgCtx, []*domain.Product{product}); err != nil {
			p.logger.Warnf("Failed to cache product in background: %v", e.Wrap(op, err))
		}
	}()

	return product, nil
}

// CreateProduct валидирует запрос, сохраняет изображение и создаёт продукт в транзакции.
// Если транзакция не удалась, записанный файл удаляется в фоне.
func (p *ProductUseCase) CreateProduct(ctx context.Context, req *CreateProductReq) (*domain.Product, error) {
	const op = "ProductUseCase.CreateProduct"

	verr := e.NewValidationError()
	patch := validateProductInput(&req.ProductInput, true, verr)
	image, reference := p.prepareUpload(req.Upload, nil, verr)
	if err := verr.OrNil(); err != nil {
		p.logger.Infof("create product: %v", err)
		return nil, e.Wrap(op, err)
	}

	var (
		stored string
		err    error
	)
	if image != nil {
		stored, err = p.imagesInfra.StoreImage(ctx, image)
		if err != nil {
			p.logger.Errorf(err, "create product: failed to store image")
			return nil, e.Wrap(op, err)
		}
		reference = &stored
	}

	newProduct := domain.NewProduct(*patch.Name, *patch.Category, *patch.Price)
	patch.Apply(newProduct)
	newProduct.Image = reference

	var created *domain.Product
	err = p.txManager.Do(ctx, func(ctx context.Context) error {
		var err error
		created, err = p.productRepo.Create(ctx, newProduct)
		if err != nil {
			return err
		}

		return p.recordEvent(ctx, domain.NewProductEvent(domain.ProductCreated, created.ID, created))
	})
	if err != nil {
		if stored != "" {
			p.logger.Warnf("Cleaning up orphaned image after transaction failure. image: %s, error: %v", stored, e.Wrap(op, err))
			p.imagesInfra.CleanupImages([]string{stored})
		}
		return nil, e.Wrap(op, err)
	}

	return created, nil
}

// UpdateProduct применяет к продукту только переданные поля.
// Новое изображение записывается до изменения записи, старое удаляется только после коммита.
func (p *ProductUseCase) UpdateProduct(ctx context.Context, req *UpdateProductReq) (*domain.Product, error) {
	const op = "ProductUseCase.UpdateProduct"

	var (
		updated  *domain.Product
		oldImage *string
		stored   string
	)

	err := p.txManager.Do(ctx, func(ctx context.Context) error {
		current, err := p.productRepo.GetForUpdate(ctx, req.ID)
		if err != nil {
			return err
		}

		verr := e.NewValidationError()
		patch := validateProductInput(&req.ProductInput, false, verr)
		image, reference := p.prepareUpload(req.Upload, current.Image, verr)
		if err := verr.OrNil(); err != nil {
			p.logger.Infof("update product %d: %v", req.ID, err)
			return err
		}

		if image != nil {
			stored, err = p.imagesInfra.StoreImage(ctx, image)
			if err != nil {
				p.logger.Errorf(err, "update product %d: failed to store image", req.ID)
				return err
			}
			reference = &stored
		}

		if reference != nil && (current.Image == nil || *current.Image != *reference) {
			patch.Image = reference
			oldImage = current.Image
		}

		if patch.Empty() {
			updated = current
			return nil
		}

		updated, err = p.productRepo.Update(ctx, req.ID, patch)
		if err != nil {
			return err
		}

		return p.recordEvent(ctx, domain.NewProductEvent(domain.ProductUpdated, updated.ID, updated))
	})
	if err != nil {
		if stored != "" {
			p.logger.Warnf("Cleaning up orphaned image after transaction failure. image: %s, error: %v", stored, e.Wrap(op, err))
			p.imagesInfra.CleanupImages([]string{stored})
		}
		return nil, e.Wrap(op, err)
	}

	p.invalidateCache(ctx, req.ID)

	if oldImage != nil {
		p.deleteImage(ctx, *oldImage)
	}

	return updated, nil
}

// DeleteProduct всегда удаляет запись; файл изображения удаляется после коммита по возможности.
func (p *ProductUseCase) DeleteProduct(ctx context.Context, id int64) error {
	const op = "ProductUseCase.DeleteProduct"

	var deleted *domain.Product
	err := p.txManager.Do(ctx, func(ctx context.Context) error {
		var err error
		deleted, err = p.productRepo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if err := p.productRepo.Delete(ctx, id); err != nil {
			return err
		}

		return p.recordEvent(ctx, domain.NewProductEvent(domain.ProductDeleted, id, nil))
	})
	if err != nil {
		return e.Wrap(op, err)
	}

	p.invalidateCache(ctx, id)

	if deleted.Image != nil {
		p.deleteImage(ctx, *deleted.Image)
	}

	return nil
}

// OpenImage открывает сохранённое изображение для отдачи клиенту.
func (p *ProductUseCase) OpenImage(ctx context.Context, filename string) (*ImageObject, error) {
	const op = "ProductUseCase.OpenImage"

	obj, err := p.imagesInfra.OpenImage(ctx, filename)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return obj, nil
}

// ResolveImageURL превращает ссылку на изображение в публичный URL.
func (p *ProductUseCase) ResolveImageURL(reference string) string {
	return p.imagesInfra.ResolveURL(reference)
}

// prepareUpload выбирает изображение из запроса по приоритету Base64 > File > Reference.
// Возвращает изображение для записи или готовую ссылку. Нечитаемые данные
// не валят запрос: изображение отбрасывается с предупреждением в логе.
// Ссылку на файл хранилища клиент может передать только ту, что уже стоит в записи (current).
func (p *ProductUseCase) prepareUpload(upload UploadPayload, current *string, verr *e.ValidationError) (*domain.Image, *string) {
	switch {
	case upload.Base64 != nil && *upload.Base64 != "":
		image, err := p.decoder.DecodeBase64(*upload.Base64)
		return p.decoded(image, err, "image_base64", verr), nil
	case upload.File != nil:
		image, err := p.decoder.DecodeFile(upload.File)
		return p.decoded(image, err, "image", verr), nil
	case upload.Reference != nil && *upload.Reference != "":
		if len([]rune(*upload.Reference)) > maxStringLen {
			verr.Add("image", tooLong("image"))
			return nil, nil
		}
		ref := *upload.Reference
		if p.imagesInfra.OwnsReference(ref) && (current == nil || *current != ref) {
			verr.Add("image", "The image must be an external URL or an uploaded file.")
			return nil, nil
		}
		return nil, upload.Reference
	default:
		return nil, nil
	}
}

func (p *ProductUseCase) decoded(image *domain.Image, err error, field string, verr *e.ValidationError) *domain.Image {
	switch {
	case err == nil:
		return image
	case isImageTooLarge(err):
		verr.Add(field, imageTooLarge(field, p.decoder.MaxSize()))
	case errors.Is(err, e.ErrInvalidImageData):
		p.logger.Warnf("Dropping invalid image from %s: %v", field, err)
	default:
		verr.Add(field, "The "+label(field)+" could not be processed.")
	}

	return nil
}

// deleteImage удаляет старое изображение; при ошибке передаёт его фоновой очистке.
func (p *ProductUseCase) deleteImage(ctx context.Context, reference string) {
	if err := p.imagesInfra.DeleteImage(ctx, reference); err != nil {
		p.logger.Errorf(err, "failed to delete image %s, scheduling background cleanup", reference)
		p.imagesInfra.CleanupImages([]string{reference})
	}
}

// invalidateCache ждёт завершения начатых заполнений кэша и отменяет ещё не начатые.
func (p *ProductUseCase) invalidateCache(ctx context.Context, id int64) {
	p.cacheMu.Lock()
	p.cacheEpoch.Add(1)
	p.cacheMu.Unlock()

	if err := p.cacheRepo.DeleteProducts(ctx, []int64{id}); err != nil {
		p.logger.Warnf("Failed to delete product %d from cache: %v", id, err)
	}
}

// recordEvent сохраняет событие в outbox в текущей транзакции.
func (p *ProductUseCase) recordEvent(ctx context.Context, event *domain.ProductEvent) error {
	if p.outboxRepo == nil {
		return nil
	}

	payload, err := json.Marshal(newProductEventPayload(event))
	if err != nil {
		return err
	}

	_, err = p.outboxRepo.Create(ctx, &OutboxEvent{
		EventID:   event.EventID,
		EventType: OutboxEventType(event.Type),
		ProductID: event.ProductID,
		Payload:   payload,
		Status:    Pending,
		CreatedAt: event.OccurredAt,
	})

	return err
}
