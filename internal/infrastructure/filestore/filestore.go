package filestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/DRSN-tech/product-api/internal/cfg"
	"github.com/DRSN-tech/product-api/internal/domain"
	"github.com/DRSN-tech/product-api/internal/infrastructure"
	"github.com/DRSN-tech/product-api/internal/usecase"
	"github.com/DRSN-tech/product-api/pkg/e"
	"github.com/DRSN-tech/product-api/pkg/jitter"
	"github.com/DRSN-tech/product-api/pkg/logger"
	"github.com/google/uuid"
)

const (
	filenamePrefix   = "product_"
	maxNameAttempts  = 3
	cleanupTimeout   = 30 * time.Second
	defaultAttempts  = 3
	defaultBaseDelay = 200 * time.Millisecond
	defaultMaxDelay  = 2 * time.Second
)

type retryPolicy struct {
	attempts  int
	baseDelay time.Duration
	maxDelay  time.Duration
}

// FileStore связывает ссылки на изображения в записях продуктов с файлами в хранилище
// и отвечает за фоновую очистку осиротевших файлов.
type FileStore struct {
	repo        usecase.ImageRepository
	cfg         *cfg.StorageCfg
	logger      logger.Logger
	shutdownCtx context.Context
	wg          sync.WaitGroup
	retry       retryPolicy
}

func NewFileStore(repo usecase.ImageRepository, cfg *cfg.StorageCfg, logger logger.Logger, shutdownCtx context.Context) *FileStore {
	return &FileStore{
		repo:        repo,
		cfg:         cfg,
		logger:      logger,
		shutdownCtx: shutdownCtx,
		retry: retryPolicy{
			attempts:  defaultAttempts,
			baseDelay: defaultBaseDelay,
			maxDelay:  defaultMaxDelay,
		},
	}
}

// StoreImage записывает изображение под именем product_<uuid>.<ext> и возвращает
// ссылку <prefix>/<filename>. Ссылка возвращается только после завершения записи.
func (f *FileStore) StoreImage(ctx context.Context, image *domain.Image) (string, error) {
	const op = "FileStore.StoreImage"

	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		filename := fmt.Sprintf("%s%s.%s", filenamePrefix, uuid.NewString(), image.Extension)

		err := f.repo.Upload(ctx, filename, image)
		switch {
		case err == nil:
			f.logger.Debugf("%s: stored %s (%d bytes)", op, filename, image.Size)
			return f.reference(filename), nil
		case errors.Is(err, e.ErrImageExists):
			continue
		default:
			return "", e.Wrap(op, fmt.Errorf("%w: %w", e.ErrStorageIO, err))
		}
	}

	return "", e.Wrap(op, fmt.Errorf("%w: no free filename after %d attempts", e.ErrStorageIO, maxNameAttempts))
}

// DeleteImage удаляет файл по ссылке с повторными попытками.
// Ссылки вне хранилища (внешние URL, чужие пути) не принадлежат ему и игнорируются.
func (f *FileStore) DeleteImage(ctx context.Context, reference string) error {
	const op = "FileStore.DeleteImage"

	filename, ok := f.filename(reference)
	if !ok {
		f.logger.Debugf("%s: skip foreign reference %q", op, reference)
		return nil
	}

	if err := f.deleteWithRetry(ctx, filename); err != nil {
		return e.Wrap(op, fmt.Errorf("%w: %w", e.ErrStorageIO, err))
	}

	return nil
}

// CleanupImages запускает фоновую очистку указанных ссылок.
func (f *FileStore) CleanupImages(references []string) {
	if len(references) == 0 {
		return
	}

	f.wg.Add(1)
	go f.cleanup(references)
}

// cleanup удаляет файлы с экспоненциальной задержкой и jitter.
func (f *FileStore) cleanup(references []string) {
	defer f.wg.Done()
	const op = "FileStore.cleanup"

	ctx, cancel := context.WithTimeout(f.shutdownCtx, cleanupTimeout)
	defer cancel()

	for _, reference := range references {
		filename, ok := f.filename(reference)
		if !ok {
			continue
		}

		if err := f.deleteWithRetry(ctx, filename); err != nil {
			if ctx.Err() != nil {
				f.logger.Warnf("%s: interrupted by shutdown, reference=%s", op, reference)
				return
			}
			f.logger.Errorf(err, "%s: giving up on %s, file is orphaned", op, reference)
		}
	}
}

func (f *FileStore) deleteWithRetry(ctx context.Context, filename string) error {
	var err error
	for attempt := 0; attempt < f.retry.attempts; attempt++ {
		if err = f.repo.Delete(ctx, filename); err == nil {
			return nil
		}

		if attempt == f.retry.attempts-1 {
			break
		}

		select {
		case <-time.After(jitter.ExponentialBackoff(f.retry.baseDelay, f.retry.maxDelay, attempt, jitter.DefaultJitter)):
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		}
	}

	return err
}

// WaitForCleanup ожидает завершения всех фоновых задач очистки с учётом таймаута завершения приложения.
func (f *FileStore) WaitForCleanup(shutdownTimeoutCtx context.Context) error {
	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-shutdownTimeoutCtx.Done():
		return fmt.Errorf("image cleanup timeout during shutdown: %w", shutdownTimeoutCtx.Err())
	}
}

// OpenImage открывает файл по имени (последний сегмент ссылки).
func (f *FileStore) OpenImage(ctx context.Context, filename string) (*usecase.ImageObject, error) {
	const op = "FileStore.OpenImage"

	if !validFilename(filename) {
		return nil, e.Wrap(op, e.ErrImageNotFound)
	}

	obj, err := f.repo.Get(ctx, filename)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	obj.ContentType = infrastructure.ContentTypeByExtension(filename)

	return obj, nil
}

// ResolveURL возвращает публичный URL изображения. Абсолютные http(s)-ссылки не меняются.
func (f *FileStore) ResolveURL(reference string) string {
	if isAbsoluteURL(reference) {
		return reference
	}

	return f.cfg.PublicBaseURL + "/" + strings.TrimLeft(reference, "/")
}

// OwnsReference сообщает, указывает ли ссылка на файл этого хранилища.
func (f *FileStore) OwnsReference(reference string) bool {
	_, ok := f.filename(reference)
	return ok
}

func (f *FileStore) reference(filename string) string {
	return f.cfg.PublicPrefix + "/" + filename
}

// filename извлекает имя файла из ссылки, если ссылка принадлежит хранилищу.
func (f *FileStore) filename(reference string) (string, bool) {
	ref := reference
	if isAbsoluteURL(ref) {
		base := f.cfg.PublicBaseURL + "/"
		if f.cfg.PublicBaseURL == "" || !strings.HasPrefix(ref, base) {
			return "", false
		}
		ref = strings.TrimPrefix(ref, base)
	}

	ref = strings.TrimLeft(ref, "/")
	name, ok := strings.CutPrefix(ref, f.cfg.PublicPrefix+"/")
	if !ok || !validFilename(name) {
		return "", false
	}

	return name, true
}

func validFilename(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}

func isAbsoluteURL(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
