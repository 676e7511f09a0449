package disk

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/DRSN-tech/product-api/internal/domain"
	"github.com/DRSN-tech/product-api/internal/infrastructure"
	"github.com/DRSN-tech/product-api/internal/usecase"
	"github.com/DRSN-tech/product-api/pkg/e"
	"github.com/jimlawless/whereami"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// ImageRepo хранит изображения в каталоге на локальном диске.
type ImageRepo struct {
	root string
}

func NewImageRepo(root string) *ImageRepo {
	return &ImageRepo{root: root}
}

// Upload записывает файл атомарно: сначала во временный файл в том же каталоге,
// затем fsync и жёсткая ссылка на итоговое имя. Существующий файл не перезаписывается.
func (r *ImageRepo) Upload(ctx context.Context, filename string, image *domain.Image) error {
	target, err := r.path(filename)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if err := ctx.Err(); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if err := os.MkdirAll(r.root, dirPerm); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	tmp, err := os.CreateTemp(r.root, ".upload-*")
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := writeAndSync(tmp, image.Data); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if err := os.Chmod(tmpName, filePerm); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if err := os.Link(tmpName, target); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return e.Wrap(whereami.WhereAmI(), e.ErrImageExists)
		}
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// Delete удаляет файл. Отсутствие файла не считается ошибкой.
func (r *ImageRepo) Delete(_ context.Context, filename string) error {
	target, err := r.path(filename)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// Get открывает файл на чтение. Закрыть Body обязан вызывающий.
func (r *ImageRepo) Get(_ context.Context, filename string) (*usecase.ImageObject, error) {
	target, err := r.path(filename)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), e.ErrImageNotFound)
	}

	f, err := os.Open(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, e.Wrap(whereami.WhereAmI(), e.ErrImageNotFound)
		}
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	if info.IsDir() {
		f.Close()
		return nil, e.Wrap(whereami.WhereAmI(), e.ErrImageNotFound)
	}

	return &usecase.ImageObject{
		Name:        filename,
		Body:        f,
		Size:        info.Size(),
		ContentType: infrastructure.ContentTypeByExtension(filename),
		ModTime:     info.ModTime(),
	}, nil
}

// path возвращает путь к файлу внутри корня; имена с разделителями пути отклоняются.
func (r *ImageRepo) path(filename string) (string, error) {
	if filename == "" || filename == "." || filename == ".." || filepath.Base(filename) != filename {
		return "", fmt.Errorf("invalid image filename %q", filename)
	}

	return filepath.Join(r.root, filename), nil
}

func writeAndSync(f *os.File, data []byte) error {
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}

	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}
