package minio

import (
	"bytes"
	"context"
	"net/http"

	"github.com/DRSN-tech/product-api/internal/cfg"
	"github.com/DRSN-tech/product-api/internal/domain"
	"github.com/DRSN-tech/product-api/internal/usecase"
	"github.com/DRSN-tech/product-api/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/minio/minio-go/v7"
)

// ImageRepo реализует репозиторий изображений поверх MinIO.
type ImageRepo struct {
	mc  *minio.Client
	cfg *cfg.MinIOCfg
}

func NewImageRepo(mc *minio.Client, cfg *cfg.MinIOCfg) *ImageRepo {
	return &ImageRepo{
		mc:  mc,
		cfg: cfg,
	}
}

// Upload загружает изображение в MinIO под ключом filename.
// Если объект с таким ключом уже есть, возвращает e.ErrImageExists.
func (i *ImageRepo) Upload(ctx context.Context, filename string, image *domain.Image) error {
	if _, err := i.mc.StatObject(ctx, i.cfg.BucketName, filename, minio.StatObjectOptions{}); err == nil {
		return e.Wrap(whereami.WhereAmI(), e.ErrImageExists)
	} else if !isNotFound(err) {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	reader := bytes.NewReader(image.Data)
	_, err := i.mc.PutObject(ctx, i.cfg.BucketName, filename, reader, image.Size, minio.PutObjectOptions{
		ContentType: image.ContentType,
	})
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// Delete удаляет объект из MinIO по указанному ключу. RemoveObject идемпотентен.
func (i *ImageRepo) Delete(ctx context.Context, filename string) error {
	if err := i.mc.RemoveObject(ctx, i.cfg.BucketName, filename, minio.RemoveObjectOptions{}); err != nil {
		if isNotFound(err) {
			return nil
		}
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// Get открывает объект на чтение.
func (i *ImageRepo) Get(ctx context.Context, filename string) (*usecase.ImageObject, error) {
	obj, err := i.mc.GetObject(ctx, i.cfg.BucketName, filename, minio.GetObjectOptions{})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	// GetObject ленивый: наличие объекта проверяется только при Stat/Read.
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		if isNotFound(err) {
			return nil, e.Wrap(whereami.WhereAmI(), e.ErrImageNotFound)
		}
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return &usecase.ImageObject{
		Name:        filename,
		Body:        obj,
		Size:        info.Size,
		ContentType: info.ContentType,
		ModTime:     info.LastModified,
	}, nil
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}
