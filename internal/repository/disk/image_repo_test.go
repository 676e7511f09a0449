package disk

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/DRSN-tech/product-api/internal/domain"
	"github.com/DRSN-tech/product-api/pkg/e"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageRepo_UploadCreatesDirectory(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "images")
	repo := NewImageRepo(root)

	err := repo.Upload(context.Background(), "product_1.png", domain.NewImage([]byte("png"), "png", "image/png"))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "product_1.png"))
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), data)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must be removed")
}

func TestImageRepo_UploadNeverOverwrites(t *testing.T) {
	repo := NewImageRepo(t.TempDir())
	ctx := context.Background()

	require.NoError(t, repo.Upload(ctx, "a.jpg", domain.NewImage([]byte("first"), "jpg", "image/jpeg")))

	err := repo.Upload(ctx, "a.jpg", domain.NewImage([]byte("second"), "jpg", "image/jpeg"))
	assert.ErrorIs(t, err, e.ErrImageExists)

	obj, err := repo.Get(ctx, "a.jpg")
	require.NoError(t, err)
	defer obj.Body.Close()

	data, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), data)
	assert.Equal(t, "image/jpeg", obj.ContentType)
	assert.Equal(t, int64(5), obj.Size)
}

func TestImageRepo_DeleteIsIdempotent(t *testing.T) {
	root := t.TempDir()
	repo := NewImageRepo(root)
	ctx := context.Background()

	require.NoError(t, repo.Upload(ctx, "a.gif", domain.NewImage([]byte("gif"), "gif", "image/gif")))
	require.NoError(t, repo.Delete(ctx, "a.gif"))
	require.NoError(t, repo.Delete(ctx, "a.gif"))

	_, err := os.Stat(filepath.Join(root, "a.gif"))
	assert.True(t, os.IsNotExist(err))
}

func TestImageRepo_GetMissing(t *testing.T) {
	repo := NewImageRepo(t.TempDir())

	_, err := repo.Get(context.Background(), "missing.png")
	assert.ErrorIs(t, err, e.ErrImageNotFound)

	_, err = repo.Get(context.Background(), "../etc/passwd")
	assert.ErrorIs(t, err, e.ErrImageNotFound)
}

func TestImageRepo_RejectsPathTraversal(t *testing.T) {
	repo := NewImageRepo(t.TempDir())

	err := repo.Upload(context.Background(), "../x.png", domain.NewImage([]byte("x"), "png", "image/png"))
	assert.Error(t, err)

	assert.Error(t, repo.Delete(context.Background(), "sub/x.png"))
}
