package minio

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DRSN-tech/product-api/internal/cfg"
	"github.com/DRSN-tech/product-api/internal/domain"
	"github.com/DRSN-tech/product-api/pkg/e"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bucket = "product-images"

// fakeS3 — минимальный S3 на httptest: PUT/HEAD/GET/DELETE по path-style адресам.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	deletes []string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := strings.TrimPrefix(r.URL.Path, "/"+bucket+"/")

	switch r.Method {
	case http.MethodPut:
		_, _ = io.Copy(io.Discard, r.Body)
		f.objects[key] = []byte("stored")
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodHead, http.MethodGet:
		data, ok := f.objects[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("ETag", `"etag"`)
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = w.Write(data)
		}
	case http.MethodDelete:
		delete(f.objects, key)
		f.deletes = append(f.deletes, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeS3) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, ok := f.objects[key]
	return ok
}

func (f *fakeS3) deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.deletes...)
}

func newTestRepo(t *testing.T, objects map[string][]byte) (*ImageRepo, *fakeS3) {
	t.Helper()

	fake := &fakeS3{objects: objects}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	mc, err := minio.New(u.Host, &minio.Options{
		Creds:  credentials.NewStaticV4("key", "secret", ""),
		Region: "us-east-1",
	})
	require.NoError(t, err)

	return NewImageRepo(mc, &cfg.MinIOCfg{BucketName: bucket}), fake
}

func TestImageRepo_Upload(t *testing.T) {
	repo, fake := newTestRepo(t, map[string][]byte{})

	err := repo.Upload(context.Background(), "product_1.png", domain.NewImage([]byte("png"), "png", "image/png"))
	require.NoError(t, err)
	assert.True(t, fake.has("product_1.png"))
}

func TestImageRepo_UploadExisting(t *testing.T) {
	repo, _ := newTestRepo(t, map[string][]byte{"product_1.png": []byte("old")})

	err := repo.Upload(context.Background(), "product_1.png", domain.NewImage([]byte("png"), "png", "image/png"))
	assert.ErrorIs(t, err, e.ErrImageExists)
}

func TestImageRepo_Get(t *testing.T) {
	repo, _ := newTestRepo(t, map[string][]byte{"product_1.png": []byte("png-bytes")})

	obj, err := repo.Get(context.Background(), "product_1.png")
	require.NoError(t, err)
	defer obj.Body.Close()

	data, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)
	assert.Equal(t, int64(9), obj.Size)
	assert.Equal(t, "image/png", obj.ContentType)
}

func TestImageRepo_GetMissing(t *testing.T) {
	repo, _ := newTestRepo(t, map[string][]byte{})

	_, err := repo.Get(context.Background(), "missing.png")
	assert.ErrorIs(t, err, e.ErrImageNotFound)
}

func TestImageRepo_Delete(t *testing.T) {
	repo, fake := newTestRepo(t, map[string][]byte{"a.jpg": []byte("x")})

	require.NoError(t, repo.Delete(context.Background(), "a.jpg"))
	require.NoError(t, repo.Delete(context.Background(), "a.jpg"))
	assert.Equal(t, []string{"a.jpg", "a.jpg"}, fake.deleted())
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(minio.ErrorResponse{Code: "NoSuchKey"}))
	assert.True(t, isNotFound(minio.ErrorResponse{StatusCode: http.StatusNotFound}))
	assert.False(t, isNotFound(minio.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden}))
}
