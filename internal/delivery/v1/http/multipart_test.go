package http

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/DRSN-tech/product-api/pkg/e"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultipartParser_NotApplicable(t *testing.T) {
	p := NewMultipartParser(1024)

	for _, ct := range []string{"", "application/json", "multipart/form-data", "multipart/mixed; boundary=x"} {
		form, ok, err := p.Parse(ct, strings.NewReader("ignored"))

		assert.NoError(t, err, ct)
		assert.False(t, ok, ct)
		assert.Nil(t, form, ct)
	}
}

func TestMultipartParser_FieldsAndFiles(t *testing.T) {
	body, ct := multipartBody(t, map[string]string{"name": "Pen", "price": "1.50"}, "image", "pen.png", []byte("data"))

	form, ok, err := NewMultipartParser(1024).Parse(ct, body)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, map[string]string{"name": "Pen", "price": "1.50"}, form.Fields)
	require.Contains(t, form.Files, "image")
	assert.Equal(t, "pen.png", form.Files["image"].Filename)
	assert.Equal(t, "application/octet-stream", form.Files["image"].ContentType)
	assert.Equal(t, []byte("data"), form.Files["image"].Data)

	input := form.Input()
	require.NotNil(t, input.Name)
	assert.Equal(t, "Pen", *input.Name)
	assert.NotNil(t, input.Upload.File)
	assert.Nil(t, input.Category)
}

func TestMultipartParser_SkipsNamelessParts(t *testing.T) {
	body := "--b\r\n" +
		"Content-Disposition: form-data\r\n\r\n" +
		"orphan\r\n" +
		"--b\r\n" +
		"Content-Disposition: form-data; name=\"sku\"\r\n\r\n" +
		"PEN-1\r\n" +
		"--b--\r\n"

	form, ok, err := NewMultipartParser(1024).Parse("multipart/form-data; boundary=b", strings.NewReader(body))
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, map[string]string{"sku": "PEN-1"}, form.Fields)
	assert.Empty(t, form.Files)
}

func TestMultipartParser_EmptyFilenameIsFile(t *testing.T) {
	body := "--b\r\n" +
		"Content-Disposition: form-data; name=\"image\"; filename=\"\"\r\n\r\n" +
		"\r\n" +
		"--b--\r\n"

	form, _, err := NewMultipartParser(1024).Parse("multipart/form-data; boundary=b", strings.NewReader(body))
	require.NoError(t, err)

	assert.Empty(t, form.Fields)
	assert.Contains(t, form.Files, "image")
}

func TestMultipartParser_FileTooLarge(t *testing.T) {
	body, ct := multipartBody(t, nil, "image", "big.png", bytes.Repeat([]byte{0}, 17))

	_, ok, err := NewMultipartParser(16).Parse(ct, body)

	assert.True(t, ok)
	verr, isValidation := e.AsValidation(err)
	require.True(t, isValidation)
	assert.Contains(t, verr.Fields, "image")
}

func TestMultipartParser_Corrupted(t *testing.T) {
	body := "--b\r\nContent-Disposition: form-data; name=\"name\"\r\n\r\nPen"

	_, ok, err := NewMultipartParser(1024).Parse("multipart/form-data; boundary=b", strings.NewReader(body))

	assert.True(t, ok)
	assert.True(t, errors.Is(err, e.ErrMalformedMultipart))
}
