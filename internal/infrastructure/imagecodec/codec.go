// Package imagecodec приводит загруженное изображение (файл из multipart
// или base64-строку) к байтам и расширению для записи в хранилище.
package imagecodec

import (
	"encoding/base64"
	"mime"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/DRSN-tech/product-api/internal/domain"
	"github.com/DRSN-tech/product-api/internal/infrastructure"
	"github.com/DRSN-tech/product-api/internal/usecase"
	"github.com/DRSN-tech/product-api/pkg/e"
)

const maxExtensionLen = 10

var dataURLPrefix = regexp.MustCompile(`(?i)^data:image/([a-z0-9.+-]+);base64,`)

// Codec декодирует изображения. Байты не перекодируются.
type Codec struct {
	maxSize int64
}

func NewCodec(maxSize int64) *Codec {
	return &Codec{maxSize: maxSize}
}

// DecodeBase64 декодирует строку вида "data:image/<subtype>;base64,<data>" или "<data>".
// Некорректные данные возвращают e.ErrInvalidImageData, слишком большие e.ErrImageTooLarge.
func (c *Codec) DecodeBase64(raw string) (*domain.Image, error) {
	const op = "Codec.DecodeBase64"

	var subtype string
	if m := dataURLPrefix.FindStringSubmatch(raw); m != nil {
		subtype = m[1]
		raw = raw[len(m[0]):]
	}

	payload := stripWhitespace(raw)
	if payload == "" {
		return nil, e.Wrap(op, e.ErrInvalidImageData)
	}

	if int64(base64.StdEncoding.DecodedLen(len(payload))) > c.maxSize+2 {
		return nil, e.Wrap(op, e.ErrImageTooLarge)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return nil, e.Wrap(op, e.ErrInvalidImageData)
		}
	}

	if len(data) == 0 {
		return nil, e.Wrap(op, e.ErrInvalidImageData)
	}
	if int64(len(data)) > c.maxSize {
		return nil, e.Wrap(op, e.ErrImageTooLarge)
	}

	sniffed := http.DetectContentType(data)

	var ext string
	switch {
	case subtype != "":
		ext = infrastructure.NormalizeSubtype(subtype)
	default:
		ext = extensionFromSniff(sniffed)
	}

	return domain.NewImage(data, ext, contentType(sniffed, ext)), nil
}

// DecodeFile принимает файл из multipart как есть. Расширение берётся из
// исходного имени файла, иначе используется jpg.
func (c *Codec) DecodeFile(part *usecase.FilePart) (*domain.Image, error) {
	const op = "Codec.DecodeFile"

	if part == nil || len(part.Data) == 0 {
		return nil, e.Wrap(op, e.ErrInvalidImageData)
	}
	if int64(len(part.Data)) > c.maxSize {
		return nil, e.Wrap(op, e.ErrImageTooLarge)
	}

	ext := extensionFromFilename(part.Filename)

	declared := part.ContentType
	if !strings.HasPrefix(strings.ToLower(declared), "image/") {
		declared = http.DetectContentType(part.Data)
	}

	return domain.NewImage(part.Data, ext, contentType(declared, ext)), nil
}

// MaxSize возвращает лимит размера изображения в байтах.
func (c *Codec) MaxSize() int64 {
	return c.maxSize
}

func extensionFromFilename(filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "" || len(ext) > maxExtensionLen || strings.IndexFunc(ext, notAlnum) >= 0 {
		return infrastructure.DefaultImageExtension
	}

	return ext
}

func extensionFromSniff(contentType string) string {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	ext, err := infrastructure.GetExtensionFromMIME(mediaType)
	if err != nil {
		return infrastructure.DefaultImageExtension
	}

	return ext
}

func contentType(candidate string, ext string) string {
	mediaType, _, err := mime.ParseMediaType(candidate)
	if err == nil && strings.HasPrefix(mediaType, "image/") {
		return mediaType
	}

	if byExt := mime.TypeByExtension("." + ext); byExt != "" {
		return byExt
	}

	return "application/octet-stream"
}

func stripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func notAlnum(r rune) bool {
	return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
}
