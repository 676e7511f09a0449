package infrastructure

import (
	"path"
	"strings"

	"github.com/DRSN-tech/product-api/pkg/e"
)

// DefaultImageExtension используется, когда расширение определить не удалось.
const DefaultImageExtension = "jpg"

// GetExtensionFromMIME возвращает расширение файла по MIME-типу изображения.
// Поддерживает jpeg, jpg, png, gif, webp. Возвращает ошибку e.ErrUnsupportedMediaType для неподдерживаемых типов.
func GetExtensionFromMIME(mime string) (string, error) {
	switch strings.ToLower(mime) {
	case "image/jpeg", "image/jpg":
		return "jpg", nil
	case "image/png":
		return "png", nil
	case "image/gif":
		return "gif", nil
	case "image/webp":
		return "webp", nil
	default:
		return "bin", e.ErrUnsupportedMediaType
	}
}

// ContentTypeByExtension возвращает Content-Type для отдачи файла по его расширению.
// png и gif распознаются, всё остальное отдаётся как image/jpeg.
func ContentTypeByExtension(filename string) string {
	switch strings.ToLower(strings.TrimPrefix(path.Ext(filename), ".")) {
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	default:
		return "image/jpeg"
	}
}

// NormalizeSubtype приводит подтип изображения из data URL к расширению файла.
func NormalizeSubtype(subtype string) string {
	subtype = strings.ToLower(strings.TrimSpace(subtype))
	switch subtype {
	case "jpeg", "pjpeg":
		return "jpg"
	case "svg+xml":
		return "svg"
	case "":
		return DefaultImageExtension
	default:
		return subtype
	}
}
