package domain

// Image — декодированное изображение, готовое к записи в хранилище.
// Байты хранятся как есть, без перекодирования.
type Image struct {
	Data        []byte
	Extension   string // без точки: jpg, png, ...
	ContentType string
	Size        int64
}

func NewImage(data []byte, extension string, contentType string) *Image {
	return &Image{
		Data:        data,
		Extension:   extension,
		ContentType: contentType,
		Size:        int64(len(data)),
	}
}
