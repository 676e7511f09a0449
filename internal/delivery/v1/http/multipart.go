package http

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/DRSN-tech/product-api/internal/usecase"
	"github.com/DRSN-tech/product-api/pkg/e"
	"github.com/jimlawless/whereami"
)

const multipartFormData = "multipart/form-data"

// Form — разобранное multipart-тело: обычные поля и файлы.
type Form struct {
	Fields map[string]string
	Files  map[string]*usecase.FilePart
}

func newForm() *Form {
	return &Form{
		Fields: make(map[string]string),
		Files:  make(map[string]*usecase.FilePart),
	}
}

// Input переводит форму в ProductInput.
func (f *Form) Input() usecase.ProductInput {
	return inputFromFields(f.Fields, f.Files)
}

// MultipartParser разбирает multipart/form-data тело для методов,
// для которых net/http не заполняет форму сам (PUT, PATCH).
type MultipartParser struct {
	maxPartSize int64
}

func NewMultipartParser(maxPartSize int64) *MultipartParser {
	return &MultipartParser{maxPartSize: maxPartSize}
}

// Parse возвращает (nil, false, nil), если тело не multipart/form-data или нет boundary.
// Если файл больше maxPartSize, возвращается ошибка валидации на поле файла.
func (p *MultipartParser) Parse(contentType string, body io.Reader) (*Form, bool, error) {
	mt, params, err := mime.ParseMediaType(contentType)
	if err != nil || mt != multipartFormData {
		return nil, false, nil
	}

	boundary := params["boundary"]
	if boundary == "" {
		return nil, false, nil
	}

	form := newForm()
	reader := multipart.NewReader(body, boundary)
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return form, true, nil
		}
		if err != nil {
			return nil, true, p.readError(err)
		}

		if err := p.readPart(form, part); err != nil {
			_ = part.Close()
			return nil, true, err
		}
		_ = part.Close()
	}
}

func (p *MultipartParser) readPart(form *Form, part *multipart.Part) error {
	name := part.FormName()
	if name == "" {
		return nil
	}

	if !hasFilename(part) {
		data, err := io.ReadAll(part)
		if err != nil {
			return p.readError(err)
		}
		form.Fields[name] = strings.TrimSuffix(string(data), "\r\n")
		return nil
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(part, p.maxPartSize+1))
	if err != nil {
		return p.readError(err)
	}
	if n > p.maxPartSize {
		return usecase.NewImageTooLargeError(name, p.maxPartSize)
	}

	form.Files[name] = usecase.NewFilePart(part.FileName(), part.Header.Get("Content-Type"), buf.Bytes())
	return nil
}

func (p *MultipartParser) readError(err error) error {
	if bodyTooLarge(err) {
		return e.Wrap(whereami.WhereAmI(), e.ErrBodyTooLarge)
	}

	return e.Wrap(whereami.WhereAmI(), errors.Join(e.ErrMalformedMultipart, err))
}

// hasFilename сообщает, есть ли у части параметр filename (даже пустой).
func hasFilename(part *multipart.Part) bool {
	_, params, err := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
	if err != nil {
		return false
	}

	_, ok := params["filename"]
	return ok
}

// formFromRequest переводит форму, разобранную net/http, в Form.
// Из нескольких значений поля берётся первое.
func formFromRequest(r *http.Request, maxPartSize int64) (*Form, error) {
	form := newForm()

	values := r.PostForm
	if r.MultipartForm != nil {
		values = r.MultipartForm.Value
	}
	for key, vals := range values {
		if len(vals) > 0 {
			form.Fields[key] = vals[0]
		}
	}

	if r.MultipartForm == nil {
		return form, nil
	}

	for key, headers := range r.MultipartForm.File {
		if len(headers) == 0 {
			continue
		}
		fh := headers[0]
		if fh.Size > maxPartSize {
			return nil, usecase.NewImageTooLargeError(key, maxPartSize)
		}

		file, err := fh.Open()
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		data, err := io.ReadAll(file)
		_ = file.Close()
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		form.Files[key] = usecase.NewFilePart(fh.Filename, fh.Header.Get("Content-Type"), data)
	}

	return form, nil
}
