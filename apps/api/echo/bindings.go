package echoapi

import (
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/aulaprof/aula/core"
	"github.com/aulaprof/aula/core/document"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// UploadForm is the multipart body of an upload: files (or files[]), folder and title.
type UploadForm struct {
	Folder string
	Title  string
	Files  []document.File
}

// Bind parses the multipart form, refusing bodies larger than maxSize.
func (uf *UploadForm) Bind(ctx echo.Context, maxSize int64) error {
	req := ctx.Request()
	if maxSize > 0 {
		req.Body = http.MaxBytesReader(ctx.Response(), req.Body, maxSize)
	}
	form, err := ctx.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errUploadTooLarge
		}
		return echo.NewHTTPError(http.StatusBadRequest, "invalid multipart form").SetInternal(err)
	}

	uf.Folder = core.CleanString(firstValue(form.Value["folder"]))
	uf.Title = core.CleanString(firstValue(form.Value["title"]))

	headers := append(form.File["files"], form.File["files[]"]...)
	uf.Files = make([]document.File, 0, len(headers))
	for _, fh := range headers {
		uf.Files = append(uf.Files, newFormFile(fh))
	}
	return nil
}

func newFormFile(fh *multipart.FileHeader) document.File {
	return document.File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

func firstValue(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}
