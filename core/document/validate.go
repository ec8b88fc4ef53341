package document

import (
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"

	"github.com/aulaprof/aula/core"
)

const sniffLen = 3072

// Filter checks every file against the flow. rejections[i] is the outcome of files[i] when it
// is rejected, nil when it is accepted; rejections never drop the other files.
// warning is an aggregate ValidationError listing the rejected names, nil when everything was accepted.
// With verifyContent, the leading bytes are sniffed and must agree with the declared type.
func Filter(flow Flow, files []File, verifyContent bool) (rejections []*FileOutcome, warning error) {
	rejections = make([]*FileOutcome, len(files))
	names := make([]string, 0)
	for i, f := range files {
		if err := check(flow, f, verifyContent); err != nil {
			rejections[i] = &FileOutcome{
				Name:      f.Name,
				Status:    StatusRejected,
				ErrorKind: core.ErrorKind(err),
				Error:     err.Error(),
			}
			names = append(names, f.Name)
		}
	}
	if len(names) > 0 {
		msg := fmt.Sprintf("some files were rejected, allowed types are %s: %s",
			strings.Join(flow.AllowedTypes(), ", "), strings.Join(names, ", "))
		warning = core.NewValidationError(errors.New(msg))
	}
	return rejections, warning
}

func check(flow Flow, f File, verifyContent bool) error {
	if !flow.Accepts(f.ContentType) {
		return core.NewValidationError(nil, core.FieldError{Field: "files", Error: fmt.Sprintf("%s: type %q is not allowed", f.Name, f.ContentType)})
	}
	if !verifyContent {
		return nil
	}
	detected, err := sniff(f)
	if err != nil {
		return core.NewValidationError(errors.Wrap(err, "reading "+f.Name))
	}
	if !sameType(normalizeType(f.ContentType), detected) {
		return core.NewValidationError(nil, core.FieldError{Field: "files", Error: fmt.Sprintf("%s: content is %q, not %q", f.Name, detected.String(), f.ContentType)})
	}
	return nil
}

func sniff(f File) (*mimetype.MIME, error) {
	if f.Open == nil {
		return nil, errors.New("no content")
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return mimetype.DetectReader(io.LimitReader(rc, sniffLen))
}

// sameType accepts the legacy office formats, which are all sniffed as OLE containers.
func sameType(declared string, detected *mimetype.MIME) bool {
	for m := detected; m != nil; m = m.Parent() {
		if m.Is(declared) {
			return true
		}
	}
	switch declared {
	case TypeDOC, TypePPT:
		return detected.Is("application/x-ole-storage")
	}
	return false
}
