package document

import (
	"mime"
	"strings"
)

// Accepted upload content types.
const (
	TypePDF  = "application/pdf"
	TypeDOC  = "application/msword"
	TypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	TypePPT  = "application/vnd.ms-powerpoint"
	TypePPTX = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	TypeJPEG = "image/jpeg"
	TypePNG  = "image/png"
	TypeGIF  = "image/gif"
)

var (
	DocumentTypes = []string{TypePDF, TypeDOC, TypeDOCX, TypePPT, TypePPTX}
	ImageTypes    = []string{TypeJPEG, TypePNG, TypeGIF}
)

// Flow parametrizes one upload/listing workflow: where objects go, which table records them,
// which folders a professor may pick and which content types are accepted.
type Flow struct {
	Name         string   `json:"name"`
	Bucket       string   `json:"bucket"`
	Table        string   `json:"-"`
	Folders      []string `json:"folders"`
	AllowImages  bool     `json:"allow_images"`
	Types        []string `json:"-"` // narrows the allow-list when set
	RequireTitle bool     `json:"require_title"`
}

var (
	FlowFiles = Flow{
		Name:        "files",
		Bucket:      "documents",
		Table:       "files",
		Folders:     []string{"documents", "syllabi", "resources"},
		AllowImages: true,
	}
	FlowSyllabi = Flow{
		Name:    "syllabi",
		Bucket:  "documents",
		Table:   "syllabi",
		Folders: []string{"syllabi"},
	}
	FlowPDFs = Flow{
		Name:         "pdfs",
		Bucket:       "documents",
		Table:        "files",
		Folders:      []string{"pdfs"},
		Types:        []string{TypePDF},
		RequireTitle: true,
	}

	Flows = []Flow{FlowFiles, FlowSyllabi, FlowPDFs}
)

// FlowByName looks a registered flow up by its URL name.
func FlowByName(name string) (Flow, bool) {
	for _, f := range Flows {
		if f.Name == name {
			return f, true
		}
	}
	return Flow{}, false
}

// AllowedTypes is the effective allow-list of the flow.
func (f Flow) AllowedTypes() []string {
	types := make([]string, 0, len(DocumentTypes)+len(ImageTypes))
	types = append(types, DocumentTypes...)
	if f.AllowImages {
		types = append(types, ImageTypes...)
	}
	if len(f.Types) == 0 {
		return types
	}
	narrowed := make([]string, 0, len(f.Types))
	for _, t := range types {
		for _, nt := range f.Types {
			if t == nt {
				narrowed = append(narrowed, t)
			}
		}
	}
	return narrowed
}

// Accepts reports whether a declared content type is in the flow's allow-list.
// Parameters such as "; charset=binary" are ignored.
func (f Flow) Accepts(contentType string) bool {
	ct := normalizeType(contentType)
	if ct == "" {
		return false
	}
	for _, t := range f.AllowedTypes() {
		if t == ct {
			return true
		}
	}
	return false
}

func (f Flow) DefaultFolder() string {
	if len(f.Folders) == 0 {
		return ""
	}
	return f.Folders[0]
}

func (f Flow) HasFolder(folder string) bool {
	for _, fld := range f.Folders {
		if fld == folder {
			return true
		}
	}
	return false
}

func normalizeType(contentType string) string {
	ct, _, err := mime.ParseMediaType(strings.TrimSpace(contentType))
	if err != nil {
		return ""
	}
	return strings.ToLower(ct)
}
