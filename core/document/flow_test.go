package document

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aulaprof/aula/core"
)

func TestFlow_Accepts(t *testing.T) {
	tests := []struct {
		contentType string
		files       bool
		syllabi     bool
		pdfs        bool
	}{
		{contentType: TypePDF, files: true, syllabi: true, pdfs: true},
		{contentType: "application/pdf; charset=binary", files: true, syllabi: true, pdfs: true},
		{contentType: "Application/PDF", files: true, syllabi: true, pdfs: true},
		{contentType: TypeDOC, files: true, syllabi: true},
		{contentType: TypeDOCX, files: true, syllabi: true},
		{contentType: TypePPT, files: true, syllabi: true},
		{contentType: TypePPTX, files: true, syllabi: true},
		{contentType: TypeJPEG, files: true},
		{contentType: TypePNG, files: true},
		{contentType: TypeGIF, files: true},
		{contentType: "text/plain"},
		{contentType: "image/webp"},
		{contentType: "application/zip"},
		{contentType: ""},
		{contentType: ";;;"},
	}
	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			assert.Equal(t, tt.files, FlowFiles.Accepts(tt.contentType), "files")
			assert.Equal(t, tt.syllabi, FlowSyllabi.Accepts(tt.contentType), "syllabi")
			assert.Equal(t, tt.pdfs, FlowPDFs.Accepts(tt.contentType), "pdfs")
		})
	}
}

func TestFlowByName(t *testing.T) {
	for _, f := range Flows {
		got, ok := FlowByName(f.Name)
		assert.True(t, ok)
		assert.Equal(t, f.Name, got.Name)
	}
	_, ok := FlowByName("lol")
	assert.False(t, ok)
}

// split returns the names of the accepted files and the rejected outcomes, in order.
func split(files []File, rejections []*FileOutcome) (accepted []string, rejected []FileOutcome) {
	for i, r := range rejections {
		if r == nil {
			accepted = append(accepted, files[i].Name)
			continue
		}
		rejected = append(rejected, *r)
	}
	return accepted, rejected
}

func TestFilter(t *testing.T) {
	files := []File{
		NewFile("a.pdf", TypePDF, []byte("%PDF-1.4")),
		NewFile("notes.txt", "text/plain", []byte("hello")),
		NewFile("b.png", TypePNG, []byte("png")),
		NewFile("c.docx", TypeDOCX, []byte("docx")),
	}

	t.Run("files keeps the accepted subset", func(t *testing.T) {
		rejections, warning := Filter(FlowFiles, files, false)
		require.Len(t, rejections, len(files))
		assert.Nil(t, rejections[0])
		if assert.NotNil(t, rejections[1]) {
			assert.Equal(t, "notes.txt", rejections[1].Name)
			assert.Equal(t, StatusRejected, rejections[1].Status)
			assert.Equal(t, "validation", rejections[1].ErrorKind)
		}
		accepted, _ := split(files, rejections)
		assert.Equal(t, []string{"a.pdf", "b.png", "c.docx"}, accepted)
		if assert.Error(t, warning) {
			assert.IsType(t, &core.ValidationError{}, warning)
			assert.Contains(t, warning.Error(), "notes.txt")
		}
	})

	t.Run("syllabi rejects images", func(t *testing.T) {
		rejections, warning := Filter(FlowSyllabi, files, false)
		accepted, rejected := split(files, rejections)
		assert.Equal(t, []string{"a.pdf", "c.docx"}, accepted)
		assert.Len(t, rejected, 2)
		assert.Contains(t, warning.Error(), "b.png")
		assert.Contains(t, warning.Error(), "notes.txt")
	})

	t.Run("all accepted", func(t *testing.T) {
		rejections, warning := Filter(FlowPDFs, files[:1], false)
		assert.Equal(t, []*FileOutcome{nil}, rejections)
		assert.NoError(t, warning)
	})
}

func TestFilter_verifyContent(t *testing.T) {
	pdf := append([]byte("%PDF-1.7\n"), bytes.Repeat([]byte("x"), 100)...)
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

	files := []File{
		NewFile("real.pdf", TypePDF, pdf),
		NewFile("fake.pdf", TypePDF, []byte("just some text pretending")),
		NewFile("real.png", TypePNG, png),
		NewFile("png-as-pdf.pdf", TypePDF, png),
	}
	rejections, warning := Filter(FlowFiles, files, true)
	assert.Error(t, warning)

	accepted, rejected := split(files, rejections)
	assert.Equal(t, []string{"real.pdf", "real.png"}, accepted)
	if assert.Len(t, rejected, 2) {
		assert.Equal(t, "fake.pdf", rejected[0].Name)
		assert.Equal(t, "png-as-pdf.pdf", rejected[1].Name)
	}
}
