package document

import (
	"bytes"
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func putSamples(t *testing.T, flow, result string) uint64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, putDuration.WithLabelValues(flow, result).(prometheus.Metric).Write(&m))
	return m.GetHistogram().GetSampleCount()
}

func TestService_Upload_putDuration(t *testing.T) {
	fx := setup(t)
	fx.store.putErr = func(key string) error {
		if len(fx.store.puts) == 1 {
			return errBoom
		}
		return nil
	}
	okBefore, errBefore := putSamples(t, "files", "ok"), putSamples(t, "files", "error")

	res, err := fx.svc.Upload(context.Background(), FlowFiles, Batch{
		SubjectID: "S1",
		Folder:    "resources",
		Files: []File{
			NewFile("a.pdf", TypePDF, bytes.Repeat([]byte{'a'}, 64)),
			NewFile("b.pdf", TypePDF, []byte("b")),
			NewFile("c.pdf", TypePDF, []byte("c")),
			NewFile("d.txt", "text/plain", []byte("d")),
		},
	}, prof)
	require.NoError(t, err)
	require.Equal(t, 2, res.Count(StatusUploaded))

	assert.Equal(t, okBefore+2, putSamples(t, "files", "ok"))
	assert.Equal(t, errBefore+1, putSamples(t, "files", "error"), "rejected files are never put")
}
