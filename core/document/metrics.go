package document

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aula_document_uploads_total",
		Help: "Upload outcomes per flow (uploaded, rejected, storage_failed, persistence_failed, canceled).",
	}, []string{"flow", "outcome"})

	uploadedBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aula_document_uploaded_bytes_total",
		Help: "Bytes written to object storage per flow.",
	}, []string{"flow"})

	compensationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aula_document_compensations_total",
		Help: "Objects removed after a failed metadata insert (compensated) or left behind (orphaned).",
	}, []string{"flow", "result"})

	putDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aula_document_put_duration_seconds",
		Help:    "Time spent writing one object to storage, per flow and result (ok, error).",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"flow", "result"})

	deletionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aula_document_deletions_total",
		Help: "Deletion outcomes per flow (deleted, storage_failed, persistence_failed).",
	}, []string{"flow", "outcome"})
)
