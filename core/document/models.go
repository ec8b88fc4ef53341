package document

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
)

var (
	// errors
	ErrNotFound      = errors.New("file not found")
	ErrNoFiles       = errors.New("select at least one file")
	ErrInvalidFolder = errors.New("invalid folder")
	ErrTitleRequired = errors.New("a title is required")

	ErrObjectExists   = errors.New("object already exists")
	ErrObjectNotFound = errors.New("object not found")
	ErrBucketExists   = errors.New("bucket already exists")
)

// Record is the metadata row of an uploaded object.
type Record struct {
	ID        string    `json:"id"`
	SubjectID string    `json:"subject_id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title,omitempty"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	URL       string    `json:"url"`
	Type      string    `json:"type"`
	Size      int64     `json:"size"`
	Folder    string    `json:"folder"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// File is a candidate upload as declared by the client.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// NewFile wraps in-memory content as a File.
func NewFile(name, contentType string, data []byte) File {
	return File{
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

type Batch struct {
	SubjectID string
	Folder    string
	Title     string
	Files     []File
}

type Status string

const (
	StatusUploaded Status = "uploaded"
	StatusRejected Status = "rejected"
	StatusFailed   Status = "failed"
)

// FileOutcome is what happened to one file of a batch.
type FileOutcome struct {
	Name      string  `json:"name"`
	Status    Status  `json:"status"`
	Key       string  `json:"key,omitempty"`
	Record    *Record `json:"record,omitempty"`
	ErrorKind string  `json:"error_kind,omitempty"`
	Error     string  `json:"error,omitempty"`
	Orphaned  bool    `json:"orphaned,omitempty"`
}

type BatchResult struct {
	Outcomes []FileOutcome  `json:"outcomes"`
	Progress map[string]int `json:"progress"`
	Warning  string         `json:"warning,omitempty"`
}

func (br BatchResult) Count(status Status) int {
	var n int
	for _, o := range br.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

type (
	PutOptions struct {
		ContentType  string
		CacheControl string
		Upsert       bool
	}

	Bucket struct {
		Name   string `json:"name"`
		Public bool   `json:"public"`
	}

	// ObjectStore is a bucket/key object storage service.
	ObjectStore interface {
		// Put writes an object. Without opts.Upsert it fails with ErrObjectExists when key is taken.
		Put(ctx context.Context, bucket, key string, body io.Reader, size int64, opts PutOptions) error
		// Remove deletes objects. Keys that do not exist are ignored.
		Remove(ctx context.Context, bucket string, keys ...string) error
		PublicURL(bucket, key string) string
		// List returns the keys of the objects directly under prefix (a folder).
		List(ctx context.Context, bucket, prefix string) ([]string, error)
		ListBuckets(ctx context.Context) ([]Bucket, error)
		// CreateBucket fails with ErrBucketExists when the bucket already exists.
		CreateBucket(ctx context.Context, name string, public bool) error
	}

	// RecordFilter selects records. Empty fields match everything.
	RecordFilter struct {
		SubjectID string
		Folders   []string
	}

	// Repository stores Records in the table named by the flow.
	Repository interface {
		InsertRecord(ctx context.Context, table string, rec Record) (Record, error)
		// QueryRecords returns matching records, newest first, ties broken by id descending.
		QueryRecords(ctx context.Context, table string, filter RecordFilter) ([]Record, error)
		GetRecordByID(ctx context.Context, table, id string) (Record, error)
		DeleteRecord(ctx context.Context, table, id string) error
		CountRecordsBySubject(ctx context.Context, table, subjectID string) (int, error)
	}
)
