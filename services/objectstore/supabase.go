package objectstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	storage "github.com/supabase-community/storage-go"

	"github.com/aulaprof/aula/core/document"
)

const listPageSize = 1000

// Supabase talks to the Storage API of a Supabase project with its service role key.
// Buckets, listings, removals and public URLs go through storage-go. Uploads are sent directly:
// storage-go keeps per-upload options (x-upsert, content type, cache control) in headers shared by
// the whole client, which concurrent requests would race on.
type Supabase struct {
	api     *storage.Client
	baseURL string // {project}/storage/v1
	key     string
	client  *http.Client // uploads
}

var _ document.ObjectStore = (*Supabase)(nil)

func NewSupabase(projectURL, serviceKey string, client *http.Client) *Supabase {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	baseURL := strings.TrimRight(projectURL, "/") + "/storage/v1"
	return &Supabase{
		api:     storage.NewClient(baseURL, serviceKey, map[string]string{"apikey": serviceKey}),
		baseURL: baseURL,
		key:     serviceKey,
		client:  client,
	}
}

// call runs fn, which takes no context, and stops waiting for it once ctx is done.
func call(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// duplicate reports the conflict answers of the storage API, which storage-go only exposes by message.
func duplicate(err error) bool {
	var sErr *storage.StorageError
	if !errors.As(err, &sErr) {
		return false
	}
	msg := strings.ToLower(sErr.Message)
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "duplicate")
}

func apiError(err error) error {
	if err == nil {
		return nil
	}
	var sErr *storage.StorageError
	if errors.As(err, &sErr) {
		return errors.Errorf("storage api: %s", sErr.Message)
	}
	return errors.Wrap(err, "calling storage api")
}

// apiErrorBody is the error body the storage API answers uploads with.
type apiErrorBody struct {
	StatusCode string `json:"statusCode"`
	Err        string `json:"error"`
	Message    string `json:"message"`
}

type statusError struct {
	Code int
	Body apiErrorBody
}

func (e *statusError) Error() string {
	msg := e.Body.Message
	if msg == "" {
		msg = e.Body.Err
	}
	return fmt.Sprintf("storage api: status %d: %s", e.Code, msg)
}

// duplicate reports the conflict answers, which older storage versions send as 400.
func (e *statusError) duplicate() bool {
	return e.Code == http.StatusConflict || e.Body.StatusCode == "409" || e.Body.Err == "Duplicate" ||
		strings.Contains(strings.ToLower(e.Body.Message), "already exists")
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func (s *Supabase) Put(ctx context.Context, bucket, key string, body io.Reader, size int64, opts document.PutOptions) error {
	u := s.baseURL + "/object/" + url.PathEscape(bucket) + "/" + escapeKey(key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, body)
	if err != nil {
		return errors.Wrap(err, "building upload request")
	}
	if size >= 0 {
		req.ContentLength = size
	}
	contentType := opts.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Authorization", "Bearer "+s.key)
	req.Header.Set("apikey", s.key)
	req.Header.Set("Content-Type", contentType)
	if opts.CacheControl != "" {
		req.Header.Set("Cache-Control", "max-age="+opts.CacheControl)
	}
	req.Header.Set("x-upsert", fmt.Sprint(opts.Upsert))

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "calling storage api")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusMultipleChoices {
		sErr := &statusError{Code: resp.StatusCode}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if len(data) > 0 && json.Unmarshal(data, &sErr.Body) != nil {
			sErr.Body.Message = string(data)
		}
		if sErr.duplicate() {
			return document.ErrObjectExists
		}
		return sErr
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Remove deletes keys; the API ignores the ones that do not exist.
func (s *Supabase) Remove(ctx context.Context, bucket string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return call(ctx, func() error {
		_, err := s.api.RemoveFile(bucket, keys)
		return apiError(err)
	})
}

func (s *Supabase) PublicURL(bucket, key string) string {
	return s.api.GetPublicUrl(bucket, key).SignedURL
}

func (s *Supabase) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	prefix = strings.Trim(prefix, "/")
	keys := make([]string, 0)
	for offset := 0; ; offset += listPageSize {
		var entries []storage.FileObject
		err := call(ctx, func() error {
			var err error
			entries, err = s.api.ListFiles(bucket, prefix, storage.FileSearchOptions{Limit: listPageSize, Offset: offset})
			return apiError(err)
		})
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.Id == "" { // folder
				continue
			}
			if prefix == "" {
				keys = append(keys, e.Name)
			} else {
				keys = append(keys, prefix+"/"+e.Name)
			}
		}
		if len(entries) < listPageSize {
			return keys, nil
		}
	}
}

func (s *Supabase) ListBuckets(ctx context.Context) ([]document.Bucket, error) {
	var buckets []storage.Bucket
	err := call(ctx, func() error {
		var err error
		buckets, err = s.api.ListBuckets()
		return apiError(err)
	})
	if err != nil {
		return nil, err
	}
	out := make([]document.Bucket, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, document.Bucket{Name: b.Name, Public: b.Public})
	}
	return out, nil
}

func (s *Supabase) CreateBucket(ctx context.Context, name string, public bool) error {
	return call(ctx, func() error {
		_, err := s.api.CreateBucket(name, storage.BucketOptions{Public: public})
		if duplicate(err) {
			return document.ErrBucketExists
		}
		return apiError(err)
	})
}
