package objectstore

import (
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/aulaprof/aula/core/document"
)

var errInvalidKey = errors.New("invalid object key")

// Filesystem keeps buckets as directories under root. Public objects are served from publicBaseURL.
type Filesystem struct {
	root          string
	publicBaseURL string
}

var _ document.ObjectStore = (*Filesystem)(nil)

func NewFilesystem(root, publicBaseURL string) (*Filesystem, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating storage root")
	}
	return &Filesystem{root: root, publicBaseURL: strings.TrimRight(publicBaseURL, "/")}, nil
}

// Root is the directory holding the buckets.
func (fs *Filesystem) Root() string { return fs.root }

// resolve maps bucket/key to a path under root, refusing keys that would escape it.
func (fs *Filesystem) resolve(bucket, key string) (string, error) {
	if bucket == "" || strings.ContainsAny(bucket, `/\`) || bucket == "." || bucket == ".." {
		return "", errors.Wrap(errInvalidKey, bucket)
	}
	clean := path.Clean("/" + key)
	if key == "" || clean == "/" || strings.Contains(key, `\`) || clean != "/"+strings.TrimLeft(key, "/") {
		return "", errors.Wrap(errInvalidKey, key)
	}
	return filepath.Join(fs.root, bucket, filepath.FromSlash(clean)), nil
}

func (fs *Filesystem) bucketDir(bucket string) (string, error) {
	dir := filepath.Join(fs.root, bucket)
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.Errorf("bucket %q not found", bucket)
		}
		return "", err
	}
	if !info.IsDir() {
		return "", errors.Errorf("bucket %q is not a directory", bucket)
	}
	return dir, nil
}

func (fs *Filesystem) Put(ctx context.Context, bucket, key string, body io.Reader, _ int64, opts document.PutOptions) error {
	p, err := fs.resolve(bucket, key)
	if err != nil {
		return err
	}
	if _, err = fs.bucketDir(bucket); err != nil {
		return err
	}
	if err = os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return errors.Wrap(err, "creating folder")
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if opts.Upsert {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(p, flags, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return document.ErrObjectExists
		}
		return errors.Wrap(err, "creating object")
	}

	_, err = io.Copy(f, &ctxReader{ctx: ctx, r: body})
	if cErr := f.Close(); err == nil {
		err = cErr
	}
	if err != nil {
		_ = os.Remove(p)
		return errors.Wrap(err, "writing object")
	}
	return nil
}

func (fs *Filesystem) Remove(_ context.Context, bucket string, keys ...string) error {
	for _, key := range keys {
		p, err := fs.resolve(bucket, key)
		if err != nil {
			return err
		}
		if err = os.Remove(p); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, "removing object")
		}
	}
	return nil
}

func (fs *Filesystem) PublicURL(bucket, key string) string {
	return fs.publicBaseURL + "/" + url.PathEscape(bucket) + "/" + escapeKey(key)
}

func (fs *Filesystem) List(_ context.Context, bucket, prefix string) ([]string, error) {
	dir, err := fs.bucketDir(bucket)
	if err != nil {
		return nil, err
	}
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		if dir, err = fs.resolve(bucket, prefix); err != nil {
			return nil, err
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, errors.Wrap(err, "listing folder")
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		keys = append(keys, path.Join(prefix, e.Name()))
	}
	sort.Strings(keys)
	return keys, nil
}

func (fs *Filesystem) ListBuckets(context.Context) ([]document.Bucket, error) {
	entries, err := os.ReadDir(fs.root)
	if err != nil {
		return nil, errors.Wrap(err, "listing buckets")
	}
	buckets := make([]document.Bucket, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			buckets = append(buckets, document.Bucket{Name: e.Name(), Public: true})
		}
	}
	return buckets, nil
}

// CreateBucket creates the bucket directory. Every filesystem bucket is public.
func (fs *Filesystem) CreateBucket(_ context.Context, name string, _ bool) error {
	if _, err := fs.resolve(name, "x"); err != nil {
		return err
	}
	if err := os.Mkdir(filepath.Join(fs.root, name), 0o755); err != nil {
		if os.IsExist(err) {
			return document.ErrBucketExists
		}
		return errors.Wrap(err, "creating bucket")
	}
	return nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *ctxReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
