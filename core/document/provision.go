package document

import (
	"context"

	"github.com/pkg/errors"

	"github.com/aulaprof/aula/core"
)

// EnsureBuckets creates the public bucket of every flow that does not exist yet.
// It is idempotent and safe to run concurrently: a bucket created meanwhile by someone else
// (ErrBucketExists) is not an error. It returns the names of the buckets it created.
func EnsureBuckets(ctx context.Context, store ObjectStore, flows ...Flow) ([]string, error) {
	existing, err := store.ListBuckets(ctx)
	if err != nil {
		return nil, core.NewStorageError("list buckets", "", err)
	}
	have := make(map[string]bool, len(existing))
	for _, b := range existing {
		have[b.Name] = true
	}

	var created []string
	for _, f := range flows {
		if have[f.Bucket] {
			continue
		}
		if err = store.CreateBucket(ctx, f.Bucket, true /* public */); err != nil {
			if errors.Cause(err) == ErrBucketExists {
				have[f.Bucket] = true
				continue
			}
			return created, core.NewStorageError("create bucket", f.Bucket, err)
		}
		have[f.Bucket] = true
		created = append(created, f.Bucket)
	}
	return created, nil
}
