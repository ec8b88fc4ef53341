package document

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/aulaprof/aula/core"
	"github.com/aulaprof/aula/core/subject"
	"github.com/aulaprof/aula/core/user"
)

// compensationTimeout bounds the removal of an object whose row could not be written,
// even when the request context is already done.
const compensationTimeout = 30 * time.Second

// DefaultAuditGrace is how old an object without a row must be before Audit calls it orphaned.
const DefaultAuditGrace = time.Hour

type (
	// SubjectLookup resolves a subject owned by the identity (subject.ErrNotFound otherwise).
	SubjectLookup interface {
		Get(ctx context.Context, ident user.Identity, id string) (subject.Subject, error)
	}

	Options struct {
		CacheControl  string
		VerifyContent bool
		// AuditGrace spares the objects of uploads still writing their row (DefaultAuditGrace when zero).
		AuditGrace time.Duration
		Logger     core.Logger
		Alerter    Alerter
	}

	Service struct {
		store    ObjectStore
		repo     Repository
		subjects SubjectLookup
		keys     *KeyGenerator
		opts     Options
	}
)

func NewService(store ObjectStore, repo Repository, subjects SubjectLookup, opts Options) *Service {
	if opts.CacheControl == "" {
		opts.CacheControl = "3600"
	}
	if opts.AuditGrace <= 0 {
		opts.AuditGrace = DefaultAuditGrace
	}
	if opts.Logger == nil {
		opts.Logger = core.DiscardLogger{}
	}
	return &Service{
		store:    store,
		repo:     repo,
		subjects: subjects,
		keys:     NewKeyGenerator(),
		opts:     opts,
	}
}

// SetKeyGenerator replaces the storage key generator (tests).
func (svc *Service) SetKeyGenerator(g *KeyGenerator) { svc.keys = g }

func (svc *Service) ownedSubject(ctx context.Context, ident user.Identity, subjectID, op string) (subject.Subject, error) {
	if ident.IsZero() {
		return subject.Subject{}, core.NewAuthError(op, errors.New("no active session"))
	}
	subj, err := svc.subjects.Get(ctx, ident, subjectID)
	if err != nil {
		return subject.Subject{}, errors.Wrap(err, "finding subject")
	}
	return subj, nil
}

// Upload stores every accepted file of the batch, one at a time, and records it in the flow's table.
// Per-file failures never stop the batch; each file gets exactly one outcome.
// A metadata insert failure removes the object just written; if that fails too the object is
// reported as orphaned.
func (svc *Service) Upload(ctx context.Context, flow Flow, batch Batch, ident user.Identity) (BatchResult, error) {
	subj, err := svc.ownedSubject(ctx, ident, batch.SubjectID, "upload")
	if err != nil {
		return BatchResult{}, err
	}
	folder := core.CleanString(batch.Folder)
	if folder == "" {
		folder = flow.DefaultFolder()
	}
	if !flow.HasFolder(folder) {
		return BatchResult{}, core.NewValidationError(ErrInvalidFolder, core.FieldError{Field: "folder", Error: ErrInvalidFolder.Error()})
	}
	title := core.CleanString(batch.Title)
	if flow.RequireTitle && title == "" {
		return BatchResult{}, core.NewValidationError(ErrTitleRequired, core.FieldError{Field: "title", Error: ErrTitleRequired.Error()})
	}
	if len(batch.Files) == 0 {
		return BatchResult{}, core.NewValidationError(ErrNoFiles, core.FieldError{Field: "files", Error: ErrNoFiles.Error()})
	}

	progress := NewProgress()
	result := BatchResult{Outcomes: make([]FileOutcome, 0, len(batch.Files))}

	rejections, warning := Filter(flow, batch.Files, svc.opts.VerifyContent)
	if warning != nil {
		result.Warning = warning.Error()
	}

	// outcomes follow the order of the request
	for i, f := range batch.Files {
		if r := rejections[i]; r != nil {
			uploadsTotal.WithLabelValues(flow.Name, "rejected").Inc()
			result.Outcomes = append(result.Outcomes, *r)
			continue
		}
		if err := ctx.Err(); err != nil {
			uploadsTotal.WithLabelValues(flow.Name, "canceled").Inc()
			result.Outcomes = append(result.Outcomes, FileOutcome{
				Name:      f.Name,
				Status:    StatusFailed,
				ErrorKind: core.ErrorKind(err),
				Error:     err.Error(),
			})
			continue
		}
		result.Outcomes = append(result.Outcomes, svc.uploadOne(ctx, flow, subj, folder, title, f, ident, progress))
	}

	result.Progress = progress.Snapshot()
	return result, nil
}

func (svc *Service) uploadOne(
	ctx context.Context,
	flow Flow,
	subj subject.Subject,
	folder, title string,
	f File,
	ident user.Identity,
	progress *Progress,
) FileOutcome {
	key := svc.keys.Key(folder, f.Name)
	out := FileOutcome{Name: f.Name, Key: key, Status: StatusFailed}
	progress.Start(key)

	fail := func(err error, metric string) FileOutcome {
		uploadsTotal.WithLabelValues(flow.Name, metric).Inc()
		out.ErrorKind = core.ErrorKind(err)
		out.Error = err.Error()
		return out
	}

	if err := svc.put(ctx, flow, key, f); err != nil {
		svc.opts.Logger.Error(fmt.Sprintf("uploading %s: %v", key, err), err, ident)
		return fail(err, "storage_failed")
	}
	uploadedBytes.WithLabelValues(flow.Name).Add(float64(f.Size))

	rec := Record{
		ID:        uuid.NewString(),
		SubjectID: subj.ID,
		OwnerID:   ident.ID,
		Title:     title,
		Name:      f.Name,
		Path:      key,
		URL:       svc.store.PublicURL(flow.Bucket, key),
		Type:      normalizeType(f.ContentType),
		Size:      f.Size,
		Folder:    folder,
		CreatedAt: time.Now().UTC(),
	}
	rec, err := svc.repo.InsertRecord(ctx, flow.Table, rec)
	if err != nil {
		err = core.NewPersistenceError("insert "+flow.Table, err)
		svc.opts.Logger.Error(fmt.Sprintf("recording %s: %v", key, err), err, ident)
		out.Orphaned = !svc.compensate(ctx, flow, key, err, ident)
		return fail(err, "persistence_failed")
	}

	progress.Done(key)
	uploadsTotal.WithLabelValues(flow.Name, "uploaded").Inc()
	out.Status = StatusUploaded
	out.Record = &rec
	return out
}

func (svc *Service) put(ctx context.Context, flow Flow, key string, f File) error {
	if f.Open == nil {
		return core.NewStorageError("put", key, errors.New("no content"))
	}
	body, err := f.Open()
	if err != nil {
		return core.NewStorageError("put", key, errors.Wrap(err, "opening "+f.Name))
	}
	defer func() { _ = body.Close() }()

	opts := PutOptions{
		ContentType:  normalizeType(f.ContentType),
		CacheControl: svc.opts.CacheControl,
		Upsert:       false,
	}
	start := time.Now()
	err = svc.store.Put(ctx, flow.Bucket, key, body, f.Size, opts)
	result := "ok"
	if err != nil {
		result = "error"
	}
	putDuration.WithLabelValues(flow.Name, result).Observe(time.Since(start).Seconds())
	if err != nil {
		return core.NewStorageError("put", key, err)
	}
	return nil
}

// compensate removes an object whose metadata row could not be written.
// It reports whether the object is gone.
func (svc *Service) compensate(ctx context.Context, flow Flow, key string, cause error, ident user.Identity) bool {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	err := svc.store.Remove(cctx, flow.Bucket, key)
	if err == nil {
		compensationsTotal.WithLabelValues(flow.Name, "compensated").Inc()
		return true
	}

	compensationsTotal.WithLabelValues(flow.Name, "orphaned").Inc()
	err = core.NewStorageError("remove", key, err)
	svc.opts.Logger.Error(fmt.Sprintf("orphaned object %s/%s: %v", flow.Bucket, key, err), err, ident,
		map[string]interface{}{"bucket": flow.Bucket, "key": key, "cause": cause.Error()})
	if svc.opts.Alerter != nil {
		svc.opts.Alerter.ObjectOrphaned(cctx, flow.Bucket, key, cause)
	}
	return false
}

// List returns the subject's records in folder (every folder of the flow when empty),
// newest first.
func (svc *Service) List(ctx context.Context, flow Flow, subjectID, folder string, ident user.Identity) ([]Record, error) {
	if _, err := svc.ownedSubject(ctx, ident, subjectID, "list"); err != nil {
		return nil, err
	}
	folders := flow.Folders
	if folder = core.CleanString(folder); folder != "" {
		if !flow.HasFolder(folder) {
			return nil, core.NewValidationError(ErrInvalidFolder, core.FieldError{Field: "folder", Error: ErrInvalidFolder.Error()})
		}
		folders = []string{folder}
	}
	recs, err := svc.repo.QueryRecords(ctx, flow.Table, RecordFilter{SubjectID: subjectID, Folders: folders})
	if err != nil {
		return nil, core.NewPersistenceError("query "+flow.Table, err)
	}
	return recs, nil
}

// Delete removes the object first, then its row. A storage failure leaves the row untouched;
// an object that is already gone counts as removed.
func (svc *Service) Delete(ctx context.Context, flow Flow, id string, ident user.Identity) error {
	if ident.IsZero() {
		return core.NewAuthError("delete", errors.New("no active session"))
	}
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	rec, err := svc.repo.GetRecordByID(ctx, flow.Table, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return ErrNotFound
		}
		return core.NewPersistenceError("get "+flow.Table, err)
	}
	if !flow.HasFolder(rec.Folder) {
		return ErrNotFound
	}
	if _, err = svc.subjects.Get(ctx, ident, rec.SubjectID); err != nil {
		if errors.Cause(err) == subject.ErrNotFound {
			return ErrNotFound
		}
		return errors.Wrap(err, "finding subject")
	}

	if err = svc.store.Remove(ctx, flow.Bucket, rec.Path); err != nil {
		deletionsTotal.WithLabelValues(flow.Name, "storage_failed").Inc()
		return core.NewStorageError("remove", rec.Path, err)
	}
	if err = svc.repo.DeleteRecord(ctx, flow.Table, rec.ID); err != nil {
		if errors.Cause(err) == ErrNotFound {
			// deleted concurrently
			return ErrNotFound
		}
		deletionsTotal.WithLabelValues(flow.Name, "persistence_failed").Inc()
		svc.opts.Logger.Error(fmt.Sprintf("object %s removed but row %s kept: %v", rec.Path, rec.ID, err), err, ident)
		return core.NewPersistenceError("delete "+flow.Table, err)
	}
	deletionsTotal.WithLabelValues(flow.Name, "deleted").Inc()
	return nil
}

// CountBySubject counts the records of every flow table referencing the subject.
func (svc *Service) CountBySubject(ctx context.Context, subjectID string) (int, error) {
	var total int
	for _, table := range tables(Flows) {
		n, err := svc.repo.CountRecordsBySubject(ctx, table, subjectID)
		if err != nil {
			return 0, core.NewPersistenceError("count "+table, err)
		}
		total += n
	}
	return total, nil
}

func tables(flows []Flow) []string {
	seen := make(map[string]bool, len(flows))
	out := make([]string, 0, len(flows))
	for _, f := range flows {
		if !seen[f.Table] {
			seen[f.Table] = true
			out = append(out, f.Table)
		}
	}
	return out
}
