package document

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/aulaprof/aula/core/subject"
	"github.com/aulaprof/aula/core/user"
)

type putCall struct {
	bucket, key string
	opts        PutOptions
}

type storeMock struct {
	mu        sync.Mutex
	buckets   map[string]bool
	objects   map[string][]byte // bucket/key
	puts      []putCall
	putErr    func(key string) error
	removeErr error
	removed   []string
}

func newStoreMock() *storeMock {
	return &storeMock{buckets: make(map[string]bool), objects: make(map[string][]byte)}
}

func (s *storeMock) Put(_ context.Context, bucket, key string, body io.Reader, _ int64, opts PutOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts = append(s.puts, putCall{bucket: bucket, key: key, opts: opts})
	if s.putErr != nil {
		if err := s.putErr(key); err != nil {
			return err
		}
	}
	if _, ok := s.objects[bucket+"/"+key]; ok && !opts.Upsert {
		return ErrObjectExists
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.objects[bucket+"/"+key] = data
	return nil
}

func (s *storeMock) Remove(_ context.Context, bucket string, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removeErr != nil {
		return s.removeErr
	}
	for _, k := range keys {
		delete(s.objects, bucket+"/"+k)
		s.removed = append(s.removed, k)
	}
	return nil
}

func (s *storeMock) PublicURL(bucket, key string) string {
	return "https://cdn.test/" + bucket + "/" + key
}

func (s *storeMock) has(bucket, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[bucket+"/"+key]
	return ok
}

func (s *storeMock) List(_ context.Context, bucket, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k := range s.objects {
		if strings.HasPrefix(k, bucket+"/"+prefix+"/") {
			keys = append(keys, strings.TrimPrefix(k, bucket+"/"))
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *storeMock) ListBuckets(context.Context) ([]Bucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Bucket
	for name := range s.buckets {
		out = append(out, Bucket{Name: name, Public: true})
	}
	return out, nil
}

func (s *storeMock) CreateBucket(_ context.Context, name string, _ bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buckets[name] {
		return ErrBucketExists
	}
	s.buckets[name] = true
	return nil
}

func (s *storeMock) putCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.puts)
}

type repoMock struct {
	mu        sync.Mutex
	tables    map[string][]Record
	insertErr func(rec Record) error
	deleteErr error
	// beforeInsert runs without the lock held, so it may block while other calls go through.
	beforeInsert func(rec Record)
	// beforeDelete runs without the lock held.
	beforeDelete func(id string)
}

func newRepoMock() *repoMock {
	return &repoMock{tables: make(map[string][]Record)}
}

func (r *repoMock) InsertRecord(_ context.Context, table string, rec Record) (Record, error) {
	if r.beforeInsert != nil {
		r.beforeInsert(rec)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		if err := r.insertErr(rec); err != nil {
			return Record{}, err
		}
	}
	r.tables[table] = append(r.tables[table], rec)
	return rec, nil
}

func (r *repoMock) QueryRecords(_ context.Context, table string, filter RecordFilter) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, 0)
	for _, rec := range r.tables[table] {
		if filter.SubjectID != "" && rec.SubjectID != filter.SubjectID {
			continue
		}
		if len(filter.Folders) > 0 && !(Flow{Folders: filter.Folders}).HasFolder(rec.Folder) {
			continue
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *repoMock) GetRecordByID(_ context.Context, table, id string) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.tables[table] {
		if rec.ID == id {
			return rec, nil
		}
	}
	return Record{}, ErrNotFound
}

func (r *repoMock) DeleteRecord(_ context.Context, table, id string) error {
	if r.beforeDelete != nil {
		r.beforeDelete(id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteErr != nil {
		return r.deleteErr
	}
	recs := r.tables[table]
	for i, rec := range recs {
		if rec.ID == id {
			r.tables[table] = append(recs[:i], recs[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (r *repoMock) CountRecordsBySubject(_ context.Context, table, subjectID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int
	for _, rec := range r.tables[table] {
		if rec.SubjectID == subjectID {
			n++
		}
	}
	return n, nil
}

type subjectsMock map[string]subject.Subject

func (m subjectsMock) Get(_ context.Context, ident user.Identity, id string) (subject.Subject, error) {
	subj, ok := m[id]
	if !ok || subj.ProfessorID != ident.ID {
		return subject.Subject{}, subject.ErrNotFound
	}
	return subj, nil
}

type alerterMock struct {
	mu   sync.Mutex
	keys []string
}

func (a *alerterMock) ObjectOrphaned(_ context.Context, _, key string, _ error) {
	a.mu.Lock()
	a.keys = append(a.keys, key)
	a.mu.Unlock()
}

var errBoom = errors.New("boom")
