package inmemdb

import (
	"context"
	"sort"

	"github.com/aulaprof/aula/core/document"
)

type documentRepository struct {
	db *recordTables
}

var _ document.Repository = (*documentRepository)(nil)

func NewDocumentRepository(db *DB) document.Repository {
	return &documentRepository{db: db.records}
}

func (repo *documentRepository) InsertRecord(_ context.Context, table string, rec document.Record) (document.Record, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	t, ok := repo.db.tables[table]
	if !ok {
		t = make(map[string]document.Record)
		repo.db.tables[table] = t
	}
	t[rec.ID] = rec
	return rec, nil
}

func (repo *documentRepository) QueryRecords(
	_ context.Context,
	table string,
	filter document.RecordFilter,
) ([]document.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	folders := make(map[string]bool, len(filter.Folders))
	for _, f := range filter.Folders {
		folders[f] = true
	}

	records := make([]document.Record, 0)
	for _, rec := range repo.db.tables[table] {
		if filter.SubjectID != "" && rec.SubjectID != filter.SubjectID {
			continue
		}
		if len(folders) > 0 && !folders[rec.Folder] {
			continue
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID > records[j].ID
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

func (repo *documentRepository) GetRecordByID(_ context.Context, table, id string) (document.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if rec, ok := repo.db.tables[table][id]; ok {
		return rec, nil
	}
	return document.Record{}, document.ErrNotFound
}

func (repo *documentRepository) DeleteRecord(_ context.Context, table, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.tables[table][id]; !ok {
		return document.ErrNotFound
	}
	delete(repo.db.tables[table], id)
	return nil
}

func (repo *documentRepository) CountRecordsBySubject(_ context.Context, table, subjectID string) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var n int
	for _, rec := range repo.db.tables[table] {
		if rec.SubjectID == subjectID {
			n++
		}
	}
	return n, nil
}
