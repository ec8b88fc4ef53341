package inmemdb

import (
	"context"
	"sort"

	"github.com/aulaprof/aula/core"
	"github.com/aulaprof/aula/core/subject"
)

type subjectRepository struct {
	db *subjectTable
}

var _ subject.Repository = (*subjectRepository)(nil)

func NewSubjectRepository(db *DB) subject.Repository {
	return &subjectRepository{db: db.subjects}
}

func (repo *subjectRepository) CreateSubject(_ context.Context, subj subject.Subject) (subject.Subject, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.table[subj.ID] = subj
	return subj, nil
}

func (repo *subjectRepository) GetSubjectByID(_ context.Context, id string) (subject.Subject, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if subj, ok := repo.db.table[id]; ok {
		return subj, nil
	}
	return subject.Subject{}, subject.ErrNotFound
}

func (repo *subjectRepository) QuerySubjectsByProfessor(
	_ context.Context,
	professorID string,
	orderings []core.DBOrdering,
) ([]subject.Subject, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	subjects := make([]subject.Subject, 0)
	for _, subj := range repo.db.table {
		if subj.ProfessorID == professorID {
			subjects = append(subjects, subj)
		}
	}
	sortSubjects(subjects, orderings)
	return subjects, nil
}

func (repo *subjectRepository) UpdateSubject(_ context.Context, subj subject.Subject) (subject.Subject, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[subj.ID]; !ok {
		return subject.Subject{}, subject.ErrNotFound
	}
	repo.db.table[subj.ID] = subj
	return subj, nil
}

func (repo *subjectRepository) DeleteSubject(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return subject.ErrNotFound
	}
	delete(repo.db.table, id)
	return nil
}

// sortSubjects mirrors the ORDER BY the SQL repository builds from the same orderings.
func sortSubjects(subjects []subject.Subject, orderings []core.DBOrdering) {
	valid := make([]core.DBOrdering, 0, len(orderings))
	for _, ord := range orderings {
		if subject.OrderingFields[ord.Field] {
			valid = append(valid, ord)
		}
	}
	if len(valid) == 0 {
		valid = subject.DefaultOrdering
	}

	sort.SliceStable(subjects, func(i, j int) bool {
		for _, ord := range valid {
			c := compareSubjects(subjects[i], subjects[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
}

func compareSubjects(a, b subject.Subject, field string) int {
	switch field {
	case "created_at":
		switch {
		case a.CreatedAt.Before(b.CreatedAt):
			return -1
		case a.CreatedAt.After(b.CreatedAt):
			return 1
		}
		return 0
	case "name":
		return compareStrings(a.Name, b.Name)
	case "code":
		return compareStrings(a.Code, b.Code)
	case "credits":
		return compareInts(credits(a), credits(b))
	case "id":
		return compareStrings(a.ID, b.ID)
	}
	return 0
}

// credits sorts unset credits last in ascending order, as Postgres does with NULLs.
func credits(s subject.Subject) int {
	if s.Credits == nil {
		return int(^uint(0) >> 1)
	}
	return *s.Credits
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
