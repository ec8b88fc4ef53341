package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/aulaprof/aula/core"
	"github.com/aulaprof/aula/core/subject"
)

const subjectColumns = "id, professor_id, name, code, credits, description, created_at, updated_at"

type subjectRow struct {
	ID          string        `db:"id"`
	ProfessorID string        `db:"professor_id"`
	Name        string        `db:"name"`
	Code        string        `db:"code"`
	Credits     sql.NullInt64 `db:"credits"`
	Description string        `db:"description"`
	CreatedAt   time.Time     `db:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at"`
}

func newSubjectRow(subj subject.Subject) subjectRow {
	row := subjectRow{
		ID:          subj.ID,
		ProfessorID: subj.ProfessorID,
		Name:        subj.Name,
		Code:        subj.Code,
		Description: subj.Description,
		CreatedAt:   subj.CreatedAt,
		UpdatedAt:   subj.UpdatedAt,
	}
	if subj.Credits != nil {
		row.Credits = sql.NullInt64{Int64: int64(*subj.Credits), Valid: true}
	}
	return row
}

func (r subjectRow) subject() subject.Subject {
	subj := subject.Subject{
		ID:          r.ID,
		ProfessorID: r.ProfessorID,
		Name:        r.Name,
		Code:        r.Code,
		Description: r.Description,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
	if r.Credits.Valid {
		credits := int(r.Credits.Int64)
		subj.Credits = &credits
	}
	return subj
}

type subjectRepository struct {
	db *sqlx.DB
}

var _ subject.Repository = (*subjectRepository)(nil)

func NewSubjectRepository(db *sqlx.DB) subject.Repository {
	return &subjectRepository{db: db}
}

func (repo *subjectRepository) CreateSubject(ctx context.Context, subj subject.Subject) (subject.Subject, error) {
	q := "INSERT INTO subjects (" + subjectColumns + ") " +
		"VALUES (:id, :professor_id, :name, :code, :credits, :description, :created_at, :updated_at)"
	if _, err := repo.db.NamedExecContext(ctx, q, newSubjectRow(subj)); err != nil {
		return subject.Subject{}, core.NewPersistenceError("insert subjects", err)
	}
	return subj, nil
}

func (repo *subjectRepository) GetSubjectByID(ctx context.Context, id string) (subject.Subject, error) {
	var row subjectRow
	q := "SELECT " + subjectColumns + " FROM subjects WHERE id = $1"
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if err == sql.ErrNoRows {
			return subject.Subject{}, subject.ErrNotFound
		}
		return subject.Subject{}, core.NewPersistenceError("select subjects", err)
	}
	return row.subject(), nil
}

func (repo *subjectRepository) QuerySubjectsByProfessor(
	ctx context.Context,
	professorID string,
	orderings []core.DBOrdering,
) ([]subject.Subject, error) {
	orderBy := core.OrderByClause(orderings, subject.OrderingFields, subject.DefaultOrdering...)
	q := "SELECT " + subjectColumns + " FROM subjects WHERE professor_id = $1 ORDER BY " + orderBy

	var rows []subjectRow
	if err := repo.db.SelectContext(ctx, &rows, q, professorID); err != nil {
		return nil, core.NewPersistenceError("select subjects", err)
	}
	subjects := make([]subject.Subject, 0, len(rows))
	for _, r := range rows {
		subjects = append(subjects, r.subject())
	}
	return subjects, nil
}

func (repo *subjectRepository) UpdateSubject(ctx context.Context, subj subject.Subject) (subject.Subject, error) {
	q := "UPDATE subjects SET name = :name, code = :code, credits = :credits, description = :description, " +
		"updated_at = :updated_at WHERE id = :id"
	res, err := repo.db.NamedExecContext(ctx, q, newSubjectRow(subj))
	if err != nil {
		return subject.Subject{}, core.NewPersistenceError("update subjects", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return subject.Subject{}, subject.ErrNotFound
	}
	return subj, nil
}

func (repo *subjectRepository) DeleteSubject(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM subjects WHERE id = $1", id)
	if err != nil {
		return core.NewPersistenceError("delete subjects", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return subject.ErrNotFound
	}
	return nil
}
