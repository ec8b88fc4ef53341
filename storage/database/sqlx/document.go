package sqlxrepos

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/aulaprof/aula/core"
	"github.com/aulaprof/aula/core/document"
)

const recordColumns = "id, subject_id, owner_id, title, name, path, url, type, size, folder, created_at"

// recordTables are the tables document flows may target.
var recordTables = map[string]bool{"files": true, "syllabi": true}

var errUnknownTable = errors.New("unknown record table")

type recordRow struct {
	ID        string    `db:"id"`
	SubjectID string    `db:"subject_id"`
	OwnerID   string    `db:"owner_id"`
	Title     string    `db:"title"`
	Name      string    `db:"name"`
	Path      string    `db:"path"`
	URL       string    `db:"url"`
	Type      string    `db:"type"`
	Size      int64     `db:"size"`
	Folder    string    `db:"folder"`
	CreatedAt time.Time `db:"created_at"`
}

func (r recordRow) record() document.Record {
	rec := document.Record(r)
	rec.CreatedAt = r.CreatedAt.UTC()
	return rec
}

type documentRepository struct {
	db *sqlx.DB
}

var _ document.Repository = (*documentRepository)(nil)

func NewDocumentRepository(db *sqlx.DB) document.Repository {
	return &documentRepository{db: db}
}

func checkTable(table string) error {
	if !recordTables[table] {
		return errors.Wrap(errUnknownTable, table)
	}
	return nil
}

func (repo *documentRepository) InsertRecord(ctx context.Context, table string, rec document.Record) (document.Record, error) {
	if err := checkTable(table); err != nil {
		return document.Record{}, err
	}
	q := "INSERT INTO " + table + " (" + recordColumns + ") " +
		"VALUES (:id, :subject_id, :owner_id, :title, :name, :path, :url, :type, :size, :folder, :created_at)"
	if _, err := repo.db.NamedExecContext(ctx, q, recordRow(rec)); err != nil {
		return document.Record{}, core.NewPersistenceError("insert "+table, err)
	}
	return rec, nil
}

func (repo *documentRepository) QueryRecords(
	ctx context.Context,
	table string,
	filter document.RecordFilter,
) ([]document.Record, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}

	var (
		where []string
		args  []interface{}
	)
	if filter.SubjectID != "" {
		args = append(args, filter.SubjectID)
		where = append(where, "subject_id = $"+strconv.Itoa(len(args)))
	}
	if len(filter.Folders) > 0 {
		args = append(args, pq.Array(filter.Folders))
		where = append(where, "folder = ANY($"+strconv.Itoa(len(args))+")")
	}

	q := "SELECT " + recordColumns + " FROM " + table
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, id DESC"

	var rows []recordRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, core.NewPersistenceError("select "+table, err)
	}
	records := make([]document.Record, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.record())
	}
	return records, nil
}

func (repo *documentRepository) GetRecordByID(ctx context.Context, table, id string) (document.Record, error) {
	if err := checkTable(table); err != nil {
		return document.Record{}, err
	}
	var row recordRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+recordColumns+" FROM "+table+" WHERE id = $1", id); err != nil {
		if err == sql.ErrNoRows {
			return document.Record{}, document.ErrNotFound
		}
		return document.Record{}, core.NewPersistenceError("select "+table, err)
	}
	return row.record(), nil
}

func (repo *documentRepository) DeleteRecord(ctx context.Context, table, id string) error {
	if err := checkTable(table); err != nil {
		return err
	}
	res, err := repo.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = $1", id)
	if err != nil {
		return core.NewPersistenceError("delete "+table, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return document.ErrNotFound
	}
	return nil
}

func (repo *documentRepository) CountRecordsBySubject(ctx context.Context, table, subjectID string) (int, error) {
	if err := checkTable(table); err != nil {
		return 0, err
	}
	var n int
	if err := repo.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+table+" WHERE subject_id = $1", subjectID); err != nil {
		return 0, core.NewPersistenceError("count "+table, err)
	}
	return n, nil
}
