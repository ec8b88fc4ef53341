package inmemdb

import (
	"sync"

	"github.com/aulaprof/aula/core/document"
	"github.com/aulaprof/aula/core/subject"
	"github.com/aulaprof/aula/core/user"
)

// DB holds the in-memory tables shared by the repositories built on it.
type DB struct {
	users    *userTable
	subjects *subjectTable
	records  *recordTables
}

type (
	userTable struct {
		sync.RWMutex
		table map[string]user.User
	}

	subjectTable struct {
		sync.RWMutex
		table map[string]subject.Subject
	}

	recordTables struct {
		sync.RWMutex
		tables map[string]map[string]document.Record
	}
)

func NewDB() *DB {
	return &DB{
		users:    &userTable{table: make(map[string]user.User)},
		subjects: &subjectTable{table: make(map[string]subject.Subject)},
		records:  &recordTables{tables: make(map[string]map[string]document.Record)},
	}
}
