package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aulaprof/aula/core/document"
	"github.com/aulaprof/aula/core/subject"
	"github.com/aulaprof/aula/core/user"
	"github.com/aulaprof/aula/services/objectstore"
	inmemdb "github.com/aulaprof/aula/storage/database/inmem"
	"github.com/aulaprof/aula/testutil"
)

type testEnv struct {
	cli      *commandLine
	out      *bytes.Buffer
	usrRepo  user.Repository
	subjRepo subject.Repository
	docRepo  document.Repository
	store    *objectstore.Filesystem
}

func setup(t *testing.T) *testEnv {
	db := inmemdb.NewDB()
	store, err := objectstore.NewFilesystem(t.TempDir(), "http://media.test")
	require.NoError(t, err)

	env := &testEnv{
		out:      new(bytes.Buffer),
		usrRepo:  inmemdb.NewUserRepository(db),
		subjRepo: inmemdb.NewSubjectRepository(db),
		docRepo:  inmemdb.NewDocumentRepository(db),
		store:    store,
	}
	subjSvc := subject.NewService(env.subjRepo)
	env.cli = &commandLine{
		usrSvc: user.NewService(env.usrRepo),
		store:  store,
		docSvc: document.NewService(store, env.docRepo, subjSvc, document.Options{}),
		out:    env.out,
	}
	return env
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func checkErr(t *testing.T, tt cliTest, err error) {
	if err == nil {
		if tt.wantErr != nil || tt.wantErrStr != "" {
			t.Errorf("cli.run() error = nil, wantErr %v%s", tt.wantErr, tt.wantErrStr)
		}
		return
	}
	if tt.wantErr != nil {
		if err != tt.wantErr {
			t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
		}
	} else if tt.wantErrStr != "" {
		if err.Error() != tt.wantErrStr {
			t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
		}
	} else {
		t.Errorf("cli.run() unexpected error = %v", err)
	}
}

func Test_commandLine_migrate(t *testing.T) {
	env := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "subject_terms", "sql"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, env.cli.run(args))
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	env := setup(t)

	existing := testutil.CreateUser(t, env.usrRepo, "Old Name", "ada@aula.test", "0ld-Passw0rd!", false)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"adduser", "-email", "new@aula.test"}, wantErr: errHelp},
		{
			name: "weak password", args: []string{"adduser", "-email", "new@aula.test"}, extra: extra{pwd: "12345678"},
			wantErrStr: "password: password cannot be entirely numeric",
		},
		{name: "create", args: []string{"adduser", "-email", "New@Aula.test", "-name", "Grace"}, extra: extra{pwd: "N3w-Passw0rd!"}},
		{name: "reactivate", args: []string{"adduser", "-email", "ada@aula.test"}, extra: extra{pwd: "N3w-Passw0rd!"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, env.cli.run(args))
		})
	}

	created, err := env.usrRepo.GetUserByEmail(context.Background(), "new@aula.test")
	require.NoError(t, err)
	assert.Equal(t, "Grace", created.Name)
	assert.True(t, created.IsActive)
	assert.NoError(t, created.CheckPassword("N3w-Passw0rd!"))

	reactivated, err := env.usrRepo.GetUserByID(context.Background(), existing.ID)
	require.NoError(t, err)
	assert.Equal(t, "Old Name", reactivated.Name)
	assert.True(t, reactivated.IsActive)
	assert.NoError(t, reactivated.CheckPassword("N3w-Passw0rd!"))
}

func Test_commandLine_provision(t *testing.T) {
	env := setup(t)

	require.NoError(t, env.cli.run([]string{"admin", "provision"}))
	assert.Equal(t, "created bucket documents\n", env.out.String())

	env.out.Reset()
	require.NoError(t, env.cli.run([]string{"admin", "provision"}))
	assert.Equal(t, "all buckets exist\n", env.out.String())
}

func Test_commandLine_audit(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	require.NoError(t, env.cli.run([]string{"admin", "provision"}))

	prof := testutil.CreateUser(t, env.usrRepo, "Ada", "ada@aula.test", "", true)
	web := testutil.CreateSubject(t, env.subjRepo, prof, "Advanced Web Systems")

	put := func(key string) {
		require.NoError(t, env.store.Put(ctx, "documents", key, strings.NewReader("%PDF"), 4, document.PutOptions{}))
	}
	record := func(table, folder, key string) {
		_, err := env.docRepo.InsertRecord(ctx, table, document.Record{
			ID:        key[len(folder)+1:],
			SubjectID: web.ID,
			OwnerID:   prof.ID,
			Name:      "x.pdf",
			Path:      key,
			Folder:    folder,
			CreatedAt: time.Now().UTC(),
		})
		require.NoError(t, err)
	}

	// in sync
	put("documents/a.pdf")
	record("files", "documents", "documents/a.pdf")
	put("syllabi/plan.pdf")
	record("syllabi", "syllabi", "syllabi/plan.pdf")

	tests := []cliTest{
		{name: "unknown flow", args: []string{"audit", "-flow", "videos"}, wantErrStr: `unknown flow "videos"`},
		{name: "clean", args: []string{"audit"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, env.cli.run(append([]string{"admin"}, tt.args...)))
		})
	}

	// an orphaned object, a row without object and an upload still writing its row
	put("resources/orphan.pdf")
	record("files", "documents", "documents/gone.pdf")
	fresh := document.NewKeyGenerator().Key("resources", "late.pdf")
	put(fresh)

	t.Run("out of sync", func(t *testing.T) {
		env.out.Reset()
		checkErr(t, cliTest{wantErr: errAuditFailed}, env.cli.run([]string{"admin", "audit", "-flow", "files"}))
		assert.Contains(t, env.out.String(), "orphaned object: resources/orphan.pdf")
		assert.Contains(t, env.out.String(), "missing object: documents/gone.pdf")
		assert.Contains(t, env.out.String(), "recent object, skipped: "+fresh)
		assert.NotContains(t, env.out.String(), "orphaned object: "+fresh)
	})

	t.Run("fix removes orphans only", func(t *testing.T) {
		env.out.Reset()
		checkErr(t, cliTest{wantErr: errAuditFailed}, env.cli.run([]string{"admin", "audit", "-flow", "files", "-fix"}))
		assert.Contains(t, env.out.String(), "removed 1 orphaned objects")

		assert.False(t, objectExists(t, env.store, "documents", "resources/orphan.pdf"))
		assert.True(t, objectExists(t, env.store, "documents", fresh))
	})

	t.Run("clean again", func(t *testing.T) {
		require.NoError(t, env.docRepo.DeleteRecord(ctx, "files", "gone.pdf"))
		checkErr(t, cliTest{}, env.cli.run([]string{"admin", "audit"}))
	})
}

func objectExists(t *testing.T, store *objectstore.Filesystem, bucket, key string) bool {
	t.Helper()
	_, err := os.Stat(filepath.Join(store.Root(), bucket, filepath.FromSlash(key)))
	if err != nil && !os.IsNotExist(err) {
		t.Fatal(err)
	}
	return err == nil
}
