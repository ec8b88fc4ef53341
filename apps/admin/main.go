package main

import (
	"fmt"
	"log"
	"os"

	"github.com/aulaprof/aula/core"
	"github.com/aulaprof/aula/core/document"
	"github.com/aulaprof/aula/core/subject"
	"github.com/aulaprof/aula/core/user"
	logsvc "github.com/aulaprof/aula/services/logger"
	"github.com/aulaprof/aula/services/objectstore"
	"github.com/aulaprof/aula/storage/database"
	sqlxrepos "github.com/aulaprof/aula/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	zl, err := logsvc.InitLogger(conf.Debug)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	logger := logsvc.NewRollbarLogger(zl, conf).Named("admin")
	logger.Enable(!conf.Debug)

	if err = database.CreateIfNotExist(conf); err != nil {
		logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}

	store, err := newObjectStore(conf)
	if err != nil {
		_ = db.Close()
		logger.Fatal(fmt.Sprintf("setting up object storage: %v", err), err)
	}

	subjSvc := subject.NewService(sqlxrepos.NewSubjectRepository(db))
	cli := commandLine{
		db:     db.DB,
		usrSvc: user.NewService(sqlxrepos.NewUserRepository(db)),
		store:  store,
		docSvc: document.NewService(store, sqlxrepos.NewDocumentRepository(db), subjSvc, document.Options{
			AuditGrace: conf.Storage.AuditGrace,
			Logger:     logger,
		}),
		out: os.Stdout,
	}

	err = cli.run(os.Args)
	_ = db.Close()
	_ = logger.Sync()
	if err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func newObjectStore(conf *core.Config) (document.ObjectStore, error) {
	if conf.Storage.Backend == "supabase" {
		return objectstore.NewSupabase(conf.Storage.ProjectURL, conf.Storage.ServiceKey, nil), nil
	}
	return objectstore.NewFilesystem(conf.Storage.Root, conf.Storage.PublicBaseURL)
}
