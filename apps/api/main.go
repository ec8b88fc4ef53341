package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof on the default mux

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	echoapi "github.com/aulaprof/aula/apps/api/echo"
	"github.com/aulaprof/aula/core"
	"github.com/aulaprof/aula/core/chat"
	"github.com/aulaprof/aula/core/document"
	"github.com/aulaprof/aula/core/subject"
	"github.com/aulaprof/aula/core/user"
	"github.com/aulaprof/aula/services/completion"
	emailsvc "github.com/aulaprof/aula/services/email"
	logsvc "github.com/aulaprof/aula/services/logger"
	"github.com/aulaprof/aula/services/objectstore"
	"github.com/aulaprof/aula/storage/database"
	sqlxrepos "github.com/aulaprof/aula/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	zl, err := logsvc.InitLogger(conf.Debug)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	rootLogger := logsvc.NewRollbarLogger(zl, conf)
	rootLogger.Enable(!conf.Debug)
	defer func() { _ = rootLogger.Sync() }()

	logger := rootLogger.Named("api")
	dbLogger := rootLogger.Named("db")

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger.Named("mail"))
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger.Named("mail"))
	}

	store, mediaRoot, err := newObjectStore(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up object storage: %v", err), err)
	}
	if conf.Storage.ProvisionOnStart {
		created, err := document.EnsureBuckets(context.Background(), store, document.Flows...)
		if err != nil {
			logger.Fatal(fmt.Sprintf("provisioning buckets: %v", err), err)
		}
		if len(created) > 0 {
			logger.Info(fmt.Sprintf("created buckets %v", created))
		}
	}

	opsTo, err := core.ParseAddressList(conf.OpsEmail)
	if err != nil {
		logger.Fatal(fmt.Sprintf("parsing ops email: %v", err), err)
	}
	var alerter document.Alerter
	if len(opsTo) > 0 {
		alerter = document.NewMailAlerter(mailSvc, opsTo)
	}

	completer, err := completion.New(context.Background(), conf.Chat, logger.Named("chat"))
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up chat completion: %v", err), err)
	}

	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db))
	subjSvc := subject.NewService(sqlxrepos.NewSubjectRepository(db))
	docSvc := document.NewService(store, sqlxrepos.NewDocumentRepository(db), subjSvc, document.Options{
		CacheControl:  conf.Storage.CacheControl,
		VerifyContent: conf.Storage.VerifyContent,
		AuditGrace:    conf.Storage.AuditGrace,
		Logger:        logger.Named("documents"),
		Alerter:       alerter,
	})
	subjSvc.GuardDeletion(docSvc)
	hub := chat.NewHub(completer, conf.Chat.FallbackReply, logger.Named("chat"), conf.Chat.CacheSize, conf.Chat.IdleTTL)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("storage").Set(conf.Storage.Backend)
	expvar.Publish("chat_panels", expvar.Func(func() interface{} { return hub.Len() }))

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugAddress, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:        conf,
			Logger:      logger,
			UserSvc:     usrSvc,
			Sessions:    user.NewSessions(conf.Server.SessionCacheSize, conf.Server.JWTExpirationDelta),
			SubjectSvc:  subjSvc,
			DocumentSvc: docSvc,
			ChatHub:     hub,
			Validate:    validate,
			Translator:  translator,
			MediaRoot:   mediaRoot,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// newObjectStore returns the configured object storage, and the directory to serve under /media
// when objects live on the local filesystem.
func newObjectStore(conf *core.Config) (document.ObjectStore, string, error) {
	switch conf.Storage.Backend {
	case "supabase":
		if conf.Storage.ProjectURL == "" || conf.Storage.ServiceKey == "" {
			return nil, "", errors.New("supabase storage needs a project URL and a service key")
		}
		return objectstore.NewSupabase(conf.Storage.ProjectURL, conf.Storage.ServiceKey, nil), "", nil
	case "filesystem", "":
		fs, err := objectstore.NewFilesystem(conf.Storage.Root, conf.Storage.PublicBaseURL)
		if err != nil {
			return nil, "", err
		}
		return fs, fs.Root(), nil
	default:
		return nil, "", errors.Errorf("unknown storage backend %q", conf.Storage.Backend)
	}
}

func newTranslator() ut.Translator {
	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	translator, _ := uni.GetTranslator("en")
	return translator
}
