package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // register the /debug/pprof handlers

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	echoapi "github.com/trezcool/elimu/apps/api/echo"
	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/admin"
	"github.com/trezcool/elimu/core/ai"
	"github.com/trezcool/elimu/core/assignment"
	"github.com/trezcool/elimu/core/auth"
	"github.com/trezcool/elimu/core/certificate"
	"github.com/trezcool/elimu/core/course"
	"github.com/trezcool/elimu/core/user"
	appfs "github.com/trezcool/elimu/fs"
	aisvc "github.com/trezcool/elimu/services/ai"
	emailsvc "github.com/trezcool/elimu/services/email"
	logsvc "github.com/trezcool/elimu/services/logger"
	"github.com/trezcool/elimu/storage/database"
	inmemdb "github.com/trezcool/elimu/storage/database/inmem"
	sqlxrepos "github.com/trezcool/elimu/storage/database/sqlx"
	kvstore "github.com/trezcool/elimu/storage/kv"
)

type repositories struct {
	users        user.Repository
	courses      course.Repository
	certificates certificate.Repository
	assignments  assignment.Repository
	admin        admin.Repository
}

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	zl, err := logsvc.NewZapLogger(conf)
	if err != nil {
		log.Fatalf("setting up zap: %v", err)
	}
	logger := logsvc.NewRollbarLogger(zl.Named("api"), conf)
	logger.Enable(!conf.Debug)
	defer func() { _ = logger.Sync() }()

	dbLogger := logsvc.NewRollbarLogger(zl.Named("db"), conf)
	dbLogger.Enable(!conf.Debug)

	ctx := context.Background()

	// set up DB
	repos, closeDB, err := setUpDB(ctx, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = closeDB(); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()

	// set up KV store
	store, err := kvstore.Connect(ctx, conf.Redis, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up kv store: %v", err), err)
	}
	defer func() { _ = store.Close() }()

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.RegisterValidators(validate, translator)

	core.ParseEmailTemplates(appfs.FS, conf, logger)

	if err = user.LoadCommonPasswords(appfs.FS); err != nil {
		logger.Fatal(fmt.Sprintf("loading common passwords: %v", err), err)
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	usrSvc := user.NewService(repos.users, auth.NewHasher(conf.Auth.BcryptCost), validate)
	certSvc := certificate.NewService(repos.certificates, repos.courses, usrSvc, mailSvc, logger)
	crsSvc := course.NewService(repos.courses, certSvc, usrSvc, validate, logger)
	asgSvc := assignment.NewService(repos.assignments, repos.courses, validate)
	adminSvc := admin.NewService(repos.admin)
	aiSvc := ai.NewService(aisvc.NewClient(conf.AI, logger), kvstore.NewCache(store), crsSvc, validate, conf.AI, logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("db_engine").Set(conf.Database.Engine)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:           conf,
		Logger:         logger,
		Validate:       validate,
		Translator:     translator,
		Issuer:         auth.NewIssuer(conf, kvstore.NewBlacklist(store)),
		Sessions:       kvstore.NewSessions(store, conf.Auth.SessionTTL),
		Attempts:       kvstore.NewAttempts(store, conf.Auth.LoginWindow),
		UserSvc:        usrSvc,
		CourseSvc:      crsSvc,
		CertificateSvc: certSvc,
		AssignmentSvc:  asgSvc,
		AdminSvc:       adminSvc,
		AISvc:          aiSvc,
	})

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

// setUpDB opens the configured engine. The memory engine starts empty on every run.
func setUpDB(ctx context.Context, conf *core.Config) (repositories, func() error, error) {
	if conf.Database.Engine == "memory" {
		db := inmemdb.Open()
		return repositories{
			users:        inmemdb.NewUserRepository(db),
			courses:      inmemdb.NewCourseRepository(db),
			certificates: inmemdb.NewCertificateRepository(db),
			assignments:  inmemdb.NewAssignmentRepository(db),
			admin:        inmemdb.NewAdminRepository(db),
		}, func() error { return nil }, nil
	}

	if err := database.CreateIfNotExist(ctx, conf.Database); err != nil {
		return repositories{}, nil, err
	}
	db, err := database.Open(ctx, conf.Database)
	if err != nil {
		return repositories{}, nil, err
	}
	if err = database.Migrate(ctx, db.DB); err != nil {
		_ = db.Close()
		return repositories{}, nil, err
	}
	return sqlRepositories(db), db.Close, nil
}

func sqlRepositories(db *sqlx.DB) repositories {
	return repositories{
		users:        sqlxrepos.NewUserRepository(db),
		courses:      sqlxrepos.NewCourseRepository(db),
		certificates: sqlxrepos.NewCertificateRepository(db),
		assignments:  sqlxrepos.NewAssignmentRepository(db),
		admin:        sqlxrepos.NewAdminRepository(db),
	}
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
