package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/auth"
	"github.com/trezcool/elimu/core/user"
	appfs "github.com/trezcool/elimu/fs"
	logsvc "github.com/trezcool/elimu/services/logger"
	"github.com/trezcool/elimu/storage/database"
	inmemdb "github.com/trezcool/elimu/storage/database/inmem"
	sqlxrepos "github.com/trezcool/elimu/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	zl, err := logsvc.NewZapLogger(conf)
	if err != nil {
		log.Fatalf("setting up zap: %v", err)
	}
	logger := logsvc.NewRollbarLogger(zl.Named("admin"), conf)
	defer func() { _ = logger.Sync() }()

	validate := validator.New()
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	core.InitValidators(validate, translator)
	user.RegisterValidators(validate, translator)
	if err = user.LoadCommonPasswords(appfs.FS); err != nil {
		logger.Fatal(fmt.Sprintf("loading common passwords: %v", err), err)
	}

	// set up DB
	var (
		db      *sql.DB
		usrRepo user.Repository
	)
	if conf.Database.Engine == "memory" {
		usrRepo = inmemdb.NewUserRepository(inmemdb.Open())
	} else {
		sqlDB, err := database.Open(context.Background(), conf.Database)
		if err != nil {
			logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
		}
		defer func() { _ = sqlDB.Close() }()
		db = sqlDB.DB
		usrRepo = sqlxrepos.NewUserRepository(sqlDB)
	}

	// start CLI
	cli := commandLine{
		db:     db,
		usrSvc: user.NewService(usrRepo, auth.NewHasher(conf.Auth.BcryptCost), validate),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", describe(err, translator))
		}
		_ = logger.Sync()
		os.Exit(1)
	}
}

// describe flattens validation errors into one line per field.
func describe(err error, translator ut.Translator) string {
	var (
		valErrs validator.ValidationErrors
		appErr  *core.ValidationError
	)
	switch {
	case errors.As(err, &valErrs):
		msg := "validation failed"
		for _, vErr := range valErrs {
			msg += fmt.Sprintf("\n  %s: %s", vErr.Field(), vErr.Translate(translator))
		}
		return msg
	case errors.As(err, &appErr):
		msg := appErr.Error()
		for _, fe := range appErr.Fields {
			msg += fmt.Sprintf("\n  %s: %s", fe.Field, fe.Error)
		}
		return msg
	}
	return err.Error()
}
