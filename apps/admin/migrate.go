package main

import (
	"context"

	"github.com/trezcool/elimu/storage/database"
)

var runMigrationsFunc = database.RunMigrations // mockable

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errNoDatabase
	}
	return runMigrationsFunc(context.Background(), cli.db, args[0], args[1:]...)
}
