package main

import (
	"log"
	"os"

	"github.com/jmoiron/sqlx"

	dig_container "github.com/trezcool/matembezi/apps/api/di/dig"
	"github.com/trezcool/matembezi/core"
	"github.com/trezcool/matembezi/core/adventure"
	"github.com/trezcool/matembezi/core/commitlog"
	"github.com/trezcool/matembezi/core/summary"
	"github.com/trezcool/matembezi/core/tasks"
	"github.com/trezcool/matembezi/core/user"
)

func main() {
	logger := log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	var code int
	err := dig_container.New(false).Invoke(func(
		conf *core.Config,
		db *sqlx.DB,
		users *user.Service,
		adventures *adventure.Service,
		registry *tasks.Registry,
		// projections follow the commits made by importadventure
		_ *commitlog.Service,
		_ *summary.Service,
	) {
		defer db.Close()

		cli := commandLine{
			db:         db.DB,
			users:      users,
			adventures: adventures,
			jobs:       registry,
			out:        os.Stdout,
		}
		if err := cli.run(os.Args); err != nil {
			if err != errHelp {
				logger.Printf("\nerror: %s\n", err)
			}
			code = 1
		}
	})
	if err != nil {
		logger.Fatal(err)
	}
	os.Exit(code)
}
