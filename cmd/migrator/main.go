package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"dadchain/internal/config"
	"dadchain/internal/database"

	"github.com/joho/godotenv"
)

var (
	flags = flag.NewFlagSet("migrator", flag.ExitOnError)
	dsn   = flags.String("dsn", "", "database connection string (defaults to the DB_* settings)")
)

func main() {
	flags.Usage = usage
	flags.Parse(os.Args[1:])
	args := flags.Args()

	if len(args) < 1 {
		flags.Usage()
		os.Exit(1)
	}

	_ = godotenv.Load()

	connStr := *dsn
	if connStr == "" {
		var db config.DatabaseConfig
		if err := config.LoadDatabase(&db); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load database config: %v\n", err)
			os.Exit(1)
		}
		connStr = db.ConnectionString()
	}

	if err := database.Migrate(context.Background(), connStr, args[0], args[1:]...); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(usagePrefix)
	flags.PrintDefaults()
	fmt.Println(usageCommands)
}

var (
	usagePrefix = `Usage: migrator [OPTIONS] COMMAND

or

Set environment variables
DB_HOST, DB_PORT, DB_USER, DB_PASSWORD, DB_NAME

Options:
`

	usageCommands = `
Commands:
    up                   Migrate the database to the most recent version available
    up-by-one            Migrate the database up by 1
    up-to VERSION        Migrate the database to a specific VERSION
    down                 Roll back the version by 1
    down-to VERSION      Roll back to a specific VERSION
    redo                 Re-run the latest migration
    reset                Roll back all migrations
    status               Dump the migration status
    version              Print the current version
`
)
