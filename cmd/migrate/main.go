// Command migrate manages the schema of the SQLite history ledger.
// It is only needed when history_backend is "sqlite"; the JSON backend
// has no schema.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"tgfetch/migrations"
)

var commands = map[string]func(*sql.DB, string, ...goose.OptionsFunc) error{
	"up":      goose.Up,
	"up-one":  goose.UpByOne,
	"down":    goose.Down,
	"status":  goose.Status,
	"version": goose.Version,
	"reset":   goose.Reset,
}

func main() {
	dbPath := flag.String("db", envOrDefault("TG_HISTORY_PATH", "./download_history.db"), "path to the sqlite history ledger")
	flag.Parse()

	args := flag.Args()
	if len(args) != 1 {
		usage()
		os.Exit(1)
	}
	run, ok := commands[args[0]]
	if !ok {
		log.Fatalf("unknown command: %s", args[0])
	}

	db, err := sql.Open("sqlite", *dbPath)
	if err != nil {
		log.Fatalf("open ledger: %v", err)
	}
	defer func() { _ = db.Close() }()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		log.Fatalf("set dialect: %v", err)
	}

	if err := run(db, "."); err != nil {
		log.Fatalf("%s: %v", args[0], err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: migrate [-db path] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  up          apply all pending migrations")
	fmt.Fprintln(os.Stderr, "  up-one      apply the next migration")
	fmt.Fprintln(os.Stderr, "  down        roll back the last migration")
	fmt.Fprintln(os.Stderr, "  status      show migration status")
	fmt.Fprintln(os.Stderr, "  version     show the current schema version")
	fmt.Fprintln(os.Stderr, "  reset       roll back everything")
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
