// Command migrator applies, rolls back, and reports on the risk-scoring
// pipeline's PostgreSQL schema using embedded golang-migrate migrations.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/bennetthilberg/risk-scoring-pipeline/migrations"
)

// ErrUnknownCommand is returned for an unrecognized subcommand.
var ErrUnknownCommand = errors.New("unknown command")

// ErrDropRequiresForce guards the destructive drop command.
var ErrDropRequiresForce = errors.New("drop command requires --force flag for safety (this will destroy all data)")

func main() {
	force := flag.Bool("force", false, "force dangerous operations without confirmation")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	config, err := migrations.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	runner, err := migrations.NewMigrationRunner(config)
	if err != nil {
		log.Fatalf("failed to create migration runner: %v", err)
	}

	defer func() {
		_ = runner.Close()
	}()

	if err := executeCommand(args[0], runner, *force); err != nil {
		log.Fatalf("migration failed: %v", err)
	}
}

func executeCommand(command string, runner migrations.MigrationRunner, force bool) error {
	switch command {
	case "up":
		return runner.Up()
	case "down":
		return runner.Down()
	case "status":
		return runner.Status()
	case "version":
		return runner.Version()
	case "drop":
		if !force {
			return ErrDropRequiresForce
		}

		return runner.Drop()
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, command)
	}
}

func printUsage() {
	log.Print(`migrator - database migration tool for the risk-scoring pipeline

USAGE:
    migrator [OPTIONS] COMMAND

COMMANDS:
    up      Apply all pending migrations
    down    Rollback the last migration
    status  Show migration status
    version Show current migration version
    drop    Drop all tables (DESTRUCTIVE - requires --force flag)

OPTIONS:
    --force  Force dangerous operations without confirmation

ENVIRONMENT VARIABLES:
    DATABASE_URL     PostgreSQL connection string (required)
    MIGRATION_TABLE  Name of the migration tracking table (default: schema_migrations)
`)
}
