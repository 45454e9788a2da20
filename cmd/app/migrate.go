// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"fmt"

	"codeberg.org/oliverandrich/productscan/internal/config"
	"codeberg.org/oliverandrich/productscan/internal/database"
	"github.com/vinovest/sqlx"
	"github.com/urfave/cli/v3"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Inspect or roll back the database schema",
		Commands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Print the current schema version",
				Action: migrateAction(func(db *sqlx.DB) error { return printVersion(db) }),
			},
			{
				Name:  "down",
				Usage: "Roll back the most recent migration",
				Action: migrateAction(func(db *sqlx.DB) error {
					if err := database.MigrateDown(db.DB); err != nil {
						return err
					}
					return printVersion(db)
				}),
			},
			{
				Name:  "reset",
				Usage: "Roll back all migrations",
				Action: migrateAction(func(db *sqlx.DB) error {
					return database.MigrateReset(db.DB)
				}),
			},
		},
	}
}

// migrateAction opens the database, which applies pending migrations, and runs fn.
func migrateAction(fn func(db *sqlx.DB) error) cli.ActionFunc {
	return func(_ context.Context, cmd *cli.Command) error {
		cfg := config.NewFromCLI(cmd)
		db, err := database.Open(cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer func() { _ = db.Close() }()
		return fn(db)
	}
}

func printVersion(db *sqlx.DB) error {
	version, err := database.Version(db.DB)
	if err != nil {
		return err
	}
	fmt.Printf("schema version %d\n", version)
	return nil
}
