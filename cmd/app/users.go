// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"codeberg.org/oliverandrich/productscan/internal/config"
	"codeberg.org/oliverandrich/productscan/internal/database"
	"codeberg.org/oliverandrich/productscan/internal/models"
	"codeberg.org/oliverandrich/productscan/internal/repository"
	"codeberg.org/oliverandrich/productscan/internal/services/auth"
	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"
)

func usersCommand() *cli.Command {
	return &cli.Command{
		Name:  "users",
		Usage: "Manage user accounts",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List all accounts",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "all", Usage: "Include deactivated accounts"},
				},
				Action: listUsers,
			},
			{
				Name:      "promote",
				Usage:     "Grant the admin role to an account",
				ArgsUsage: "<username>",
				Action:    promoteUser,
			},
		},
	}
}

// withRepository opens the configured database for the duration of fn.
func withRepository(cmd *cli.Command, fn func(repo *repository.Repository) error) error {
	cfg := config.NewFromCLI(cmd)
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = db.Close() }()
	return fn(repository.New(db))
}

func listUsers(ctx context.Context, cmd *cli.Command) error {
	return withRepository(cmd, func(repo *repository.Repository) error {
		users, err := repo.ListUsers(ctx, cmd.Bool("all"))
		if err != nil {
			return err
		}
		renderUsers(os.Stdout, users, time.Now())
		return nil
	})
}

func renderUsers(w io.Writer, users []models.User, now time.Time) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"ID", "Username", "Email", "Role", "Verified", "Joined", "Status"})

	for _, u := range users {
		status := "active"
		if u.IsDeleted() {
			status = "deactivated"
		}
		verified := "no"
		if u.IsVerified {
			verified = "yes"
		}
		tw.AppendRow(table.Row{
			u.ID, u.Username, u.Email, u.Role, verified,
			humanize.RelTime(u.CreatedAt, now, "ago", "from now"), status,
		})
	}
	tw.AppendFooter(table.Row{"", "", "", "", "", "Total", len(users)})
	tw.Render()
}

func promoteUser(ctx context.Context, cmd *cli.Command) error {
	username := cmd.Args().First()
	if username == "" {
		return errors.New("username required")
	}

	return withRepository(cmd, func(repo *repository.Repository) error {
		accounts := auth.NewService(repo, &config.AuthConfig{}, nil)
		user, err := accounts.Promote(ctx, username)
		if err != nil {
			return err
		}
		fmt.Printf("%s (id %d) is now %s\n", user.Username, user.ID, user.Role)
		return nil
	})
}
