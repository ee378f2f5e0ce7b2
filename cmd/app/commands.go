// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"codeberg.org/oliverandrich/go-auth-service/internal/config"
	"codeberg.org/oliverandrich/go-auth-service/internal/database"
	"codeberg.org/oliverandrich/go-auth-service/internal/server"
	"codeberg.org/oliverandrich/go-auth-service/internal/services/auth"
	"github.com/urfave/cli/v3"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Manage the database schema",
		Commands: []*cli.Command{
			{Name: "up", Usage: "Apply all pending migrations", Action: migrate(database.RunMigrations)},
			{Name: "down", Usage: "Roll back the last migration", Action: migrate(database.MigrateDown)},
			{Name: "reset", Usage: "Roll back all migrations", Action: migrate(database.MigrateReset)},
			{Name: "status", Usage: "Print the current schema version", Action: migrationStatus},
		},
	}
}

func migrate(fn func(*sql.DB) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg := config.NewFromCLI(cmd)
		server.SetupLogger(cmd.Root().ErrWriter, cfg.Log.Level, cfg.Log.Format)

		db, err := database.Connect(cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer func() { _ = database.Close(db) }()

		if err := fn(db.DB); err != nil {
			return fmt.Errorf("migrate %s: %w", cmd.Name, err)
		}
		return printVersion(cmd, db.DB)
	}
}

func migrationStatus(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)

	db, err := database.Connect(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = database.Close(db) }()

	return printVersion(cmd, db.DB)
}

func printVersion(cmd *cli.Command, db *sql.DB) error {
	version, err := database.MigrationVersion(db)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.Root().Writer, "schema version: %d\n", version)
	return err
}

func usersCommand() *cli.Command {
	return &cli.Command{
		Name:  "users",
		Usage: "Manage accounts",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create an unverified account and mail a verification link",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Required: true, Usage: "Email address"},
					&cli.StringFlag{Name: "password", Required: true, Usage: "Initial password", Sources: cli.EnvVars("USER_PASSWORD")},
				},
				Action: withServices(createUser),
			},
			{
				Name:  "change-email",
				Usage: "Mail a verification link for a new address; the change applies once verified",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Required: true, Usage: "Current email address"},
					&cli.StringFlag{Name: "new-email", Required: true, Usage: "New email address"},
				},
				Action: withServices(changeEmail),
			},
		},
	}
}

func withServices(fn func(context.Context, *cli.Command, *server.Services) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg := config.NewFromCLI(cmd)
		server.SetupLogger(cmd.Root().ErrWriter, cfg.Log.Level, cfg.Log.Format)

		svc, err := server.NewServices(ctx, cfg, cmd.Root().Writer)
		if err != nil {
			return err
		}
		defer func() { _ = svc.Close() }()

		return fn(ctx, cmd, svc)
	}
}

func createUser(ctx context.Context, cmd *cli.Command, svc *server.Services) error {
	user, err := svc.Auth.CreateUser(ctx, cmd.String("email"), cmd.String("password"))
	if err != nil {
		return describe(err)
	}
	_, _ = fmt.Fprintf(cmd.Root().Writer, "created user %d <%s>\n", user.ID, user.Email)

	if err := svc.Auth.IssueEmailVerification(ctx, user.ID, ""); err != nil {
		return fmt.Errorf("user created, but the verification email failed: %w", err)
	}
	return nil
}

func changeEmail(ctx context.Context, cmd *cli.Command, svc *server.Services) error {
	user, err := svc.Repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(cmd.String("email"))))
	if err != nil {
		return fmt.Errorf("no user with email %s: %w", cmd.String("email"), err)
	}
	if err := svc.Auth.IssueEmailVerification(ctx, user.ID, cmd.String("new-email")); err != nil {
		return describe(err)
	}
	_, _ = fmt.Fprintf(cmd.Root().Writer, "verification sent to %s\n", cmd.String("new-email"))
	return nil
}

// describe lists every violated password rule instead of only the first.
func describe(err error) error {
	var pve *auth.PasswordValidationError
	if errors.As(err, &pve) {
		return fmt.Errorf("password rejected: %s", strings.Join(pve.Messages(), " "))
	}
	return err
}
