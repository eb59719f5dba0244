package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/banshee-data/visual-odometry/internal/db"
)

func migrateCommand() *cli.Command {
	withDB := func(fn func(ctx context.Context, cmd *cli.Command, database *db.DB) error) cli.ActionFunc {
		return func(ctx context.Context, cmd *cli.Command) error {
			database, err := db.NewDB(cmd.String("db"))
			if err != nil {
				return err
			}
			defer database.Close()
			return fn(ctx, cmd, database)
		}
	}

	return &cli.Command{
		Name:  "migrate",
		Usage: "Manage the run database schema",
		Flags: []cli.Flag{dbFlag("vodom.db")},
		Commands: []*cli.Command{
			{
				Name:  "up",
				Usage: "Apply all pending migrations",
				Action: withDB(func(ctx context.Context, cmd *cli.Command, database *db.DB) error {
					return printVersion(cmd, database)
				}),
			},
			{
				Name:  "down",
				Usage: "Roll back the most recent migration",
				Action: withDB(func(ctx context.Context, cmd *cli.Command, database *db.DB) error {
					if err := database.MigrateDown(); err != nil {
						return err
					}
					return printVersion(cmd, database)
				}),
			},
			{
				Name:  "version",
				Usage: "Show the current and latest schema versions",
				Action: withDB(func(ctx context.Context, cmd *cli.Command, database *db.DB) error {
					return printVersion(cmd, database)
				}),
			},
			{
				Name:      "force",
				Usage:     "Set the schema version without running migrations, clearing the dirty flag",
				ArgsUsage: "VERSION",
				Action: withDB(func(ctx context.Context, cmd *cli.Command, database *db.DB) error {
					if cmd.NArg() != 1 {
						return fmt.Errorf("force needs exactly one VERSION argument")
					}
					v, err := strconv.Atoi(cmd.Args().First())
					if err != nil {
						return fmt.Errorf("invalid version %q: %w", cmd.Args().First(), err)
					}
					if err := database.MigrateForce(v); err != nil {
						return err
					}
					return printVersion(cmd, database)
				}),
			},
		},
	}
}

func printVersion(cmd *cli.Command, database *db.DB) error {
	current, dirty, err := database.MigrateVersion()
	if err != nil {
		return err
	}
	latest, err := db.LatestMigrationVersion()
	if err != nil {
		return err
	}
	state := "clean"
	if dirty {
		state = "dirty"
	}
	fmt.Fprintf(cmd.Root().Writer, "schema version %d of %d (%s)\n", current, latest, state)
	return nil
}
