package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/banshee-data/visual-odometry/internal/api"
	"github.com/banshee-data/visual-odometry/internal/db"
	"github.com/banshee-data/visual-odometry/internal/monitoring"
	"github.com/banshee-data/visual-odometry/internal/units"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve stored runs, poses and charts over HTTP",
		Flags: []cli.Flag{
			dbFlag("vodom.db"),
			&cli.StringFlag{
				Name:  "listen",
				Usage: "HTTP listen address",
				Value: ":8080",
			},
			&cli.StringFlag{
				Name:  "units",
				Usage: "Speed units for API responses (" + units.GetValidUnitsString() + "); defaults to the configured units",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			speedUnits := cfg.GetSpeedUnits()
			if cmd.IsSet("units") {
				speedUnits = cmd.String("units")
				if !units.IsValid(speedUnits) {
					return fmt.Errorf("invalid units %q: must be one of %s", speedUnits, units.GetValidUnitsString())
				}
			}

			database, err := db.NewDB(cmd.String("db"))
			if err != nil {
				return err
			}
			defer database.Close()

			monitoring.Logf("[serve] database %s, units %s", database.Path(), speedUnits)
			return api.NewServer(database, speedUnits).Start(ctx, cmd.String("listen"))
		},
	}
}
