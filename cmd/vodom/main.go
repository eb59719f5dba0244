// Command vodom reconstructs vehicle trajectories from stacked-frame
// velocity predictions, evaluates them against ground truth, and serves
// stored runs for inspection.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/banshee-data/visual-odometry/internal/config"
	"github.com/banshee-data/visual-odometry/internal/fsutil"
	"github.com/banshee-data/visual-odometry/internal/monitoring"
	"github.com/banshee-data/visual-odometry/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		log.Fatalf("vodom: %v", err)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "vodom",
		Usage:   "Reconstruct trajectories from stacked-frame visual odometry",
		Version: version.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the odometry JSON config (defaults to " + config.DefaultConfigPath + " when present)",
				Sources: cli.EnvVars("VODOM_CONFIG"),
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable debug logging",
				Sources: cli.EnvVars("VODOM_VERBOSE"),
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			monitoring.SetVerbose(cmd.Bool("verbose"))
			return ctx, nil
		},
		Commands: []*cli.Command{
			predictCommand(),
			targetsCommand(),
			evaluateCommand(),
			plotCommand(),
			serveCommand(),
			migrateCommand(),
		},
	}
}

// loadConfig reads --config, falling back to the defaults file in the
// working directory and then to built-in defaults.
func loadConfig(cmd *cli.Command) (*config.OdometryConfig, error) {
	path := cmd.String("config")
	if path == "" {
		if !fsutil.Exists(fsutil.OSFileSystem{}, config.DefaultConfigPath) {
			monitoring.Debugf("[vodom] no config file, using defaults")
			return config.DefaultOdometryConfig(), nil
		}
		path = config.DefaultConfigPath
	}
	cfg, err := config.LoadOdometryConfig(path)
	if err != nil {
		return nil, err
	}
	monitoring.Debugf("[vodom] loaded config %s", path)
	return cfg, nil
}

// applyOverrides copies command-line overrides into cfg.
func applyOverrides(cmd *cli.Command, cfg *config.OdometryConfig) error {
	if cmd.IsSet("stack-size") {
		n := cmd.Int("stack-size")
		cfg.StackSize = &n
	}
	if cmd.IsSet("workers") {
		n := cmd.Int("workers")
		cfg.Workers = &n
	}
	return cfg.Validate()
}

// writeFile creates name (and its parent directory) and fills it with fn.
func writeFile(fsys fsutil.FileSystem, name string, fn func(io.Writer) error) error {
	w, err := fsutil.CreateFile(fsys, name)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	if err := fn(w); err != nil {
		w.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", name, err)
	}
	return nil
}

func stackSizeFlag() cli.Flag {
	return &cli.IntFlag{
		Name:     "stack-size",
		Category: "Pipeline",
		Usage:    "Override the configured number of frames per stack",
	}
}

func sequencesFlag() cli.Flag {
	return &cli.StringSliceFlag{
		Name:     "sequence",
		Aliases:  []string{"s"},
		Category: "Inputs and Outputs",
		Usage:    "Sequence to process; repeatable (defaults to the configured test or train sequences)",
	}
}

func dataFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "data",
		Aliases:  []string{"d"},
		Category: "Inputs and Outputs",
		Usage:    "Dataset root holding one directory per sequence",
		Required: true,
	}
}

func dbFlag(value string) cli.Flag {
	return &cli.StringFlag{
		Name:     "db",
		Category: "Storage",
		Usage:    "SQLite database for runs",
		Value:    value,
		Sources:  cli.EnvVars("VODOM_DB"),
	}
}

// wantedSequences returns --sequence, or configured when the flag is unset.
func wantedSequences(cmd *cli.Command, configured []string) []string {
	if seqs := cmd.StringSlice("sequence"); len(seqs) > 0 {
		return seqs
	}
	return configured
}
