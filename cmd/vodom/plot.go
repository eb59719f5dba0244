package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/banshee-data/visual-odometry/internal/fsutil"
	"github.com/banshee-data/visual-odometry/internal/monitoring"
	"github.com/banshee-data/visual-odometry/internal/report"
)

func plotCommand() *cli.Command {
	return &cli.Command{
		Name:      "plot",
		Usage:     "Draw one or more pose files on a single top-down chart",
		ArgsUsage: "poses.txt [poses.txt...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output file; .png renders a static plot, .html an interactive chart",
				Value:   "trajectory.png",
			},
			&cli.StringFlag{
				Name:  "title",
				Usage: "Chart title",
				Value: "Trajectory",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() == 0 {
				return errors.New("at least one poses file is required")
			}
			fsys := fsutil.OSFileSystem{}
			var series []report.Series
			for _, name := range cmd.Args().Slice() {
				poses, err := readPoseFile(fsys, name)
				if err != nil {
					return err
				}
				series = append(series, report.Series{
					Name:  strings.TrimSuffix(filepath.Base(name), filepath.Ext(name)),
					Poses: poses,
				})
			}

			output := cmd.String("output")
			title := cmd.String("title")
			var draw func(io.Writer) error
			switch strings.ToLower(filepath.Ext(output)) {
			case ".png":
				draw = func(w io.Writer) error { return report.WriteTrajectoryPNG(w, title, series...) }
			case ".html":
				subtitle := fmt.Sprintf("%d trajectories", len(series))
				draw = func(w io.Writer) error { return report.RenderTrajectoryHTML(w, title, subtitle, series...) }
			default:
				return fmt.Errorf("unsupported output %q: use .png or .html", output)
			}
			if err := writeFile(fsys, output, draw); err != nil {
				return err
			}
			monitoring.Logf("[plot] %d trajectories -> %s", len(series), output)
			return nil
		},
	}
}
