package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/banshee-data/visual-odometry/internal/dataset"
	"github.com/banshee-data/visual-odometry/internal/fsutil"
	"github.com/banshee-data/visual-odometry/internal/monitoring"
	"github.com/banshee-data/visual-odometry/internal/odometry"
)

func targetsCommand() *cli.Command {
	return &cli.Command{
		Name:  "targets",
		Usage: "Write per-stack ground-truth records aligned with the stacks of each sequence",
		Flags: []cli.Flag{
			dataFlag(),
			sequencesFlag(),
			&cli.StringFlag{
				Name:     "output",
				Aliases:  []string{"o"},
				Category: "Inputs and Outputs",
				Usage:    "Directory for <sequence>_targets.txt files",
				Value:    "targets",
			},
			stackSizeFlag(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := applyOverrides(cmd, cfg); err != nil {
				return err
			}
			fsys := fsutil.OSFileSystem{}
			loader := dataset.NewLoader(fsys, cmd.String("data"), cfg)
			seqs, err := loader.Select(wantedSequences(cmd, cfg.GetTrainSequences()))
			if err != nil {
				return err
			}
			for _, seq := range seqs {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := writeTargets(fsys, loader, seq, cfg.GetStackSize(), cmd.String("output")); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// writeTargets writes the records of seq that start a full stack, one line
// of nine values per stack.
func writeTargets(fsys fsutil.FileSystem, loader *dataset.Loader, seq string, stackSize int, dir string) error {
	gt, err := loader.LoadGroundTruth(seq)
	if err != nil {
		return err
	}
	records, err := odometry.TruncateTargets(gt.Records, stackSize)
	if err != nil {
		return fmt.Errorf("sequence %s: %w", seq, err)
	}
	name := filepath.Join(dir, seq+"_targets.txt")
	if err := writeFile(fsys, name, func(w io.Writer) error {
		return writeRecords(w, records)
	}); err != nil {
		return err
	}
	monitoring.Logf("[targets] sequence %s: %d of %d records -> %s", seq, len(records), len(gt.Records), name)
	return nil
}

func writeRecords(w io.Writer, records []odometry.OdometryRecord) error {
	bw := bufio.NewWriter(w)
	for _, rec := range records {
		for i, v := range rec.Array() {
			if i > 0 {
				bw.WriteByte(' ')
			}
			bw.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}
