package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/banshee-data/visual-odometry/internal/dataset"
	"github.com/banshee-data/visual-odometry/internal/evaluation"
	"github.com/banshee-data/visual-odometry/internal/fsutil"
	"github.com/banshee-data/visual-odometry/internal/odometry"
)

func evaluateCommand() *cli.Command {
	return &cli.Command{
		Name:      "evaluate",
		Usage:     "Compare pose files with ground truth or with a reference pose file",
		ArgsUsage: "[poses.txt]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "data",
				Aliases:  []string{"d"},
				Category: "Inputs and Outputs",
				Usage:    "Dataset root; ground truth is integrated from each sequence's records",
			},
			&cli.StringFlag{
				Name:     "results",
				Aliases:  []string{"r"},
				Category: "Inputs and Outputs",
				Usage:    "Directory of <sequence>.txt pose files written by predict",
				Value:    "results",
			},
			&cli.StringFlag{
				Name:     "reference",
				Category: "Inputs and Outputs",
				Usage:    "Reference pose file to compare the single poses.txt argument with",
			},
			sequencesFlag(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			fsys := fsutil.OSFileSystem{}
			out := cmd.Root().Writer

			if ref := cmd.String("reference"); ref != "" {
				if cmd.NArg() != 1 {
					return errors.New("--reference needs exactly one poses file argument")
				}
				m, err := comparePoseFiles(fsys, cmd.Args().First(), ref)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s: %s\n", cmd.Args().First(), m)
				return nil
			}

			if cmd.String("data") == "" {
				return errors.New("one of --data or --reference is required")
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			loader := dataset.NewLoader(fsys, cmd.String("data"), cfg)
			seqs, err := loader.Select(wantedSequences(cmd, cfg.GetTestSequences()))
			if err != nil {
				return err
			}
			for _, seq := range seqs {
				m, err := evaluateSequence(fsys, loader, seq, cmd.String("results"))
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s: %s\n", seq, m)
			}
			return nil
		},
	}
}

func readPoseFile(fsys fsutil.FileSystem, name string) ([]odometry.Pose, error) {
	data, err := fsys.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read poses: %w", err)
	}
	poses, err := odometry.ReadPoses(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return poses, nil
}

func comparePoseFiles(fsys fsutil.FileSystem, predicted, reference string) (evaluation.Metrics, error) {
	pred, err := readPoseFile(fsys, predicted)
	if err != nil {
		return evaluation.Metrics{}, err
	}
	data, err := fsys.ReadFile(reference)
	if err != nil {
		return evaluation.Metrics{}, fmt.Errorf("failed to read reference: %w", err)
	}
	ref, err := evaluation.ReadReference(bytes.NewReader(data))
	if err != nil {
		return evaluation.Metrics{}, fmt.Errorf("%s: %w", reference, err)
	}
	return evaluation.Compare(pred, ref)
}

func evaluateSequence(fsys fsutil.FileSystem, loader *dataset.Loader, seq, resultsDir string) (evaluation.Metrics, error) {
	pred, err := readPoseFile(fsys, filepath.Join(resultsDir, seq+".txt"))
	if err != nil {
		return evaluation.Metrics{}, err
	}
	gt, err := loader.LoadGroundTruth(seq)
	if err != nil {
		return evaluation.Metrics{}, err
	}
	ref, err := evaluation.ReferenceTrajectory(gt.Targets(), gt.Stamps)
	if err != nil {
		return evaluation.Metrics{}, fmt.Errorf("sequence %s: %w", seq, err)
	}
	m, err := evaluation.Compare(pred, ref)
	if err != nil {
		return evaluation.Metrics{}, fmt.Errorf("sequence %s: %w", seq, err)
	}
	return m, nil
}
