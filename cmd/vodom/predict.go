package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/banshee-data/visual-odometry/internal/config"
	"github.com/banshee-data/visual-odometry/internal/dataset"
	"github.com/banshee-data/visual-odometry/internal/db"
	"github.com/banshee-data/visual-odometry/internal/evaluation"
	"github.com/banshee-data/visual-odometry/internal/fsutil"
	"github.com/banshee-data/visual-odometry/internal/monitoring"
	"github.com/banshee-data/visual-odometry/internal/odometry"
	"github.com/banshee-data/visual-odometry/internal/report"
)

func predictCommand() *cli.Command {
	return &cli.Command{
		Name:    "predict",
		Aliases: []string{"p"},
		Usage:   "Reconstruct trajectories and write one pose file per sequence",
		Flags: []cli.Flag{
			dataFlag(),
			sequencesFlag(),
			&cli.StringFlag{
				Name:     "output",
				Aliases:  []string{"o"},
				Category: "Inputs and Outputs",
				Usage:    "Directory for <sequence>.txt pose files",
				Value:    "results",
			},
			&cli.StringFlag{
				Name:     "model",
				Aliases:  []string{"m"},
				Category: "Regressor",
				Usage:    "Linear model JSON applied to the image stacks",
			},
			&cli.StringFlag{
				Name:     "predictions",
				Category: "Regressor",
				Usage:    "Directory of pre-computed <sequence>.txt prediction tables; images are not read",
			},
			stackSizeFlag(),
			&cli.IntFlag{
				Name:     "workers",
				Aliases:  []string{"j"},
				Category: "Pipeline",
				Usage:    "Override the configured number of sequences processed in parallel",
			},
			&cli.BoolFlag{
				Name:     "evaluate",
				Category: "Pipeline",
				Usage:    "Compare each trajectory with the ground-truth records",
			},
			&cli.BoolFlag{
				Name:     "plot",
				Category: "Inputs and Outputs",
				Usage:    "Also write <sequence>.png trajectory and <sequence>_velocity.png velocity plots",
			},
			dbFlag(""),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := applyOverrides(cmd, cfg); err != nil {
				return err
			}
			return runPredict(ctx, predictOptions{
				FS:             fsutil.OSFileSystem{},
				Config:         cfg,
				DataRoot:       cmd.String("data"),
				Output:         cmd.String("output"),
				ModelPath:      cmd.String("model"),
				PredictionsDir: cmd.String("predictions"),
				DBPath:         cmd.String("db"),
				Sequences:      wantedSequences(cmd, cfg.GetTestSequences()),
				Evaluate:       cmd.Bool("evaluate"),
				Plot:           cmd.Bool("plot"),
			})
		},
	}
}

type predictOptions struct {
	FS             fsutil.FileSystem
	Config         *config.OdometryConfig
	DataRoot       string
	Output         string
	ModelPath      string
	PredictionsDir string
	DBPath         string
	Sequences      []string
	Evaluate       bool
	Plot           bool
}

func (o predictOptions) regressorName() string {
	switch {
	case o.PredictionsDir != "":
		return "table:" + o.PredictionsDir
	case o.ModelPath != "":
		return "linear:" + o.ModelPath
	default:
		return ""
	}
}

// sequenceFunc returns the per-sequence reconstruction for the configured
// regressor.
func (o predictOptions) sequenceFunc(loader *dataset.Loader, params odometry.Params) (odometry.SequenceFunc, error) {
	if o.PredictionsDir != "" {
		p, err := odometry.NewPipeline(params, nil)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, seq string) (*odometry.Trajectory, error) {
			data, err := o.FS.ReadFile(filepath.Join(o.PredictionsDir, seq+".txt"))
			if err != nil {
				return nil, fmt.Errorf("failed to read predictions: %w", err)
			}
			table, err := odometry.LoadTable(bytes.NewReader(data))
			if err != nil {
				return nil, err
			}
			stamps, err := loader.LoadStamps(seq)
			if err != nil {
				return nil, err
			}
			return p.Reconstruct(seq, table.Predictions, stamps)
		}, nil
	}

	if o.ModelPath == "" {
		return nil, errors.New("one of --model or --predictions is required")
	}
	data, err := o.FS.ReadFile(o.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}
	reg, err := odometry.LoadLinearModel(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	p, err := odometry.NewPipeline(params, reg)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, seq string) (*odometry.Trajectory, error) {
		s, err := loader.LoadSequence(ctx, seq)
		if err != nil {
			return nil, err
		}
		return p.Run(ctx, s)
	}, nil
}

func runPredict(ctx context.Context, o predictOptions) error {
	loader := dataset.NewLoader(o.FS, o.DataRoot, o.Config)
	seqs, err := loader.Select(o.Sequences)
	if err != nil {
		return err
	}
	if len(seqs) == 0 {
		return fmt.Errorf("no sequences found under %s", o.DataRoot)
	}

	params := o.Config.Params()
	fn, err := o.sequenceFunc(loader, params)
	if err != nil {
		return err
	}

	var database *db.DB
	if o.DBPath != "" {
		if database, err = db.NewDB(o.DBPath); err != nil {
			return err
		}
		defer database.Close()
	}
	paramsJSON, err := json.Marshal(o.Config)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	monitoring.Logf("[predict] %d sequences, stack size %d, %d workers", len(seqs), params.StackSize, o.Config.GetWorkers())
	results := odometry.RunBatch(ctx, seqs, o.Config.GetWorkers(), fn)

	failed := 0
	for _, res := range results {
		err := res.Err
		if err == nil {
			err = o.emit(loader, database, res.Trajectory, params, paramsJSON)
		}
		if err == nil {
			continue
		}
		failed++
		monitoring.Logf("[predict] %v", err)
		if database != nil {
			run := db.FailedRun(res.Sequence, params, o.regressorName(), err)
			run.ParamsJSON = paramsJSON
			if err := database.Runs().Insert(run); err != nil {
				return err
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d sequences failed", failed, len(results))
	}
	return nil
}

// emit evaluates one successful sequence, then writes its outputs. Nothing
// is written for a sequence that fails evaluation.
func (o predictOptions) emit(loader *dataset.Loader, database *db.DB, traj *odometry.Trajectory, params odometry.Params, paramsJSON []byte) error {
	seq := traj.Sequence
	series := []report.Series{{Name: "predicted", Poses: traj.Poses}}

	var metrics *evaluation.Metrics
	if o.Evaluate {
		gt, err := loader.LoadGroundTruth(seq)
		if err != nil {
			return err
		}
		m, reference, err := evaluation.Evaluate(traj, gt.Targets(), gt.Stamps)
		if err != nil {
			return err
		}
		metrics = &m
		series = append(series, report.Series{Name: "ground truth", Poses: reference})
		monitoring.Logf("[predict] sequence %s: %s", seq, m)
	}

	posesPath := filepath.Join(o.Output, seq+".txt")
	if err := writeFile(o.FS, posesPath, func(w io.Writer) error {
		return odometry.WritePoses(w, traj.Poses)
	}); err != nil {
		return fmt.Errorf("sequence %s: %w", seq, err)
	}
	monitoring.Logf("[predict] sequence %s: %d poses, path %.2fm -> %s", seq, len(traj.Poses), traj.PathLength(), posesPath)

	if o.Plot {
		if err := o.plot(traj, series); err != nil {
			return fmt.Errorf("sequence %s: %w", seq, err)
		}
	}

	if database == nil {
		return nil
	}
	run := db.NewRun(traj, params, o.regressorName())
	run.ParamsJSON = paramsJSON
	if err := database.Runs().Insert(run); err != nil {
		return err
	}
	if err := database.Poses().InsertTrajectory(run.RunID, traj); err != nil {
		return err
	}
	if metrics != nil {
		if err := database.Evaluations().Insert(&db.Evaluation{
			RunID:     run.RunID,
			Reference: db.ReferenceGroundTruth,
			Metrics:   *metrics,
		}); err != nil {
			return err
		}
	}
	monitoring.Debugf("[predict] sequence %s stored as run %s", seq, run.RunID)
	return nil
}

// plot writes the trajectory and velocity charts of traj. A trajectory
// with nothing finite to draw is logged and skipped.
func (o predictOptions) plot(traj *odometry.Trajectory, series []report.Series) error {
	seq := traj.Sequence
	err := writeFile(o.FS, filepath.Join(o.Output, seq+".png"), func(w io.Writer) error {
		return report.WriteTrajectoryPNG(w, fmt.Sprintf("Sequence %s", seq), series...)
	})
	if errors.Is(err, report.ErrNoSeries) {
		monitoring.Logf("[predict] sequence %s: no trajectory to plot", seq)
	} else if err != nil {
		return err
	}
	err = writeFile(o.FS, filepath.Join(o.Output, seq+"_velocity.png"), func(w io.Writer) error {
		return report.WriteVelocityPNG(w, traj, o.Config.GetSpeedUnits())
	})
	if errors.Is(err, report.ErrNoSeries) {
		monitoring.Logf("[predict] sequence %s: no velocities to plot", seq)
		return nil
	}
	return err
}
