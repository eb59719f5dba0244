package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/visual-odometry/internal/odometry"
)

// Run status values.
const (
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Run is one reconstruction of one sequence.
type Run struct {
	RunID         string          `json:"run_id"`
	SequenceID    string          `json:"sequence_id"`
	StackSize     int             `json:"stack_size"`
	Scales        odometry.Scales `json:"scales"`
	Regressor     string          `json:"regressor"`
	Steps         int             `json:"steps"`
	PathLength    float64         `json:"path_length"`
	Duration      float64         `json:"duration_s"`
	NonFiniteStep int             `json:"non_finite_step"`
	Status        string          `json:"status"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	ParamsJSON    json.RawMessage `json:"params_json,omitempty"`
	CreatedAt     int64           `json:"created_at"`
}

// NewRun summarises a trajectory as a completed run.
func NewRun(traj *odometry.Trajectory, params odometry.Params, regressor string) *Run {
	nonFinite := traj.FirstNonFinite()
	if nonFinite > 0 {
		nonFinite--
	}
	return &Run{
		SequenceID:    traj.Sequence,
		StackSize:     traj.StackSize,
		Scales:        params.Scales,
		Regressor:     regressor,
		Steps:         traj.Steps(),
		PathLength:    traj.PathLength(),
		Duration:      traj.Duration(),
		NonFiniteStep: nonFinite,
		Status:        RunStatusCompleted,
	}
}

// FailedRun records a sequence that could not be reconstructed.
func FailedRun(sequence string, params odometry.Params, regressor string, err error) *Run {
	return &Run{
		SequenceID:    sequence,
		StackSize:     params.StackSize,
		Scales:        params.Scales,
		Regressor:     regressor,
		NonFiniteStep: -1,
		Status:        RunStatusFailed,
		ErrorMessage:  err.Error(),
	}
}

// RunStore persists runs.
type RunStore struct {
	db *sql.DB
}

// NewRunStore creates a RunStore.
func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

const runColumns = `run_id, sequence_id, stack_size, scale_forward, scale_lateral, scale_yaw_rate,
	regressor, steps, path_length, duration_s, non_finite_step, status, error_message,
	params_json, created_at`

// Insert persists run, generating RunID and CreatedAt when unset.
func (s *RunStore) Insert(run *Run) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = time.Now().UnixNano()
	}
	if run.Status == "" {
		run.Status = RunStatusCompleted
	}

	var errMsg, params interface{}
	if run.ErrorMessage != "" {
		errMsg = run.ErrorMessage
	}
	if len(run.ParamsJSON) > 0 {
		params = string(run.ParamsJSON)
	}

	return retryOnBusy(func() error {
		_, err := s.db.Exec(`INSERT INTO odometry_runs (`+runColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, run.SequenceID, run.StackSize, run.Scales[0], run.Scales[1], run.Scales[2],
			run.Regressor, run.Steps, nullable(run.PathLength), run.Duration, run.NonFiniteStep,
			run.Status, errMsg, params, run.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		return nil
	})
}

// Get returns one run by ID.
func (s *RunStore) Get(runID string) (*Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM odometry_runs WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	return run, err
}

// List returns the most recent runs first. limit <= 0 returns every run.
func (s *RunStore) List(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}
	return s.query(`SELECT `+runColumns+` FROM odometry_runs
		ORDER BY created_at DESC LIMIT ?`, limit)
}

// ListBySequence returns the runs of one sequence, most recent first.
func (s *RunStore) ListBySequence(sequenceID string) ([]*Run, error) {
	return s.query(`SELECT `+runColumns+` FROM odometry_runs
		WHERE sequence_id = ? ORDER BY created_at DESC`, sequenceID)
}

// Delete removes a run together with its poses and evaluations.
func (s *RunStore) Delete(runID string) error {
	return retryOnBusy(func() error {
		result, err := s.db.Exec(`DELETE FROM odometry_runs WHERE run_id = ?`, runID)
		if err != nil {
			return fmt.Errorf("delete run: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("run %s: %w", runID, ErrNotFound)
		}
		return nil
	})
}

func (s *RunStore) query(q string, args ...any) ([]*Run, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var r Run
	var pathLength sql.NullFloat64
	var errMsg, params sql.NullString
	err := row.Scan(
		&r.RunID, &r.SequenceID, &r.StackSize, &r.Scales[0], &r.Scales[1], &r.Scales[2],
		&r.Regressor, &r.Steps, &pathLength, &r.Duration, &r.NonFiniteStep, &r.Status, &errMsg,
		&params, &r.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	r.PathLength = orNaN(pathLength)
	r.ErrorMessage = errMsg.String
	if params.Valid {
		r.ParamsJSON = json.RawMessage(params.String)
	}
	return &r, nil
}
