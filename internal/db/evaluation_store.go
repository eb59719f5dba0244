package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/visual-odometry/internal/evaluation"
)

// Reference names for evaluations.
const (
	ReferenceGroundTruth = "ground_truth"
)

// Evaluation is a persisted comparison of a run against a reference
// trajectory.
type Evaluation struct {
	EvaluationID string `json:"evaluation_id"`
	RunID        string `json:"run_id"`
	// Reference is ReferenceGroundTruth or the path of a reference poses file.
	Reference string             `json:"reference"`
	Metrics   evaluation.Metrics `json:"metrics"`
	CreatedAt int64              `json:"created_at"`
}

// EvaluationStore persists evaluations.
type EvaluationStore struct {
	db *sql.DB
}

// NewEvaluationStore creates an EvaluationStore.
func NewEvaluationStore(db *sql.DB) *EvaluationStore {
	return &EvaluationStore{db: db}
}

const evaluationColumns = `evaluation_id, run_id, reference, poses, ate_rmse, mean_error,
	max_error, final_drift, final_yaw_error, predicted_length, reference_length, created_at`

// Insert persists eval. If EvaluationID is empty, a UUID is generated.
func (s *EvaluationStore) Insert(eval *Evaluation) error {
	if eval.EvaluationID == "" {
		eval.EvaluationID = uuid.New().String()
	}
	if eval.CreatedAt == 0 {
		eval.CreatedAt = time.Now().UnixNano()
	}
	m := eval.Metrics

	return retryOnBusy(func() error {
		_, err := s.db.Exec(`INSERT INTO odometry_evaluations (`+evaluationColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			eval.EvaluationID, eval.RunID, eval.Reference, m.Poses,
			nullable(m.ATE), nullable(m.MeanError), nullable(m.MaxError), nullable(m.FinalDrift),
			nullable(m.FinalYawError), nullable(m.PredictedLength), nullable(m.ReferenceLength),
			eval.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert evaluation: %w", err)
		}
		return nil
	})
}

// ListByRun returns the evaluations of a run, most recent first.
func (s *EvaluationStore) ListByRun(runID string) ([]*Evaluation, error) {
	rows, err := s.db.Query(`SELECT `+evaluationColumns+` FROM odometry_evaluations
		WHERE run_id = ? ORDER BY created_at DESC`, runID)
	if err != nil {
		return nil, fmt.Errorf("query evaluations: %w", err)
	}
	defer rows.Close()

	var evals []*Evaluation
	for rows.Next() {
		e, err := scanEvaluation(rows)
		if err != nil {
			return nil, err
		}
		evals = append(evals, e)
	}
	return evals, rows.Err()
}

// Get returns one evaluation by ID.
func (s *EvaluationStore) Get(evaluationID string) (*Evaluation, error) {
	row := s.db.QueryRow(`SELECT `+evaluationColumns+` FROM odometry_evaluations
		WHERE evaluation_id = ?`, evaluationID)
	e, err := scanEvaluation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("evaluation %s: %w", evaluationID, ErrNotFound)
	}
	return e, err
}

// Delete removes an evaluation by ID.
func (s *EvaluationStore) Delete(evaluationID string) error {
	return retryOnBusy(func() error {
		result, err := s.db.Exec(`DELETE FROM odometry_evaluations WHERE evaluation_id = ?`, evaluationID)
		if err != nil {
			return fmt.Errorf("delete evaluation: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("evaluation %s: %w", evaluationID, ErrNotFound)
		}
		return nil
	})
}

func scanEvaluation(row scanner) (*Evaluation, error) {
	var e Evaluation
	var ate, mean, maxErr, drift, yaw, predLen, refLen sql.NullFloat64
	err := row.Scan(
		&e.EvaluationID, &e.RunID, &e.Reference, &e.Metrics.Poses,
		&ate, &mean, &maxErr, &drift, &yaw, &predLen, &refLen, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan evaluation row: %w", err)
	}
	e.Metrics.ATE = orNaN(ate)
	e.Metrics.MeanError = orNaN(mean)
	e.Metrics.MaxError = orNaN(maxErr)
	e.Metrics.FinalDrift = orNaN(drift)
	e.Metrics.FinalYawError = orNaN(yaw)
	e.Metrics.PredictedLength = orNaN(predLen)
	e.Metrics.ReferenceLength = orNaN(refLen)
	return &e, nil
}
