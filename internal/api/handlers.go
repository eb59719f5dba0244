package api

import (
	"bytes"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/banshee-data/visual-odometry/internal/db"
	"github.com/banshee-data/visual-odometry/internal/evaluation"
	"github.com/banshee-data/visual-odometry/internal/odometry"
	"github.com/banshee-data/visual-odometry/internal/report"
	"github.com/banshee-data/visual-odometry/internal/units"
)

// finite maps NaN and Inf to nil so responses stay valid JSON.
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// RunAPI is the JSON form of a stored run.
type RunAPI struct {
	RunID         string          `json:"run_id"`
	SequenceID    string          `json:"sequence_id"`
	StackSize     int             `json:"stack_size"`
	Scales        odometry.Scales `json:"scales"`
	Regressor     string          `json:"regressor"`
	Steps         int             `json:"steps"`
	PathLength    *float64        `json:"path_length"`
	Duration      float64         `json:"duration_s"`
	NonFiniteStep int             `json:"non_finite_step"`
	Status        string          `json:"status"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	CreatedAt     int64           `json:"created_at"`
}

func runToAPI(r *db.Run) RunAPI {
	return RunAPI{
		RunID:         r.RunID,
		SequenceID:    r.SequenceID,
		StackSize:     r.StackSize,
		Scales:        r.Scales,
		Regressor:     r.Regressor,
		Steps:         r.Steps,
		PathLength:    finite(r.PathLength),
		Duration:      r.Duration,
		NonFiniteStep: r.NonFiniteStep,
		Status:        r.Status,
		ErrorMessage:  r.ErrorMessage,
		CreatedAt:     r.CreatedAt,
	}
}

// PoseAPI is the JSON form of a stored pose. Forward and lateral speeds are
// in the server's units; yaw and yaw rate stay in radians.
type PoseAPI struct {
	Step    int      `json:"step"`
	Stamp   float64  `json:"stamp_s"`
	Yaw     *float64 `json:"yaw"`
	X       *float64 `json:"x"`
	Y       *float64 `json:"y"`
	Forward *float64 `json:"forward,omitempty"`
	Lateral *float64 `json:"lateral,omitempty"`
	YawRate *float64 `json:"yaw_rate,omitempty"`
}

func (s *Server) poseToAPI(p db.PoseRow) PoseAPI {
	out := PoseAPI{
		Step:  p.Step,
		Stamp: p.Stamp,
		Yaw:   finite(p.Pose.Yaw),
		X:     finite(p.Pose.X),
		Y:     finite(p.Pose.Y),
	}
	if v := p.Velocity; v != nil {
		out.Forward = finite(units.ConvertSpeed(v.Forward, s.units))
		out.Lateral = finite(units.ConvertSpeed(v.Lateral, s.units))
		out.YawRate = finite(v.YawRate)
	}
	return out
}

// EvaluationAPI is the JSON form of a stored evaluation.
type EvaluationAPI struct {
	EvaluationID    string   `json:"evaluation_id"`
	RunID           string   `json:"run_id"`
	Reference       string   `json:"reference"`
	Poses           int      `json:"poses"`
	ATE             *float64 `json:"ate_rmse"`
	MeanError       *float64 `json:"mean_error"`
	MaxError        *float64 `json:"max_error"`
	FinalDrift      *float64 `json:"final_drift"`
	DriftPercent    *float64 `json:"drift_percent"`
	FinalYawError   *float64 `json:"final_yaw_error"`
	PredictedLength *float64 `json:"predicted_length"`
	ReferenceLength *float64 `json:"reference_length"`
	CreatedAt       int64    `json:"created_at"`
}

func evaluationToAPI(e *db.Evaluation) EvaluationAPI {
	m := e.Metrics
	return EvaluationAPI{
		EvaluationID:    e.EvaluationID,
		RunID:           e.RunID,
		Reference:       e.Reference,
		Poses:           m.Poses,
		ATE:             finite(m.ATE),
		MeanError:       finite(m.MeanError),
		MaxError:        finite(m.MaxError),
		FinalDrift:      finite(m.FinalDrift),
		DriftPercent:    finite(m.DriftPercent()),
		FinalYawError:   finite(m.FinalYawError),
		PredictedLength: finite(m.PredictedLength),
		ReferenceLength: finite(m.ReferenceLength),
		CreatedAt:       e.CreatedAt,
	}
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	var (
		runs []*db.Run
		err  error
	)
	if seq := r.URL.Query().Get("sequence"); seq != "" {
		runs, err = s.db.Runs().ListBySequence(seq)
	} else {
		limit := 100
		if l := r.URL.Query().Get("limit"); l != "" {
			parsed, perr := strconv.Atoi(l)
			if perr != nil || parsed < 1 {
				s.writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
				return
			}
			limit = parsed
		}
		runs, err = s.db.Runs().List(limit)
	}
	if err != nil {
		s.writeStoreError(w, "runs", err)
		return
	}

	out := make([]RunAPI, len(runs))
	for i, run := range runs {
		out[i] = runToAPI(run)
	}
	s.writeJSON(w, out)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.db.Runs().Get(r.PathValue("id"))
	if err != nil {
		s.writeStoreError(w, "run", err)
		return
	}
	s.writeJSON(w, runToAPI(run))
}

// deleteRun removes a run along with its poses and evaluations.
func (s *Server) deleteRun(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Runs().Delete(r.PathValue("id")); err != nil {
		s.writeStoreError(w, "run", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getEvaluation(w http.ResponseWriter, r *http.Request) {
	e, err := s.db.Evaluations().Get(r.PathValue("id"))
	if err != nil {
		s.writeStoreError(w, "evaluation", err)
		return
	}
	s.writeJSON(w, evaluationToAPI(e))
}

func (s *Server) deleteEvaluation(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Evaluations().Delete(r.PathValue("id")); err != nil {
		s.writeStoreError(w, "evaluation", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listPoses(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.db.Runs().Get(id); err != nil {
		s.writeStoreError(w, "run", err)
		return
	}
	rows, err := s.db.Poses().ListByRun(id)
	if err != nil {
		s.writeStoreError(w, "poses", err)
		return
	}
	out := make([]PoseAPI, len(rows))
	for i, p := range rows {
		out[i] = s.poseToAPI(p)
	}
	s.writeJSON(w, out)
}

func (s *Server) listEvaluations(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.db.Runs().Get(id); err != nil {
		s.writeStoreError(w, "run", err)
		return
	}
	evals, err := s.db.Evaluations().ListByRun(id)
	if err != nil {
		s.writeStoreError(w, "evaluations", err)
		return
	}
	out := make([]EvaluationAPI, len(evals))
	for i, e := range evals {
		out[i] = evaluationToAPI(e)
	}
	s.writeJSON(w, out)
}

// runSeries loads the run named by the run_id query parameter as a plot
// series. It writes the error response itself and returns ok=false on
// failure.
func (s *Server) runSeries(w http.ResponseWriter, r *http.Request) (*db.Run, report.Series, bool) {
	id := r.URL.Query().Get("run_id")
	if id == "" {
		s.writeJSONError(w, http.StatusBadRequest, "missing 'run_id' parameter")
		return nil, report.Series{}, false
	}
	run, err := s.db.Runs().Get(id)
	if err != nil {
		s.writeStoreError(w, "run", err)
		return nil, report.Series{}, false
	}
	poses, err := s.db.Poses().Trajectory(id)
	if err != nil {
		s.writeStoreError(w, "poses", err)
		return nil, report.Series{}, false
	}
	return run, report.Series{Name: "predicted", Poses: poses}, true
}

func chartSubtitle(run *db.Run, evals []*db.Evaluation) string {
	sub := fmt.Sprintf("run=%s stack=%d steps=%d", run.RunID, run.StackSize, run.Steps)
	if len(evals) > 0 {
		sub += " " + evaluationSummary(evals[0].Metrics)
	}
	return sub
}

func evaluationSummary(m evaluation.Metrics) string {
	return fmt.Sprintf("ate=%.3f drift=%.2f%%", m.ATE, m.DriftPercent())
}

func (s *Server) trajectoryChart(w http.ResponseWriter, r *http.Request) {
	run, series, ok := s.runSeries(w, r)
	if !ok {
		return
	}
	evals, err := s.db.Evaluations().ListByRun(run.RunID)
	if err != nil {
		s.writeStoreError(w, "evaluations", err)
		return
	}

	var buf bytes.Buffer
	title := fmt.Sprintf("Sequence %s", run.SequenceID)
	if err := report.RenderTrajectoryHTML(&buf, title, chartSubtitle(run, evals), series); err != nil {
		s.writeJSONError(w, http.StatusUnprocessableEntity, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) trajectoryPNG(w http.ResponseWriter, r *http.Request) {
	run, series, ok := s.runSeries(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.WriteTrajectoryPNG(&buf, fmt.Sprintf("Sequence %s", run.SequenceID), series); err != nil {
		s.writeJSONError(w, http.StatusUnprocessableEntity, fmt.Sprintf("failed to render plot: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}
