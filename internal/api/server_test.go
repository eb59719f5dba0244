package api

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/visual-odometry/internal/db"
	"github.com/banshee-data/visual-odometry/internal/evaluation"
	"github.com/banshee-data/visual-odometry/internal/odometry"
	"github.com/banshee-data/visual-odometry/internal/units"
)

func setupTestServer(t *testing.T, unit string) (*Server, *db.DB) {
	t.Helper()
	database, err := db.NewDB(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return NewServer(database, unit), database
}

func insertRun(t *testing.T, database *db.DB, sequence string, preds []odometry.Velocity) *db.Run {
	t.Helper()
	params := odometry.Params{StackSize: 1, Scales: odometry.UnitScales}
	p, err := odometry.NewPipeline(params, nil)
	require.NoError(t, err)
	stamps := make([]float64, len(preds)+1)
	for i := range stamps {
		stamps[i] = float64(i)
	}
	traj, err := p.Reconstruct(sequence, preds, stamps)
	require.NoError(t, err)

	run := db.NewRun(traj, params, "table")
	require.NoError(t, database.Runs().Insert(run))
	require.NoError(t, database.Poses().InsertTrajectory(run.RunID, traj))
	return run
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	return do(t, s, http.MethodGet, target)
}

func TestListRunsAndGetRun(t *testing.T) {
	s, database := setupTestServer(t, units.MPS)
	run := insertRun(t, database, "09", []odometry.Velocity{{Forward: 1}, {Forward: 1}, {Forward: 1}})
	insertRun(t, database, "10", []odometry.Velocity{{Forward: 1}, {}})

	rec := get(t, s, "/api/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	var runs []RunAPI
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	assert.Len(t, runs, 2)

	rec = get(t, s, "/api/runs?sequence=09")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, run.RunID, runs[0].RunID)

	rec = get(t, s, "/api/runs/"+run.RunID)
	require.Equal(t, http.StatusOK, rec.Code)
	var got RunAPI
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "09", got.SequenceID)
	assert.Equal(t, 2, got.Steps)
	require.NotNil(t, got.PathLength)
	assert.InDelta(t, 2.0, *got.PathLength, 1e-12)

	rec = get(t, s, "/api/runs/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(t, s, "/api/runs?limit=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func do(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestDeleteRunAndEvaluation(t *testing.T) {
	s, database := setupTestServer(t, units.MPS)
	run := insertRun(t, database, "09", []odometry.Velocity{{Forward: 1}, {Forward: 1}})
	eval := &db.Evaluation{RunID: run.RunID, Reference: db.ReferenceGroundTruth, Metrics: evaluation.Metrics{Poses: 2}}
	require.NoError(t, database.Evaluations().Insert(eval))
	other := &db.Evaluation{RunID: run.RunID, Reference: "reference.txt", Metrics: evaluation.Metrics{Poses: 2}}
	require.NoError(t, database.Evaluations().Insert(other))

	rec := get(t, s, "/api/evaluations/"+eval.EvaluationID)
	require.Equal(t, http.StatusOK, rec.Code)
	var got EvaluationAPI
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, run.RunID, got.RunID)

	rec = do(t, s, http.MethodDelete, "/api/evaluations/"+eval.EvaluationID)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, s, http.MethodDelete, "/api/evaluations/"+eval.EvaluationID)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodDelete, "/api/runs/"+run.RunID)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, http.StatusNotFound, get(t, s, "/api/runs/"+run.RunID).Code)
	_, err := database.Evaluations().Get(other.EvaluationID)
	assert.ErrorIs(t, err, db.ErrNotFound)

	rec = do(t, s, http.MethodDelete, "/api/runs/"+run.RunID)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListPoses_UnitsAndNonFinite(t *testing.T) {
	s, database := setupTestServer(t, units.KPH)
	run := insertRun(t, database, "09", []odometry.Velocity{{Forward: 10}, {Forward: math.NaN()}, {}})

	rec := get(t, s, "/api/runs/"+run.RunID+"/poses")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var poses []PoseAPI
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &poses))
	require.Len(t, poses, 3)
	assert.Nil(t, poses[0].Forward)
	require.NotNil(t, poses[1].Forward)
	assert.InDelta(t, 36.0, *poses[1].Forward, 1e-9)
	assert.Nil(t, poses[2].X, "NaN positions are reported as null")

	rec = get(t, s, "/api/runs/missing/poses")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListEvaluations(t *testing.T) {
	s, database := setupTestServer(t, units.MPS)
	run := insertRun(t, database, "09", []odometry.Velocity{{Forward: 1}, {Forward: 1}})
	require.NoError(t, database.Evaluations().Insert(&db.Evaluation{
		RunID:     run.RunID,
		Reference: db.ReferenceGroundTruth,
		Metrics:   evaluation.Metrics{Poses: 2, ATE: 0.25, FinalDrift: 0.5, ReferenceLength: 2},
	}))

	rec := get(t, s, "/api/runs/"+run.RunID+"/evaluations")
	require.Equal(t, http.StatusOK, rec.Code)
	var evals []EvaluationAPI
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &evals))
	require.Len(t, evals, 1)
	assert.Equal(t, 0.25, *evals[0].ATE)
	assert.Equal(t, 25.0, *evals[0].DriftPercent)
}

func TestTrajectoryCharts(t *testing.T) {
	s, database := setupTestServer(t, units.MPS)
	run := insertRun(t, database, "09", []odometry.Velocity{{Forward: 1}, {Forward: 1, YawRate: 0.5}, {Forward: 1}})

	rec := get(t, s, "/charts/trajectory?run_id="+run.RunID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html"))
	assert.Contains(t, rec.Body.String(), "Sequence 09")

	rec = get(t, s, "/charts/trajectory.png?run_id="+run.RunID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	rec = get(t, s, "/charts/trajectory")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(t, s, "/charts/trajectory?run_id=missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestShowConfig(t *testing.T) {
	s, _ := setupTestServer(t, units.MPH)
	rec := get(t, s, "/api/config")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"units":"mph"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/config", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStatusCodeColor(t *testing.T) {
	assert.Contains(t, statusCodeColor(200), "200")
	assert.Contains(t, statusCodeColor(404), colorBoldRed)
	assert.Equal(t, "100", statusCodeColor(100))
}
