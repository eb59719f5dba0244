// Package evaluation compares a reconstructed trajectory against a
// reference built from ground-truth velocities or read from a poses file.
package evaluation

import (
	"errors"
	"fmt"
	"io"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/visual-odometry/internal/odometry"
)

// ErrNoOverlap is returned when the two trajectories share no poses.
var ErrNoOverlap = errors.New("trajectories have no poses in common")

// Metrics summarises the agreement between a predicted and a reference
// trajectory over their common prefix. Distances are in the trajectory's
// length unit, angles in radians.
type Metrics struct {
	Poses           int     `json:"poses"`
	ATE             float64 `json:"ate_rmse"`
	MeanError       float64 `json:"mean_error"`
	MaxError        float64 `json:"max_error"`
	FinalDrift      float64 `json:"final_drift"`
	FinalYawError   float64 `json:"final_yaw_error"`
	PredictedLength float64 `json:"predicted_length"`
	ReferenceLength float64 `json:"reference_length"`
}

// DriftPercent is the final drift relative to the reference path length, or
// 0 for a stationary reference.
func (m Metrics) DriftPercent() float64 {
	if m.ReferenceLength == 0 {
		return 0
	}
	return 100 * m.FinalDrift / m.ReferenceLength
}

// String formats the metrics on one line for logs.
func (m Metrics) String() string {
	return fmt.Sprintf("poses=%d ate=%.4f mean=%.4f max=%.4f drift=%.4f (%.2f%%) yaw_err=%.4f",
		m.Poses, m.ATE, m.MeanError, m.MaxError, m.FinalDrift, m.DriftPercent(), m.FinalYawError)
}

// ReferenceTrajectory dead-reckons ground-truth targets with the same
// integrator as the predicted path. Target i is applied over
// stamps[i+1]-stamps[i]; the last target has no interval and is unused.
func ReferenceTrajectory(targets []odometry.Velocity, stamps []float64) ([]odometry.Pose, error) {
	n := min(len(targets), len(stamps)) - 1
	if n < 0 {
		n = 0
	}
	return odometry.Integrate(targets[:n], stamps)
}

// ReadReference reads a reference trajectory in the pose file format.
func ReadReference(r io.Reader) ([]odometry.Pose, error) {
	poses, err := odometry.ReadPoses(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read reference poses: %w", err)
	}
	return poses, nil
}

// Compare measures predicted against reference over their common prefix.
func Compare(predicted, reference []odometry.Pose) (Metrics, error) {
	n := min(len(predicted), len(reference))
	if n == 0 {
		return Metrics{}, ErrNoOverlap
	}

	errs := make([]float64, n)
	sq := make([]float64, n)
	for i := 0; i < n; i++ {
		errs[i] = math.Hypot(predicted[i].X-reference[i].X, predicted[i].Y-reference[i].Y)
		sq[i] = errs[i] * errs[i]
	}

	last := n - 1
	yawErr := math.Abs(predicted[last].Yaw - reference[last].Yaw)
	if yawErr > math.Pi {
		yawErr = 2*math.Pi - yawErr
	}

	return Metrics{
		Poses:           n,
		ATE:             math.Sqrt(stat.Mean(sq, nil)),
		MeanError:       stat.Mean(errs, nil),
		MaxError:        floats.Max(errs),
		FinalDrift:      errs[last],
		FinalYawError:   yawErr,
		PredictedLength: PathLength(predicted[:n]),
		ReferenceLength: PathLength(reference[:n]),
	}, nil
}

// Evaluate builds the reference from ground-truth targets and stamps and
// compares it with the trajectory's poses. The reference is returned for
// plotting.
func Evaluate(traj *odometry.Trajectory, targets []odometry.Velocity, stamps []float64) (Metrics, []odometry.Pose, error) {
	reference, err := ReferenceTrajectory(targets, stamps)
	if err != nil {
		return Metrics{}, nil, fmt.Errorf("sequence %s: %w", traj.Sequence, err)
	}
	m, err := Compare(traj.Poses, reference)
	if err != nil {
		return Metrics{}, nil, fmt.Errorf("sequence %s: %w", traj.Sequence, err)
	}
	return m, reference, nil
}

// PathLength sums the distances between consecutive poses.
func PathLength(poses []odometry.Pose) float64 {
	if len(poses) < 2 {
		return 0
	}
	steps := make([]float64, len(poses)-1)
	for i := range steps {
		steps[i] = math.Hypot(poses[i+1].X-poses[i].X, poses[i+1].Y-poses[i].Y)
	}
	return floats.Sum(steps)
}
