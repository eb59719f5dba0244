package evaluation

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/visual-odometry/internal/odometry"
)

func TestCompare_Identical(t *testing.T) {
	t.Parallel()

	poses := []odometry.Pose{
		odometry.Origin,
		odometry.NewPose(0, 1, 0),
		odometry.NewPose(0.5, 2, 1),
	}
	m, err := Compare(poses, poses)
	require.NoError(t, err)
	assert.Equal(t, 3, m.Poses)
	assert.Zero(t, m.ATE)
	assert.Zero(t, m.MaxError)
	assert.Zero(t, m.FinalDrift)
	assert.Zero(t, m.FinalYawError)
	assert.InDelta(t, 1+math.Sqrt2, m.PredictedLength, 1e-12)
	assert.Equal(t, m.PredictedLength, m.ReferenceLength)
}

func TestCompare_Offsets(t *testing.T) {
	t.Parallel()

	reference := []odometry.Pose{
		odometry.Origin,
		odometry.NewPose(0, 1, 0),
		odometry.NewPose(0, 2, 0),
		odometry.NewPose(0, 3, 0),
	}
	predicted := []odometry.Pose{
		odometry.Origin,
		odometry.NewPose(0, 1, 3),
		odometry.NewPose(6.2, 2, 4),
	}

	m, err := Compare(predicted, reference)
	require.NoError(t, err)
	assert.Equal(t, 3, m.Poses, "only the common prefix is compared")
	assert.InDelta(t, math.Sqrt((0+9+16)/3.0), m.ATE, 1e-12)
	assert.InDelta(t, 7.0/3, m.MeanError, 1e-12)
	assert.Equal(t, 4.0, m.MaxError)
	assert.Equal(t, 4.0, m.FinalDrift)
	assert.InDelta(t, 2*math.Pi-6.2, m.FinalYawError, 1e-12, "yaw error wraps across zero")
	assert.InDelta(t, 200.0, m.DriftPercent(), 1e-9)
	assert.Contains(t, m.String(), "poses=3")
}

func TestCompare_NoOverlap(t *testing.T) {
	t.Parallel()

	_, err := Compare(nil, []odometry.Pose{odometry.Origin})
	assert.ErrorIs(t, err, ErrNoOverlap)
	assert.Zero(t, Metrics{}.DriftPercent())
}

func TestReferenceTrajectory(t *testing.T) {
	t.Parallel()

	targets := []odometry.Velocity{
		{Forward: 1}, {Forward: 1}, {Forward: 1}, {Forward: 1},
	}
	stamps := []float64{0, 1, 2, 3}

	ref, err := ReferenceTrajectory(targets, stamps)
	require.NoError(t, err)
	require.Len(t, ref, 4)
	assert.Equal(t, odometry.Origin, ref[0])
	assert.InDelta(t, 3.0, PathLength(ref), 1e-12)

	ref, err = ReferenceTrajectory(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []odometry.Pose{odometry.Origin}, ref)
}

func TestEvaluate_MatchesGroundTruth(t *testing.T) {
	t.Parallel()

	stamps := []float64{0, 1, 2, 3, 4}
	targets := make([]odometry.Velocity, len(stamps))
	for i := range targets {
		targets[i] = odometry.Velocity{Forward: 1}
	}

	p, err := odometry.NewPipeline(odometry.Params{StackSize: 1, Scales: odometry.UnitScales}, nil)
	require.NoError(t, err)
	traj, err := p.Reconstruct("00", targets[:4], stamps)
	require.NoError(t, err)

	m, reference, err := Evaluate(traj, targets, stamps)
	require.NoError(t, err)
	assert.Len(t, reference, len(stamps))
	assert.Equal(t, len(traj.Poses), m.Poses)
	assert.InDelta(t, 0, m.ATE, 1e-12)

	_, _, err = Evaluate(&odometry.Trajectory{Sequence: "07"}, targets, stamps)
	assert.ErrorIs(t, err, ErrNoOverlap)
	assert.ErrorContains(t, err, "sequence 07")
}

func TestReadReference(t *testing.T) {
	t.Parallel()

	poses := []odometry.Pose{odometry.Origin, odometry.NewPose(1, 2, 3)}
	var buf bytes.Buffer
	require.NoError(t, odometry.WritePoses(&buf, poses))

	got, err := ReadReference(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, poses[1].X, got[1].X)

	_, err = ReadReference(bytes.NewBufferString("1 2 3\n"))
	assert.ErrorIs(t, err, odometry.ErrMalformedRecord)
}
