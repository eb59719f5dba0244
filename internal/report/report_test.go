package report

import (
	"bytes"
	"image/png"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/visual-odometry/internal/odometry"
	"github.com/banshee-data/visual-odometry/internal/units"
)

func arc(n int) []odometry.Pose {
	poses := make([]odometry.Pose, n)
	for i := range poses {
		a := float64(i) * 0.1
		poses[i] = odometry.NewPose(a, 10*math.Sin(a), 10*(1-math.Cos(a)))
	}
	return poses
}

func TestFinitePrefix(t *testing.T) {
	t.Parallel()

	poses := arc(5)
	assert.Len(t, finitePrefix(poses), 5)

	poses[3].X = math.NaN()
	assert.Len(t, finitePrefix(poses), 3)

	poses[0].Y = math.Inf(1)
	assert.Empty(t, finitePrefix(poses))
}

func TestWriteTrajectoryPNG(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := WriteTrajectoryPNG(&buf, "Sequence 09",
		Series{Name: "predicted", Poses: arc(20)},
		Series{Name: "ground truth", Poses: arc(25)},
	)
	require.NoError(t, err)

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Positive(t, img.Bounds().Dx())
	assert.Positive(t, img.Bounds().Dy())
}

func TestWriteTrajectoryPNG_NothingToDraw(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := WriteTrajectoryPNG(&buf, "empty", Series{Name: "none"})
	assert.ErrorIs(t, err, ErrNoSeries)
	assert.Zero(t, buf.Len())
}

func TestWriteVelocityPNG(t *testing.T) {
	t.Parallel()

	p, err := odometry.NewPipeline(odometry.Params{StackSize: 2, Scales: odometry.UnitScales}, nil)
	require.NoError(t, err)
	preds := []odometry.Velocity{{Forward: 1}, {Forward: 1, YawRate: 0.1}, {Forward: 2}, {Lateral: 1}, {}}
	traj, err := p.Reconstruct("09", preds, []float64{0, 0.1, 0.2, 0.3, 0.4})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteVelocityPNG(&buf, traj, units.KPH))
	_, err = png.Decode(&buf)
	require.NoError(t, err)

	empty := &odometry.Trajectory{Sequence: "x", Poses: []odometry.Pose{odometry.Origin}}
	assert.ErrorIs(t, WriteVelocityPNG(&buf, empty, units.MPS), ErrNoSeries)
}

func TestVelocityComponents_Units(t *testing.T) {
	t.Parallel()

	traj := &odometry.Trajectory{
		Velocities: []odometry.Velocity{{Forward: 10, Lateral: 1, YawRate: math.Pi}, {Forward: math.NaN()}},
		Stamps:     []float64{2, 3, 4},
	}
	comps := velocityComponents(units.KPH)
	require.Len(t, comps, 3)

	forward := velocityPoints(traj, comps[0])
	require.Len(t, forward, 1)
	assert.InDelta(t, 36, forward[0].Y, 1e-9)
	assert.Equal(t, 0.0, forward[0].X)

	yaw := velocityPoints(traj, comps[2])
	require.Len(t, yaw, 2)
	assert.InDelta(t, 180, yaw[0].Y, 1e-9)
	assert.Equal(t, 1.0, yaw[1].X)
}

func TestRenderTrajectoryHTML(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := RenderTrajectoryHTML(&buf, "Sequence 09", "run abc",
		Series{Name: "predicted", Poses: arc(10)},
		Series{Name: "skipped"},
	)
	require.NoError(t, err)

	html := buf.String()
	assert.True(t, strings.Contains(html, "<html"), "expected a full HTML page")
	assert.Contains(t, html, "predicted")
	assert.Contains(t, html, "Sequence 09")
	assert.NotContains(t, html, "skipped")

	assert.ErrorIs(t, RenderTrajectoryHTML(&bytes.Buffer{}, "t", "", Series{Name: "none"}), ErrNoSeries)
}
