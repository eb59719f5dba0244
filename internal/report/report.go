// Package report renders trajectories as PNG plots (gonum/plot) and
// interactive HTML charts (go-echarts).
package report

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/visual-odometry/internal/odometry"
	"github.com/banshee-data/visual-odometry/internal/units"
)

// ErrNoSeries is returned when there is nothing to draw.
var ErrNoSeries = errors.New("no plottable series")

// Series is one named trajectory.
type Series struct {
	Name  string
	Poses []odometry.Pose
}

// Plot size for PNG output.
var (
	PlotWidth  = 8 * vg.Inch
	PlotHeight = 8 * vg.Inch
)

var palette = []color.Color{
	color.RGBA{R: 31, G: 119, B: 180, A: 255},
	color.RGBA{R: 214, G: 39, B: 40, A: 255},
	color.RGBA{R: 44, G: 160, B: 44, A: 255},
	color.RGBA{R: 148, G: 103, B: 189, A: 255},
	color.RGBA{R: 255, G: 127, B: 14, A: 255},
}

// finitePrefix returns the poses before the first NaN or Inf position.
func finitePrefix(poses []odometry.Pose) []odometry.Pose {
	for i, p := range poses {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return poses[:i]
		}
	}
	return poses
}

func xys(poses []odometry.Pose) plotter.XYs {
	pts := make(plotter.XYs, len(poses))
	for i, p := range poses {
		pts[i] = plotter.XY{X: p.X, Y: p.Y}
	}
	return pts
}

// TrajectoryPlot builds a top-down plot with one line per series. Series
// are cut at their first non-finite pose; empty series are skipped.
func TrajectoryPlot(title string, series ...Series) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "X (m)"
	p.Y.Label.Text = "Y (m)"
	p.Add(plotter.NewGrid())

	drawn := 0
	for i, s := range series {
		poses := finitePrefix(s.Poses)
		if len(poses) == 0 {
			continue
		}
		line, err := plotter.NewLine(xys(poses))
		if err != nil {
			return nil, fmt.Errorf("series %s: %w", s.Name, err)
		}
		line.Color = palette[i%len(palette)]
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(s.Name, line)
		drawn++
	}
	if drawn == 0 {
		return nil, ErrNoSeries
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// WriteTrajectoryPNG renders the series to w as a PNG image.
func WriteTrajectoryPNG(w io.Writer, title string, series ...Series) error {
	p, err := TrajectoryPlot(title, series...)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(PlotWidth, PlotHeight, "png")
	if err != nil {
		return fmt.Errorf("create png writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}

type velocityComponent struct {
	name string
	get  func(odometry.Velocity) float64
}

// velocityComponents converts speeds to speedUnits and yaw rate to deg/s.
func velocityComponents(speedUnits string) []velocityComponent {
	return []velocityComponent{
		{"forward", func(v odometry.Velocity) float64 { return units.ConvertSpeed(v.Forward, speedUnits) }},
		{"lateral", func(v odometry.Velocity) float64 { return units.ConvertSpeed(v.Lateral, speedUnits) }},
		{"yaw rate", func(v odometry.Velocity) float64 { return units.ConvertAngularRate(v.YawRate, units.DegPerSec) }},
	}
}

// velocityPoints samples one component against time since the first stamp,
// stopping at the first non-finite value.
func velocityPoints(traj *odometry.Trajectory, c velocityComponent) plotter.XYs {
	pts := make(plotter.XYs, 0, traj.Steps())
	for k, v := range traj.Velocities {
		y := c.get(v)
		if math.IsNaN(y) || math.IsInf(y, 0) {
			break
		}
		pts = append(pts, plotter.XY{X: traj.Stamps[k] - traj.Stamps[0], Y: y})
	}
	return pts
}

// WriteVelocityPNG plots the smoothed forward and lateral speeds of traj in
// speedUnits, and its yaw rate in deg/s, against time.
func WriteVelocityPNG(w io.Writer, traj *odometry.Trajectory, speedUnits string) error {
	if traj.Steps() == 0 {
		return ErrNoSeries
	}
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Sequence %s - smoothed velocity", traj.Sequence)
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = fmt.Sprintf("Speed (%s), yaw rate (%s)", units.SpeedLabel(speedUnits), units.DegPerSec)
	p.Add(plotter.NewGrid())

	for i, c := range velocityComponents(speedUnits) {
		pts := velocityPoints(traj, c)
		if len(pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("%s line: %w", c.name, err)
		}
		line.Color = palette[i]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(c.name, line)
	}
	p.Legend.Top = true

	wt, err := p.WriterTo(14*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("create png writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}
