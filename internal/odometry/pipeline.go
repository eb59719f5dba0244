package odometry

import (
	"context"
	"fmt"
	"math"

	"github.com/banshee-data/visual-odometry/internal/monitoring"
)

// Params are the per-run settings threaded explicitly through the pipeline.
type Params struct {
	StackSize int
	Scales    Scales
	// FailOnNonFinite turns a NaN/Inf pose into ErrNonFinite instead of a
	// logged warning.
	FailOnNonFinite bool
}

// Validate checks the stack size and scales.
func (p Params) Validate() error {
	if p.StackSize <= 0 {
		return fmt.Errorf("%w: stack size must be positive, got %d", ErrInvalidConfiguration, p.StackSize)
	}
	return p.Scales.Validate()
}

// Sequence is one loaded input sequence: frames in order with their stamps.
type Sequence struct {
	ID     string
	Frames []Tensor
	Stamps []float64
}

// Trajectory is the reconstructed output for one sequence. Poses[0] is the
// origin and Poses[i+1] results from Velocities[i] over
// Stamps[i+1]-Stamps[i].
type Trajectory struct {
	Sequence    string
	StackSize   int
	Predictions []Velocity
	Velocities  []Velocity
	Stamps      []float64
	Poses       []Pose
}

// Steps is the number of integrated steps.
func (t *Trajectory) Steps() int { return len(t.Velocities) }

// FirstNonFinite returns the index of the first pose containing NaN or Inf,
// or -1.
func (t *Trajectory) FirstNonFinite() int {
	for i, p := range t.Poses {
		if !p.IsFinite() {
			return i
		}
	}
	return -1
}

// PathLength sums the distance between consecutive poses.
func (t *Trajectory) PathLength() float64 {
	var total float64
	for i := 1; i < len(t.Poses); i++ {
		total += math.Hypot(t.Poses[i].X-t.Poses[i-1].X, t.Poses[i].Y-t.Poses[i-1].Y)
	}
	return total
}

// Duration is the time spanned by the integrated steps.
func (t *Trajectory) Duration() float64 {
	if len(t.Velocities) == 0 {
		return 0
	}
	return t.Stamps[len(t.Velocities)] - t.Stamps[0]
}

// Pipeline wires a regressor to the smoothing and integration passes.
type Pipeline struct {
	Params    Params
	Regressor VelocityRegressor
}

// NewPipeline validates params and returns a pipeline. reg may be nil when
// only Reconstruct is used.
func NewPipeline(params Params, reg VelocityRegressor) (*Pipeline, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Pipeline{Params: params, Regressor: reg}, nil
}

// Run stacks the sequence's frames, regresses and scales each stack, then
// reconstructs the trajectory.
func (p *Pipeline) Run(ctx context.Context, seq Sequence) (*Trajectory, error) {
	if p.Regressor == nil {
		return nil, wrapSequence(seq.ID, -1, fmt.Errorf("%w: no regressor configured", ErrInvalidConfiguration))
	}
	stacks, err := BuildStacks(seq.Frames, p.Params.StackSize)
	if err != nil {
		return nil, wrapSequence(seq.ID, -1, err)
	}
	// Every frame needs a stamp; the last stack reaches the last frame.
	start, end, err := stacks[len(stacks)-1].Span(seq.Stamps)
	if err != nil {
		return nil, wrapSequence(seq.ID, -1, err)
	}
	monitoring.Debugf("[pipeline] %s: built %d stacks of %d frames, last spans %.3fs..%.3fs",
		seq.ID, len(stacks), p.Params.StackSize, start, end)

	preds, err := PredictAll(ctx, p.Regressor, stacks, p.Params.Scales)
	if err != nil {
		return nil, wrapSequence(seq.ID, -1, err)
	}
	return p.reconstruct(seq.ID, preds, seq.Stamps)
}

// Reconstruct smooths and integrates raw (unscaled) predictions that were
// produced elsewhere, e.g. replayed from a model output file. Any real
// sequence yields at least one stack, so an empty raw is rejected.
func (p *Pipeline) Reconstruct(sequence string, raw []Velocity, stamps []float64) (*Trajectory, error) {
	if len(raw) == 0 {
		return nil, wrapSequence(sequence, -1, fmt.Errorf("%w: no predictions", ErrInvalidConfiguration))
	}
	if err := p.Params.Scales.Validate(); err != nil {
		return nil, wrapSequence(sequence, -1, err)
	}
	preds := make([]Velocity, len(raw))
	for i, v := range raw {
		preds[i] = p.Params.Scales.Apply(v)
	}
	return p.reconstruct(sequence, preds, stamps)
}

func (p *Pipeline) reconstruct(sequence string, preds []Velocity, stamps []float64) (*Trajectory, error) {
	if err := checkStamps(stamps); err != nil {
		return nil, wrapSequence(sequence, -1, err)
	}
	vels, err := Smooth(preds, stamps, p.Params.StackSize)
	if err != nil {
		return nil, wrapSequence(sequence, -1, err)
	}
	poses, err := Integrate(vels, stamps)
	if err != nil {
		return nil, wrapSequence(sequence, -1, err)
	}
	traj := &Trajectory{
		Sequence:    sequence,
		StackSize:   p.Params.StackSize,
		Predictions: preds,
		Velocities:  vels,
		Stamps:      stamps,
		Poses:       poses,
	}

	if idx := traj.FirstNonFinite(); idx >= 0 {
		step := idx - 1
		if p.Params.FailOnNonFinite {
			return nil, &SequenceError{Sequence: sequence, Step: step,
				Err: fmt.Errorf("%w: velocity %v", ErrNonFinite, vels[step])}
		}
		monitoring.Logf("[pipeline] WARNING: sequence %s: non-finite pose from step %d (velocity %v)",
			sequence, step, vels[step])
	}
	monitoring.Debugf("[pipeline] %s: integrated %d steps, path %.2fm", sequence, len(vels), traj.PathLength())
	return traj, nil
}

// checkStamps rejects timestamps that are not finite or go backwards.
func checkStamps(stamps []float64) error {
	for i, s := range stamps {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return stepError(i, fmt.Errorf("%w: timestamp %v is not finite", ErrInvalidConfiguration, s))
		}
		if i > 0 && s < stamps[i-1] {
			return stepError(i, fmt.Errorf("%w: timestamp %v precedes previous %v",
				ErrInvalidConfiguration, stamps[i], stamps[i-1]))
		}
	}
	return nil
}
