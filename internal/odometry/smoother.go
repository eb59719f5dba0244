package odometry

import "fmt"

// AveragedPrediction fuses the stackSize predictions starting at idx with
// harmonic-decay weights: prediction idx+j contributes
// sum_{k=j}^{stackSize-1} 1/(stackSize*(k+1)). The weights sum to one, and
// earlier windows weigh more than later ones. The caller must ensure
// idx+stackSize <= len(preds).
func AveragedPrediction(preds []Velocity, stackSize, idx int) Velocity {
	n := float64(stackSize)
	var acc Velocity
	for j := 0; j < stackSize; j++ {
		p := preds[idx+j]
		for k := j; k < stackSize; k++ {
			d := n * float64(k+1)
			acc.Forward += p.Forward / d
			acc.Lateral += p.Lateral / d
			acc.YawRate += p.YawRate / d
		}
	}
	return acc
}

// WindowDuration is the elapsed time covered by the window starting at idx:
// stamps[idx+stackSize-1]-stamps[idx]. A single-frame window has no span of
// its own, so it uses the following frame interval instead.
func WindowDuration(stamps []float64, stackSize, idx int) float64 {
	last := idx + stackSize - 1
	if stackSize == 1 {
		last = idx + 1
	}
	return stamps[last] - stamps[idx]
}

// SmoothedSteps returns how many integrable steps a sequence with nPreds
// raw predictions yields.
func SmoothedSteps(nPreds, stackSize int) int {
	if stackSize <= 0 || nPreds <= stackSize {
		return 0
	}
	return nPreds - stackSize
}

// Smooth converts per-window predictions into per-step velocities. Step i is
// AveragedPrediction(preds, stackSize, i) divided by WindowDuration. Only
// len(preds)-stackSize steps are produced: the trailing windows lack full
// coverage and are dropped without error.
func Smooth(preds []Velocity, stamps []float64, stackSize int) ([]Velocity, error) {
	if stackSize <= 0 {
		return nil, fmt.Errorf("%w: stack size must be positive, got %d", ErrInvalidConfiguration, stackSize)
	}
	steps := SmoothedSteps(len(preds), stackSize)
	if steps == 0 {
		return []Velocity{}, nil
	}
	need := steps - 1 + stackSize
	if stackSize == 1 {
		need = steps + 1
	}
	if len(stamps) < need {
		return nil, fmt.Errorf("%w: smoothing %d steps needs %d stamps, got %d",
			ErrInvalidConfiguration, steps, need, len(stamps))
	}

	out := make([]Velocity, steps)
	for i := range out {
		pred := AveragedPrediction(preds, stackSize, i)
		d := WindowDuration(stamps, stackSize, i)
		out[i] = Velocity{
			Forward: pred.Forward / d,
			Lateral: pred.Lateral / d,
			YawRate: pred.YawRate / d,
		}
	}
	return out, nil
}
