package odometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAveragedPrediction_HarmonicWeights(t *testing.T) {
	preds := []Velocity{{Forward: 4}, {Forward: 8}, {Forward: 100}}

	// stack 2: p0/(2*1) + p0/(2*2) + p1/(2*2) = 0.75*p0 + 0.25*p1
	got := AveragedPrediction(preds, 2, 0)
	assert.InDelta(t, 0.75*4+0.25*8, got.Forward, 1e-12)

	// stack 3: weights 11/18, 5/18, 2/18
	preds3 := []Velocity{{Lateral: 18}, {Lateral: 36}, {Lateral: 54}}
	got = AveragedPrediction(preds3, 3, 0)
	assert.InDelta(t, 11.0+10.0+6.0, got.Lateral, 1e-12)
}

func TestAveragedPrediction_WeightsSumToOne(t *testing.T) {
	for size := 1; size <= 8; size++ {
		preds := make([]Velocity, size)
		for i := range preds {
			preds[i] = Velocity{Forward: 1, Lateral: -2, YawRate: 0.5}
		}
		got := AveragedPrediction(preds, size, 0)
		assert.InDelta(t, 1.0, got.Forward, 1e-12, "stack %d", size)
		assert.InDelta(t, -2.0, got.Lateral, 1e-12, "stack %d", size)
		assert.InDelta(t, 0.5, got.YawRate, 1e-12, "stack %d", size)
	}
}

func TestSmooth_StackSizeOneIsRawOverDuration(t *testing.T) {
	preds := []Velocity{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}, {10, 11, 12}}
	stamps := []float64{0, 0.5, 1.5, 1.75}

	got, err := Smooth(preds, stamps, 1)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, v := range got {
		d := stamps[i+1] - stamps[i]
		assert.Equal(t, Velocity{preds[i].Forward / d, preds[i].Lateral / d, preds[i].YawRate / d}, v, "step %d", i)
	}
}

func TestSmooth_DividesByWindowDuration(t *testing.T) {
	preds := []Velocity{{Forward: 2}, {Forward: 2}, {Forward: 2}, {Forward: 2}, {Forward: 2}}
	stamps := []float64{0, 1, 3, 4, 8, 9, 10}

	got, err := Smooth(preds, stamps, 3)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.InDelta(t, 2.0/3.0, got[0].Forward, 1e-12) // stamps[2]-stamps[0]
	assert.InDelta(t, 2.0/3.0, got[1].Forward, 1e-12) // stamps[3]-stamps[1]
}

func TestSmooth_DropsTrailingSteps(t *testing.T) {
	preds := make([]Velocity, 6)
	stamps := []float64{0, 1, 2, 3, 4, 5, 6, 7}

	for size, want := range map[int]int{1: 5, 2: 4, 3: 3, 6: 0, 7: 0} {
		got, err := Smooth(preds, stamps, size)
		require.NoError(t, err)
		assert.Len(t, got, want, "stack %d", size)
		assert.Equal(t, want, SmoothedSteps(len(preds), size))
	}
}

func TestSmooth_Errors(t *testing.T) {
	_, err := Smooth([]Velocity{{}, {}}, []float64{0, 1}, 0)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = Smooth(make([]Velocity, 5), []float64{0, 1, 2}, 2)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestWindowDuration(t *testing.T) {
	stamps := []float64{0, 0.1, 0.3, 0.6}
	assert.InDelta(t, 0.1, WindowDuration(stamps, 1, 0), 1e-12)
	assert.InDelta(t, 0.3, WindowDuration(stamps, 3, 0), 1e-12)
	assert.InDelta(t, 0.5, WindowDuration(stamps, 3, 1), 1e-12)
}
