package odometry

import (
	"fmt"
	"math"
)

// Velocity is a body-frame velocity estimate: forward and lateral speed in
// m/s and yaw rate in rad/s.
type Velocity struct {
	Forward float64 `json:"forward"`
	Lateral float64 `json:"lateral"`
	YawRate float64 `json:"yaw_rate"`
}

// Scales holds the per-axis constants that turn normalised regressor output
// into physical units.
type Scales [3]float64

// UnitScales leaves predictions unchanged.
var UnitScales = Scales{1, 1, 1}

// Validate rejects zero or non-finite scale factors.
func (s Scales) Validate() error {
	for i, v := range s {
		if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: velocity scale %d must be finite and non-zero, got %v",
				ErrInvalidConfiguration, i, v)
		}
	}
	return nil
}

// Apply multiplies each axis by its scale.
func (s Scales) Apply(v Velocity) Velocity {
	return Velocity{
		Forward: v.Forward * s[0],
		Lateral: v.Lateral * s[1],
		YawRate: v.YawRate * s[2],
	}
}

// Vec returns the velocity as a 3-element slice in (forward, lateral, yaw
// rate) order.
func (v Velocity) Vec() []float64 {
	return []float64{v.Forward, v.Lateral, v.YawRate}
}

// VelocityFromVec is the inverse of Vec.
func VelocityFromVec(x []float64) Velocity {
	return Velocity{Forward: x[0], Lateral: x[1], YawRate: x[2]}
}

// IsFinite reports whether no component is NaN or infinite.
func (v Velocity) IsFinite() bool {
	for _, x := range v.Vec() {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

func (v Velocity) String() string {
	return fmt.Sprintf("vf=%.4f vl=%.4f wyaw=%.4f", v.Forward, v.Lateral, v.YawRate)
}
