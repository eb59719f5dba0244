package odometry

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// PoseRows and PoseCols give the shape of the pose embedding matrix.
const (
	PoseRows = 3
	PoseCols = 4
)

// Pose is a rigid 2D transform in the global frame. Cos and Sin are the
// embedded rotation components and X, Y the translation; Yaw is the heading
// in [0, 2*pi) that produced them.
type Pose struct {
	Yaw float64 `json:"yaw"`
	Cos float64 `json:"cos"`
	Sin float64 `json:"sin"`
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
}

// Origin is the anchor pose of every trajectory.
var Origin = Pose{Yaw: 0, Cos: 1, Sin: 0, X: 0, Y: 0}

// NewPose builds a pose from a heading and position.
func NewPose(yaw, x, y float64) Pose {
	return Pose{Yaw: yaw, Cos: math.Cos(yaw), Sin: math.Sin(yaw), X: x, Y: y}
}

// Matrix returns the 3x4 embedding:
//
//	[ cos  0  sin  x ]
//	[  0   0   0   0 ]
//	[-sin  0  cos  y ]
func (p Pose) Matrix() *mat.Dense {
	return mat.NewDense(PoseRows, PoseCols, p.flat())
}

func (p Pose) flat() []float64 {
	return []float64{
		p.Cos, 0, p.Sin, p.X,
		0, 0, 0, 0,
		-p.Sin, 0, p.Cos, p.Y,
	}
}

// PoseFromMatrix reads the rotation and translation components back out of
// an embedding matrix. Yaw is recovered with atan2.
func PoseFromMatrix(m mat.Matrix) (Pose, error) {
	r, c := m.Dims()
	if r != PoseRows || c != PoseCols {
		return Pose{}, fmt.Errorf("%w: pose matrix is %dx%d, expected %dx%d",
			ErrShapeMismatch, r, c, PoseRows, PoseCols)
	}
	cos, sin := m.At(0, 0), m.At(0, 2)
	return Pose{
		Yaw: WrapAngle(math.Atan2(sin, cos)),
		Cos: cos,
		Sin: sin,
		X:   m.At(0, 3),
		Y:   m.At(2, 3),
	}, nil
}

// IsFinite reports whether every component is a finite number.
func (p Pose) IsFinite() bool {
	for _, v := range [...]float64{p.Yaw, p.Cos, p.Sin, p.X, p.Y} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// WrapAngle maps a onto [0, 2*pi). NaN stays NaN.
func WrapAngle(a float64) float64 {
	r := math.Mod(a, 2*math.Pi)
	if r < 0 {
		r += 2 * math.Pi
	}
	if r >= 2*math.Pi {
		r = 0
	}
	return r
}
