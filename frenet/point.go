package frenet

import "math"

// PathPoint is one sample of a Cartesian path discretization. S is the
// cumulative Euclidean distance along this path from its first sample; it is
// not the arc-length coordinate of any reference line.
type PathPoint struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Theta  float64 `json:"theta"`
	Kappa  float64 `json:"kappa"`
	DKappa float64 `json:"dkappa"`
	S      float64 `json:"s"`
}

// DistanceTo returns the planar Euclidean distance between p and o.
func (p PathPoint) DistanceTo(o PathPoint) float64 {
	return math.Hypot(o.X-p.X, o.Y-p.Y)
}

// FramePoint is one sample of a road-relative path discretization: arc
// length S along the reference line, signed lateral offset L (positive to
// the left of the line's heading), and the first and second derivatives of
// L with respect to S.
type FramePoint struct {
	S   float64 `json:"s"`
	L   float64 `json:"l"`
	DL  float64 `json:"dl"`
	DDL float64 `json:"ddl"`
}
