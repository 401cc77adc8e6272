package frenet

import (
	"fmt"
	"math"
)

// MinFrenetDeterminant bounds how close kappa*l may come to 1 before the
// road-frame mapping loses rank. At kappa*l == 1 the sample sits on the
// reference line's instantaneous center of curvature and heading and
// curvature are undefined there.
const MinFrenetDeterminant = 1e-6

// NormalizeAngle wraps an angle in radians to [-pi, pi).
func NormalizeAngle(angle float64) float64 {
	a := math.Mod(angle+math.Pi, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}

// CalculateTheta returns the absolute heading of a path sample expressed in
// road coordinates (l, dl) about a reference pose with heading refHeading
// and curvature refKappa.
func CalculateTheta(refHeading, refKappa, l, dl float64) (float64, error) {
	oneMinusKappaL := 1 - refKappa*l
	if math.Abs(oneMinusKappaL) < MinFrenetDeterminant {
		return 0, fmt.Errorf("%w: kappa*l = %.9f", ErrSingularGeometry, refKappa*l)
	}
	return NormalizeAngle(refHeading + math.Atan2(dl, oneMinusKappaL)), nil
}

// CalculateKappa returns the curvature of a path sample from the reference
// curvature refKappa and its rate refDKappa plus the sample's lateral offset
// and lateral derivatives.
func CalculateKappa(refKappa, refDKappa, l, dl, ddl float64) (float64, error) {
	oneMinusKappaL := 1 - refKappa*l
	if math.Abs(oneMinusKappaL) < MinFrenetDeterminant {
		return 0, fmt.Errorf("%w: kappa*l = %.9f", ErrSingularGeometry, refKappa*l)
	}
	denominator := math.Pow(dl*dl+oneMinusKappaL*oneMinusKappaL, 1.5)
	numerator := refKappa + ddl - 2*l*refKappa*refKappa -
		l*ddl*refKappa + l*l*refKappa*refKappa*refKappa +
		l*dl*refDKappa + 2*dl*dl*refKappa
	return numerator / denominator, nil
}

// frenetToCartesian converts fp into an absolute discretization against
// line. Output order and length match the input exactly; any per-sample
// failure aborts the whole conversion with no partial output. DKappa is not
// synthesized and stays zero. S is re-accumulated from consecutive
// Euclidean distances, starting at zero, and is unrelated to the input
// frame's S spacing.
func frenetToCartesian(line ReferenceLine, fp FramePath) (Path, error) {
	pts := make([]PathPoint, 0, fp.Len())
	for i, fpt := range fp.points {
		x, y, err := line.SLToXY(fpt.S, fpt.L)
		if err != nil {
			return Path{}, fmt.Errorf("map sample %d (s=%.3f, l=%.3f): %w: %v", i, fpt.S, fpt.L, ErrProjection, err)
		}
		ref := line.PointAt(fpt.S)
		theta, err := CalculateTheta(ref.Heading, ref.Kappa, fpt.L, fpt.DL)
		if err != nil {
			return Path{}, fmt.Errorf("heading at sample %d: %w", i, err)
		}
		kappa, err := CalculateKappa(ref.Kappa, ref.DKappa, fpt.L, fpt.DL, fpt.DDL)
		if err != nil {
			return Path{}, fmt.Errorf("curvature at sample %d: %w", i, err)
		}
		pt := PathPoint{X: x, Y: y, Theta: theta, Kappa: kappa}
		if len(pts) > 0 {
			prev := pts[len(pts)-1]
			pt.S = prev.S + prev.DistanceTo(pt)
		}
		pts = append(pts, pt)
	}
	return Path{points: pts}, nil
}

// cartesianToFrenet projects p onto line sample by sample. DL and DDL are
// left zero: projection alone cannot recover lateral derivatives. Output
// order and length match the input exactly; any per-sample failure aborts
// the whole conversion with no partial output.
func cartesianToFrenet(line ReferenceLine, p Path) (FramePath, error) {
	pts := make([]FramePoint, 0, p.Len())
	for i, pt := range p.points {
		s, l, err := line.XYToSL(pt.X, pt.Y)
		if err != nil {
			return FramePath{}, fmt.Errorf("project sample %d (%.3f, %.3f): %w: %v", i, pt.X, pt.Y, ErrProjection, err)
		}
		pts = append(pts, FramePoint{S: s, L: l})
	}
	return FramePath{points: pts}, nil
}
