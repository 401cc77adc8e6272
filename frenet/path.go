package frenet

import "sort"

// Path is an ordered Cartesian discretization of a planned path. Insertion
// order is traversal order. The zero value is an empty path.
type Path struct {
	points []PathPoint
}

// NewPath copies pts into a Path; the caller keeps ownership of pts.
func NewPath(pts []PathPoint) Path {
	cp := make([]PathPoint, len(pts))
	copy(cp, pts)
	return Path{points: cp}
}

// Len returns the number of samples.
func (p Path) Len() int { return len(p.points) }

// Points returns a copy of the samples.
func (p Path) Points() []PathPoint {
	cp := make([]PathPoint, len(p.points))
	copy(cp, p.points)
	return cp
}

// Evaluate returns the path point at arc length s, linearly interpolated
// between the two bracketing samples. Heading is blended along the shortest
// arc. Queries outside the sampled range clamp to the first or last sample
// and never extrapolate. An empty path evaluates to the zero PathPoint.
func (p Path) Evaluate(s float64) PathPoint {
	n := len(p.points)
	if n == 0 {
		return PathPoint{}
	}
	if s <= p.points[0].S {
		return p.points[0]
	}
	if s >= p.points[n-1].S {
		return p.points[n-1]
	}
	// First index whose S is >= s; the checks above guarantee 0 < idx < n.
	idx := sort.Search(n, func(i int) bool { return p.points[i].S >= s })
	return interpolate(p.points[idx-1], p.points[idx], s)
}

func interpolate(p0, p1 PathPoint, s float64) PathPoint {
	span := p1.S - p0.S
	if span <= 0 {
		return p0
	}
	w := (s - p0.S) / span
	return PathPoint{
		X:      p0.X + w*(p1.X-p0.X),
		Y:      p0.Y + w*(p1.Y-p0.Y),
		Theta:  NormalizeAngle(p0.Theta + w*NormalizeAngle(p1.Theta-p0.Theta)),
		Kappa:  p0.Kappa + w*(p1.Kappa-p0.Kappa),
		DKappa: p0.DKappa + w*(p1.DKappa-p0.DKappa),
		S:      s,
	}
}

// FramePath is an ordered road-relative discretization, same ordering
// convention as Path. The zero value is an empty path.
type FramePath struct {
	points []FramePoint
}

// NewFramePath copies pts into a FramePath; the caller keeps ownership.
func NewFramePath(pts []FramePoint) FramePath {
	cp := make([]FramePoint, len(pts))
	copy(cp, pts)
	return FramePath{points: cp}
}

// Len returns the number of samples.
func (fp FramePath) Len() int { return len(fp.points) }

// Points returns a copy of the samples.
func (fp FramePath) Points() []FramePoint {
	cp := make([]FramePoint, len(fp.points))
	copy(cp, fp.points)
	return cp
}
