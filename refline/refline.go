// Package refline builds smooth road reference lines from ordered centerline
// waypoints and implements the road-frame contract consumed by package
// frenet: pose lookup by arc length, nearest-point projection, and the
// inverse mapping from road coordinates back to the plane.
//
// A Line fits Akima splines through the waypoints using chord-length
// parameterization, then resamples them into a dense pose table. Arc length
// is re-measured along the resampled curve, heading comes from the spline
// derivatives, and curvature and curvature rate come from finite
// differences over the unwrapped heading.
package refline

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/interp"

	"github.com/banshee-data/pathframe/frenet"
)

// Defaults for Options fields left zero.
const (
	// DefaultStepM is the dense resample spacing along the fitted splines.
	DefaultStepM = 0.1
	// DefaultRejectM is the lateral distance beyond which a projection is
	// treated as off the road rather than snapped.
	DefaultRejectM = 10.0
)

// Errors reported while building a Line.
var (
	ErrTooFewWaypoints   = errors.New("need at least 2 waypoints")
	ErrDuplicateWaypoint = errors.New("consecutive waypoints coincide")
)

// Options tune how a Line is built. The zero value selects the defaults.
type Options struct {
	// StepM is the dense resample spacing in meters.
	StepM float64
	// RejectM is the projection rejection radius in meters.
	RejectM float64
}

func (o Options) stepM() float64 {
	if o.StepM > 0 {
		return o.StepM
	}
	return DefaultStepM
}

func (o Options) rejectM() float64 {
	if o.RejectM > 0 {
		return o.RejectM
	}
	return DefaultRejectM
}

// Line is an immutable reference line. Build one with NewLine; a built Line
// is safe to share among readers.
type Line struct {
	waypoints []Waypoint
	table     []frenet.RefPoint
	arcs      []float64
	rejectM   float64
}

var _ frenet.ReferenceLine = (*Line)(nil)

// NewLine fits a reference line through waypoints in order.
func NewLine(waypoints []Waypoint, opts Options) (*Line, error) {
	if len(waypoints) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewWaypoints, len(waypoints))
	}

	// Chord-length parameterization keeps the spline parameter close to
	// arc length and guarantees strictly increasing knots.
	chords := make([]float64, len(waypoints))
	xs := make([]float64, len(waypoints))
	ys := make([]float64, len(waypoints))
	xs[0], ys[0] = waypoints[0].X, waypoints[0].Y
	for i := 1; i < len(waypoints); i++ {
		d := math.Hypot(waypoints[i].X-waypoints[i-1].X, waypoints[i].Y-waypoints[i-1].Y)
		if d == 0 {
			return nil, fmt.Errorf("%w: index %d", ErrDuplicateWaypoint, i)
		}
		chords[i] = chords[i-1] + d
		xs[i], ys[i] = waypoints[i].X, waypoints[i].Y
	}

	var fx, fy interp.AkimaSpline
	if err := fx.Fit(chords, xs); err != nil {
		return nil, fmt.Errorf("fit x spline: %w", err)
	}
	if err := fy.Fit(chords, ys); err != nil {
		return nil, fmt.Errorf("fit y spline: %w", err)
	}

	ln := &Line{
		waypoints: append([]Waypoint(nil), waypoints...),
		rejectM:   opts.rejectM(),
	}
	ln.buildTable(&fx, &fy, chords[len(chords)-1], opts.stepM())
	return ln, nil
}

// buildTable resamples the splines at a fixed parameter step and derives
// pose rows: re-measured arc length, spline-tangent heading, and finite
// difference curvature over the unwrapped heading.
func (ln *Line) buildTable(fx, fy *interp.AkimaSpline, totalChord, step float64) {
	n := int(math.Ceil(totalChord/step)) + 1
	if n < 2 {
		n = 2
	}

	ln.table = make([]frenet.RefPoint, n)
	ln.arcs = make([]float64, n)
	unwrapped := make([]float64, n)

	for i := 0; i < n; i++ {
		t := float64(i) * totalChord / float64(n-1)
		x, y := fx.Predict(t), fy.Predict(t)
		heading := math.Atan2(fy.PredictDerivative(t), fx.PredictDerivative(t))
		ln.table[i] = frenet.RefPoint{X: x, Y: y, Heading: heading}

		if i == 0 {
			unwrapped[0] = heading
			continue
		}
		prev := ln.table[i-1]
		ln.arcs[i] = ln.arcs[i-1] + math.Hypot(x-prev.X, y-prev.Y)
		unwrapped[i] = unwrapped[i-1] + frenet.NormalizeAngle(heading-ln.table[i-1].Heading)
	}

	for i := range ln.table {
		lo, hi := i-1, i+1
		if lo < 0 {
			lo = 0
		}
		if hi > n-1 {
			hi = n - 1
		}
		if span := ln.arcs[hi] - ln.arcs[lo]; span > 0 {
			ln.table[i].Kappa = (unwrapped[hi] - unwrapped[lo]) / span
		}
	}
	for i := range ln.table {
		lo, hi := i-1, i+1
		if lo < 0 {
			lo = 0
		}
		if hi > n-1 {
			hi = n - 1
		}
		if span := ln.arcs[hi] - ln.arcs[lo]; span > 0 {
			ln.table[i].DKappa = (ln.table[hi].Kappa - ln.table[lo].Kappa) / span
		}
	}
}

// Length returns the measured arc length of the line in meters.
func (ln *Line) Length() float64 { return ln.arcs[len(ln.arcs)-1] }

// Samples returns the number of rows in the dense pose table.
func (ln *Line) Samples() int { return len(ln.table) }

// Waypoints returns a copy of the waypoints the line was built from.
func (ln *Line) Waypoints() []Waypoint {
	return append([]Waypoint(nil), ln.waypoints...)
}

// PointAt returns the pose of the line at arc length s, clamped into
// [0, Length].
func (ln *Line) PointAt(s float64) frenet.RefPoint {
	if s <= 0 {
		return ln.table[0]
	}
	if s >= ln.Length() {
		return ln.table[len(ln.table)-1]
	}
	idx := sort.SearchFloat64s(ln.arcs, s)
	if idx == 0 {
		return ln.table[0]
	}
	a, b := ln.table[idx-1], ln.table[idx]
	span := ln.arcs[idx] - ln.arcs[idx-1]
	if span <= 0 {
		return a
	}
	w := (s - ln.arcs[idx-1]) / span
	return frenet.RefPoint{
		X:       a.X + w*(b.X-a.X),
		Y:       a.Y + w*(b.Y-a.Y),
		Heading: frenet.NormalizeAngle(a.Heading + w*frenet.NormalizeAngle(b.Heading-a.Heading)),
		Kappa:   a.Kappa + w*(b.Kappa-a.Kappa),
		DKappa:  a.DKappa + w*(b.DKappa-a.DKappa),
	}
}

// XYToSL projects a point onto the line. It fails when the foot point falls
// before the start or beyond the end of the line, or when the point lies
// farther than the rejection radius from it.
func (ln *Line) XYToSL(x, y float64) (float64, float64, error) {
	nearest := 0
	nearestD2 := math.Inf(1)
	for i, rp := range ln.table {
		dx, dy := x-rp.X, y-rp.Y
		if d2 := dx*dx + dy*dy; d2 < nearestD2 {
			nearest, nearestD2 = i, d2
		}
	}

	// Refine against the segments on either side of the nearest row.
	type candidate struct {
		seg       int
		t, rawT   float64
		dist, off float64
	}
	best := candidate{dist: math.Inf(1)}
	lastSeg := len(ln.table) - 2
	for _, seg := range []int{nearest - 1, nearest} {
		if seg < 0 || seg > lastSeg {
			continue
		}
		a, b := ln.table[seg], ln.table[seg+1]
		vx, vy := b.X-a.X, b.Y-a.Y
		segLen2 := vx*vx + vy*vy
		if segLen2 == 0 {
			continue
		}
		rawT := ((x-a.X)*vx + (y-a.Y)*vy) / segLen2
		t := rawT
		if t < 0 {
			t = 0
		}
		if t > 1 {
			t = 1
		}
		footX, footY := a.X+t*vx, a.Y+t*vy
		dist := math.Hypot(x-footX, y-footY)
		if dist < best.dist {
			off := (vx*(y-a.Y) - vy*(x-a.X)) / math.Sqrt(segLen2)
			best = candidate{seg: seg, t: t, rawT: rawT, dist: dist, off: off}
		}
	}
	if math.IsInf(best.dist, 1) {
		return 0, 0, fmt.Errorf("no projection segment for (%.3f, %.3f)", x, y)
	}
	if best.seg == 0 && best.rawT < 0 {
		return 0, 0, fmt.Errorf("point (%.3f, %.3f) projects before the line start", x, y)
	}
	if best.seg == lastSeg && best.rawT > 1 {
		return 0, 0, fmt.Errorf("point (%.3f, %.3f) projects beyond the line end", x, y)
	}
	if best.dist > ln.rejectM {
		return 0, 0, fmt.Errorf("point (%.3f, %.3f) is %.2fm from the line, over the %.2fm limit",
			x, y, best.dist, ln.rejectM)
	}

	s := ln.arcs[best.seg] + best.t*(ln.arcs[best.seg+1]-ln.arcs[best.seg])
	return s, best.off, nil
}

// SLToXY maps road coordinates back to the plane: the pose at s offset by l
// along its left normal. It fails when s is outside [0, Length].
func (ln *Line) SLToXY(s, l float64) (float64, float64, error) {
	const slack = 1e-9
	if s < -slack || s > ln.Length()+slack {
		return 0, 0, fmt.Errorf("s %.3f outside [0, %.3f]", s, ln.Length())
	}
	rp := ln.PointAt(s)
	return rp.X - l*math.Sin(rp.Heading), rp.Y + l*math.Cos(rp.Heading), nil
}
