package frenet

import (
	"fmt"
	"math"
	"strings"
)

// RefSMatchEpsilon is the tolerance under which a nearest-sample lookup by
// reference arc length treats a sample as an exact hit and stops scanning.
const RefSMatchEpsilon = 1e-3

// PathData keeps the Cartesian and road-relative representations of one
// planned path in lockstep against a borrowed reference line. After every
// successful set the two representations have equal length and equal
// indices denote the same physical point. The zero value is an empty
// PathData with no reference line.
type PathData struct {
	path      Path
	framePath FramePath
	line      ReferenceLine
}

// SetReferenceLine clears both representations and stores line, which may
// be nil. It performs no conversion.
func (pd *PathData) SetReferenceLine(line ReferenceLine) {
	pd.Clear()
	pd.line = line
}

// ReferenceLine returns the currently attached line, which may be nil.
func (pd *PathData) ReferenceLine() ReferenceLine { return pd.line }

// SetPath stores p as the Cartesian representation and derives the
// road-relative one by projection. Without an attached reference line it
// fails with ErrNoReferenceLine and leaves all state untouched. If the
// derivation fails the error is returned with the Cartesian side already
// overwritten and the previous road-relative side still in place; callers
// that need atomicity must snapshot before calling.
func (pd *PathData) SetPath(p Path) error {
	if pd.line == nil {
		return fmt.Errorf("set cartesian path: %w", ErrNoReferenceLine)
	}
	pd.path = p
	fp, err := cartesianToFrenet(pd.line, p)
	if err != nil {
		return err
	}
	pd.framePath = fp
	return nil
}

// SetFramePath stores fp as the road-relative representation and derives
// the Cartesian one. Without an attached reference line it fails with
// ErrNoReferenceLine and leaves all state untouched. On derivation failure
// the road-relative side is already overwritten and the previous Cartesian
// side still in place, mirroring SetPath.
func (pd *PathData) SetFramePath(fp FramePath) error {
	if pd.line == nil {
		return fmt.Errorf("set frenet path: %w", ErrNoReferenceLine)
	}
	pd.framePath = fp
	p, err := frenetToCartesian(pd.line, fp)
	if err != nil {
		return err
	}
	pd.path = p
	return nil
}

// Path returns the current Cartesian representation.
func (pd *PathData) Path() Path { return pd.path }

// FramePath returns the current road-relative representation.
func (pd *PathData) FramePath() FramePath { return pd.framePath }

// Empty reports whether both representations hold no samples.
func (pd *PathData) Empty() bool {
	return pd.path.Len() == 0 && pd.framePath.Len() == 0
}

// Clear resets both representations to empty and drops the reference line.
func (pd *PathData) Clear() {
	pd.path = Path{}
	pd.framePath = FramePath{}
	pd.line = nil
}

// PointAt evaluates the Cartesian representation at arc length s, clamping
// at the path boundaries. It needs no reference line once a Cartesian path
// exists.
func (pd *PathData) PointAt(s float64) PathPoint {
	return pd.path.Evaluate(s)
}

// PointAtRefS returns the Cartesian sample whose road-relative S is nearest
// to refS. A sample within RefSMatchEpsilon is returned immediately without
// finishing the scan. The two representations must be populated and of
// equal length; a divergence is reported as ErrInconsistentPath.
func (pd *PathData) PointAtRefS(refS float64) (PathPoint, error) {
	if pd.path.Len() != pd.framePath.Len() {
		return PathPoint{}, fmt.Errorf("cartesian has %d samples, frenet has %d: %w",
			pd.path.Len(), pd.framePath.Len(), ErrInconsistentPath)
	}
	if pd.framePath.Len() == 0 {
		return PathPoint{}, fmt.Errorf("no samples: %w", ErrInconsistentPath)
	}
	minIdx := 0
	minDiff := math.Inf(1)
	for i, fpt := range pd.framePath.points {
		diff := math.Abs(fpt.S - refS)
		if diff < RefSMatchEpsilon {
			return pd.path.points[i], nil
		}
		if diff < minDiff {
			minIdx = i
			minDiff = diff
		}
	}
	return pd.path.points[minIdx], nil
}

// DebugString renders up to sampleLimit Cartesian samples for logs. A
// sampleLimit at or below zero renders no samples.
func (pd *PathData) DebugString(sampleLimit int) string {
	n := pd.path.Len()
	if sampleLimit < n {
		n = sampleLimit
	}
	if n < 0 {
		n = 0
	}
	var b strings.Builder
	b.WriteString("path_data.path = [\n")
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(",\n")
		}
		pt := pd.path.points[i]
		fmt.Fprintf(&b, "  {x: %.6f, y: %.6f, theta: %.6f, kappa: %.6f, s: %.6f}",
			pt.X, pt.Y, pt.Theta, pt.Kappa, pt.S)
	}
	b.WriteString("]\n")
	return b.String()
}
