package frenet

import (
	"math"
	"testing"
)

func rampPath() Path {
	return NewPath([]PathPoint{
		{X: 0, Y: 0, Theta: 0, Kappa: 0, S: 0},
		{X: 1, Y: 0, Theta: 0.2, Kappa: 0.1, S: 1},
		{X: 2, Y: 0, Theta: 0.4, Kappa: 0.3, S: 2},
	})
}

func TestEvaluateInterpolates(t *testing.T) {
	p := rampPath()
	got := p.Evaluate(0.5)
	if math.Abs(got.X-0.5) > 1e-12 {
		t.Errorf("X = %v, want 0.5", got.X)
	}
	if math.Abs(got.Theta-0.1) > 1e-12 {
		t.Errorf("Theta = %v, want 0.1", got.Theta)
	}
	if math.Abs(got.Kappa-0.05) > 1e-12 {
		t.Errorf("Kappa = %v, want 0.05", got.Kappa)
	}
	if math.Abs(got.S-0.5) > 1e-12 {
		t.Errorf("S = %v, want 0.5", got.S)
	}
}

func TestEvaluateClamps(t *testing.T) {
	p := rampPath()
	if got := p.Evaluate(-5); got != p.Points()[0] {
		t.Errorf("Evaluate(-5) = %+v, want first sample", got)
	}
	if got := p.Evaluate(99); got != p.Points()[2] {
		t.Errorf("Evaluate(99) = %+v, want last sample", got)
	}
}

func TestEvaluateEmpty(t *testing.T) {
	var p Path
	if got := p.Evaluate(1); got != (PathPoint{}) {
		t.Errorf("Evaluate on empty path = %+v, want zero point", got)
	}
}

func TestEvaluateExactSample(t *testing.T) {
	p := rampPath()
	got := p.Evaluate(1)
	if math.Abs(got.X-1) > 1e-12 || math.Abs(got.Theta-0.2) > 1e-12 {
		t.Errorf("Evaluate(1) = %+v, want the middle sample", got)
	}
}

func TestEvaluateHeadingWrap(t *testing.T) {
	p := NewPath([]PathPoint{
		{X: 0, Theta: 3.0, S: 0},
		{X: 1, Theta: -3.0, S: 1},
	})
	got := p.Evaluate(0.5)
	// The shortest arc between 3.0 and -3.0 crosses pi, so the midpoint
	// heading sits at the wrap boundary, not at zero.
	if math.Abs(NormalizeAngle(got.Theta-(-math.Pi))) > 1e-9 {
		t.Errorf("Theta = %v, want +-pi", got.Theta)
	}
}

func TestNewPathCopies(t *testing.T) {
	src := []PathPoint{{X: 1, S: 0}, {X: 2, S: 1}}
	p := NewPath(src)
	src[0].X = 99
	if p.Points()[0].X != 1 {
		t.Errorf("Path shares backing array with caller input")
	}
}

func TestFramePathCopies(t *testing.T) {
	src := []FramePoint{{S: 0, L: 1}}
	fp := NewFramePath(src)
	src[0].L = 99
	if fp.Points()[0].L != 1 {
		t.Errorf("FramePath shares backing array with caller input")
	}
	if fp.Len() != 1 {
		t.Errorf("Len = %d, want 1", fp.Len())
	}
}
