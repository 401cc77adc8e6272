package frenet

import (
	"fmt"
	"math"
)

// straightLine is a reference line along the x axis with domain [0, length]:
// s maps to x and l maps to y.
type straightLine struct {
	length float64
}

func (sl straightLine) PointAt(s float64) RefPoint {
	if s < 0 {
		s = 0
	}
	if s > sl.length {
		s = sl.length
	}
	return RefPoint{X: s}
}

func (sl straightLine) XYToSL(x, y float64) (float64, float64, error) {
	if x < 0 || x > sl.length {
		return 0, 0, fmt.Errorf("x %.3f outside [0, %.3f]", x, sl.length)
	}
	return x, y, nil
}

func (sl straightLine) SLToXY(s, l float64) (float64, float64, error) {
	if s < 0 || s > sl.length {
		return 0, 0, fmt.Errorf("s %.3f outside [0, %.3f]", s, sl.length)
	}
	return s, l, nil
}

// circleLine is a counterclockwise circular reference line of radius radius
// centered at (0, radius). Arc length starts at the origin heading +x, so
// positive l points toward the center.
type circleLine struct {
	radius float64
	length float64
}

func (cl circleLine) PointAt(s float64) RefPoint {
	if s < 0 {
		s = 0
	}
	if s > cl.length {
		s = cl.length
	}
	phi := s / cl.radius
	return RefPoint{
		X:       cl.radius * math.Sin(phi),
		Y:       cl.radius - cl.radius*math.Cos(phi),
		Heading: NormalizeAngle(phi),
		Kappa:   1 / cl.radius,
	}
}

func (cl circleLine) XYToSL(x, y float64) (float64, float64, error) {
	dx := x
	dy := y - cl.radius
	r := math.Hypot(dx, dy)
	if r == 0 {
		return 0, 0, fmt.Errorf("point coincides with circle center")
	}
	phi := math.Atan2(dx, -dy)
	if phi < 0 {
		return 0, 0, fmt.Errorf("angle %.3f before line start", phi)
	}
	s := phi * cl.radius
	if s > cl.length {
		return 0, 0, fmt.Errorf("s %.3f outside [0, %.3f]", s, cl.length)
	}
	return s, cl.radius - r, nil
}

func (cl circleLine) SLToXY(s, l float64) (float64, float64, error) {
	if s < 0 || s > cl.length {
		return 0, 0, fmt.Errorf("s %.3f outside [0, %.3f]", s, cl.length)
	}
	phi := s / cl.radius
	r := cl.radius - l
	return r * math.Sin(phi), cl.radius - r*math.Cos(phi), nil
}
