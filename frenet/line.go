package frenet

// RefPoint is the pose of a reference line at a given arc length: position,
// tangent heading, curvature, and curvature rate with respect to arc length.
type RefPoint struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Heading float64 `json:"heading"`
	Kappa   float64 `json:"kappa"`
	DKappa  float64 `json:"dkappa"`
}

// ReferenceLine is the road-frame collaborator a PathData converts against.
// Implementations are borrowed, never owned: they must outlive the PathData
// referencing them and stay immutable while borrowed.
type ReferenceLine interface {
	// PointAt returns the pose of the line at arc length s, with s clamped
	// into the line's domain.
	PointAt(s float64) RefPoint

	// XYToSL projects a Cartesian point onto the line, returning the arc
	// length of the foot point and the signed lateral offset. It fails when
	// the point lies outside the line's valid domain.
	XYToSL(x, y float64) (s, l float64, err error)

	// SLToXY maps road coordinates back to the Cartesian plane. It fails
	// when s lies outside the line's valid domain.
	SLToXY(s, l float64) (x, y float64, err error)
}
