package frenet

import "errors"

// Error kinds surfaced by PathData operations and the analytic transform.
// Callers distinguish them with errors.Is; every returned error wraps
// exactly one of these sentinels.
var (
	// ErrNoReferenceLine reports a path set attempted before a reference
	// line was attached.
	ErrNoReferenceLine = errors.New("no reference line attached")

	// ErrProjection reports a sample that lies outside the reference
	// line's valid domain in either conversion direction.
	ErrProjection = errors.New("projection outside reference line domain")

	// ErrInconsistentPath reports diverged representation lengths. It
	// signals a defect in the calling sequence, not bad input.
	ErrInconsistentPath = errors.New("cartesian and frenet paths inconsistent")

	// ErrSingularGeometry reports a sample too close to the reference
	// line's instantaneous center of curvature for a stable transform.
	ErrSingularGeometry = errors.New("singular frenet geometry")
)
