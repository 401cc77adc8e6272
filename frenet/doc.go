// Package frenet keeps a planned vehicle path in two synchronized
// representations: an absolute Cartesian discretization and a road-relative
// discretization expressed against a reference line.
//
// Responsibilities:
//   - hold the two representations and keep them index-aligned (PathData)
//   - convert between them in either direction relative to a ReferenceLine
//   - evaluate the Cartesian path at an arbitrary arc length
//   - look up the sample nearest a queried reference-line arc length
//
// PathData is not internally synchronized. One planning cycle owns one
// PathData at a time, and the attached ReferenceLine must not change while
// it is borrowed. Conversions report failures as wrapped sentinel errors
// (ErrNoReferenceLine, ErrProjection, ErrSingularGeometry,
// ErrInconsistentPath); nothing is retried internally.
package frenet
