package refline

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// Waypoint is a captured centerline vertex in local plane meters.
type Waypoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ReadWaypoints decodes waypoints from CSV. An optional x,y header row is
// skipped.
func ReadWaypoints(r io.Reader) ([]Waypoint, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read waypoints: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("read waypoints: empty input")
	}
	start := 0
	if records[0][0] == "x" {
		start = 1
	}
	var pts []Waypoint
	for i, rec := range records[start:] {
		row := i + start + 1
		if len(rec) < 2 {
			return nil, fmt.Errorf("waypoint row %d: want 2 columns, got %d", row, len(rec))
		}
		x, err := strconv.ParseFloat(rec[0], 64)
		if err != nil {
			return nil, fmt.Errorf("waypoint row %d x: %w", row, err)
		}
		y, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, fmt.Errorf("waypoint row %d y: %w", row, err)
		}
		pts = append(pts, Waypoint{X: x, Y: y})
	}
	return pts, nil
}

// WriteWaypoints encodes waypoints as CSV with an x,y header.
func WriteWaypoints(w io.Writer, pts []Waypoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"x", "y"}); err != nil {
		return err
	}
	for _, p := range pts {
		if err := cw.Write([]string{
			strconv.FormatFloat(p.X, 'f', -1, 64),
			strconv.FormatFloat(p.Y, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
