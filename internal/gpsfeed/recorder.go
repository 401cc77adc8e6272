package gpsfeed

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/banshee-data/pathframe/internal/monitoring"
	"github.com/banshee-data/pathframe/internal/timeutil"
	"github.com/banshee-data/pathframe/internal/units"
	"github.com/banshee-data/pathframe/refline"
)

// WGS84 semi-major axis. Good enough for the small-area equirectangular
// projection used here; drive cycles span hundreds of meters, not degrees.
const earthRadiusM = 6378137.0

// enuProjector flattens geographic fixes onto a local tangent plane anchored
// at the first valid fix.
type enuProjector struct {
	lat0, lon0 float64
	cosLat0    float64
}

func newENUProjector(lat0, lon0 float64) *enuProjector {
	return &enuProjector{
		lat0:    lat0,
		lon0:    lon0,
		cosLat0: math.Cos(units.DegToRad(lat0)),
	}
}

// project returns east/north meters relative to the anchor fix.
func (p *enuProjector) project(lat, lon float64) (x, y float64) {
	x = earthRadiusM * units.DegToRad(lon-p.lon0) * p.cosLat0
	y = earthRadiusM * units.DegToRad(lat-p.lat0)
	return x, y
}

// RecorderStats is a snapshot of recorder progress for status endpoints.
type RecorderStats struct {
	Fixes     int       `json:"fixes"`
	Waypoints int       `json:"waypoints"`
	Dropped   int       `json:"dropped"`
	LastFixAt time.Time `json:"last_fix_at"`
}

// Recorder turns a stream of NMEA sentences into reference line waypoints.
// The first valid fix anchors a local tangent plane; later fixes closer than
// the minimum spacing to the previous waypoint are dropped so that slow or
// stationary stretches do not pile up near-duplicate samples.
type Recorder struct {
	mu         sync.Mutex
	clock      timeutil.Clock
	minSpacing float64
	proj       *enuProjector
	waypoints  []refline.Waypoint
	fixes      int
	dropped    int
	lastFixAt  time.Time
	logf       func(format string, v ...any)
}

// NewRecorder creates a Recorder that keeps waypoints at least minSpacingM
// meters apart. A nil logf falls back to the package diagnostic logger.
func NewRecorder(minSpacingM float64, clock timeutil.Clock, logf func(format string, v ...any)) *Recorder {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if logf == nil {
		// Indirect so a later monitoring.SetLogger still takes effect.
		logf = func(format string, v ...any) { monitoring.Logf(format, v...) }
	}
	return &Recorder{
		clock:      clock,
		minSpacing: minSpacingM,
		logf:       logf,
	}
}

// HandleSentence parses one sentence and folds any fix it carries into the
// waypoint list. Unsupported sentence types are normal receiver chatter and
// are skipped silently; corrupt sentences are logged and skipped.
func (r *Recorder) HandleSentence(line string) {
	fix, err := ParseSentence(line)
	if err != nil {
		if !errors.Is(err, ErrUnsupportedSentence) {
			r.logf("gps: discarding sentence: %v", err)
		}
		return
	}
	if !fix.Valid {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.fixes++
	r.lastFixAt = r.clock.Now()

	if r.proj == nil {
		r.proj = newENUProjector(fix.Lat, fix.Lon)
	}
	x, y := r.proj.project(fix.Lat, fix.Lon)

	if n := len(r.waypoints); n > 0 {
		prev := r.waypoints[n-1]
		if math.Hypot(x-prev.X, y-prev.Y) < r.minSpacing {
			r.dropped++
			return
		}
	}
	r.waypoints = append(r.waypoints, refline.Waypoint{X: x, Y: y})
}

// Run consumes sentences until the channel closes or the context is done.
func (r *Recorder) Run(ctx context.Context, lines <-chan string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			r.HandleSentence(line)
		}
	}
}

// Waypoints returns a copy of the recorded waypoints.
func (r *Recorder) Waypoints() []refline.Waypoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]refline.Waypoint, len(r.waypoints))
	copy(out, r.waypoints)
	return out
}

// Reset discards all recorded state, including the projection anchor.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.proj = nil
	r.waypoints = nil
	r.fixes = 0
	r.dropped = 0
	r.lastFixAt = time.Time{}
}

// Stats reports recorder progress.
func (r *Recorder) Stats() RecorderStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RecorderStats{
		Fixes:     r.fixes,
		Waypoints: len(r.waypoints),
		Dropped:   r.dropped,
		LastFixAt: r.lastFixAt,
	}
}
