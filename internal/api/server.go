// Package api exposes the path service over HTTP: reference line and path
// management, point lookup, recorded cycle persistence, GPS capture state,
// and chart rendering. All endpoints speak JSON except the chart pages.
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/banshee-data/pathframe/frenet"
	"github.com/banshee-data/pathframe/internal/config"
	"github.com/banshee-data/pathframe/internal/gpsfeed"
	"github.com/banshee-data/pathframe/internal/httputil"
	"github.com/banshee-data/pathframe/internal/monitor"
	"github.com/banshee-data/pathframe/internal/store"
	"github.com/banshee-data/pathframe/internal/timeutil"
	"github.com/banshee-data/pathframe/internal/version"
	"github.com/banshee-data/pathframe/refline"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Server owns the live PathData pair and its reference line. All handler
// access to the pair goes through mu; PathData itself is not safe for
// concurrent use.
type Server struct {
	mu   sync.Mutex
	pd   *frenet.PathData
	line *refline.Line

	store  *store.Store
	rec    *gpsfeed.Recorder
	tuning *config.PathTuning
	clock  timeutil.Clock
	charts *monitor.ChartServer

	// plotsDir is the root directory for server-side plot exports. Empty
	// disables the export endpoint.
	plotsDir string
}

// SetPlotsDir sets the root directory for server-side plot exports. Call
// before the server starts handling requests.
func (s *Server) SetPlotsDir(dir string) {
	s.plotsDir = dir
}

// NewServer wires the service around st. rec may be nil when GPS capture is
// disabled; tuning and clock fall back to defaults when nil.
func NewServer(st *store.Store, rec *gpsfeed.Recorder, tuning *config.PathTuning, clock timeutil.Clock) *Server {
	if tuning == nil {
		tuning = config.EmptyPathTuning()
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	s := &Server{
		pd:     &frenet.PathData{},
		store:  st,
		rec:    rec,
		tuning: tuning,
		clock:  clock,
	}
	s.charts = monitor.NewChartServer(s)
	return s
}

// PathSnapshot returns the current reference line and both path
// representations for chart rendering.
func (s *Server) PathSnapshot() (*refline.Line, frenet.Path, frenet.FramePath) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.line, s.pd.Path(), s.pd.FramePath()
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400 && statusCode < 500:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 500:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/refline", s.handleRefline)
	mux.HandleFunc("/api/refline/from-recorder", s.handleReflineFromRecorder)
	mux.HandleFunc("/api/path", s.handlePath)
	mux.HandleFunc("/api/path/cartesian", s.handleSetCartesian)
	mux.HandleFunc("/api/path/frenet", s.handleSetFrenet)
	mux.HandleFunc("/api/path/point", s.handlePathPoint)
	mux.HandleFunc("/api/path/debug", s.handlePathDebug)
	mux.HandleFunc("/api/cycles", s.handleCycles)
	mux.HandleFunc("/api/cycles/", s.handleCycleByID)
	mux.HandleFunc("/api/recorder", s.handleRecorder)
	mux.HandleFunc("/api/params", s.showParams)
	mux.HandleFunc("/api/version", s.showVersion)
	mux.HandleFunc("/api/charts/path", s.charts.HandlePathChart)
	mux.HandleFunc("/api/charts/curvature", s.charts.HandleCurvatureChart)
	return mux
}

func (s *Server) showParams(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	// Report resolved values, not the sparse overrides the service was
	// started with.
	params := map[string]interface{}{
		"dense_step_m":        s.tuning.GetDenseStepM(),
		"projection_reject_m": s.tuning.GetProjectionRejectM(),
		"min_spacing_m":       s.tuning.GetMinSpacingM(),
		"gps_baud":            s.tuning.GetGPSBaud(),
		"reconnect_backoff":   s.tuning.GetReconnectBackoff().String(),
		"debug_sample_limit":  s.tuning.GetDebugSampleLimit(),
		"speed_units":         s.tuning.GetSpeedUnits(),
		"timezone":            s.tuning.GetTimezone(),
	}

	if err := json.NewEncoder(w).Encode(params); err != nil {
		httputil.InternalServerError(w, "Failed to write params")
		return
	}
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	info := map[string]string{
		"version":    version.Version,
		"git_sha":    version.GitSHA,
		"build_time": version.BuildTime,
	}

	if err := json.NewEncoder(w).Encode(info); err != nil {
		httputil.InternalServerError(w, "Failed to write version")
		return
	}
}
