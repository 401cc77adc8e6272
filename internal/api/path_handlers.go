package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/banshee-data/pathframe/frenet"
	"github.com/banshee-data/pathframe/internal/httputil"
	"github.com/banshee-data/pathframe/refline"
)

// writePathError maps conversion errors onto HTTP statuses: missing or
// diverged state is a conflict the client can repair, geometry rejections
// mean the submitted samples cannot be represented, anything else is ours.
func writePathError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, frenet.ErrNoReferenceLine), errors.Is(err, frenet.ErrInconsistentPath):
		httputil.Conflict(w, err.Error())
	case errors.Is(err, frenet.ErrProjection), errors.Is(err, frenet.ErrSingularGeometry):
		httputil.UnprocessableEntity(w, err.Error())
	default:
		httputil.InternalServerError(w, err.Error())
	}
}

type reflineRequest struct {
	Waypoints []refline.Waypoint `json:"waypoints"`
}

type reflineResponse struct {
	LengthM   float64 `json:"length_m"`
	Samples   int     `json:"samples"`
	Waypoints int     `json:"waypoints"`
}

func (s *Server) reflineOptions() refline.Options {
	return refline.Options{
		StepM:   s.tuning.GetDenseStepM(),
		RejectM: s.tuning.GetProjectionRejectM(),
	}
}

// setLine swaps in a new reference line and resets the held paths; stale
// samples from the previous line must not survive the swap.
func (s *Server) setLine(line *refline.Line) reflineResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.line = line
	s.pd.SetReferenceLine(line)
	return reflineResponse{
		LengthM:   line.Length(),
		Samples:   line.Samples(),
		Waypoints: len(line.Waypoints()),
	}
}

func (s *Server) handleRefline(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch r.Method {
	case http.MethodGet:
		s.mu.Lock()
		line := s.line
		s.mu.Unlock()
		if line == nil {
			httputil.NotFound(w, "no reference line attached")
			return
		}
		json.NewEncoder(w).Encode(reflineResponse{
			LengthM:   line.Length(),
			Samples:   line.Samples(),
			Waypoints: len(line.Waypoints()),
		})
	case http.MethodPost:
		var req reflineRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.BadRequest(w, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		line, err := refline.NewLine(req.Waypoints, s.reflineOptions())
		if err != nil {
			httputil.BadRequest(w, fmt.Sprintf("build reference line: %v", err))
			return
		}
		json.NewEncoder(w).Encode(s.setLine(line))
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) handleReflineFromRecorder(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.rec == nil {
		httputil.NotFound(w, "gps capture disabled")
		return
	}

	wps := s.rec.Waypoints()
	line, err := refline.NewLine(wps, s.reflineOptions())
	if err != nil {
		httputil.UnprocessableEntity(w, fmt.Sprintf("build reference line from %d captured waypoints: %v", len(wps), err))
		return
	}
	json.NewEncoder(w).Encode(s.setLine(line))
}

type pathResponse struct {
	Path  []frenet.PathPoint  `json:"path"`
	Frame []frenet.FramePoint `json:"frame"`
}

func (s *Server) currentPathResponse() pathResponse {
	path := s.pd.Path()
	frame := s.pd.FramePath()
	resp := pathResponse{
		Path:  path.Points(),
		Frame: frame.Points(),
	}
	// Encode empty paths as [] rather than null.
	if resp.Path == nil {
		resp.Path = []frenet.PathPoint{}
	}
	if resp.Frame == nil {
		resp.Frame = []frenet.FramePoint{}
	}
	return resp
}

func (s *Server) handlePath(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch r.Method {
	case http.MethodGet:
		s.mu.Lock()
		resp := s.currentPathResponse()
		s.mu.Unlock()
		json.NewEncoder(w).Encode(resp)
	case http.MethodDelete:
		s.mu.Lock()
		s.pd.Clear()
		s.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]string{"status": "cleared"})
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) handleSetCartesian(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	var points []frenet.PathPoint
	if err := json.NewDecoder(r.Body).Decode(&points); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	s.mu.Lock()
	err := s.pd.SetPath(frenet.NewPath(points))
	resp := s.currentPathResponse()
	s.mu.Unlock()
	if err != nil {
		writePathError(w, err)
		return
	}
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleSetFrenet(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	var points []frenet.FramePoint
	if err := json.NewDecoder(r.Body).Decode(&points); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	s.mu.Lock()
	err := s.pd.SetFramePath(frenet.NewFramePath(points))
	resp := s.currentPathResponse()
	s.mu.Unlock()
	if err != nil {
		writePathError(w, err)
		return
	}
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handlePathPoint(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	q := r.URL.Query()
	sParam := q.Get("s")
	refSParam := q.Get("ref_s")
	if (sParam == "") == (refSParam == "") {
		httputil.BadRequest(w, "exactly one of 's' or 'ref_s' is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pd.Path().Len() == 0 {
		httputil.NotFound(w, "no path set")
		return
	}

	if sParam != "" {
		sv, err := strconv.ParseFloat(sParam, 64)
		if err != nil {
			httputil.BadRequest(w, "Invalid 's' parameter")
			return
		}
		json.NewEncoder(w).Encode(s.pd.PointAt(sv))
		return
	}

	rv, err := strconv.ParseFloat(refSParam, 64)
	if err != nil {
		httputil.BadRequest(w, "Invalid 'ref_s' parameter")
		return
	}
	pt, err := s.pd.PointAtRefS(rv)
	if err != nil {
		writePathError(w, err)
		return
	}
	json.NewEncoder(w).Encode(pt)
}

func (s *Server) handlePathDebug(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Content-Type", "application/json")
		httputil.MethodNotAllowed(w)
		return
	}

	limit := s.tuning.GetDebugSampleLimit()
	if v := r.URL.Query().Get("sample_limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			httputil.BadRequest(w, "Invalid 'sample_limit' parameter")
			return
		}
		limit = parsed
	}

	s.mu.Lock()
	dump := s.pd.DebugString(limit)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, dump)
}

func (s *Server) handleRecorder(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if s.rec == nil {
		httputil.NotFound(w, "gps capture disabled")
		return
	}

	switch r.Method {
	case http.MethodGet:
		json.NewEncoder(w).Encode(s.rec.Stats())
	case http.MethodDelete:
		s.rec.Reset()
		json.NewEncoder(w).Encode(map[string]string{"status": "reset"})
	default:
		httputil.MethodNotAllowed(w)
	}
}
