package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/pathframe/frenet"
	"github.com/banshee-data/pathframe/internal/httputil"
	"github.com/banshee-data/pathframe/internal/monitor"
	"github.com/banshee-data/pathframe/internal/security"
	"github.com/banshee-data/pathframe/internal/store"
	"github.com/banshee-data/pathframe/internal/units"
)

// cycleAPI is the display form of a stored cycle: timestamps rendered in
// the requested timezone and average speed in the requested units. The
// database stores UTC seconds and meters; conversion happens here only.
type cycleAPI struct {
	ID         string  `json:"cycle_id"`
	Name       string  `json:"name"`
	Notes      string  `json:"notes"`
	StartedAt  string  `json:"started_at"`
	EndedAt    string  `json:"ended_at"`
	PointCount int     `json:"point_count"`
	LengthM    float64 `json:"length_m"`
	DurationS  float64 `json:"duration_s"`
	AvgSpeed   float64 `json:"avg_speed"`
	SpeedUnits string  `json:"speed_units"`
}

func cycleToAPI(c store.Cycle, speedUnits, tz string) cycleAPI {
	started, err := units.ConvertTime(c.StartedAt, tz)
	if err != nil {
		started = c.StartedAt
	}
	ended, err := units.ConvertTime(c.EndedAt, tz)
	if err != nil {
		ended = c.EndedAt
	}

	duration := c.EndedAt.Sub(c.StartedAt).Seconds()
	avgSpeed := 0.0
	if duration > 0 {
		avgSpeed = units.ConvertSpeed(c.LengthM/duration, speedUnits)
	}

	return cycleAPI{
		ID:         c.ID,
		Name:       c.Name,
		Notes:      c.Notes,
		StartedAt:  started.Format(time.RFC3339),
		EndedAt:    ended.Format(time.RFC3339),
		PointCount: c.PointCount,
		LengthM:    c.LengthM,
		DurationS:  duration,
		AvgSpeed:   avgSpeed,
		SpeedUnits: speedUnits,
	}
}

// displayParams resolves the units and tz query parameters against the
// tuning defaults. A non-nil error message means the request is bad.
func (s *Server) displayParams(r *http.Request) (speedUnits, tz, errMsg string) {
	speedUnits = s.tuning.GetSpeedUnits()
	if u := r.URL.Query().Get("units"); u != "" {
		if !units.IsValid(u) {
			return "", "", fmt.Sprintf("Invalid 'units' parameter; valid units are: %s", units.GetValidUnitsString())
		}
		speedUnits = u
	}
	tz = s.tuning.GetTimezone()
	if t := r.URL.Query().Get("tz"); t != "" {
		if !units.IsTimezoneValid(t) {
			return "", "", "Invalid 'tz' parameter"
		}
		tz = t
	}
	return speedUnits, tz, ""
}

func (s *Server) handleCycles(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if s.store == nil {
		httputil.NotFound(w, "persistence disabled")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.listCycles(w, r)
	case http.MethodPost:
		s.recordCycle(w, r)
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) listCycles(w http.ResponseWriter, r *http.Request) {
	speedUnits, tz, errMsg := s.displayParams(r)
	if errMsg != "" {
		httputil.BadRequest(w, errMsg)
		return
	}

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			httputil.BadRequest(w, "Invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	cycles, err := s.store.Cycles(limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve cycles: %v", err))
		return
	}

	apiCycles := make([]cycleAPI, len(cycles))
	for i, c := range cycles {
		apiCycles[i] = cycleToAPI(c, speedUnits, tz)
	}

	if err := json.NewEncoder(w).Encode(apiCycles); err != nil {
		httputil.InternalServerError(w, "Failed to write cycles")
		return
	}
}

type recordCycleRequest struct {
	Name      string     `json:"name"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

func (s *Server) recordCycle(w http.ResponseWriter, r *http.Request) {
	var req recordCycleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Name == "" {
		httputil.BadRequest(w, "'name' is required")
		return
	}

	ended := s.clock.Now()
	if req.EndedAt != nil {
		ended = *req.EndedAt
	}
	started := ended
	if req.StartedAt != nil {
		started = *req.StartedAt
	}

	s.mu.Lock()
	if s.pd.Path().Len() == 0 {
		s.mu.Unlock()
		httputil.Conflict(w, "no path to record")
		return
	}
	id, err := s.store.RecordCycle(req.Name, s.pd, started, ended)
	s.mu.Unlock()
	if err != nil {
		if errors.Is(err, frenet.ErrInconsistentPath) {
			writePathError(w, err)
			return
		}
		httputil.InternalServerError(w, fmt.Sprintf("Failed to record cycle: %v", err))
		return
	}

	cycle, err := s.store.GetCycle(id)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to read back cycle: %v", err))
		return
	}
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(cycleToAPI(*cycle, s.tuning.GetSpeedUnits(), s.tuning.GetTimezone()))
}

type cycleDetail struct {
	cycleAPI
	Path  []frenet.PathPoint  `json:"path"`
	Frame []frenet.FramePoint `json:"frame"`
}

func (s *Server) handleCycleByID(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if s.store == nil {
		httputil.NotFound(w, "persistence disabled")
		return
	}

	rest := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, "/api/cycles/"))
	if id, ok := strings.CutSuffix(rest, "/plots"); ok {
		if id == "" || strings.Contains(id, "/") {
			httputil.BadRequest(w, "cycle_id is required")
			return
		}
		if r.Method != http.MethodPost {
			httputil.MethodNotAllowed(w)
			return
		}
		s.exportCyclePlots(w, id)
		return
	}

	id := rest
	if id == "" || strings.Contains(id, "/") {
		httputil.BadRequest(w, "cycle_id is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.getCycle(w, r, id)
	case http.MethodPatch:
		s.updateCycleNotes(w, r, id)
	case http.MethodDelete:
		s.deleteCycle(w, id)
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) getCycle(w http.ResponseWriter, r *http.Request, id string) {
	speedUnits, tz, errMsg := s.displayParams(r)
	if errMsg != "" {
		httputil.BadRequest(w, errMsg)
		return
	}

	cycle, err := s.store.GetCycle(id)
	if err != nil {
		if errors.Is(err, store.ErrCycleNotFound) {
			httputil.NotFound(w, "cycle not found")
			return
		}
		httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve cycle: %v", err))
		return
	}

	path, frame, err := s.store.CyclePath(id)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve cycle points: %v", err))
		return
	}

	detail := cycleDetail{
		cycleAPI: cycleToAPI(*cycle, speedUnits, tz),
		Path:     path.Points(),
		Frame:    frame.Points(),
	}
	if detail.Path == nil {
		detail.Path = []frenet.PathPoint{}
	}
	if detail.Frame == nil {
		detail.Frame = []frenet.FramePoint{}
	}

	if err := json.NewEncoder(w).Encode(detail); err != nil {
		httputil.InternalServerError(w, "Failed to write cycle")
		return
	}
}

type updateNotesRequest struct {
	Notes string `json:"notes"`
}

func (s *Server) updateCycleNotes(w http.ResponseWriter, r *http.Request, id string) {
	var req updateNotesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	if err := s.store.SetCycleNotes(id, req.Notes); err != nil {
		if errors.Is(err, store.ErrCycleNotFound) {
			httputil.NotFound(w, "cycle not found")
			return
		}
		httputil.InternalServerError(w, fmt.Sprintf("Failed to update notes: %v", err))
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"status": "updated"})
}

func (s *Server) deleteCycle(w http.ResponseWriter, id string) {
	if err := s.store.DeleteCycle(id); err != nil {
		if errors.Is(err, store.ErrCycleNotFound) {
			httputil.NotFound(w, "cycle not found")
			return
		}
		httputil.InternalServerError(w, fmt.Sprintf("Failed to delete cycle: %v", err))
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"status": "deleted"})
}

// exportCyclePlots renders the plot set for a stored cycle into a
// timestamped directory under plotsDir and reports the files written. The
// cycle name picks the subdirectory, so the resolved path is checked
// against the root before anything is created.
func (s *Server) exportCyclePlots(w http.ResponseWriter, id string) {
	if s.plotsDir == "" {
		httputil.NotFound(w, "plot export disabled")
		return
	}

	cycle, err := s.store.GetCycle(id)
	if err != nil {
		if errors.Is(err, store.ErrCycleNotFound) {
			httputil.NotFound(w, "cycle not found")
			return
		}
		httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve cycle: %v", err))
		return
	}
	path, frame, err := s.store.CyclePath(id)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve cycle points: %v", err))
		return
	}

	s.mu.Lock()
	line := s.line
	s.mu.Unlock()
	if line == nil {
		httputil.Conflict(w, "no reference line attached")
		return
	}

	if err := os.MkdirAll(s.plotsDir, 0755); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to create plots directory: %v", err))
		return
	}
	outDir := monitor.MakePlotOutputDir(s.plotsDir, cycle.Name)
	if err := security.WithinRoot(outDir, s.plotsDir); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("cycle name %q does not form a usable plot directory", cycle.Name))
		return
	}

	files, err := monitor.SaveCyclePlots(outDir, cycle.Name, line, path, frame, s.clock.Now())
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to render plots: %v", err))
		return
	}

	httputil.WriteJSONOK(w, map[string]interface{}{
		"cycle_id": cycle.ID,
		"dir":      outDir,
		"files":    files,
	})
}
