package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, map[string]float64{"length_m": 412.5})

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type = %s, want application/json", ct)
	}
	var resp map[string]float64
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["length_m"] != 412.5 {
		t.Errorf("length_m = %v, want 412.5", resp["length_m"])
	}
}

func TestWriteJSONOK(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSONOK(rec, map[string]int{"waypoints": 42})

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		name       string
		write      func(w http.ResponseWriter)
		wantStatus int
		wantMsg    string
	}{
		{"bad request", func(w http.ResponseWriter) { BadRequest(w, "invalid 'limit' parameter") },
			http.StatusBadRequest, "invalid 'limit' parameter"},
		{"not found", func(w http.ResponseWriter) { NotFound(w, "cycle not found") },
			http.StatusNotFound, "cycle not found"},
		{"method not allowed", func(w http.ResponseWriter) { MethodNotAllowed(w) },
			http.StatusMethodNotAllowed, "method not allowed"},
		{"conflict", func(w http.ResponseWriter) { Conflict(w, "no reference line attached") },
			http.StatusConflict, "no reference line attached"},
		{"unprocessable", func(w http.ResponseWriter) { UnprocessableEntity(w, "point rejects from the line") },
			http.StatusUnprocessableEntity, "point rejects from the line"},
		{"internal", func(w http.ResponseWriter) { InternalServerError(w, "database closed") },
			http.StatusInternalServerError, "database closed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var resp map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp["error"] != tt.wantMsg {
				t.Errorf("error = %q, want %q", resp["error"], tt.wantMsg)
			}
		})
	}
}
