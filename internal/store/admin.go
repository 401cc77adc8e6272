package store

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"
)

// TableStats is the per-table slice of DatabaseStats.
type TableStats struct {
	Name     string `json:"name"`
	RowCount int64  `json:"row_count"`
}

// DatabaseStats summarizes the on-disk footprint of the cycle database.
type DatabaseStats struct {
	TotalSizeMB float64      `json:"total_size_mb"`
	Tables      []TableStats `json:"tables"`
}

// GetDatabaseStats reports the database size and row counts per user table.
func (s *Store) GetDatabaseStats() (*DatabaseStats, error) {
	var pageCount, pageSize int64
	if err := s.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return nil, fmt.Errorf("failed to read page_count: %w", err)
	}
	if err := s.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return nil, fmt.Errorf("failed to read page_size: %w", err)
	}

	stats := &DatabaseStats{
		TotalSizeMB: float64(pageCount*pageSize) / (1024 * 1024),
	}

	rows, err := s.Query(`
		SELECT name FROM sqlite_master
		WHERE type='table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}

	for _, name := range names {
		var count int64
		// Table names come from sqlite_master, not from user input.
		if err := s.QueryRow("SELECT COUNT(*) FROM " + name).Scan(&count); err != nil {
			return nil, fmt.Errorf("failed to count rows in %s: %w", name, err)
		}
		stats.Tables = append(stats.Tables, TableStats{Name: name, RowCount: count})
	}

	return stats, nil
}

// AttachAdminRoutes mounts the database debug pages under /debug/: a tailsql
// console for ad-hoc queries, a stats endpoint, and an on-demand snapshot
// download.
func (s *Store) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		// The options are static, so this only fires on a tailsql regression.
		log.Fatalf("create tailsql server: %v", err)
	}
	tsql.SetDB("sqlite://cycles.db", s.DB, &tailsql.DBOptions{
		Label: "Cycle DB",
	})
	debug.Handle("tailsql/", "Run SQL against the live database", tsql.NewMux())
	debug.Handle("db-stats", "Table row counts and database size", http.HandlerFunc(s.handleDBStats))
	debug.Handle("backup", "Download a gzipped snapshot of the database", http.HandlerFunc(s.handleBackup))
}

func (s *Store) handleDBStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.GetDatabaseStats()
	if err != nil {
		http.Error(w, "stats: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		log.Printf("db-stats: encode response: %v", err)
	}
}

// handleBackup writes a compacted snapshot with VACUUM INTO, streams it back
// gzipped, and removes it. The snapshot lands in the temp directory so an
// interrupted download never litters the working directory.
func (s *Store) handleBackup(w http.ResponseWriter, r *http.Request) {
	name := fmt.Sprintf("pathframe-%s.db", time.Now().UTC().Format("20060102T150405Z"))
	path := filepath.Join(os.TempDir(), name)

	if _, err := s.DB.Exec("VACUUM INTO ?", path); err != nil {
		http.Error(w, "backup: "+err.Error(), http.StatusInternalServerError)
		return
	}
	defer func() {
		if err := os.Remove(path); err != nil {
			log.Printf("backup: remove %s: %v", path, err)
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		http.Error(w, "backup: "+err.Error(), http.StatusInternalServerError)
		return
	}
	defer f.Close()

	// Content-Encoding gzip keeps the wire compact; the browser stores a
	// plain .db file.
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Encoding", "gzip")
	w.Header().Set("Content-Disposition", "attachment; filename="+name)

	gz := gzip.NewWriter(w)
	if _, err := io.Copy(gz, f); err != nil {
		// The status line is already on the wire; all we can do is log.
		log.Printf("backup: stream %s: %v", name, err)
		return
	}
	if err := gz.Close(); err != nil {
		log.Printf("backup: flush %s: %v", name, err)
	}
}
