// Package store persists recorded drive cycles and their path geometry in
// SQLite. The schema is managed by embedded migrations; the admin surface
// for inspecting the live database hangs off AttachAdminRoutes.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/pathframe/frenet"
)

// ErrCycleNotFound reports a cycle ID with no row behind it.
var ErrCycleNotFound = errors.New("cycle not found")

// pragmaParams rides on every DSN so each pooled connection gets the same
// locking and durability posture. foreign_keys must be ON for cycle_points
// cleanup to cascade.
const pragmaParams = "?_pragma=journal_mode(WAL)" +
	"&_pragma=busy_timeout(5000)" +
	"&_pragma=synchronous(NORMAL)" +
	"&_pragma=temp_store(MEMORY)" +
	"&_pragma=foreign_keys(ON)"

type Store struct {
	*sql.DB
}

// NewStore opens (creating if needed) the SQLite database at path. It does
// not touch the schema; migrations own that. Use NewStoreWithMigrationCheck
// to open and migrate in one step.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+pragmaParams)
	if err != nil {
		return nil, err
	}
	return &Store{db}, nil
}

// NewStoreWithMigrationCheck opens the database and applies any pending
// migrations. devMode reads migration files from the working tree instead
// of the embedded copy.
func NewStoreWithMigrationCheck(path string, devMode bool) (*Store, error) {
	DevMode = devMode
	migrationsFS, err := getMigrationsFS()
	if err != nil {
		return nil, err
	}

	s, err := NewStore(path)
	if err != nil {
		return nil, err
	}
	if err := s.MigrateUp(migrationsFS); err != nil {
		s.Close()
		return nil, fmt.Errorf("schema migration failed: %w", err)
	}
	return s, nil
}

// Cycle is the stored summary of one recorded drive.
type Cycle struct {
	ID         string    `json:"cycle_id"`
	Name       string    `json:"name"`
	Notes      string    `json:"notes"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
	PointCount int       `json:"point_count"`
	LengthM    float64   `json:"length_m"`
}

// RecordCycle stores both path representations held by pd as a new cycle
// and returns the generated cycle ID. The road-relative side is optional;
// when present it must pair one to one with the Cartesian side. The whole
// cycle lands in a single transaction.
func (s *Store) RecordCycle(name string, pd *frenet.PathData, startedAt, endedAt time.Time) (string, error) {
	path := pd.Path()
	frame := pd.FramePath()

	if path.Len() == 0 {
		return "", fmt.Errorf("cannot record a cycle with no path samples")
	}
	if frame.Len() != 0 && frame.Len() != path.Len() {
		return "", fmt.Errorf("cartesian has %d samples, frenet has %d: %w",
			path.Len(), frame.Len(), frenet.ErrInconsistentPath)
	}

	pts := path.Points()
	fpts := frame.Points()

	id := "cyc_" + uuid.NewString()
	length := pts[len(pts)-1].S - pts[0].S

	tx, err := s.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO cycles (
			cycle_id, name, started_unix, ended_unix, point_count, length_m
		) VALUES (?, ?, ?, ?, ?, ?)`,
		id, name, startedAt.UTC().Unix(), endedAt.UTC().Unix(), len(pts), length,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert cycle: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO cycle_points (
			cycle_id, seq, x, y, theta, kappa, dkappa, s, ref_s, lateral, dl, ddl
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare point insert: %w", err)
	}
	defer stmt.Close()

	for i, pt := range pts {
		var refS, lateral, dl, ddl interface{}
		if len(fpts) == len(pts) {
			refS, lateral, dl, ddl = fpts[i].S, fpts[i].L, fpts[i].DL, fpts[i].DDL
		}
		if _, err := stmt.Exec(id, i,
			pt.X, pt.Y, pt.Theta, pt.Kappa, pt.DKappa, pt.S,
			refS, lateral, dl, ddl,
		); err != nil {
			return "", fmt.Errorf("failed to insert point %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit cycle: %w", err)
	}
	return id, nil
}

// Cycles returns the most recently started cycles, newest first. A
// non-positive limit returns up to 100.
func (s *Store) Cycles(limit int) ([]Cycle, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.Query(`
		SELECT cycle_id, name, notes, started_unix, ended_unix, point_count, length_m
		FROM cycles
		ORDER BY started_unix DESC, cycle_id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query cycles: %w", err)
	}
	defer rows.Close()

	var cycles []Cycle
	for rows.Next() {
		var c Cycle
		var startedUnix, endedUnix int64

		if err := rows.Scan(
			&c.ID, &c.Name, &c.Notes,
			&startedUnix, &endedUnix,
			&c.PointCount, &c.LengthM,
		); err != nil {
			return nil, fmt.Errorf("failed to scan cycle: %w", err)
		}

		c.StartedAt = time.Unix(startedUnix, 0).UTC()
		c.EndedAt = time.Unix(endedUnix, 0).UTC()
		cycles = append(cycles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cycles: %w", err)
	}

	return cycles, nil
}

// GetCycle returns one cycle summary by ID.
func (s *Store) GetCycle(id string) (*Cycle, error) {
	var c Cycle
	var startedUnix, endedUnix int64

	err := s.QueryRow(`
		SELECT cycle_id, name, notes, started_unix, ended_unix, point_count, length_m
		FROM cycles
		WHERE cycle_id = ?`, id).Scan(
		&c.ID, &c.Name, &c.Notes,
		&startedUnix, &endedUnix,
		&c.PointCount, &c.LengthM,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("cycle %s: %w", id, ErrCycleNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cycle: %w", err)
	}

	c.StartedAt = time.Unix(startedUnix, 0).UTC()
	c.EndedAt = time.Unix(endedUnix, 0).UTC()
	return &c, nil
}

// CyclePath rebuilds the stored path representations of a cycle in sample
// order. The returned FramePath is empty when any stored sample lacks the
// road-relative fields.
func (s *Store) CyclePath(id string) (frenet.Path, frenet.FramePath, error) {
	if _, err := s.GetCycle(id); err != nil {
		return frenet.Path{}, frenet.FramePath{}, err
	}

	rows, err := s.Query(`
		SELECT x, y, theta, kappa, dkappa, s, ref_s, lateral, dl, ddl
		FROM cycle_points
		WHERE cycle_id = ?
		ORDER BY seq ASC`, id)
	if err != nil {
		return frenet.Path{}, frenet.FramePath{}, fmt.Errorf("failed to query cycle points: %w", err)
	}
	defer rows.Close()

	var pts []frenet.PathPoint
	var fpts []frenet.FramePoint
	complete := true
	for rows.Next() {
		var pt frenet.PathPoint
		var refS, lateral, dl, ddl sql.NullFloat64

		if err := rows.Scan(
			&pt.X, &pt.Y, &pt.Theta, &pt.Kappa, &pt.DKappa, &pt.S,
			&refS, &lateral, &dl, &ddl,
		); err != nil {
			return frenet.Path{}, frenet.FramePath{}, fmt.Errorf("failed to scan cycle point: %w", err)
		}

		pts = append(pts, pt)
		if refS.Valid && lateral.Valid && dl.Valid && ddl.Valid {
			fpts = append(fpts, frenet.FramePoint{
				S:   refS.Float64,
				L:   lateral.Float64,
				DL:  dl.Float64,
				DDL: ddl.Float64,
			})
		} else {
			complete = false
		}
	}
	if err := rows.Err(); err != nil {
		return frenet.Path{}, frenet.FramePath{}, fmt.Errorf("error iterating cycle points: %w", err)
	}

	if !complete {
		fpts = nil
	}
	return frenet.NewPath(pts), frenet.NewFramePath(fpts), nil
}

// SetCycleNotes replaces the free-form notes on a cycle.
func (s *Store) SetCycleNotes(id, notes string) error {
	result, err := s.Exec(`UPDATE cycles SET notes = ? WHERE cycle_id = ?`, notes, id)
	if err != nil {
		return fmt.Errorf("failed to update cycle notes: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("cycle %s: %w", id, ErrCycleNotFound)
	}
	return nil
}

// DeleteCycle removes a cycle and, via the cascade on cycle_points, all of
// its samples.
func (s *Store) DeleteCycle(id string) error {
	result, err := s.Exec(`DELETE FROM cycles WHERE cycle_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete cycle: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("cycle %s: %w", id, ErrCycleNotFound)
	}
	return nil
}
