package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/pathframe/internal/units"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// PathTuning represents the root configuration for tuning parameters.
// The schema matches the /api/params endpoint so the same JSON can be
// used for both startup configuration and runtime updates.
type PathTuning struct {
	// Reference line params
	DenseStepM        *float64 `json:"dense_step_m,omitempty"`
	ProjectionRejectM *float64 `json:"projection_reject_m,omitempty"`

	// Capture params
	MinSpacingM      *float64 `json:"min_spacing_m,omitempty"`
	GPSBaud          *int     `json:"gps_baud,omitempty"`
	ReconnectBackoff *string  `json:"reconnect_backoff,omitempty"` // duration string like "2s"

	// Display params
	DebugSampleLimit *int    `json:"debug_sample_limit,omitempty"`
	SpeedUnits       *string `json:"speed_units,omitempty"`
	Timezone         *string `json:"timezone,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyPathTuning returns a PathTuning with all fields set to nil.
// Use LoadPathTuning to load actual values from the defaults file.
func EmptyPathTuning() *PathTuning {
	return &PathTuning{}
}

// LoadPathTuning loads a PathTuning from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadPathTuning(path string) (*PathTuning, error) {
	// Validate the config file path.
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyPathTuning()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultTuning loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultTuning() *PathTuning {
	// Try paths from current dir up to repo root
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadPathTuning(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *PathTuning) Validate() error {
	if c.DenseStepM != nil {
		if *c.DenseStepM <= 0 || *c.DenseStepM > 10 {
			return fmt.Errorf("dense_step_m must be in (0, 10], got %f", *c.DenseStepM)
		}
	}

	if c.ProjectionRejectM != nil {
		if *c.ProjectionRejectM <= 0 {
			return fmt.Errorf("projection_reject_m must be positive, got %f", *c.ProjectionRejectM)
		}
	}

	if c.MinSpacingM != nil {
		if *c.MinSpacingM < 0 {
			return fmt.Errorf("min_spacing_m must be non-negative, got %f", *c.MinSpacingM)
		}
	}

	if c.GPSBaud != nil {
		if *c.GPSBaud <= 0 {
			return fmt.Errorf("gps_baud must be positive, got %d", *c.GPSBaud)
		}
	}

	if c.ReconnectBackoff != nil && *c.ReconnectBackoff != "" {
		if _, err := time.ParseDuration(*c.ReconnectBackoff); err != nil {
			return fmt.Errorf("invalid reconnect_backoff '%s': %w", *c.ReconnectBackoff, err)
		}
	}

	if c.DebugSampleLimit != nil {
		if *c.DebugSampleLimit < 0 {
			return fmt.Errorf("debug_sample_limit must be non-negative, got %d", *c.DebugSampleLimit)
		}
	}

	if c.SpeedUnits != nil {
		if !units.IsValid(*c.SpeedUnits) {
			return fmt.Errorf("speed_units must be one of %s, got %q", units.GetValidUnitsString(), *c.SpeedUnits)
		}
	}

	if c.Timezone != nil {
		if !units.IsTimezoneValid(*c.Timezone) {
			return fmt.Errorf("unknown timezone %q", *c.Timezone)
		}
	}

	return nil
}

// GetDenseStepM returns the dense_step_m value or the default.
func (c *PathTuning) GetDenseStepM() float64 {
	if c.DenseStepM == nil {
		return 0.1 // default
	}
	return *c.DenseStepM
}

// GetProjectionRejectM returns the projection_reject_m value or the default.
func (c *PathTuning) GetProjectionRejectM() float64 {
	if c.ProjectionRejectM == nil {
		return 10.0 // default
	}
	return *c.ProjectionRejectM
}

// GetMinSpacingM returns the min_spacing_m value or the default.
func (c *PathTuning) GetMinSpacingM() float64 {
	if c.MinSpacingM == nil {
		return 0.25 // default
	}
	return *c.MinSpacingM
}

// GetGPSBaud returns the gps_baud value or the default.
func (c *PathTuning) GetGPSBaud() int {
	if c.GPSBaud == nil {
		return 9600 // default
	}
	return *c.GPSBaud
}

// GetReconnectBackoff parses and returns the ReconnectBackoff as a time.Duration.
func (c *PathTuning) GetReconnectBackoff() time.Duration {
	if c.ReconnectBackoff == nil || *c.ReconnectBackoff == "" {
		return 2 * time.Second // default
	}
	d, err := time.ParseDuration(*c.ReconnectBackoff)
	if err != nil {
		return 2 * time.Second // default on parse error
	}
	return d
}

// GetDebugSampleLimit returns the debug_sample_limit value or the default.
func (c *PathTuning) GetDebugSampleLimit() int {
	if c.DebugSampleLimit == nil {
		return 8 // default
	}
	return *c.DebugSampleLimit
}

// GetSpeedUnits returns the speed_units value or the default.
func (c *PathTuning) GetSpeedUnits() string {
	if c.SpeedUnits == nil {
		return units.MPS // default
	}
	return *c.SpeedUnits
}

// GetTimezone returns the timezone value or the default.
func (c *PathTuning) GetTimezone() string {
	if c.Timezone == nil {
		return "UTC" // default
	}
	return *c.Timezone
}
