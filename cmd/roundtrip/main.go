// Command roundtrip measures conversion accuracy over a waypoints file. It
// sweeps synthetic lateral profiles along the fitted reference line, maps
// each to the Cartesian plane and back, and reports the error statistics of
// the recovered road coordinates.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/pathframe/frenet"
	"github.com/banshee-data/pathframe/refline"
)

// Config holds the accuracy run settings.
type Config struct {
	WaypointsFile string
	SampleStepM   float64
	Amplitude     float64
	Wavelength    float64
	StepM         float64
	RejectM       float64
	OutputJSON    string
}

// ErrorStats summarizes one absolute error series.
type ErrorStats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	P50    float64 `json:"p50"`
	P95    float64 `json:"p95"`
	Max    float64 `json:"max"`
}

// ProfileResult holds the round trip outcome for one lateral profile.
type ProfileResult struct {
	Name      string     `json:"name"`
	Samples   int        `json:"samples"`
	Failed    bool       `json:"failed,omitempty"`
	Error     string     `json:"error,omitempty"`
	Lateral   ErrorStats `json:"lateral_error_m"`
	ArcLength ErrorStats `json:"arc_length_error_m"`
}

// Report is the full accuracy report.
type Report struct {
	WaypointsFile string          `json:"waypoints_file"`
	LineLengthM   float64         `json:"line_length_m"`
	LineSamples   int             `json:"line_samples"`
	SampleStepM   float64         `json:"sample_step_m"`
	Profiles      []ProfileResult `json:"profiles"`
}

// lateralProfile evaluates a synthetic offset and its derivatives with
// respect to reference arc length.
type lateralProfile struct {
	name string
	eval func(s float64) (l, dl, ddl float64)
}

func main() {
	cfg := parseFlags()

	if cfg.WaypointsFile == "" {
		fmt.Fprintln(os.Stderr, "Error: waypoints file is required")
		flag.Usage()
		os.Exit(1)
	}

	report, err := runReport(cfg)
	if err != nil {
		log.Fatalf("Accuracy run failed: %v", err)
	}

	printReport(report)

	if cfg.OutputJSON != "" {
		if err := exportJSON(report, cfg.OutputJSON); err != nil {
			log.Fatalf("Failed to export JSON: %v", err)
		}
		log.Printf("Report exported to: %s", cfg.OutputJSON)
	}
}

func parseFlags() Config {
	cfg := Config{}

	flag.StringVar(&cfg.WaypointsFile, "waypoints", "", "Waypoints CSV for the reference line (required)")
	flag.Float64Var(&cfg.SampleStepM, "sample-step", 1.0, "Profile sample spacing along the line in meters")
	flag.Float64Var(&cfg.Amplitude, "amplitude", 1.5, "Lateral profile amplitude in meters")
	flag.Float64Var(&cfg.Wavelength, "wavelength", 40.0, "Sine profile wavelength in meters")
	flag.Float64Var(&cfg.StepM, "step", 0.1, "Dense table step in meters")
	flag.Float64Var(&cfg.RejectM, "reject", 10.0, "Projection rejection radius in meters")
	flag.StringVar(&cfg.OutputJSON, "json", "", "Also write the report to this JSON file")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Measures road/plane conversion accuracy over a waypoints file:\n")
		fmt.Fprintf(os.Stderr, "  1. Fit the reference line through the waypoints\n")
		fmt.Fprintf(os.Stderr, "  2. Sample synthetic lateral profiles along it\n")
		fmt.Fprintf(os.Stderr, "  3. Convert each profile to the plane and project it back\n")
		fmt.Fprintf(os.Stderr, "  4. Report the recovered coordinate error statistics\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -waypoints loop.csv\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -waypoints loop.csv -amplitude 3 -json report.json\n", os.Args[0])
	}

	flag.Parse()
	return cfg
}

func runReport(cfg Config) (*Report, error) {
	wf, err := os.Open(cfg.WaypointsFile)
	if err != nil {
		return nil, err
	}
	defer wf.Close()
	wpts, err := refline.ReadWaypoints(wf)
	if err != nil {
		return nil, err
	}

	line, err := refline.NewLine(wpts, refline.Options{StepM: cfg.StepM, RejectM: cfg.RejectM})
	if err != nil {
		return nil, fmt.Errorf("build reference line: %w", err)
	}

	report := &Report{
		WaypointsFile: cfg.WaypointsFile,
		LineLengthM:   line.Length(),
		LineSamples:   line.Samples(),
		SampleStepM:   cfg.SampleStepM,
	}
	for _, p := range buildProfiles(line.Length(), cfg.Amplitude, cfg.Wavelength) {
		report.Profiles = append(report.Profiles, runProfile(line, p, cfg.SampleStepM))
	}
	return report, nil
}

// buildProfiles returns the synthetic lateral profiles swept by the report:
// the centerline itself, a constant offset, a sine weave, and a smoothstep
// lane change over the middle third of the line.
func buildProfiles(length, amplitude, wavelength float64) []lateralProfile {
	k := 2 * math.Pi / wavelength
	s0, s1 := length/3, 2*length/3
	span := s1 - s0

	return []lateralProfile{
		{"centerline", func(s float64) (float64, float64, float64) {
			return 0, 0, 0
		}},
		{"offset", func(s float64) (float64, float64, float64) {
			return amplitude, 0, 0
		}},
		{"sine", func(s float64) (float64, float64, float64) {
			return amplitude * math.Sin(k*s),
				amplitude * k * math.Cos(k*s),
				-amplitude * k * k * math.Sin(k*s)
		}},
		{"lane-change", func(s float64) (float64, float64, float64) {
			if s <= s0 {
				return 0, 0, 0
			}
			if s >= s1 {
				return amplitude, 0, 0
			}
			t := (s - s0) / span
			return amplitude * t * t * (3 - 2*t),
				amplitude * 6 * t * (1 - t) / span,
				amplitude * (6 - 12*t) / (span * span)
		}},
	}
}

// runProfile samples one profile along the line, converts it to the plane
// and back, and compares the recovered road coordinates against the profile.
// Sampling always covers the full line, endpoint included.
func runProfile(line *refline.Line, p lateralProfile, sampleStepM float64) ProfileResult {
	length := line.Length()
	n := int(math.Round(length/sampleStepM)) + 1
	if n < 2 {
		n = 2
	}
	framePts := make([]frenet.FramePoint, n)
	for i := range framePts {
		s := float64(i) * length / float64(n-1)
		l, dl, ddl := p.eval(s)
		framePts[i] = frenet.FramePoint{S: s, L: l, DL: dl, DDL: ddl}
	}

	forward := &frenet.PathData{}
	forward.SetReferenceLine(line)
	if err := forward.SetFramePath(frenet.NewFramePath(framePts)); err != nil {
		return ProfileResult{Name: p.name, Failed: true, Error: err.Error()}
	}

	back := &frenet.PathData{}
	back.SetReferenceLine(line)
	if err := back.SetPath(forward.Path()); err != nil {
		return ProfileResult{Name: p.name, Failed: true, Error: err.Error()}
	}

	recovered := back.FramePath().Points()
	latErr := make([]float64, len(recovered))
	arcErr := make([]float64, len(recovered))
	for i, r := range recovered {
		l, _, _ := p.eval(r.S)
		latErr[i] = math.Abs(r.L - l)
		arcErr[i] = math.Abs(r.S - framePts[i].S)
	}

	return ProfileResult{
		Name:      p.name,
		Samples:   len(recovered),
		Lateral:   summarize(latErr),
		ArcLength: summarize(arcErr),
	}
}

// summarize reduces an absolute error series to its report statistics.
func summarize(xs []float64) ErrorStats {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	return ErrorStats{
		Mean:   stat.Mean(xs, nil),
		StdDev: stat.StdDev(xs, nil),
		P50:    stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P95:    stat.Quantile(0.95, stat.Empirical, sorted, nil),
		Max:    sorted[len(sorted)-1],
	}
}

func printReport(rep *Report) {
	fmt.Println("\n=== Round Trip Accuracy ===")
	fmt.Printf("Waypoints: %s\n", rep.WaypointsFile)
	fmt.Printf("Reference Line: %.1fm (%d dense samples)\n", rep.LineLengthM, rep.LineSamples)
	fmt.Printf("Sample Step: %.2fm\n", rep.SampleStepM)

	fmt.Println("\n--- Lateral Error (m) ---")
	fmt.Printf("%-12s %8s %12s %12s %12s %12s %12s\n", "profile", "samples", "mean", "stddev", "p50", "p95", "max")
	for _, pr := range rep.Profiles {
		if pr.Failed {
			fmt.Printf("%-12s %8s  conversion failed: %s\n", pr.Name, "-", pr.Error)
			continue
		}
		fmt.Printf("%-12s %8d %12.6f %12.6f %12.6f %12.6f %12.6f\n",
			pr.Name, pr.Samples, pr.Lateral.Mean, pr.Lateral.StdDev, pr.Lateral.P50, pr.Lateral.P95, pr.Lateral.Max)
	}

	fmt.Println("\n--- Arc Length Error (m) ---")
	fmt.Printf("%-12s %8s %12s %12s %12s %12s %12s\n", "profile", "samples", "mean", "stddev", "p50", "p95", "max")
	for _, pr := range rep.Profiles {
		if pr.Failed {
			continue
		}
		fmt.Printf("%-12s %8d %12.6f %12.6f %12.6f %12.6f %12.6f\n",
			pr.Name, pr.Samples, pr.ArcLength.Mean, pr.ArcLength.StdDev, pr.ArcLength.P50, pr.ArcLength.P95, pr.ArcLength.Max)
	}
}

func exportJSON(rep *Report, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	return encoder.Encode(rep)
}
