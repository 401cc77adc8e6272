// Command pathplot renders a planned path against its reference line. It
// reads waypoints CSV and road-relative samples CSV, runs the conversion,
// and writes PNG plots (XY overlay, curvature profile, lateral profile)
// plus an optional CSV of the converted Cartesian path.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/banshee-data/pathframe/frenet"
	"github.com/banshee-data/pathframe/internal/monitor"
	"github.com/banshee-data/pathframe/refline"
)

// Config holds the plot run settings.
type Config struct {
	WaypointsFile string
	FrenetFile    string
	OutputDir     string
	Label         string
	PathCSV       string
	StepM         float64
	RejectM       float64
}

// RunResult summarizes one plot run.
type RunResult struct {
	LineLengthM float64
	LineSamples int
	FramePoints int
	PathPoints  int
	OutDir      string
	Files       []string
}

func main() {
	cfg := parseFlags()

	if cfg.WaypointsFile == "" || cfg.FrenetFile == "" {
		fmt.Fprintln(os.Stderr, "Error: -waypoints and -frenet are required")
		flag.Usage()
		os.Exit(1)
	}

	result, err := run(cfg)
	if err != nil {
		log.Fatalf("Plot run failed: %v", err)
	}

	fmt.Println("\n=== Path Plots ===")
	fmt.Printf("Reference Line: %.1fm (%d dense samples)\n", result.LineLengthM, result.LineSamples)
	fmt.Printf("Samples: %d road-relative in, %d Cartesian out\n", result.FramePoints, result.PathPoints)
	fmt.Printf("Output: %s\n", result.OutDir)
	for _, f := range result.Files {
		fmt.Printf("  %s\n", f)
	}
}

func parseFlags() Config {
	cfg := Config{}

	flag.StringVar(&cfg.WaypointsFile, "waypoints", "", "Waypoints CSV for the reference line (required)")
	flag.StringVar(&cfg.FrenetFile, "frenet", "", "Road-relative samples CSV: s,l[,dl[,ddl]] (required)")
	flag.StringVar(&cfg.OutputDir, "output", "plots", "Base directory for plot output")
	flag.StringVar(&cfg.Label, "label", "path", "Label embedded in plot filenames")
	flag.StringVar(&cfg.PathCSV, "path-csv", "", "Also write the converted Cartesian path to this CSV")
	flag.Float64Var(&cfg.StepM, "step", 0.1, "Dense table step in meters")
	flag.Float64Var(&cfg.RejectM, "reject", 10.0, "Projection rejection radius in meters")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Renders a road-relative path against its reference line:\n")
		fmt.Fprintf(os.Stderr, "  1. Fit the reference line through the waypoints\n")
		fmt.Fprintf(os.Stderr, "  2. Convert s,l samples to the Cartesian plane\n")
		fmt.Fprintf(os.Stderr, "  3. Write overlay, curvature and lateral PNG plots\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -waypoints loop.csv -frenet plan.csv\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -waypoints loop.csv -frenet plan.csv -path-csv out.csv -label qualifying\n", os.Args[0])
	}

	flag.Parse()
	return cfg
}

func run(cfg Config) (*RunResult, error) {
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

	ff, err := os.Open(cfg.FrenetFile)
	if err != nil {
		return nil, err
	}
	defer ff.Close()
	frame, err := readFramePath(ff)
	if err != nil {
		return nil, err
	}

	pd := &frenet.PathData{}
	pd.SetReferenceLine(line)
	if err := pd.SetFramePath(frame); err != nil {
		return nil, fmt.Errorf("convert samples: %w", err)
	}

	outDir := monitor.MakePlotOutputDir(cfg.OutputDir, cfg.WaypointsFile)
	files, err := monitor.SaveCyclePlots(outDir, cfg.Label, line, pd.Path(), pd.FramePath(), time.Now())
	if err != nil {
		return nil, err
	}

	if cfg.PathCSV != "" {
		pf, err := os.Create(cfg.PathCSV)
		if err != nil {
			return nil, err
		}
		defer pf.Close()
		if err := writePathCSV(pf, pd.Path()); err != nil {
			return nil, fmt.Errorf("write path CSV: %w", err)
		}
		files = append(files, cfg.PathCSV)
	}

	return &RunResult{
		LineLengthM: line.Length(),
		LineSamples: line.Samples(),
		FramePoints: frame.Len(),
		PathPoints:  pd.Path().Len(),
		OutDir:      outDir,
		Files:       files,
	}, nil
}

// readFramePath decodes road-relative samples from CSV. Rows carry s,l and
// optionally dl and ddl; an s,l,... header row is skipped.
func readFramePath(r io.Reader) (frenet.FramePath, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return frenet.FramePath{}, fmt.Errorf("read samples: %w", err)
	}
	if len(records) == 0 {
		return frenet.FramePath{}, fmt.Errorf("read samples: empty input")
	}
	start := 0
	if records[0][0] == "s" {
		start = 1
	}
	var pts []frenet.FramePoint
	for i, rec := range records[start:] {
		row := i + start + 1
		if len(rec) < 2 {
			return frenet.FramePath{}, fmt.Errorf("sample row %d: want at least 2 columns, got %d", row, len(rec))
		}
		vals := make([]float64, 4)
		for j := 0; j < len(rec) && j < 4; j++ {
			v, err := strconv.ParseFloat(rec[j], 64)
			if err != nil {
				return frenet.FramePath{}, fmt.Errorf("sample row %d column %d: %w", row, j+1, err)
			}
			vals[j] = v
		}
		pts = append(pts, frenet.FramePoint{S: vals[0], L: vals[1], DL: vals[2], DDL: vals[3]})
	}
	return frenet.NewFramePath(pts), nil
}

// writePathCSV encodes a Cartesian path as CSV with an x,y,theta,kappa,s
// header.
func writePathCSV(w io.Writer, p frenet.Path) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"x", "y", "theta", "kappa", "s"}); err != nil {
		return err
	}
	for _, pt := range p.Points() {
		if err := cw.Write([]string{
			strconv.FormatFloat(pt.X, 'f', -1, 64),
			strconv.FormatFloat(pt.Y, 'f', -1, 64),
			strconv.FormatFloat(pt.Theta, 'f', -1, 64),
			strconv.FormatFloat(pt.Kappa, 'f', -1, 64),
			strconv.FormatFloat(pt.S, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
