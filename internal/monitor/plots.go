// Package monitor renders diagnostics for a path service: PNG plots of the
// reference line, converted paths, and curvature/lateral profiles, plus live
// HTML charts served over the debug mux.
package monitor

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/pathframe/frenet"
	"github.com/banshee-data/pathframe/internal/security"
	"github.com/banshee-data/pathframe/refline"
)

// Series colors shared by the PNG plots and the live charts.
var (
	refColor  = color.RGBA{R: 0x9e, G: 0x9e, B: 0x9e, A: 255}
	pathColor = color.RGBA{R: 0xff, G: 0x52, B: 0x52, A: 255}
	profColor = color.RGBA{R: 0x31, G: 0x68, B: 0x8e, A: 255}
)

// refLineSampleStep is the arc length between reference line samples used
// for plotting.
const refLineSampleStep = 1.0

// sampleRefLine walks the reference line at a fixed step, always including
// the far endpoint.
func sampleRefLine(line *refline.Line) plotter.XYs {
	length := line.Length()
	pts := make(plotter.XYs, 0, int(length/refLineSampleStep)+2)
	for s := 0.0; s < length; s += refLineSampleStep {
		rp := line.PointAt(s)
		pts = append(pts, plotter.XY{X: rp.X, Y: rp.Y})
	}
	rp := line.PointAt(length)
	pts = append(pts, plotter.XY{X: rp.X, Y: rp.Y})
	return pts
}

// PlotPathOverlay renders the reference line and the planned path together
// in the XY plane.
func PlotPathOverlay(line *refline.Line, path frenet.Path, file string) error {
	p := plot.New()
	p.Title.Text = "Path vs Reference Line"
	p.X.Label.Text = "X (m)"
	p.Y.Label.Text = "Y (m)"

	refLine, err := plotter.NewLine(sampleRefLine(line))
	if err != nil {
		return err
	}
	refLine.Color = refColor
	refLine.Width = vg.Points(1)
	p.Add(refLine)
	p.Legend.Add("reference", refLine)

	pathPts := make(plotter.XYs, 0, path.Len())
	for _, pp := range path.Points() {
		pathPts = append(pathPts, plotter.XY{X: pp.X, Y: pp.Y})
	}
	if len(pathPts) > 0 {
		pathLine, err := plotter.NewLine(pathPts)
		if err != nil {
			return err
		}
		pathLine.Color = pathColor
		pathLine.Width = vg.Points(1)
		p.Add(pathLine)
		p.Legend.Add("path", pathLine)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(14*vg.Inch, 6*vg.Inch, file); err != nil {
		return fmt.Errorf("save overlay plot: %w", err)
	}
	return nil
}

// PlotCurvatureProfile renders path curvature against distance along the
// path.
func PlotCurvatureProfile(path frenet.Path, file string) error {
	p := plot.New()
	p.Title.Text = "Curvature Profile"
	p.X.Label.Text = "S (m)"
	p.Y.Label.Text = "Kappa (1/m)"

	pts := make(plotter.XYs, 0, path.Len())
	for _, pp := range path.Points() {
		pts = append(pts, plotter.XY{X: pp.S, Y: pp.Kappa})
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Color = profColor
	line.Width = vg.Points(1)
	p.Add(line)

	if err := p.Save(14*vg.Inch, 6*vg.Inch, file); err != nil {
		return fmt.Errorf("save curvature plot: %w", err)
	}
	return nil
}

// PlotLateralProfile renders lateral offset against reference line arc
// length.
func PlotLateralProfile(fp frenet.FramePath, file string) error {
	p := plot.New()
	p.Title.Text = "Lateral Profile"
	p.X.Label.Text = "Reference S (m)"
	p.Y.Label.Text = "L (m)"

	pts := make(plotter.XYs, 0, fp.Len())
	for _, f := range fp.Points() {
		pts = append(pts, plotter.XY{X: f.S, Y: f.L})
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Color = profColor
	line.Width = vg.Points(1)
	p.Add(line)

	if err := p.Save(14*vg.Inch, 6*vg.Inch, file); err != nil {
		return fmt.Errorf("save lateral plot: %w", err)
	}
	return nil
}

// SaveCyclePlots renders the full plot set for one recorded cycle into dir
// and returns the created file paths. The cycle ID is sanitized before it is
// embedded in filenames. The frame plot is skipped for cartesian-only
// cycles.
func SaveCyclePlots(dir, cycleID string, line *refline.Line, path frenet.Path, frame frenet.FramePath, now time.Time) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	var files []string

	overlay := filepath.Join(dir, security.ExportFilename("overlay", cycleID, "png", now))
	if err := PlotPathOverlay(line, path, overlay); err != nil {
		return files, err
	}
	files = append(files, overlay)

	curvature := filepath.Join(dir, security.ExportFilename("curvature", cycleID, "png", now))
	if err := PlotCurvatureProfile(path, curvature); err != nil {
		return files, err
	}
	files = append(files, curvature)

	if frame.Len() > 0 {
		lateral := filepath.Join(dir, security.ExportFilename("lateral", cycleID, "png", now))
		if err := PlotLateralProfile(frame, lateral); err != nil {
			return files, err
		}
		files = append(files, lateral)
	}

	return files, nil
}

// FormatTimestamp generates a timestamp string for directory naming.
func FormatTimestamp(t time.Time) string {
	return t.Format("20060102_150405")
}

// MakePlotOutputDir creates a timestamped output directory path for plots.
// For file-driven runs: plots/<source_basename>/<timestamp>
// For live data: plots/live_<timestamp>
func MakePlotOutputDir(baseDir, sourceFile string) string {
	ts := FormatTimestamp(time.Now())
	if sourceFile != "" {
		base := filepath.Base(sourceFile)
		ext := filepath.Ext(base)
		name := base[:len(base)-len(ext)]
		return filepath.Join(baseDir, name, ts)
	}
	return filepath.Join(baseDir, "live_"+ts)
}
