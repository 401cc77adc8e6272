package monitor

import (
	"bytes"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/pathframe/frenet"
	"github.com/banshee-data/pathframe/internal/httputil"
	"github.com/banshee-data/pathframe/refline"
)

// echartsAssetsPrefix is where chart pages load the echarts runtime from.
const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// viridis is the shared VisualMap gradient for scatter color dimensions.
var viridis = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// Snapshotter provides the current reference line and path pair for chart
// rendering. Implementations must return state that is safe to read without
// further locking.
type Snapshotter interface {
	PathSnapshot() (*refline.Line, frenet.Path, frenet.FramePath)
}

// ChartServer renders live diagnostic charts (HTML) for the current path
// state. These are debugging-only endpoints to eyeball a conversion without
// the UI.
type ChartServer struct {
	source Snapshotter
}

func NewChartServer(source Snapshotter) *ChartServer {
	return &ChartServer{source: source}
}

// HandlePathChart renders the current path over the reference line as an XY
// scatter. Query params:
//   - max_points (optional; default 8000) to reduce payload size
func (cs *ChartServer) HandlePathChart(w http.ResponseWriter, r *http.Request) {
	line, path, _ := cs.source.PathSnapshot()
	if line == nil {
		httputil.NotFound(w, "no reference line configured")
		return
	}

	maxPoints := 8000
	if mp := r.URL.Query().Get("max_points"); mp != "" {
		if v, err := strconv.Atoi(mp); err == nil && v > 100 && v <= 50000 {
			maxPoints = v
		}
	}

	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	observe := func(x, y float64) {
		minX = math.Min(minX, x)
		maxX = math.Max(maxX, x)
		minY = math.Min(minY, y)
		maxY = math.Max(maxY, y)
	}

	refSamples := sampleRefLine(line)
	stride := 1
	if len(refSamples) > maxPoints {
		stride = int(math.Ceil(float64(len(refSamples)) / float64(maxPoints)))
	}
	refData := make([]opts.ScatterData, 0, len(refSamples)/stride+1)
	for i := 0; i < len(refSamples); i += stride {
		observe(refSamples[i].X, refSamples[i].Y)
		refData = append(refData, opts.ScatterData{Value: []interface{}{refSamples[i].X, refSamples[i].Y}})
	}

	pathPts := path.Points()
	pathStride := 1
	if len(pathPts) > maxPoints {
		pathStride = int(math.Ceil(float64(len(pathPts)) / float64(maxPoints)))
	}
	maxKappa := 0.0
	pathData := make([]opts.ScatterData, 0, len(pathPts)/pathStride+1)
	for i := 0; i < len(pathPts); i += pathStride {
		pp := pathPts[i]
		observe(pp.X, pp.Y)
		if math.Abs(pp.Kappa) > maxKappa {
			maxKappa = math.Abs(pp.Kappa)
		}
		pathData = append(pathData, opts.ScatterData{Value: []interface{}{pp.X, pp.Y, math.Abs(pp.Kappa)}})
	}
	if maxKappa == 0 {
		maxKappa = 1
	}

	// Pad the data bounds so edge points stay visible
	padX := (maxX - minX) * 0.05
	padY := (maxY - minY) * 0.05
	if padX == 0 {
		padX = 1.0
	}
	if padY == 0 {
		padY = 1.0
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Path vs Reference", Theme: "dark", Width: "900px", Height: "900px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Path vs Reference Line", Subtitle: fmt.Sprintf("ref=%d path=%d stride=%d", len(refData), len(pathData), pathStride)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: minX - padX, Max: maxX + padX, Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: minY - padY, Max: maxY + padY, Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxKappa),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)

	scatter.AddSeries("reference", refData, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}), charts.WithItemStyleOpts(opts.ItemStyle{Color: "#9e9e9e"}))
	scatter.AddSeries("path", pathData, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// HandleCurvatureChart renders per-sample curvature as a bar chart. Long
// paths are downsampled to keep the page responsive.
func (cs *ChartServer) HandleCurvatureChart(w http.ResponseWriter, r *http.Request) {
	_, path, _ := cs.source.PathSnapshot()
	if path.Len() == 0 {
		httputil.NotFound(w, "no path set")
		return
	}

	maxBars := 96
	if mb := r.URL.Query().Get("max_bars"); mb != "" {
		if v, err := strconv.Atoi(mb); err == nil && v >= 8 && v <= 512 {
			maxBars = v
		}
	}

	pts := path.Points()
	stride := 1
	if len(pts) > maxBars {
		stride = int(math.Ceil(float64(len(pts)) / float64(maxBars)))
	}

	x := make([]string, 0, len(pts)/stride+1)
	y := make([]opts.BarData, 0, len(pts)/stride+1)
	for i := 0; i < len(pts); i += stride {
		x = append(x, fmt.Sprintf("%.1f", pts[i].S))
		y = append(y, opts.BarData{Value: pts[i].Kappa})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "720px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Curvature Profile", Subtitle: fmt.Sprintf("samples=%d stride=%d", len(y), stride)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("kappa", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(false)}),
		)

	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsPrefix)
	page.AddCharts(bar)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
