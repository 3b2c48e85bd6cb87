package vision

import (
	"fmt"
	"io"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const (
	reportWidth  = 1600
	reportHeight = 600
)

var (
	coverageColor = drawing.ColorFromHex("dda15e")
	errorColor    = drawing.ColorFromHex("457b9d")
	limitColor    = drawing.ColorFromHex("e63946")
)

// Report is the calibration quality summary shown after collecting samples.
type Report struct {
	Errors   []float64
	Stats    ErrorStats
	Covered  int
	Coverage float64 // percent of the image area
	Width    int
	Height   int
	Samples  []Sample
}

// NewReport computes errors, statistics and coverage for a calibration.
func NewReport(samples []Sample, cal *Calibration, width, height int) (*Report, error) {
	errs, err := ReprojectionErrors(samples, cal)
	if err != nil {
		return nil, err
	}
	covered, pct := Coverage(samples, width, height)
	return &Report{
		Errors:   errs,
		Stats:    Summarize(errs),
		Covered:  covered,
		Coverage: pct,
		Width:    width,
		Height:   height,
		Samples:  samples,
	}, nil
}

// Print writes the textual summary, one line per sample.
func (r *Report) Print(w io.Writer) {
	fmt.Fprintf(w, "Covered coordinates: %d, or %.3f %%\n", r.Covered, r.Coverage)
	outliers := make(map[int]bool)
	for _, i := range r.Stats.Outliers(r.Errors) {
		outliers[i] = true
	}
	for i, e := range r.Errors {
		mark := ""
		if outliers[i+1] {
			mark = "  outlier"
		}
		fmt.Fprintf(w, "  image %3d: %.4f px%s\n", i+1, e, mark)
	}
	fmt.Fprintf(w, "Mean error: %.3f px, outlier limit: %.3f px\n", r.Stats.Mean, r.Stats.OutlierLimit)
}

func pointStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeWidth: 0,
		DotWidth:    3,
		DotColor:    col,
	}
}

// pad2 duplicates a single value; go-chart cannot range a one-point series.
func pad2(xs, ys []float64) ([]float64, []float64) {
	if len(xs) == 1 {
		return []float64{xs[0], xs[0] + 1}, []float64{ys[0], ys[0]}
	}
	return xs, ys
}

// WriteCoveragePNG plots every detected corner over the image area. The
// y axis runs downward like image rows.
func (r *Report) WriteCoveragePNG(w io.Writer) error {
	var xs, ys []float64
	for _, s := range r.Samples {
		for _, p := range s.Image {
			xs = append(xs, p.X)
			ys = append(ys, p.Y)
		}
	}
	if len(xs) == 0 {
		return fmt.Errorf("no detected points to plot")
	}
	xs, ys = pad2(xs, ys)

	ch := chart.Chart{
		Title:  fmt.Sprintf("Calibration data coverage: %d px, %.3f %%", r.Covered, r.Coverage),
		Width:  reportWidth,
		Height: reportHeight,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16},
		},
		XAxis: chart.XAxis{
			Name:  "Image width, px",
			Range: &chart.ContinuousRange{Min: 0, Max: float64(r.Width)},
		},
		YAxis: chart.YAxis{
			Name:  "Image height, px",
			Range: &chart.ContinuousRange{Min: 0, Max: float64(r.Height), Descending: true},
		},
		Series: []chart.Series{
			chart.ContinuousSeries{Name: "Corners", XValues: xs, YValues: ys, Style: pointStyle(coverageColor)},
		},
	}
	return ch.Render(chart.PNG, w)
}

// WriteErrorsPNG plots the per-image reprojection error with the outlier limit.
func (r *Report) WriteErrorsPNG(w io.Writer) error {
	if len(r.Errors) == 0 {
		return fmt.Errorf("no re-projection errors to visualize")
	}
	xs := make([]float64, len(r.Errors))
	for i := range xs {
		xs[i] = float64(i + 1)
	}
	ex, ey := pad2(xs, r.Errors)
	last := xs[len(xs)-1]
	if last == xs[0] {
		last++
	}

	ch := chart.Chart{
		Title:  fmt.Sprintf("Re-projection error for each image, mean %.3f px", r.Stats.Mean),
		Width:  reportWidth,
		Height: reportHeight,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16},
		},
		XAxis: chart.XAxis{Name: "Image number"},
		YAxis: chart.YAxis{
			Name:  "Re-projection error, px",
			Range: &chart.ContinuousRange{Min: 0, Max: r.Stats.Max + 0.5},
		},
		Series: []chart.Series{
			chart.ContinuousSeries{Name: "Re-projection error", XValues: ex, YValues: ey, Style: pointStyle(errorColor)},
			chart.ContinuousSeries{
				Name:    "Outlier limit",
				XValues: []float64{xs[0], last},
				YValues: []float64{r.Stats.OutlierLimit, r.Stats.OutlierLimit},
				Style:   chart.Style{StrokeColor: limitColor, StrokeWidth: 2, StrokeDashArray: []float64{6, 4}},
			},
		},
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	return ch.Render(chart.PNG, w)
}
