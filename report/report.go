// Package report renders the end-of-run artifacts: a multi-page PDF with
// the sparse filter trajectory, per-stage removals and the dense
// confidence histogram, plus a YAML summary carrying the numbers behind
// the charts.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgpdf"
	"gopkg.in/yaml.v3"

	"github.com/cryoscope/pitrecon/filter"
	"github.com/cryoscope/pitrecon/recon"
)

// Data is everything the orchestrator hands over for rendering.
type Data struct {
	Project   string
	Profile   string
	RunID     string
	Cameras   int
	TiePoints int
	Markers   []recon.Marker
	ScaleBars []recon.ScaleBar
	Stages    []filter.StageResult
	Dense     filter.DenseResult
	// Confidences are the per-point depth map counts of the exported
	// cloud.
	Confidences []uint32
}

// Write renders the PDF and the YAML summary into dir, named after the
// project. Charts without data are left out.
func Write(dir string, d Data) error {
	if err := writePDF(filepath.Join(dir, d.Project+".pdf"), d); err != nil {
		return fmt.Errorf("report pdf: %w", err)
	}
	if err := writeSummary(filepath.Join(dir, d.Project+"_report.yaml"), d); err != nil {
		return fmt.Errorf("report summary: %w", err)
	}
	return nil
}

func writePDF(path string, d Data) error {
	var plots []*plot.Plot
	if len(d.Stages) > 0 {
		p, err := remainingPlot(d)
		if err != nil {
			return err
		}
		plots = append(plots, p)
		p, err = removedPlot(d)
		if err != nil {
			return err
		}
		plots = append(plots, p)
	}
	if len(d.Confidences) > 0 {
		p, err := confidencePlot(d)
		if err != nil {
			return err
		}
		plots = append(plots, p)
	}
	if len(plots) == 0 {
		return nil
	}

	c := vgpdf.New(8*vg.Inch, 5*vg.Inch)
	for i, p := range plots {
		if i > 0 {
			c.NextPage()
		}
		p.Draw(draw.New(c))
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := c.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// remainingPlot traces the valid tie point count across the sparse
// stages, starting from the pre-filter count.
func remainingPlot(d Data) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = d.Project + " - Sparse Filtering"
	p.X.Label.Text = "Stage"
	p.Y.Label.Text = "Tie Points"

	pts := make(plotter.XYs, 0, len(d.Stages)+1)
	initial := d.Stages[0].Remaining + d.Stages[0].Removed
	pts = append(pts, plotter.XY{X: 0, Y: float64(initial)})
	for i, st := range d.Stages {
		pts = append(pts, plotter.XY{X: float64(i + 1), Y: float64(st.Remaining)})
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add("remaining", line)
	p.Legend.Top = true
	return p, nil
}

func removedPlot(d Data) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = d.Project + " - Removals per Stage"
	p.Y.Label.Text = "Points Removed"

	vals := make(plotter.Values, len(d.Stages))
	names := make([]string, len(d.Stages))
	for i, st := range d.Stages {
		vals[i] = float64(st.Removed)
		names[i] = st.Criterion.String()
	}
	bars, err := plotter.NewBarChart(vals, vg.Points(30))
	if err != nil {
		return nil, err
	}
	p.Add(bars)
	p.NominalX(names...)
	return p, nil
}

func confidencePlot(d Data) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = d.Project + " - Depth Map Confidence"
	p.X.Label.Text = "Depth Maps per Point"
	p.Y.Label.Text = "Points"

	vals := make(plotter.Values, len(d.Confidences))
	max := 1
	for i, c := range d.Confidences {
		vals[i] = float64(c)
		if int(c) > max {
			max = int(c)
		}
	}
	bins := max
	if bins > 32 {
		bins = 32
	}
	hist, err := plotter.NewHist(vals, bins)
	if err != nil {
		return nil, err
	}
	p.Add(hist)
	return p, nil
}

type stageSummary struct {
	Criterion   string  `yaml:"criterion"`
	Threshold   float64 `yaml:"threshold"`
	SearchSteps int     `yaml:"search_steps"`
	Removed     int     `yaml:"removed"`
	Remaining   int     `yaml:"remaining"`
	Optimized   bool    `yaml:"optimized"`
}

type confidenceSummary struct {
	Mean   float64 `yaml:"mean"`
	StdDev float64 `yaml:"std_dev"`
	Median float64 `yaml:"median"`
	Min    uint32  `yaml:"min"`
	Max    uint32  `yaml:"max"`
}

type summary struct {
	Project         string             `yaml:"project"`
	Profile         string             `yaml:"profile"`
	RunID           string             `yaml:"run_id"`
	Cameras         int                `yaml:"cameras"`
	TiePoints       int                `yaml:"tie_points"`
	MarkersDetected int                `yaml:"markers_detected"`
	MarkersTotal    int                `yaml:"markers_total"`
	ScaleBars       int                `yaml:"scale_bars"`
	Stages          []stageSummary     `yaml:"stages,omitempty"`
	LowConfidence   int                `yaml:"low_confidence_removed"`
	Thinned         int                `yaml:"thinned"`
	DensePoints     int                `yaml:"dense_points"`
	Confidence      *confidenceSummary `yaml:"confidence,omitempty"`
}

func writeSummary(path string, d Data) error {
	s := summary{
		Project:       d.Project,
		Profile:       d.Profile,
		RunID:         d.RunID,
		Cameras:       d.Cameras,
		TiePoints:     d.TiePoints,
		MarkersTotal:  len(d.Markers),
		ScaleBars:     len(d.ScaleBars),
		LowConfidence: d.Dense.LowConfidence,
		Thinned:       d.Dense.Thinned,
		DensePoints:   d.Dense.Remaining,
	}
	for _, m := range d.Markers {
		if m.Detected {
			s.MarkersDetected++
		}
	}
	for _, st := range d.Stages {
		s.Stages = append(s.Stages, stageSummary{
			Criterion:   st.Criterion.String(),
			Threshold:   st.Threshold,
			SearchSteps: st.SearchSteps,
			Removed:     st.Removed,
			Remaining:   st.Remaining,
			Optimized:   st.Optimized,
		})
	}
	if len(d.Confidences) > 0 {
		s.Confidence = confidenceStats(d.Confidences)
	}
	b, err := yaml.Marshal(&s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func confidenceStats(confidences []uint32) *confidenceSummary {
	xs := make([]float64, len(confidences))
	min, max := confidences[0], confidences[0]
	for i, c := range confidences {
		xs[i] = float64(c)
		if c < min {
			min = c
		}
		if c > max {
			max = c
		}
	}
	sort.Float64s(xs)
	return &confidenceSummary{
		Mean:   stat.Mean(xs, nil),
		StdDev: stat.StdDev(xs, nil),
		Median: stat.Quantile(0.5, stat.Empirical, xs, nil),
		Min:    min,
		Max:    max,
	}
}
