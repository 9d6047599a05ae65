package sim

import (
	"fmt"

	"github.com/cryoscope/pitrecon/recon"
)

type tiePoint struct {
	scores   [3]float64
	valid    bool
	selected bool
}

// TiePoints is the simulated sparse point set. Points removed by a filter
// stay gone; a new alignment replaces the whole set.
type TiePoints struct {
	points []tiePoint
}

func (t *TiePoints) Len() int {
	n := 0
	for i := range t.points {
		if t.points[i].valid {
			n++
		}
	}
	return n
}

// Filter snapshots the scores for one criterion, so camera optimization
// between Select calls cannot move the thresholds under the caller.
func (t *TiePoints) Filter(c recon.Criterion) (recon.PointFilter, error) {
	switch c {
	case recon.ReconstructionUncertainty, recon.ProjectionAccuracy, recon.ReprojectionError:
	default:
		return nil, fmt.Errorf("sim: criterion %s does not apply to tie points", c)
	}
	scores := make([]float64, len(t.points))
	for i := range t.points {
		scores[i] = t.points[i].scores[int(c)]
	}
	return &pointFilter{tp: t, scores: scores}, nil
}

type pointFilter struct {
	tp     *TiePoints
	scores []float64
}

func (f *pointFilter) Select(threshold float64) (int, error) {
	n := 0
	for i := range f.tp.points {
		p := &f.tp.points[i]
		p.selected = p.valid && f.scores[i] > threshold
		if p.selected {
			n++
		}
	}
	return n, nil
}

func (f *pointFilter) Remove(threshold float64) (int, error) {
	removed := 0
	for i := range f.tp.points {
		p := &f.tp.points[i]
		if p.valid && f.scores[i] > threshold {
			p.valid = false
			removed++
		}
		p.selected = false
	}
	return removed, nil
}
