package filter

import (
	"fmt"

	"github.com/cryoscope/pitrecon/recon"
)

// Stage removes tie points scoring above a threshold under one criterion.
// A zero MaxRemoved applies Threshold verbatim in a single pass; a positive
// MaxRemoved runs a threshold search first so no more than that fraction of
// the valid points is removed.
type Stage struct {
	Criterion  recon.Criterion `yaml:"criterion"`
	Threshold  float64         `yaml:"threshold"`
	Step       float64         `yaml:"step,omitempty"`
	MaxRemoved float64         `yaml:"max_removed,omitempty"`
	Optimize   bool            `yaml:"optimize"`
}

// StageResult records what one removal stage did.
type StageResult struct {
	Criterion   recon.Criterion
	Threshold   float64 // threshold actually applied
	SearchSteps int
	Removed     int
	Remaining   int
	Optimized   bool
}

// Apply runs the stage against the tie points. Removing zero points is a
// valid outcome; the remaining points are left unmarked.
func (st Stage) Apply(tp recon.TiePoints) (StageResult, error) {
	res := StageResult{Criterion: st.Criterion, Threshold: st.Threshold}
	f, err := tp.Filter(st.Criterion)
	if err != nil {
		return res, fmt.Errorf("%s: %w", st.Criterion, err)
	}
	if st.MaxRemoved > 0 {
		s := Search{Initial: st.Threshold, Step: st.Step, MaxFraction: st.MaxRemoved}
		t, steps, err := s.Run(tp, f)
		if err != nil {
			return res, fmt.Errorf("%s: %w", st.Criterion, err)
		}
		res.Threshold = t
		res.SearchSteps = steps
	}
	removed, err := f.Remove(res.Threshold)
	if err != nil {
		return res, fmt.Errorf("%s: %w", st.Criterion, err)
	}
	res.Removed = removed
	res.Remaining = tp.Len()
	return res, nil
}
