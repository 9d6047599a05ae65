// Package filter implements the adaptive quality filtering passes over the
// sparse and dense point clouds: a capped threshold search, single removal
// stages, and the two pipeline variants composing them.
package filter

import (
	"fmt"

	"github.com/cryoscope/pitrecon/recon"
)

const defaultMaxSearchSteps = 1000

// NonConvergenceError reports a threshold search that could not bring the
// marked fraction under the cap within the step budget, or observed the
// marked count growing as the threshold rose.
type NonConvergenceError struct {
	LastThreshold float64
	Steps         int
}

func (e *NonConvergenceError) Error() string {
	return fmt.Sprintf("threshold search did not converge after %d steps (last threshold %g)",
		e.Steps, e.LastThreshold)
}

// Search walks a threshold upward from Initial in fixed Step increments
// until the fraction of marked points is at most MaxFraction.
type Search struct {
	Initial     float64
	Step        float64
	MaxFraction float64
	MaxSteps    int // 0 means defaultMaxSearchSteps
}

// Run returns the first tried threshold whose marked fraction is within the
// cap, together with the number of steps taken, leaving that threshold's
// marking applied. The fraction denominator is the valid point count at
// entry, so removal between searches never inflates later fractions.
func (s Search) Run(tp recon.TiePoints, f recon.PointFilter) (float64, int, error) {
	total := tp.Len()
	if total == 0 {
		return 0, 0, recon.ErrEmptyPointSet
	}
	maxSteps := s.MaxSteps
	if maxSteps == 0 {
		maxSteps = defaultMaxSearchSteps
	}

	t := s.Initial
	marked, err := f.Select(t)
	if err != nil {
		return 0, 0, err
	}
	steps := 0
	for float64(marked) > s.MaxFraction*float64(total) {
		if steps >= maxSteps {
			return 0, steps, &NonConvergenceError{LastThreshold: t, Steps: steps}
		}
		steps++
		t += s.Step
		m, err := f.Select(t)
		if err != nil {
			return 0, steps, err
		}
		if m > marked {
			// The criterion's marked count must not grow with the
			// threshold, or the walk would never terminate.
			return 0, steps, &NonConvergenceError{LastThreshold: t, Steps: steps}
		}
		marked = m
	}
	return t, steps, nil
}
