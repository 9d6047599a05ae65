package filter

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/cryoscope/pitrecon/recon"
)

// Chunk is the part of the engine chunk the sparse pipeline drives.
type Chunk interface {
	TiePoints() recon.TiePoints
	OptimizeCameras() error
}

// Pipeline runs an ordered list of removal stages over the sparse cloud,
// optimizing cameras after each stage that asks for it so later criteria
// score against refined geometry.
type Pipeline struct {
	Stages []Stage
	Log    zerolog.Logger
}

func (p Pipeline) Run(chunk Chunk) ([]StageResult, error) {
	tp := chunk.TiePoints()
	results := make([]StageResult, 0, len(p.Stages))
	for _, st := range p.Stages {
		res, err := st.Apply(tp)
		if err != nil {
			return results, fmt.Errorf("sparse filter: %w", err)
		}
		if st.Optimize {
			if err := chunk.OptimizeCameras(); err != nil {
				return results, fmt.Errorf("optimize cameras after %s: %w", st.Criterion, err)
			}
			res.Optimized = true
		}
		p.Log.Info().
			Stringer("criterion", res.Criterion).
			Float64("threshold", res.Threshold).
			Int("searchSteps", res.SearchSteps).
			Int("removed", res.Removed).
			Int("remaining", res.Remaining).
			Bool("optimized", res.Optimized).
			Msg("removal stage done")
		results = append(results, res)
	}
	return results, nil
}
