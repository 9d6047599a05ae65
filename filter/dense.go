package filter

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/cryoscope/pitrecon/recon"
)

// DenseParams configures the dense-cloud cleanup pass.
type DenseParams struct {
	// MinConfidence is the minimum number of depth maps a point must be
	// observed in. Points strictly below it are removed.
	MinConfidence uint32 `yaml:"min_confidence"`
	// Spacing is the decimation target in meters.
	Spacing float32 `yaml:"spacing"`
}

type DenseResult struct {
	LowConfidence int
	Thinned       int
	Remaining     int
}

// Dense runs the confidence filter followed by spatial decimation over the
// dense cloud. Unlike the sparse pipeline it never optimizes cameras.
type Dense struct {
	Params DenseParams
	Log    zerolog.Logger
}

func (d Dense) Run(cloud recon.DenseCloud) (DenseResult, error) {
	var res DenseResult
	removed, err := cloud.RemoveLowConfidence(d.Params.MinConfidence)
	if err != nil {
		return res, fmt.Errorf("confidence filter: %w", err)
	}
	res.LowConfidence = removed
	thinned, err := cloud.Thin(d.Params.Spacing)
	if err != nil {
		return res, fmt.Errorf("decimate: %w", err)
	}
	res.Thinned = thinned
	res.Remaining = cloud.Len()
	d.Log.Info().
		Uint32("minConfidence", d.Params.MinConfidence).
		Float32("spacing", d.Params.Spacing).
		Int("lowConfidence", res.LowConfidence).
		Int("thinned", res.Thinned).
		Int("remaining", res.Remaining).
		Msg("dense cleanup done")
	return res, nil
}
