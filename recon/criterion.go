package recon

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Criterion identifies a per-point quality metric computed by the engine.
type Criterion int

const (
	// ReconstructionUncertainty is the geometric confidence metric from
	// bundle adjustment (unitless ratio).
	ReconstructionUncertainty Criterion = iota
	// ProjectionAccuracy is the estimated pixel localization error.
	ProjectionAccuracy
	// ReprojectionError is the pixel discrepancy between observed and
	// predicted image projections.
	ReprojectionError
	// DepthMapConfidence is the number of depth maps a dense-cloud point
	// was observed in.
	DepthMapConfidence
)

func (c Criterion) String() string {
	switch c {
	case ReconstructionUncertainty:
		return "reconstruction_uncertainty"
	case ProjectionAccuracy:
		return "projection_accuracy"
	case ReprojectionError:
		return "reprojection_error"
	case DepthMapConfidence:
		return "depth_map_confidence"
	}
	return fmt.Sprintf("criterion(%d)", int(c))
}

func ParseCriterion(s string) (Criterion, error) {
	for _, c := range []Criterion{
		ReconstructionUncertainty,
		ProjectionAccuracy,
		ReprojectionError,
		DepthMapConfidence,
	} {
		if c.String() == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCriterion, s)
}

func (c Criterion) MarshalYAML() (interface{}, error) {
	return c.String(), nil
}

func (c *Criterion) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseCriterion(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
