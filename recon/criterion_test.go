package recon

import (
	"errors"
	"testing"
)

func TestParseCriterion(t *testing.T) {
	testCases := map[string]struct {
		input    string
		expected Criterion
		err      error
	}{
		"ReconstructionUncertainty": {
			input:    "reconstruction_uncertainty",
			expected: ReconstructionUncertainty,
		},
		"ProjectionAccuracy": {
			input:    "projection_accuracy",
			expected: ProjectionAccuracy,
		},
		"ReprojectionError": {
			input:    "reprojection_error",
			expected: ReprojectionError,
		},
		"DepthMapConfidence": {
			input:    "depth_map_confidence",
			expected: DepthMapConfidence,
		},
		"Unknown": {
			input: "reprojection",
			err:   ErrUnknownCriterion,
		},
	}
	for name, tt := range testCases {
		tt := tt
		t.Run(name, func(t *testing.T) {
			c, err := ParseCriterion(tt.input)
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Fatalf("Expected error %v, got %v", tt.err, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if c != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, c)
			}
			if c.String() != tt.input {
				t.Errorf("Expected round-trip %q, got %q", tt.input, c.String())
			}
		})
	}
}

func TestMarkerLabel(t *testing.T) {
	for id, expected := range map[int]string{
		1: "target 1",
		6: "target 6",
	} {
		if l := MarkerLabel(id); l != expected {
			t.Errorf("Expected %q, got %q", expected, l)
		}
	}
}
