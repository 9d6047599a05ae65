// Package profile bundles every tunable of a reconstruction run into
// named presets and applies YAML overrides on top of them. The presets
// reflect the two field seasons the workflow has been run with, which
// disagree on accuracy priors and on sparse stage order.
package profile

import (
	"fmt"
	"os"

	"github.com/seqsense/pcgol/mat"
	"gopkg.in/yaml.v3"

	"github.com/cryoscope/pitrecon/filter"
	"github.com/cryoscope/pitrecon/recon"
)

// Profile is the full parameter set of a reconstruction run.
type Profile struct {
	Name string `yaml:"name"`

	Accuracy recon.Accuracy     `yaml:"accuracy"`
	Align    recon.AlignOptions `yaml:"align"`
	// OptimizeAfterAlign runs one camera optimization right after
	// alignment, before any filtering.
	OptimizeAfterAlign bool `yaml:"optimize_after_align"`

	// MarkerTolerance is the coded-target detection tolerance, 0 to 100.
	MarkerTolerance int `yaml:"marker_tolerance"`
	// SubjectDistance is the approximate capture distance in meters,
	// handed to the engine as a depth prior. Zero leaves the engine
	// default.
	SubjectDistance float64 `yaml:"subject_distance"`

	Quality recon.DepthQuality `yaml:"quality"`
	Sparse  []filter.Stage     `yaml:"sparse"`
	Dense   filter.DenseParams `yaml:"dense"`
}

// Default is the current workflow: tight marker accuracies, the capped
// uncertainty stage first, cameras re-optimized after every stage.
func Default() Profile {
	return Profile{
		Name: "default",
		Accuracy: recon.Accuracy{
			CameraLocation:   mat.Vec3{0.5, 0.5, 0.5},
			CameraRotation:   mat.Vec3{5, 5, 5},
			MarkerLocation:   mat.Vec3{0.01, 0.01, 0.01},
			MarkerProjection: 1,
			TiePoint:         1,
			ScaleBar:         0.01,
		},
		Align: recon.AlignOptions{
			Downscale:             recon.DownscaleHighest,
			KeypointLimit:         50000,
			TiepointLimit:         10000,
			GenericPreselection:   true,
			ReferencePreselection: true,
			ResetMatches:          true,
		},
		MarkerTolerance: 25,
		SubjectDistance: 1,
		Quality:         recon.QualityUltra,
		Sparse: []filter.Stage{
			{Criterion: recon.ReconstructionUncertainty, Threshold: 10, Step: 0.25, MaxRemoved: 0.5, Optimize: true},
			{Criterion: recon.ProjectionAccuracy, Threshold: 5, Optimize: true},
			{Criterion: recon.ReprojectionError, Threshold: 0.3, Optimize: true},
		},
		Dense: filter.DenseParams{MinConfidence: 2, Spacing: 0.00025},
	}
}

// Legacy reproduces the first season's workflow: looser marker
// accuracies, no removal caps, reprojection error filtered first, and one
// camera optimization right after alignment.
func Legacy() Profile {
	return Profile{
		Name: "legacy",
		Accuracy: recon.Accuracy{
			CameraLocation: mat.Vec3{0.5, 0.5, 0.5},
			CameraRotation: mat.Vec3{5, 5, 5},
			MarkerLocation: mat.Vec3{0.05, 0.05, 0.05},
			ScaleBar:       0.03,
		},
		Align: recon.AlignOptions{
			Downscale:           recon.DownscaleHighest,
			KeypointLimit:       100000,
			TiepointLimit:       10000,
			GenericPreselection: true,
			ResetMatches:        true,
		},
		OptimizeAfterAlign: true,
		MarkerTolerance:    50,
		Quality:            recon.QualityUltra,
		Sparse: []filter.Stage{
			{Criterion: recon.ReprojectionError, Threshold: 0.3, Optimize: true},
			{Criterion: recon.ReconstructionUncertainty, Threshold: 10, Optimize: true},
			{Criterion: recon.ProjectionAccuracy, Threshold: 5, Optimize: true},
		},
		Dense: filter.DenseParams{MinConfidence: 2, Spacing: 0.00025},
	}
}

// ByName returns the named preset. An empty name means the default.
func ByName(name string) (Profile, error) {
	switch name {
	case "", "default":
		return Default(), nil
	case "legacy":
		return Legacy(), nil
	}
	return Profile{}, fmt.Errorf("unknown profile %q", name)
}

// Load reads a YAML profile file and applies it on top of the preset
// named inside it (field name, the default preset when absent). Fields
// present in the file replace the preset's, absent fields keep it.
func Load(path string) (Profile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, err
	}
	var header struct {
		Name string `yaml:"name"`
	}
	if err := yaml.Unmarshal(b, &header); err != nil {
		return Profile{}, fmt.Errorf("profile %s: %w", path, err)
	}
	p, err := ByName(header.Name)
	if err != nil {
		return Profile{}, fmt.Errorf("profile %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &p); err != nil {
		return Profile{}, fmt.Errorf("profile %s: %w", path, err)
	}
	return p, nil
}

// Validate rejects parameter combinations the pipeline cannot run with.
func (p Profile) Validate() error {
	switch p.Quality {
	case recon.QualityUltra, recon.QualityHigh, recon.QualityMedium:
	default:
		return fmt.Errorf("depth quality must be %d, %d or %d, got %d",
			recon.QualityUltra, recon.QualityHigh, recon.QualityMedium, p.Quality)
	}
	if p.MarkerTolerance < 0 || p.MarkerTolerance > 100 {
		return fmt.Errorf("marker tolerance %d outside 0..100", p.MarkerTolerance)
	}
	for i, st := range p.Sparse {
		switch st.Criterion {
		case recon.ReconstructionUncertainty, recon.ProjectionAccuracy, recon.ReprojectionError:
		default:
			return fmt.Errorf("sparse stage %d: criterion %s does not apply to tie points", i+1, st.Criterion)
		}
		if st.Threshold <= 0 {
			return fmt.Errorf("sparse stage %d: threshold must be positive, got %g", i+1, st.Threshold)
		}
		if st.MaxRemoved < 0 || st.MaxRemoved > 1 {
			return fmt.Errorf("sparse stage %d: max removed fraction %g outside 0..1", i+1, st.MaxRemoved)
		}
		if st.MaxRemoved > 0 && st.Step <= 0 {
			return fmt.Errorf("sparse stage %d: capped stage needs a positive step, got %g", i+1, st.Step)
		}
	}
	if p.Dense.Spacing <= 0 {
		return fmt.Errorf("dense spacing must be positive, got %g", p.Dense.Spacing)
	}
	return nil
}
