// Package sim is an in-process reconstruction engine used to rehearse the
// pipeline without Agisoft licenses or imagery. It generates tie-point
// quality scores and dense points from a seeded random source, so a run is
// reproducible given the same seed and the same sequence of operations.
// Camera optimization shrinks every surviving score by a fixed factor,
// which makes repeated filtering settle instead of oscillating.
package sim

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cryoscope/pitrecon/cloud"
	"github.com/cryoscope/pitrecon/recon"
)

const (
	defaultMarkerCount          = 6
	defaultMarkerPitch          = 0.35
	defaultDetectRate           = 0.92
	defaultTiePointsPerCamera   = 1500
	defaultDensePointsPerCamera = 4000
)

// Options tunes the synthetic scene. Zero fields fall back to defaults.
type Options struct {
	// Seed drives every random draw the engine makes.
	Seed int64
	// MarkerCount is the number of coded targets laid out in the scene,
	// in pairs along the pit face.
	MarkerCount int
	// MarkerPitch is the true distance in meters between the two
	// targets of a pair.
	MarkerPitch float64
	// DetectRate is the probability that a target is found on the
	// photos.
	DetectRate float64
	// TiePointsPerCamera and DensePointsPerCamera size the generated
	// point sets.
	TiePointsPerCamera   int
	DensePointsPerCamera int
}

func (o Options) withDefaults() Options {
	if o.MarkerCount == 0 {
		o.MarkerCount = defaultMarkerCount
	}
	if o.MarkerPitch == 0 {
		o.MarkerPitch = defaultMarkerPitch
	}
	if o.DetectRate == 0 {
		o.DetectRate = defaultDetectRate
	}
	if o.TiePointsPerCamera == 0 {
		o.TiePointsPerCamera = defaultTiePointsPerCamera
	}
	if o.DensePointsPerCamera == 0 {
		o.DensePointsPerCamera = defaultDensePointsPerCamera
	}
	return o
}

// Project is a simulated reconstruction project with a single chunk.
type Project struct {
	path  string
	chunk *Chunk
}

// NewProject creates a fresh simulated project. Save writes its state
// snapshot to path.
func NewProject(path string, o Options) *Project {
	return &Project{
		path:  path,
		chunk: newChunk(o.withDefaults()),
	}
}

func (p *Project) Chunk() recon.Chunk { return p.chunk }

type markerState struct {
	Label    string `yaml:"label"`
	Detected bool   `yaml:"detected"`
}

type barState struct {
	From     string  `yaml:"from"`
	To       string  `yaml:"to"`
	Distance float64 `yaml:"distance"`
	Accuracy float64 `yaml:"accuracy"`
}

type projectState struct {
	Label            string        `yaml:"label"`
	Photos           int           `yaml:"photos"`
	Aligned          bool          `yaml:"aligned"`
	TiePoints        int           `yaml:"tie_points"`
	DensePoints      int           `yaml:"dense_points"`
	Optimizations    int           `yaml:"optimizations"`
	TransformUpdates int           `yaml:"transform_updates"`
	Scale            float64       `yaml:"scale"`
	SubjectDistance  float64       `yaml:"subject_distance"`
	Markers          []markerState `yaml:"markers,omitempty"`
	ScaleBars        []barState    `yaml:"scale_bars,omitempty"`
}

// Save writes a YAML snapshot of the chunk state to the project path. The
// snapshot records counts and registrations, not point data; a rerun with
// the same seed rebuilds those.
func (p *Project) Save() error {
	c := p.chunk
	state := projectState{
		Label:            c.label,
		Photos:           len(c.photos),
		Aligned:          c.aligned,
		TiePoints:        c.tiePoints.Len(),
		Optimizations:    c.optimizations,
		TransformUpdates: c.transformUpdates,
		Scale:            c.scale,
		SubjectDistance:  c.subjectDistance,
	}
	if c.dense != nil {
		state.DensePoints = c.dense.Len()
	}
	for _, m := range c.markers {
		state.Markers = append(state.Markers, markerState{Label: m.Label, Detected: m.Detected})
	}
	for _, b := range c.bars {
		state.ScaleBars = append(state.ScaleBars, barState{
			From: b.From, To: b.To, Distance: b.Distance, Accuracy: b.Accuracy,
		})
	}
	b, err := yaml.Marshal(&state)
	if err != nil {
		return err
	}
	return os.WriteFile(p.path, b, 0o644)
}

// ExportPointCloud writes the dense cloud as compressed PCD.
func (p *Project) ExportPointCloud(path string) error {
	if p.chunk.dense == nil {
		return recon.ErrNoDenseCloud
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := cloud.Write(f, p.chunk.dense.PointCloud(), cloud.BinaryCompressed); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
