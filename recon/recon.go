// Package recon defines the contract between the pipeline driver and a
// photogrammetric reconstruction engine: a project with a single chunk,
// tie points with per-criterion quality scores, a dense cloud, markers and
// scale-bar constraints. Engines implement these interfaces; the driver
// never depends on a concrete one.
package recon

import (
	"github.com/seqsense/pcgol/mat"
)

// DepthQuality is the depth-map resolution divider used when the dense
// cloud is computed.
type DepthQuality int

const (
	QualityUltra  DepthQuality = 1
	QualityHigh   DepthQuality = 2
	QualityMedium DepthQuality = 4
)

// Downscale is the image resolution divider used during feature matching.
type Downscale int

const (
	DownscaleHighest Downscale = 0
	DownscaleHigh    Downscale = 1
	DownscaleMedium  Downscale = 2
)

// AlignOptions configures feature matching and camera alignment.
type AlignOptions struct {
	Downscale             Downscale `yaml:"downscale"`
	KeypointLimit         int       `yaml:"keypoint_limit"`
	TiepointLimit         int       `yaml:"tiepoint_limit"`
	GenericPreselection   bool      `yaml:"generic_preselection"`
	ReferencePreselection bool      `yaml:"reference_preselection"`
	// ResetMatches discards feature matches from any earlier alignment
	// before matching again.
	ResetMatches bool `yaml:"reset_matches"`
}

// PointFilter scores tie points by one quality criterion. The scores are
// computed when the filter is obtained and stay fixed until the next
// Filter call or camera optimization.
type PointFilter interface {
	// Select marks every valid point whose score exceeds threshold,
	// replacing any previous marking, and returns the marked count.
	Select(threshold float64) (int, error)
	// Remove permanently drops every valid point whose score exceeds
	// threshold and unmarks the remaining points. It returns the
	// removed count.
	Remove(threshold float64) (int, error)
}

// TiePoints is the sparse point set produced by alignment. Removed points
// never reappear.
type TiePoints interface {
	// Len returns the number of valid points.
	Len() int
	Filter(c Criterion) (PointFilter, error)
}

// DenseCloud is the point set computed from depth maps.
type DenseCloud interface {
	Len() int
	// RemoveLowConfidence drops every point observed in fewer than min
	// depth maps and resets the confidence filter state afterwards.
	RemoveLowConfidence(min uint32) (int, error)
	// Thin decimates the cloud so that no two remaining points are
	// closer than spacing (meters). It returns the number of dropped
	// points.
	Thin(spacing float32) (int, error)
}

type Chunk interface {
	SetLabel(label string)
	AddPhotos(paths []string) error
	CameraCount() int
	SetAccuracy(a Accuracy) error
	// SetSubjectDistance records the approximate capture distance in
	// meters, used by the engine as a depth prior.
	SetSubjectDistance(meters float64) error
	DetectMarkers(tolerance int) error
	Markers() []Marker
	AddScaleBar(from, to string, distance, accuracy float64) (ScaleBar, error)
	// UpdateTransform recomputes the chunk transform so registered
	// scale bars take effect.
	UpdateTransform() error
	AlignCameras(o AlignOptions) error
	OptimizeCameras() error
	TiePoints() TiePoints
	BuildDenseCloud(q DepthQuality) error
	DenseCloud() (DenseCloud, error)
}

type Project interface {
	Chunk() Chunk
	Save() error
	ExportPointCloud(path string) error
}

// Accuracy is the set of measurement priors passed to camera optimization.
// Distances are meters, angles degrees, projections pixels. A zero field
// leaves the engine default untouched.
type Accuracy struct {
	CameraLocation   mat.Vec3 `yaml:"camera_location"`
	CameraRotation   mat.Vec3 `yaml:"camera_rotation"`
	MarkerLocation   mat.Vec3 `yaml:"marker_location"`
	MarkerProjection float64  `yaml:"marker_projection"`
	TiePoint         float64  `yaml:"tie_point"`
	ScaleBar         float64  `yaml:"scale_bar"`
}
