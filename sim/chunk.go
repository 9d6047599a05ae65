package sim

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/seqsense/pcgol/mat"

	"github.com/cryoscope/pitrecon/cloud"
	"github.com/cryoscope/pitrecon/recon"
)

// Score distributions for freshly aligned tie points. Exponential tails
// keep most points near the base value with a sprinkle of outliers, which
// is what threshold walks have to cope with on real scenes.
const (
	ruBase, ruScale = 1.0, 6.0
	paBase, paScale = 0.5, 2.0
	reBase, reScale = 0.05, 0.12

	// refineFactor shrinks every surviving score on camera
	// optimization. Below one, so repeated filtering settles.
	refineFactor = 0.9
)

var errNotAligned = errors.New("sim: cameras not aligned")

// Chunk is the single chunk of a simulated project.
type Chunk struct {
	opts Options
	rng  *rand.Rand

	label           string
	photos          []string
	accuracy        recon.Accuracy
	subjectDistance float64

	markers   []recon.Marker
	bars      []recon.ScaleBar
	tolerance int
	scale     float64

	aligned   bool
	tiePoints *TiePoints
	dense     *cloud.Cloud

	optimizations    int
	transformUpdates int
}

func newChunk(o Options) *Chunk {
	return &Chunk{
		opts:      o,
		rng:       rand.New(rand.NewSource(o.Seed)),
		scale:     1,
		tiePoints: &TiePoints{},
	}
}

func (c *Chunk) SetLabel(label string) { c.label = label }

func (c *Chunk) AddPhotos(paths []string) error {
	if len(paths) == 0 {
		return recon.ErrNoPhotos
	}
	c.photos = append(c.photos, paths...)
	return nil
}

func (c *Chunk) CameraCount() int { return len(c.photos) }

func (c *Chunk) SetAccuracy(a recon.Accuracy) error {
	c.accuracy = a
	return nil
}

func (c *Chunk) SetSubjectDistance(meters float64) error {
	c.subjectDistance = meters
	return nil
}

// DetectMarkers lays the targets out in pairs along the pit face, one
// pair every half meter, the pair mates MarkerPitch apart. Each target is
// found with probability DetectRate.
func (c *Chunk) DetectMarkers(tolerance int) error {
	if len(c.photos) == 0 {
		return recon.ErrNoPhotos
	}
	c.tolerance = tolerance
	c.markers = c.markers[:0]
	for id := 1; id <= c.opts.MarkerCount; id++ {
		pair := (id - 1) / 2
		side := (id - 1) % 2
		c.markers = append(c.markers, recon.Marker{
			Label: recon.MarkerLabel(id),
			Position: mat.Vec3{
				float32(pair) * 0.5,
				float32(side) * float32(c.opts.MarkerPitch),
				0,
			},
			Detected: c.rng.Float64() < c.opts.DetectRate,
		})
	}
	return nil
}

func (c *Chunk) Markers() []recon.Marker {
	out := make([]recon.Marker, len(c.markers))
	copy(out, c.markers)
	return out
}

func (c *Chunk) markerByLabel(label string) (recon.Marker, bool) {
	for _, m := range c.markers {
		if m.Label == label {
			return m, true
		}
	}
	return recon.Marker{}, false
}

func (c *Chunk) AddScaleBar(from, to string, distance, accuracy float64) (recon.ScaleBar, error) {
	for _, label := range []string{from, to} {
		if m, ok := c.markerByLabel(label); !ok || !m.Detected {
			return recon.ScaleBar{}, fmt.Errorf("sim: marker %q not detected", label)
		}
	}
	bar := recon.ScaleBar{From: from, To: to, Distance: distance, Accuracy: accuracy}
	c.bars = append(c.bars, bar)
	return bar, nil
}

// UpdateTransform rescales the model so registered bars match their
// measured distances, averaging over all resolvable bars.
func (c *Chunk) UpdateTransform() error {
	c.transformUpdates++
	var sum float64
	var n int
	for _, b := range c.bars {
		from, okFrom := c.markerByLabel(b.From)
		to, okTo := c.markerByLabel(b.To)
		if !okFrom || !okTo {
			continue
		}
		if d := float64(from.Position.Sub(to.Position).Norm()); d > 0 {
			sum += b.Distance / d
			n++
		}
	}
	if n > 0 {
		c.scale = sum / float64(n)
	}
	return nil
}

func (c *Chunk) AlignCameras(o recon.AlignOptions) error {
	if len(c.photos) == 0 {
		return recon.ErrNoPhotos
	}
	perCamera := c.opts.TiePointsPerCamera
	if o.TiepointLimit > 0 && o.TiepointLimit < perCamera {
		perCamera = o.TiepointLimit
	}
	points := make([]tiePoint, len(c.photos)*perCamera)
	for i := range points {
		points[i] = tiePoint{
			scores: [3]float64{
				ruBase + c.rng.ExpFloat64()*ruScale,
				paBase + c.rng.ExpFloat64()*paScale,
				reBase + c.rng.ExpFloat64()*reScale,
			},
			valid: true,
		}
	}
	c.tiePoints.points = points
	c.aligned = true
	return nil
}

func (c *Chunk) OptimizeCameras() error {
	c.optimizations++
	for i := range c.tiePoints.points {
		p := &c.tiePoints.points[i]
		if !p.valid {
			continue
		}
		for k := range p.scores {
			p.scores[k] *= refineFactor
		}
	}
	return nil
}

func (c *Chunk) TiePoints() recon.TiePoints { return c.tiePoints }

// BuildDenseCloud generates DensePointsPerCamera/quality points per photo
// on a shallow surface patch, with confidence counts between 1 and 7.
func (c *Chunk) BuildDenseCloud(q recon.DepthQuality) error {
	if !c.aligned {
		return errNotAligned
	}
	if q <= 0 {
		q = recon.QualityUltra
	}
	n := len(c.photos) * c.opts.DensePointsPerCamera / int(q)
	dense := cloud.Empty(n)
	it, err := dense.Vec3Iterator()
	if err != nil {
		return err
	}
	ct, err := dense.ConfidenceIterator()
	if err != nil {
		return err
	}
	extent := float32(0.6 * c.scale)
	for i := 0; i < n; i++ {
		it.SetVec3(mat.Vec3{
			c.rng.Float32() * extent,
			c.rng.Float32() * extent,
			c.rng.Float32() * 0.04,
		})
		ct.SetUint32(uint32(1 + c.rng.Intn(7)))
		it.Incr()
		ct.Incr()
	}
	c.dense = dense
	return nil
}

func (c *Chunk) DenseCloud() (recon.DenseCloud, error) {
	if c.dense == nil {
		return nil, recon.ErrNoDenseCloud
	}
	return c.dense, nil
}
