// Package cloud implements dense point cloud operations on the PCD point
// cloud representation: the depth-map confidence filter, decimation to a
// minimum point spacing, voxel-grid downsampling for preview artifacts,
// and file IO.
package cloud

import (
	"errors"
	"fmt"

	"github.com/seqsense/pcgol/mat"
	"github.com/seqsense/pcgol/pc"
	"github.com/seqsense/pcgol/pc/filter/voxelgrid"
)

// FieldConfidence is the PCD field holding the number of depth maps each
// point was observed in.
const FieldConfidence = "confidence"

var (
	errNoPosition         = errors.New("point cloud has no position fields")
	errNoConfidence       = errors.New("point cloud has no confidence field")
	errNonpositiveSpacing = errors.New("nonpositive point spacing")
)

// Cloud is a dense point cloud with per-point confidence counts.
type Cloud struct {
	pp *pc.PointCloud
}

// New wraps an existing point cloud. It requires x/y/z and a confidence
// field.
func New(pp *pc.PointCloud) (*Cloud, error) {
	if _, err := pp.Vec3Iterator(); err != nil {
		return nil, errNoPosition
	}
	if _, err := pp.Uint32Iterator(FieldConfidence); err != nil {
		return nil, errNoConfidence
	}
	return &Cloud{pp: pp}, nil
}

// Empty returns an x/y/z/confidence cloud with n zeroed points.
func Empty(n int) *Cloud {
	pp := &pc.PointCloud{
		PointCloudHeader: pc.PointCloudHeader{
			Version: 0.7,
			Fields:  []string{"x", "y", "z", FieldConfidence},
			Size:    []int{4, 4, 4, 4},
			Type:    []string{"F", "F", "F", "U"},
			Count:   []int{1, 1, 1, 1},
			Width:   n,
			Height:  1,
		},
		Points: n,
	}
	pp.Data = make([]byte, n*pp.Stride())
	return &Cloud{pp: pp}
}

func (c *Cloud) PointCloud() *pc.PointCloud { return c.pp }

func (c *Cloud) Len() int { return c.pp.Points }

func (c *Cloud) Vec3Iterator() (pc.Vec3Iterator, error) {
	return c.pp.Vec3Iterator()
}

func (c *Cloud) ConfidenceIterator() (pc.Uint32Iterator, error) {
	return c.pp.Uint32Iterator(FieldConfidence)
}

// RemoveLowConfidence drops every point observed in fewer than min depth
// maps. The confidence snapshot used for the pass is discarded afterwards,
// so no filter state lingers on the cloud.
func (c *Cloud) RemoveLowConfidence(min uint32) (int, error) {
	it, err := c.pp.Uint32Iterator(FieldConfidence)
	if err != nil {
		return 0, errNoConfidence
	}
	conf := make([]uint32, c.pp.Points)
	for i := 0; it.IsValid(); it.Incr() {
		conf[i] = it.Uint32()
		i++
	}
	before := c.pp.Points
	c.pp = passThrough(c.pp, func(i int) bool {
		return conf[i] >= min
	})
	return before - c.pp.Points, nil
}

// Downsample grid-averages pp to the given leaf size. Used for preview
// artifacts, not for the calibrated export.
func Downsample(pp *pc.PointCloud, leaf float32) (*pc.PointCloud, error) {
	if leaf <= 0 {
		return nil, errNonpositiveSpacing
	}
	vg := voxelgrid.New(mat.Vec3{leaf, leaf, leaf})
	out, err := vg.Filter(pp)
	if err != nil {
		return nil, fmt.Errorf("downsample: %w", err)
	}
	return out, nil
}
