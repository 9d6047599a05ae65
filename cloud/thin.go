package cloud

import (
	"github.com/seqsense/pcgol/mat"
	"github.com/seqsense/pcgol/pc"
)

// occupancy is a sparse voxel index over kept points. Cell edge equals the
// spacing, so any point within spacing of p lies in one of the 27 cells
// around p's cell.
type occupancy struct {
	origin        mat.Vec3
	resolutionInv float32
	cells         map[[3]int][]mat.Vec3
}

func newOccupancy(resolution float32, origin mat.Vec3) *occupancy {
	return &occupancy{
		origin:        origin,
		resolutionInv: 1 / resolution,
		cells:         make(map[[3]int][]mat.Vec3),
	}
}

func (o *occupancy) posInt(p mat.Vec3) [3]int {
	pos := p.Sub(o.origin)
	return [3]int{
		int(pos[0] * o.resolutionInv),
		int(pos[1] * o.resolutionInv),
		int(pos[2] * o.resolutionInv),
	}
}

func (o *occupancy) add(p mat.Vec3) {
	c := o.posInt(p)
	o.cells[c] = append(o.cells[c], p)
}

func (o *occupancy) hasNeighbor(p mat.Vec3, radius float32) bool {
	c := o.posInt(p)
	rsq := radius * radius
	for dz := -1; dz <= 1; dz++ {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				cell := [3]int{c[0] + dx, c[1] + dy, c[2] + dz}
				for _, q := range o.cells[cell] {
					if p.Sub(q).NormSq() < rsq {
						return true
					}
				}
			}
		}
	}
	return false
}

// Thin greedily drops points until no two remaining points are closer than
// spacing, keeping the first point of each crowded neighborhood in cloud
// order. It returns the number of dropped points.
func (c *Cloud) Thin(spacing float32) (int, error) {
	if spacing <= 0 {
		return 0, errNonpositiveSpacing
	}
	if c.pp.Points == 0 {
		return 0, nil
	}

	it, err := c.pp.Vec3Iterator()
	if err != nil {
		return 0, errNoPosition
	}
	min, _, err := pc.MinMaxVec3(it)
	if err != nil {
		return 0, err
	}

	grid := newOccupancy(spacing, min)
	keep := make([]bool, c.pp.Points)
	it, err = c.pp.Vec3Iterator()
	if err != nil {
		return 0, errNoPosition
	}
	for i := 0; it.IsValid(); it.Incr() {
		p := it.Vec3()
		if !grid.hasNeighbor(p, spacing) {
			keep[i] = true
			grid.add(p)
		}
		i++
	}

	before := c.pp.Points
	c.pp = passThrough(c.pp, func(i int) bool {
		return keep[i]
	})
	return before - c.pp.Points, nil
}
