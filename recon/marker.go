package recon

import (
	"fmt"

	"github.com/seqsense/pcgol/mat"
)

// Marker is a fiducial target located by the detector. Position is only
// meaningful when Detected is true.
type Marker struct {
	Label    string
	Position mat.Vec3
	Detected bool
}

// ScaleBar constrains the distance between two markers to a known value.
type ScaleBar struct {
	From     string
	To       string
	Distance float64 // meters
	Accuracy float64 // meters
}

// MarkerLabel returns the label the detector assigns to the printed target
// with the given numeric id.
func MarkerLabel(id int) string {
	return fmt.Sprintf("target %d", id)
}
