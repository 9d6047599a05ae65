package cloud

import (
	"github.com/seqsense/pcgol/pc"
)

// passThrough compacts pp to the points accepted by fn, preserving order.
// Contiguous accepted runs are copied in blocks.
func passThrough(pp *pc.PointCloud, fn func(i int) bool) *pc.PointCloud {
	out := &pc.PointCloud{
		PointCloudHeader: pp.PointCloudHeader.Clone(),
		Data:             make([]byte, len(pp.Data)),
		Points:           pp.Points,
	}
	j := 0
	runStart, runLen := 0, 0
	for i := 0; i < pp.Points; i++ {
		if fn(i) {
			if runLen == 0 {
				runStart = i
			}
			runLen++
			continue
		}
		if runLen > 0 {
			pc.Copy(out, j, pp, runStart, runLen)
			j += runLen
			runLen = 0
		}
	}
	if runLen > 0 {
		pc.Copy(out, j, pp, runStart, runLen)
		j += runLen
	}
	out.Points = j
	out.Width = j
	out.Height = 1
	out.Data = out.Data[: j*out.Stride() : j*out.Stride()]
	return out
}
