// Package frametest builds synthetic frames for tests without a camera.
package frametest

import (
	"image"

	"gap-navigator/internal/frame"

	"gocv.io/x/gocv"
)

// Depth returns a w x h depth map filled with z meters.
func Depth(w, h int, z float64) frame.DepthMap {
	return frame.NewDepthMap(gocv.NewMatWithSizeFromScalar(gocv.NewScalar(z, 0, 0, 0), h, w, gocv.MatTypeCV32FC1))
}

// FillDepth sets every pixel of r to z.
func FillDepth(d frame.DepthMap, r image.Rectangle, z float64) {
	fill(&d.Mat, r, gocv.NewScalar(z, 0, 0, 0))
}

// Color returns a w x h BGR image of a single color.
func Color(w, h int, b, g, r float64) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(b, g, r, 0), h, w, gocv.MatTypeCV8UC3)
}

// FillColor paints rect with a BGR color.
func FillColor(m gocv.Mat, rect image.Rectangle, b, g, r float64) {
	fill(&m, rect, gocv.NewScalar(b, g, r, 0))
}

// Mask returns a w x h CV_8UC1 mask with every pixel of on set to 255.
func Mask(w, h int, on ...image.Rectangle) gocv.Mat {
	m := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC1)
	m.SetTo(gocv.NewScalar(0, 0, 0, 0))
	for _, r := range on {
		fill(&m, r, gocv.NewScalar(255, 0, 0, 0))
	}
	return m
}

// Frame assembles a complete gray frame around depth.
func Frame(seq uint64, depth frame.DepthMap) frame.Frame {
	return frame.Frame{
		Seq:   seq,
		Color: Color(depth.Width(), depth.Height(), 90, 90, 90),
		Depth: depth,
	}
}

// CountNonZeroOutside counts set pixels of mask lying outside r.
func CountNonZeroOutside(mask gocv.Mat, r image.Rectangle) int {
	n := 0
	for y := 0; y < mask.Rows(); y++ {
		for x := 0; x < mask.Cols(); x++ {
			if image.Pt(x, y).In(r) {
				continue
			}
			if mask.GetUCharAt(y, x) != 0 {
				n++
			}
		}
	}
	return n
}

func fill(m *gocv.Mat, r image.Rectangle, s gocv.Scalar) {
	r = r.Intersect(image.Rect(0, 0, m.Cols(), m.Rows()))
	if r.Empty() {
		return
	}
	region := m.Region(r)
	defer region.Close()
	region.SetTo(s)
}
