// Package roi restricts masks to the centered rectangle the drone can fly
// through without turning.
package roi

import (
	"image"

	"gap-navigator/internal/opencv/memory"
	"gap-navigator/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// Centered returns the breadth x height rectangle centered in a width x height
// image, clamped to the image bounds.
func Centered(width, height, breadth, roiHeight int) image.Rectangle {
	x1 := floorHalf(width - breadth)
	y1 := floorHalf(height - roiHeight)
	r := image.Rect(x1, y1, x1+breadth, y1+roiHeight)
	return r.Intersect(image.Rect(0, 0, width, height))
}

// floorHalf is floor(n/2), also for negative n.
func floorHalf(n int) int {
	if n < 0 {
		return -((1 - n) / 2)
	}
	return n / 2
}

// Apply returns a copy of mask with every pixel outside r cleared. The result
// is owned by s.
func Apply(s *memory.Scope, mask gocv.Mat, r image.Rectangle) (gocv.Mat, error) {
	if err := safe.ValidateMatType(mask, gocv.MatTypeCV8UC1, "roi mask"); err != nil {
		return gocv.Mat{}, err
	}

	out := s.NewMatWithSize(mask.Rows(), mask.Cols(), gocv.MatTypeCV8UC1)
	r = r.Intersect(image.Rect(0, 0, mask.Cols(), mask.Rows()))
	if r.Empty() {
		return out, nil
	}

	src := mask.Region(r)
	defer src.Close()
	dst := out.Region(r)
	defer dst.Close()
	src.CopyTo(&dst)
	return out, nil
}
