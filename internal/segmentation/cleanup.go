package segmentation

import (
	"fmt"
	"image"

	"gap-navigator/internal/opencv/memory"
	"gap-navigator/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// Cleanup opens mask with an ellipse of kernelPx to drop speckle, then closes
// it with a kernel two pixels larger to fill pin holes left by missing depth
// returns. kernelPx < 2 returns mask unchanged.
func Cleanup(s *memory.Scope, mask gocv.Mat, kernelPx int) (gocv.Mat, error) {
	if kernelPx < 2 {
		return mask, nil
	}
	if err := safe.ValidateMatType(mask, gocv.MatTypeCV8UC1, "mask cleanup"); err != nil {
		return gocv.Mat{}, err
	}
	if kernelPx > mask.Cols() || kernelPx > mask.Rows() {
		return gocv.Mat{}, fmt.Errorf("cleanup kernel %d exceeds mask %dx%d", kernelPx, mask.Cols(), mask.Rows())
	}

	openKernel := s.Adopt(gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(kernelPx, kernelPx)))
	closeKernel := s.Adopt(gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(kernelPx+2, kernelPx+2)))

	opened := s.NewMat()
	gocv.MorphologyEx(mask, &opened, gocv.MorphOpen, openKernel)

	closed := s.NewMat()
	gocv.MorphologyEx(opened, &closed, gocv.MorphClose, closeKernel)
	return closed, nil
}
