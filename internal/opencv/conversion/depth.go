// Package conversion renders depth maps for inspection.
package conversion

import (
	"fmt"

	"gap-navigator/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// DepthAlpha maps meters onto 0..255 so that 8.5 m saturates; it matches the
// 0.03 per millimeter scale the RealSense viewer uses.
const DepthAlpha = 30.0

// DepthColormap scales a CV_32FC1 depth map in meters by alpha, saturates it
// to 8 bits and applies the HSV colormap. The caller owns the result.
func DepthColormap(depth gocv.Mat, alpha float64) (gocv.Mat, error) {
	if err := safe.ValidateMatType(depth, gocv.MatTypeCV32FC1, "depth colormap"); err != nil {
		return gocv.Mat{}, err
	}
	if alpha <= 0 {
		return gocv.Mat{}, fmt.Errorf("depth colormap alpha must be > 0, got %v", alpha)
	}

	scaled := gocv.NewMat()
	defer scaled.Close()
	gocv.ConvertScaleAbs(depth, &scaled, alpha, 0)

	out := gocv.NewMat()
	gocv.ApplyColorMap(scaled, &out, gocv.ColormapHsv)
	return out, nil
}
