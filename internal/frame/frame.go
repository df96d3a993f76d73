// Package frame defines the color+depth frame pair consumed by the pipeline
// and the sources that produce it.
package frame

import (
	"context"
	"image"
	"math"

	"gocv.io/x/gocv"
)

// DepthMap is a CV_32FC1 Mat of distances in meters. Zero, negative and
// non-finite values mean "no return".
type DepthMap struct {
	Mat gocv.Mat
}

// NewDepthMap wraps a CV_32FC1 Mat of meters.
func NewDepthMap(m gocv.Mat) DepthMap {
	return DepthMap{Mat: m}
}

func (d DepthMap) Empty() bool {
	return d.Mat.Ptr() == nil || d.Mat.Empty()
}

func (d DepthMap) Width() int {
	if d.Empty() {
		return 0
	}
	return d.Mat.Cols()
}

func (d DepthMap) Height() int {
	if d.Empty() {
		return 0
	}
	return d.Mat.Rows()
}

// Distance returns the depth at pixel (x, y) in meters, or 0 when the pixel is
// outside the map or carries no valid return.
func (d DepthMap) Distance(x, y int) float64 {
	if d.Empty() || x < 0 || y < 0 || x >= d.Mat.Cols() || y >= d.Mat.Rows() {
		return 0
	}
	z := float64(d.Mat.GetFloatAt(y, x))
	if !Valid(z) {
		return 0
	}
	return z
}

// MinDepthM is the smallest distance treated as a real return. Sensors report
// millimeter steps, so anything below is a cleared or dithered pixel.
const MinDepthM = 1e-4

// MaxDepthM bounds range tests on depth maps; +Inf is never a return.
const MaxDepthM = math.MaxFloat32

// Valid reports whether z is a usable depth return.
func Valid(z float64) bool {
	return z >= MinDepthM && !math.IsInf(z, 0) && !math.IsNaN(z)
}

// Frame is one synchronized color+depth pair. Color is BGR CV_8UC3.
type Frame struct {
	Seq   uint64
	Color gocv.Mat
	Depth DepthMap
}

// Complete reports whether both halves of the pair are present and agree on size.
func (f Frame) Complete() bool {
	if f.Color.Ptr() == nil || f.Color.Empty() || f.Depth.Empty() {
		return false
	}
	return f.Color.Cols() == f.Depth.Width() && f.Color.Rows() == f.Depth.Height()
}

// Bounds is the pixel rectangle of the depth map.
func (f Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.Depth.Width(), f.Depth.Height())
}

// Close releases both Mats. Safe on partially filled frames.
func (f *Frame) Close() {
	if f.Color.Ptr() != nil {
		f.Color.Close()
	}
	if f.Depth.Mat.Ptr() != nil {
		f.Depth.Mat.Close()
	}
}

// Source yields frame pairs, blocking until one is available. A returned
// frame may be incomplete; it is the caller's to Close. io.EOF ends a finite
// source, any other error is a sensor failure.
type Source interface {
	Next(ctx context.Context) (Frame, error)
	Close() error
}
