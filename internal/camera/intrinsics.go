// Package camera holds the pinhole model used to back-project depth pixels.
package camera

import (
	"errors"
	"fmt"
	"image"

	"github.com/golang/geo/r3"
)

// ErrInvalidIntrinsics is returned by CheckValid.
var ErrInvalidIntrinsics = errors.New("invalid camera intrinsics")

// Intrinsics holds the parameters of a perspective projection, in pixels.
type Intrinsics struct {
	Width  int     `json:"width_px" yaml:"width_px"`
	Height int     `json:"height_px" yaml:"height_px"`
	Fx     float64 `json:"fx" yaml:"fx"`
	Fy     float64 `json:"fy" yaml:"fy"`
	Ppx    float64 `json:"ppx" yaml:"ppx"`
	Ppy    float64 `json:"ppy" yaml:"ppy"`
}

// CheckValid checks that the intrinsics describe a usable sensor.
func (in *Intrinsics) CheckValid() error {
	if in == nil {
		return fmt.Errorf("%w: intrinsics do not exist", ErrInvalidIntrinsics)
	}
	if in.Width <= 0 || in.Height <= 0 {
		return fmt.Errorf("%w: invalid size %dx%d", ErrInvalidIntrinsics, in.Width, in.Height)
	}
	if in.Fx <= 0 || in.Fy <= 0 {
		return fmt.Errorf("%w: focal lengths must be positive, got fx=%v fy=%v", ErrInvalidIntrinsics, in.Fx, in.Fy)
	}
	if in.Ppx < 0 || in.Ppy < 0 {
		return fmt.Errorf("%w: principal point must be non-negative, got (%v, %v)", ErrInvalidIntrinsics, in.Ppx, in.Ppy)
	}
	return nil
}

// Bounds is the image rectangle the intrinsics were calibrated for.
func (in *Intrinsics) Bounds() image.Rectangle {
	return image.Rect(0, 0, in.Width, in.Height)
}

// BackProject lifts pixel (u, v) at distance z to camera space using
// X = u*z/fx and Y = v*z/fy. The principal point is not subtracted: gap sizes
// are differences of two back-projected samples, so the offset cancels for a
// frontal plane.
func (in *Intrinsics) BackProject(u, v int, z float64) r3.Vector {
	return r3.Vector{
		X: float64(u) * z / in.Fx,
		Y: float64(v) * z / in.Fy,
		Z: z,
	}
}

// Scale converts a pixel extent at distance z into meters along each axis.
func (in *Intrinsics) Scale(w, h int, z float64) (float64, float64) {
	return float64(w) * z / in.Fx, float64(h) * z / in.Fy
}
