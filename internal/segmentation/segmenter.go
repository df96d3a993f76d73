// Package segmentation turns a depth or color frame into binary masks
// (CV_8UC1, 255 = set) of candidate clear space.
package segmentation

import (
	"fmt"
	"math"

	"gap-navigator/internal/config"
	"gap-navigator/internal/frame"
	"gap-navigator/internal/opencv/memory"
	"gap-navigator/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// BandMasks are the three disjoint classes of a dual-threshold split. Every
// pixel is set in exactly one of them.
type BandMasks struct {
	Background gocv.Mat // depth > far
	Foreground gocv.Mat // valid depth < near
	Uncertain  gocv.Mat // near <= depth <= far, or no return
}

// NearMask clears every pixel strictly nearer than thresholdM and sets the
// rest. Pixels without a return are cleared: they are not known to be far.
func NearMask(s *memory.Scope, depth frame.DepthMap, thresholdM float64) (gocv.Mat, error) {
	if err := safe.ValidateMatType(depth.Mat, gocv.MatTypeCV32FC1, "near mask"); err != nil {
		return gocv.Mat{}, err
	}
	if thresholdM <= 0 {
		return gocv.Mat{}, fmt.Errorf("near threshold must be > 0, got %v", thresholdM)
	}

	mask := s.NewMat()
	inRange(depth.Mat, math.Max(thresholdM, frame.MinDepthM), frame.MaxDepthM, &mask)
	return mask, nil
}

// SplitBand classifies depth around targetM ± bandM.
func SplitBand(s *memory.Scope, depth frame.DepthMap, targetM, bandM float64) (BandMasks, error) {
	if err := safe.ValidateMatType(depth.Mat, gocv.MatTypeCV32FC1, "band split"); err != nil {
		return BandMasks{}, err
	}
	near, far := targetM-bandM, targetM+bandM
	if bandM <= 0 || near <= 0 {
		return BandMasks{}, fmt.Errorf("band %v around %v leaves no near range", bandM, targetM)
	}

	masks := BandMasks{
		Background: s.NewMat(),
		Foreground: s.NewMat(),
		Uncertain:  s.NewMat(),
	}
	inRange(depth.Mat, above(far), frame.MaxDepthM, &masks.Background)
	inRange(depth.Mat, frame.MinDepthM, below(near), &masks.Foreground)

	known := s.NewMat()
	gocv.BitwiseOr(masks.Background, masks.Foreground, &known)
	gocv.BitwiseNot(known, &masks.Uncertain)
	return masks, nil
}

// ColorMask sets pixels of a BGR image whose HSV value lies inside r.
func ColorMask(s *memory.Scope, color gocv.Mat, r config.HSVRange) (gocv.Mat, error) {
	if err := safe.ValidateColorConversion(color, gocv.ColorBGRToHSV); err != nil {
		return gocv.Mat{}, err
	}

	hsv := s.NewMat()
	gocv.CvtColor(color, &hsv, gocv.ColorBGRToHSV)

	mask := s.NewMat()
	lower := gocv.NewScalar(r.Lower[0], r.Lower[1], r.Lower[2], 0)
	upper := gocv.NewScalar(r.Upper[0], r.Upper[1], r.Upper[2], 0)
	gocv.InRangeWithScalar(hsv, lower, upper, &mask)
	return mask, nil
}

// Segmenter produces the clear-region mask for one strategy.
type Segmenter struct {
	Strategy  Strategy
	NearM     float64
	TargetM   float64
	BandM     float64
	Color     config.HSVRange
	CleanupPx int
}

// NewSegmenter reads thresholds for strategy out of cfg.
func NewSegmenter(strategy Strategy, cfg config.Config) *Segmenter {
	return &Segmenter{
		Strategy:  strategy,
		NearM:     cfg.NearThresholdM(),
		TargetM:   cfg.Segmentation.TargetM,
		BandM:     cfg.Segmentation.BandM,
		Color:     cfg.Segmentation.Color,
		CleanupPx: cfg.Segmentation.CleanupPx,
	}
}

// Segment returns the mask of candidate clear space for f, cleaned up when
// CleanupPx is set. The mask is owned by s.
func (sg *Segmenter) Segment(s *memory.Scope, f frame.Frame) (gocv.Mat, error) {
	mask, err := sg.raw(s, f)
	if err != nil {
		return gocv.Mat{}, err
	}
	return Cleanup(s, mask, sg.CleanupPx)
}

func (sg *Segmenter) raw(s *memory.Scope, f frame.Frame) (gocv.Mat, error) {
	switch sg.Strategy {
	case DepthNear:
		return NearMask(s, f.Depth, sg.NearM)
	case DepthBand:
		masks, err := SplitBand(s, f.Depth, sg.TargetM, sg.BandM)
		if err != nil {
			return gocv.Mat{}, err
		}
		return masks.Background, nil
	case ColorMatch:
		return ColorMask(s, f.Color, sg.Color)
	default:
		return gocv.Mat{}, fmt.Errorf("unsupported segmentation strategy %v", sg.Strategy)
	}
}

func inRange(src gocv.Mat, lo, hi float64, dst *gocv.Mat) {
	gocv.InRangeWithScalar(src, gocv.NewScalar(lo, 0, 0, 0), gocv.NewScalar(hi, 0, 0, 0), dst)
}

// above is the smallest float32 depth strictly greater than v.
func above(v float64) float64 {
	return float64(math.Nextafter32(float32(v), math.MaxFloat32))
}

// below is the largest float32 depth strictly less than v.
func below(v float64) float64 {
	return float64(math.Nextafter32(float32(v), 0))
}
