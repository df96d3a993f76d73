// Package projection converts a pixel opening into physical gap dimensions
// with the pinhole camera model.
package projection

import (
	"errors"
	"fmt"
	"image"
	"math"

	"gap-navigator/internal/camera"
	"gap-navigator/internal/config"
	"gap-navigator/internal/frame"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrInvalidDepth is returned when a sampled pixel has no depth return.
	ErrInvalidDepth = errors.New("invalid depth sample")
	// ErrNonPlanar is returned when the edge samples disagree by more than the
	// configured planarity tolerance.
	ErrNonPlanar = errors.New("edge samples are not coplanar")
	// ErrOutsideGate is returned when a marker is off-center or at the wrong
	// distance.
	ErrOutsideGate = errors.New("marker outside measurement gate")
)

// GapMeasurement is the physical size of an opening.
type GapMeasurement struct {
	WidthM  float64 `json:"width_m"`
	HeightM float64 `json:"height_m"`
	DepthM  float64 `json:"depth_m"`
}

// Fits reports whether an agent of widthM x heightM passes through the gap.
func (g GapMeasurement) Fits(widthM, heightM float64) bool {
	return g.WidthM >= widthM && g.HeightM >= heightM
}

// Samples are the four back-projected edge midpoints of a box.
type Samples struct {
	Left, Right, Top, Bottom r3.Vector
}

func (s Samples) depths() []float64 {
	return []float64{s.Left.Z, s.Right.Z, s.Top.Z, s.Bottom.Z}
}

// Projector measures openings in one camera's frames.
type Projector struct {
	Intrinsics    camera.Intrinsics
	PlanarityTolM float64
}

func NewProjector(intr camera.Intrinsics, planarityTolM float64) *Projector {
	return &Projector{Intrinsics: intr, PlanarityTolM: planarityTolM}
}

// EdgeSamples back-projects the midpoints of the four sides of box. Depth for
// the right and bottom sides is read from the last pixel inside the box, since
// x+w and y+h already belong to whatever bounds the opening; the projected
// coordinate is still the box edge. Reads are clamped into the depth map.
func (p *Projector) EdgeSamples(box image.Rectangle, depth frame.DepthMap) (Samples, error) {
	bounds := image.Rect(0, 0, depth.Width(), depth.Height())
	if bounds.Empty() {
		return Samples{}, fmt.Errorf("%w: empty depth map", ErrInvalidDepth)
	}
	if box.Empty() {
		return Samples{}, fmt.Errorf("%w: empty box", ErrInvalidDepth)
	}
	w, h := box.Dx(), box.Dy()
	x, y := box.Min.X, box.Min.Y

	edges := [4]struct{ at, read image.Point }{
		{image.Pt(x, y+h/2), image.Pt(x, y+h/2)},
		{image.Pt(x+w, y+h/2), image.Pt(x+w-1, y+h/2)},
		{image.Pt(x+w/2, y), image.Pt(x+w/2, y)},
		{image.Pt(x+w/2, y+h), image.Pt(x+w/2, y+h-1)},
	}
	var vs [4]r3.Vector
	for i, e := range edges {
		pt := clamp(e.read, bounds)
		z := depth.Distance(pt.X, pt.Y)
		if !frame.Valid(z) {
			return Samples{}, fmt.Errorf("%w at (%d, %d)", ErrInvalidDepth, pt.X, pt.Y)
		}
		vs[i] = p.Intrinsics.BackProject(e.at.X, e.at.Y, z)
	}
	return Samples{Left: vs[0], Right: vs[1], Top: vs[2], Bottom: vs[3]}, nil
}

// EdgeMidpoint measures box from depth sampled at the midpoints of its sides.
// Width comes from the left/right pair and height from the top/bottom pair;
// the reported depth is the mean of the four samples.
func (p *Projector) EdgeMidpoint(box image.Rectangle, depth frame.DepthMap) (GapMeasurement, error) {
	s, err := p.EdgeSamples(box, depth)
	if err != nil {
		return GapMeasurement{}, err
	}

	zs := s.depths()
	if p.PlanarityTolM > 0 {
		if spread := floats.Max(zs) - floats.Min(zs); spread > p.PlanarityTolM {
			return GapMeasurement{}, fmt.Errorf("%w: spread %.3f m exceeds %.3f m", ErrNonPlanar, spread, p.PlanarityTolM)
		}
	}

	return GapMeasurement{
		WidthM:  math.Abs(s.Right.X - s.Left.X),
		HeightM: math.Abs(s.Bottom.Y - s.Top.Y),
		DepthM:  stat.Mean(zs, nil),
	}, nil
}

// Centroid measures box assuming it lies on a frontal plane at the depth of
// its center pixel.
func (p *Projector) Centroid(box image.Rectangle, depth frame.DepthMap) (GapMeasurement, error) {
	c := clamp(image.Pt(box.Min.X+box.Dx()/2, box.Min.Y+box.Dy()/2), image.Rect(0, 0, depth.Width(), depth.Height()))
	z := depth.Distance(c.X, c.Y)
	if !frame.Valid(z) {
		return GapMeasurement{}, fmt.Errorf("%w at centroid (%d, %d)", ErrInvalidDepth, c.X, c.Y)
	}
	w, h := p.Intrinsics.Scale(box.Dx(), box.Dy(), z)
	return GapMeasurement{WidthM: w, HeightM: h, DepthM: z}, nil
}

// Gate accepts a marker measurement only when the marker is centered in the
// image and at the expected distance.
type Gate struct {
	TolPx     int
	ExpectedM float64
	TolDepthM float64
}

func NewGate(cfg config.MarkerGate) Gate {
	return Gate{TolPx: cfg.TolPx, ExpectedM: cfg.ExpectedM, TolDepthM: cfg.TolDepthM}
}

// Check returns ErrOutsideGate unless box is centered in bounds within TolPx
// and m.DepthM is within TolDepthM of ExpectedM.
func (g Gate) Check(box image.Rectangle, bounds image.Rectangle, m GapMeasurement) error {
	cx, cy := box.Min.X+box.Dx()/2, box.Min.Y+box.Dy()/2
	dx := cx - (bounds.Min.X + bounds.Dx()/2)
	dy := cy - (bounds.Min.Y + bounds.Dy()/2)
	if abs(dx) >= g.TolPx || abs(dy) >= g.TolPx {
		return fmt.Errorf("%w: center offset (%d, %d) px", ErrOutsideGate, dx, dy)
	}
	if math.Abs(m.DepthM-g.ExpectedM) >= g.TolDepthM {
		return fmt.Errorf("%w: depth %.3f m, want %.3f±%.3f m", ErrOutsideGate, m.DepthM, g.ExpectedM, g.TolDepthM)
	}
	return nil
}

func clamp(p image.Point, r image.Rectangle) image.Point {
	p.X = min(max(p.X, r.Min.X), r.Max.X-1)
	p.Y = min(max(p.Y, r.Min.Y), r.Max.Y-1)
	return p
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
