// Package opening selects the single largest clear region of a mask.
package opening

import (
	"errors"
	"fmt"
	"image"
	"sort"
	"strings"

	"gap-navigator/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// ErrNoOpening is returned when a mask contains no usable contour. It is a
// per-frame outcome, not a failure.
var ErrNoOpening = errors.New("no opening in mask")

// Policy decides which contour counts as the largest.
type Policy int

const (
	// MaxBoundingBoxArea ranks contours by the area of their bounding box.
	MaxBoundingBoxArea Policy = iota + 1
	// MaxContourArea ranks contours by enclosed area.
	MaxContourArea
)

func (p Policy) String() string {
	switch p {
	case MaxBoundingBoxArea:
		return "max_bbox_area"
	case MaxContourArea:
		return "max_contour_area"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy converts a config name into a Policy.
func ParsePolicy(value string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "max_bbox_area", "bbox":
		return MaxBoundingBoxArea, nil
	case "max_contour_area", "contour":
		return MaxContourArea, nil
	default:
		return 0, fmt.Errorf("unknown opening policy %q", value)
	}
}

// Opening is the selected region.
type Opening struct {
	Box         image.Rectangle `json:"box"`
	Area        int             `json:"area_px"`
	ContourArea float64         `json:"contour_area_px"`
}

// Centroid is the integer center of the bounding box.
func (o Opening) Centroid() image.Point {
	return image.Pt(o.Box.Min.X+o.Box.Dx()/2, o.Box.Min.Y+o.Box.Dy()/2)
}

type candidate struct {
	box         image.Rectangle
	contourArea float64
}

func (c candidate) score(p Policy) float64 {
	if p == MaxContourArea {
		return c.contourArea
	}
	return float64(c.box.Dx() * c.box.Dy())
}

// Extract finds the external contours of mask and returns the one ranked
// highest by policy. Contours whose box is smaller than minAreaPx pixels are
// ignored. Equal scores resolve to the contour whose box starts first in
// raster order, so the result never depends on contour discovery order.
func Extract(mask gocv.Mat, policy Policy, minAreaPx int) (Opening, error) {
	if err := safe.ValidateMatType(mask, gocv.MatTypeCV8UC1, "opening extraction"); err != nil {
		return Opening{}, err
	}
	if policy != MaxBoundingBoxArea && policy != MaxContourArea {
		return Opening{}, fmt.Errorf("unsupported opening policy %v", policy)
	}

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	candidates := make([]candidate, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		box := gocv.BoundingRect(contour)
		if box.Empty() || box.Dx()*box.Dy() < minAreaPx {
			continue
		}
		candidates = append(candidates, candidate{box: box, contourArea: gocv.ContourArea(contour)})
	}
	if len(candidates) == 0 {
		return Opening{}, ErrNoOpening
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i].box.Min, candidates[j].box.Min
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.score(policy) > best.score(policy) {
			best = c
		}
	}

	return Opening{
		Box:         best.box,
		Area:        best.box.Dx() * best.box.Dy(),
		ContourArea: best.contourArea,
	}, nil
}
