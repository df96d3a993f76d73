package sink

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"gap-navigator/internal/opencv/conversion"
	"gap-navigator/internal/opencv/safe"
	"gap-navigator/internal/pipeline"

	"gocv.io/x/gocv"
)

var (
	roiColor     = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	openingColor = color.RGBA{G: 255, A: 255}
	textColor    = color.RGBA{R: 255, G: 64, A: 255}
)

// Overlay writes each frame's color image annotated with the ROI, the chosen
// opening and the decision, as NNNNNN_overlay.png under dir, next to a
// colormapped NNNNNN_depth.png.
type Overlay struct {
	dir string
}

// NewOverlay creates dir if needed.
func NewOverlay(dir string) (*Overlay, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create overlay dir: %w", err)
	}
	return &Overlay{dir: dir}, nil
}

// Path is where the overlay for seq is written.
func (s *Overlay) Path(seq uint64) string {
	return filepath.Join(s.dir, fmt.Sprintf("%06d_overlay.png", seq))
}

// DepthPath is where the depth colormap for seq is written.
func (s *Overlay) DepthPath(seq uint64) string {
	return filepath.Join(s.dir, fmt.Sprintf("%06d_depth.png", seq))
}

func (s *Overlay) Emit(_ context.Context, o pipeline.Outcome) error {
	if o.Frame == nil {
		return nil
	}
	if err := safe.ValidateColorConversion(o.Frame.Color, gocv.ColorBGRToGray); err != nil {
		return fmt.Errorf("overlay: %w", err)
	}

	canvas := o.Frame.Color.Clone()
	defer canvas.Close()

	gocv.Rectangle(&canvas, o.ROI.Rect(), roiColor, 2)
	gocv.Rectangle(&canvas, o.Box.Rect(), openingColor, 2)

	label := o.Decision.String()
	if m := o.Measurement; m != nil {
		label = fmt.Sprintf("%s %.2fx%.2fm @%.2fm", label, m.WidthM, m.HeightM, m.DepthM)
	}
	gocv.PutText(&canvas, label, image.Pt(10, 24), gocv.FontHersheySimplex, 0.7, textColor, 2)

	path := s.Path(o.Seq)
	if ok := gocv.IMWrite(path, canvas); !ok {
		return fmt.Errorf("failed to write overlay %s", path)
	}
	return s.writeDepth(o)
}

func (s *Overlay) writeDepth(o pipeline.Outcome) error {
	depth, err := conversion.DepthColormap(o.Frame.Depth.Mat, conversion.DepthAlpha)
	if err != nil {
		return fmt.Errorf("overlay: %w", err)
	}
	defer depth.Close()

	gocv.Rectangle(&depth, o.Box.Rect(), openingColor, 2)
	path := s.DepthPath(o.Seq)
	if ok := gocv.IMWrite(path, depth); !ok {
		return fmt.Errorf("failed to write depth overlay %s", path)
	}
	return nil
}
