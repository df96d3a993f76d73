// Package pipeline runs one detection pass per frame: segment, restrict to the
// ROI, pick the opening, measure it and decide.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"gap-navigator/internal/config"
	"gap-navigator/internal/decision"
	"gap-navigator/internal/frame"
	"gap-navigator/internal/logger"
	"gap-navigator/internal/opencv/memory"
	"gap-navigator/internal/opening"
	"gap-navigator/internal/projection"
	"gap-navigator/internal/roi"
	"gap-navigator/internal/segmentation"
	"gap-navigator/internal/timing"
)

// ErrMissingFrame is returned for a frame whose color or depth half is absent.
var ErrMissingFrame = errors.New("incomplete frame")

// Skippable reports whether err only invalidates the current frame.
func Skippable(err error) bool {
	return errors.Is(err, ErrMissingFrame) ||
		errors.Is(err, opening.ErrNoOpening) ||
		errors.Is(err, projection.ErrInvalidDepth) ||
		errors.Is(err, projection.ErrNonPlanar) ||
		errors.Is(err, projection.ErrOutsideGate)
}

// Box is a pixel rectangle in x, y, width, height form.
type Box struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

func BoxOf(r image.Rectangle) Box {
	return Box{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()}
}

func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.W, b.Y+b.H)
}

// Outcome is everything one pass produced for a frame.
type Outcome struct {
	RunID       string                     `json:"run_id,omitempty"`
	Seq         uint64                     `json:"seq"`
	Strategy    string                     `json:"strategy"`
	Decision    decision.Decision          `json:"decision"`
	DX          int                        `json:"dx_px"`
	DY          int                        `json:"dy_px"`
	Fallback    bool                       `json:"fallback,omitempty"`
	Passable    bool                       `json:"passable"`
	Box         Box                        `json:"box"`
	ROI         Box                        `json:"roi"`
	ContourArea float64                    `json:"contour_area_px"`
	Measurement *projection.GapMeasurement `json:"measurement,omitempty"`
	Latency     time.Duration              `json:"latency_ns"`

	// Frame is the input the outcome was computed from. It is only valid
	// while the outcome is being emitted.
	Frame *frame.Frame `json:"-"`
}

// Pipeline holds the components configured for one strategy.
type Pipeline struct {
	strategy   segmentation.Strategy
	policy     opening.Policy
	minAreaPx  int
	roiBreadth int
	roiHeight  int
	segmenter  *segmentation.Segmenter
	projector  *projection.Projector
	gate       projection.Gate
	profile    decision.Profile
	tolerances decision.Tolerances
	memory     *memory.Manager
	timing     *timing.Tracker
	logger     logger.Logger
}

// New builds a pipeline from a validated configuration.
func New(cfg config.Config, mem *memory.Manager, log logger.Logger) (*Pipeline, error) {
	strategy, err := segmentation.ParseStrategy(cfg.Segmentation.Strategy)
	if err != nil {
		return nil, err
	}
	policy, err := policyFor(strategy, cfg.Opening.Policy)
	if err != nil {
		return nil, err
	}
	if mem == nil {
		mem = memory.NewManager()
	}
	if log == nil {
		log = logger.Nop()
	}

	return &Pipeline{
		strategy:   strategy,
		policy:     policy,
		minAreaPx:  cfg.Opening.MinAreaPx,
		roiBreadth: cfg.ROI.Breadth,
		roiHeight:  cfg.ROI.Height,
		segmenter:  segmentation.NewSegmenter(strategy, cfg),
		projector:  projection.NewProjector(cfg.Intrinsics, cfg.Projection.PlanarityTolM),
		gate:       projection.NewGate(cfg.Projection.Marker),
		profile:    decision.NewProfile(cfg.Agent),
		tolerances: decision.NewTolerances(cfg.Tolerances),
		memory:     mem,
		timing:     timing.NewTracker(),
		logger:     log,
	}, nil
}

// policyFor resolves an empty policy name to the strategy default.
func policyFor(s segmentation.Strategy, name string) (opening.Policy, error) {
	if name != "" {
		return opening.ParsePolicy(name)
	}
	if s == segmentation.ColorMatch {
		return opening.MaxContourArea, nil
	}
	return opening.MaxBoundingBoxArea, nil
}

func (p *Pipeline) Strategy() segmentation.Strategy { return p.strategy }

func (p *Pipeline) Policy() opening.Policy { return p.policy }

// Timings holds per-stage durations of every processed frame.
func (p *Pipeline) Timings() *timing.Tracker { return p.timing }

// ROI is the search rectangle for a frame of the given size.
func (p *Pipeline) ROI(bounds image.Rectangle) image.Rectangle {
	if !p.strategy.UsesROI() {
		return bounds
	}
	return roi.Centered(bounds.Dx(), bounds.Dy(), p.roiBreadth, p.roiHeight)
}

// Process runs one pass over f. Errors for which Skippable is true mean no
// decision for this frame; f itself is never modified and stays owned by the
// caller.
func (p *Pipeline) Process(ctx context.Context, f *frame.Frame) (Outcome, error) {
	select {
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	default:
	}

	if f == nil || !f.Complete() {
		return Outcome{}, ErrMissingFrame
	}
	start := time.Now()

	scope := p.memory.Scope(fmt.Sprintf("frame-%d", f.Seq))
	defer func() {
		released := scope.Close()
		p.logger.Debug("Pipeline", "frame mats released", map[string]interface{}{
			"seq":  f.Seq,
			"mats": released,
		})
	}()

	region := p.ROI(f.Bounds())

	done := p.timing.Start("segment")
	free, err := p.segmenter.Segment(scope, *f)
	done()
	if err != nil {
		return Outcome{}, fmt.Errorf("segmentation failed: %w", err)
	}

	done = p.timing.Start("roi")
	masked, err := roi.Apply(scope, free, region)
	done()
	if err != nil {
		return Outcome{}, fmt.Errorf("roi masking failed: %w", err)
	}

	done = p.timing.Start("extract")
	found, err := opening.Extract(masked, p.policy, p.minAreaPx)
	done()
	if err != nil {
		return Outcome{}, fmt.Errorf("frame %d: %w", f.Seq, err)
	}

	done = p.timing.Start("measure")
	m, err := p.measure(found.Box, f)
	done()
	if err != nil {
		return Outcome{}, fmt.Errorf("frame %d: %w", f.Seq, err)
	}

	done = p.timing.Start("decide")
	res := decision.Decide(decision.Input{Box: found.Box, ROI: region, Measurement: &m}, p.profile, p.tolerances)
	done()

	return Outcome{
		Seq:         f.Seq,
		Strategy:    p.strategy.String(),
		Decision:    res.Decision,
		DX:          res.DX,
		DY:          res.DY,
		Fallback:    res.Fallback,
		Passable:    res.Decision.Passable(),
		Box:         BoxOf(found.Box),
		ROI:         BoxOf(region),
		ContourArea: found.ContourArea,
		Measurement: &m,
		Latency:     time.Since(start),
		Frame:       f,
	}, nil
}

func (p *Pipeline) measure(box image.Rectangle, f *frame.Frame) (projection.GapMeasurement, error) {
	if p.strategy != segmentation.ColorMatch {
		return p.projector.EdgeMidpoint(box, f.Depth)
	}
	m, err := p.projector.Centroid(box, f.Depth)
	if err != nil {
		return m, err
	}
	if err := p.gate.Check(box, f.Bounds(), m); err != nil {
		return projection.GapMeasurement{}, err
	}
	return m, nil
}
