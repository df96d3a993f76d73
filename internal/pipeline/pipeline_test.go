package pipeline

import (
	"context"
	"errors"
	"image"
	"math"
	"testing"

	"gap-navigator/internal/camera"
	"gap-navigator/internal/config"
	"gap-navigator/internal/decision"
	"gap-navigator/internal/frame"
	"gap-navigator/internal/frame/frametest"
	"gap-navigator/internal/opencv/memory"
	"gap-navigator/internal/opening"
	"gap-navigator/internal/projection"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wallM = 0.5

// testConfig uses focal lengths that make a 100x60 px opening at 2 m measure
// exactly 0.8 x 0.5 m.
func testConfig() config.Config {
	cfg := config.Default()
	cfg.Intrinsics = camera.Intrinsics{Width: 640, Height: 480, Fx: 250, Fy: 240, Ppx: 320, Ppy: 240}
	return cfg
}

func newPipeline(t *testing.T, cfg config.Config) (*Pipeline, *memory.Manager) {
	t.Helper()
	require.NoError(t, cfg.Validate())
	mem := memory.NewManager()
	p, err := New(cfg, mem, nil)
	require.NoError(t, err)
	return p, mem
}

// gapFrame is a wall at wallM with a single opening at depth z.
func gapFrame(seq uint64, box image.Rectangle, z float64) frame.Frame {
	d := frametest.Depth(640, 480, wallM)
	frametest.FillDepth(d, box, z)
	return frametest.Frame(seq, d)
}

func TestScenarioFreespace(t *testing.T) {
	p, mem := newPipeline(t, testConfig())
	f := frametest.Frame(1, frametest.Depth(640, 480, 3.0))
	defer f.Close()

	out, err := p.Process(context.Background(), &f)
	require.NoError(t, err)
	assert.Equal(t, decision.Freespace, out.Decision)
	assert.Equal(t, Box{X: 137, Y: 103, W: 365, H: 274}, out.ROI)
	assert.Equal(t, out.ROI, out.Box)
	assert.True(t, out.Passable)
	assert.Zero(t, mem.Stats().OpenScopes)
}

func TestScenarioAdvance(t *testing.T) {
	p, _ := newPipeline(t, testConfig())
	box := image.Rect(270, 193, 370, 253)
	f := gapFrame(2, box, 2.0)
	defer f.Close()

	out, err := p.Process(context.Background(), &f)
	require.NoError(t, err)
	assert.Equal(t, BoxOf(box), out.Box)
	require.NotNil(t, out.Measurement)
	assert.InDelta(t, 0.8, out.Measurement.WidthM, 1e-9)
	assert.InDelta(t, 0.5, out.Measurement.HeightM, 1e-9)
	assert.InDelta(t, 2.0, out.Measurement.DepthM, 1e-6)
	assert.Equal(t, decision.Advance, out.Decision)
	assert.Equal(t, uint64(2), out.Seq)
	assert.Equal(t, "depth_near", out.Strategy)
	assert.Same(t, &f, out.Frame)
	assert.Equal(t, []string{"decide", "extract", "measure", "roi", "segment"}, p.Timings().Stages())
}

func TestMaskCleanupDropsSlivers(t *testing.T) {
	box := image.Rect(270, 193, 370, 253)
	f := gapFrame(5, box, 2.0)
	defer f.Close()
	frametest.FillDepth(f.Depth, image.Rect(140, 220, 500, 221), 2.0)

	p, _ := newPipeline(t, testConfig())
	out, err := p.Process(context.Background(), &f)
	require.NoError(t, err)
	assert.Equal(t, Box{X: 140, Y: 193, W: 360, H: 60}, out.Box)

	cfg := testConfig()
	cfg.Segmentation.CleanupPx = 3
	p, _ = newPipeline(t, cfg)
	out, err = p.Process(context.Background(), &f)
	require.NoError(t, err)
	assert.Equal(t, BoxOf(box), out.Box)
}

func TestScenarioMorph(t *testing.T) {
	cfg := testConfig()
	cfg.Intrinsics.Fx, cfg.Intrinsics.Fy = 500, 400
	p, _ := newPipeline(t, cfg)
	f := gapFrame(3, image.Rect(270, 193, 370, 253), 2.0)
	defer f.Close()

	out, err := p.Process(context.Background(), &f)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, out.Measurement.WidthM, 1e-9)
	assert.InDelta(t, 0.3, out.Measurement.HeightM, 1e-9)
	assert.Equal(t, decision.Morph, out.Decision)
	assert.False(t, out.Passable)
}

func TestScenarioTurnLeft(t *testing.T) {
	p, _ := newPipeline(t, testConfig())
	f := gapFrame(4, image.Rect(150, 210, 250, 270), 2.0)
	defer f.Close()

	out, err := p.Process(context.Background(), &f)
	require.NoError(t, err)
	assert.Equal(t, decision.TurnLeft, out.Decision)
	assert.Equal(t, 200-319, out.DX)
	assert.Zero(t, out.DY)
}

func TestDepthBandStrategy(t *testing.T) {
	cfg := testConfig()
	cfg.Segmentation.Strategy = "depth_band"
	p, _ := newPipeline(t, cfg)

	// The opening sits beyond the band; the band itself is treated as obstacle.
	d := frametest.Depth(640, 480, 2.0)
	frametest.FillDepth(d, image.Rect(270, 193, 370, 253), 2.5)
	f := frametest.Frame(5, d)
	defer f.Close()

	out, err := p.Process(context.Background(), &f)
	require.NoError(t, err)
	assert.Equal(t, Box{X: 270, Y: 193, W: 100, H: 60}, out.Box)
	assert.Equal(t, decision.Advance, out.Decision)
	assert.Equal(t, opening.MaxBoundingBoxArea, p.Policy())
}

func TestOpeningOutsideROIIsIgnored(t *testing.T) {
	p, _ := newPipeline(t, testConfig())
	f := gapFrame(6, image.Rect(0, 0, 100, 90), 2.0)
	defer f.Close()

	_, err := p.Process(context.Background(), &f)
	assert.ErrorIs(t, err, opening.ErrNoOpening)
	assert.True(t, Skippable(err))
}

func TestProcessSkips(t *testing.T) {
	p, mem := newPipeline(t, testConfig())
	ctx := context.Background()

	_, err := p.Process(ctx, nil)
	assert.ErrorIs(t, err, ErrMissingFrame)

	half := frame.Frame{Seq: 1, Color: frametest.Color(640, 480, 0, 0, 0)}
	defer half.Close()
	_, err = p.Process(ctx, &half)
	assert.ErrorIs(t, err, ErrMissingFrame)

	wall := frametest.Frame(2, frametest.Depth(640, 480, wallM))
	defer wall.Close()
	_, err = p.Process(ctx, &wall)
	assert.ErrorIs(t, err, opening.ErrNoOpening)

	box := image.Rect(270, 193, 370, 253)
	holed := gapFrame(3, box, 2.0)
	defer holed.Close()
	holed.Depth.Mat.SetFloatAt(223, 270, float32(math.NaN()))
	_, err = p.Process(ctx, &holed)
	assert.ErrorIs(t, err, projection.ErrInvalidDepth)

	assert.Zero(t, mem.Stats().OpenScopes)
	assert.Equal(t, int64(2), mem.Stats().Scopes, "missing frames never open a scope")
}

func TestPlanarityRejectsSlantedOpening(t *testing.T) {
	cfg := testConfig()
	cfg.Projection.PlanarityTolM = 0.05
	p, _ := newPipeline(t, cfg)

	f := gapFrame(1, image.Rect(270, 193, 370, 253), 2.0)
	defer f.Close()
	frametest.FillDepth(f.Depth, image.Rect(360, 193, 370, 253), 2.4)

	_, err := p.Process(context.Background(), &f)
	assert.ErrorIs(t, err, projection.ErrNonPlanar)
}

func TestColorMatchStrategy(t *testing.T) {
	cfg := config.Default()
	cfg.Segmentation.Strategy = "color_match"
	p, _ := newPipeline(t, cfg)
	assert.Equal(t, opening.MaxContourArea, p.Policy())

	marker := func(r image.Rectangle, z float64) frame.Frame {
		f := frametest.Frame(1, frametest.Depth(640, 480, z))
		frametest.FillColor(f.Color, r, 0, 128, 255)
		return f
	}

	centered := marker(image.Rect(300, 220, 340, 260), 2.0)
	defer centered.Close()
	out, err := p.Process(context.Background(), &centered)
	require.NoError(t, err)
	assert.Equal(t, "color_match", out.Strategy)
	assert.Equal(t, Box{X: 0, Y: 0, W: 640, H: 480}, out.ROI)
	assert.Equal(t, Box{X: 300, Y: 220, W: 40, H: 40}, out.Box)
	assert.InDelta(t, 40*2.0/cfg.Intrinsics.Fx, out.Measurement.WidthM, 1e-6)
	assert.Equal(t, decision.Morph, out.Decision)

	offCenter := marker(image.Rect(100, 220, 140, 260), 2.0)
	defer offCenter.Close()
	_, err = p.Process(context.Background(), &offCenter)
	assert.ErrorIs(t, err, projection.ErrOutsideGate)

	tooFar := marker(image.Rect(300, 220, 340, 260), 2.5)
	defer tooFar.Close()
	_, err = p.Process(context.Background(), &tooFar)
	assert.ErrorIs(t, err, projection.ErrOutsideGate)
}

func TestNewRejectsUnknownNames(t *testing.T) {
	cfg := testConfig()
	cfg.Segmentation.Strategy = "lidar"
	_, err := New(cfg, nil, nil)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.Opening.Policy = "biggest"
	_, err = New(cfg, nil, nil)
	assert.Error(t, err)
}

func TestProcessHonorsCancellation(t *testing.T) {
	p, _ := newPipeline(t, testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := frametest.Frame(1, frametest.Depth(640, 480, 3.0))
	defer f.Close()
	_, err := p.Process(ctx, &f)
	assert.True(t, errors.Is(err, context.Canceled))
}
