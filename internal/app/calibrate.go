package app

import (
	"context"
	"fmt"

	"gap-navigator/internal/config"
	"gap-navigator/internal/frame"
	"gap-navigator/internal/pipeline"

	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"
)

// Calibration is the marker size observed while it sat centered at the
// expected distance. ROI is the suggested roi config section.
type Calibration struct {
	Frames   int              `yaml:"frames"`
	Accepted int              `yaml:"accepted"`
	ROI      config.ROIConfig `yaml:"roi"`
	WidthM   float64          `yaml:"width_m"`
	HeightM  float64          `yaml:"height_m"`
	DepthM   float64          `yaml:"depth_m"`
}

// YAML renders c as a config-compatible snippet.
func (c Calibration) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// Calibrate runs the marker strategy over src and averages every accepted
// measurement. It fails when no frame passed the marker gate.
func (a *Application) Calibrate(src frame.Source) (Calibration, error) {
	cfg := a.cfg
	cfg.Segmentation.Strategy = "color_match"
	if cfg.Opening.Policy == "" {
		cfg.Opening.Policy = "max_contour_area"
	}
	if err := cfg.Validate(); err != nil {
		return Calibration{}, fmt.Errorf("invalid marker configuration: %w", err)
	}

	p, err := pipeline.New(cfg, a.memory, a.logger)
	if err != nil {
		return Calibration{}, err
	}

	var widths, heights, widthsM, heightsM, depths []float64
	collect := pipeline.SinkFunc(func(_ context.Context, o pipeline.Outcome) error {
		widths = append(widths, float64(o.Box.W))
		heights = append(heights, float64(o.Box.H))
		if m := o.Measurement; m != nil {
			widthsM = append(widthsM, m.WidthM)
			heightsM = append(heightsM, m.HeightM)
			depths = append(depths, m.DepthM)
		}
		a.logger.Debug("Calibrate", "marker accepted", map[string]interface{}{
			"seq": o.Seq,
			"box": fmt.Sprintf("%dx%d", o.Box.W, o.Box.H),
		})
		return nil
	})

	runner := pipeline.NewRunner(p, a.logger, a.runID)
	if err := runner.Run(a.Context(), src, collect); err != nil {
		return Calibration{}, err
	}

	stats := runner.Stats()
	c := Calibration{Frames: stats.Frames, Accepted: len(widths)}
	if c.Accepted == 0 {
		return c, fmt.Errorf("no marker measurement accepted in %d frames (skipped: %v)", stats.Frames, stats.Skipped)
	}
	c.ROI = config.ROIConfig{
		Breadth: int(stat.Mean(widths, nil) + 0.5),
		Height:  int(stat.Mean(heights, nil) + 0.5),
	}
	if len(depths) > 0 {
		c.WidthM = stat.Mean(widthsM, nil)
		c.HeightM = stat.Mean(heightsM, nil)
		c.DepthM = stat.Mean(depths, nil)
	}

	a.logger.Info("Calibrate", "marker calibrated", map[string]interface{}{
		"accepted": c.Accepted,
		"breadth":  c.ROI.Breadth,
		"height":   c.ROI.Height,
	})
	return c, nil
}
