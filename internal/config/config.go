// Package config holds the single configuration structure passed explicitly
// into every pipeline component.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gap-navigator/internal/camera"

	"gopkg.in/yaml.v3"
)

const maxFileSize = 1 * 1024 * 1024

// ROIConfig sizes the centered search rectangle, in pixels.
type ROIConfig struct {
	Breadth int `json:"breadth" yaml:"breadth"`
	Height  int `json:"height" yaml:"height"`
}

// AgentProfile is the physical footprint of the drone plus its pixel
// footprint at the reference distance.
type AgentProfile struct {
	WidthM   float64 `json:"width_m" yaml:"width_m"`
	HeightM  float64 `json:"height_m" yaml:"height_m"`
	DepthM   float64 `json:"depth_m" yaml:"depth_m"`
	WidthPx  int     `json:"width_px" yaml:"width_px"`
	HeightPx int     `json:"height_px" yaml:"height_px"`
}

// HSVRange is an inclusive OpenCV HSV band (H in 0..180).
type HSVRange struct {
	Lower [3]float64 `json:"lower" yaml:"lower"`
	Upper [3]float64 `json:"upper" yaml:"upper"`
}

// MarkerGate bounds when a centroid measurement of the color marker is accepted.
type MarkerGate struct {
	TolPx     int     `json:"tol_px" yaml:"tol_px"`
	ExpectedM float64 `json:"expected_m" yaml:"expected_m"`
	TolDepthM float64 `json:"tol_depth_m" yaml:"tol_depth_m"`
}

// SegmentationConfig selects the strategy and its thresholds.
type SegmentationConfig struct {
	Strategy      string   `json:"strategy" yaml:"strategy"`
	BaseDistanceM float64  `json:"base_distance_m" yaml:"base_distance_m"`
	TargetM       float64  `json:"target_m" yaml:"target_m"`
	BandM         float64  `json:"band_m" yaml:"band_m"`
	Color         HSVRange `json:"color" yaml:"color"`
	// CleanupPx is the morphological open kernel for mask cleanup; 0 disables.
	CleanupPx int `json:"cleanup_px" yaml:"cleanup_px"`
}

// OpeningConfig controls contour selection.
type OpeningConfig struct {
	Policy    string `json:"policy" yaml:"policy"`
	MinAreaPx int    `json:"min_area_px" yaml:"min_area_px"`
}

// ProjectionConfig controls back-projection checks.
type ProjectionConfig struct {
	PlanarityTolM float64    `json:"planarity_tol_m" yaml:"planarity_tol_m"`
	Marker        MarkerGate `json:"marker" yaml:"marker"`
}

// Tolerances are the pixel tolerances of the decision table.
type Tolerances struct {
	AlignPx int `json:"align_px" yaml:"align_px"`
	SizePx  int `json:"size_px" yaml:"size_px"`
}

// SinkConfig selects where outcomes go.
type SinkConfig struct {
	JSONLines  bool   `json:"json_lines" yaml:"json_lines"`
	UDPAddr    string `json:"udp_addr" yaml:"udp_addr"`
	OverlayDir string `json:"overlay_dir" yaml:"overlay_dir"`
}

// SourceConfig describes the recorded frame directory.
type SourceConfig struct {
	Dir        string  `json:"dir" yaml:"dir"`
	DepthScale float64 `json:"depth_scale" yaml:"depth_scale"`
}

// LogConfig controls console logging.
type LogConfig struct {
	Level string `json:"level" yaml:"level"`
	JSON  bool   `json:"json" yaml:"json"`
}

// Config aggregates all configuration sections.
type Config struct {
	Intrinsics   camera.Intrinsics  `json:"intrinsics" yaml:"intrinsics"`
	ROI          ROIConfig          `json:"roi" yaml:"roi"`
	Agent        AgentProfile       `json:"agent" yaml:"agent"`
	Segmentation SegmentationConfig `json:"segmentation" yaml:"segmentation"`
	Opening      OpeningConfig      `json:"opening" yaml:"opening"`
	Projection   ProjectionConfig   `json:"projection" yaml:"projection"`
	Tolerances   Tolerances         `json:"tolerances" yaml:"tolerances"`
	Source       SourceConfig       `json:"source" yaml:"source"`
	Sink         SinkConfig         `json:"sink" yaml:"sink"`
	Log          LogConfig          `json:"log" yaml:"log"`
}

// Default returns the values the drone was flown with: a RealSense D435 at
// 640x480, a 0.6 x 0.5 x 0.6 m airframe and a 1 m clearance check.
func Default() Config {
	return Config{
		Intrinsics: camera.Intrinsics{
			Width:  640,
			Height: 480,
			Fx:     6.0970550296798035e+02,
			Fy:     6.0909579671294716e+02,
			Ppx:    3.1916667152289227e+02,
			Ppy:    2.3558360480225772e+02,
		},
		ROI: ROIConfig{Breadth: 365, Height: 274},
		Agent: AgentProfile{
			WidthM:   0.6,
			HeightM:  0.5,
			DepthM:   0.6,
			WidthPx:  92,
			HeightPx: 46,
		},
		Segmentation: SegmentationConfig{
			Strategy:      "depth_near",
			BaseDistanceM: 1.0,
			TargetM:       2.0,
			BandM:         0.1,
			Color: HSVRange{
				Lower: [3]float64{0, 100, 100},
				Upper: [3]float64{30, 255, 255},
			},
		},
		Opening: OpeningConfig{Policy: ""},
		Projection: ProjectionConfig{
			Marker: MarkerGate{TolPx: 5, ExpectedM: 2.0, TolDepthM: 0.02},
		},
		Tolerances: Tolerances{AlignPx: 50, SizePx: 50},
		Source:     SourceConfig{DepthScale: 0.001},
		Log:        LogConfig{Level: "info"},
	}
}

// Load reads a JSON or YAML file on top of Default. Fields omitted from the
// file keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()

	cleanPath := filepath.Clean(path)
	info, err := os.Stat(cleanPath)
	if err != nil {
		return cfg, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxFileSize {
		return cfg, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(cleanPath)); ext {
	case ".json":
		err = json.Unmarshal(data, &cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		return cfg, fmt.Errorf("config file must be .json, .yaml or .yml, got %q", ext)
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", cleanPath, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate rejects values that would make a component undefined.
func (c Config) Validate() error {
	if err := c.Intrinsics.CheckValid(); err != nil {
		return err
	}
	if c.ROI.Breadth <= 0 || c.ROI.Height <= 0 {
		return fmt.Errorf("roi: breadth and height must be positive, got %dx%d", c.ROI.Breadth, c.ROI.Height)
	}
	if c.Agent.WidthM <= 0 || c.Agent.HeightM <= 0 || c.Agent.DepthM < 0 {
		return fmt.Errorf("agent: invalid footprint %vx%vx%v m", c.Agent.WidthM, c.Agent.HeightM, c.Agent.DepthM)
	}
	if c.Agent.WidthPx <= 0 || c.Agent.HeightPx <= 0 {
		return fmt.Errorf("agent: pixel footprint must be positive, got %dx%d", c.Agent.WidthPx, c.Agent.HeightPx)
	}
	if c.Tolerances.AlignPx <= 0 {
		return fmt.Errorf("tolerances.align_px must be > 0, got %d", c.Tolerances.AlignPx)
	}
	if c.Tolerances.SizePx <= 0 {
		return fmt.Errorf("tolerances.size_px must be > 0, got %d", c.Tolerances.SizePx)
	}

	seg := c.Segmentation
	switch seg.Strategy {
	case "depth_near":
		if seg.BaseDistanceM <= 0 {
			return fmt.Errorf("segmentation.base_distance_m must be > 0, got %v", seg.BaseDistanceM)
		}
	case "depth_band":
		if seg.BandM <= 0 || seg.TargetM <= seg.BandM {
			return fmt.Errorf("segmentation: band %v must be > 0 and below target %v", seg.BandM, seg.TargetM)
		}
	case "color_match":
		for i := 0; i < 3; i++ {
			if seg.Color.Lower[i] > seg.Color.Upper[i] {
				return fmt.Errorf("segmentation.color: lower[%d]=%v above upper[%d]=%v",
					i, seg.Color.Lower[i], i, seg.Color.Upper[i])
			}
		}
		m := c.Projection.Marker
		if m.TolPx <= 0 || m.TolDepthM <= 0 || m.ExpectedM <= 0 {
			return fmt.Errorf("projection.marker: tolerances and expected distance must be > 0")
		}
	default:
		return fmt.Errorf("segmentation.strategy: unknown strategy %q", seg.Strategy)
	}

	if seg.CleanupPx < 0 {
		return fmt.Errorf("segmentation.cleanup_px must be >= 0, got %d", seg.CleanupPx)
	}

	switch c.Opening.Policy {
	case "", "max_bbox_area", "max_contour_area":
	default:
		return fmt.Errorf("opening.policy: unknown policy %q", c.Opening.Policy)
	}
	if c.Opening.MinAreaPx < 0 {
		return fmt.Errorf("opening.min_area_px must be >= 0, got %d", c.Opening.MinAreaPx)
	}
	if c.Projection.PlanarityTolM < 0 {
		return fmt.Errorf("projection.planarity_tol_m must be >= 0, got %v", c.Projection.PlanarityTolM)
	}
	if c.Source.DepthScale <= 0 {
		return fmt.Errorf("source.depth_scale must be > 0, got %v", c.Source.DepthScale)
	}
	return nil
}

// NearThresholdM is the single-threshold segmentation distance, padded by the
// agent's own depth so a full pass-through is clear.
func (c Config) NearThresholdM() float64 {
	return c.Segmentation.BaseDistanceM + c.Agent.DepthM
}
