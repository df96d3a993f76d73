package segmentation

import (
	"fmt"
	"strings"
)

// Strategy selects how the clear region is segmented out of a frame.
type Strategy int

const (
	// DepthNear keeps everything at or beyond a single distance threshold.
	DepthNear Strategy = iota + 1
	// DepthBand keeps everything beyond target+band.
	DepthBand
	// ColorMatch keeps pixels inside an HSV band, for marker measurement.
	ColorMatch
)

func (s Strategy) String() string {
	switch s {
	case DepthNear:
		return "depth_near"
	case DepthBand:
		return "depth_band"
	case ColorMatch:
		return "color_match"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy converts a config name into a Strategy.
func ParseStrategy(value string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "depth_near", "near":
		return DepthNear, nil
	case "depth_band", "band":
		return DepthBand, nil
	case "color_match", "color":
		return ColorMatch, nil
	default:
		return 0, fmt.Errorf("unknown segmentation strategy %q", value)
	}
}

func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Strategy) UnmarshalText(b []byte) error {
	parsed, err := ParseStrategy(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// UsesROI reports whether the strategy restricts the search to the centered ROI.
// Marker search scans the whole frame.
func (s Strategy) UsesROI() bool {
	return s != ColorMatch
}
