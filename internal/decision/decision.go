// Package decision maps the geometry of one opening to a navigation command.
package decision

import (
	"fmt"
	"image"
	"strings"

	"gap-navigator/internal/config"
	"gap-navigator/internal/projection"
)

// Decision is one navigation command.
type Decision int

const (
	// Freespace means the opening fills the ROI: nothing ahead.
	Freespace Decision = iota + 1
	// Advance means the opening is centered and larger than the agent.
	Advance
	// Morph means the opening is centered but the agent must shrink first.
	Morph
	TurnLeft
	TurnRight
	TurnUp
	TurnDown
)

var names = map[Decision]string{
	Freespace: "freespace",
	Advance:   "advance",
	Morph:     "morph",
	TurnLeft:  "turn_left",
	TurnRight: "turn_right",
	TurnUp:    "turn_up",
	TurnDown:  "turn_down",
}

func (d Decision) String() string {
	if n, ok := names[d]; ok {
		return n
	}
	return fmt.Sprintf("Decision(%d)", int(d))
}

// Passable reports whether the agent can fly ahead without turning.
func (d Decision) Passable() bool {
	return d == Freespace || d == Advance
}

func (d Decision) MarshalText() ([]byte, error) {
	if _, ok := names[d]; !ok {
		return nil, fmt.Errorf("invalid decision %d", int(d))
	}
	return []byte(d.String()), nil
}

func (d *Decision) UnmarshalText(b []byte) error {
	s := strings.ToLower(string(b))
	for k, v := range names {
		if v == s {
			*d = k
			return nil
		}
	}
	return fmt.Errorf("unknown decision %q", string(b))
}

// Profile is the agent being steered.
type Profile struct {
	WidthM, HeightM   float64
	WidthPx, HeightPx int
}

func NewProfile(a config.AgentProfile) Profile {
	return Profile{WidthM: a.WidthM, HeightM: a.HeightM, WidthPx: a.WidthPx, HeightPx: a.HeightPx}
}

// Tolerances are pixel thresholds. An offset or size difference counts as
// matching only when strictly below its tolerance.
type Tolerances struct {
	AlignPx int
	SizePx  int
}

func NewTolerances(t config.Tolerances) Tolerances {
	return Tolerances{AlignPx: t.AlignPx, SizePx: t.SizePx}
}

// Input is the geometry of one frame. Measurement is nil when the opening was
// not measured physically; sizes are then compared in pixels.
type Input struct {
	Box         image.Rectangle
	ROI         image.Rectangle
	Measurement *projection.GapMeasurement
}

// Result is the chosen command and the offsets that produced it.
type Result struct {
	Decision Decision `json:"decision"`
	DX       int      `json:"dx_px"`
	DY       int      `json:"dy_px"`
	// Fallback is set when both axes were misaligned and the larger offset
	// picked the turn.
	Fallback bool `json:"fallback,omitempty"`
}

// Decide evaluates the rules in order and returns the first that matches:
// freespace, centered (advance or morph), horizontal turn, vertical turn, and
// finally a turn along the axis with the larger offset. Every input yields
// exactly one decision.
func Decide(in Input, p Profile, tol Tolerances) Result {
	center := image.Pt(in.Box.Min.X+in.Box.Dx()/2, in.Box.Min.Y+in.Box.Dy()/2)
	roiCenter := image.Pt(in.ROI.Min.X+in.ROI.Dx()/2, in.ROI.Min.Y+in.ROI.Dy()/2)
	r := Result{DX: center.X - roiCenter.X, DY: center.Y - roiCenter.Y}

	if abs(in.Box.Dx()-in.ROI.Dx()) < tol.SizePx && abs(in.Box.Dy()-in.ROI.Dy()) < tol.SizePx {
		r.Decision = Freespace
		return r
	}

	alignedX := abs(r.DX) < tol.AlignPx
	alignedY := abs(r.DY) < tol.AlignPx

	switch {
	case alignedX && alignedY:
		if fits(in, p) {
			r.Decision = Advance
		} else {
			r.Decision = Morph
		}
	case alignedY:
		r.Decision = horizontal(r.DX)
	case alignedX:
		r.Decision = vertical(r.DY)
	default:
		r.Fallback = true
		if abs(r.DX) >= abs(r.DY) {
			r.Decision = horizontal(r.DX)
		} else {
			r.Decision = vertical(r.DY)
		}
	}
	return r
}

func fits(in Input, p Profile) bool {
	if in.Measurement != nil {
		return in.Measurement.Fits(p.WidthM, p.HeightM)
	}
	return in.Box.Dx() >= p.WidthPx && in.Box.Dy() >= p.HeightPx
}

func horizontal(dx int) Decision {
	if dx < 0 {
		return TurnLeft
	}
	return TurnRight
}

func vertical(dy int) Decision {
	if dy < 0 {
		return TurnUp
	}
	return TurnDown
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
