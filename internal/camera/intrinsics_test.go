package camera

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func d435() *Intrinsics {
	return &Intrinsics{Width: 640, Height: 480, Fx: 609.7, Fy: 609.1, Ppx: 319.2, Ppy: 235.6}
}

func TestCheckValid(t *testing.T) {
	assert.NoError(t, d435().CheckValid())

	var missing *Intrinsics
	assert.ErrorIs(t, missing.CheckValid(), ErrInvalidIntrinsics)

	bad := d435()
	bad.Fy = -1
	assert.ErrorIs(t, bad.CheckValid(), ErrInvalidIntrinsics)

	bad = d435()
	bad.Height = 0
	assert.ErrorContains(t, bad.CheckValid(), "invalid size")

	bad = d435()
	bad.Ppx = -0.5
	assert.ErrorContains(t, bad.CheckValid(), "principal point")
}

func TestBackProject(t *testing.T) {
	in := d435()
	p := in.BackProject(400, 300, 2.0)
	assert.InDelta(t, 400*2.0/609.7, p.X, 1e-12)
	assert.InDelta(t, 300*2.0/609.1, p.Y, 1e-12)
	assert.Equal(t, 2.0, p.Z)

	left := in.BackProject(100, 0, 1.5)
	right := in.BackProject(250, 0, 1.5)
	w, _ := in.Scale(150, 0, 1.5)
	assert.InDelta(t, w, right.X-left.X, 1e-12)
}

func TestBounds(t *testing.T) {
	assert.Equal(t, image.Rect(0, 0, 640, 480), d435().Bounds())
}
