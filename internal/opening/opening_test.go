package opening

import (
	"errors"
	"image"
	"testing"

	"gap-navigator/internal/frame/frametest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("max_bbox_area")
	require.NoError(t, err)
	assert.Equal(t, MaxBoundingBoxArea, p)

	p, err = ParsePolicy("Contour")
	require.NoError(t, err)
	assert.Equal(t, MaxContourArea, p)
	assert.Equal(t, "max_contour_area", p.String())

	_, err = ParsePolicy("")
	assert.Error(t, err)
}

func TestExtractPicksLargestBox(t *testing.T) {
	mask := frametest.Mask(100, 80,
		image.Rect(5, 5, 15, 15),
		image.Rect(40, 20, 90, 70),
		image.Rect(20, 60, 30, 75),
	)
	defer mask.Close()

	got, err := Extract(mask, MaxBoundingBoxArea, 0)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(40, 20, 90, 70), got.Box)
	assert.Equal(t, 50*50, got.Area)
	assert.Equal(t, image.Pt(65, 45), got.Centroid())
}

func TestExtractPolicyChangesWinner(t *testing.T) {
	// A thin L spans a large box but encloses little; the solid square wins on
	// contour area.
	mask := frametest.Mask(120, 120,
		image.Rect(0, 0, 100, 4),
		image.Rect(0, 0, 4, 100),
		image.Rect(60, 60, 100, 100),
	)
	defer mask.Close()

	byBox, err := Extract(mask, MaxBoundingBoxArea, 0)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 100, 100), byBox.Box)

	byArea, err := Extract(mask, MaxContourArea, 0)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(60, 60, 100, 100), byArea.Box)
	assert.Greater(t, byArea.ContourArea, byBox.ContourArea)
}

func TestExtractTieGoesToFirstInRasterOrder(t *testing.T) {
	boxes := []image.Rectangle{
		image.Rect(60, 10, 80, 30),
		image.Rect(10, 50, 30, 70),
		image.Rect(10, 10, 30, 30),
	}
	mask := frametest.Mask(100, 100, boxes...)
	defer mask.Close()

	for i := 0; i < 5; i++ {
		got, err := Extract(mask, MaxBoundingBoxArea, 0)
		require.NoError(t, err)
		assert.Equal(t, image.Rect(10, 10, 30, 30), got.Box)
	}

	// Same boxes painted in another order produce the same answer.
	reordered := frametest.Mask(100, 100, boxes[2], boxes[0], boxes[1])
	defer reordered.Close()
	got, err := Extract(reordered, MaxContourArea, 0)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(10, 10, 30, 30), got.Box)
}

func TestExtractEmptyMask(t *testing.T) {
	mask := frametest.Mask(50, 50)
	defer mask.Close()

	_, err := Extract(mask, MaxBoundingBoxArea, 0)
	assert.True(t, errors.Is(err, ErrNoOpening))
}

func TestExtractMinArea(t *testing.T) {
	mask := frametest.Mask(50, 50, image.Rect(1, 1, 3, 3), image.Rect(10, 10, 14, 14))
	defer mask.Close()

	got, err := Extract(mask, MaxBoundingBoxArea, 10)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(10, 10, 14, 14), got.Box)

	_, err = Extract(mask, MaxBoundingBoxArea, 100)
	assert.ErrorIs(t, err, ErrNoOpening)
}

func TestExtractRejectsWrongType(t *testing.T) {
	m := gocv.NewMatWithSize(4, 4, gocv.MatTypeCV32FC1)
	defer m.Close()
	_, err := Extract(m, MaxBoundingBoxArea, 0)
	assert.Error(t, err)

	mask := frametest.Mask(4, 4)
	defer mask.Close()
	_, err = Extract(mask, Policy(9), 0)
	assert.Error(t, err)
}
