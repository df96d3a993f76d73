package safe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gocv.io/x/gocv"
)

func TestValidateMatForOperation(t *testing.T) {
	var zero gocv.Mat
	assert.ErrorContains(t, ValidateMatForOperation(zero, "seg"), "nil")

	empty := gocv.NewMat()
	defer empty.Close()
	assert.ErrorContains(t, ValidateMatForOperation(empty, "seg"), "empty")

	ok := gocv.NewMatWithSize(4, 3, gocv.MatTypeCV8UC1)
	defer ok.Close()
	assert.NoError(t, ValidateMatForOperation(ok, "seg"))
}

func TestValidateMatType(t *testing.T) {
	m := gocv.NewMatWithSize(4, 3, gocv.MatTypeCV8UC1)
	defer m.Close()

	assert.NoError(t, ValidateMatType(m, gocv.MatTypeCV8UC1, "mask"))
	assert.ErrorContains(t, ValidateMatType(m, gocv.MatTypeCV32FC1, "depth"), "depth")
}

func TestValidateColorConversion(t *testing.T) {
	gray := gocv.NewMatWithSize(2, 2, gocv.MatTypeCV8UC1)
	defer gray.Close()
	bgr := gocv.NewMatWithSize(2, 2, gocv.MatTypeCV8UC3)
	defer bgr.Close()

	assert.NoError(t, ValidateColorConversion(bgr, gocv.ColorBGRToHSV))
	assert.Error(t, ValidateColorConversion(gray, gocv.ColorBGRToHSV))
	assert.NoError(t, ValidateColorConversion(gray, gocv.ColorGrayToBGR))
	assert.Error(t, ValidateColorConversion(bgr, gocv.ColorGrayToBGR))
}

func TestValidateSameSizeAndDimensions(t *testing.T) {
	a := gocv.NewMatWithSize(2, 3, gocv.MatTypeCV8UC1)
	defer a.Close()
	b := gocv.NewMatWithSize(3, 2, gocv.MatTypeCV8UC1)
	defer b.Close()

	assert.NoError(t, ValidateSameSize(a, a, "and"))
	assert.Error(t, ValidateSameSize(a, b, "and"))

	assert.NoError(t, ValidateDimensions(640, 480, "roi"))
	assert.Error(t, ValidateDimensions(0, 480, "roi"))
	assert.Error(t, ValidateDimensions(40000, 480, "roi"))
}
