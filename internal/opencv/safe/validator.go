// Package safe validates Mats before they reach OpenCV so shape mistakes
// surface as errors instead of native aborts.
package safe

import (
	"fmt"

	"gocv.io/x/gocv"
)

func ValidateMatForOperation(mat gocv.Mat, operation string) error {
	if mat.Ptr() == nil {
		return fmt.Errorf("Mat is nil for operation: %s", operation)
	}

	if mat.Empty() {
		return fmt.Errorf("Mat is empty for operation: %s", operation)
	}

	if mat.Rows() <= 0 || mat.Cols() <= 0 {
		return fmt.Errorf("Mat has invalid dimensions %dx%d for operation: %s",
			mat.Cols(), mat.Rows(), operation)
	}

	return nil
}

// ValidateMatType checks that mat is usable and of the expected type.
func ValidateMatType(mat gocv.Mat, want gocv.MatType, operation string) error {
	if err := ValidateMatForOperation(mat, operation); err != nil {
		return err
	}
	if mat.Type() != want {
		return fmt.Errorf("Mat type %v, want %v for operation: %s", mat.Type(), want, operation)
	}
	return nil
}

func ValidateColorConversion(src gocv.Mat, code gocv.ColorConversionCode) error {
	if err := ValidateMatForOperation(src, "CvtColor"); err != nil {
		return err
	}

	channels := src.Channels()

	switch code {
	case gocv.ColorBGRToGray, gocv.ColorBGRToHSV:
		if channels != 3 {
			return fmt.Errorf("BGR conversion requires 3 channels, got %d", channels)
		}
	case gocv.ColorGrayToBGR:
		if channels != 1 {
			return fmt.Errorf("Gray to BGR conversion requires 1 channel, got %d", channels)
		}
	}

	return nil
}

// ValidateSameSize checks that two Mats can be combined pixel-wise.
func ValidateSameSize(a, b gocv.Mat, operation string) error {
	if a.Rows() != b.Rows() || a.Cols() != b.Cols() {
		return fmt.Errorf("size mismatch %dx%d vs %dx%d for operation: %s",
			a.Cols(), a.Rows(), b.Cols(), b.Rows(), operation)
	}
	return nil
}

func ValidateDimensions(width, height int, operation string) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid dimensions %dx%d for operation: %s", width, height, operation)
	}

	if width > 32768 || height > 32768 {
		return fmt.Errorf("dimensions %dx%d exceed maximum size for operation: %s", width, height, operation)
	}

	return nil
}
