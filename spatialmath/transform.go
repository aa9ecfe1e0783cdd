package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// TransformPoint applies a 4x4 homogeneous transform to a 3D point.
func TransformPoint(m *mat.Dense, p r3.Vector) r3.Vector {
	return r3.Vector{
		X: m.At(0, 0)*p.X + m.At(0, 1)*p.Y + m.At(0, 2)*p.Z + m.At(0, 3),
		Y: m.At(1, 0)*p.X + m.At(1, 1)*p.Y + m.At(1, 2)*p.Z + m.At(1, 3),
		Z: m.At(2, 0)*p.X + m.At(2, 1)*p.Y + m.At(2, 2)*p.Z + m.At(2, 3),
	}
}

// InvertTransform inverts a 4x4 homogeneous transform, rejecting singular
// matrices with ErrSingularTransform rather than returning garbage.
func InvertTransform(m *mat.Dense) (*mat.Dense, error) {
	if r, c := m.Dims(); r != 4 || c != 4 {
		return nil, errors.Errorf("expected a 4x4 matrix, got %dx%d", r, c)
	}
	if math.Abs(mat.Det(m)) <= singularityEpsilon {
		return nil, ErrSingularTransform
	}
	inv := mat.NewDense(4, 4, nil)
	if err := inv.Inverse(m); err != nil {
		return nil, errors.Wrap(ErrSingularTransform, err.Error())
	}
	return inv, nil
}

// FormatTransform renders a 4x4 transform for logging.
func FormatTransform(m *mat.Dense) string {
	return fmt.Sprintf("%v", mat.Formatted(m, mat.Prefix("  "), mat.Squeeze()))
}
