package spatialmath

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
)

func TestMatrixFromIdentityParameters(t *testing.T) {
	p := NewParameterization(false)
	test.That(t, p.NumParameters(), test.ShouldEqual, 9)

	m, err := p.Matrix([]float64{0, 0, 0, 0, 0, 0, 1, 1, 1})
	test.That(t, err, test.ShouldBeNil)
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			want := 0.
			if i == j {
				want = 1.
			}
			test.That(t, m.At(i, j), test.ShouldAlmostEqual, want)
		}
	}
}

func TestMatrixFromRotationParameters(t *testing.T) {
	// 90 degrees about z: versor is (0, 0, sin(45deg)).
	p := NewParameterization(false)
	m, err := p.Matrix([]float64{0, 0, math.Sin(math.Pi / 4), 1, 2, 3, 1, 1, 1})
	test.That(t, err, test.ShouldBeNil)

	test.That(t, m.At(0, 0), test.ShouldAlmostEqual, 0)
	test.That(t, m.At(0, 1), test.ShouldAlmostEqual, -1)
	test.That(t, m.At(1, 0), test.ShouldAlmostEqual, 1)
	test.That(t, m.At(1, 1), test.ShouldAlmostEqual, 0)
	test.That(t, m.At(2, 2), test.ShouldAlmostEqual, 1)
	test.That(t, m.At(0, 3), test.ShouldAlmostEqual, 1)
	test.That(t, m.At(1, 3), test.ShouldAlmostEqual, 2)
	test.That(t, m.At(2, 3), test.ShouldAlmostEqual, 3)
	test.That(t, m.At(3, 0), test.ShouldAlmostEqual, 0)
	test.That(t, m.At(3, 3), test.ShouldAlmostEqual, 1)
}

func TestMatrixParameterCountMismatch(t *testing.T) {
	p := NewParameterization(true)
	test.That(t, p.NumParameters(), test.ShouldEqual, 7)
	_, err := p.Matrix(make([]float64, 9))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestParameterRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		name      string
		isotropic bool
		params    []float64
	}{
		{"rigid", false, []float64{math.Sin(math.Pi / 8), 0, 0, 5, -3, 2, 1, 1, 1}},
		{"anisotropic scale", false, []float64{0, math.Sin(math.Pi / 12), 0, 0.5, 10, -7, 2, 3, 4}},
		{"isotropic scale", true, []float64{0.1, 0.2, 0.1, -1, -2, -3, 2.5}},
		{"compound rotation", false, []float64{0.2, -0.3, 0.1, 0, 0, 0, 1, 1, 1}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p := NewParameterization(tc.isotropic)
			m, err := p.Matrix(tc.params)
			test.That(t, err, test.ShouldBeNil)
			got, err := p.Parameters(m)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, got, test.ShouldHaveLength, len(tc.params))
			for i := range tc.params {
				test.That(t, got[i], test.ShouldAlmostEqual, tc.params[i], 1e-9)
			}
		})
	}
}

func TestParametersRejectSingularSeed(t *testing.T) {
	p := NewParameterization(false)

	// Zero scale on one axis collapses the block.
	singular := mat.NewDense(4, 4, []float64{
		1, 0, 0, 5,
		0, 1, 0, 5,
		0, 0, 0, 5,
		0, 0, 0, 1,
	})
	_, err := p.Parameters(singular)
	test.That(t, errors.Is(err, ErrSingularTransform), test.ShouldBeTrue)

	_, err = p.Parameters(mat.NewDense(3, 3, nil))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestParametersOrthonormalizeDrift(t *testing.T) {
	p := NewParameterization(false)
	clean := []float64{0, 0, math.Sin(math.Pi / 12), 4, 5, 6, 1, 1, 1}
	m, err := p.Matrix(clean)
	test.That(t, err, test.ShouldBeNil)

	// Small numerical drift away from orthonormality must not break the
	// decomposition; the recovered parameters stay close to the clean ones.
	drifted := mat.DenseCopyOf(m)
	drifted.Set(0, 0, drifted.At(0, 0)+1e-5)
	drifted.Set(1, 2, drifted.At(1, 2)-1e-5)

	got, err := p.Parameters(drifted)
	test.That(t, err, test.ShouldBeNil)
	for i := range clean {
		test.That(t, got[i], test.ShouldAlmostEqual, clean[i], 1e-4)
	}

	// Rebuilding from the recovered parameters yields an orthonormal block.
	rebuilt, err := p.Matrix(got)
	test.That(t, err, test.ShouldBeNil)
	block := rebuilt.Slice(0, 3, 0, 3)
	var gram mat.Dense
	gram.Mul(block.T(), block)
	scales := got[6:9]
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.
			if i == j {
				want = scales[i] * scales[i]
			}
			test.That(t, gram.At(i, j), test.ShouldAlmostEqual, want, 1e-8)
		}
	}
}

func TestVersorOverflowStaysValid(t *testing.T) {
	// A finite-difference step can push the versor norm past one; the built
	// block must still be a pure rotation.
	p := NewParameterization(false)
	m, err := p.Matrix([]float64{0.8, 0.6, 0.3, 0, 0, 0, 1, 1, 1})
	test.That(t, err, test.ShouldBeNil)

	block := m.Slice(0, 3, 0, 3)
	var gram mat.Dense
	gram.Mul(block.T(), block)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.
			if i == j {
				want = 1.
			}
			test.That(t, gram.At(i, j), test.ShouldAlmostEqual, want)
		}
	}
	test.That(t, mat.Det(block), test.ShouldAlmostEqual, 1)
}
