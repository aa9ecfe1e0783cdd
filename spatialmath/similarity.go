// Package spatialmath defines the spatial mathematical operations used by probe
// calibration: a constrained similarity-transform parameterization and the
// point/line geometry the cost metrics are built on.
package spatialmath

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

// A 3x3 rotation-scale block whose determinant is within this distance of zero
// is treated as singular and rejected.
const singularityEpsilon = 1e-12

// ErrSingularTransform is returned when a homogeneous matrix cannot be
// decomposed or inverted because its rotation-scale block is singular.
var ErrSingularTransform = errors.New("transform has a singular rotation-scale block")

// Parameterization maps a constrained similarity transform to and from a flat
// parameter vector. The layout is versor rotation (3), translation (3), then
// scale: a single value when the parameterization is isotropic, otherwise one
// value per axis. The rotation components are the vector part of a unit
// quaternion with a non-negative real part.
type Parameterization struct {
	isotropic bool
}

// NewParameterization returns a parameterization with the given scale
// constraint. The constraint is fixed for the life of the parameterization.
func NewParameterization(isotropic bool) *Parameterization {
	return &Parameterization{isotropic: isotropic}
}

// Isotropic reports whether all three axes share a single scale parameter.
func (p *Parameterization) Isotropic() bool {
	return p.isotropic
}

// NumParameters returns the length of the parameter vector, 7 when isotropic
// and 9 otherwise.
func (p *Parameterization) NumParameters() int {
	if p.isotropic {
		return 7
	}
	return 9
}

// Matrix builds the 4x4 homogeneous matrix described by the given parameter
// vector. The upper-left block is the rotation composed with a diagonal scale
// matrix and the bottom row is always [0 0 0 1].
func (p *Parameterization) Matrix(params []float64) (*mat.Dense, error) {
	if len(params) != p.NumParameters() {
		return nil, errors.Errorf("expected %d parameters, got %d", p.NumParameters(), len(params))
	}
	q := versorToQuat(params[0], params[1], params[2])
	r := quatToRotationMatrix(q)

	var sx, sy, sz float64
	if p.isotropic {
		sx, sy, sz = params[6], params[6], params[6]
	} else {
		sx, sy, sz = params[6], params[7], params[8]
	}

	m := mat.NewDense(4, 4, nil)
	for i := 0; i < 3; i++ {
		m.Set(i, 0, r[i][0]*sx)
		m.Set(i, 1, r[i][1]*sy)
		m.Set(i, 2, r[i][2]*sz)
		m.Set(i, 3, params[3+i])
	}
	m.Set(3, 3, 1)
	return m, nil
}

// Parameters decomposes a 4x4 homogeneous matrix into a parameter vector. The
// rotation is recovered as the closest orthonormal matrix via an SVD polar
// decomposition, so a matrix whose block has drifted slightly from
// orthogonality still yields a valid versor. A singular block is rejected with
// ErrSingularTransform.
func (p *Parameterization) Parameters(m *mat.Dense) ([]float64, error) {
	if r, c := m.Dims(); r != 4 || c != 4 {
		return nil, errors.Errorf("expected a 4x4 matrix, got %dx%d", r, c)
	}
	a := mat.NewDense(3, 3, nil)
	a.Copy(m.Slice(0, 3, 0, 3))
	if math.Abs(mat.Det(a)) <= singularityEpsilon {
		return nil, ErrSingularTransform
	}

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDFull) {
		return nil, ErrSingularTransform
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	// R = U*V^T is the orthonormal matrix nearest to the block. A negative
	// determinant means the nearest orthonormal matrix is a reflection; flip
	// the last column of U to stay in SO(3).
	var r mat.Dense
	r.Mul(&u, v.T())
	if mat.Det(&r) < 0 {
		for i := 0; i < 3; i++ {
			u.Set(i, 2, -u.At(i, 2))
		}
		r.Mul(&u, v.T())
	}

	// With A = R*diag(s), the diagonal of R^T*A recovers the per-axis scales
	// in axis order, signs included.
	var s mat.Dense
	s.Mul(r.T(), a)

	var rm [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			rm[i][j] = r.At(i, j)
		}
	}
	q := rotationMatrixToQuat(rm)

	params := make([]float64, p.NumParameters())
	params[0], params[1], params[2] = q.Imag, q.Jmag, q.Kmag
	params[3], params[4], params[5] = m.At(0, 3), m.At(1, 3), m.At(2, 3)
	if p.isotropic {
		params[6] = (s.At(0, 0) + s.At(1, 1) + s.At(2, 2)) / 3
	} else {
		params[6], params[7], params[8] = s.At(0, 0), s.At(1, 1), s.At(2, 2)
	}
	return params, nil
}

// versorToQuat recovers the full unit quaternion from the vector part of a
// versor. When an optimization step pushes the vector norm past one, the
// vector is projected back onto the unit ball rather than producing a NaN
// real part.
func versorToQuat(x, y, z float64) quat.Number {
	nn := x*x + y*y + z*z
	if nn > 1 {
		n := math.Sqrt(nn)
		return quat.Number{Real: 0, Imag: x / n, Jmag: y / n, Kmag: z / n}
	}
	return quat.Number{Real: math.Sqrt(1 - nn), Imag: x, Jmag: y, Kmag: z}
}

// quatToRotationMatrix converts a unit quaternion to a 3x3 rotation matrix.
func quatToRotationMatrix(q quat.Number) [3][3]float64 {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return [3][3]float64{
		{1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y)},
		{2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x)},
		{2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y)},
	}
}

// rotationMatrixToQuat converts a 3x3 rotation matrix to a unit quaternion
// with a non-negative real part, so the versor representation is unique.
func rotationMatrixToQuat(r [3][3]float64) quat.Number {
	var q quat.Number
	tr := r[0][0] + r[1][1] + r[2][2]
	switch {
	case tr > 0:
		s := 2 * math.Sqrt(tr+1)
		q = quat.Number{
			Real: s / 4,
			Imag: (r[2][1] - r[1][2]) / s,
			Jmag: (r[0][2] - r[2][0]) / s,
			Kmag: (r[1][0] - r[0][1]) / s,
		}
	case r[0][0] > r[1][1] && r[0][0] > r[2][2]:
		s := 2 * math.Sqrt(1 + r[0][0] - r[1][1] - r[2][2])
		q = quat.Number{
			Real: (r[2][1] - r[1][2]) / s,
			Imag: s / 4,
			Jmag: (r[0][1] + r[1][0]) / s,
			Kmag: (r[0][2] + r[2][0]) / s,
		}
	case r[1][1] > r[2][2]:
		s := 2 * math.Sqrt(1 + r[1][1] - r[0][0] - r[2][2])
		q = quat.Number{
			Real: (r[0][2] - r[2][0]) / s,
			Imag: (r[0][1] + r[1][0]) / s,
			Jmag: s / 4,
			Kmag: (r[1][2] + r[2][1]) / s,
		}
	default:
		s := 2 * math.Sqrt(1 + r[2][2] - r[0][0] - r[1][1])
		q = quat.Number{
			Real: (r[1][0] - r[0][1]) / s,
			Imag: (r[0][2] + r[2][0]) / s,
			Jmag: (r[1][2] + r[2][1]) / s,
			Kmag: s / 4,
		}
	}
	if q.Real < 0 {
		q = quat.Number{Real: -q.Real, Imag: -q.Imag, Jmag: -q.Jmag, Kmag: -q.Kmag}
	}
	return q
}
