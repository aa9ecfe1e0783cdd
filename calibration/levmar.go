package calibration

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Internal solver constants. The convergence criteria are fixed here rather
// than exposed; callers only observe convergence quality.
const (
	maxIterations     = 200
	costTolerance     = 1e-10
	costFloor         = 1e-24
	jacobianStep      = 1e-6
	initialDamping    = 1e-3
	dampingIncrease   = 10
	dampingDecrease   = 3
	minDamping        = 1e-15
	maxDampingRetries = 20
)

// residualFunc evaluates the residual vector at a parameter vector.
type residualFunc func(params []float64) ([]float64, error)

// levenbergMarquardt minimizes the sum of squared residuals starting from x0,
// taking damped Gauss-Newton steps with a numerically estimated Jacobian. A
// step is accepted only if it reduces the cost; a rejected step increases the
// damping and is retried. Damping is added to the normal equations as a
// uniform diagonal so parameters the data cannot observe simply stay at their
// seed values instead of making the solve singular. It returns the best
// parameter vector found and whether the relative cost decrease fell below
// tolerance before maxIter iterations were spent.
func levenbergMarquardt(residuals residualFunc, x0 []float64, maxIter int) ([]float64, bool, error) {
	n := len(x0)
	x := append([]float64(nil), x0...)

	r, err := residuals(x)
	if err != nil {
		return nil, false, err
	}
	m := len(r)
	if m == 0 {
		return nil, false, errors.New("no residuals to minimize")
	}
	cost := floats.Dot(r, r)

	lambda := initialDamping
	for iter := 0; iter < maxIter; iter++ {
		if cost <= costFloor {
			return x, true, nil
		}

		jac, err := numericJacobian(residuals, x, r)
		if err != nil {
			return nil, false, err
		}
		var jtj mat.Dense
		jtj.Mul(jac.T(), jac)
		grad := mat.NewVecDense(n, nil)
		grad.MulVec(jac.T(), mat.NewVecDense(m, r))

		improved := false
		evaluated := false
		for try := 0; try < maxDampingRetries; try++ {
			a := mat.NewDense(n, n, nil)
			a.Copy(&jtj)
			rhs := mat.NewVecDense(n, nil)
			for i := 0; i < n; i++ {
				a.Set(i, i, a.At(i, i)+lambda)
				rhs.SetVec(i, -grad.AtVec(i))
			}

			var step mat.VecDense
			if err := step.SolveVec(a, rhs); err != nil {
				lambda *= dampingIncrease
				continue
			}

			xNew := make([]float64, n)
			for i := range xNew {
				xNew[i] = x[i] + step.AtVec(i)
			}
			rNew, err := residuals(xNew)
			if err != nil {
				return nil, false, err
			}
			costNew := floats.Dot(rNew, rNew)
			if math.IsNaN(costNew) || math.IsInf(costNew, 0) {
				lambda *= dampingIncrease
				continue
			}
			evaluated = true
			if costNew < cost {
				relativeDecrease := (cost - costNew) / cost
				x, r, cost = xNew, rNew, costNew
				lambda = math.Max(lambda/dampingDecrease, minDamping)
				improved = true
				if relativeDecrease < costTolerance {
					return x, true, nil
				}
				break
			}
			lambda *= dampingIncrease
		}
		if !improved {
			// Only claim a minimum if at least one damped step was actually
			// evaluated and failed to reduce the cost. If every retry died in
			// the solve or produced a non-finite cost, the solver is stuck,
			// not converged.
			return x, evaluated, nil
		}
	}
	return x, false, nil
}

// numericJacobian estimates the Jacobian of the residual vector by forward
// differences around x, reusing the residuals r0 already evaluated there.
func numericJacobian(residuals residualFunc, x, r0 []float64) (*mat.Dense, error) {
	jac := mat.NewDense(len(r0), len(x), nil)
	probe := append([]float64(nil), x...)
	for j := range x {
		probe[j] = x[j] + jacobianStep
		rj, err := residuals(probe)
		if err != nil {
			return nil, err
		}
		for i := range rj {
			jac.Set(i, j, (rj[i]-r0[i])/jacobianStep)
		}
		probe[j] = x[j]
	}
	return jac, nil
}
