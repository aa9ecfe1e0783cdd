// Package calibration refines an image-to-probe similarity transform from
// phantom wire correspondences. The Optimizer consumes correspondence data and
// a seed transform, runs a damped Gauss-Newton refinement over a constrained
// transform parameterization, and reports the refined transform together with
// residual error statistics.
package calibration

import "github.com/pkg/errors"

// Method selects which cost metric the optimizer minimizes.
type Method int

const (
	// MethodNone disables optimization; Update passes the seed through.
	MethodNone Method = iota
	// MethodMinimize3DDistance minimizes the 3D distance between transformed
	// image-frame wire intersections and their probe-frame counterparts.
	MethodMinimize3DDistance
	// MethodMinimize2DDistance minimizes the perpendicular distance between
	// image-frame wire intersections, mapped into the phantom frame, and the
	// known phantom wire lines.
	MethodMinimize2DDistance
)

// String returns the configuration name of the method.
func (m Method) String() string {
	switch m {
	case MethodMinimize3DDistance:
		return "3D"
	case MethodMinimize2DDistance:
		return "2D"
	case MethodNone:
		return "NONE"
	default:
		return "UNKNOWN"
	}
}

// MethodFromString maps a configuration name back to a Method.
func MethodFromString(s string) (Method, error) {
	switch s {
	case "3D":
		return MethodMinimize3DDistance, nil
	case "2D":
		return MethodMinimize2DDistance, nil
	case "NONE", "":
		return MethodNone, nil
	default:
		return MethodNone, errors.Errorf("unknown optimization method %q", s)
	}
}
