package calibration

import (
	"gonum.org/v1/gonum/mat"

	"github.com/sonotrack/probecal/spatialmath"
)

// transformResiduals computes one residual magnitude per retained
// correspondence for a candidate image-to-probe matrix. Both metrics evaluate
// in O(retained) and are deterministic for identical inputs, which the solver
// relies on for reproducible convergence.
type transformResiduals func(imageToProbe *mat.Dense) []float64

// newPointDistanceMetric returns the 3D point metric: the Euclidean distance
// between each image-frame point mapped through the candidate matrix and its
// probe-frame counterpart.
func newPointDistanceMetric(corrs []PointCorrespondence) transformResiduals {
	return func(imageToProbe *mat.Dense) []float64 {
		residuals := make([]float64, len(corrs))
		for i, c := range corrs {
			residuals[i] = spatialmath.TransformPoint(imageToProbe, c.Image).Sub(c.Probe).Norm()
		}
		return residuals
	}
}

// newWireDistanceMetric returns the wire metric: each image-frame point is
// mapped into the probe frame by the candidate matrix, then into the phantom
// frame by the inverse of that observation's probe-to-phantom transform, and
// the residual is the perpendicular 3D distance from the mapped point to the
// observed wire line. The inverses are precomputed when the observations are
// supplied.
func newWireDistanceMetric(obs []WireObservation, phantomInverses []*mat.Dense) transformResiduals {
	return func(imageToProbe *mat.Dense) []float64 {
		var imageToPhantom mat.Dense
		residuals := make([]float64, len(obs))
		for i, o := range obs {
			imageToPhantom.Mul(phantomInverses[i], imageToProbe)
			mapped := spatialmath.TransformPoint(&imageToPhantom, o.Image)
			residuals[i] = o.Wire.DistanceToPoint(mapped)
		}
		return residuals
	}
}
