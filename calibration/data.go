package calibration

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/sonotrack/probecal/spatialmath"
)

// PointCorrespondence pairs a wire intersection observed in the image frame
// with the same physical point expressed in the probe frame. The slice index
// of a correspondence is its identity for outlier exclusion.
type PointCorrespondence struct {
	Image r3.Vector
	Probe r3.Vector
}

// WireObservation pairs an image-frame wire intersection with the phantom wire
// it was detected on and the probe-to-phantom transform active for that frame.
// Several observations may share a wire and a transform, one per detected wire
// per frame. The slice index of an observation is its identity for outlier
// exclusion.
type WireObservation struct {
	Image          r3.Vector
	Wire           spatialmath.Line
	ProbeToPhantom *mat.Dense
}

// Outliers is a set of indices excluded from optimization and error
// computation. The optimizer only reads it; ownership stays with the caller.
type Outliers map[int]bool

// retainedPoints returns the correspondences whose indices are not excluded.
func retainedPoints(corrs []PointCorrespondence, outliers Outliers) []PointCorrespondence {
	kept := make([]PointCorrespondence, 0, len(corrs))
	for i, c := range corrs {
		if !outliers[i] {
			kept = append(kept, c)
		}
	}
	return kept
}

// retainedWires returns the observations whose indices are not excluded, along
// with the matching precomputed phantom-frame inverses.
func retainedWires(obs []WireObservation, inverses []*mat.Dense, outliers Outliers) ([]WireObservation, []*mat.Dense) {
	keptObs := make([]WireObservation, 0, len(obs))
	keptInv := make([]*mat.Dense, 0, len(inverses))
	for i, o := range obs {
		if !outliers[i] {
			keptObs = append(keptObs, o)
			keptInv = append(keptInv, inverses[i])
		}
	}
	return keptObs, keptInv
}
