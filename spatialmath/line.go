package spatialmath

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// Line is an infinite 3D line through two distinct points. Calibration phantom
// wires are modeled as lines through their fixture endpoints.
type Line struct {
	Start r3.Vector
	End   r3.Vector
}

// NewLine returns a line through the two given points. Coincident endpoints do
// not define a direction and are rejected.
func NewLine(start, end r3.Vector) (Line, error) {
	if end.Sub(start).Norm() <= singularityEpsilon {
		return Line{}, errors.New("line endpoints are coincident")
	}
	return Line{Start: start, End: end}, nil
}

// Direction returns the unit direction vector of the line.
func (l Line) Direction() r3.Vector {
	return l.End.Sub(l.Start).Normalize()
}

// DistanceToPoint returns the perpendicular distance from a point to the line.
func (l Line) DistanceToPoint(p r3.Vector) float64 {
	return p.Sub(l.Start).Cross(l.Direction()).Norm()
}
