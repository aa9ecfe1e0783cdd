package spatialmath

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestNewLine(t *testing.T) {
	_, err := NewLine(r3.Vector{X: 1, Y: 2, Z: 3}, r3.Vector{X: 1, Y: 2, Z: 3})
	test.That(t, err, test.ShouldNotBeNil)

	l, err := NewLine(r3.Vector{X: 0, Y: 0, Z: 0}, r3.Vector{X: 0, Y: 0, Z: 10})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, l.Direction().Z, test.ShouldAlmostEqual, 1)
	test.That(t, l.Direction().Norm(), test.ShouldAlmostEqual, 1)
}

func TestDistanceToPoint(t *testing.T) {
	zAxis, err := NewLine(r3.Vector{X: 0, Y: 0, Z: -50}, r3.Vector{X: 0, Y: 0, Z: 50})
	test.That(t, err, test.ShouldBeNil)

	// On the line, even beyond the defining endpoints.
	test.That(t, zAxis.DistanceToPoint(r3.Vector{X: 0, Y: 0, Z: 200}), test.ShouldAlmostEqual, 0)
	// Perpendicular offsets.
	test.That(t, zAxis.DistanceToPoint(r3.Vector{X: 3, Y: 0, Z: 7}), test.ShouldAlmostEqual, 3)
	test.That(t, zAxis.DistanceToPoint(r3.Vector{X: 3, Y: 4, Z: -20}), test.ShouldAlmostEqual, 5)

	diagonal, err := NewLine(r3.Vector{X: 0, Y: 0, Z: 0}, r3.Vector{X: 1, Y: 1, Z: 0})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, diagonal.DistanceToPoint(r3.Vector{X: 1, Y: 0, Z: 0}), test.ShouldAlmostEqual, math.Sqrt2/2)
}
