package calibration

import "github.com/pkg/errors"

var (
	// ErrInvalidSeed is returned by Update when the seed transform's
	// rotation-scale block is singular and no valid starting parameters exist.
	ErrInvalidSeed = errors.New("seed transform has a singular rotation-scale block")

	// ErrMissingInput is returned when no input data has been supplied, or the
	// supplied data does not match the configured method.
	ErrMissingInput = errors.New("input data missing or mismatched for the configured method")

	// ErrNotConverged is returned when the iteration cap is reached before the
	// cost decrease falls below tolerance. The best transform found is still
	// stored and retrievable.
	ErrNotConverged = errors.New("optimization reached the iteration cap before converging")
)
