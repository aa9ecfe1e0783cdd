package calibration

import (
	"math"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/sonotrack/probecal/spatialmath"
)

// Optimizer refines an image-to-probe transform seed against phantom wire
// correspondences. Each instance owns its seed and result; the correspondence
// collections are referenced, not copied, and the caller must keep them valid
// and unmodified while Update runs. Instances are not safe for concurrent use;
// independent calibration problems need independent instances.
//
// The optimizer is Idle until Update succeeds for the current inputs. Any call
// that changes configuration or input data returns it to Idle; a failed Update
// leaves the previous state untouched.
type Optimizer struct {
	logger    golog.Logger
	method    Method
	isotropic bool

	seed *mat.Dense

	points        []PointCorrespondence
	pointOutliers Outliers

	wires           []WireObservation
	wireOutliers    Outliers
	phantomInverses []*mat.Dense

	// iterationCap overrides the solver's iteration limit when positive.
	iterationCap int

	result    *mat.Dense
	optimized bool
}

// NewOptimizer returns an optimizer with method NONE and anisotropic scaling.
func NewOptimizer(logger golog.Logger) *Optimizer {
	return &Optimizer{logger: logger}
}

// Method returns the configured optimization method.
func (o *Optimizer) Method() Method {
	return o.method
}

// SetMethod selects the cost metric to minimize.
func (o *Optimizer) SetMethod(m Method) {
	o.method = m
	o.optimized = false
}

// IsotropicScale reports whether scale is constrained to a single value on all
// three axes.
func (o *Optimizer) IsotropicScale() bool {
	return o.isotropic
}

// SetIsotropicScale constrains, or unconstrains, the scale parameters.
func (o *Optimizer) SetIsotropicScale(isotropic bool) {
	o.isotropic = isotropic
	o.optimized = false
}

// Enabled reports whether optimization is requested, i.e. the method is not
// NONE. It is a pure query with no side effects.
func (o *Optimizer) Enabled() bool {
	return o.method != MethodNone
}

// SetSeedTransform supplies the initial image-to-probe estimate. The seed is
// copied; Update never mutates it and produces a fresh result matrix.
func (o *Optimizer) SetSeedTransform(seed *mat.Dense) error {
	if r, c := seed.Dims(); r != 4 || c != 4 {
		return errors.Errorf("seed transform must be 4x4, got %dx%d", r, c)
	}
	o.seed = mat.DenseCopyOf(seed)
	o.optimized = false
	return nil
}

// SetPointCorrespondences supplies the input data for the 3D distance method.
// Outlier indices refer to positions in corrs and may be nil.
func (o *Optimizer) SetPointCorrespondences(corrs []PointCorrespondence, outliers Outliers) {
	o.points = corrs
	o.pointOutliers = outliers
	o.optimized = false
}

// SetWireObservations supplies the input data for the 2D distance method.
// Outlier indices refer to positions in obs and may be nil. The per-frame
// probe-to-phantom transforms are inverted here, once, so a singular transform
// is reported at set time rather than mid-optimization.
func (o *Optimizer) SetWireObservations(obs []WireObservation, outliers Outliers) error {
	inverses := make([]*mat.Dense, len(obs))
	var err error
	for i, ob := range obs {
		if ob.ProbeToPhantom == nil {
			err = multierr.Append(err, errors.Errorf("observation %d has no probe-to-phantom transform", i))
			continue
		}
		inv, invErr := spatialmath.InvertTransform(ob.ProbeToPhantom)
		if invErr != nil {
			err = multierr.Append(err, errors.Wrapf(invErr, "observation %d", i))
			continue
		}
		inverses[i] = inv
	}
	if err != nil {
		return err
	}
	o.wires = obs
	o.wireOutliers = outliers
	o.phantomInverses = inverses
	o.optimized = false
	return nil
}

// Transform returns the refined image-to-probe matrix from the last
// successful Update.
func (o *Optimizer) Transform() (*mat.Dense, error) {
	if !o.optimized {
		return nil, errors.New("no optimized transform available; call Update first")
	}
	return o.result, nil
}

// Update runs the refinement: it filters outliers, converts the seed to the
// constrained parameter vector, minimizes the configured metric and stores the
// refined matrix. With method NONE it is a no-op success that passes the seed
// through. If the iteration cap is reached before convergence the best
// transform found is still stored and ErrNotConverged is returned.
func (o *Optimizer) Update() error {
	if o.seed == nil {
		return errors.Wrap(ErrMissingInput, "no seed transform supplied")
	}
	if o.method == MethodNone {
		o.result = mat.DenseCopyOf(o.seed)
		o.optimized = true
		o.logger.Debug("optimization method NONE, passing seed transform through")
		return nil
	}

	metric, retained, excluded, err := o.activeMetric()
	if err != nil {
		return err
	}

	parameterization := spatialmath.NewParameterization(o.isotropic)
	x0, err := parameterization.Parameters(o.seed)
	if err != nil {
		if errors.Is(err, spatialmath.ErrSingularTransform) {
			return errors.Wrap(ErrInvalidSeed, err.Error())
		}
		return err
	}

	preMean, preStdev, preRMS := summarize(metric(o.seed))
	o.logger.Debugw("starting transform optimization",
		"method", o.method.String(),
		"isotropicScale", o.isotropic,
		"retained", retained,
		"excluded", excluded,
		"seedErrorMean", preMean,
		"seedErrorStdev", preStdev,
		"seedErrorRms", preRMS,
	)

	residuals := func(x []float64) ([]float64, error) {
		m, merr := parameterization.Matrix(x)
		if merr != nil {
			return nil, merr
		}
		return metric(m), nil
	}
	limit := o.iterationCap
	if limit <= 0 {
		limit = maxIterations
	}
	x, converged, err := levenbergMarquardt(residuals, x0, limit)
	if err != nil {
		return err
	}
	refined, err := parameterization.Matrix(x)
	if err != nil {
		return err
	}

	postMean, postStdev, postRMS := summarize(metric(refined))
	o.logger.Debugw("transform optimization finished",
		"converged", converged,
		"errorMean", postMean,
		"errorStdev", postStdev,
		"errorRms", postRMS,
	)
	o.logger.Debugf("refined image-to-probe transform:\n%s", spatialmath.FormatTransform(refined))

	o.result = refined
	o.optimized = true
	if !converged {
		return errors.Wrapf(ErrNotConverged, "stopped after %d iterations", limit)
	}
	return nil
}

// ComputeError evaluates the configured metric's residuals for an arbitrary
// image-to-probe matrix over the currently retained correspondences and
// returns their mean, sample standard deviation and RMS.
func (o *Optimizer) ComputeError(imageToProbe *mat.Dense) (errorMean, errorStdev, errorRMS float64, err error) {
	if o.method == MethodNone {
		return 0, 0, 0, errors.Wrap(ErrMissingInput, "no optimization method configured")
	}
	metric, _, _, err := o.activeMetric()
	if err != nil {
		return 0, 0, 0, err
	}
	errorMean, errorStdev, errorRMS = summarize(metric(imageToProbe))
	return errorMean, errorStdev, errorRMS, nil
}

// activeMetric builds the residual function matching the configured method
// over the outlier-filtered input set, returning the retained and excluded
// counts for reporting.
func (o *Optimizer) activeMetric() (transformResiduals, int, int, error) {
	switch o.method {
	case MethodMinimize3DDistance:
		if len(o.points) == 0 {
			return nil, 0, 0, errors.Wrap(ErrMissingInput, "no point correspondences supplied for the 3D distance method")
		}
		kept := retainedPoints(o.points, o.pointOutliers)
		if len(kept) == 0 {
			return nil, 0, 0, errors.Wrap(ErrMissingInput, "all point correspondences are excluded as outliers")
		}
		return newPointDistanceMetric(kept), len(kept), len(o.points) - len(kept), nil
	case MethodMinimize2DDistance:
		if len(o.wires) == 0 {
			return nil, 0, 0, errors.Wrap(ErrMissingInput, "no wire observations supplied for the 2D distance method")
		}
		keptObs, keptInv := retainedWires(o.wires, o.phantomInverses, o.wireOutliers)
		if len(keptObs) == 0 {
			return nil, 0, 0, errors.Wrap(ErrMissingInput, "all wire observations are excluded as outliers")
		}
		return newWireDistanceMetric(keptObs, keptInv), len(keptObs), len(o.wires) - len(keptObs), nil
	default:
		return nil, 0, 0, errors.Wrapf(ErrMissingInput, "method %s has no metric", o.method)
	}
}

// summarize reduces residual magnitudes to mean, sample standard deviation
// and RMS. A single residual has zero deviation by convention.
func summarize(residuals []float64) (mean, stdev, rms float64) {
	mean = stat.Mean(residuals, nil)
	if len(residuals) > 1 {
		stdev = stat.StdDev(residuals, nil)
	}
	rms = math.Sqrt(floats.Dot(residuals, residuals) / float64(len(residuals)))
	return mean, stdev, rms
}
