// Package kalman implements the eight-dimensional constant-velocity Kalman
// filter used to predict a tracked box's center, aspect ratio and height
// across frames. It is a standalone package (mirroring how the teacher
// library keeps its Kalman math behind its own import) so it can be reused
// outside the tracker package.
package kalman

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Measurement is a detection box in (cx, cy, a, h) form: center-x,
// center-y, aspect ratio (width/height) and height.
type Measurement [4]float64

// Metric selects the distance function used by GatingDistance.
type Metric string

const (
	// MetricGaussian is squared Euclidean distance in projected (measurement) space.
	MetricGaussian Metric = "gaussian"
	// MetricMahalanobis is squared Mahalanobis distance using the Cholesky
	// factor of the projected covariance.
	MetricMahalanobis Metric = "maha"
)

// ErrUnknownMetric is returned by GatingDistance for any metric other than
// MetricGaussian or MetricMahalanobis.
var ErrUnknownMetric = errors.New("kalman: unknown gating metric")

// ErrSingularCovariance is returned when the projected covariance is not
// positive definite and cannot be Cholesky-factored.
var ErrSingularCovariance = errors.New("kalman: covariance is not positive definite")

// stateDim is the dimension of the state vector (cx, cy, a, h, vcx, vcy, va, vh).
const stateDim = 8

// measDim is the dimension of a measurement (cx, cy, a, h).
const measDim = 4

// Filter is a stateless (in the sense of holding no track state) constant
// velocity motion model operating on externally owned (mean, covariance)
// pairs. A single instance is shared across every track in a tracker, as
// the reference ByteTrack implementation shares one KalmanFilter object.
type Filter struct {
	stdWeightPosition float64
	stdWeightVelocity float64
	motionMat         *mat.Dense // F, 8x8
	updateMat         *mat.Dense // H, 4x8
}

// NewFilter builds the motion and measurement matrices for the 8-D
// constant-velocity model with unit time step, and fixes the noise weights
// per the reference model: sigma_pos = 1/20, sigma_vel = 1/160.
func NewFilter() *Filter {
	motionMat := mat.NewDense(stateDim, stateDim, nil)
	for i := 0; i < stateDim; i++ {
		motionMat.Set(i, i, 1.0)
	}
	for i := 0; i < measDim; i++ {
		motionMat.Set(i, i+measDim, 1.0) // dt = 1
	}

	updateMat := mat.NewDense(measDim, stateDim, nil)
	for i := 0; i < measDim; i++ {
		updateMat.Set(i, i, 1.0)
	}

	return &Filter{
		stdWeightPosition: 1.0 / 20.0,
		stdWeightVelocity: 1.0 / 160.0,
		motionMat:         motionMat,
		updateMat:         updateMat,
	}
}

// positionStd returns the [cx, cy, a, h] noise standard deviation vector for
// a given height, used both as process noise (position block, at predict)
// and as measurement noise (at project).
func (f *Filter) positionStd(h float64) [measDim]float64 {
	p := f.stdWeightPosition * h
	return [measDim]float64{p, p, 1e-2, p}
}

// velocityStd returns the [vcx, vcy, va, vh] noise standard deviation vector
// for a given height, used as the velocity block of the process noise.
func (f *Filter) velocityStd(h float64) [measDim]float64 {
	v := f.stdWeightVelocity * h
	return [measDim]float64{v, v, 1e-5, v}
}

func diagSquared(values []float64) *mat.SymDense {
	n := len(values)
	d := mat.NewSymDense(n, nil)
	for i, v := range values {
		d.SetSym(i, i, v*v)
	}
	return d
}

// Initiate creates the mean and covariance for a newly observed
// measurement: mean is [z; 0,0,0,0], and the covariance is diagonal, built
// from the same height-proportional noise weights used at predict/project.
func (f *Filter) Initiate(z Measurement) (*mat.VecDense, *mat.SymDense) {
	mean := mat.NewVecDense(stateDim, nil)
	for i := 0; i < measDim; i++ {
		mean.SetVec(i, z[i])
	}

	h := z[3]
	pos := f.positionStd(h)
	vel := f.velocityStd(h)
	std := append(append([]float64{}, pos[:]...), vel[:]...)
	cov := diagSquared(std)
	return mean, cov
}

// sandwich computes a * b * a^T for a (n x m) and b (m x m), returning a
// Dense result (the caller symmetrizes before storing into a SymDense).
func sandwich(a mat.Matrix, b mat.Matrix) *mat.Dense {
	var tmp mat.Dense
	tmp.Mul(a, b)
	var out mat.Dense
	out.Mul(&tmp, a.T())
	return &out
}

// symmetrize returns d as a SymDense, averaging d with its transpose to
// cancel floating point asymmetry accumulated across matrix products.
func symmetrize(d *mat.Dense, n int) *mat.SymDense {
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, (d.At(i, j)+d.At(j, i))/2.0)
		}
	}
	return sym
}

// Predict advances (mean, cov) by one time step under the constant-velocity
// model, using process noise built from the pre-predict height mean[3].
func (f *Filter) Predict(mean *mat.VecDense, cov *mat.SymDense) (*mat.VecDense, *mat.SymDense) {
	h := mean.AtVec(3)
	pos := f.positionStd(h)
	vel := f.velocityStd(h)
	std := append(append([]float64{}, pos[:]...), vel[:]...)
	motionCov := diagSquared(std)

	newMean := mat.NewVecDense(stateDim, nil)
	newMean.MulVec(f.motionMat, mean)

	predicted := sandwich(f.motionMat, cov)
	predicted.Add(predicted, motionCov)
	newCov := symmetrize(predicted, stateDim)

	return newMean, newCov
}

// MultiPredict is the vectorized form of Predict over K tracks, yielding the
// same result as K independent Predict calls (each track's process noise is
// built from its own pre-predict mean).
func (f *Filter) MultiPredict(means []*mat.VecDense, covs []*mat.SymDense) ([]*mat.VecDense, []*mat.SymDense) {
	outMeans := make([]*mat.VecDense, len(means))
	outCovs := make([]*mat.SymDense, len(covs))
	for i := range means {
		outMeans[i], outCovs[i] = f.Predict(means[i], covs[i])
	}
	return outMeans, outCovs
}

// Project maps (mean, cov) into measurement space, adding the
// height-proportional measurement noise R.
func (f *Filter) Project(mean *mat.VecDense, cov *mat.SymDense) (*mat.VecDense, *mat.SymDense) {
	h := mean.AtVec(3)
	pos := f.positionStd(h)
	r := diagSquared(pos[:])

	projMean := mat.NewVecDense(measDim, nil)
	projMean.MulVec(f.updateMat, mean)

	projected := sandwich(f.updateMat, cov)
	projected.Add(projected, r)
	projCov := symmetrize(projected, measDim)

	return projMean, projCov
}

// Update performs the Kalman correction for (mean, cov) given a new
// measurement, via a Cholesky-based solve of the projected covariance for
// numerical stability. Returns ErrSingularCovariance if that covariance is
// not positive definite; on error the caller's (mean, cov) should be left
// untouched.
func (f *Filter) Update(mean *mat.VecDense, cov *mat.SymDense, z Measurement) (*mat.VecDense, *mat.SymDense, error) {
	projMean, projCov := f.Project(mean, cov)

	var chol mat.Cholesky
	if ok := chol.Factorize(projCov); !ok {
		return nil, nil, ErrSingularCovariance
	}

	// B = H * cov, shape (measDim x stateDim); solving projCov * X = B for X
	// (measDim x stateDim) and transposing gives the Kalman gain (stateDim x measDim).
	b := mat.NewDense(measDim, stateDim, nil)
	b.Mul(f.updateMat, cov)

	var x mat.Dense
	if err := chol.SolveTo(&x, b); err != nil {
		return nil, nil, errors.Wrap(ErrSingularCovariance, err.Error())
	}

	gain := mat.NewDense(stateDim, measDim, nil)
	gain.CloneFrom(x.T())

	innovation := mat.NewVecDense(measDim, nil)
	for i := 0; i < measDim; i++ {
		innovation.SetVec(i, z[i]-projMean.AtVec(i))
	}

	correction := mat.NewVecDense(stateDim, nil)
	correction.MulVec(gain, innovation)

	newMean := mat.NewVecDense(stateDim, nil)
	newMean.AddVec(mean, correction)

	// newCov = cov - gain * projCov * gain^T = cov - B^T * X
	var bx mat.Dense
	bx.Mul(b.T(), &x)
	reduced := new(mat.Dense)
	reduced.Sub(cov, &bx)
	newCov := symmetrize(reduced, stateDim)

	return newMean, newCov, nil
}

// GatingDistance returns, for each of the supplied measurements, the squared
// distance from (mean, cov) under the requested metric. When onlyPosition
// is true, distances are restricted to the first two (cx, cy) dimensions.
func (f *Filter) GatingDistance(mean *mat.VecDense, cov *mat.SymDense, measurements []Measurement, onlyPosition bool, metric Metric) ([]float64, error) {
	if metric != MetricGaussian && metric != MetricMahalanobis {
		return nil, errors.Wrapf(ErrUnknownMetric, "%q", string(metric))
	}

	projMean, projCov := f.Project(mean, cov)

	dim := measDim
	if onlyPosition {
		dim = 2
	}

	diffs := mat.NewDense(len(measurements), dim, nil)
	for i, m := range measurements {
		for j := 0; j < dim; j++ {
			diffs.Set(i, j, m[j]-projMean.AtVec(j))
		}
	}

	distances := make([]float64, len(measurements))

	switch metric {
	case MetricGaussian:
		for i := 0; i < len(measurements); i++ {
			sum := 0.0
			for j := 0; j < dim; j++ {
				v := diffs.At(i, j)
				sum += v * v
			}
			distances[i] = sum
		}
	case MetricMahalanobis:
		sub := mat.NewSymDense(dim, nil)
		for i := 0; i < dim; i++ {
			for j := i; j < dim; j++ {
				sub.SetSym(i, j, projCov.At(i, j))
			}
		}
		var chol mat.Cholesky
		if ok := chol.Factorize(sub); !ok {
			return nil, ErrSingularCovariance
		}
		var lower mat.TriDense
		chol.LTo(&lower)
		for i := 0; i < len(measurements); i++ {
			row := mat.NewVecDense(dim, diffs.RawRowView(i))
			y := mat.NewVecDense(dim, nil)
			if err := y.SolveVec(&lower, row); err != nil {
				return nil, errors.Wrap(ErrSingularCovariance, err.Error())
			}
			sum := 0.0
			for j := 0; j < dim; j++ {
				v := y.AtVec(j)
				sum += v * v
			}
			distances[i] = sum
		}
	}

	return distances, nil
}

// IsFinite reports whether every component of a measurement is finite,
// guarding against NaN/Inf reaching the filter's linear algebra.
func (m Measurement) IsFinite() bool {
	for _, v := range m {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
