package track

import (
	"gonum.org/v1/gonum/mat"
)

// KalmanFilter estimates a track's position and velocity under a
// constant-velocity linear model. State vector is [x y vx vy] in
// normalized image coordinates with one frame as the time unit.
//
// Process and measurement noise are fixed constants supplied at
// construction; there is no adaptive re-estimation.
type KalmanFilter struct {
	mean *mat.VecDense // [x y vx vy]
	cov  *mat.Dense    // 4x4

	f *mat.Dense // state transition
	q *mat.Dense // process noise
	h *mat.Dense // measurement model (position only)
	r *mat.Dense // measurement noise
}

// KalmanParams holds the fixed noise constants for a filter.
type KalmanParams struct {
	ProcessNoisePos  float64 // position process noise variance per frame
	ProcessNoiseVel  float64 // velocity process noise variance per frame
	MeasurementNoise float64 // measurement noise variance
	InitialCovPos    float64 // initial position uncertainty
	InitialCovVel    float64 // initial velocity uncertainty
}

// DefaultKalmanParams returns noise constants tuned for normalized
// coordinates at typical video frame rates.
func DefaultKalmanParams() KalmanParams {
	return KalmanParams{
		ProcessNoisePos:  1e-4,
		ProcessNoiseVel:  1e-5,
		MeasurementNoise: 1e-3,
		InitialCovPos:    1e-2,
		InitialCovVel:    1e-3,
	}
}

// NewKalmanFilter creates a filter initialized at the given position with
// zero velocity and high initial uncertainty.
func NewKalmanFilter(initial Point, p KalmanParams) *KalmanFilter {
	kf := &KalmanFilter{
		mean: mat.NewVecDense(4, []float64{initial.X, initial.Y, 0, 0}),
		cov: mat.NewDense(4, 4, []float64{
			p.InitialCovPos, 0, 0, 0,
			0, p.InitialCovPos, 0, 0,
			0, 0, p.InitialCovVel, 0,
			0, 0, 0, p.InitialCovVel,
		}),
		f: mat.NewDense(4, 4, []float64{
			1, 0, 1, 0,
			0, 1, 0, 1,
			0, 0, 1, 0,
			0, 0, 0, 1,
		}),
		q: mat.NewDense(4, 4, []float64{
			p.ProcessNoisePos, 0, 0, 0,
			0, p.ProcessNoisePos, 0, 0,
			0, 0, p.ProcessNoiseVel, 0,
			0, 0, 0, p.ProcessNoiseVel,
		}),
		h: mat.NewDense(2, 4, []float64{
			1, 0, 0, 0,
			0, 1, 0, 0,
		}),
		r: mat.NewDense(2, 2, []float64{
			p.MeasurementNoise, 0,
			0, p.MeasurementNoise,
		}),
	}
	return kf
}

// Predict advances mean and covariance by one frame:
// x' = F·x, P' = F·P·Fᵀ + Q.
func (kf *KalmanFilter) Predict() {
	var x mat.VecDense
	x.MulVec(kf.f, kf.mean)
	kf.mean.CopyVec(&x)

	var fp, fpft mat.Dense
	fp.Mul(kf.f, kf.cov)
	fpft.Mul(&fp, kf.f.T())
	fpft.Add(&fpft, kf.q)
	kf.cov.Copy(&fpft)
}

// Correct applies the gain-weighted measurement update for an observed
// position. A numerically singular innovation covariance leaves the
// filter state unchanged.
func (kf *KalmanFilter) Correct(meas Point) {
	// Innovation y = z - H·x.
	var hx mat.VecDense
	hx.MulVec(kf.h, kf.mean)
	y := mat.NewVecDense(2, []float64{meas.X - hx.AtVec(0), meas.Y - hx.AtVec(1)})

	// S = H·P·Hᵀ + R.
	var hp, s mat.Dense
	hp.Mul(kf.h, kf.cov)
	s.Mul(&hp, kf.h.T())
	s.Add(&s, kf.r)

	var sInv mat.Dense
	if err := sInv.Inverse(&s); err != nil {
		return
	}

	// K = P·Hᵀ·S⁻¹.
	var pht, k mat.Dense
	pht.Mul(kf.cov, kf.h.T())
	k.Mul(&pht, &sInv)

	// x' = x + K·y.
	var ky mat.VecDense
	ky.MulVec(&k, y)
	kf.mean.AddVec(kf.mean, &ky)

	// P' = (I - K·H)·P.
	var kh mat.Dense
	kh.Mul(&k, kf.h)
	ikh := eye4()
	ikh.Sub(ikh, &kh)
	var newP mat.Dense
	newP.Mul(ikh, kf.cov)
	kf.cov.Copy(&newP)
}

// Position returns the current position estimate.
func (kf *KalmanFilter) Position() Point {
	return Point{kf.mean.AtVec(0), kf.mean.AtVec(1)}
}

// Velocity returns the current velocity estimate in normalized units
// per frame.
func (kf *KalmanFilter) Velocity() Point {
	return Point{kf.mean.AtVec(2), kf.mean.AtVec(3)}
}

// SetPosition overwrites the position components of the state without
// touching velocity or covariance. Used for camera-motion compensation.
func (kf *KalmanFilter) SetPosition(p Point) {
	kf.mean.SetVec(0, p.X)
	kf.mean.SetVec(1, p.Y)
}

func eye4() *mat.Dense {
	return mat.NewDense(4, 4, []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})
}
