package slam

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"go.viam.com/utils"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/slamsim/logging"
	"go.viam.com/slamsim/spatialmath"
)

const (
	// poseDim is the number of pose entries at the head of the state vector: theta, x, y.
	poseDim = 3
	// landmarkDim is the number of state entries per landmark: x, y.
	landmarkDim = 2

	// DefaultNewLandmarkVariance is the variance given to each coordinate of a newly seen landmark.
	DefaultNewLandmarkVariance = 1e4
	// DefaultAngularTolerance is the angular displacement below which motion is treated as straight.
	DefaultAngularTolerance = 1e-9

	// a squared range below this means the robot sits on the landmark and bearing is undefined
	minSquaredRange = 1e-12
)

// EKFConfig describes the noise model of the estimator.
type EKFConfig struct {
	// ProcessNoise holds the variances added to theta, x and y on every predict.
	ProcessNoise        [3]float64 `json:"process_noise"`
	RangeVariance       float64    `json:"range_variance"`
	BearingVariance     float64    `json:"bearing_variance"`
	NewLandmarkVariance float64    `json:"new_landmark_variance"`
	AngularTolerance    float64    `json:"angular_tolerance"`

	InitialPose spatialmath.Pose2D `json:"-"`
}

// Validate ensures all parts of the config are valid.
func (cfg *EKFConfig) Validate(path string) error {
	check := func(name string, v float64) error {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return utils.NewConfigValidationError(path, fmt.Errorf("%s must be a non-negative number, got %v", name, v))
		}
		return nil
	}
	for i, q := range cfg.ProcessNoise {
		if err := check(fmt.Sprintf("process_noise[%d]", i), q); err != nil {
			return err
		}
	}
	for name, v := range map[string]float64{
		"range_variance":        cfg.RangeVariance,
		"bearing_variance":      cfg.BearingVariance,
		"new_landmark_variance": cfg.NewLandmarkVariance,
		"angular_tolerance":     cfg.AngularTolerance,
	} {
		if err := check(name, v); err != nil {
			return err
		}
	}
	if !cfg.InitialPose.IsFinite() {
		return utils.NewConfigValidationError(path, fmt.Errorf("initial pose %v is not finite", cfg.InitialPose))
	}
	return nil
}

// CorrectResult summarizes one Correct call.
type CorrectResult struct {
	// Applied counts measurements that updated the estimate.
	Applied int
	// Initialized counts measurements that introduced a new landmark.
	Initialized int
	// Rejected counts measurements that were discarded without touching the estimate.
	Rejected int
}

// An EKF jointly estimates the robot pose and the positions of the landmarks it has observed. The
// state is [theta, x, y, m1x, m1y, m2x, m2y, ...] with landmarks in first observation order. It is
// not safe for concurrent use.
type EKF struct {
	state *mat.VecDense
	cov   *mat.SymDense

	// landmark id to offset of its x entry in state
	index map[int]int
	// landmark ids in first observation order
	ids []int

	processNoise        [3]float64
	measurementNoise    *mat.SymDense
	newLandmarkVariance float64
	angularTolerance    float64

	logger logging.Logger
}

// NewEKF returns an estimator at cfg.InitialPose with zero pose uncertainty and an empty map.
func NewEKF(cfg EKFConfig, logger logging.Logger) (*EKF, error) {
	if err := cfg.Validate("ekf"); err != nil {
		return nil, err
	}
	if cfg.NewLandmarkVariance == 0 {
		cfg.NewLandmarkVariance = DefaultNewLandmarkVariance
	}
	if cfg.AngularTolerance == 0 {
		cfg.AngularTolerance = DefaultAngularTolerance
	}
	p := cfg.InitialPose
	return &EKF{
		state:               mat.NewVecDense(poseDim, []float64{spatialmath.NormalizeAngle(p.Theta), p.X, p.Y}),
		cov:                 mat.NewSymDense(poseDim, nil),
		index:               map[int]int{},
		processNoise:        cfg.ProcessNoise,
		measurementNoise:    mat.NewSymDense(2, []float64{cfg.RangeVariance, 0, 0, cfg.BearingVariance}),
		newLandmarkVariance: cfg.NewLandmarkVariance,
		angularTolerance:    cfg.AngularTolerance,
		logger:              logger,
	}, nil
}

// Predict moves the pose estimate by the body displacement twist, the motion measured by odometry
// since the previous predict, and propagates the covariance. Landmarks are static and do not move.
func (ekf *EKF) Predict(twist spatialmath.Twist2D) error {
	if !twist.IsFinite() {
		return errors.Errorf("cannot predict with non-finite twist %v", twist)
	}
	if !spatialmath.AlmostEqual(twist.YDot, 0, spatialmath.Epsilon) {
		return errors.Errorf("cannot predict with sideways twist %v", twist)
	}

	theta, x, y := ekf.state.AtVec(0), ekf.state.AtVec(1), ekf.state.AtVec(2)
	v, w := twist.XDot, twist.ThetaDot

	var nextTheta, nextX, nextY, a10, a20 float64
	if spatialmath.AlmostEqual(w, 0, ekf.angularTolerance) {
		s, c := math.Sincos(theta)
		nextTheta = theta
		nextX = x + v*c
		nextY = y + v*s
		a10 = -v * s
		a20 = v * c
	} else {
		s, c := math.Sincos(theta)
		sw, cw := math.Sincos(theta + w)
		ratio := v / w
		nextTheta = spatialmath.NormalizeAngle(theta + w)
		nextX = x - ratio*s + ratio*sw
		nextY = y + ratio*c - ratio*cw
		a10 = -ratio*c + ratio*cw
		a20 = -ratio*s + ratio*sw
	}

	n := ekf.state.Len()
	a := identity(n)
	a.Set(1, 0, a10)
	a.Set(2, 0, a20)

	var as, asat mat.Dense
	as.Mul(a, ekf.cov)
	asat.Mul(&as, a.T())
	for i, q := range ekf.processNoise {
		asat.Set(i, i, asat.At(i, i)+q)
	}

	nextState := mat.VecDenseCopyOf(ekf.state)
	nextState.SetVec(0, nextTheta)
	nextState.SetVec(1, nextX)
	nextState.SetVec(2, nextY)
	nextCov := symmetrize(&asat)
	if !allFinite(nextState) || !allFinite(nextCov) {
		return errors.Errorf("predict with twist %v produced a non-finite estimate", twist)
	}
	ekf.state, ekf.cov = nextState, nextCov
	return nil
}

// Correct folds a batch of landmark measurements into the estimate, one at a time in the given
// order. A measurement of a landmark not seen before first adds that landmark to the state at the
// position implied by the current pose estimate. Measurements that cannot be applied without
// producing a degenerate estimate are rejected and leave the estimate as it was.
func (ekf *EKF) Correct(measurements []LandmarkMeasurement) CorrectResult {
	var res CorrectResult
	for _, m := range measurements {
		initialized, err := ekf.correctOne(m)
		if err != nil {
			res.Rejected++
			ekf.logger.Warnw("rejected landmark measurement", "measurement", m, "error", err)
			continue
		}
		res.Applied++
		if initialized {
			res.Initialized++
		}
	}
	return res
}

// Run performs a predict followed by a correct.
func (ekf *EKF) Run(twist spatialmath.Twist2D, measurements []LandmarkMeasurement) (CorrectResult, error) {
	if err := ekf.Predict(twist); err != nil {
		return CorrectResult{}, err
	}
	return ekf.Correct(measurements), nil
}

func (ekf *EKF) correctOne(m LandmarkMeasurement) (bool, error) {
	if !m.IsFinite() || m.R < 0 {
		return false, errors.Errorf("invalid measurement %v", m)
	}

	state, cov := ekf.state, ekf.cov
	offset, known := ekf.index[m.ID]
	if !known {
		state, cov, offset = ekf.withLandmark(m)
	}
	n := state.Len()

	theta, x, y := state.AtVec(0), state.AtVec(1), state.AtVec(2)
	dx, dy := state.AtVec(offset)-x, state.AtVec(offset+1)-y
	q := dx*dx + dy*dy
	if q < minSquaredRange {
		return false, errors.Errorf("landmark %d coincides with the robot", m.ID)
	}
	sq := math.Sqrt(q)
	rangeHat := sq
	bearingHat := spatialmath.NormalizeAngle(math.Atan2(dy, dx) - theta)

	h := mat.NewDense(2, n, nil)
	h.Set(0, 1, -dx/sq)
	h.Set(0, 2, -dy/sq)
	h.Set(0, offset, dx/sq)
	h.Set(0, offset+1, dy/sq)
	h.Set(1, 0, -1)
	h.Set(1, 1, dy/q)
	h.Set(1, 2, -dx/q)
	h.Set(1, offset, -dy/q)
	h.Set(1, offset+1, dx/q)

	var pht, innCov, innCovInv, gain mat.Dense
	pht.Mul(cov, h.T())
	innCov.Mul(h, &pht)
	innCov.Add(&innCov, ekf.measurementNoise)
	if err := innCovInv.Inverse(&innCov); err != nil {
		return false, errors.Wrapf(err, "innovation covariance for landmark %d is singular", m.ID)
	}
	gain.Mul(&pht, &innCovInv)

	innovation := mat.NewVecDense(2, []float64{
		m.R - rangeHat,
		spatialmath.AngleDiff(m.Phi, bearingHat),
	})
	var correction mat.VecDense
	correction.MulVec(&gain, innovation)

	nextState := mat.NewVecDense(n, nil)
	nextState.AddVec(state, &correction)
	nextState.SetVec(0, spatialmath.NormalizeAngle(nextState.AtVec(0)))

	var kh, nextCov mat.Dense
	kh.Mul(&gain, h)
	ikh := identity(n)
	ikh.Sub(ikh, &kh)
	nextCov.Mul(ikh, cov)
	nextSym := symmetrize(&nextCov)

	if !allFinite(nextState) || !allFinite(nextSym) {
		return false, errors.Errorf("correction for landmark %d produced a non-finite estimate", m.ID)
	}

	ekf.state, ekf.cov = nextState, nextSym
	if !known {
		ekf.index[m.ID] = offset
		ekf.ids = append(ekf.ids, m.ID)
		ekf.logger.Debugw("new landmark", "id", m.ID, "offset", offset,
			"x", state.AtVec(offset), "y", state.AtVec(offset+1))
	}
	return !known, nil
}

// withLandmark returns copies of the state and covariance grown by the landmark m observes, placed
// where the current pose estimate says it is. Its covariance block is a large diagonal and its
// cross-covariance with the rest of the state is zero, even though its position was derived from
// the pose.
func (ekf *EKF) withLandmark(m LandmarkMeasurement) (*mat.VecDense, *mat.SymDense, int) {
	n := ekf.state.Len()
	theta, x, y := ekf.state.AtVec(0), ekf.state.AtVec(1), ekf.state.AtVec(2)
	s, c := math.Sincos(m.Phi + theta)

	state := mat.NewVecDense(n+landmarkDim, nil)
	state.SetVec(n, x+m.R*c)
	state.SetVec(n+1, y+m.R*s)
	for i := 0; i < n; i++ {
		state.SetVec(i, ekf.state.AtVec(i))
	}

	cov := mat.NewSymDense(n+landmarkDim, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			cov.SetSym(i, j, ekf.cov.At(i, j))
		}
	}
	cov.SetSym(n, n, ekf.newLandmarkVariance)
	cov.SetSym(n+1, n+1, ekf.newLandmarkVariance)
	return state, cov, n
}

// SetPose overwrites the pose estimate and clears its uncertainty. The map is kept.
func (ekf *EKF) SetPose(p spatialmath.Pose2D) error {
	if !p.IsFinite() {
		return errors.Errorf("cannot set non-finite pose %v", p)
	}
	ekf.state.SetVec(0, spatialmath.NormalizeAngle(p.Theta))
	ekf.state.SetVec(1, p.X)
	ekf.state.SetVec(2, p.Y)
	n := ekf.state.Len()
	for i := 0; i < poseDim; i++ {
		for j := 0; j < n; j++ {
			ekf.cov.SetSym(i, j, 0)
		}
	}
	return nil
}

// Pose returns the current pose estimate.
func (ekf *EKF) Pose() spatialmath.Pose2D {
	return spatialmath.Pose2D{X: ekf.state.AtVec(1), Y: ekf.state.AtVec(2), Theta: ekf.state.AtVec(0)}
}

// Map returns the estimated landmark positions in first observation order.
func (ekf *EKF) Map() []Landmark {
	landmarks := make([]Landmark, 0, len(ekf.ids))
	for _, id := range ekf.ids {
		offset := ekf.index[id]
		landmarks = append(landmarks, Landmark{ID: id, X: ekf.state.AtVec(offset), Y: ekf.state.AtVec(offset + 1)})
	}
	return landmarks
}

// LandmarkIndex returns the offset of the landmark's x entry in the state vector.
func (ekf *EKF) LandmarkIndex(id int) (int, bool) {
	offset, ok := ekf.index[id]
	return offset, ok
}

// NumLandmarks returns the number of landmarks in the map.
func (ekf *EKF) NumLandmarks() int {
	return len(ekf.ids)
}

// State returns a copy of the state vector.
func (ekf *EKF) State() *mat.VecDense {
	return mat.VecDenseCopyOf(ekf.state)
}

// Covariance returns a copy of the state covariance.
func (ekf *EKF) Covariance() *mat.SymDense {
	cov := mat.NewSymDense(ekf.cov.SymmetricDim(), nil)
	cov.CopySym(ekf.cov)
	return cov
}

func identity(n int) *mat.Dense {
	eye := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		eye.Set(i, i, 1)
	}
	return eye
}

// symmetrize averages a square matrix with its transpose.
func symmetrize(m mat.Matrix) *mat.SymDense {
	n, _ := m.Dims()
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, (m.At(i, j)+m.At(j, i))/2)
		}
	}
	return sym
}

func allFinite(m mat.Matrix) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := m.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}
