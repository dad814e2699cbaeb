// Package robot ties the simulator to the estimator. A Robot consumes Commands through a single
// dispatch point and exposes read-only views of ground truth and estimates.
package robot

import (
	"context"
	"fmt"
	"math"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/slamsim/collision"
	"go.viam.com/slamsim/components/base/sim"
	"go.viam.com/slamsim/components/base/wheeled"
	fakeencoder "go.viam.com/slamsim/components/encoder/fake"
	"go.viam.com/slamsim/logging"
	"go.viam.com/slamsim/services/slam"
	"go.viam.com/slamsim/spatialmath"
)

// Config is used for converting config attributes.
type Config struct {
	Sim sim.Config
	EKF slam.EKFConfig

	// SensorPeriod is the number of ticks between landmark sensing and estimator updates.
	SensorPeriod int
	// MotorCmdMax clamps incoming wheel commands when positive.
	MotorCmdMax float64
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	var err error
	err = multierr.Append(err, cfg.Sim.Validate(path))
	err = multierr.Append(err, cfg.EKF.Validate(path))
	if cfg.SensorPeriod < 1 {
		err = multierr.Append(err, utils.NewConfigValidationError(path,
			fmt.Errorf("sensor period must be at least one tick, got %d", cfg.SensorPeriod)))
	}
	if cfg.MotorCmdMax < 0 || math.IsNaN(cfg.MotorCmdMax) {
		err = multierr.Append(err, utils.NewConfigValidationError(path,
			fmt.Errorf("motor_cmd_max must be non-negative, got %v", cfg.MotorCmdMax)))
	}
	return err
}

// Snapshot is a consistent view of the robot after some tick.
type Snapshot struct {
	Step         uint64               `json:"step"`
	Time         float64              `json:"time"`
	TruePose     spatialmath.Pose2D   `json:"true_pose"`
	OdometryPose spatialmath.Pose2D   `json:"odometry_pose"`
	PoseEstimate spatialmath.Pose2D   `json:"pose_estimate"`
	MapToOdom    spatialmath.Pose2D   `json:"map_to_odom"`
	Map          []slam.Landmark      `json:"map"`
	Encoders     fakeencoder.Reading  `json:"encoders"`
	Obstacles    []collision.Obstacle `json:"obstacles"`
	Collisions   uint64               `json:"collisions"`
}

// Robot owns the simulator, the odometry tracker and the estimator. It is not safe for
// concurrent use; one goroutine dispatches every command.
type Robot struct {
	cfg Config

	sim        *sim.Simulator
	odometry   *slam.Odometry
	ekf        *slam.EKF
	trajectory *slam.TrajectoryLogger

	// simulated seconds since start
	time float64

	logger logging.Logger
}

// Option configures optional parts of a Robot.
type Option func(*Robot)

// WithTrajectoryLogger records the pose estimate after every estimator update.
func WithTrajectoryLogger(tl *slam.TrajectoryLogger) Option {
	return func(r *Robot) {
		r.trajectory = tl
	}
}

// New builds a robot at the configured initial pose. Odometry and the estimator start out
// agreeing with the simulator.
func New(cfg Config, logger logging.Logger, opts ...Option) (*Robot, error) {
	if err := cfg.Validate("robot"); err != nil {
		return nil, err
	}
	simulator, err := sim.NewSimulator(cfg.Sim, logger.Sublogger("sim"))
	if err != nil {
		return nil, err
	}
	odometry, err := slam.NewOdometry(cfg.Sim.Base, simulator.Encoder(), cfg.Sim.InitialPose)
	if err != nil {
		return nil, err
	}
	ekfCfg := cfg.EKF
	ekfCfg.InitialPose = cfg.Sim.InitialPose
	ekf, err := slam.NewEKF(ekfCfg, logger.Sublogger("ekf"))
	if err != nil {
		return nil, err
	}
	r := &Robot{
		cfg:      cfg,
		sim:      simulator,
		odometry: odometry,
		ekf:      ekf,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Dispatch applies one command. A rejected command leaves the robot untouched, except that a Tick
// whose estimator update fails has still advanced the simulation and odometry. The odometry
// displacement is kept for the next estimator update in that case.
func (r *Robot) Dispatch(ctx context.Context, cmd Command) error {
	r.logger.CDebugw(ctx, "dispatch", "command", cmd)
	switch c := cmd.(type) {
	case ApplyWheelCommand:
		return r.applyWheelCommand(c.Left, c.Right)
	case Tick:
		return r.tick(c.DT)
	case ObserveLandmarks:
		return r.observe(c.Measurements)
	case Reset:
		r.sim.Reset()
		return nil
	case Teleport:
		return r.sim.Teleport(c.Pose)
	case SetInitialPose:
		return r.setInitialPose(c.Pose)
	default:
		return errors.Errorf("unknown command %T", cmd)
	}
}

func (r *Robot) applyWheelCommand(left, right float64) error {
	if math.IsNaN(left) || math.IsNaN(right) || math.IsInf(left, 0) || math.IsInf(right, 0) {
		return errors.Errorf("wheel commands must be finite, got %v, %v", left, right)
	}
	if limit := r.cfg.MotorCmdMax; limit > 0 {
		left = math.Max(-limit, math.Min(limit, left))
		right = math.Max(-limit, math.Min(limit, right))
	}
	r.sim.ApplyWheelCommand(left, right)
	return nil
}

func (r *Robot) tick(dt float64) error {
	if err := r.sim.Tick(dt); err != nil {
		return err
	}
	r.time += dt
	r.odometry.Update(r.sim.WheelEncoderState())
	if r.sim.Step()%uint64(r.cfg.SensorPeriod) != 0 {
		return nil
	}
	return r.observe(r.sim.SenseLandmarks())
}

// observe runs one estimator cycle: predict with the odometry accumulated since the last cycle,
// then correct with the batch.
func (r *Robot) observe(measurements []slam.LandmarkMeasurement) error {
	res, err := r.ekf.Run(r.odometry.PendingTwist(), measurements)
	if err != nil {
		return errors.Wrap(err, "estimator update failed")
	}
	r.odometry.TakeTwist()
	r.logger.Debugw("estimator updated",
		"step", r.sim.Step(),
		"applied", res.Applied,
		"initialized", res.Initialized,
		"rejected", res.Rejected,
		"landmarks", r.ekf.NumLandmarks(),
	)
	if r.trajectory != nil {
		if err := r.trajectory.Log(r.time, r.ekf.Pose()); err != nil {
			r.logger.Errorw("failed to log trajectory", "error", err)
		}
	}
	return nil
}

func (r *Robot) setInitialPose(pose spatialmath.Pose2D) error {
	if !pose.IsFinite() {
		return errors.Errorf("initial pose %v is not finite", pose)
	}
	if err := r.ekf.SetPose(pose); err != nil {
		return err
	}
	r.odometry.SetPose(pose)
	return nil
}

// Kinematics returns the drive model of the simulated base.
func (r *Robot) Kinematics() *wheeled.DiffDrive {
	return r.sim.Kinematics()
}

// PoseEstimate returns the estimated pose in the map frame.
func (r *Robot) PoseEstimate() spatialmath.Pose2D {
	return r.ekf.Pose()
}

// MapEstimate returns the estimated landmark positions in first observation order.
func (r *Robot) MapEstimate() []slam.Landmark {
	return r.ekf.Map()
}

// WheelEncoderState returns the current encoder ticks.
func (r *Robot) WheelEncoderState() fakeencoder.Reading {
	return r.sim.WheelEncoderState()
}

// TruePose returns the ground truth pose.
func (r *Robot) TruePose() spatialmath.Pose2D {
	return r.sim.TruePose()
}

// OdometryPose returns the dead-reckoned pose.
func (r *Robot) OdometryPose() spatialmath.Pose2D {
	return r.odometry.Pose()
}

// Snapshot returns a copy of the robot state.
func (r *Robot) Snapshot() Snapshot {
	odomPose := r.odometry.Pose()
	estimate := r.ekf.Pose()
	return Snapshot{
		Step:         r.sim.Step(),
		Time:         r.time,
		TruePose:     r.sim.TruePose(),
		OdometryPose: odomPose,
		PoseEstimate: estimate,
		MapToOdom:    slam.MapToOdom(estimate, odomPose).Pose(),
		Map:          r.ekf.Map(),
		Encoders:     r.sim.WheelEncoderState(),
		Obstacles:    append([]collision.Obstacle(nil), r.sim.Obstacles()...),
		Collisions:   r.sim.Collisions(),
	}
}

// Close flushes the trajectory log.
func (r *Robot) Close() error {
	if r.trajectory == nil {
		return nil
	}
	return r.trajectory.Close()
}
