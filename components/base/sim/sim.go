// Package sim implements a simulated differential drive robot moving among circular obstacles.
// Time only advances when the owner calls Tick, which makes the simulation deterministic for a
// given seed and command sequence.
package sim

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/slamsim/collision"
	"go.viam.com/slamsim/components/base/wheeled"
	fakeencoder "go.viam.com/slamsim/components/encoder/fake"
	fakemotor "go.viam.com/slamsim/components/motor/fake"
	fakesensor "go.viam.com/slamsim/components/sensor/fake"
	"go.viam.com/slamsim/logging"
	"go.viam.com/slamsim/services/slam"
	"go.viam.com/slamsim/spatialmath"
)

// Config is used for converting config attributes.
type Config struct {
	Base     wheeled.Config
	Actuator fakemotor.ActuatorConfig
	Encoder  fakeencoder.Config
	Sensor   fakesensor.Config

	// MotorCmdPerRadSec converts a wheel speed in rad/s into motor command units.
	MotorCmdPerRadSec float64
	CollisionRadius   float64
	InitialPose       spatialmath.Pose2D
	Obstacles         []collision.Obstacle
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	var err error
	err = multierr.Append(err, cfg.Base.Validate(path))
	if aErr := cfg.Actuator.Validate(); aErr != nil {
		err = multierr.Append(err, utils.NewConfigValidationError(path, aErr))
	}
	err = multierr.Append(err, cfg.Encoder.Validate(path))
	err = multierr.Append(err, cfg.Sensor.Validate(path))
	if cfg.MotorCmdPerRadSec <= 0 || math.IsInf(cfg.MotorCmdPerRadSec, 0) || math.IsNaN(cfg.MotorCmdPerRadSec) {
		err = multierr.Append(err, utils.NewConfigValidationError(path,
			fmt.Errorf("motor_cmd_per_rad_sec must be positive, got %v", cfg.MotorCmdPerRadSec)))
	}
	if cfg.CollisionRadius < 0 || math.IsNaN(cfg.CollisionRadius) {
		err = multierr.Append(err, utils.NewConfigValidationError(path,
			fmt.Errorf("collision_radius must be non-negative, got %v", cfg.CollisionRadius)))
	}
	if !cfg.InitialPose.IsFinite() {
		err = multierr.Append(err, utils.NewConfigValidationError(path,
			fmt.Errorf("initial pose %v is not finite", cfg.InitialPose)))
	}
	return err
}

// Simulator holds the ground truth of the robot. It is not safe for concurrent use; the robot
// owning it serializes all calls.
type Simulator struct {
	cfg Config

	kinematics *wheeled.DiffDrive
	actuator   *fakemotor.Actuator
	encoder    *fakeencoder.Encoder
	sensor     *fakesensor.Sensor

	initialPose spatialmath.Pose2D
	pose        spatialmath.Pose2D
	step        uint64
	collisions  uint64

	logger logging.Logger
}

// NewSimulator validates cfg and places the robot at the initial pose with stationary wheels.
func NewSimulator(cfg Config, logger logging.Logger) (*Simulator, error) {
	if err := cfg.Validate("simulator"); err != nil {
		return nil, err
	}
	kinematics, err := wheeled.NewDiffDrive(cfg.Base)
	if err != nil {
		return nil, err
	}
	actuator, err := fakemotor.NewActuator(cfg.Actuator, logger.Sublogger("actuator"))
	if err != nil {
		return nil, err
	}
	encoder, err := fakeencoder.NewEncoder(cfg.Encoder)
	if err != nil {
		return nil, err
	}
	sensor, err := fakesensor.NewSensor(cfg.Sensor, cfg.Obstacles)
	if err != nil {
		return nil, err
	}
	initial := normalized(cfg.InitialPose)
	return &Simulator{
		cfg:         cfg,
		kinematics:  kinematics,
		actuator:    actuator,
		encoder:     encoder,
		sensor:      sensor,
		initialPose: initial,
		pose:        initial,
		logger:      logger,
	}, nil
}

// Kinematics returns the drive model the simulator moves with.
func (s *Simulator) Kinematics() *wheeled.DiffDrive {
	return s.kinematics
}

// Encoder returns the encoder quantizing the wheel angles.
func (s *Simulator) Encoder() *fakeencoder.Encoder {
	return s.encoder
}

// ApplyWheelCommand sets the wheel speeds in motor command units. Callers are expected to have
// clamped the commands already.
func (s *Simulator) ApplyWheelCommand(left, right float64) {
	s.actuator.Command(wheeled.WheelState{
		Left:  left / s.cfg.MotorCmdPerRadSec,
		Right: right / s.cfg.MotorCmdPerRadSec,
	})
}

// Tick advances the simulation by dt seconds.
func (s *Simulator) Tick(dt float64) error {
	if !(dt > 0) || math.IsInf(dt, 0) {
		return errors.Errorf("tick duration must be positive and finite, got %v", dt)
	}
	delta := s.actuator.Step(dt)
	pose := s.kinematics.ForwardKinematics(s.pose, delta)
	pose, hits := collision.Resolve(pose, s.cfg.CollisionRadius, s.cfg.Obstacles)
	if hits > 0 {
		s.collisions += uint64(hits)
		s.logger.Debugw("collision resolved", "step", s.step, "pose", pose, "hits", hits)
	}
	s.pose = pose
	s.step++
	return nil
}

// Reset moves the robot back to its initial pose. Wheel angles and slip are left alone.
func (s *Simulator) Reset() {
	s.pose = s.initialPose
}

// Teleport moves the robot to pose without touching the wheels.
func (s *Simulator) Teleport(pose spatialmath.Pose2D) error {
	if !pose.IsFinite() {
		return errors.Errorf("cannot teleport to non-finite pose %v", pose)
	}
	s.pose = normalized(pose)
	return nil
}

// SetInitialPose changes the pose Reset returns to.
func (s *Simulator) SetInitialPose(pose spatialmath.Pose2D) error {
	if !pose.IsFinite() {
		return errors.Errorf("initial pose %v is not finite", pose)
	}
	s.initialPose = normalized(pose)
	return nil
}

func normalized(p spatialmath.Pose2D) spatialmath.Pose2D {
	return spatialmath.NewPose2D(p.X, p.Y, p.Theta)
}

// InitialPose returns the pose Reset returns to.
func (s *Simulator) InitialPose() spatialmath.Pose2D {
	return s.initialPose
}

// WheelEncoderState returns the encoder ticks for the odometric wheel angles.
func (s *Simulator) WheelEncoderState() fakeencoder.Reading {
	return s.encoder.Ticks(s.actuator.OdometricAngles())
}

// WheelSpeeds returns the commanded and realized wheel speeds in rad/s.
func (s *Simulator) WheelSpeeds() (commanded, actual wheeled.WheelState) {
	return s.actuator.Commanded(), s.actuator.TrueSpeeds()
}

// TruePose returns the ground truth pose.
func (s *Simulator) TruePose() spatialmath.Pose2D {
	return s.pose
}

// Step returns the number of ticks taken.
func (s *Simulator) Step() uint64 {
	return s.step
}

// Collisions returns the number of obstacle contacts resolved so far.
func (s *Simulator) Collisions() uint64 {
	return s.collisions
}

// Obstacles returns the obstacles in declaration order.
func (s *Simulator) Obstacles() []collision.Obstacle {
	return s.cfg.Obstacles
}

// SenseLandmarks returns measurements of the obstacles near the true pose.
func (s *Simulator) SenseLandmarks() []slam.LandmarkMeasurement {
	return s.sensor.Sense(s.pose)
}
