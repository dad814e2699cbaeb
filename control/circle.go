// Package control produces wheel commands for the simulated base.
package control

import (
	"fmt"
	"math"
	"sync"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/slamsim/components/base/wheeled"
	"go.viam.com/slamsim/logging"
	"go.viam.com/slamsim/spatialmath"
)

// CircleConfig describes the circle driven by default.
type CircleConfig struct {
	// Velocity is the angular velocity around the circle in rad/s.
	Velocity float64 `json:"velocity"`
	Radius   float64 `json:"radius"`
}

// CircleDriver produces the body twist that drives the robot around a circle. It can be used from
// multiple goroutines.
type CircleDriver struct {
	mu      sync.Mutex
	twist   spatialmath.Twist2D
	stopped bool
	logger  logging.Logger
}

// NewCircleDriver returns a stopped driver.
func NewCircleDriver(logger logging.Logger) *CircleDriver {
	return &CircleDriver{stopped: true, logger: logger}
}

// Control starts driving around a circle of the given radius at the given angular velocity.
// A negative velocity drives clockwise.
func (c *CircleDriver) Control(angularVelocity, radius float64) error {
	if math.IsNaN(angularVelocity) || math.IsInf(angularVelocity, 0) ||
		math.IsNaN(radius) || math.IsInf(radius, 0) {
		return errors.Errorf("circle velocity %v and radius %v must be finite", angularVelocity, radius)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.twist = spatialmath.Twist2D{ThetaDot: angularVelocity, XDot: angularVelocity * radius}
	c.stopped = false
	c.logger.Infow("driving in a circle", "velocity", angularVelocity, "radius", radius)
	return nil
}

// Reverse flips the direction of travel. It does nothing while stopped.
func (c *CircleDriver) Reverse() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.twist.XDot = -c.twist.XDot
	c.twist.ThetaDot = -c.twist.ThetaDot
	c.logger.Info("reversing")
}

// Stop zeroes the twist.
func (c *CircleDriver) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	c.twist = spatialmath.Twist2D{}
	c.logger.Info("stopped")
}

// Stopped reports whether the driver is stopped.
func (c *CircleDriver) Stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// Twist returns the twist to follow. It is zero while stopped.
func (c *CircleDriver) Twist() spatialmath.Twist2D {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.twist
}

// ConverterConfig holds the motor command scaling.
type ConverterConfig struct {
	MotorCmdPerRadSec float64 `json:"motor_cmd_per_rad_sec"`
	MotorCmdMax       float64 `json:"motor_cmd_max"`
}

// Validate ensures all parts of the config are valid.
func (cfg *ConverterConfig) Validate(path string) error {
	if cfg.MotorCmdPerRadSec == 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "motor_cmd_per_rad_sec")
	}
	if cfg.MotorCmdMax == 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "motor_cmd_max")
	}
	if cfg.MotorCmdPerRadSec < 0 || math.IsNaN(cfg.MotorCmdPerRadSec) || math.IsInf(cfg.MotorCmdPerRadSec, 0) {
		return utils.NewConfigValidationError(path,
			fmt.Errorf("motor_cmd_per_rad_sec must be a positive number, got %v", cfg.MotorCmdPerRadSec))
	}
	if cfg.MotorCmdMax < 0 || math.IsNaN(cfg.MotorCmdMax) || math.IsInf(cfg.MotorCmdMax, 0) {
		return utils.NewConfigValidationError(path,
			fmt.Errorf("motor_cmd_max must be a positive number, got %v", cfg.MotorCmdMax))
	}
	return nil
}

// WheelCommand is a pair of integer motor commands.
type WheelCommand struct {
	Left  int `json:"left"`
	Right int `json:"right"`
}

// WheelCommandConverter turns body twists into motor commands.
type WheelCommandConverter struct {
	kinematics *wheeled.DiffDrive
	cfg        ConverterConfig
}

// NewWheelCommandConverter returns a converter for the given drive.
func NewWheelCommandConverter(kinematics *wheeled.DiffDrive, cfg ConverterConfig) (*WheelCommandConverter, error) {
	if kinematics == nil {
		return nil, errors.New("wheel command converter needs a drive model")
	}
	if err := cfg.Validate("converter"); err != nil {
		return nil, err
	}
	return &WheelCommandConverter{kinematics: kinematics, cfg: cfg}, nil
}

// Convert returns the motor commands that follow twist, rounded to whole units and clamped to
// the motor limit. Each wheel is clamped on its own, so a saturated twist changes curvature.
func (wc *WheelCommandConverter) Convert(twist spatialmath.Twist2D) (WheelCommand, error) {
	speeds, err := wc.kinematics.WheelSpeeds(twist)
	if err != nil {
		return WheelCommand{}, err
	}
	return WheelCommand{
		Left:  wc.toMotor(speeds.Left),
		Right: wc.toMotor(speeds.Right),
	}, nil
}

func (wc *WheelCommandConverter) toMotor(radPerSec float64) int {
	cmd := math.Round(radPerSec * wc.cfg.MotorCmdPerRadSec)
	return int(math.Max(-wc.cfg.MotorCmdMax, math.Min(wc.cfg.MotorCmdMax, cmd)))
}
