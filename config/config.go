// Package config defines the structure used to configure a simulation and converts it into the
// configs of the parts that make up a robot.
package config

import (
	"fmt"
	"math"

	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/slamsim/collision"
	"go.viam.com/slamsim/components/base/sim"
	"go.viam.com/slamsim/components/base/wheeled"
	fakeencoder "go.viam.com/slamsim/components/encoder/fake"
	fakemotor "go.viam.com/slamsim/components/motor/fake"
	fakesensor "go.viam.com/slamsim/components/sensor/fake"
	"go.viam.com/slamsim/control"
	"go.viam.com/slamsim/logging"
	"go.viam.com/slamsim/robot"
	"go.viam.com/slamsim/robot/runner"
	"go.viam.com/slamsim/services/slam"
	"go.viam.com/slamsim/spatialmath"
)

// Defaults applied to fields left at zero.
const (
	DefaultRate                = 200
	DefaultSensorRate          = 5
	DefaultPublishRate         = 20
	DefaultBasicSensorVariance = 0.001
	DefaultMaxRange            = 1.0
	DefaultCollisionRadius     = 0.105
	DefaultProcessNoise        = 1e-3
	DefaultMeasurementVariance = 1e-3
)

// Obstacles lists obstacle centres and the radius they share.
type Obstacles struct {
	X []float64 `json:"x"`
	Y []float64 `json:"y"`
	R float64   `json:"r"`
}

// Config describes a whole simulation.
type Config struct {
	// Rate is the simulator tick frequency in Hz.
	Rate   float64 `json:"rate"`
	X0     float64 `json:"x0"`
	Y0     float64 `json:"y0"`
	Theta0 float64 `json:"theta0"`

	Obstacles Obstacles `json:"obstacles"`

	wheeled.Config
	MotorCmdPerRadSec  float64 `json:"motor_cmd_per_rad_sec"`
	MotorCmdMax        float64 `json:"motor_cmd_max"`
	EncoderTicksPerRad float64 `json:"encoder_ticks_per_rad"`

	InputNoise   float64 `json:"input_noise"`
	SlipFraction float64 `json:"slip_fraction"`
	// BasicSensorVariance and MaxRange take their defaults only when absent. An explicit zero gives
	// a noise-free sensor or one that sees every obstacle.
	BasicSensorVariance *float64 `json:"basic_sensor_variance,omitempty"`
	MaxRange            *float64 `json:"max_range,omitempty"`
	CollisionRadius     float64  `json:"collision_radius"`
	Seed                uint64   `json:"seed"`

	// SensorRate is the frequency in Hz of landmark sensing and estimator updates.
	SensorRate float64 `json:"sensor_rate"`
	// PublishRate is the frequency in Hz at which snapshots are sent to subscribers.
	PublishRate float64 `json:"publish_rate"`

	EKF    slam.EKFConfig       `json:"ekf"`
	Circle control.CircleConfig `json:"circle"`

	// TrajectoryLog is a csv file the pose estimate is appended to. Empty disables it.
	TrajectoryLog string `json:"trajectory_log"`
	// Listen is the address of the websocket server. Empty disables it.
	Listen   string        `json:"listen"`
	LogLevel logging.Level `json:"log_level"`
}

func (cfg *Config) applyDefaults() {
	if cfg.Rate == 0 {
		cfg.Rate = DefaultRate
	}
	if cfg.SensorRate == 0 {
		cfg.SensorRate = DefaultSensorRate
	}
	if cfg.PublishRate == 0 {
		cfg.PublishRate = DefaultPublishRate
	}
	if cfg.BasicSensorVariance == nil {
		variance := DefaultBasicSensorVariance
		cfg.BasicSensorVariance = &variance
	}
	if cfg.MaxRange == nil {
		maxRange := DefaultMaxRange
		cfg.MaxRange = &maxRange
	}
	if cfg.CollisionRadius == 0 {
		cfg.CollisionRadius = DefaultCollisionRadius
	}
	if cfg.EKF.ProcessNoise == [3]float64{} {
		cfg.EKF.ProcessNoise = [3]float64{DefaultProcessNoise, DefaultProcessNoise, DefaultProcessNoise}
	}
	if cfg.EKF.RangeVariance == 0 {
		cfg.EKF.RangeVariance = DefaultMeasurementVariance
	}
	if cfg.EKF.BearingVariance == 0 {
		cfg.EKF.BearingVariance = DefaultMeasurementVariance
	}
}

// Validate ensures all parts of the config are valid. Every problem found is reported.
func (cfg *Config) Validate(path string) error {
	var err error
	positive := func(name string, v float64) {
		if !(v > 0) || math.IsInf(v, 0) {
			err = multierr.Append(err, utils.NewConfigValidationError(path,
				fmt.Errorf("%s must be a positive number, got %v", name, v)))
		}
	}
	nonNegative := func(name string, v float64) {
		if !(v >= 0) || math.IsInf(v, 0) {
			err = multierr.Append(err, utils.NewConfigValidationError(path,
				fmt.Errorf("%s must be a non-negative number, got %v", name, v)))
		}
	}

	positive("rate", cfg.Rate)
	positive("sensor_rate", cfg.SensorRate)
	positive("publish_rate", cfg.PublishRate)
	err = multierr.Append(err, cfg.Config.Validate(path))
	for name, v := range map[string]float64{
		"motor_cmd_per_rad_sec": cfg.MotorCmdPerRadSec,
		"motor_cmd_max":         cfg.MotorCmdMax,
		"encoder_ticks_per_rad": cfg.EncoderTicksPerRad,
	} {
		if v == 0 {
			err = multierr.Append(err, utils.NewConfigValidationFieldRequiredError(path, name))
			continue
		}
		positive(name, v)
	}
	nonNegative("input_noise", cfg.InputNoise)
	nonNegative("slip_fraction", cfg.SlipFraction)
	if cfg.BasicSensorVariance != nil {
		nonNegative("basic_sensor_variance", *cfg.BasicSensorVariance)
	}
	if cfg.MaxRange != nil {
		nonNegative("max_range", *cfg.MaxRange)
	}
	nonNegative("collision_radius", cfg.CollisionRadius)
	if !spatialmath.NewPose2D(cfg.X0, cfg.Y0, cfg.Theta0).IsFinite() {
		err = multierr.Append(err, utils.NewConfigValidationError(path,
			fmt.Errorf("initial pose (%v, %v, %v) is not finite", cfg.X0, cfg.Y0, cfg.Theta0)))
	}
	if _, oErr := collision.NewObstacles(cfg.Obstacles.X, cfg.Obstacles.Y, cfg.Obstacles.R); oErr != nil {
		err = multierr.Append(err, utils.NewConfigValidationError(path+".obstacles", oErr))
	}
	err = multierr.Append(err, cfg.EKF.Validate(path+".ekf"))
	return err
}

// InitialPose returns the configured starting pose.
func (cfg *Config) InitialPose() spatialmath.Pose2D {
	return spatialmath.NewPose2D(cfg.X0, cfg.Y0, cfg.Theta0)
}

// RobotConfig returns the config of the robot described by cfg.
func (cfg *Config) RobotConfig() (robot.Config, error) {
	obstacles, err := collision.NewObstacles(cfg.Obstacles.X, cfg.Obstacles.Y, cfg.Obstacles.R)
	if err != nil {
		return robot.Config{}, err
	}
	return robot.Config{
		Sim: sim.Config{
			Base: cfg.Config,
			Actuator: fakemotor.ActuatorConfig{
				InputNoise:   cfg.InputNoise,
				SlipFraction: cfg.SlipFraction,
				Seed:         cfg.Seed,
			},
			Encoder: fakeencoder.Config{TicksPerRad: cfg.EncoderTicksPerRad},
			Sensor: fakesensor.Config{
				Variance: valueOr(cfg.BasicSensorVariance, DefaultBasicSensorVariance),
				MaxRange: valueOr(cfg.MaxRange, DefaultMaxRange),
				// the sensor draws from its own stream
				Seed: cfg.Seed + 1,
			},
			MotorCmdPerRadSec: cfg.MotorCmdPerRadSec,
			CollisionRadius:   cfg.CollisionRadius,
			InitialPose:       cfg.InitialPose(),
			Obstacles:         obstacles,
		},
		EKF:          cfg.EKF,
		SensorPeriod: ticksPer(cfg.Rate, cfg.SensorRate),
		MotorCmdMax:  cfg.MotorCmdMax,
	}, nil
}

// RunnerConfig returns the loop timing described by cfg.
func (cfg *Config) RunnerConfig() runner.Config {
	return runner.Config{
		Rate:         cfg.Rate,
		PublishEvery: ticksPer(cfg.Rate, cfg.PublishRate),
	}
}

// ConverterConfig returns the motor command scaling described by cfg.
func (cfg *Config) ConverterConfig() control.ConverterConfig {
	return control.ConverterConfig{
		MotorCmdPerRadSec: cfg.MotorCmdPerRadSec,
		MotorCmdMax:       cfg.MotorCmdMax,
	}
}

func valueOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}

// ticksPer returns how many ticks at rate make up one period at the slower rate, at least one.
func ticksPer(rate, slower float64) int {
	n := int(math.Round(rate / slower))
	if n < 1 {
		return 1
	}
	return n
}
