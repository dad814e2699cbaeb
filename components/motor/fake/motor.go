// Package fake implements a simulated pair of wheel motors with noisy, slipping actuation.
package fake

import (
	"math"
	"math/rand/v2"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat/distuv"

	"go.viam.com/slamsim/components/base/wheeled"
	"go.viam.com/slamsim/logging"
)

// ActuatorConfig describes the noise and slip applied to wheel commands.
type ActuatorConfig struct {
	// InputNoise is the variance of the gaussian noise added to a nonzero wheel speed.
	InputNoise float64 `json:"input_noise"`
	// SlipFraction bounds the per-wheel slip drawn uniformly from [-SlipFraction, SlipFraction].
	SlipFraction float64 `json:"slip_fraction"`
	Seed         uint64  `json:"seed"`
}

// Validate ensures all parts of the config are valid.
func (cfg *ActuatorConfig) Validate() error {
	if cfg.InputNoise < 0 {
		return errors.Errorf("input_noise must be non-negative, got %v", cfg.InputNoise)
	}
	if cfg.SlipFraction < 0 {
		return errors.Errorf("slip_fraction must be non-negative, got %v", cfg.SlipFraction)
	}
	return nil
}

// An Actuator turns commanded wheel speeds into two wheel angle trajectories. The true trajectory
// carries the actuation noise and is what moves the robot. The odometric trajectory additionally
// carries slip and is what the wheel encoders see.
type Actuator struct {
	noise distuv.Normal
	slip  distuv.Uniform

	noiseOn bool
	slipOn  bool

	commanded  wheeled.WheelState
	trueSpeed  wheeled.WheelState
	slipFactor wheeled.WheelState

	trueAngles wheeled.WheelState
	odomAngles wheeled.WheelState

	logger logging.Logger
}

// NewActuator returns an actuator owning a random source seeded from cfg.
func NewActuator(cfg ActuatorConfig, logger logging.Logger) (*Actuator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	src := rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)
	return &Actuator{
		noise:      distuv.Normal{Mu: 0, Sigma: math.Sqrt(cfg.InputNoise), Src: src},
		slip:       distuv.Uniform{Min: -cfg.SlipFraction, Max: cfg.SlipFraction, Src: src},
		noiseOn:    cfg.InputNoise > 0,
		slipOn:     cfg.SlipFraction > 0,
		slipFactor: wheeled.WheelState{Left: 1, Right: 1},
		logger:     logger,
	}, nil
}

// Command sets the wheel speeds in rad/s. Noise and slip are sampled once per command and hold
// until the next one. A wheel commanded to exactly zero gets no noise.
func (a *Actuator) Command(speeds wheeled.WheelState) {
	a.commanded = speeds
	a.trueSpeed = wheeled.WheelState{
		Left:  a.perturb(speeds.Left),
		Right: a.perturb(speeds.Right),
	}
	a.slipFactor = wheeled.WheelState{Left: 1, Right: 1}
	if a.slipOn {
		a.slipFactor = wheeled.WheelState{Left: 1 + a.slip.Rand(), Right: 1 + a.slip.Rand()}
	}
	a.logger.Debugw("wheel command", "commanded", speeds, "true", a.trueSpeed, "slip", a.slipFactor)
}

func (a *Actuator) perturb(speed float64) float64 {
	if speed == 0 || !a.noiseOn {
		return speed
	}
	return speed + a.noise.Rand()
}

// Step advances both wheel trajectories by dt seconds and returns the change in true wheel angle.
func (a *Actuator) Step(dt float64) wheeled.WheelState {
	delta := a.trueSpeed.Scale(dt)
	a.trueAngles = a.trueAngles.Add(delta)
	a.odomAngles = a.odomAngles.Add(wheeled.WheelState{
		Left:  delta.Left * a.slipFactor.Left,
		Right: delta.Right * a.slipFactor.Right,
	})
	return delta
}

// Commanded returns the last commanded wheel speeds.
func (a *Actuator) Commanded() wheeled.WheelState {
	return a.commanded
}

// TrueSpeeds returns the wheel speeds actually realized after noise.
func (a *Actuator) TrueSpeeds() wheeled.WheelState {
	return a.trueSpeed
}

// TrueAngles returns the accumulated true wheel angles.
func (a *Actuator) TrueAngles() wheeled.WheelState {
	return a.trueAngles
}

// OdometricAngles returns the accumulated wheel angles as seen by the encoders.
func (a *Actuator) OdometricAngles() wheeled.WheelState {
	return a.odomAngles
}
