// Package fake implements a fake wheel encoder pair that quantizes wheel angles into ticks.
package fake

import (
	"fmt"
	"math"

	"go.viam.com/utils"

	"go.viam.com/slamsim/components/base/wheeled"
)

// Config describes the resolution of the encoders.
type Config struct {
	TicksPerRad float64 `json:"encoder_ticks_per_rad"`
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.TicksPerRad == 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "encoder_ticks_per_rad")
	}
	if cfg.TicksPerRad < 0 || math.IsInf(cfg.TicksPerRad, 0) || math.IsNaN(cfg.TicksPerRad) {
		return utils.NewConfigValidationError(path,
			fmt.Errorf("encoder_ticks_per_rad must be a positive number, got %v", cfg.TicksPerRad))
	}
	return nil
}

// Reading is a quantized left/right encoder count.
type Reading struct {
	Left  int64 `json:"left"`
	Right int64 `json:"right"`
}

// Sub returns the element-wise difference.
func (r Reading) Sub(other Reading) Reading {
	return Reading{Left: r.Left - other.Left, Right: r.Right - other.Right}
}

// Encoder keeps track of the tick conversion factor of both wheels.
type Encoder struct {
	ticksPerRad float64
}

// NewEncoder validates cfg and returns an encoder.
func NewEncoder(cfg Config) (*Encoder, error) {
	if err := cfg.Validate("encoder"); err != nil {
		return nil, err
	}
	return &Encoder{ticksPerRad: cfg.TicksPerRad}, nil
}

// TicksPerRad returns the conversion factor.
func (e *Encoder) TicksPerRad() float64 {
	return e.ticksPerRad
}

// Ticks quantizes wheel angles in radians into encoder ticks, truncating toward zero.
func (e *Encoder) Ticks(angles wheeled.WheelState) Reading {
	return Reading{
		Left:  int64(angles.Left * e.ticksPerRad),
		Right: int64(angles.Right * e.ticksPerRad),
	}
}

// Angles converts an encoder reading back into wheel angles in radians.
func (e *Encoder) Angles(r Reading) wheeled.WheelState {
	return wheeled.WheelState{
		Left:  float64(r.Left) / e.ticksPerRad,
		Right: float64(r.Right) / e.ticksPerRad,
	}
}
