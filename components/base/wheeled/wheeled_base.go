// Package wheeled implements the kinematic model of a two wheeled differential drive base.
package wheeled

import (
	"fmt"

	"go.viam.com/utils"
)

// WheelState is a left/right pair. Depending on context it holds wheel angles in radians, wheel
// speeds in radians per second or encoder ticks.
type WheelState struct {
	Left  float64 `json:"left"`
	Right float64 `json:"right"`
}

// Add returns the element-wise sum.
func (ws WheelState) Add(other WheelState) WheelState {
	return WheelState{Left: ws.Left + other.Left, Right: ws.Right + other.Right}
}

// Sub returns the element-wise difference.
func (ws WheelState) Sub(other WheelState) WheelState {
	return WheelState{Left: ws.Left - other.Left, Right: ws.Right - other.Right}
}

// Scale multiplies both wheels by k.
func (ws WheelState) Scale(k float64) WheelState {
	return WheelState{Left: ws.Left * k, Right: ws.Right * k}
}

func (ws WheelState) String() string {
	return fmt.Sprintf("{left:%.4f right:%.4f}", ws.Left, ws.Right)
}

// Config describes the geometry of a differential drive base.
type Config struct {
	WheelRadius float64 `json:"wheel_radius"`
	TrackWidth  float64 `json:"track_width"`
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.WheelRadius == 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "wheel_radius")
	}
	if cfg.TrackWidth == 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "track_width")
	}
	if cfg.WheelRadius < 0 {
		return utils.NewConfigValidationError(path, fmt.Errorf("wheel_radius must be positive, got %v", cfg.WheelRadius))
	}
	if cfg.TrackWidth < 0 {
		return utils.NewConfigValidationError(path, fmt.Errorf("track_width must be positive, got %v", cfg.TrackWidth))
	}
	return nil
}
