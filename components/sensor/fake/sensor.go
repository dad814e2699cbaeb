// Package fake implements a fake landmark sensor that observes obstacles near the true robot pose.
package fake

import (
	"fmt"
	"math"
	"math/rand/v2"

	"go.viam.com/utils"
	"gonum.org/v1/gonum/stat/distuv"

	"go.viam.com/slamsim/collision"
	"go.viam.com/slamsim/services/slam"
	"go.viam.com/slamsim/spatialmath"
)

// Config describes the range and noise of the sensor.
type Config struct {
	// Variance is the variance of the gaussian noise added to each relative coordinate.
	Variance float64 `json:"basic_sensor_variance"`
	// MaxRange is the distance beyond which obstacles are not seen. Zero sees everything.
	MaxRange float64 `json:"max_range"`
	Seed     uint64  `json:"seed"`
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.Variance < 0 || math.IsNaN(cfg.Variance) {
		return utils.NewConfigValidationError(path, fmt.Errorf("basic_sensor_variance must be non-negative, got %v", cfg.Variance))
	}
	if cfg.MaxRange < 0 || math.IsNaN(cfg.MaxRange) {
		return utils.NewConfigValidationError(path, fmt.Errorf("max_range must be non-negative, got %v", cfg.MaxRange))
	}
	return nil
}

// Sensor reports the obstacles around the robot as landmark measurements. The landmark id of an
// obstacle is its index in the obstacle list.
type Sensor struct {
	obstacles []collision.Obstacle
	maxRange  float64
	noise     distuv.Normal
	noisy     bool
}

// NewSensor returns a sensor over the given obstacles with its own random source seeded from cfg.
func NewSensor(cfg Config, obstacles []collision.Obstacle) (*Sensor, error) {
	if err := cfg.Validate("sensor"); err != nil {
		return nil, err
	}
	return &Sensor{
		obstacles: obstacles,
		maxRange:  cfg.MaxRange,
		noise: distuv.Normal{
			Mu:    0,
			Sigma: math.Sqrt(cfg.Variance),
			Src:   rand.NewPCG(cfg.Seed, cfg.Seed^0xda3e39cb94b95bdb),
		},
		noisy: cfg.Variance > 0,
	}, nil
}

// Sense returns a measurement for every obstacle whose centre lies within range of the robot at
// truth, in obstacle order.
func (s *Sensor) Sense(truth spatialmath.Pose2D) []slam.LandmarkMeasurement {
	toRobot := truth.Transform().Inv()
	var measurements []slam.LandmarkMeasurement
	for i, o := range s.obstacles {
		if s.maxRange > 0 && o.Center().Sub(truth.Point()).Norm() > s.maxRange {
			continue
		}
		rel := toRobot.Apply(o.Center())
		if s.noisy {
			rel.X += s.noise.Rand()
			rel.Y += s.noise.Rand()
		}
		measurements = append(measurements, slam.FromCartesian(rel.X, rel.Y, i))
	}
	return measurements
}
