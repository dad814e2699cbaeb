// Package slam implements simultaneous localization and mapping with an extended Kalman filter
// over the robot pose and a growing set of point landmarks.
package slam

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"

	"go.viam.com/slamsim/spatialmath"
)

// LandmarkMeasurement is a range and bearing to a landmark, relative to the sensing frame. ID is
// assigned by the sensing layer and identifies the landmark across measurements.
type LandmarkMeasurement struct {
	R   float64 `json:"r"`
	Phi float64 `json:"phi"`
	ID  int     `json:"id"`
}

// FromCartesian builds a measurement from a landmark position relative to the sensing frame.
func FromCartesian(x, y float64, id int) LandmarkMeasurement {
	return LandmarkMeasurement{
		R:   math.Hypot(x, y),
		Phi: spatialmath.NormalizeAngle(math.Atan2(y, x)),
		ID:  id,
	}
}

// Cartesian returns the landmark position relative to the sensing frame.
func (m LandmarkMeasurement) Cartesian() r2.Point {
	s, c := math.Sincos(m.Phi)
	return r2.Point{X: m.R * c, Y: m.R * s}
}

// IsFinite reports whether range and bearing are finite numbers.
func (m LandmarkMeasurement) IsFinite() bool {
	return !math.IsNaN(m.R) && !math.IsInf(m.R, 0) && !math.IsNaN(m.Phi) && !math.IsInf(m.Phi, 0)
}

func (m LandmarkMeasurement) String() string {
	return fmt.Sprintf("{id:%d r:%.4f phi:%.4f}", m.ID, m.R, m.Phi)
}

// Landmark is an estimated landmark position in the map frame.
type Landmark struct {
	ID int     `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}
