package wheeled

import (
	"github.com/pkg/errors"

	"go.viam.com/slamsim/spatialmath"
)

// DiffDrive converts between wheel motion and body motion of a differential drive base.
// The zero value is not usable; construct with NewDiffDrive.
type DiffDrive struct {
	radius float64
	track  float64

	// last absolute wheel angles seen by ForwardKinematicsAbsolute
	lastAngles WheelState
}

// NewDiffDrive validates the geometry and returns a kinematic model for it.
func NewDiffDrive(cfg Config) (*DiffDrive, error) {
	if err := cfg.Validate("base"); err != nil {
		return nil, err
	}
	return &DiffDrive{radius: cfg.WheelRadius, track: cfg.TrackWidth}, nil
}

// WheelRadius returns the wheel radius.
func (dd *DiffDrive) WheelRadius() float64 {
	return dd.radius
}

// TrackWidth returns the distance between the wheels.
func (dd *DiffDrive) TrackWidth() float64 {
	return dd.track
}

// BodyTwist computes the body twist produced by the given wheel speeds. Passing a change in wheel
// angle instead of a speed yields the body displacement over that change.
func (dd *DiffDrive) BodyTwist(wheelSpeeds WheelState) spatialmath.Twist2D {
	return spatialmath.Twist2D{
		ThetaDot: dd.radius * (wheelSpeeds.Right - wheelSpeeds.Left) / dd.track,
		XDot:     dd.radius * (wheelSpeeds.Right + wheelSpeeds.Left) / 2,
	}
}

// ValidateTwist returns an error if the twist cannot be produced by a differential drive.
func (dd *DiffDrive) ValidateTwist(twist spatialmath.Twist2D) error {
	if !twist.IsFinite() {
		return errors.Errorf("twist %v is not finite", twist)
	}
	if !spatialmath.AlmostEqual(twist.YDot, 0, spatialmath.Epsilon) {
		return errors.Errorf("differential drive cannot move sideways, got ydot %v", twist.YDot)
	}
	return nil
}

// WheelSpeeds computes the wheel speeds needed to follow the twist.
func (dd *DiffDrive) WheelSpeeds(twist spatialmath.Twist2D) (WheelState, error) {
	if err := dd.ValidateTwist(twist); err != nil {
		return WheelState{}, err
	}
	d := dd.track / 2
	return WheelState{
		Left:  (twist.XDot - d*twist.ThetaDot) / dd.radius,
		Right: (twist.XDot + d*twist.ThetaDot) / dd.radius,
	}, nil
}

// ForwardKinematics returns the pose reached from pose after the wheels turn by wheelAngleDelta.
func (dd *DiffDrive) ForwardKinematics(pose spatialmath.Pose2D, wheelAngleDelta WheelState) spatialmath.Pose2D {
	if wheelAngleDelta == (WheelState{}) {
		return pose
	}
	body := dd.BodyTwist(wheelAngleDelta).Integrate()
	return pose.Transform().Mul(body).Pose()
}

// ForwardKinematicsAbsolute is like ForwardKinematics but takes absolute wheel angles and
// remembers them, using the difference from the previous call as the wheel motion.
func (dd *DiffDrive) ForwardKinematicsAbsolute(pose spatialmath.Pose2D, wheelAngles WheelState) spatialmath.Pose2D {
	delta := wheelAngles.Sub(dd.lastAngles)
	dd.lastAngles = wheelAngles
	return dd.ForwardKinematics(pose, delta)
}

// WheelAngles returns the absolute wheel angles last passed to ForwardKinematicsAbsolute.
func (dd *DiffDrive) WheelAngles() WheelState {
	return dd.lastAngles
}

// ResetWheelAngles sets the reference used by ForwardKinematicsAbsolute.
func (dd *DiffDrive) ResetWheelAngles(wheelAngles WheelState) {
	dd.lastAngles = wheelAngles
}
