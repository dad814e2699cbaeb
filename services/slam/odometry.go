package slam

import (
	"github.com/pkg/errors"

	"go.viam.com/slamsim/components/base/wheeled"
	fakeencoder "go.viam.com/slamsim/components/encoder/fake"
	"go.viam.com/slamsim/spatialmath"
)

// Odometry dead-reckons the robot pose from wheel encoder readings and accumulates the body
// displacement that the estimator consumes on its next predict.
type Odometry struct {
	dd      *wheeled.DiffDrive
	encoder *fakeencoder.Encoder

	pose        spatialmath.Pose2D
	lastReading fakeencoder.Reading
	lastTwist   spatialmath.Twist2D
	// wheel angle change since the last TakeTwist
	pending wheeled.WheelState
}

// NewOdometry returns an odometry tracker starting at pose with encoders reading zero.
func NewOdometry(base wheeled.Config, encoder *fakeencoder.Encoder, pose spatialmath.Pose2D) (*Odometry, error) {
	dd, err := wheeled.NewDiffDrive(base)
	if err != nil {
		return nil, err
	}
	if encoder == nil {
		return nil, errors.New("odometry requires an encoder")
	}
	return &Odometry{dd: dd, encoder: encoder, pose: pose}, nil
}

// Update consumes an encoder reading, advances the odometry pose and returns the body
// displacement since the previous reading.
func (o *Odometry) Update(reading fakeencoder.Reading) spatialmath.Twist2D {
	delta := o.encoder.Angles(reading.Sub(o.lastReading))
	o.lastReading = reading
	o.pending = o.pending.Add(delta)
	o.pose = o.dd.ForwardKinematics(o.pose, delta)
	o.lastTwist = o.dd.BodyTwist(delta)
	return o.lastTwist
}

// PendingTwist returns the body displacement over all wheel motion since the previous TakeTwist
// without consuming it.
func (o *Odometry) PendingTwist() spatialmath.Twist2D {
	return o.dd.BodyTwist(o.pending)
}

// TakeTwist returns the pending body displacement and starts a new accumulation.
func (o *Odometry) TakeTwist() spatialmath.Twist2D {
	tw := o.PendingTwist()
	o.pending = wheeled.WheelState{}
	return tw
}

// Pose returns the dead-reckoned pose.
func (o *Odometry) Pose() spatialmath.Pose2D {
	return o.pose
}

// LastTwist returns the body displacement of the most recent reading.
func (o *Odometry) LastTwist() spatialmath.Twist2D {
	return o.lastTwist
}

// SetPose moves the odometry frame origin so that the robot is at p. Wheel readings are kept.
func (o *Odometry) SetPose(p spatialmath.Pose2D) {
	o.pose = spatialmath.NewPose2D(p.X, p.Y, p.Theta)
}

// MapToOdom returns the transform from the map frame to the odometry frame given where the
// estimator and odometry each place the robot.
func MapToOdom(mapPose, odomPose spatialmath.Pose2D) spatialmath.Transform2D {
	return mapPose.Transform().Mul(odomPose.Transform().Inv())
}
