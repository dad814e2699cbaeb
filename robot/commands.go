package robot

import (
	"fmt"

	"go.viam.com/slamsim/services/slam"
	"go.viam.com/slamsim/spatialmath"
)

// A Command is one input to the robot. The set of commands is closed; Dispatch handles each kind.
type Command interface {
	fmt.Stringer
	command()
}

// ApplyWheelCommand sets the wheel speeds in motor command units.
type ApplyWheelCommand struct {
	Left  float64
	Right float64
}

// Tick advances simulated time by DT seconds.
type Tick struct {
	DT float64
}

// ObserveLandmarks feeds externally sourced measurements to the estimator.
type ObserveLandmarks struct {
	Measurements []slam.LandmarkMeasurement
}

// Reset moves the true robot back to its initial pose.
type Reset struct{}

// Teleport moves the true robot to Pose.
type Teleport struct {
	Pose spatialmath.Pose2D
}

// SetInitialPose tells odometry and the estimator where the robot is.
type SetInitialPose struct {
	Pose spatialmath.Pose2D
}

func (ApplyWheelCommand) command() {}
func (Tick) command()              {}
func (ObserveLandmarks) command()  {}
func (Reset) command()             {}
func (Teleport) command()          {}
func (SetInitialPose) command()    {}

func (c ApplyWheelCommand) String() string {
	return fmt.Sprintf("apply_wheel_command(%v, %v)", c.Left, c.Right)
}

func (c Tick) String() string {
	return fmt.Sprintf("tick(%v)", c.DT)
}

func (c ObserveLandmarks) String() string {
	return fmt.Sprintf("observe_landmarks(%d)", len(c.Measurements))
}

func (Reset) String() string {
	return "reset"
}

func (c Teleport) String() string {
	return fmt.Sprintf("teleport %v", c.Pose)
}

func (c SetInitialPose) String() string {
	return fmt.Sprintf("initial_pose %v", c.Pose)
}
