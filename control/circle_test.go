package control

import (
	"math"
	"testing"

	"go.viam.com/test"

	"go.viam.com/slamsim/components/base/wheeled"
	"go.viam.com/slamsim/logging"
	"go.viam.com/slamsim/spatialmath"
)

func TestCircleDriver(t *testing.T) {
	c := NewCircleDriver(logging.NewTestLogger(t))
	test.That(t, c.Stopped(), test.ShouldBeTrue)
	test.That(t, c.Twist(), test.ShouldResemble, spatialmath.Twist2D{})

	// reverse does nothing while stopped
	c.Reverse()
	test.That(t, c.Twist(), test.ShouldResemble, spatialmath.Twist2D{})

	test.That(t, c.Control(0.5, 2), test.ShouldBeNil)
	test.That(t, c.Stopped(), test.ShouldBeFalse)
	test.That(t, c.Twist(), test.ShouldResemble, spatialmath.Twist2D{ThetaDot: 0.5, XDot: 1})

	c.Reverse()
	test.That(t, c.Twist(), test.ShouldResemble, spatialmath.Twist2D{ThetaDot: -0.5, XDot: -1})

	c.Stop()
	test.That(t, c.Stopped(), test.ShouldBeTrue)
	test.That(t, c.Twist(), test.ShouldResemble, spatialmath.Twist2D{})

	test.That(t, c.Control(math.NaN(), 1), test.ShouldNotBeNil)
	test.That(t, c.Control(1, math.Inf(1)), test.ShouldNotBeNil)
	test.That(t, c.Stopped(), test.ShouldBeTrue)
}

func newTestConverter(t *testing.T) *WheelCommandConverter {
	t.Helper()
	dd, err := wheeled.NewDiffDrive(wheeled.Config{WheelRadius: 0.5, TrackWidth: 1})
	test.That(t, err, test.ShouldBeNil)
	wc, err := NewWheelCommandConverter(dd, ConverterConfig{MotorCmdPerRadSec: 10, MotorCmdMax: 100})
	test.That(t, err, test.ShouldBeNil)
	return wc
}

func TestWheelCommandConverter(t *testing.T) {
	wc := newTestConverter(t)

	for _, tc := range []struct {
		name     string
		twist    spatialmath.Twist2D
		expected WheelCommand
	}{
		{"stopped", spatialmath.Twist2D{}, WheelCommand{}},
		{"forward", spatialmath.Twist2D{XDot: 1}, WheelCommand{Left: 20, Right: 20}},
		{"backward", spatialmath.Twist2D{XDot: -1}, WheelCommand{Left: -20, Right: -20}},
		{"spin", spatialmath.Twist2D{ThetaDot: 1}, WheelCommand{Left: -10, Right: 10}},
		{"rounded", spatialmath.Twist2D{XDot: 0.1234}, WheelCommand{Left: 2, Right: 2}},
		{"clamped", spatialmath.Twist2D{XDot: 10}, WheelCommand{Left: 100, Right: 100}},
		{"clamped per wheel", spatialmath.Twist2D{XDot: 5, ThetaDot: 4}, WheelCommand{Left: 60, Right: 100}},
		{"clamped negative", spatialmath.Twist2D{XDot: -10}, WheelCommand{Left: -100, Right: -100}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cmd, err := wc.Convert(tc.twist)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, cmd, test.ShouldResemble, tc.expected)
		})
	}

	_, err := wc.Convert(spatialmath.Twist2D{YDot: 1})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestConverterConfig(t *testing.T) {
	dd, err := wheeled.NewDiffDrive(wheeled.Config{WheelRadius: 1, TrackWidth: 1})
	test.That(t, err, test.ShouldBeNil)

	_, err = NewWheelCommandConverter(dd, ConverterConfig{MotorCmdMax: 1})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "motor_cmd_per_rad_sec")

	_, err = NewWheelCommandConverter(dd, ConverterConfig{MotorCmdPerRadSec: 1})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "motor_cmd_max")

	_, err = NewWheelCommandConverter(nil, ConverterConfig{MotorCmdPerRadSec: 1, MotorCmdMax: 1})
	test.That(t, err, test.ShouldNotBeNil)
}
