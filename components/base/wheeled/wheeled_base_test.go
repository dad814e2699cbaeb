package wheeled

import (
	"math"
	"testing"

	"go.viam.com/test"

	"go.viam.com/slamsim/spatialmath"
)

var testCfg = Config{
	WheelRadius: 0.033,
	TrackWidth:  0.16,
}

func TestConfigValidate(t *testing.T) {
	for _, tc := range []struct {
		name string
		cfg  Config
		err  string
	}{
		{"valid", testCfg, ""},
		{"missing radius", Config{TrackWidth: 1}, "wheel_radius"},
		{"missing track", Config{WheelRadius: 1}, "track_width"},
		{"negative radius", Config{WheelRadius: -1, TrackWidth: 1}, "must be positive"},
		{"negative track", Config{WheelRadius: 1, TrackWidth: -1}, "must be positive"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate("path")
			if tc.err == "" {
				test.That(t, err, test.ShouldBeNil)
				return
			}
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.err)
		})
	}

	_, err := NewDiffDrive(Config{})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestBodyTwist(t *testing.T) {
	dd, err := NewDiffDrive(testCfg)
	test.That(t, err, test.ShouldBeNil)

	t.Run("zero speeds", func(t *testing.T) {
		test.That(t, dd.BodyTwist(WheelState{}), test.ShouldResemble, spatialmath.Twist2D{})
	})

	t.Run("forward", func(t *testing.T) {
		tw := dd.BodyTwist(WheelState{Left: 5, Right: 5})
		test.That(t, tw.ThetaDot, test.ShouldEqual, 0)
		test.That(t, tw.XDot, test.ShouldAlmostEqual, 5*0.033, 1e-12)
		test.That(t, tw.YDot, test.ShouldEqual, 0)
	})

	t.Run("spin in place", func(t *testing.T) {
		tw := dd.BodyTwist(WheelState{Left: -2, Right: 2})
		test.That(t, tw.XDot, test.ShouldEqual, 0)
		test.That(t, tw.ThetaDot, test.ShouldAlmostEqual, 0.033*4/0.16, 1e-12)
	})

	t.Run("inverse round trip", func(t *testing.T) {
		speeds := WheelState{Left: 1.3, Right: -0.4}
		back, err := dd.WheelSpeeds(dd.BodyTwist(speeds))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, back.Left, test.ShouldAlmostEqual, speeds.Left, 1e-12)
		test.That(t, back.Right, test.ShouldAlmostEqual, speeds.Right, 1e-12)
	})

	t.Run("sideways twist rejected", func(t *testing.T) {
		_, err := dd.WheelSpeeds(spatialmath.Twist2D{XDot: 1, YDot: 0.2})
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "sideways")

		_, err = dd.WheelSpeeds(spatialmath.Twist2D{XDot: math.NaN()})
		test.That(t, err, test.ShouldNotBeNil)
	})
}

func TestForwardKinematics(t *testing.T) {
	dd, err := NewDiffDrive(testCfg)
	test.That(t, err, test.ShouldBeNil)

	t.Run("identity for zero wheel motion", func(t *testing.T) {
		for _, p := range []spatialmath.Pose2D{
			{},
			{X: 1, Y: -2, Theta: 0.3},
			{X: -7.5, Y: 0.25, Theta: math.Pi},
			{X: 1e6, Y: 1e-6, Theta: -3},
		} {
			test.That(t, dd.ForwardKinematics(p, WheelState{}), test.ShouldResemble, p)
		}
	})

	t.Run("straight substeps match one step", func(t *testing.T) {
		start := spatialmath.Pose2D{X: 0.5, Y: -1, Theta: 0.7}
		const total = 12.0
		const n = 50
		one := dd.ForwardKinematics(start, WheelState{Left: total, Right: total})

		stepped := start
		for i := 0; i < n; i++ {
			stepped = dd.ForwardKinematics(stepped, WheelState{Left: total / n, Right: total / n})
		}
		test.That(t, stepped.X, test.ShouldAlmostEqual, one.X, 1e-9)
		test.That(t, stepped.Y, test.ShouldAlmostEqual, one.Y, 1e-9)
		test.That(t, stepped.Theta, test.ShouldAlmostEqual, one.Theta, 1e-9)

		d := total * 0.033
		test.That(t, one.X, test.ShouldAlmostEqual, start.X+d*math.Cos(0.7), 1e-9)
		test.That(t, one.Y, test.ShouldAlmostEqual, start.Y+d*math.Sin(0.7), 1e-9)
	})

	t.Run("arc substeps match one step", func(t *testing.T) {
		one := dd.ForwardKinematics(spatialmath.Pose2D{}, WheelState{Left: 3, Right: 5})
		stepped := spatialmath.Pose2D{}
		for i := 0; i < 10; i++ {
			stepped = dd.ForwardKinematics(stepped, WheelState{Left: 0.3, Right: 0.5})
		}
		test.That(t, stepped.X, test.ShouldAlmostEqual, one.X, 1e-9)
		test.That(t, stepped.Y, test.ShouldAlmostEqual, one.Y, 1e-9)
		test.That(t, stepped.Theta, test.ShouldAlmostEqual, one.Theta, 1e-9)
	})

	t.Run("pure rotation does not translate", func(t *testing.T) {
		p := dd.ForwardKinematics(spatialmath.Pose2D{X: 1, Y: 1}, WheelState{Left: -1, Right: 1})
		test.That(t, p.X, test.ShouldAlmostEqual, 1, 1e-12)
		test.That(t, p.Y, test.ShouldAlmostEqual, 1, 1e-12)
		test.That(t, p.Theta, test.ShouldAlmostEqual, 2*0.033/0.16, 1e-12)
	})

	t.Run("half turn reports pi", func(t *testing.T) {
		half, err := NewDiffDrive(Config{WheelRadius: 0.5, TrackWidth: 1})
		test.That(t, err, test.ShouldBeNil)
		p := half.ForwardKinematics(spatialmath.Pose2D{}, WheelState{Left: 0, Right: 2 * math.Pi})
		test.That(t, p.Theta, test.ShouldEqual, math.Pi)
		test.That(t, p.X, test.ShouldAlmostEqual, 0, 1e-12)
		test.That(t, p.Y, test.ShouldAlmostEqual, 1, 1e-12)
	})

	t.Run("absolute wheel angles", func(t *testing.T) {
		abs, err := NewDiffDrive(testCfg)
		test.That(t, err, test.ShouldBeNil)
		p := abs.ForwardKinematicsAbsolute(spatialmath.Pose2D{}, WheelState{Left: 2, Right: 2})
		p = abs.ForwardKinematicsAbsolute(p, WheelState{Left: 4, Right: 4})
		test.That(t, p.X, test.ShouldAlmostEqual, 4*0.033, 1e-12)
		test.That(t, abs.WheelAngles(), test.ShouldResemble, WheelState{Left: 4, Right: 4})

		p = abs.ForwardKinematicsAbsolute(p, WheelState{Left: 4, Right: 4})
		test.That(t, p.X, test.ShouldAlmostEqual, 4*0.033, 1e-12)
	})
}
