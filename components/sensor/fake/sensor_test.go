package fake

import (
	"math"
	"testing"

	"go.viam.com/test"

	"go.viam.com/slamsim/collision"
	"go.viam.com/slamsim/spatialmath"
)

var testObstacles = []collision.Obstacle{
	{X: 1, Y: 0, Radius: 0.05},
	{X: 0, Y: 3, Radius: 0.05},
	{X: -0.5, Y: -0.5, Radius: 0.05},
}

func TestSenseNoiseFree(t *testing.T) {
	s, err := NewSensor(Config{MaxRange: 2}, testObstacles)
	test.That(t, err, test.ShouldBeNil)

	ms := s.Sense(spatialmath.Pose2D{})
	test.That(t, ms, test.ShouldHaveLength, 2)
	test.That(t, ms[0].ID, test.ShouldEqual, 0)
	test.That(t, ms[0].R, test.ShouldAlmostEqual, 1, 1e-12)
	test.That(t, ms[0].Phi, test.ShouldAlmostEqual, 0, 1e-12)
	test.That(t, ms[1].ID, test.ShouldEqual, 2)
	test.That(t, ms[1].Phi, test.ShouldAlmostEqual, -3*math.Pi/4, 1e-12)

	// measurements are relative to the robot frame
	ms = s.Sense(spatialmath.Pose2D{X: 0, Y: 1.5, Theta: math.Pi / 2})
	test.That(t, ms, test.ShouldHaveLength, 2)
	test.That(t, ms[0].ID, test.ShouldEqual, 0)
	test.That(t, ms[1].ID, test.ShouldEqual, 1)
	test.That(t, ms[1].R, test.ShouldAlmostEqual, 1.5, 1e-12)
	test.That(t, ms[1].Phi, test.ShouldAlmostEqual, 0, 1e-12)
	test.That(t, ms[0].Phi, test.ShouldBeLessThan, -math.Pi/2)
}

func TestSenseUnlimitedRange(t *testing.T) {
	s, err := NewSensor(Config{}, testObstacles)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.Sense(spatialmath.Pose2D{X: 100}), test.ShouldHaveLength, 3)
}

func TestSenseNoise(t *testing.T) {
	cfg := Config{Variance: 1e-4, Seed: 9}
	a, err := NewSensor(cfg, testObstacles)
	test.That(t, err, test.ShouldBeNil)
	b, err := NewSensor(cfg, testObstacles)
	test.That(t, err, test.ShouldBeNil)

	for i := 0; i < 10; i++ {
		ma := a.Sense(spatialmath.Pose2D{})
		mb := b.Sense(spatialmath.Pose2D{})
		test.That(t, ma, test.ShouldResemble, mb)
		test.That(t, ma[0].R, test.ShouldNotEqual, 1)
		test.That(t, ma[0].R, test.ShouldAlmostEqual, 1, 0.1)
	}
}

func TestSensorConfig(t *testing.T) {
	_, err := NewSensor(Config{Variance: -1}, nil)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "basic_sensor_variance")

	_, err = NewSensor(Config{MaxRange: -1}, nil)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "max_range")
}
