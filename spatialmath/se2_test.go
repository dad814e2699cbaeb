package spatialmath

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"
)

func TestNormalizeAngle(t *testing.T) {
	for _, tc := range []struct {
		name     string
		in       float64
		expected float64
	}{
		{"zero", 0, 0},
		{"pi stays pi", math.Pi, math.Pi},
		{"negative pi maps to pi", -math.Pi, math.Pi},
		{"three pi", 3 * math.Pi, math.Pi},
		{"negative three halves pi", -3 * math.Pi / 2, math.Pi / 2},
		{"just under pi", math.Pi - 0.01, math.Pi - 0.01},
		{"just over negative pi", -math.Pi + 0.01, -math.Pi + 0.01},
		{"many turns", 20*math.Pi + 0.5, 0.5},
	} {
		t.Run(tc.name, func(t *testing.T) {
			test.That(t, NormalizeAngle(tc.in), test.ShouldAlmostEqual, tc.expected, 1e-9)
		})
	}

	test.That(t, math.IsNaN(NormalizeAngle(math.NaN())), test.ShouldBeTrue)
}

func TestTransformComposition(t *testing.T) {
	a := NewTransform2D(r2.Point{X: 1, Y: 2}, math.Pi/3)
	b := NewTransform2D(r2.Point{X: -0.5, Y: 4}, -2.1)
	c := NewTransform2D(r2.Point{X: 3, Y: -1}, 2.9)

	t.Run("identity", func(t *testing.T) {
		test.That(t, AlmostEqualTransforms(a.Mul(IdentityTransform2D()), a, 1e-12), test.ShouldBeTrue)
		test.That(t, AlmostEqualTransforms(IdentityTransform2D().Mul(a), a, 1e-12), test.ShouldBeTrue)
	})

	t.Run("inverse", func(t *testing.T) {
		for _, tf := range []Transform2D{a, b, c} {
			test.That(t, AlmostEqualTransforms(tf.Mul(tf.Inv()), IdentityTransform2D(), 1e-12), test.ShouldBeTrue)
			test.That(t, AlmostEqualTransforms(tf.Inv().Mul(tf), IdentityTransform2D(), 1e-12), test.ShouldBeTrue)
		}
	})

	t.Run("associative", func(t *testing.T) {
		test.That(t, AlmostEqualTransforms(a.Mul(b).Mul(c), a.Mul(b.Mul(c)), 1e-12), test.ShouldBeTrue)
	})

	t.Run("not commutative", func(t *testing.T) {
		test.That(t, AlmostEqualTransforms(a.Mul(b), b.Mul(a), 1e-6), test.ShouldBeFalse)
	})

	t.Run("rotation normalized", func(t *testing.T) {
		tf := NewTransform2D(r2.Point{}, 3).Mul(NewTransform2D(r2.Point{}, 3))
		test.That(t, tf.Rotation(), test.ShouldAlmostEqual, 6-2*math.Pi, 1e-12)
	})
}

func TestTransformApply(t *testing.T) {
	tf := NewTransform2D(r2.Point{X: 1, Y: 1}, math.Pi/2)

	p := tf.Apply(r2.Point{X: 1, Y: 0})
	test.That(t, p.X, test.ShouldAlmostEqual, 1, 1e-12)
	test.That(t, p.Y, test.ShouldAlmostEqual, 2, 1e-12)

	v := tf.ApplyVector(r2.Point{X: 1, Y: 0})
	test.That(t, v.X, test.ShouldAlmostEqual, 0, 1e-12)
	test.That(t, v.Y, test.ShouldAlmostEqual, 1, 1e-12)

	back := tf.Inv().Apply(p)
	test.That(t, back.X, test.ShouldAlmostEqual, 1, 1e-12)
	test.That(t, back.Y, test.ShouldAlmostEqual, 0, 1e-12)

	pose := tf.Pose()
	test.That(t, pose.X, test.ShouldEqual, 1)
	test.That(t, pose.Y, test.ShouldEqual, 1)
	test.That(t, pose.Theta, test.ShouldAlmostEqual, math.Pi/2, 1e-12)
	test.That(t, AlmostEqualTransforms(pose.Transform(), tf, 1e-12), test.ShouldBeTrue)
}

func TestTwistIntegrate(t *testing.T) {
	t.Run("zero twist is identity", func(t *testing.T) {
		tf := Twist2D{}.Integrate()
		test.That(t, AlmostEqualTransforms(tf, IdentityTransform2D(), 0), test.ShouldBeTrue)
	})

	t.Run("pure translation", func(t *testing.T) {
		tf := Twist2D{XDot: 2.5}.Integrate()
		test.That(t, tf.Translation().X, test.ShouldEqual, 2.5)
		test.That(t, tf.Translation().Y, test.ShouldEqual, 0)
		test.That(t, tf.Rotation(), test.ShouldEqual, 0)
	})

	t.Run("pure rotation", func(t *testing.T) {
		tf := Twist2D{ThetaDot: -1.2}.Integrate()
		test.That(t, tf.Translation().X, test.ShouldAlmostEqual, 0, 1e-12)
		test.That(t, tf.Translation().Y, test.ShouldAlmostEqual, 0, 1e-12)
		test.That(t, tf.Rotation(), test.ShouldAlmostEqual, -1.2, 1e-12)
	})

	t.Run("quarter circle", func(t *testing.T) {
		// radius 1 arc turning left through pi/2
		tf := Twist2D{ThetaDot: math.Pi / 2, XDot: math.Pi / 2}.Integrate()
		test.That(t, tf.Translation().X, test.ShouldAlmostEqual, 1, 1e-12)
		test.That(t, tf.Translation().Y, test.ShouldAlmostEqual, 1, 1e-12)
		test.That(t, tf.Rotation(), test.ShouldAlmostEqual, math.Pi/2, 1e-12)
	})
}

func TestPoseFinite(t *testing.T) {
	test.That(t, NewPose2D(1, 2, 3).IsFinite(), test.ShouldBeTrue)
	test.That(t, Pose2D{X: math.NaN()}.IsFinite(), test.ShouldBeFalse)
	test.That(t, Twist2D{XDot: math.Inf(1)}.IsFinite(), test.ShouldBeFalse)
	test.That(t, NewPose2D(0, 0, -math.Pi).Theta, test.ShouldEqual, math.Pi)
}
