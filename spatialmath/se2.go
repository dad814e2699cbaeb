// Package spatialmath defines the planar rigid body types used by the simulator and the estimator:
// poses, twists and SE(2) transforms.
package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
)

// Pose2D is a position and heading in the plane. Theta is in radians and kept in (-pi, pi].
type Pose2D struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Theta float64 `json:"theta"`
}

// NewPose2D returns a pose with its heading normalized.
func NewPose2D(x, y, theta float64) Pose2D {
	return Pose2D{X: x, Y: y, Theta: NormalizeAngle(theta)}
}

// Point returns the position of the pose.
func (p Pose2D) Point() r2.Point {
	return r2.Point{X: p.X, Y: p.Y}
}

// Transform returns the transform from the frame the pose is expressed in to the frame of the pose.
func (p Pose2D) Transform() Transform2D {
	return NewTransform2D(p.Point(), p.Theta)
}

// IsFinite reports whether every component of the pose is a finite number.
func (p Pose2D) IsFinite() bool {
	return isFinite(p.X) && isFinite(p.Y) && isFinite(p.Theta)
}

func (p Pose2D) String() string {
	return fmt.Sprintf("{x:%.4f y:%.4f theta:%.4f}", p.X, p.Y, p.Theta)
}

// Twist2D is a body frame velocity. For a differential drive YDot is always zero.
type Twist2D struct {
	ThetaDot float64 `json:"thetadot"`
	XDot     float64 `json:"xdot"`
	YDot     float64 `json:"ydot"`
}

// IsFinite reports whether every component of the twist is a finite number.
func (tw Twist2D) IsFinite() bool {
	return isFinite(tw.ThetaDot) && isFinite(tw.XDot) && isFinite(tw.YDot)
}

// Integrate returns the transform reached by following the twist for one unit of time starting
// at the identity. The straight line case is handled separately so that a zero angular velocity
// never divides by zero.
func (tw Twist2D) Integrate() Transform2D {
	if AlmostEqual(tw.ThetaDot, 0, Epsilon) {
		return NewTransform2D(r2.Point{X: tw.XDot, Y: tw.YDot}, 0)
	}
	s, c := math.Sincos(tw.ThetaDot)
	x := (tw.XDot*s + tw.YDot*(c-1)) / tw.ThetaDot
	y := (tw.YDot*s + tw.XDot*(1-c)) / tw.ThetaDot
	return NewTransform2D(r2.Point{X: x, Y: y}, tw.ThetaDot)
}

func (tw Twist2D) String() string {
	return fmt.Sprintf("{thetadot:%.4f xdot:%.4f ydot:%.4f}", tw.ThetaDot, tw.XDot, tw.YDot)
}

// Transform2D is an element of SE(2): a rotation followed by a translation.
type Transform2D struct {
	trans r2.Point
	rot   float64
	// cached sin and cos of rot
	s, c float64
}

// NewTransform2D creates a transform from a translation and a rotation in radians.
func NewTransform2D(trans r2.Point, rot float64) Transform2D {
	rot = NormalizeAngle(rot)
	s, c := math.Sincos(rot)
	return Transform2D{trans: trans, rot: rot, s: s, c: c}
}

// IdentityTransform2D returns the identity transform.
func IdentityTransform2D() Transform2D {
	return NewTransform2D(r2.Point{}, 0)
}

// Translation returns the translational component of the transform.
func (t Transform2D) Translation() r2.Point {
	return t.trans
}

// Rotation returns the rotation of the transform in (-pi, pi].
func (t Transform2D) Rotation() float64 {
	return t.rot
}

// Apply maps a point through the transform.
func (t Transform2D) Apply(p r2.Point) r2.Point {
	return t.ApplyVector(p).Add(t.trans)
}

// ApplyVector rotates a free vector. Translation does not apply to vectors.
func (t Transform2D) ApplyVector(v r2.Point) r2.Point {
	return r2.Point{X: t.c*v.X - t.s*v.Y, Y: t.s*v.X + t.c*v.Y}
}

// Mul composes two transforms, returning t * other.
func (t Transform2D) Mul(other Transform2D) Transform2D {
	return NewTransform2D(t.Apply(other.trans), t.rot+other.rot)
}

// Inv returns the inverse of the transform.
func (t Transform2D) Inv() Transform2D {
	inv := NewTransform2D(r2.Point{}, -t.rot)
	return NewTransform2D(inv.ApplyVector(t.trans).Mul(-1), -t.rot)
}

// Pose returns the pose equivalent of the transform.
func (t Transform2D) Pose() Pose2D {
	return Pose2D{X: t.trans.X, Y: t.trans.Y, Theta: t.rot}
}

// AlmostEqualTransforms reports whether two transforms agree to within epsilon in translation and
// rotation.
func AlmostEqualTransforms(a, b Transform2D, epsilon float64) bool {
	return AlmostEqual(a.trans.X, b.trans.X, epsilon) &&
		AlmostEqual(a.trans.Y, b.trans.Y, epsilon) &&
		AlmostEqual(AngleDiff(a.rot, b.rot), 0, epsilon)
}

func (t Transform2D) String() string {
	return fmt.Sprintf("{x:%.4f y:%.4f rot:%.4f}", t.trans.X, t.trans.Y, t.rot)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
