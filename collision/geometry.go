// Package collision detects and resolves overlap between the robot's bounding circle and static
// circular obstacles.
package collision

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
)

// Obstacle is a static circular obstacle in the world frame.
type Obstacle struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
}

// Center returns the centre of the obstacle.
func (o Obstacle) Center() r2.Point {
	return r2.Point{X: o.X, Y: o.Y}
}

func (o Obstacle) String() string {
	return fmt.Sprintf("{x:%.3f y:%.3f r:%.3f}", o.X, o.Y, o.Radius)
}

// NewObstacles zips parallel coordinate lists into obstacles sharing one radius.
func NewObstacles(xs, ys []float64, radius float64) ([]Obstacle, error) {
	if len(xs) != len(ys) {
		return nil, errors.Errorf("obstacle x and y lists differ in length: %d vs %d", len(xs), len(ys))
	}
	if len(xs) > 0 && !(radius > 0) {
		return nil, errors.Errorf("obstacle radius must be positive, got %v", radius)
	}
	obstacles := make([]Obstacle, 0, len(xs))
	for i := range xs {
		obstacles = append(obstacles, Obstacle{X: xs[i], Y: ys[i], Radius: radius})
	}
	return obstacles, nil
}

// CircleVsCircle reports whether two circles overlap or touch, along with the distance between
// their centres.
func CircleVsCircle(a r2.Point, ra float64, b r2.Point, rb float64) (bool, float64) {
	d := a.Sub(b).Norm()
	return d <= ra+rb, d
}

// separation returns the unit vector pointing from obstacle to robot. Coincident centres have no
// bearing, so +x is used.
func separation(robot, obstacle r2.Point, dist float64) r2.Point {
	if dist == 0 || math.IsNaN(dist) {
		return r2.Point{X: 1}
	}
	return robot.Sub(obstacle).Mul(1 / dist)
}
