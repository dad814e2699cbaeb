package collision

import (
	"go.viam.com/slamsim/spatialmath"
)

// Resolve pushes the robot out of every obstacle it overlaps or touches, visiting obstacles in
// declaration order. A colliding robot is moved along the line from the obstacle centre through
// its own centre to a distance of exactly obstacle radius plus robot radius. The heading is kept.
// Overlaps with two obstacles at once are resolved one after the other with no guarantee that the
// final pose is clear of both. The number of collisions resolved is returned.
func Resolve(pose spatialmath.Pose2D, robotRadius float64, obstacles []Obstacle) (spatialmath.Pose2D, int) {
	var hits int
	for _, o := range obstacles {
		robot := pose.Point()
		colliding, dist := CircleVsCircle(robot, robotRadius, o.Center(), o.Radius)
		if !colliding {
			continue
		}
		hits++
		p := o.Center().Add(separation(robot, o.Center(), dist).Mul(o.Radius + robotRadius))
		pose.X, pose.Y = p.X, p.Y
	}
	return pose, hits
}
