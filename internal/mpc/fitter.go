package mpc

import (
	"math"

	"github.com/san-kum/autompc/internal/poly"
	"github.com/san-kum/autompc/internal/route"
)

// Pose is a planar vehicle pose: world position and heading in radians.
type Pose struct {
	X, Y, Z float64
	Yaw     float64
}

// Fit is the local reference produced each tick: a polynomial describing
// the desired path in the vehicle frame plus the errors it implies at the
// vehicle's position. CrossTrack is the curve's constant term and
// HeadingErr the negative arctangent of its slope at the origin.
type Fit struct {
	Curve      poly.Polynomial
	CrossTrack float64
	HeadingErr float64
}

// toVehicleFrame rotates a world point by -yaw around the vehicle and
// translates it into the vehicle frame. The lateral axis is mirrored, which
// fixes the steering sign convention downstream.
func toVehicleFrame(px, py float64, pose Pose) (float64, float64) {
	cosPsi, sinPsi := math.Cos(pose.Yaw), math.Sin(pose.Yaw)
	dx, dy := px-pose.X, py-pose.Y
	return cosPsi*dx + sinPsi*dy, sinPsi*dx - cosPsi*dy
}

func fitLocal(xs, ys []float64, degree int) (Fit, error) {
	curve, err := poly.Fit(xs, ys, degree)
	if err != nil {
		return Fit{}, err
	}
	return Fit{
		Curve:      curve,
		CrossTrack: curve.Constant(),
		HeadingErr: -math.Atan(curve.Slope()),
	}, nil
}

// FitWaypoint fits the reference curve through a single target waypoint.
// With one sample the polynomial degenerates to the minimum-norm curve
// through that point; downstream consumers see the same contract as any
// other fit (degree+1 coefficients plus the two error terms).
func FitWaypoint(pose Pose, wp route.Waypoint, degree int) (Fit, error) {
	lx, ly := toVehicleFrame(wp.X, wp.Y, pose)
	return fitLocal([]float64{lx}, []float64{ly}, degree)
}

// routeFitShift backs the sampling window up a few waypoints so the fitted
// curve covers road behind as well as ahead of the vehicle.
const routeFitShift = 5

// FitRoute fits the reference curve through degree+1 route samples spaced
// spacing indices apart around the waypoint nearest the vehicle.
func FitRoute(pose Pose, r *route.Route, degree, spacing int) (Fit, error) {
	closest := r.ClosestIndex(pose.X, pose.Y)
	pts := r.SampleAround(closest-routeFitShift, degree+1, spacing)

	xs := make([]float64, len(pts))
	ys := make([]float64, len(pts))
	for i, p := range pts {
		xs[i], ys[i] = toVehicleFrame(p.X, p.Y, pose)
	}
	return fitLocal(xs, ys, degree)
}
