// Package viz is the one-way visualization collaborator: it projects 3D
// waypoint poses through a pinhole camera into image coordinates and draws
// them onto a terminal canvas. Nothing here feeds back into control.
package viz

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Vec3 is a point or direction in world space.
type Vec3 struct {
	X, Y, Z float64
}

// Rotation holds intrinsic rotation angles in radians.
type Rotation struct {
	Pitch, Yaw, Roll float64
}

// Transform is a rigid pose: translation plus rotation.
type Transform struct {
	Location Vec3
	Rotation Rotation
}

// Matrix returns the 4x4 homogeneous transform, yaw-pitch-roll order.
func (t Transform) Matrix() *mat.Dense {
	cy, sy := math.Cos(t.Rotation.Yaw), math.Sin(t.Rotation.Yaw)
	cp, sp := math.Cos(t.Rotation.Pitch), math.Sin(t.Rotation.Pitch)
	cr, sr := math.Cos(t.Rotation.Roll), math.Sin(t.Rotation.Roll)

	return mat.NewDense(4, 4, []float64{
		cy * cp, cy*sp*sr - sy*cr, cy*sp*cr + sy*sr, t.Location.X,
		sy * cp, sy*sp*sr + cy*cr, sy*sp*cr - cy*sr, t.Location.Y,
		-sp, cp * sr, cp * cr, t.Location.Z,
		0, 0, 0, 1,
	})
}

// Camera is a pinhole camera mounted on the vehicle: its pose relative to
// the vehicle plus the intrinsics built from the image size and field of
// view.
type Camera struct {
	Transform  Transform
	Intrinsics *mat.Dense
	Width      int
	Height     int
}

// NewCamera builds a camera with a symmetric pinhole intrinsics matrix.
// fov is the horizontal field of view in radians.
func NewCamera(width, height int, fov float64, mount Transform) *Camera {
	f := float64(width) / (2 * math.Tan(fov/2))
	k := mat.NewDense(3, 3, []float64{
		f, 0, float64(width) / 2,
		0, f, float64(height) / 2,
		0, 0, 1,
	})
	return &Camera{Transform: mount, Intrinsics: k, Width: width, Height: height}
}

// ImagePoint is a projected pixel coordinate with its camera-space depth.
type ImagePoint struct {
	X, Y  int
	Depth float64
}

// ProjectWaypoint maps a world-space waypoint into image coordinates given
// the vehicle pose the camera is mounted on. The world point is carried
// into camera space through the inverse of the composed vehicle and mount
// transforms, axes reordered into the image frame, then scaled by the
// intrinsics. Points at or behind the image plane return an error.
func ProjectWaypoint(wp Vec3, vehicle Transform, cam *Camera) (ImagePoint, error) {
	world := mat.NewVecDense(4, []float64{wp.X, wp.Y, wp.Z, 1})

	var camWorld mat.Dense
	camWorld.Mul(vehicle.Matrix(), cam.Transform.Matrix())
	var inv mat.Dense
	if err := inv.Inverse(&camWorld); err != nil {
		return ImagePoint{}, fmt.Errorf("viz: camera transform not invertible: %w", err)
	}

	var camSpace mat.VecDense
	camSpace.MulVec(&inv, world)

	// Camera space (x forward, y right, z up) to image space
	// (u right, v down, depth forward).
	img := mat.NewVecDense(3, []float64{
		camSpace.AtVec(1),
		-camSpace.AtVec(2),
		camSpace.AtVec(0),
	})

	var raw mat.VecDense
	raw.MulVec(cam.Intrinsics, img)
	depth := raw.AtVec(2)
	if depth <= 0 {
		return ImagePoint{}, fmt.Errorf("viz: waypoint behind camera (depth %.3f)", depth)
	}

	return ImagePoint{
		X:     int(raw.AtVec(0) / depth),
		Y:     int(raw.AtVec(1) / depth),
		Depth: depth,
	}, nil
}
