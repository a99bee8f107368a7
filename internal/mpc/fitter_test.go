package mpc

import (
	"math"
	"testing"

	"github.com/san-kum/autompc/internal/route"
)

func TestFitWaypointStraightRoad(t *testing.T) {
	pose := Pose{X: 0, Y: 0, Yaw: 0}
	fit, err := FitWaypoint(pose, route.Waypoint{X: 10, Y: 0}, 3)
	if err != nil {
		t.Fatalf("FitWaypoint: %v", err)
	}
	if len(fit.Curve) != 4 {
		t.Fatalf("expected 4 coefficients, got %d", len(fit.Curve))
	}
	if math.Abs(fit.CrossTrack) > 1e-9 {
		t.Errorf("cte = %v, want ~0", fit.CrossTrack)
	}
	if math.Abs(fit.HeadingErr) > 1e-9 {
		t.Errorf("heading error = %v, want ~0", fit.HeadingErr)
	}
}

func TestFitWaypointLateralOffset(t *testing.T) {
	pose := Pose{X: 0, Y: 0, Yaw: 0}

	left, err := FitWaypoint(pose, route.Waypoint{X: 10, Y: 2}, 3)
	if err != nil {
		t.Fatal(err)
	}
	right, err := FitWaypoint(pose, route.Waypoint{X: 10, Y: -2}, 3)
	if err != nil {
		t.Fatal(err)
	}

	if left.CrossTrack == 0 || right.CrossTrack == 0 {
		t.Fatal("lateral offset should produce nonzero cte")
	}
	if math.Signbit(left.CrossTrack) == math.Signbit(right.CrossTrack) {
		t.Error("opposite offsets should produce opposite cte signs")
	}
	if math.Signbit(left.HeadingErr) == math.Signbit(right.HeadingErr) {
		t.Error("opposite offsets should produce opposite heading-error signs")
	}
}

func TestFitWaypointRotatedFrame(t *testing.T) {
	// A waypoint dead ahead of a rotated vehicle lands on the local x axis.
	yaw := math.Pi / 3
	pose := Pose{X: 3, Y: -2, Yaw: yaw}
	wp := route.Waypoint{X: 3 + 10*math.Cos(yaw), Y: -2 + 10*math.Sin(yaw)}

	fit, err := FitWaypoint(pose, wp, 3)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(fit.CrossTrack) > 1e-9 {
		t.Errorf("cte = %v, want ~0 for waypoint dead ahead", fit.CrossTrack)
	}
}

func TestFitRoute(t *testing.T) {
	// A straight line of waypoints along +x keeps cte near zero regardless
	// of the sampling window.
	pts := make([]route.Waypoint, 200)
	for i := range pts {
		pts[i] = route.Waypoint{X: float64(i), Y: 0}
	}
	r, err := route.New(pts)
	if err != nil {
		t.Fatal(err)
	}

	fit, err := FitRoute(Pose{X: 50, Y: 0, Yaw: 0}, r, 3, 30)
	if err != nil {
		t.Fatalf("FitRoute: %v", err)
	}
	if math.Abs(fit.CrossTrack) > 1e-6 {
		t.Errorf("cte = %v, want ~0 on straight route", fit.CrossTrack)
	}
}

func TestFitWaypointBadDegree(t *testing.T) {
	if _, err := FitWaypoint(Pose{}, route.Waypoint{X: 1}, 0); err == nil {
		t.Error("expected error for degenerate degree")
	}
}
