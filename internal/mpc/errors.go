package mpc

import "errors"

// Construction-time configuration errors. No controller is built when any
// of these are returned.
var (
	// ErrHorizon indicates a horizon length below 1.
	ErrHorizon = errors.New("mpc: horizon length must be at least 1")

	// ErrTimestep indicates a non-positive timestep.
	ErrTimestep = errors.New("mpc: timestep must be positive")

	// ErrDegree indicates a degenerate polynomial fit degree.
	ErrDegree = errors.New("mpc: polynomial degree must be at least 1")

	// ErrActuatorRange indicates non-positive actuator limits.
	ErrActuatorRange = errors.New("mpc: actuator limits must be positive")
)
