package mpc

// Weights are the scalar cost coefficients of the horizon objective.
type Weights struct {
	CrossTrack     float64
	Heading        float64
	Speed          float64
	Throttle       float64
	Steer          float64
	ThrottleSmooth float64
	SteerSmooth    float64
}

// DefaultWeights returns the tuned cost coefficients.
func DefaultWeights() Weights {
	return Weights{
		CrossTrack:     100,
		Heading:        100,
		Speed:          0.4,
		Throttle:       1,
		Steer:          0.1,
		ThrottleSmooth: 50,
		SteerSmooth:    50,
	}
}

// Options fix the controller at construction. All fields are immutable once
// a Controller is built.
type Options struct {
	// TargetSpeed the controller tracks, in position units per second.
	TargetSpeed float64
	// StepsAhead is the horizon length N.
	StepsAhead int
	// Dt is the horizon timestep in seconds.
	Dt float64
	// MaxThrottle bounds the throttle command to [0, MaxThrottle].
	MaxThrottle float64
	// MaxSteering bounds the steering command to [-MaxSteering, MaxSteering].
	MaxSteering float64
	// Wheelbase is the front-axle-to-CG distance Lf of the bicycle model.
	Wheelbase float64
	// PolyDegree is the local reference fit degree.
	PolyDegree int
	// PolySpacing is the waypoint index stride used by multi-point fits.
	PolySpacing int
	// Tolerance is the solver convergence tolerance.
	Tolerance float64
	// MaxIter caps solver iterations per tick.
	MaxIter int
	Weights Weights
}

// DefaultOptions mirrors the tuned controller configuration.
func DefaultOptions() Options {
	return Options{
		TargetSpeed: 20,
		StepsAhead:  10,
		Dt:          0.1,
		MaxThrottle: 1,
		MaxSteering: 1,
		Wheelbase:   2.5,
		PolyDegree:  3,
		PolySpacing: 30,
		Tolerance:   1,
		MaxIter:     50,
		Weights:     DefaultWeights(),
	}
}

func (o Options) validate() error {
	if o.StepsAhead < 1 {
		return ErrHorizon
	}
	if o.Dt <= 0 {
		return ErrTimestep
	}
	if o.PolyDegree < 1 {
		return ErrDegree
	}
	if o.MaxThrottle <= 0 || o.MaxSteering <= 0 {
		return ErrActuatorRange
	}
	return nil
}
