package sim

import "math"

// State is a dense plant state vector. For the bicycle plant the layout is
// [x, y, psi, v].
type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Control is an actuator vector, [throttle, steering] for the bicycle plant.
type Control []float64

// Dynamics is a continuous-time plant model.
type Dynamics interface {
	Derivative(x State, u Control, t float64) State
	StateDim() int
	ControlDim() int
}

// Integrator advances a plant state by one timestep.
type Integrator interface {
	Step(dyn Dynamics, x State, u Control, t, dt float64) State
}

// Metric accumulates a scalar over a run.
type Metric interface {
	Name() string
	Observe(x State, u Control, t float64)
	Value() float64
	Reset()
}

// Observer is notified after every applied step.
type Observer interface {
	OnStep(x State, u Control, t float64)
}
