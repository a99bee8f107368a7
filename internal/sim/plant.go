package sim

import "math"

// State vector indices of the bicycle plant.
const (
	StateX = iota
	StateY
	StatePsi
	StateV
	bicycleStates
)

// Bicycle is the kinematic bicycle plant matching the controller's
// prediction model: positive steering decreases heading.
type Bicycle struct {
	Lf float64
}

func NewBicycle(lf float64) *Bicycle { return &Bicycle{Lf: lf} }

func (b *Bicycle) Derivative(x State, u Control, t float64) State {
	v := x[StateV]
	psi := x[StatePsi]
	acc, steer := 0.0, 0.0
	if len(u) >= 2 {
		acc, steer = u[0], u[1]
	}
	return State{
		v * math.Cos(psi),
		v * math.Sin(psi),
		-v * steer / b.Lf,
		acc,
	}
}

func (b *Bicycle) StateDim() int   { return bicycleStates }
func (b *Bicycle) ControlDim() int { return 2 }
