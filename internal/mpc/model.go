package mpc

import (
	"math"

	"github.com/san-kum/autompc/internal/poly"
	"github.com/san-kum/autompc/internal/solve"
)

// Decision-vector layout: eight contiguous blocks of N entries each, six
// state series followed by the two actuator series.
const (
	blockX = iota
	blockY
	blockPsi
	blockV
	blockCTE
	blockEPsi
	blockAcc
	blockSteer
	numBlocks
)

const numStateBlocks = 6

// Params are the per-tick scalars bound into the constraint evaluators: the
// six initial-state values and the local reference curve. A fresh value is
// built every tick and passed explicitly; the compiled model itself never
// changes after construction.
type Params struct {
	X, Y, Psi, V float64
	CrossTrack   float64
	HeadingErr   float64
	Curve        poly.Polynomial
}

func (p Params) initial(block int) float64 {
	switch block {
	case blockX:
		return p.X
	case blockY:
		return p.Y
	case blockPsi:
		return p.Psi
	case blockV:
		return p.V
	case blockCTE:
		return p.CrossTrack
	default:
		return p.HeadingErr
	}
}

// Model holds the once-built horizon cost and equality-constraint model of
// the kinematic bicycle with path-tracking error dynamics. Cost, constraint,
// and gradient evaluations are closed forms derived from the discrete model,
// so the solver sees exact jacobians rather than finite differences. A Model
// is immutable and safe to share between controllers with identical options.
type Model struct {
	n      int
	dt     float64
	lf     float64
	target float64
	w      Weights
}

// NewModel validates the horizon configuration and builds the model.
func NewModel(o Options) (*Model, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}
	return &Model{
		n:      o.StepsAhead,
		dt:     o.Dt,
		lf:     o.Wheelbase,
		target: o.TargetSpeed,
		w:      o.Weights,
	}, nil
}

// NumVars returns the decision-vector length 8N.
func (m *Model) NumVars() int { return numBlocks * m.n }

// NumConstraints returns the equality-constraint count 6N.
func (m *Model) NumConstraints() int { return numStateBlocks * m.n }

func (m *Model) idx(block, t int) int { return block*m.n + t }

// Cost evaluates the horizon objective: weighted tracking, actuator
// magnitude, and consecutive-actuator smoothing penalties.
func (m *Model) Cost(z []float64) float64 {
	cost := 0.0
	for t := 0; t < m.n; t++ {
		cte := z[m.idx(blockCTE, t)]
		epsi := z[m.idx(blockEPsi, t)]
		dv := z[m.idx(blockV, t)] - m.target
		a := z[m.idx(blockAcc, t)]
		steer := z[m.idx(blockSteer, t)]
		cost += m.w.CrossTrack*cte*cte +
			m.w.Heading*epsi*epsi +
			m.w.Speed*dv*dv +
			m.w.Throttle*a*a +
			m.w.Steer*steer*steer
	}
	for t := 0; t < m.n-1; t++ {
		da := z[m.idx(blockAcc, t+1)] - z[m.idx(blockAcc, t)]
		ds := z[m.idx(blockSteer, t+1)] - z[m.idx(blockSteer, t)]
		cost += m.w.ThrottleSmooth*da*da + m.w.SteerSmooth*ds*ds
	}
	return cost
}

// CostGrad writes the exact objective gradient over the full decision
// vector into grad.
func (m *Model) CostGrad(z, grad []float64) {
	for i := range grad {
		grad[i] = 0
	}
	for t := 0; t < m.n; t++ {
		grad[m.idx(blockCTE, t)] = 2 * m.w.CrossTrack * z[m.idx(blockCTE, t)]
		grad[m.idx(blockEPsi, t)] = 2 * m.w.Heading * z[m.idx(blockEPsi, t)]
		grad[m.idx(blockV, t)] = 2 * m.w.Speed * (z[m.idx(blockV, t)] - m.target)
		grad[m.idx(blockAcc, t)] = 2 * m.w.Throttle * z[m.idx(blockAcc, t)]
		grad[m.idx(blockSteer, t)] = 2 * m.w.Steer * z[m.idx(blockSteer, t)]
	}
	for t := 0; t < m.n-1; t++ {
		da := z[m.idx(blockAcc, t+1)] - z[m.idx(blockAcc, t)]
		grad[m.idx(blockAcc, t+1)] += 2 * m.w.ThrottleSmooth * da
		grad[m.idx(blockAcc, t)] -= 2 * m.w.ThrottleSmooth * da
		ds := z[m.idx(blockSteer, t+1)] - z[m.idx(blockSteer, t)]
		grad[m.idx(blockSteer, t+1)] += 2 * m.w.SteerSmooth * ds
		grad[m.idx(blockSteer, t)] -= 2 * m.w.SteerSmooth * ds
	}
}

// Constraints binds p into the 6N equality constraints and returns them in
// block order (x, y, psi, v, cte, epsi), each with its exact gradient. The
// t=0 constraint of every series pins it to the initial-state parameter;
// t>=1 constraints encode one step of the discrete bicycle and error
// dynamics.
func (m *Model) Constraints(p Params) []solve.Constraint {
	d1 := p.Curve.Deriv()
	d2 := d1.Deriv()

	cons := make([]solve.Constraint, 0, m.NumConstraints())
	for block := 0; block < numStateBlocks; block++ {
		for t := 0; t < m.n; t++ {
			cons = append(cons, m.constraint(block, t, p, d1, d2))
		}
	}
	return cons
}

func (m *Model) constraint(block, t int, p Params, d1, d2 poly.Polynomial) solve.Constraint {
	if t == 0 {
		at := m.idx(block, 0)
		want := p.initial(block)
		return solve.Constraint{
			F: func(z []float64) float64 { return z[at] - want },
			Grad: func(z, g []float64) {
				zero(g)
				g[at] = 1
			},
		}
	}

	cur := m.idx(block, t)
	xp := m.idx(blockX, t-1)
	yp := m.idx(blockY, t-1)
	pp := m.idx(blockPsi, t-1)
	vp := m.idx(blockV, t-1)
	ep := m.idx(blockEPsi, t-1)
	ap := m.idx(blockAcc, t-1)
	sp := m.idx(blockSteer, t-1)
	dt, lf := m.dt, m.lf

	switch block {
	case blockX:
		return solve.Constraint{
			F: func(z []float64) float64 {
				return z[cur] - z[xp] - z[vp]*math.Cos(z[pp])*dt
			},
			Grad: func(z, g []float64) {
				zero(g)
				g[cur] = 1
				g[xp] = -1
				g[vp] = -math.Cos(z[pp]) * dt
				g[pp] = z[vp] * math.Sin(z[pp]) * dt
			},
		}
	case blockY:
		return solve.Constraint{
			F: func(z []float64) float64 {
				return z[cur] - z[yp] - z[vp]*math.Sin(z[pp])*dt
			},
			Grad: func(z, g []float64) {
				zero(g)
				g[cur] = 1
				g[yp] = -1
				g[vp] = -math.Sin(z[pp]) * dt
				g[pp] = -z[vp] * math.Cos(z[pp]) * dt
			},
		}
	case blockPsi:
		return solve.Constraint{
			F: func(z []float64) float64 {
				return z[cur] - z[pp] + z[vp]*z[sp]*dt/lf
			},
			Grad: func(z, g []float64) {
				zero(g)
				g[cur] = 1
				g[pp] = -1
				g[vp] = z[sp] * dt / lf
				g[sp] = z[vp] * dt / lf
			},
		}
	case blockV:
		return solve.Constraint{
			F: func(z []float64) float64 {
				return z[cur] - z[vp] - z[ap]*dt
			},
			Grad: func(z, g []float64) {
				zero(g)
				g[cur] = 1
				g[vp] = -1
				g[ap] = -dt
			},
		}
	case blockCTE:
		curve := p.Curve
		return solve.Constraint{
			F: func(z []float64) float64 {
				return z[cur] - curve.Eval(z[xp]) + z[yp] - z[vp]*math.Sin(z[ep])*dt
			},
			Grad: func(z, g []float64) {
				zero(g)
				g[cur] = 1
				g[xp] = -d1.Eval(z[xp])
				g[yp] = 1
				g[vp] = -math.Sin(z[ep]) * dt
				g[ep] = -z[vp] * math.Cos(z[ep]) * dt
			},
		}
	default: // blockEPsi
		return solve.Constraint{
			F: func(z []float64) float64 {
				return z[cur] - z[pp] + d1.Eval(z[xp]) + z[vp]*z[sp]*dt/lf
			},
			Grad: func(z, g []float64) {
				zero(g)
				g[cur] = 1
				g[pp] = -1
				g[xp] = d2.Eval(z[xp])
				g[vp] = z[sp] * dt / lf
				g[sp] = z[vp] * dt / lf
			},
		}
	}
}

// Bounds returns the fixed box constraints of the decision vector: state
// series unconstrained, throttle in [0, maxThrottle], steering in
// [-maxSteering, maxSteering].
func (m *Model) Bounds(maxThrottle, maxSteering float64) (lower, upper []float64) {
	nv := m.NumVars()
	lower = make([]float64, nv)
	upper = make([]float64, nv)
	for i := 0; i < m.idx(blockAcc, 0); i++ {
		lower[i] = math.Inf(-1)
		upper[i] = math.Inf(1)
	}
	for t := 0; t < m.n; t++ {
		lower[m.idx(blockAcc, t)] = 0
		upper[m.idx(blockAcc, t)] = maxThrottle
		lower[m.idx(blockSteer, t)] = -maxSteering
		upper[m.idx(blockSteer, t)] = maxSteering
	}
	return lower, upper
}

func zero(g []float64) {
	for i := range g {
		g[i] = 0
	}
}
