package sim

import (
	"context"
	"fmt"

	"github.com/san-kum/autompc/internal/mpc"
	"github.com/san-kum/autompc/internal/route"
)

// Config controls a closed-loop run.
type Config struct {
	Dt       float64
	Duration float64
	// Lookahead picks the target waypoint this many indices past the
	// nearest one.
	Lookahead int
	// RouteFit switches the controller to multi-waypoint curve fitting.
	RouteFit      bool
	ValidateState bool
}

// Result captures a full closed-loop run.
type Result struct {
	Times    []float64
	States   []State
	Commands []mpc.Command
	// Failures counts ticks where the solver produced no new command.
	Failures int
	Metrics  map[string]float64
}

// Simulator drives the MPC controller against the bicycle plant along a
// route. Each tick is synchronous: the solve finishes before the plant
// advances, matching the controller's single-tick ownership rules.
type Simulator struct {
	plant     Dynamics
	integ     Integrator
	ctrl      *mpc.Controller
	route     *route.Route
	metrics   []Metric
	observers []Observer
}

func New(plant Dynamics, integ Integrator, ctrl *mpc.Controller, r *route.Route) *Simulator {
	return &Simulator{
		plant: plant,
		integ: integ,
		ctrl:  ctrl,
		route: r,
	}
}

func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

func (s *Simulator) validateConfig(cfg Config) error {
	if cfg.Dt <= 0 {
		return fmt.Errorf("sim: dt must be positive, got %f", cfg.Dt)
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("sim: duration must be positive, got %f", cfg.Duration)
	}
	return nil
}

// Run executes the closed loop from the given start pose and speed.
func (s *Simulator) Run(ctx context.Context, start mpc.Pose, speed float64, cfg Config) (*Result, error) {
	if err := s.validateConfig(cfg); err != nil {
		return nil, err
	}

	steps := int(cfg.Duration / cfg.Dt)
	result := &Result{
		Times:    make([]float64, 0, steps+1),
		States:   make([]State, 0, steps+1),
		Commands: make([]mpc.Command, 0, steps),
		Metrics:  make(map[string]float64),
	}
	for _, m := range s.metrics {
		m.Reset()
	}

	x := State{start.X, start.Y, start.Yaw, speed}
	t := 0.0
	result.States = append(result.States, x.Clone())
	result.Times = append(result.Times, t)

	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		pose := mpc.Pose{X: x[StateX], Y: x[StateY], Yaw: x[StatePsi]}

		var cmd mpc.Command
		var ok bool
		if cfg.RouteFit {
			cmd, ok = s.ctrl.RunStepOnRoute(pose, x[StateV], s.route)
		} else {
			target := s.route.At(s.route.ClosestIndex(pose.X, pose.Y) + cfg.Lookahead)
			cmd, ok = s.ctrl.RunStep(pose, x[StateV], target)
		}
		if !ok {
			result.Failures++
		}

		u := Control{cmd.Throttle, cmd.Steering}
		for _, m := range s.metrics {
			m.Observe(x, u, t)
		}
		for _, obs := range s.observers {
			obs.OnStep(x, u, t)
		}

		x = s.integ.Step(s.plant, x, u, t, cfg.Dt)
		t += cfg.Dt

		if cfg.ValidateState && !x.IsValid() {
			return result, fmt.Errorf("sim: invalid state at t=%.4f", t)
		}

		result.States = append(result.States, x.Clone())
		result.Times = append(result.Times, t)
		result.Commands = append(result.Commands, cmd)
	}

	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	return result, nil
}
