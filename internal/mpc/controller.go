package mpc

import (
	"fmt"
	"log/slog"

	"github.com/san-kum/autompc/internal/route"
	"github.com/san-kum/autompc/internal/solve"
)

// Command is the actuator pair applied after a successful solve.
type Command struct {
	Steering float64
	Throttle float64
}

// Phase tracks the controller's loop state: Idle until the first successful
// solve, Active afterwards. There is no terminal phase.
type Phase int

const (
	Idle Phase = iota
	Active
)

func (p Phase) String() string {
	if p == Idle {
		return "idle"
	}
	return "active"
}

// Controller computes per-tick steering and throttle commands by fitting a
// local reference curve, seeding a warm start, and running a bounded
// equality-constrained solve over the precompiled horizon model. A
// Controller owns its warm-start buffer and previous command exclusively;
// ticks must not overlap.
type Controller struct {
	opts   Options
	model  *Model
	solver solve.Solver
	lower  []float64
	upper  []float64
	warm   *warmStart
	log    *slog.Logger

	phase Phase
	last  Command
}

// New builds a controller from opts, validating the horizon configuration.
func New(opts Options) (*Controller, error) {
	model, err := NewModel(opts)
	if err != nil {
		return nil, err
	}
	lower, upper := model.Bounds(opts.MaxThrottle, opts.MaxSteering)
	if len(lower) != model.NumVars() || len(upper) != model.NumVars() {
		return nil, fmt.Errorf("mpc: bounds length %d does not match %d decision variables",
			len(lower), model.NumVars())
	}
	return &Controller{
		opts:   opts,
		model:  model,
		solver: solve.SQP{},
		lower:  lower,
		upper:  upper,
		warm:   newWarmStart(opts.StepsAhead),
		log:    slog.Default(),
	}, nil
}

// SetLogger replaces the default logger.
func (c *Controller) SetLogger(l *slog.Logger) { c.log = l }

// Phase returns the loop state.
func (c *Controller) Phase() Phase { return c.phase }

// LastCommand returns the most recent successful command, zero while Idle.
func (c *Controller) LastCommand() Command { return c.last }

// RunStep executes one control tick against the next target waypoint. On
// solver failure the previous command is returned with ok=false and the
// controller stays in its current phase.
func (c *Controller) RunStep(pose Pose, speed float64, wp route.Waypoint) (Command, bool) {
	fit, err := FitWaypoint(pose, wp, c.opts.PolyDegree)
	if err != nil {
		c.log.Debug("reference fit failed", "err", err)
		return c.last, false
	}
	return c.solveTick(fit, speed)
}

// RunStepOnRoute is the multi-waypoint variant of RunStep: the reference
// curve is fitted through nearby route samples instead of a single target.
func (c *Controller) RunStepOnRoute(pose Pose, speed float64, r *route.Route) (Command, bool) {
	fit, err := FitRoute(pose, r, c.opts.PolyDegree, c.opts.PolySpacing)
	if err != nil {
		c.log.Debug("reference fit failed", "err", err)
		return c.last, false
	}
	return c.solveTick(fit, speed)
}

func (c *Controller) solveTick(fit Fit, speed float64) (Command, bool) {
	params := Params{
		V:          speed,
		CrossTrack: fit.CrossTrack,
		HeadingErr: fit.HeadingErr,
		Curve:      fit.Curve,
	}
	x0 := c.warm.seed(speed, fit.CrossTrack, fit.HeadingErr, c.last.Throttle, c.last.Steering, fit.Curve)

	problem := solve.Problem{
		Objective:  c.model.Cost,
		Gradient:   c.model.CostGrad,
		Equalities: c.model.Constraints(params),
		Lower:      c.lower,
		Upper:      c.upper,
	}
	res, err := c.solver.Solve(problem, x0, solve.Options{
		Tolerance: c.opts.Tolerance,
		MaxIter:   c.opts.MaxIter,
	})
	if err != nil {
		c.log.Debug("unsuccessful optimization", "err", err)
		return c.last, false
	}
	if !res.Status.Success() {
		c.log.Debug("unsuccessful optimization",
			"status", res.Status.String(), "iterations", res.Iterations)
		return c.last, false
	}

	c.last = Command{
		Steering: res.X[c.model.idx(blockSteer, 0)],
		Throttle: res.X[c.model.idx(blockAcc, 0)],
	}
	c.phase = Active
	return c.last, true
}
