package sim

import (
	"math"

	"github.com/san-kum/autompc/internal/route"
)

// CrossTrackRMS accumulates the root-mean-square ground-plane distance
// between the vehicle and the nearest route waypoint.
type CrossTrackRMS struct {
	route   *route.Route
	sumSq   float64
	samples int
}

func NewCrossTrackRMS(r *route.Route) *CrossTrackRMS {
	return &CrossTrackRMS{route: r}
}

func (c *CrossTrackRMS) Name() string { return "cross_track_rms" }

func (c *CrossTrackRMS) Observe(x State, u Control, t float64) {
	wp := c.route.At(c.route.ClosestIndex(x[StateX], x[StateY]))
	dx, dy := wp.X-x[StateX], wp.Y-x[StateY]
	c.sumSq += dx*dx + dy*dy
	c.samples++
}

func (c *CrossTrackRMS) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return math.Sqrt(c.sumSq / float64(c.samples))
}

func (c *CrossTrackRMS) Reset() {
	c.sumSq = 0
	c.samples = 0
}

// SpeedError accumulates the mean absolute deviation from the target speed.
type SpeedError struct {
	target  float64
	sum     float64
	samples int
}

func NewSpeedError(target float64) *SpeedError {
	return &SpeedError{target: target}
}

func (s *SpeedError) Name() string { return "speed_error" }

func (s *SpeedError) Observe(x State, u Control, t float64) {
	s.sum += math.Abs(x[StateV] - s.target)
	s.samples++
}

func (s *SpeedError) Value() float64 {
	if s.samples == 0 {
		return 0
	}
	return s.sum / float64(s.samples)
}

func (s *SpeedError) Reset() {
	s.sum = 0
	s.samples = 0
}

// ControlEffort accumulates the mean absolute actuator magnitude.
type ControlEffort struct {
	sum     float64
	samples int
}

func NewControlEffort() *ControlEffort { return &ControlEffort{} }

func (c *ControlEffort) Name() string { return "control_effort" }

func (c *ControlEffort) Observe(x State, u Control, t float64) {
	for _, v := range u {
		c.sum += math.Abs(v)
	}
	c.samples++
}

func (c *ControlEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *ControlEffort) Reset() {
	c.sum = 0
	c.samples = 0
}
