package route

import (
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
)

// ErrEmpty indicates a route file with no usable waypoints.
var ErrEmpty = errors.New("route: no waypoints")

// Waypoint is a single route sample in world coordinates.
type Waypoint struct {
	X, Y, Z float64
}

// Route is an ordered table of waypoints loaded once at construction.
// The table is treated as a loop: index queries wrap around the end.
type Route struct {
	points []Waypoint
}

// Load reads a headerless csv file of x,y,z triples, one waypoint per line.
func Load(path string) (*Route, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("route: open %s: %w", path, err)
	}
	defer f.Close()

	rd := csv.NewReader(f)
	rd.FieldsPerRecord = 3
	rows, err := rd.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("route: parse %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("route: %s: %w", path, ErrEmpty)
	}

	pts := make([]Waypoint, 0, len(rows))
	for i, row := range rows {
		var w Waypoint
		for j, dst := range []*float64{&w.X, &w.Y, &w.Z} {
			v, err := strconv.ParseFloat(row[j], 64)
			if err != nil {
				return nil, fmt.Errorf("route: %s line %d: %w", path, i+1, err)
			}
			*dst = v
		}
		pts = append(pts, w)
	}
	return &Route{points: pts}, nil
}

// New builds a route directly from waypoints.
func New(points []Waypoint) (*Route, error) {
	if len(points) == 0 {
		return nil, ErrEmpty
	}
	r := &Route{points: make([]Waypoint, len(points))}
	copy(r.points, points)
	return r, nil
}

func (r *Route) Len() int { return len(r.points) }

// At returns the waypoint at index i, wrapping around the table.
func (r *Route) At(i int) Waypoint {
	n := len(r.points)
	i %= n
	if i < 0 {
		i += n
	}
	return r.points[i]
}

// ClosestIndex returns the index of the waypoint nearest to (x, y) in the
// ground plane.
func (r *Route) ClosestIndex(x, y float64) int {
	best, bestDist := 0, math.Inf(1)
	for i, p := range r.points {
		dx, dy := p.X-x, p.Y-y
		if d := dx*dx + dy*dy; d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// SampleAround returns count waypoints starting at center and spaced stride
// indices apart, wrapping around the table. It is the sampling pattern used
// for multi-point local curve fitting.
func (r *Route) SampleAround(center, count, stride int) []Waypoint {
	out := make([]Waypoint, count)
	for i := range out {
		out[i] = r.At(center + i*stride)
	}
	return out
}
