package viz

import (
	"fmt"
	"math"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/autompc/internal/mpc"
	"github.com/san-kum/autompc/internal/route"
	"github.com/san-kum/autompc/internal/sim"
)

const (
	canvasWidth   = 60
	canvasHeight  = 18
	historyLength = 240
	imageWidth    = 800
	imageHeight   = 600
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	canvasStyle = lipgloss.NewStyle().Padding(0, 2)
	statsStyle  = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(lipgloss.Color("240")).Padding(0, 2).Width(36)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(12)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	graphStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

// TickMsg drives the live simulation clock.
type TickMsg time.Time

// Live is a bubbletea model that steps the closed loop in real time and
// renders the route, the vehicle trail, and the projected next waypoint.
type Live struct {
	ctrl  *mpc.Controller
	plant sim.Dynamics
	integ sim.Integrator
	route *route.Route
	cam   *Camera
	cfg   sim.Config

	state    sim.State
	start    sim.State
	t        float64
	running  bool
	failures int
	last     mpc.Command

	speedHist []float64
	cteHist   []float64
	canvas    *Canvas

	minX, minY, scale float64
}

// NewLive builds the live view. The camera is mounted slightly above the
// vehicle origin looking forward.
func NewLive(ctrl *mpc.Controller, r *route.Route, start mpc.Pose, speed float64, lf float64, cfg sim.Config) *Live {
	l := &Live{
		ctrl:    ctrl,
		plant:   sim.NewBicycle(lf),
		integ:   sim.NewRK4(),
		route:   r,
		cam:     NewCamera(imageWidth, imageHeight, math.Pi/2, Transform{Location: Vec3{X: 1.6, Z: 1.7}}),
		cfg:     cfg,
		state:   sim.State{start.X, start.Y, start.Yaw, speed},
		running: true,
		canvas:  NewCanvas(canvasWidth, canvasHeight),
	}
	l.start = l.state.Clone()
	l.fitViewport()
	return l
}

// fitViewport scales the route bounding box onto the canvas sub-pixel grid.
func (l *Live) fitViewport() {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for i := 0; i < l.route.Len(); i++ {
		wp := l.route.At(i)
		minX, maxX = math.Min(minX, wp.X), math.Max(maxX, wp.X)
		minY, maxY = math.Min(minY, wp.Y), math.Max(maxY, wp.Y)
	}
	spanX, spanY := maxX-minX, maxY-minY
	if spanX < 1 {
		spanX = 1
	}
	if spanY < 1 {
		spanY = 1
	}
	sx := float64(canvasWidth*2-4) / spanX
	sy := float64(canvasHeight*4-4) / spanY
	l.minX, l.minY = minX, minY
	l.scale = math.Min(sx, sy)
}

func (l *Live) toCanvas(x, y float64) (int, int) {
	cx := int((x-l.minX)*l.scale) + 2
	cy := canvasHeight*4 - 2 - int((y-l.minY)*l.scale)
	return cx, cy
}

func (l *Live) Init() tea.Cmd { return l.tick() }

func (l *Live) tick() tea.Cmd {
	return tea.Tick(time.Duration(l.cfg.Dt*float64(time.Second)), func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (l *Live) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return l, tea.Quit
		case " ":
			l.running = !l.running
		case "r":
			l.state = l.start.Clone()
			l.t = 0
			l.failures = 0
			l.speedHist = l.speedHist[:0]
			l.cteHist = l.cteHist[:0]
		}
		return l, nil

	case TickMsg:
		if l.running {
			l.step()
		}
		return l, l.tick()
	}
	return l, nil
}

func (l *Live) step() {
	pose := mpc.Pose{X: l.state[sim.StateX], Y: l.state[sim.StateY], Yaw: l.state[sim.StatePsi]}
	target := l.route.At(l.route.ClosestIndex(pose.X, pose.Y) + l.cfg.Lookahead)

	var cmd mpc.Command
	var ok bool
	if l.cfg.RouteFit {
		cmd, ok = l.ctrl.RunStepOnRoute(pose, l.state[sim.StateV], l.route)
	} else {
		cmd, ok = l.ctrl.RunStep(pose, l.state[sim.StateV], target)
	}
	if !ok {
		l.failures++
	}
	l.last = cmd

	u := sim.Control{cmd.Throttle, cmd.Steering}
	l.state = l.integ.Step(l.plant, l.state, u, l.t, l.cfg.Dt)
	l.t += l.cfg.Dt

	fit, err := mpc.FitWaypoint(pose, target, 1)
	if err == nil {
		l.cteHist = appendCapped(l.cteHist, fit.CrossTrack)
	}
	l.speedHist = appendCapped(l.speedHist, l.state[sim.StateV])
}

func appendCapped(hist []float64, v float64) []float64 {
	hist = append(hist, v)
	if len(hist) > historyLength {
		hist = hist[1:]
	}
	return hist
}

func (l *Live) View() string {
	l.canvas.Clear()

	for i := 0; i < l.route.Len(); i++ {
		wp := l.route.At(i)
		x, y := l.toCanvas(wp.X, wp.Y)
		l.canvas.Set(x, y)
	}

	pose := mpc.Pose{X: l.state[sim.StateX], Y: l.state[sim.StateY], Yaw: l.state[sim.StatePsi]}
	vx, vy := l.toCanvas(pose.X, pose.Y)
	hx := vx + int(6*math.Cos(pose.Yaw))
	hy := vy - int(6*math.Sin(pose.Yaw))
	l.canvas.DrawLine(vx, vy, hx, hy)

	target := l.route.At(l.route.ClosestIndex(pose.X, pose.Y) + l.cfg.Lookahead)
	l.drawWaypointArrow(pose, target)

	stats := l.renderStats()
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		canvasStyle.Render(l.canvas.String()),
		statsStyle.Render(stats),
	)

	graph := ""
	if len(l.speedHist) > 2 {
		graph = graphStyle.Render(asciigraph.Plot(l.speedHist,
			asciigraph.Height(6), asciigraph.Width(90), asciigraph.Caption("speed")))
	}
	if len(l.cteHist) > 2 {
		graph += graphStyle.Render(asciigraph.Plot(l.cteHist,
			asciigraph.Height(6), asciigraph.Width(90), asciigraph.Caption("cross track error")))
	}

	return headerStyle.Render("autompc live") + "\n" + body + graph +
		helpStyle.Render("\n[space] pause  [r] reset  [q] quit")
}

// drawWaypointArrow projects the target waypoint through the front camera
// and marks it with an arrow, image coordinates scaled onto the canvas.
func (l *Live) drawWaypointArrow(pose mpc.Pose, target route.Waypoint) {
	vehicle := Transform{
		Location: Vec3{X: pose.X, Y: pose.Y, Z: pose.Z},
		Rotation: Rotation{Yaw: pose.Yaw},
	}
	pt, err := ProjectWaypoint(Vec3{X: target.X, Y: target.Y, Z: 0}, vehicle, l.cam)
	if err != nil {
		return
	}
	sx := float64(canvasWidth*2) / float64(imageWidth)
	sy := float64(canvasHeight*4) / float64(imageHeight)
	l.canvas.DrawArrow(canvasWidth, canvasHeight*4-2, int(float64(pt.X)*sx), int(float64(pt.Y)*sy))
}

func (l *Live) renderStats() string {
	row := func(label, value string) string {
		return labelStyle.Render(label) + valueStyle.Render(value) + "\n"
	}
	out := row("t", fmt.Sprintf("%.1f s", l.t))
	out += row("speed", fmt.Sprintf("%.2f", l.state[sim.StateV]))
	out += row("heading", fmt.Sprintf("%.3f rad", l.state[sim.StatePsi]))
	out += row("steering", fmt.Sprintf("%+.4f", l.last.Steering))
	out += row("throttle", fmt.Sprintf("%.4f", l.last.Throttle))
	out += row("phase", l.ctrl.Phase().String())
	if l.failures > 0 {
		out += labelStyle.Render("failed ticks") + failStyle.Render(fmt.Sprintf("%d", l.failures)) + "\n"
	}
	if !l.running {
		out += "\npaused"
	}
	return out
}
