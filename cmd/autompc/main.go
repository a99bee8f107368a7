package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/autompc/internal/analysis"
	"github.com/san-kum/autompc/internal/config"
	"github.com/san-kum/autompc/internal/mpc"
	"github.com/san-kum/autompc/internal/optim"
	"github.com/san-kum/autompc/internal/route"
	"github.com/san-kum/autompc/internal/sim"
	"github.com/san-kum/autompc/internal/store"
	"github.com/san-kum/autompc/internal/viz"
)

var (
	dataDir    string
	configFile string
	verbose    bool

	routeFile   string
	targetSpeed float64
	stepsAhead  int
	dt          float64
	duration    float64
	lookahead   int
	routeFit    bool
	maxThrottle float64
	maxSteering float64
	tolerance   float64
	maxIter     int

	startX     float64
	startY     float64
	startYaw   float64
	startSpeed float64

	exportPath string

	// solve flags
	waypointX float64
	waypointY float64
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "autompc",
		Short: "model predictive path-following controller",
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".autompc", "data directory")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	runCmd := &cobra.Command{
		Use:   "run [route.csv]",
		Short: "run closed-loop simulation along a route",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimulation,
	}
	addControlFlags(runCmd)
	runCmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "duration")
	runCmd.Flags().IntVar(&lookahead, "lookahead", config.DefaultLookahead, "target waypoint offset past the nearest")
	runCmd.Flags().BoolVar(&routeFit, "route-fit", false, "fit the reference curve over several waypoints")
	runCmd.Flags().StringVar(&exportPath, "export", "", "also write the run as JSON to this path")

	liveCmd := &cobra.Command{
		Use:   "live [route.csv]",
		Short: "run the closed loop with live visualization",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	addControlFlags(liveCmd)
	liveCmd.Flags().IntVar(&lookahead, "lookahead", config.DefaultLookahead, "target waypoint offset past the nearest")
	liveCmd.Flags().BoolVar(&routeFit, "route-fit", false, "fit the reference curve over several waypoints")

	solveCmd := &cobra.Command{
		Use:   "solve",
		Short: "run a single control tick against one waypoint",
		RunE:  solveTick,
	}
	addControlFlags(solveCmd)
	solveCmd.Flags().Float64Var(&waypointX, "wx", 10, "waypoint x")
	solveCmd.Flags().Float64Var(&waypointY, "wy", 0, "waypoint y")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list archived runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot an archived run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "print run metadata as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "check an archived run for steering oscillation",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}

	tuneCmd := &cobra.Command{
		Use:   "tune [route.csv]",
		Short: "grid-search tracking weights over closed-loop runs",
		Args:  cobra.MaximumNArgs(1),
		RunE:  tuneWeights,
	}
	addControlFlags(tuneCmd)
	tuneCmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "duration per grid point")
	tuneCmd.Flags().IntVar(&lookahead, "lookahead", config.DefaultLookahead, "target waypoint offset past the nearest")

	rootCmd.AddCommand(runCmd, liveCmd, solveCmd, listCmd, plotCmd, exportCmd, analyzeCmd, tuneCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addControlFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&targetSpeed, "speed", config.DefaultTargetSpeed, "target speed")
	cmd.Flags().IntVar(&stepsAhead, "horizon", config.DefaultStepsAhead, "prediction horizon (steps)")
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "timestep")
	cmd.Flags().Float64Var(&maxThrottle, "max-throttle", config.DefaultMaxThrottle, "throttle upper bound")
	cmd.Flags().Float64Var(&maxSteering, "max-steering", config.DefaultMaxSteering, "steering bound (symmetric)")
	cmd.Flags().Float64Var(&tolerance, "tol", config.DefaultTolerance, "solver tolerance")
	cmd.Flags().IntVar(&maxIter, "max-iter", config.DefaultMaxIter, "solver iteration cap")
	cmd.Flags().Float64Var(&startX, "x", 0, "initial x")
	cmd.Flags().Float64Var(&startY, "y", 0, "initial y")
	cmd.Flags().Float64Var(&startYaw, "yaw", 0, "initial heading")
	cmd.Flags().Float64Var(&startSpeed, "v", 0, "initial speed")
}

// loadConfig resolves the config file, then lets changed CLI flags win.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if cmd.Flags().Changed("speed") {
		cfg.TargetSpeed = targetSpeed
	}
	if cmd.Flags().Changed("horizon") {
		cfg.StepsAhead = stepsAhead
	}
	if cmd.Flags().Changed("dt") {
		cfg.Dt = dt
	}
	if cmd.Flags().Changed("max-throttle") {
		cfg.MaxThrottle = maxThrottle
	}
	if cmd.Flags().Changed("max-steering") {
		cfg.MaxSteering = maxSteering
	}
	if cmd.Flags().Changed("tol") {
		cfg.Tolerance = tolerance
	}
	if cmd.Flags().Changed("max-iter") {
		cfg.MaxIter = maxIter
	}
	if cmd.Flags().Changed("time") {
		cfg.Sim.Duration = duration
	}
	if cmd.Flags().Changed("lookahead") {
		cfg.Sim.Lookahead = lookahead
	}
	if cmd.Flags().Changed("route-fit") {
		cfg.Sim.RouteFit = routeFit
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newController(cfg *config.Config) (*mpc.Controller, error) {
	ctrl, err := mpc.New(cfg.Options())
	if err != nil {
		return nil, err
	}
	if verbose {
		ctrl.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}
	return ctrl, nil
}

func resolveRoute(cfg *config.Config, args []string) (*route.Route, string, error) {
	path := cfg.RouteFile
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		return nil, "", fmt.Errorf("no route file: pass one as an argument or set route_file in the config")
	}
	r, err := route.Load(path)
	if err != nil {
		return nil, "", err
	}
	return r, path, nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	r, routePath, err := resolveRoute(cfg, args)
	if err != nil {
		return err
	}
	ctrl, err := newController(cfg)
	if err != nil {
		return err
	}

	st := store.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	s := sim.New(sim.NewBicycle(cfg.Wheelbase), sim.NewRK4(), ctrl, r)
	s.AddMetric(sim.NewCrossTrackRMS(r))
	s.AddMetric(sim.NewSpeedError(cfg.TargetSpeed))
	s.AddMetric(sim.NewControlEffort())

	simCfg := sim.Config{
		Dt:            cfg.Dt,
		Duration:      cfg.Sim.Duration,
		Lookahead:     cfg.Sim.Lookahead,
		RouteFit:      cfg.Sim.RouteFit,
		ValidateState: true,
	}
	start := mpc.Pose{X: startX, Y: startY, Yaw: startYaw}

	fmt.Printf("running %s for %.1fs...\n", routePath, simCfg.Duration)
	wall := time.Now()
	result, err := s.Run(context.Background(), start, startSpeed, simCfg)
	if err != nil {
		return err
	}
	elapsed := time.Since(wall)

	runID, err := st.Save(routePath, cfg.TargetSpeed, cfg.StepsAhead, cfg.Dt, simCfg.Duration, result)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("steps: %d\n", len(result.Commands))
	if result.Failures > 0 {
		fmt.Printf("failed ticks: %d\n", result.Failures)
	}
	fmt.Println("\nmetrics:")
	for name, val := range result.Metrics {
		fmt.Printf("  %s: %.6f\n", name, val)
	}

	if exportPath != "" {
		if err := store.ExportJSONFile(exportPath, routePath, cfg.TargetSpeed, cfg.Dt, simCfg.Duration, result); err != nil {
			return err
		}
		fmt.Printf("exported to %s\n", exportPath)
	}
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	r, _, err := resolveRoute(cfg, args)
	if err != nil {
		return err
	}
	ctrl, err := newController(cfg)
	if err != nil {
		return err
	}

	simCfg := sim.Config{
		Dt:        cfg.Dt,
		Lookahead: cfg.Sim.Lookahead,
		RouteFit:  cfg.Sim.RouteFit,
	}
	start := mpc.Pose{X: startX, Y: startY, Yaw: startYaw}

	m := viz.NewLive(ctrl, r, start, startSpeed, cfg.Wheelbase, simCfg)
	p := tea.NewProgram(m)
	if _, err := p.Run(); err != nil {
		return err
	}
	return nil
}

func solveTick(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctrl, err := newController(cfg)
	if err != nil {
		return err
	}

	pose := mpc.Pose{X: startX, Y: startY, Yaw: startYaw}
	wp := route.Waypoint{X: waypointX, Y: waypointY}
	command, ok := ctrl.RunStep(pose, startSpeed, wp)
	if !ok {
		return fmt.Errorf("solver did not converge")
	}
	fmt.Printf("steering: %+.6f\n", command.Steering)
	fmt.Printf("throttle: %.6f\n", command.Throttle)
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := store.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tROUTE\tTIME\tDURATION\tDT\tSPEED\tFAILED")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2fs\t%.4fs\t%.1f\t%d\n",
			run.ID,
			run.RouteFile,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Dt,
			run.TargetSpeed,
			run.Failures,
		)
	}
	return w.Flush()
}

var plotCaptions = [4]string{"x position", "y position", "heading", "speed"}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := store.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	states, _, err := st.LoadTrajectory(runID)
	if err != nil {
		return err
	}
	if len(states) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("route: %s\n", meta.RouteFile)
	fmt.Printf("samples: %d\n\n", len(states))

	for varIdx, caption := range plotCaptions {
		data := make([]float64, len(states))
		for i := range states {
			data[i] = states[i][varIdx]
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(caption),
		)
		fmt.Println(graph)
		fmt.Println()
	}

	for name, val := range meta.Metrics {
		fmt.Printf("%s: %.6f\n", name, val)
	}
	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := store.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	states, _, err := st.LoadTrajectory(runID)
	if err != nil {
		return err
	}
	if len(states) == 0 {
		return fmt.Errorf("no data")
	}

	fmt.Printf("oscillation analysis: %s\n", meta.ID)
	fmt.Printf("route: %s\n\n", meta.RouteFile)

	heading := make([]float64, len(states))
	for i := range states {
		heading[i] = states[i][sim.StatePsi]
	}

	ps := analysis.PowerSpectrum(heading)
	graph := asciigraph.Plot(ps[:len(ps)/4],
		asciigraph.Height(15),
		asciigraph.Width(80),
		asciigraph.Caption("heading power spectrum"),
	)
	fmt.Println(graph)
	fmt.Println()

	osc := analysis.DominantOscillation(heading, meta.Dt)
	fmt.Printf("dominant frequency: %.3f hz\n", osc.Frequency)
	if osc.Period > 0 {
		fmt.Printf("period: %.3f s\n", osc.Period)
	}
	return nil
}

// tuneGrid is the weight sweep: tracking vs smoothing, log-spaced.
var tuneGrid = struct {
	names  []string
	ranges [][]float64
}{
	names: []string{"cte", "steer_smooth"},
	ranges: [][]float64{
		{10, 100, 1000},
		{5, 50, 500},
	},
}

func tuneWeights(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	r, routePath, err := resolveRoute(cfg, args)
	if err != nil {
		return err
	}

	search := optim.NewGridSearch(tuneGrid.names, tuneGrid.ranges)
	fmt.Printf("tuning over %d grid points on %s...\n", search.Size(), routePath)

	simCfg := sim.Config{
		Dt:            cfg.Dt,
		Duration:      cfg.Sim.Duration,
		Lookahead:     cfg.Sim.Lookahead,
		RouteFit:      cfg.Sim.RouteFit,
		ValidateState: true,
	}
	start := mpc.Pose{X: startX, Y: startY, Yaw: startYaw}

	eval := func(ctx context.Context, params map[string]float64) (float64, error) {
		trial := *cfg
		trial.Weights.CrossTrack = params["cte"]
		trial.Weights.SteerSmooth = params["steer_smooth"]

		ctrl, err := mpc.New(trial.Options())
		if err != nil {
			return 0, err
		}
		s := sim.New(sim.NewBicycle(trial.Wheelbase), sim.NewRK4(), ctrl, r)
		rms := sim.NewCrossTrackRMS(r)
		s.AddMetric(rms)

		result, err := s.Run(ctx, start, startSpeed, simCfg)
		if err != nil {
			return 0, err
		}
		if result.Failures > 0 {
			return 0, fmt.Errorf("%d failed ticks", result.Failures)
		}
		return rms.Value(), nil
	}

	best, score, err := search.Search(context.Background(), eval)
	if err != nil {
		return err
	}

	fmt.Println("\nbest weights:")
	for name, val := range best {
		fmt.Printf("  %s: %g\n", name, val)
	}
	fmt.Printf("cross track rms: %.6f\n", score)
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := store.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}
