package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/autompc/internal/mpc"
)

const (
	DefaultTargetSpeed = 20.0
	DefaultStepsAhead  = 10
	DefaultDt          = 0.1
	DefaultMaxThrottle = 1.0
	DefaultMaxSteering = 1.0
	DefaultWheelbase   = 2.5
	DefaultPolyDegree  = 3
	DefaultPolySpacing = 30
	DefaultTolerance   = 1.0
	DefaultMaxIter     = 50
	DefaultDuration    = 20.0
	DefaultLookahead   = 10
)

// Config is the yaml configuration surface of the controller and the
// closed-loop runner.
type Config struct {
	RouteFile   string        `yaml:"route_file"`
	TargetSpeed float64       `yaml:"target_speed"`
	StepsAhead  int           `yaml:"steps_ahead"`
	Dt          float64       `yaml:"dt"`
	MaxThrottle float64       `yaml:"max_throttle"`
	MaxSteering float64       `yaml:"max_steering"`
	Wheelbase   float64       `yaml:"wheelbase"`
	PolyDegree  int           `yaml:"poly_degree"`
	PolySpacing int           `yaml:"poly_spacing"`
	Tolerance   float64       `yaml:"tolerance"`
	MaxIter     int           `yaml:"max_iter"`
	Weights     WeightsConfig `yaml:"weights"`
	Sim         SimConfig     `yaml:"sim"`
}

// WeightsConfig mirrors mpc.Weights with yaml tags.
type WeightsConfig struct {
	CrossTrack     float64 `yaml:"cte"`
	Heading        float64 `yaml:"heading"`
	Speed          float64 `yaml:"speed"`
	Throttle       float64 `yaml:"throttle"`
	Steer          float64 `yaml:"steer"`
	ThrottleSmooth float64 `yaml:"throttle_smooth"`
	SteerSmooth    float64 `yaml:"steer_smooth"`
}

// SimConfig configures the closed-loop runner, not the controller itself.
type SimConfig struct {
	Duration  float64 `yaml:"duration"`
	Lookahead int     `yaml:"lookahead"`
	RouteFit  bool    `yaml:"route_fit"`
}

func DefaultConfig() *Config {
	w := mpc.DefaultWeights()
	return &Config{
		TargetSpeed: DefaultTargetSpeed,
		StepsAhead:  DefaultStepsAhead,
		Dt:          DefaultDt,
		MaxThrottle: DefaultMaxThrottle,
		MaxSteering: DefaultMaxSteering,
		Wheelbase:   DefaultWheelbase,
		PolyDegree:  DefaultPolyDegree,
		PolySpacing: DefaultPolySpacing,
		Tolerance:   DefaultTolerance,
		MaxIter:     DefaultMaxIter,
		Weights: WeightsConfig{
			CrossTrack:     w.CrossTrack,
			Heading:        w.Heading,
			Speed:          w.Speed,
			Throttle:       w.Throttle,
			Steer:          w.Steer,
			ThrottleSmooth: w.ThrottleSmooth,
			SteerSmooth:    w.SteerSmooth,
		},
		Sim: SimConfig{
			Duration:  DefaultDuration,
			Lookahead: DefaultLookahead,
		},
	}
}

// Load reads a yaml file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the runner-level settings; the controller settings are
// validated again by mpc.New.
func (c *Config) Validate() error {
	if c.Sim.Duration <= 0 {
		return fmt.Errorf("config: sim duration must be positive, got %f", c.Sim.Duration)
	}
	if c.Sim.Lookahead < 0 {
		return fmt.Errorf("config: lookahead must not be negative, got %d", c.Sim.Lookahead)
	}
	if _, err := mpc.NewModel(c.Options()); err != nil {
		return err
	}
	return nil
}

// Options maps the configuration onto controller options.
func (c *Config) Options() mpc.Options {
	return mpc.Options{
		TargetSpeed: c.TargetSpeed,
		StepsAhead:  c.StepsAhead,
		Dt:          c.Dt,
		MaxThrottle: c.MaxThrottle,
		MaxSteering: c.MaxSteering,
		Wheelbase:   c.Wheelbase,
		PolyDegree:  c.PolyDegree,
		PolySpacing: c.PolySpacing,
		Tolerance:   c.Tolerance,
		MaxIter:     c.MaxIter,
		Weights: mpc.Weights{
			CrossTrack:     c.Weights.CrossTrack,
			Heading:        c.Weights.Heading,
			Speed:          c.Weights.Speed,
			Throttle:       c.Weights.Throttle,
			Steer:          c.Weights.Steer,
			ThrottleSmooth: c.Weights.ThrottleSmooth,
			SteerSmooth:    c.Weights.SteerSmooth,
		},
	}
}
