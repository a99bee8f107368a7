package store

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/autompc/internal/sim"
)

// ExportData is the flat JSON view of a run, for piping into external
// plotting tools.
type ExportData struct {
	RouteFile   string             `json:"route_file"`
	TargetSpeed float64            `json:"target_speed"`
	Dt          float64            `json:"dt"`
	Duration    float64            `json:"duration"`
	Steps       int                `json:"steps"`
	Failures    int                `json:"failures"`
	Times       []float64          `json:"times"`
	States      [][]float64        `json:"states"`
	Throttle    []float64          `json:"throttle"`
	Steering    []float64          `json:"steering"`
	Metrics     map[string]float64 `json:"metrics"`
}

func exportData(routeFile string, targetSpeed, dt, duration float64, result *sim.Result) ExportData {
	data := ExportData{
		RouteFile:   routeFile,
		TargetSpeed: targetSpeed,
		Dt:          dt,
		Duration:    duration,
		Steps:       len(result.Times),
		Failures:    result.Failures,
		Times:       result.Times,
		States:      make([][]float64, len(result.States)),
		Throttle:    make([]float64, len(result.Commands)),
		Steering:    make([]float64, len(result.Commands)),
		Metrics:     result.Metrics,
	}
	for i, s := range result.States {
		data.States[i] = s
	}
	for i, c := range result.Commands {
		data.Throttle[i] = c.Throttle
		data.Steering[i] = c.Steering
	}
	return data
}

// ExportJSON writes the run as indented JSON to the given writer.
func ExportJSON(w io.Writer, routeFile string, targetSpeed, dt, duration float64, result *sim.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(exportData(routeFile, targetSpeed, dt, duration, result))
}

// ExportJSONFile writes the run as indented JSON to a file.
func ExportJSONFile(path, routeFile string, targetSpeed, dt, duration float64, result *sim.Result) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return ExportJSON(file, routeFile, targetSpeed, dt, duration, result)
}
