// Package store archives closed-loop runs on disk: one directory per run
// holding metadata.json and a trajectory CSV.
package store

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/san-kum/autompc/internal/sim"
)

var trajectoryHeader = []string{"time", "x", "y", "psi", "v", "throttle", "steering"}

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// RunMetadata describes one archived closed-loop run.
type RunMetadata struct {
	ID          string             `json:"id"`
	Timestamp   time.Time          `json:"timestamp"`
	RouteFile   string             `json:"route_file"`
	TargetSpeed float64            `json:"target_speed"`
	StepsAhead  int                `json:"steps_ahead"`
	Dt          float64            `json:"dt"`
	Duration    float64            `json:"duration"`
	Failures    int                `json:"failures"`
	Metrics     map[string]float64 `json:"metrics"`
}

// Save writes the run under a timestamped directory and returns its id.
func (s *Store) Save(routeFile string, targetSpeed float64, stepsAhead int, dt, duration float64, result *sim.Result) (string, error) {
	runID := fmt.Sprintf("run_%d", time.Now().Unix())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:          runID,
		Timestamp:   time.Now(),
		RouteFile:   routeFile,
		TargetSpeed: targetSpeed,
		StepsAhead:  stepsAhead,
		Dt:          dt,
		Duration:    duration,
		Failures:    result.Failures,
		Metrics:     result.Metrics,
	}

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	if err := s.writeTrajectory(filepath.Join(runDir, "trajectory.csv"), result); err != nil {
		return "", err
	}
	return runID, nil
}

func (s *Store) writeTrajectory(path string, result *sim.Result) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	if err := w.Write(trajectoryHeader); err != nil {
		return err
	}

	for i, x := range result.States {
		row := []string{strconv.FormatFloat(result.Times[i], 'f', 6, 64)}
		for _, val := range x {
			row = append(row, strconv.FormatFloat(val, 'f', 6, 64))
		}
		// Commands trail the states by one sample: no command is issued
		// for the final state.
		if i < len(result.Commands) {
			cmd := result.Commands[i]
			row = append(row,
				strconv.FormatFloat(cmd.Throttle, 'f', 6, 64),
				strconv.FormatFloat(cmd.Steering, 'f', 6, 64))
		} else {
			row = append(row, "0", "0")
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return w.Error()
}

// List returns metadata for every readable run in the base directory.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadTrajectory reads back the states and times of an archived run.
func (s *Store) LoadTrajectory(runID string) ([]sim.State, []float64, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "trajectory.csv"))
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = len(trajectoryHeader)

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) < 2 {
		return []sim.State{}, []float64{}, nil
	}

	times := make([]float64, 0, len(records)-1)
	states := make([]sim.State, 0, len(records)-1)
	for _, record := range records[1:] {
		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return nil, nil, fmt.Errorf("store: bad time %q: %w", record[0], err)
		}
		x := make(sim.State, 4)
		for j := range x {
			x[j], err = strconv.ParseFloat(record[j+1], 64)
			if err != nil {
				return nil, nil, fmt.Errorf("store: bad state value %q: %w", record[j+1], err)
			}
		}
		times = append(times, t)
		states = append(states, x)
	}
	return states, times, nil
}
