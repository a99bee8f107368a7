package store

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/san-kum/autompc/internal/mpc"
	"github.com/san-kum/autompc/internal/sim"
)

func sampleResult() *sim.Result {
	return &sim.Result{
		Times: []float64{0, 0.1, 0.2},
		States: []sim.State{
			{0, 0, 0, 10},
			{1, 0, 0, 10.1},
			{2, 0.01, 0.001, 10.2},
		},
		Commands: []mpc.Command{
			{Steering: 0.01, Throttle: 0.5},
			{Steering: -0.02, Throttle: 0.4},
		},
		Failures: 1,
		Metrics:  map[string]float64{"cross_track_rms": 0.05},
	}
}

func TestStoreSaveLoad(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}

	result := sampleResult()
	runID, err := st.Save("lake_track.csv", 20, 10, 0.1, 0.2, result)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if runID == "" {
		t.Fatal("expected non-empty run id")
	}

	meta, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if meta.RouteFile != "lake_track.csv" {
		t.Errorf("route file = %q", meta.RouteFile)
	}
	if meta.TargetSpeed != 20 || meta.StepsAhead != 10 {
		t.Errorf("meta = %+v", meta)
	}
	if meta.Failures != 1 {
		t.Errorf("failures = %d, want 1", meta.Failures)
	}
	if meta.Metrics["cross_track_rms"] != 0.05 {
		t.Errorf("metrics = %v", meta.Metrics)
	}

	states, times, err := st.LoadTrajectory(runID)
	if err != nil {
		t.Fatalf("load trajectory: %v", err)
	}
	if len(states) != 3 || len(times) != 3 {
		t.Fatalf("got %d states, %d times", len(states), len(times))
	}
	if states[2][sim.StateV] != 10.2 {
		t.Errorf("states[2] = %v", states[2])
	}
	if times[1] != 0.1 {
		t.Errorf("times = %v", times)
	}
}

func TestStoreList(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}

	runs, err := st.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("expected empty store, got %d runs", len(runs))
	}

	if _, err := st.Save("a.csv", 15, 10, 0.1, 1, sampleResult()); err != nil {
		t.Fatalf("save: %v", err)
	}
	runs, err = st.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
}

func TestStoreListMissingDir(t *testing.T) {
	st := New("/nonexistent/autompc-store")
	runs, err := st.List()
	if err != nil {
		t.Fatalf("list on missing dir: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("got %d runs", len(runs))
	}
}

func TestExportJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportJSON(&buf, "lake_track.csv", 20, 0.1, 0.2, sampleResult()); err != nil {
		t.Fatalf("export: %v", err)
	}

	var data ExportData
	if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if data.Steps != 3 {
		t.Errorf("steps = %d, want 3", data.Steps)
	}
	if len(data.Throttle) != 2 || data.Throttle[0] != 0.5 {
		t.Errorf("throttle = %v", data.Throttle)
	}
	if data.Steering[1] != -0.02 {
		t.Errorf("steering = %v", data.Steering)
	}
}
