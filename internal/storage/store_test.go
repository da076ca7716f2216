package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/san-kum/driftsim/internal/drift"
	"github.com/san-kum/driftsim/internal/probe"
	"github.com/san-kum/driftsim/internal/vecmath"
)

func runScenario(t *testing.T, strategies ...string) *probe.Result {
	t.Helper()
	result, err := probe.Run(context.Background(), probe.Scenario{
		Name:       "test",
		Direction:  vecmath.New(1, 2, 3),
		Scale:      1.0 / 60.0,
		Steps:      1000,
		Samples:    4,
		Strategies: strategies,
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	return result
}

func TestStoreSaveLoad(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	result := runScenario(t)
	runID, err := st.Save(result, "")
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if runID == "" {
		t.Error("expected non-empty run id")
	}

	meta, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if meta.Name != "test" {
		t.Errorf("expected name 'test', got '%s'", meta.Name)
	}
	if meta.TotalSteps() != 1000 {
		t.Errorf("expected 1000 steps, got %d", meta.TotalSteps())
	}
	if diff := cmp.Diff([]string{"kahan", "naive", "neumaier"}, meta.Strategies); diff != "" {
		t.Errorf("strategies (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(result.Metrics, meta.Metrics); diff != "" {
		t.Errorf("metrics (-want +got):\n%s", diff)
	}
	if meta.Digest != result.Digest.String() {
		t.Errorf("digest %s, want %s", meta.Digest, result.Digest)
	}
	if got := meta.Final[probe.Neumaier].Vec3(); !got.Equal(result.Final[probe.Neumaier]) {
		t.Errorf("final neumaier %v, want %v", got, result.Final[probe.Neumaier])
	}

	series, err := st.LoadSamples(runID)
	if err != nil {
		t.Fatalf("load samples failed: %v", err)
	}
	if diff := cmp.Diff([]int{250, 500, 750, 1000}, series.Steps); diff != "" {
		t.Errorf("steps (-want +got):\n%s", diff)
	}
	for _, name := range []string{"naive", "kahan", "neumaier"} {
		if len(series.Errors[name]) != 4 {
			t.Errorf("%s: expected 4 points, got %d", name, len(series.Errors[name]))
		}
	}
	if got := series.Errors["neumaier"][3]; got != result.Samples[3].AbsError["neumaier"] {
		t.Errorf("csv lost precision: %g vs %g", got, result.Samples[3].AbsError["neumaier"])
	}
}

func TestStoreCheckpoint(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatal(err)
	}

	result := runScenario(t, probe.Neumaier)
	runID, err := st.Save(result, "")
	if err != nil {
		t.Fatal(err)
	}

	acc, err := st.LoadCheckpoint(runID)
	if err != nil {
		t.Fatalf("load checkpoint: %v", err)
	}
	if drift.HashState(acc) != result.StateDigest {
		t.Error("checkpoint state differs from run state")
	}

	resolved, err := st.LoadResolved(runID)
	if err != nil {
		t.Fatalf("load resolved: %v", err)
	}
	if drift.Hash(resolved) != result.Digest {
		t.Error("resolved vector differs from run digest")
	}
}

func TestStoreNoCheckpointWithoutNeumaier(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatal(err)
	}

	runID, err := st.Save(runScenario(t, probe.Naive), "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := st.LoadCheckpoint(runID); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestStoreList(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	runs, err := st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected 0 runs, got %d", len(runs))
	}

	first, _ := st.Save(runScenario(t), "")
	second, _ := st.Save(runScenario(t), first)

	runs, err = st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[1].ID != second || runs[1].Parent != first {
		t.Errorf("unexpected order or parent: %+v", runs)
	}
}

func TestStoreListMissingDir(t *testing.T) {
	st := New(filepath.Join(t.TempDir(), "absent"))
	runs, err := st.List()
	if err != nil || len(runs) != 0 {
		t.Errorf("List() = %v, %v", runs, err)
	}
}

func TestStoreNotFound(t *testing.T) {
	st := New(t.TempDir())
	if _, err := st.Load("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load err = %v", err)
	}
	if _, err := st.LoadSamples("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("LoadSamples err = %v", err)
	}
}

func TestStoreFileStructure(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	runID, err := st.Save(runScenario(t), "")
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	runDir := filepath.Join(tmpDir, runID)
	for _, name := range []string{"metadata.json", "samples.csv", "resolved.bin", "checkpoint.bin"} {
		if _, err := os.Stat(filepath.Join(runDir, name)); os.IsNotExist(err) {
			t.Errorf("%s not created", name)
		}
	}

	info, err := os.Stat(filepath.Join(runDir, "checkpoint.bin"))
	if err == nil && info.Size() != drift.CheckpointSize {
		t.Errorf("checkpoint.bin is %d bytes", info.Size())
	}
}
