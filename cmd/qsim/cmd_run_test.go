package main

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/nvandessel/qsim/internal/store"
)

func TestRunCmdSampled(t *testing.T) {
	isolateHome(t)
	path := writeCircuitFile(t, bellSource)

	out, err := runCommand(t, newRunCmd(), "run", path, "--shots", "200", "--no-store")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !strings.Contains(out, "200 shots") {
		t.Errorf("output missing shot count:\n%s", out)
	}
	// A Bell state only produces correlated outcomes
	if strings.Contains(out, "|01>") || strings.Contains(out, "|10>") {
		t.Errorf("unexpected uncorrelated outcome:\n%s", out)
	}
	if !strings.Contains(out, "|00>") || !strings.Contains(out, "|11>") {
		t.Errorf("missing expected outcomes:\n%s", out)
	}
}

func TestRunCmdState(t *testing.T) {
	isolateHome(t)
	path := writeCircuitFile(t, "nqubits: 1\ngates:\n  - {gate: x, targets: [0]}\n")

	out, err := runCommand(t, newRunCmd(), "run", path, "--no-store")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !strings.Contains(out, "|1>") {
		t.Errorf("expected |1> amplitude in output:\n%s", out)
	}
	if strings.Contains(out, "|0>") {
		t.Errorf("zero amplitude should be omitted:\n%s", out)
	}
}

func TestRunCmdJSON(t *testing.T) {
	isolateHome(t)
	path := writeCircuitFile(t, bellSource)

	out, err := runCommand(t, newRunCmd(), "run", path, "--shots", "100", "--no-store", "--json")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	var got struct {
		NQubits     int            `json:"nqubits"`
		Shots       int            `json:"shots"`
		Frequencies map[string]int `json:"frequencies"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON output %q: %v", out, err)
	}
	if got.NQubits != 2 || got.Shots != 100 {
		t.Errorf("nqubits=%d shots=%d, want 2 and 100", got.NQubits, got.Shots)
	}
	total := 0
	for _, n := range got.Frequencies {
		total += n
	}
	if total != 100 {
		t.Errorf("frequencies sum to %d, want 100", total)
	}
}

func TestRunCmdPersists(t *testing.T) {
	isolateHome(t)
	path := writeCircuitFile(t, bellSource)

	if _, err := runCommand(t, newRunCmd(), "run", path, "--shots", "50"); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	s, err := store.Open(storePathForTest(t))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer s.Close()
	runs, err := s.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d stored runs, want 1", len(runs))
	}
	if runs[0].NShots != 50 || runs[0].NQubits != 2 {
		t.Errorf("stored run = %+v", runs[0])
	}
}

func TestRunCmdNoStoreSkipsPersistence(t *testing.T) {
	isolateHome(t)
	path := writeCircuitFile(t, bellSource)

	if _, err := runCommand(t, newRunCmd(), "run", path, "--shots", "10", "--no-store"); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	s, err := store.Open(storePathForTest(t))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer s.Close()
	runs, err := s.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("got %d stored runs, want 0", len(runs))
	}
}

func TestRunCmdFuseFlag(t *testing.T) {
	isolateHome(t)
	path := writeCircuitFile(t, bellSource)

	out, err := runCommand(t, newRunCmd(), "run", path, "--shots", "100", "--fuse", "--no-store")
	if err != nil {
		t.Fatalf("run --fuse failed: %v", err)
	}
	if !strings.Contains(out, "|00>") || !strings.Contains(out, "|11>") {
		t.Errorf("fused run lost Bell correlations:\n%s", out)
	}
}

func TestRunCmdSeedDeterminism(t *testing.T) {
	isolateHome(t)
	path := writeCircuitFile(t, bellSource)

	first, err := runCommand(t, newRunCmd(), "run", path, "--shots", "64", "--seed", "99", "--no-store")
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	second, err := runCommand(t, newRunCmd(), "run", path, "--shots", "64", "--seed", "99", "--no-store")
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if stripTimings(first) != stripTimings(second) {
		t.Errorf("same seed produced different output:\n%s\nvs\n%s", first, second)
	}
}

func TestRunCmdMissingFile(t *testing.T) {
	isolateHome(t)
	if _, err := runCommand(t, newRunCmd(), "run", "does-not-exist.yaml"); err == nil {
		t.Fatal("expected error for missing circuit file")
	}
}

func TestRunCmdBadEngine(t *testing.T) {
	isolateHome(t)
	path := writeCircuitFile(t, bellSource)
	if _, err := runCommand(t, newRunCmd(), "run", path, "--engine", "gpu"); err == nil {
		t.Fatal("expected error for unknown engine")
	}
}

// stripTimings drops the elapsed-time line so deterministic output can
// be compared across runs.
func stripTimings(out string) string {
	lines := strings.Split(out, "\n")
	kept := lines[:0]
	for _, l := range lines {
		if strings.Contains(l, "shots in") {
			continue
		}
		kept = append(kept, l)
	}
	return strings.Join(kept, "\n")
}
