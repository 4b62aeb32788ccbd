package gate

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/nvandessel/qsim/internal/backend"
	"github.com/nvandessel/qsim/internal/tensor"
)

func testEnv(t *testing.T, nqubits int, density bool) *Env {
	t.Helper()
	b, err := backend.Open("naive", backend.Options{})
	if err != nil {
		t.Fatalf("backend.Open: %v", err)
	}
	return &Env{
		Backend: b,
		NQubits: nqubits,
		Density: density,
		RNG:     rand.New(rand.NewPCG(1, 2)),
	}
}

func TestPrepare(t *testing.T) {
	tests := []struct {
		name    string
		gate    Gate
		first   int
		second  int
		wantErr error
	}{
		{name: "same size twice", gate: H(0), first: 2, second: 2},
		{name: "size mismatch", gate: H(0), first: 2, second: 3, wantErr: ErrSizeMismatch},
		{name: "cnot mismatch", gate: CNOT(0, 1), first: 3, second: 2, wantErr: ErrSizeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.gate.Prepare(tt.first); err != nil {
				t.Fatalf("first Prepare(%d): %v", tt.first, err)
			}
			if !tt.gate.Prepared() {
				t.Fatal("gate not prepared after Prepare")
			}
			err := tt.gate.Prepare(tt.second)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("second Prepare(%d) error = %v, want %v", tt.second, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("second Prepare(%d): %v", tt.second, err)
			}
		})
	}
}

func TestPrepareRangeCheck(t *testing.T) {
	if err := X(3).Prepare(2); err == nil {
		t.Error("X(3).Prepare(2) expected error")
	}
	if err := CNOT(0, 5).Prepare(3); err == nil {
		t.Error("CNOT(0,5).Prepare(3) expected error")
	}
}

func TestQubitsOrder(t *testing.T) {
	g := CNOT(2, 0)
	got := g.Qubits()
	if len(got) != 2 || got[0] != 2 || got[1] != 0 {
		t.Errorf("Qubits() = %v, want [2 0] (controls first)", got)
	}
}

func TestExpandedMatrixCNOT(t *testing.T) {
	g := CNOT(0, 1)
	m, err := g.ExpandedMatrix()
	if err != nil {
		t.Fatalf("ExpandedMatrix: %v", err)
	}
	want, _ := tensor.FromSlice([]complex128{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 0, 1,
		0, 0, 1, 0,
	}, 4, 4)
	if !tensor.AllClose(m, want, 1e-12) {
		t.Errorf("CNOT expanded = %v, want %v", m.Data(), want.Data())
	}
}

func TestNewUnitaryShapeCheck(t *testing.T) {
	m := tensor.Identity(4)
	if _, err := NewUnitary("u", m, 0); err == nil {
		t.Error("4x4 matrix on one target expected error")
	}
	if _, err := NewUnitary("u", m, 0, 1); err != nil {
		t.Errorf("4x4 matrix on two targets: %v", err)
	}
}

func TestRotationParameter(t *testing.T) {
	g := RX(0, math.Pi)
	if g.Parameter() != math.Pi {
		t.Errorf("Parameter() = %v, want pi", g.Parameter())
	}

	cp := g.CopyParametrized()
	cp.SetParameter(0)
	if g.Parameter() != math.Pi {
		t.Error("copy parameter change leaked into original")
	}

	// RX(pi) maps |0> to -i|1>.
	env := testEnv(t, 1, false)
	st, _ := env.Backend.InitialState(1, false)
	if err := g.Prepare(1); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	out, err := g.Apply(env, st)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	want, _ := tensor.FromSlice([]complex128{0, -1i}, 2)
	if !tensor.AllClose(out, want, 1e-9) {
		t.Errorf("RX(pi)|0> = %v, want %v", out.Data(), want.Data())
	}
}

func TestTrainableFlag(t *testing.T) {
	g := RZ(0, 0.5)
	if !g.Trainable() {
		t.Error("rotations default to trainable")
	}
	if g.SetTrainable(false).Trainable() {
		t.Error("SetTrainable(false) did not stick")
	}
}

func TestPauliNoiseValidation(t *testing.T) {
	tests := []struct {
		name       string
		px, py, pz float64
		wantErr    bool
	}{
		{name: "valid", px: 0.1, py: 0.1, pz: 0.1},
		{name: "zero channel", px: 0, py: 0, pz: 0},
		{name: "negative", px: -0.1, wantErr: true},
		{name: "over one", px: 0.5, py: 0.4, pz: 0.3, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPauliNoise(0, tt.px, tt.py, tt.pz)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewPauliNoise(%v,%v,%v) error = %v, wantErr %v", tt.px, tt.py, tt.pz, err, tt.wantErr)
			}
		})
	}

	if _, err := NewDepolarizing(0, 1.5); err == nil {
		t.Error("NewDepolarizing(1.5) expected error")
	}
}

func TestChannelSampledBranches(t *testing.T) {
	// px=1 channel always applies X.
	ch, err := NewPauliNoise(0, 1, 0, 0)
	if err != nil {
		t.Fatalf("NewPauliNoise: %v", err)
	}
	env := testEnv(t, 1, false)
	if err := ch.Prepare(1); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	st, _ := env.Backend.InitialState(1, false)
	out, err := ch.Apply(env, st)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	want, _ := tensor.FromSlice([]complex128{0, 1}, 2)
	if !tensor.AllClose(out, want, 1e-12) {
		t.Errorf("X-only channel gave %v, want |1>", out.Data())
	}

	// Zero channel is the identity for any draw.
	id, _ := NewPauliNoise(0, 0, 0, 0)
	if err := id.Prepare(1); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	out, err = id.Apply(env, st)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !tensor.AllClose(out, st, 1e-12) {
		t.Errorf("identity channel changed the state: %v", out.Data())
	}
}

func TestChannelWithoutRNG(t *testing.T) {
	ch, _ := NewPauliNoise(0, 0.5, 0, 0)
	env := testEnv(t, 1, false)
	env.RNG = nil
	st, _ := env.Backend.InitialState(1, false)
	if err := ch.Prepare(1); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if _, err := ch.Apply(env, st); err == nil {
		t.Error("channel without RNG expected error")
	}
}

func TestChannelDensityLinearMap(t *testing.T) {
	// Bit-flip channel with p=0.25 on |0><0| gives diag(0.75, 0.25).
	ch, _ := NewPauliNoise(0, 0.25, 0, 0)
	env := testEnv(t, 1, true)
	if err := ch.Prepare(1); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	rho, _ := env.Backend.InitialState(1, true)
	out, err := ch.Apply(env, rho)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	want, _ := tensor.FromSlice([]complex128{0.75, 0, 0, 0.25}, 2, 2)
	if !tensor.AllClose(out, want, 1e-12) {
		t.Errorf("channel on |0><0| = %v, want %v", out.Data(), want.Data())
	}
}

func TestMeasure(t *testing.T) {
	if _, err := NewMeasure("out"); err == nil {
		t.Error("measurement without qubits expected error")
	}
	if _, err := NewMeasure("out", 0, 0); err == nil {
		t.Error("duplicate measured qubit expected error")
	}

	m, err := NewMeasure("a", 0, 1)
	if err != nil {
		t.Fatalf("NewMeasure: %v", err)
	}
	other, _ := NewMeasure("b", 2)
	if err := m.Absorb(other); err != nil {
		t.Fatalf("Absorb: %v", err)
	}
	if got := m.Targets(); len(got) != 3 || got[2] != 2 {
		t.Errorf("Targets() after absorb = %v, want [0 1 2]", got)
	}

	overlap, _ := NewMeasure("c", 1)
	if err := m.Absorb(overlap); err == nil {
		t.Error("absorbing overlapping register expected error")
	}
}

func TestCallbackGate(t *testing.T) {
	cb := &ProbabilityCallback{Qubit: 0}
	g := NewCallbackGate(cb)
	env := testEnv(t, 1, false)
	if err := g.Prepare(1); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	st, _ := tensor.FromSlice([]complex128{0, 1}, 2)
	out, err := g.Apply(env, st)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !tensor.AllClose(out, st, 1e-12) {
		t.Error("callback gate changed the state")
	}
	hist := cb.History()
	if len(hist) != 1 || math.Abs(hist[0]-1) > 1e-12 {
		t.Errorf("History() = %v, want [1]", hist)
	}
}

func TestNormCallback(t *testing.T) {
	cb := &NormCallback{}
	st, _ := tensor.FromSlice([]complex128{1, 0}, 2)
	v, err := cb.Compute(st, false)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if math.Abs(v-1) > 1e-12 {
		t.Errorf("norm of |0> = %v, want 1", v)
	}
}
