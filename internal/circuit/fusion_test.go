package circuit

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/nvandessel/qsim/internal/gate"
	"github.com/nvandessel/qsim/internal/tensor"
)

func randomState(rng *rand.Rand, nqubits int) *tensor.Tensor {
	dim := 1 << nqubits
	data := make([]complex128, dim)
	var norm float64
	for i := range data {
		data[i] = complex(rng.Float64()-0.5, rng.Float64()-0.5)
		norm += real(data[i])*real(data[i]) + imag(data[i])*imag(data[i])
	}
	scale := complex(1/math.Sqrt(norm), 0)
	for i := range data {
		data[i] *= scale
	}
	st, _ := tensor.FromSlice(data, dim)
	return st
}

func randomGate(rng *rand.Rand, nqubits int) gate.Gate {
	q := rng.IntN(nqubits)
	q2 := rng.IntN(nqubits)
	for q2 == q {
		q2 = rng.IntN(nqubits)
	}
	switch rng.IntN(10) {
	case 0:
		return gate.H(q)
	case 1:
		return gate.X(q)
	case 2:
		return gate.Y(q)
	case 3:
		return gate.Z(q)
	case 4:
		return gate.S(q)
	case 5:
		return gate.T(q)
	case 6:
		return gate.RX(q, rng.Float64()*2*math.Pi)
	case 7:
		return gate.RZ(q, rng.Float64()*2*math.Pi)
	case 8:
		return gate.CNOT(q, q2)
	default:
		return gate.CZ(q, q2)
	}
}

func TestFusionEquivalenceRandomCircuits(t *testing.T) {
	b := testBackend(t)
	rng := rand.New(rand.NewPCG(2024, 1))

	for trial := 0; trial < 10; trial++ {
		nqubits := 2 + rng.IntN(3)
		c := mustCircuit(t, nqubits)
		for i := 0; i < 25; i++ {
			if err := c.Add(randomGate(rng, nqubits)); err != nil {
				t.Fatalf("trial %d: Add: %v", trial, err)
			}
		}

		fused, err := c.Fuse()
		if err != nil {
			t.Fatalf("trial %d: Fuse: %v", trial, err)
		}
		if len(fused.Queue()) > len(c.Queue()) {
			t.Errorf("trial %d: fusion grew the queue: %d -> %d", trial, len(c.Queue()), len(fused.Queue()))
		}

		initial := randomState(rng, nqubits)
		want, err := c.Execute(b, initial, 0)
		if err != nil {
			t.Fatalf("trial %d: original Execute: %v", trial, err)
		}
		got, err := fused.Execute(b, initial, 0)
		if err != nil {
			t.Fatalf("trial %d: fused Execute: %v", trial, err)
		}
		if !tensor.AllClose(got.State(), want.State(), 1e-6) {
			t.Errorf("trial %d: fused circuit diverges from original", trial)
		}
	}
}

func TestFuseCollapsesTwoQubitBlock(t *testing.T) {
	// H0, H1, CNOT, Y0, Y1 all touch only qubits {0,1}: one fused gate.
	c := mustCircuit(t, 2)
	mustAdd(t, c, gate.H(0), gate.H(1), gate.CNOT(0, 1), gate.Y(0), gate.Y(1))

	fused, err := c.Fuse()
	if err != nil {
		t.Fatalf("Fuse: %v", err)
	}
	if got := len(fused.Queue()); got != 1 {
		t.Fatalf("fused queue length = %d, want 1", got)
	}
	groups := fused.FusionGroups()
	if len(groups) != 1 {
		t.Fatalf("groups = %d, want 1", len(groups))
	}
	if len(groups[0].Gates) != 5 {
		t.Errorf("group absorbed %d gates, want 5", len(groups[0].Gates))
	}
}

func TestFuseDoesNotMutateOriginal(t *testing.T) {
	c := mustCircuit(t, 2)
	rot := gate.RX(0, 1.0)
	fixed := gate.H(1)
	frozen := gate.RY(1, 0.3).SetTrainable(false)
	mustAdd(t, c, rot, fixed, frozen, gate.CNOT(0, 1))

	fused, err := c.Fuse()
	if err != nil {
		t.Fatalf("Fuse: %v", err)
	}
	if got := len(c.Queue()); got != 4 {
		t.Errorf("original queue length changed to %d", got)
	}

	// The fused copy owns an independent parameter for trainable gates.
	for _, grp := range fused.FusionGroups() {
		for _, g := range grp.Gates {
			if cp, ok := g.(*gate.Rotation); ok && cp.Trainable() {
				if cp == rot {
					t.Error("trainable rotation shared by reference across fuse")
				}
				cp.SetParameter(99)
			}
		}
	}
	if rot.Parameter() != 1.0 {
		t.Errorf("original parameter mutated to %v", rot.Parameter())
	}
}

func TestFuseSharesImmutableGates(t *testing.T) {
	c := mustCircuit(t, 2)
	fixed := gate.H(0)
	frozen := gate.RZ(0, 0.5).SetTrainable(false)
	mustAdd(t, c, fixed, frozen)

	fused, err := c.Fuse()
	if err != nil {
		t.Fatalf("Fuse: %v", err)
	}
	groups := fused.FusionGroups()
	if len(groups) != 1 {
		t.Fatalf("groups = %d, want 1", len(groups))
	}
	if groups[0].Gates[0] != gate.Gate(fixed) {
		t.Error("fixed gate not shared by reference")
	}
	if groups[0].Gates[1] != gate.Gate(frozen) {
		t.Error("non-trainable parametrized gate not shared by reference")
	}
}

func TestFusionBoundaries(t *testing.T) {
	c := mustCircuit(t, 1)
	ch, _ := gate.NewPauliNoise(0, 0.1, 0, 0)
	mustAdd(t, c, gate.H(0), ch, gate.H(0))

	fused, err := c.Fuse()
	if err != nil {
		t.Fatalf("Fuse: %v", err)
	}
	queue := fused.Queue()
	if len(queue) != 3 {
		t.Fatalf("queue length = %d, want 3 (channel bounds fusion)", len(queue))
	}
	if queue[1].Name() != "pauli-noise" {
		t.Errorf("middle gate = %q, want the channel", queue[1].Name())
	}

	groups := fused.FusionGroups()
	if len(groups) != 3 || !groups[1].Passthrough() {
		t.Errorf("expected 3 groups with a passthrough channel, got %d", len(groups))
	}
}

func TestFusionAdditionalUnitary(t *testing.T) {
	// Two single-qubit runs on distinct qubits with no entangler: the
	// group emits one unitary per qubit, the second as the additional
	// unitary.
	c := mustCircuit(t, 4)
	mustAdd(t, c, gate.H(0), gate.X(3), gate.Z(0))

	fused, err := c.Fuse()
	if err != nil {
		t.Fatalf("Fuse: %v", err)
	}
	groups := fused.FusionGroups()
	if len(groups) != 1 {
		t.Fatalf("groups = %d, want 1", len(groups))
	}
	grp := groups[0]
	if grp.Unitary == nil || grp.Additional == nil {
		t.Fatal("expected both a primary and an additional unitary")
	}
	if len(fused.Queue()) != 2 {
		t.Errorf("fused queue length = %d, want 2", len(fused.Queue()))
	}

	// Equivalence still holds through the residual convention.
	b := testBackend(t)
	want, err := c.Execute(b, nil, 0)
	if err != nil {
		t.Fatalf("original Execute: %v", err)
	}
	got, err := fused.Execute(b, nil, 0)
	if err != nil {
		t.Fatalf("fused Execute: %v", err)
	}
	if !tensor.AllClose(got.State(), want.State(), 1e-9) {
		t.Error("fused circuit diverges from original")
	}
}

func TestFuseSingleIsolatedGate(t *testing.T) {
	c := mustCircuit(t, 2)
	mustAdd(t, c, gate.H(0))

	fused, err := c.Fuse()
	if err != nil {
		t.Fatalf("Fuse: %v", err)
	}
	queue := fused.Queue()
	if len(queue) != 1 || queue[0].Name() != "fused" {
		t.Errorf("isolated gate not rewritten as fused unitary: %v", queue)
	}
}

func TestFuseKeepsMeasurementRegisters(t *testing.T) {
	c := mustCircuit(t, 2)
	m, _ := gate.NewMeasure("out", 0, 1)
	mustAdd(t, c, gate.H(0), m)

	fused, err := c.Fuse()
	if err != nil {
		t.Fatalf("Fuse: %v", err)
	}
	if fused.MeasurementGate() == nil {
		t.Fatal("fused circuit lost the measurement gate")
	}
	if fused.MeasurementGate() == c.MeasurementGate() {
		t.Error("measurement gate shared by reference across fuse")
	}
	if regs := fused.Registers(); len(regs["out"]) != 2 {
		t.Errorf("fused registers = %v", regs)
	}

	b := testBackend(t)
	res, err := fused.Execute(b, nil, 100)
	if err != nil {
		t.Fatalf("fused Execute with shots: %v", err)
	}
	if len(res.Samples()) != 100 {
		t.Errorf("samples = %d, want 100", len(res.Samples()))
	}
}

func TestFusionOnDensityMatrixCircuit(t *testing.T) {
	b := testBackend(t)
	dm, _ := NewDensityMatrix(2)
	ch, _ := gate.NewPauliNoise(1, 0.2, 0, 0)
	if err := dm.Add(gate.H(0), gate.CNOT(0, 1), ch, gate.X(0)); err != nil {
		t.Fatalf("Add: %v", err)
	}

	fused, err := dm.Fuse()
	if err != nil {
		t.Fatalf("Fuse: %v", err)
	}
	want, err := dm.Execute(b, nil, 0)
	if err != nil {
		t.Fatalf("original Execute: %v", err)
	}
	got, err := fused.Execute(b, nil, 0)
	if err != nil {
		t.Fatalf("fused Execute: %v", err)
	}
	if !tensor.AllClose(got.State(), want.State(), 1e-9) {
		t.Error("fused density-matrix circuit diverges from original")
	}
}
