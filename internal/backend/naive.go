package backend

import (
	"math/rand/v2"

	"github.com/nvandessel/qsim/internal/tensor"
)

// naiveEngine is the sequential reference engine: plain loops over the
// amplitude buffer, no compilation path. It is the default engine and
// the baseline the parallel engine is checked against.
type naiveEngine struct {
	device        string
	maxStateBytes int64
}

func newNaive(opts Options) (*naiveEngine, error) {
	dev, err := resolveDevice(opts.Device, "")
	if err != nil {
		return nil, err
	}
	return &naiveEngine{device: dev, maxStateBytes: opts.MaxStateBytes}, nil
}

func (e *naiveEngine) Name() string { return "naive" }

func (e *naiveEngine) InitialState(nqubits int, isMatrix bool) (*tensor.Tensor, error) {
	if err := checkBudget(nqubits, isMatrix, e.maxStateBytes, e.device); err != nil {
		return nil, err
	}
	dim := 1 << nqubits
	var st *tensor.Tensor
	if isMatrix {
		st = tensor.New(dim, dim)
	} else {
		st = tensor.New(dim)
	}
	st.Data()[0] = 1
	return st, nil
}

func (e *naiveEngine) Apply(state, matrix *tensor.Tensor, nqubits int, targets, controls []int) (*tensor.Tensor, error) {
	plan, err := newApplyPlan(nqubits, targets, controls)
	if err != nil {
		return nil, err
	}
	m, err := validateMatrix(matrix, plan.dim)
	if err != nil {
		return nil, err
	}
	out := state.Clone()
	plan.run(out.Data(), state.Data(), m, 0, plan.size)
	return out, nil
}

func (e *naiveEngine) ApplyDensity(state, matrix *tensor.Tensor, nqubits int, targets, controls []int) (*tensor.Tensor, error) {
	// Row-major (2^n, 2^n) layout: ket qubit q is bit q+n of the flat
	// index, bra qubit q is bit q. U ρ U† is a ket-side pass with U
	// followed by a bra-side pass with conj(U).
	ketPlan, err := newApplyPlan(2*nqubits, shiftQubits(targets, nqubits), shiftQubits(controls, nqubits))
	if err != nil {
		return nil, err
	}
	braPlan, err := newApplyPlan(2*nqubits, targets, controls)
	if err != nil {
		return nil, err
	}
	m, err := validateMatrix(matrix, ketPlan.dim)
	if err != nil {
		return nil, err
	}
	mid := state.Clone()
	ketPlan.run(mid.Data(), state.Data(), m, 0, ketPlan.size)
	out := mid.Clone()
	braPlan.run(out.Data(), mid.Data(), conjData(m), 0, braPlan.size)
	return out, nil
}

func (e *naiveEngine) Cast(data []complex128, shape ...int) (*tensor.Tensor, error) {
	return castState(data, e.maxStateBytes, e.device, shape...)
}

func (e *naiveEngine) Reshape(state *tensor.Tensor, shape ...int) (*tensor.Tensor, error) {
	return state.Reshape(shape...)
}

func (e *naiveEngine) SampleShots(probs []float64, nshots int, rng *rand.Rand) []uint64 {
	return sampleShots(probs, nshots, rng)
}

func (e *naiveEngine) Stack(states []*tensor.Tensor) (*tensor.Tensor, error) {
	return stackStates(states)
}

func (e *naiveEngine) Compile(fn ExecFunc) (ExecFunc, error) {
	return nil, ErrNotImplemented
}

func (e *naiveEngine) Device(name string) (*Device, error) {
	dev, err := resolveDevice(name, e.device)
	if err != nil {
		return nil, err
	}
	return &Device{name: dev}, nil
}

func (e *naiveEngine) DefaultDevice() string { return e.device }

func (e *naiveEngine) ShotWorkers() int { return 1 }
