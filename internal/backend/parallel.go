package backend

import (
	"math/rand/v2"
	"runtime"
	"sync"

	"github.com/nvandessel/qsim/internal/tensor"
)

// parallelEngine splits amplitude loops across worker goroutines and
// offers concurrent shot execution. Semantically identical to the naive
// engine; the split is over disjoint base-index ranges, so no two
// workers ever write the same amplitude.
type parallelEngine struct {
	device        string
	maxStateBytes int64
	workers       int
}

func newParallel(opts Options) (*parallelEngine, error) {
	dev, err := resolveDevice(opts.Device, "")
	if err != nil {
		return nil, err
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &parallelEngine{device: dev, maxStateBytes: opts.MaxStateBytes, workers: workers}, nil
}

func (e *parallelEngine) Name() string { return "parallel" }

func (e *parallelEngine) InitialState(nqubits int, isMatrix bool) (*tensor.Tensor, error) {
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

// runParallel fans plan.run out over disjoint chunks of the base range.
func (e *parallelEngine) runParallel(plan *applyPlan, dst, src, matrix []complex128) {
	workers := e.workers
	if plan.size < 1024 || workers == 1 {
		plan.run(dst, src, matrix, 0, plan.size)
		return
	}
	chunk := (plan.size + workers - 1) / workers
	var wg sync.WaitGroup
	for lo := 0; lo < plan.size; lo += chunk {
		hi := lo + chunk
		if hi > plan.size {
			hi = plan.size
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			plan.run(dst, src, matrix, lo, hi)
		}(lo, hi)
	}
	wg.Wait()
}

func (e *parallelEngine) Apply(state, matrix *tensor.Tensor, nqubits int, targets, controls []int) (*tensor.Tensor, error) {
	plan, err := newApplyPlan(nqubits, targets, controls)
	if err != nil {
		return nil, err
	}
	m, err := validateMatrix(matrix, plan.dim)
	if err != nil {
		return nil, err
	}
	out := state.Clone()
	e.runParallel(plan, out.Data(), state.Data(), m)
	return out, nil
}

func (e *parallelEngine) ApplyDensity(state, matrix *tensor.Tensor, nqubits int, targets, controls []int) (*tensor.Tensor, error) {
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
	e.runParallel(ketPlan, mid.Data(), state.Data(), m)
	out := mid.Clone()
	e.runParallel(braPlan, out.Data(), mid.Data(), conjData(m))
	return out, nil
}

func (e *parallelEngine) Cast(data []complex128, shape ...int) (*tensor.Tensor, error) {
	return castState(data, e.maxStateBytes, e.device, shape...)
}

func (e *parallelEngine) Reshape(state *tensor.Tensor, shape ...int) (*tensor.Tensor, error) {
	return state.Reshape(shape...)
}

func (e *parallelEngine) SampleShots(probs []float64, nshots int, rng *rand.Rand) []uint64 {
	return sampleShots(probs, nshots, rng)
}

func (e *parallelEngine) Stack(states []*tensor.Tensor) (*tensor.Tensor, error) {
	return stackStates(states)
}

// Compile binds fn for re-execution. The parallel engine has no graph
// notion to lower into; binding satisfies the capability so compiled
// circuits re-run through a stable handle.
func (e *parallelEngine) Compile(fn ExecFunc) (ExecFunc, error) {
	return func(st *tensor.Tensor) (*tensor.Tensor, error) {
		return fn(st)
	}, nil
}

func (e *parallelEngine) Device(name string) (*Device, error) {
	dev, err := resolveDevice(name, e.device)
	if err != nil {
		return nil, err
	}
	return &Device{name: dev}, nil
}

func (e *parallelEngine) DefaultDevice() string { return e.device }

func (e *parallelEngine) ShotWorkers() int { return e.workers }
