package gate

import (
	"github.com/nvandessel/qsim/internal/tensor"
)

// Callback observes intermediate states during execution and records a
// scalar per observation.
type Callback interface {
	// Compute derives the observed value from the current state.
	Compute(state *tensor.Tensor, density bool) (float64, error)

	// Record appends a value to the callback's history.
	Record(v float64)

	// History returns the recorded values in observation order.
	History() []float64
}

// CallbackGate invokes a callback on the state mid-queue without
// changing it. Never absorbed by fusion and incompatible with compiled
// execution.
type CallbackGate struct {
	base
	callback Callback
}

// NewCallbackGate wraps cb as a queueable gate.
func NewCallbackGate(cb Callback) *CallbackGate {
	return &CallbackGate{base: newBase("callback", nil, nil), callback: cb}
}

// Callback returns the wrapped observer.
func (g *CallbackGate) Callback() Callback { return g.callback }

// Prepare accepts any circuit size; a callback touches no qubits.
func (g *CallbackGate) Prepare(nqubits int) error {
	if g.prepared && g.nqubits != nqubits {
		return ErrSizeMismatch
	}
	g.nqubits = nqubits
	g.prepared = true
	return nil
}

func (g *CallbackGate) Apply(env *Env, state *tensor.Tensor) (*tensor.Tensor, error) {
	v, err := g.callback.Compute(state, env.Density)
	if err != nil {
		return nil, err
	}
	g.callback.Record(v)
	return state, nil
}

// NormCallback records the Euclidean norm of the state. For a
// normalized pure state this is 1; deviations expose numeric drift.
type NormCallback struct {
	history []float64
}

func (c *NormCallback) Compute(state *tensor.Tensor, density bool) (float64, error) {
	return state.Norm(), nil
}

func (c *NormCallback) Record(v float64) { c.history = append(c.history, v) }

func (c *NormCallback) History() []float64 {
	return append([]float64(nil), c.history...)
}

// ProbabilityCallback records the probability of measuring |1> on a
// single qubit.
type ProbabilityCallback struct {
	Qubit   int
	history []float64
}

func (c *ProbabilityCallback) Compute(state *tensor.Tensor, density bool) (float64, error) {
	data := state.Data()
	bit := 1 << c.Qubit
	var p float64
	if density {
		// Diagonal entries with the qubit's bit set.
		dim := state.Shape()[0]
		for i := 0; i < dim; i++ {
			if i&bit != 0 {
				p += real(data[i*dim+i])
			}
		}
		return p, nil
	}
	for i, amp := range data {
		if i&bit != 0 {
			p += real(amp)*real(amp) + imag(amp)*imag(amp)
		}
	}
	return p, nil
}

func (c *ProbabilityCallback) Record(v float64) { c.history = append(c.history, v) }

func (c *ProbabilityCallback) History() []float64 {
	return append([]float64(nil), c.history...)
}
