// Package gate defines the gate descriptors queued into circuits:
// fixed and parametrized unitaries, stochastic noise channels,
// measurement and callback gates. Gates are immutable after
// preparation; application goes through the backend capability and
// returns a fresh state tensor.
package gate

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/nvandessel/qsim/internal/backend"
	"github.com/nvandessel/qsim/internal/tensor"
)

// ErrSizeMismatch is reported when a gate prepared for one circuit size
// is added to a circuit of a different size.
var ErrSizeMismatch = errors.New("gate: prepared qubit count mismatch")

// ErrNoMatrix is reported when a dense matrix form is requested from a
// gate that has none (channels, measurements, callbacks).
var ErrNoMatrix = errors.New("gate: no dense matrix form")

// Env carries the execution environment a gate applies itself within.
type Env struct {
	Backend backend.Backend
	NQubits int

	// Density selects the density-matrix application path.
	Density bool

	// RNG drives stochastic channel choices. Per-shot local in repeated
	// execution so shots stay independent and deterministic by seed.
	RNG *rand.Rand
}

// Gate is a queued circuit operation.
type Gate interface {
	// Name is the gate's short identifier ("h", "cnot", "rx", ...).
	Name() string

	// Targets returns the qubits the gate's matrix acts on.
	Targets() []int

	// Controls returns the control qubits (may be empty).
	Controls() []int

	// Qubits returns controls followed by targets: every qubit the gate
	// touches, in the order ExpandedMatrix uses.
	Qubits() []int

	// Prepare fixes the gate to a circuit's qubit count. Preparing
	// twice with the same count is a no-op; a different count fails
	// with ErrSizeMismatch.
	Prepare(nqubits int) error

	// Prepared reports whether the gate has been bound to a circuit.
	Prepared() bool

	// NQubits returns the prepared qubit count (0 before preparation).
	NQubits() int

	// Apply evolves the state through the gate.
	Apply(env *Env, state *tensor.Tensor) (*tensor.Tensor, error)
}

// Matrixer is implemented by gates with a dense matrix form. The fusion
// engine only absorbs Matrixer gates.
type Matrixer interface {
	Gate

	// Matrix returns the gate's dense matrix over its targets.
	Matrix() (*tensor.Tensor, error)

	// ExpandedMatrix returns the dense matrix over Qubits(), with
	// control semantics folded in. Qubits()[0] is the most significant
	// bit of the local basis index.
	ExpandedMatrix() (*tensor.Tensor, error)
}

// base carries the queue bookkeeping shared by every gate kind.
type base struct {
	name     string
	targets  []int
	controls []int
	nqubits  int
	prepared bool
}

func newBase(name string, targets, controls []int) base {
	return base{
		name:     name,
		targets:  append([]int(nil), targets...),
		controls: append([]int(nil), controls...),
	}
}

func (b *base) Name() string    { return b.name }
func (b *base) Targets() []int  { return append([]int(nil), b.targets...) }
func (b *base) Controls() []int { return append([]int(nil), b.controls...) }
func (b *base) Prepared() bool  { return b.prepared }
func (b *base) NQubits() int    { return b.nqubits }

func (b *base) Qubits() []int {
	out := make([]int, 0, len(b.controls)+len(b.targets))
	out = append(out, b.controls...)
	out = append(out, b.targets...)
	return out
}

func (b *base) Prepare(nqubits int) error {
	if b.prepared {
		if b.nqubits != nqubits {
			return fmt.Errorf("%w: gate %q prepared for %d qubits, circuit has %d",
				ErrSizeMismatch, b.name, b.nqubits, nqubits)
		}
		return nil
	}
	for _, q := range b.Qubits() {
		if q < 0 || q >= nqubits {
			return fmt.Errorf("gate: %q touches qubit %d outside circuit of %d qubits", b.name, q, nqubits)
		}
	}
	b.nqubits = nqubits
	b.prepared = true
	return nil
}

// applyDense routes a dense matrix through the backend's vector or
// density-matrix path.
func applyDense(env *Env, state, matrix *tensor.Tensor, targets, controls []int) (*tensor.Tensor, error) {
	if env.Density {
		return env.Backend.ApplyDensity(state, matrix, env.NQubits, targets, controls)
	}
	return env.Backend.Apply(state, matrix, env.NQubits, targets, controls)
}
