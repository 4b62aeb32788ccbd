// Package backend provides the numeric capability layer the circuit
// engine is written against: state allocation, dense gate application,
// sampling, device scoping and optional compiled execution. Engines are
// selected once at startup and injected into circuits; gate code never
// reaches for a global backend.
package backend

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/nvandessel/qsim/internal/tensor"
)

// ErrResourceExhausted is reported when a state allocation would exceed
// the device's memory budget. The circuit engine converts it into a
// fatal error naming the device.
var ErrResourceExhausted = errors.New("backend: device memory exhausted")

// ErrNotImplemented is reported when an engine does not support a
// requested operation (e.g. compiled execution on the naive engine).
var ErrNotImplemented = errors.New("backend: operation not implemented")

// ErrUnknownBackend is reported when the configured engine name does not
// match a registered engine.
var ErrUnknownBackend = errors.New("backend: unknown engine")

// ErrNoDevice is reported when no execution device can be resolved.
var ErrNoDevice = errors.New("backend: no execution device found")

// ExecFunc is the shape of a queue-application function handed to
// Compile. It consumes a state tensor and produces the evolved state.
type ExecFunc func(*tensor.Tensor) (*tensor.Tensor, error)

// Backend is the numeric capability contract consumed by the circuit
// engine. Implementations must treat input tensors as read-only: Apply
// and ApplyDensity return fresh tensors rather than mutating in place.
type Backend interface {
	// Name identifies the engine ("naive", "parallel").
	Name() string

	// InitialState allocates the all-zero computational basis state:
	// a (2^n,) vector, or a (2^n, 2^n) density matrix when isMatrix is
	// set. Fails with ErrResourceExhausted when the allocation exceeds
	// the device memory budget.
	InitialState(nqubits int, isMatrix bool) (*tensor.Tensor, error)

	// Apply applies a dense (2^k x 2^k) unitary matrix to the targets
	// of a state vector, conditioned on all control qubits being set.
	// targets[0] is the most significant bit of the matrix's local
	// basis index.
	Apply(state, matrix *tensor.Tensor, nqubits int, targets, controls []int) (*tensor.Tensor, error)

	// ApplyDensity applies matrix ρ -> U ρ U† on a flat (2^n, 2^n)
	// density matrix, same target conventions as Apply.
	ApplyDensity(state, matrix *tensor.Tensor, nqubits int, targets, controls []int) (*tensor.Tensor, error)

	// Cast materializes raw amplitudes as a state tensor of the given
	// shape, subject to the device memory budget. The data is copied.
	Cast(data []complex128, shape ...int) (*tensor.Tensor, error)

	// Reshape returns a view of state with a new shape of equal size.
	Reshape(state *tensor.Tensor, shape ...int) (*tensor.Tensor, error)

	// SampleShots draws nshots outcomes from the given probability
	// distribution using rng. Outcomes index the distribution.
	SampleShots(probs []float64, nshots int, rng *rand.Rand) []uint64

	// Stack concatenates equally-shaped states along a new leading axis.
	Stack(states []*tensor.Tensor) (*tensor.Tensor, error)

	// Compile binds fn for repeated execution. Engines without a
	// compilation path return ErrNotImplemented.
	Compile(fn ExecFunc) (ExecFunc, error)

	// Device acquires a scoped handle on the named device (empty name
	// selects the default). The caller must Release the handle on every
	// path.
	Device(name string) (*Device, error)

	// DefaultDevice returns the name of the device used when none is
	// requested.
	DefaultDevice() string

	// ShotWorkers reports how many independent shots the engine is
	// willing to run concurrently. Always at least 1.
	ShotWorkers() int
}

// Options configures engine construction. Resolved once at process
// start (from internal/config) and passed in explicitly.
type Options struct {
	// Device is the preferred execution device ("cpu:0"). Empty selects
	// the default.
	Device string

	// MaxStateBytes bounds a single state allocation. Zero means
	// unlimited.
	MaxStateBytes int64

	// Workers bounds amplitude-loop and shot parallelism for the
	// parallel engine. Zero means runtime.NumCPU.
	Workers int
}

// Open constructs the named engine. Supported names are "naive" and
// "parallel"; the empty string selects "naive".
func Open(name string, opts Options) (Backend, error) {
	switch name {
	case "", "naive":
		return newNaive(opts)
	case "parallel":
		return newParallel(opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
}

// stateBytes returns the allocation size of an n-qubit state, or -1
// when the size overflows int64. The size is 16 * 2^n bytes for a
// vector and 16 * 2^(2n) for a matrix, so shifting by more than 62
// bits total cannot be represented.
func stateBytes(nqubits int, isMatrix bool) int64 {
	bits := nqubits
	if isMatrix {
		bits *= 2
	}
	bits += 4 // 16 bytes per complex128 amplitude
	if nqubits < 1 || bits > 62 {
		return -1
	}
	return int64(1) << bits
}

func checkBudget(nqubits int, isMatrix bool, limit int64, device string) error {
	size := stateBytes(nqubits, isMatrix)
	if size < 0 {
		return fmt.Errorf("%w: %d-qubit state does not fit on %s", ErrResourceExhausted, nqubits, device)
	}
	if limit > 0 && size > limit {
		return fmt.Errorf("%w: %d-qubit state does not fit on %s", ErrResourceExhausted, nqubits, device)
	}
	return nil
}

// castState copies raw amplitudes into a fresh tensor of the given
// shape, enforcing the memory budget the same way InitialState does.
func castState(data []complex128, limit int64, device string, shape ...int) (*tensor.Tensor, error) {
	size := 1
	for _, d := range shape {
		size *= d
	}
	if size != len(data) {
		return nil, fmt.Errorf("backend: cannot cast %d amplitudes into shape %v", len(data), shape)
	}
	if limit > 0 && int64(len(data))*16 > limit {
		return nil, fmt.Errorf("%w: %d amplitudes do not fit on %s", ErrResourceExhausted, len(data), device)
	}
	out := tensor.New(shape...)
	copy(out.Data(), data)
	return out, nil
}
