// Package circuit implements the simulator core: an ordered gate queue
// bound to a fixed qubit count, executed eagerly or through a compiled
// handle against an injected numeric backend, with gate fusion,
// repeated-shot sampling for stochastic channels and a density-matrix
// specialization for noisy simulation.
package circuit

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/nvandessel/qsim/internal/backend"
	"github.com/nvandessel/qsim/internal/gate"
	"github.com/nvandessel/qsim/internal/tensor"
)

// ErrNoFinalState is reported when FinalState is read before any
// execution has completed.
var ErrNoFinalState = errors.New("circuit: no execution has completed yet")

// ErrAlreadyCompiled is reported when Compile is called twice.
var ErrAlreadyCompiled = errors.New("circuit: already compiled")

// ErrEmptyQueue is reported when Compile is called with no gates queued.
var ErrEmptyQueue = errors.New("circuit: cannot compile without gates")

// ErrIncompatibleGates is reported when Compile is called on a queue
// containing gates that bypass dense-matrix application.
var ErrIncompatibleGates = errors.New("circuit: queue contains gates incompatible with compilation")

// ErrShapeMismatch is reported when an initial state has the wrong
// shape for the circuit.
var ErrShapeMismatch = errors.New("circuit: invalid initial state shape")

// Shapes describes the layouts a circuit's state moves through:
// Tensor is one axis of size 2 per qubit per side, Flat is the
// single-axis (or square, for density matrices) form returned to
// callers.
type Shapes struct {
	Tensor []int
	Flat   []int

	// Vector is the pure-state shape a density-matrix circuit promotes
	// from. Nil for state-vector circuits.
	Vector []int
}

// Circuit is an ordered queue of gates over a fixed qubit count.
// Construction-phase mutation goes through Add; execution reads the
// queue only. A Circuit is not safe for concurrent use.
type Circuit struct {
	nqubits   int
	density   bool
	queue     []gate.Gate
	measure   *gate.Measure
	registers map[string][]int
	regOrder  []string

	shapes      Shapes
	hasChannel  bool
	compiled    backend.ExecFunc
	finalState  *tensor.Tensor
	fusionInfo  []*FusionGroup
	seed        uint64
	seedDefined bool
}

// New creates a state-vector circuit over nqubits qubits.
func New(nqubits int) (*Circuit, error) {
	if nqubits < 1 {
		return nil, fmt.Errorf("circuit: qubit count must be positive, got %d", nqubits)
	}
	dim := 1 << nqubits
	shapes := Shapes{Tensor: repeatTwo(nqubits), Flat: []int{dim}}
	return &Circuit{
		nqubits:   nqubits,
		registers: make(map[string][]int),
		shapes:    shapes,
	}, nil
}

// NewDensityMatrix creates a circuit simulating mixed states. Channels
// apply as deterministic linear maps instead of triggering repeated
// sampling.
func NewDensityMatrix(nqubits int) (*Circuit, error) {
	c, err := New(nqubits)
	if err != nil {
		return nil, err
	}
	dim := 1 << nqubits
	c.density = true
	c.shapes = Shapes{
		Tensor: repeatTwo(2 * nqubits),
		Flat:   []int{dim, dim},
		Vector: []int{dim},
	}
	return c, nil
}

func repeatTwo(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = 2
	}
	return out
}

// NQubits returns the circuit's fixed qubit count.
func (c *Circuit) NQubits() int { return c.nqubits }

// DensityMatrix reports whether the circuit simulates mixed states.
func (c *Circuit) DensityMatrix() bool { return c.density }

// Shapes returns the circuit's cached shape descriptors.
func (c *Circuit) Shapes() Shapes { return c.shapes }

// Queue returns the gate queue in application order.
func (c *Circuit) Queue() []gate.Gate { return append([]gate.Gate(nil), c.queue...) }

// MeasurementGate returns the circuit's single physical measurement
// gate, or nil.
func (c *Circuit) MeasurementGate() *gate.Measure { return c.measure }

// Registers returns the measurement register mapping.
func (c *Circuit) Registers() map[string][]int {
	out := make(map[string][]int, len(c.registers))
	for name, qubits := range c.registers {
		out[name] = append([]int(nil), qubits...)
	}
	return out
}

// SetSeed fixes the random seed driving channel choices and
// measurement sampling, making execution deterministic.
func (c *Circuit) SetSeed(seed uint64) {
	c.seed = seed
	c.seedDefined = true
}

// Add prepares a gate for this circuit's qubit count and appends it to
// the queue. Measurement gates merge into the circuit's single
// measurement gate; their registers must be disjoint and uniquely
// named.
func (c *Circuit) Add(gates ...gate.Gate) error {
	for _, g := range gates {
		if err := c.addOne(g); err != nil {
			return err
		}
	}
	return nil
}

func (c *Circuit) addOne(g gate.Gate) error {
	if err := g.Prepare(c.nqubits); err != nil {
		return err
	}
	if m, ok := g.(*gate.Measure); ok {
		return c.addMeasurement(m)
	}
	if _, ok := g.(gate.Channel); ok && !c.density {
		c.hasChannel = true
	}
	c.queue = append(c.queue, g)
	return nil
}

func (c *Circuit) addMeasurement(m *gate.Measure) error {
	name := m.Register()
	if _, exists := c.registers[name]; exists {
		return fmt.Errorf("circuit: measurement register %q already exists", name)
	}
	if c.measure == nil {
		c.measure = m
	} else if err := c.measure.Absorb(m); err != nil {
		return err
	}
	c.registers[name] = m.Targets()
	c.regOrder = append(c.regOrder, name)
	return nil
}

// RepeatedExecution reports whether shot-wise re-execution is required:
// the circuit holds stochastic channels and is not in density-matrix
// mode.
func (c *Circuit) RepeatedExecution() bool { return c.hasChannel && !c.density }

// Compile binds the queue into a compiled execution handle on the
// given backend. Valid once per circuit, only with a non-empty queue
// and no gates that bypass dense-matrix application (channels,
// callbacks).
func (c *Circuit) Compile(b backend.Backend) error {
	if c.compiled != nil {
		return ErrAlreadyCompiled
	}
	if len(c.queue) == 0 {
		return ErrEmptyQueue
	}
	for _, g := range c.queue {
		if !compilable(g) {
			return fmt.Errorf("%w: %q", ErrIncompatibleGates, g.Name())
		}
	}
	fn, err := b.Compile(func(st *tensor.Tensor) (*tensor.Tensor, error) {
		env := &gate.Env{Backend: b, NQubits: c.nqubits, Density: c.density}
		return c.applyQueue(env, st)
	})
	if err != nil {
		return fmt.Errorf("circuit: compiling on %s backend: %w", b.Name(), err)
	}
	c.compiled = fn
	return nil
}

func compilable(g gate.Gate) bool {
	switch g.(type) {
	case gate.Channel, *gate.CallbackGate:
		return false
	}
	return true
}

// FinalState returns the most recent final state. It fails until an
// execution has completed; each execution overwrites it.
func (c *Circuit) FinalState() (*tensor.Tensor, error) {
	if c.finalState == nil {
		return nil, ErrNoFinalState
	}
	return c.finalState, nil
}

// Execute propagates a state through the queue. With a nil initial
// state the all-zero basis state is used. When the circuit holds a
// measurement gate and nshots > 0 the returned Result carries sampled
// outcomes; otherwise it carries the flat final state.
//
// Circuits with stochastic channels (outside density-matrix mode)
// re-execute the whole queue once per shot. Without a measurement gate
// that path stacks every shot's final state into an (nshots, 2^n)
// tensor, which is memory-intensive and kept only for completeness.
func (c *Circuit) Execute(b backend.Backend, initial *tensor.Tensor, nshots int) (*Result, error) {
	if nshots > 0 && c.RepeatedExecution() {
		return c.repeatedExecute(b, initial, nshots)
	}

	rng := c.newRNG(0)
	state, samples, err := c.deviceExecute(b, initial, rng, nshots)
	if err != nil {
		return nil, err
	}
	c.finalState = state

	if c.measure == nil || nshots == 0 {
		return &Result{state: state}, nil
	}
	return c.newSampledResult(state, samples), nil
}

// deviceExecute scopes queue application and measurement sampling to
// one device handle, converting backend memory exhaustion into a
// fatal, descriptive error. The handle is released on every path.
func (c *Circuit) deviceExecute(b backend.Backend, initial *tensor.Tensor, rng *rand.Rand, nshots int) (*tensor.Tensor, []uint64, error) {
	dev, err := b.Device("")
	if err != nil {
		return nil, nil, err
	}
	defer dev.Release()

	state, err := c.run(b, initial, rng)
	if err != nil {
		if errors.Is(err, backend.ErrResourceExhausted) {
			return nil, nil, fmt.Errorf("circuit: state does not fit in %s memory; switch the execution device in the backend configuration: %w", dev.Name(), err)
		}
		return nil, nil, err
	}

	var samples []uint64
	if c.measure != nil && nshots > 0 {
		samples, err = c.sampleFinal(b, state, nshots, rng)
		if err != nil {
			return nil, nil, err
		}
	}
	return state, samples, nil
}

// run resolves the initial state and applies the queue.
func (c *Circuit) run(b backend.Backend, initial *tensor.Tensor, rng *rand.Rand) (*tensor.Tensor, error) {
	state, err := c.initialState(b, initial)
	if err != nil {
		return nil, err
	}
	if c.compiled != nil {
		state, err = c.compiled(state)
	} else {
		env := &gate.Env{Backend: b, NQubits: c.nqubits, Density: c.density, RNG: rng}
		state, err = c.applyQueue(env, state)
	}
	if err != nil {
		return nil, err
	}
	// The backends index amplitudes by qubit bit directly, so the
	// multi-axis tensor form is never materialized; the flat reshape
	// enforces the outward shape invariant.
	return b.Reshape(state, c.shapes.Flat...)
}

func (c *Circuit) applyQueue(env *gate.Env, state *tensor.Tensor) (*tensor.Tensor, error) {
	var err error
	for _, g := range c.queue {
		state, err = g.Apply(env, state)
		if err != nil {
			return nil, fmt.Errorf("circuit: applying gate %q: %w", g.Name(), err)
		}
	}
	return state, nil
}

// initialState resolves and validates the starting state. State-vector
// circuits demand an exact (2^n,) vector; density-matrix circuits also
// accept a pure state vector and promote it via the conjugate outer
// product.
func (c *Circuit) initialState(b backend.Backend, initial *tensor.Tensor) (*tensor.Tensor, error) {
	if initial == nil {
		return b.InitialState(c.nqubits, c.density)
	}
	shape := initial.Shape()
	if c.density {
		if shapeEqual(shape, c.shapes.Vector) {
			return tensor.Outer(initial, initial), nil
		}
		if shapeEqual(shape, c.shapes.Flat) {
			return b.Cast(initial.Data(), c.shapes.Flat...)
		}
		return nil, fmt.Errorf("%w: %v for density-matrix circuit with %d qubits", ErrShapeMismatch, shape, c.nqubits)
	}
	if !shapeEqual(shape, c.shapes.Flat) {
		return nil, fmt.Errorf("%w: %v for circuit with %d qubits", ErrShapeMismatch, shape, c.nqubits)
	}
	return b.Cast(initial.Data(), c.shapes.Flat...)
}

func shapeEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (c *Circuit) newRNG(shot uint64) *rand.Rand {
	seed := c.seed
	if !c.seedDefined {
		seed = rand.Uint64()
	}
	return rand.New(rand.NewPCG(seed, shot+1))
}
