package circuit

import (
	"math/rand/v2"

	"golang.org/x/sync/errgroup"

	"github.com/nvandessel/qsim/internal/backend"
	"github.com/nvandessel/qsim/internal/gate"
	"github.com/nvandessel/qsim/internal/tensor"
)

// repeatedExecute runs the full queue once per shot with independent
// channel randomness. Shots are scheduled across the backend's shot
// workers; every shot derives its own RNG from the circuit seed and
// shot index, so aggregate statistics are order-independent and
// deterministic by seed.
func (c *Circuit) repeatedExecute(b backend.Backend, initial *tensor.Tensor, nshots int) (*Result, error) {
	workers := b.ShotWorkers()
	if c.hasCallbacks() {
		// Callback history appends are not synchronized; keep shots
		// sequential when observers are present.
		workers = 1
	}

	var eg errgroup.Group
	eg.SetLimit(workers)

	var (
		samples []uint64
		states  []*tensor.Tensor
	)
	if c.measure != nil {
		samples = make([]uint64, nshots)
	} else {
		states = make([]*tensor.Tensor, nshots)
	}

	for shot := 0; shot < nshots; shot++ {
		eg.Go(func() error {
			rng := c.newRNG(uint64(shot))
			state, drawn, err := c.deviceExecute(b, initial, rng, 1)
			if err != nil {
				return err
			}
			if c.measure != nil {
				samples[shot] = drawn[0]
				return nil
			}
			states[shot] = state
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	// Repeated execution has no single final state.
	c.finalState = nil

	if c.measure != nil {
		return c.newSampledResult(nil, samples), nil
	}
	stacked, err := b.Stack(states)
	if err != nil {
		return nil, err
	}
	return &Result{state: stacked}, nil
}

func (c *Circuit) hasCallbacks() bool {
	for _, g := range c.queue {
		if _, ok := g.(*gate.CallbackGate); ok {
			return true
		}
	}
	return false
}

// sampleFinal draws nshots outcomes over the measured qubit subset from
// the final state's probability distribution.
func (c *Circuit) sampleFinal(b backend.Backend, state *tensor.Tensor, nshots int, rng *rand.Rand) ([]uint64, error) {
	return b.SampleShots(c.measuredProbs(state), nshots, rng), nil
}

// measuredProbs marginalizes the final state onto the measured qubits.
// The first measured qubit is the most significant bit of the decoded
// outcome.
func (c *Circuit) measuredProbs(state *tensor.Tensor) []float64 {
	mq := c.measure.Targets()
	m := len(mq)
	probs := make([]float64, 1<<m)
	data := state.Data()

	outcome := func(i int) int {
		o := 0
		for j, q := range mq {
			if i>>q&1 == 1 {
				o |= 1 << (m - 1 - j)
			}
		}
		return o
	}

	if c.density {
		dim := 1 << c.nqubits
		for i := 0; i < dim; i++ {
			probs[outcome(i)] += real(data[i*dim+i])
		}
		return probs
	}
	for i, amp := range data {
		probs[outcome(i)] += real(amp)*real(amp) + imag(amp)*imag(amp)
	}
	return probs
}

func (c *Circuit) newSampledResult(state *tensor.Tensor, samples []uint64) *Result {
	return &Result{
		state:     state,
		samples:   samples,
		sampled:   true,
		qubits:    c.measure.Targets(),
		registers: c.Registers(),
		regOrder:  append([]string(nil), c.regOrder...),
	}
}
