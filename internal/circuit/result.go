package circuit

import (
	"fmt"
	"math/bits"
	"sort"
	"strconv"

	"github.com/nvandessel/qsim/internal/tensor"
)

// Result is the outcome of one Execute call: either a final state
// tensor, sampled measurement outcomes, or both. Samples are ordered
// per shot and decoded with the measurement gate's qubit order, first
// measured qubit most significant.
type Result struct {
	state     *tensor.Tensor
	sampled   bool
	samples   []uint64
	qubits    []int
	registers map[string][]int
	regOrder  []string
}

// State returns the final state tensor. Nil when the execution produced
// samples only (repeated execution with a measurement gate).
func (r *Result) State() *tensor.Tensor { return r.state }

// Sampled reports whether measurement samples are available.
func (r *Result) Sampled() bool { return r.sampled }

// Samples returns one decoded outcome per shot.
func (r *Result) Samples() []uint64 { return append([]uint64(nil), r.samples...) }

// Qubits returns the measured qubits in declaration order.
func (r *Result) Qubits() []int { return append([]int(nil), r.qubits...) }

// Frequencies counts outcomes keyed by bitstring over the measured
// qubits.
func (r *Result) Frequencies() map[string]int {
	out := make(map[string]int)
	width := len(r.qubits)
	for _, s := range r.samples {
		out[bitstring(s, width)] += 1
	}
	return out
}

// RegisterSamples slices each shot's outcome down to the named
// register's qubits.
func (r *Result) RegisterSamples(name string) ([]uint64, error) {
	qubits, ok := r.registers[name]
	if !ok {
		return nil, fmt.Errorf("circuit: unknown measurement register %q", name)
	}
	pos := make([]int, len(qubits))
	for i, q := range qubits {
		idx := -1
		for j, mq := range r.qubits {
			if mq == q {
				idx = j
				break
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("circuit: register %q qubit %d not measured", name, q)
		}
		pos[i] = idx
	}

	width := len(r.qubits)
	out := make([]uint64, len(r.samples))
	for s, sample := range r.samples {
		var v uint64
		for i, idx := range pos {
			bit := sample >> (width - 1 - idx) & 1
			v |= bit << (len(pos) - 1 - i)
		}
		out[s] = v
	}
	return out, nil
}

// RegisterNames returns the declared registers in insertion order.
func (r *Result) RegisterNames() []string {
	return append([]string(nil), r.regOrder...)
}

// ExpectationZ returns the sample mean of the Z-parity observable:
// each shot contributes the product of (+1 for 0, -1 for 1) over all
// measured qubits.
func (r *Result) ExpectationZ() float64 {
	if len(r.samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range r.samples {
		if bits.OnesCount64(s)%2 == 0 {
			sum += 1
		} else {
			sum -= 1
		}
	}
	return sum / float64(len(r.samples))
}

// Probabilities estimates outcome probabilities from the samples,
// sorted by bitstring for stable output.
func (r *Result) Probabilities() []OutcomeProbability {
	freqs := r.Frequencies()
	keys := make([]string, 0, len(freqs))
	for k := range freqs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]OutcomeProbability, len(keys))
	total := float64(len(r.samples))
	for i, k := range keys {
		out[i] = OutcomeProbability{Bitstring: k, Probability: float64(freqs[k]) / total}
	}
	return out
}

// OutcomeProbability pairs a measured bitstring with its estimated
// probability.
type OutcomeProbability struct {
	Bitstring   string
	Probability float64
}

func bitstring(v uint64, width int) string {
	s := strconv.FormatUint(v, 2)
	for len(s) < width {
		s = "0" + s
	}
	return s
}
