package backend

import (
	"fmt"
	"math/cmplx"
	"math/rand/v2"

	"github.com/nvandessel/qsim/internal/tensor"
)

// applyPlan holds the precomputed index masks for applying a dense
// (2^k x 2^k) matrix to k target qubits of an n-qubit register. Qubit q
// occupies bit q of the basis index; targets[0] is the most significant
// bit of the matrix's local basis index.
type applyPlan struct {
	dim      int
	patterns []int
	fullMask int
	ctrlMask int
	size     int
}

func newApplyPlan(nqubits int, targets, controls []int) (*applyPlan, error) {
	if len(targets) == 0 {
		return nil, fmt.Errorf("backend: gate has no target qubits")
	}
	seen := make(map[int]bool, len(targets)+len(controls))
	fullMask := 0
	for _, q := range targets {
		if q < 0 || q >= nqubits {
			return nil, fmt.Errorf("backend: target qubit %d out of range for %d qubits", q, nqubits)
		}
		if seen[q] {
			return nil, fmt.Errorf("backend: duplicate qubit %d in gate targets", q)
		}
		seen[q] = true
		fullMask |= 1 << q
	}
	ctrlMask := 0
	for _, q := range controls {
		if q < 0 || q >= nqubits {
			return nil, fmt.Errorf("backend: control qubit %d out of range for %d qubits", q, nqubits)
		}
		if seen[q] {
			return nil, fmt.Errorf("backend: qubit %d used as both target and control", q)
		}
		seen[q] = true
		ctrlMask |= 1 << q
	}

	k := len(targets)
	dim := 1 << k
	patterns := make([]int, dim)
	for b := 0; b < dim; b++ {
		p := 0
		for j := 0; j < k; j++ {
			if b>>(k-1-j)&1 == 1 {
				p |= 1 << targets[j]
			}
		}
		patterns[b] = p
	}
	return &applyPlan{
		dim:      dim,
		patterns: patterns,
		fullMask: fullMask,
		ctrlMask: ctrlMask,
		size:     1 << nqubits,
	}, nil
}

// run applies matrix over the base-index range [lo, hi). dst must
// already hold a copy of src; only selected amplitudes are rewritten.
func (p *applyPlan) run(dst, src, matrix []complex128, lo, hi int) {
	dim := p.dim
	for base := lo; base < hi; base++ {
		if base&p.fullMask != 0 || base&p.ctrlMask != p.ctrlMask {
			continue
		}
		for r := 0; r < dim; r++ {
			var sum complex128
			row := matrix[r*dim : (r+1)*dim]
			for c := 0; c < dim; c++ {
				sum += row[c] * src[base|p.patterns[c]]
			}
			dst[base|p.patterns[r]] = sum
		}
	}
}

func validateMatrix(matrix *tensor.Tensor, dim int) ([]complex128, error) {
	shape := matrix.Shape()
	if len(shape) != 2 || shape[0] != dim || shape[1] != dim {
		return nil, fmt.Errorf("backend: gate matrix shape %v, want [%d %d]", shape, dim, dim)
	}
	return matrix.Data(), nil
}

// shiftQubits maps qubit indices to the ket side of a flattened density
// matrix, where ket qubit q occupies bit q+n of the row-major index.
func shiftQubits(qubits []int, n int) []int {
	out := make([]int, len(qubits))
	for i, q := range qubits {
		out[i] = q + n
	}
	return out
}

func conjData(m []complex128) []complex128 {
	out := make([]complex128, len(m))
	for i, v := range m {
		out[i] = cmplx.Conj(v)
	}
	return out
}

// sampleShots draws nshots indices from probs by inverse-transform
// sampling. Shared by both engines.
func sampleShots(probs []float64, nshots int, rng *rand.Rand) []uint64 {
	cum := make([]float64, len(probs))
	var total float64
	for i, p := range probs {
		total += p
		cum[i] = total
	}
	out := make([]uint64, nshots)
	for s := 0; s < nshots; s++ {
		r := rng.Float64() * total
		// Linear scan; measured subsets are small.
		idx := len(cum) - 1
		for i, c := range cum {
			if r < c {
				idx = i
				break
			}
		}
		out[s] = uint64(idx)
	}
	return out
}

func stackStates(states []*tensor.Tensor) (*tensor.Tensor, error) {
	if len(states) == 0 {
		return nil, fmt.Errorf("backend: cannot stack zero states")
	}
	width := states[0].Size()
	data := make([]complex128, 0, len(states)*width)
	for i, st := range states {
		if st.Size() != width {
			return nil, fmt.Errorf("backend: state %d has size %d, want %d", i, st.Size(), width)
		}
		data = append(data, st.Data()...)
	}
	return tensor.FromSlice(data, len(states), width)
}
