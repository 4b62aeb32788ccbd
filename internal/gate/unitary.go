package gate

import (
	"fmt"

	"github.com/nvandessel/qsim/internal/tensor"
)

// Unitary is a gate with a fixed dense matrix: the standard named
// gates plus arbitrary caller-supplied matrices on one or two targets.
type Unitary struct {
	base
	matrix *tensor.Tensor
}

// NewUnitary wraps an arbitrary (2^k x 2^k) matrix acting on targets.
func NewUnitary(name string, matrix *tensor.Tensor, targets ...int) (*Unitary, error) {
	dim := 1 << len(targets)
	shape := matrix.Shape()
	if len(shape) != 2 || shape[0] != dim || shape[1] != dim {
		return nil, fmt.Errorf("gate: matrix shape %v does not act on %d target(s)", shape, len(targets))
	}
	return &Unitary{base: newBase(name, targets, nil), matrix: matrix}, nil
}

// NewControlledUnitary wraps a matrix on targets conditioned on all
// controls being set.
func NewControlledUnitary(name string, matrix *tensor.Tensor, targets, controls []int) (*Unitary, error) {
	g, err := NewUnitary(name, matrix, targets...)
	if err != nil {
		return nil, err
	}
	g.base.controls = append([]int(nil), controls...)
	return g, nil
}

func I(q int) *Unitary { return mustFixed("i", identityMatrix(), q) }
func X(q int) *Unitary { return mustFixed("x", xMatrix(), q) }
func Y(q int) *Unitary { return mustFixed("y", yMatrix(), q) }
func Z(q int) *Unitary { return mustFixed("z", zMatrix(), q) }
func H(q int) *Unitary { return mustFixed("h", hMatrix(), q) }

func S(q int) *Unitary   { return mustFixed("s", mat2(1, 0, 0, 1i), q) }
func Sdg(q int) *Unitary { return mustFixed("sdg", mat2(1, 0, 0, -1i), q) }
func T(q int) *Unitary   { return mustFixed("t", phaseMatrix(pi4), q) }
func Tdg(q int) *Unitary { return mustFixed("tdg", phaseMatrix(-pi4), q) }

const pi4 = 0.7853981633974483

// CNOT flips target when control is set.
func CNOT(control, target int) *Unitary {
	g := mustFixed("cnot", xMatrix(), target)
	g.base.controls = []int{control}
	return g
}

// CZ applies a phase flip when both qubits are set.
func CZ(control, target int) *Unitary {
	g := mustFixed("cz", zMatrix(), target)
	g.base.controls = []int{control}
	return g
}

// SWAP exchanges the states of two qubits.
func SWAP(a, b int) *Unitary { return mustFixed("swap", swapMatrix(), a, b) }

func mustFixed(name string, m *tensor.Tensor, targets ...int) *Unitary {
	g, err := NewUnitary(name, m, targets...)
	if err != nil {
		panic(err) // fixed matrices always match their target count
	}
	return g
}

// Matrix returns the matrix over the gate's targets.
func (g *Unitary) Matrix() (*tensor.Tensor, error) { return g.matrix, nil }

// ExpandedMatrix folds controls into the dense form over Qubits():
// identity everywhere except the all-controls-set block, which holds
// the target matrix.
func (g *Unitary) ExpandedMatrix() (*tensor.Tensor, error) {
	return expandControls(g.matrix, len(g.controls))
}

func (g *Unitary) Apply(env *Env, state *tensor.Tensor) (*tensor.Tensor, error) {
	return applyDense(env, state, g.matrix, g.targets, g.controls)
}

// expandControls embeds a 2^t-dim matrix as the bottom-right block of a
// 2^(c+t)-dim identity, controls occupying the most significant bits.
func expandControls(matrix *tensor.Tensor, ncontrols int) (*tensor.Tensor, error) {
	if ncontrols == 0 {
		return matrix, nil
	}
	tdim := matrix.Shape()[0]
	dim := tdim << ncontrols
	out := tensor.Identity(dim)
	offset := dim - tdim
	for r := 0; r < tdim; r++ {
		for c := 0; c < tdim; c++ {
			out.Data()[(offset+r)*dim+(offset+c)] = matrix.Data()[r*tdim+c]
		}
	}
	return out, nil
}
