package gate

import (
	"fmt"

	"github.com/nvandessel/qsim/internal/tensor"
)

// Component is one branch of a channel's unitary mixture.
type Component struct {
	Prob   float64
	Matrix *tensor.Tensor
}

// Channel is a stochastic gate: a probabilistic mixture of unitaries.
// In state-vector mode one branch is drawn per shot; in density-matrix
// mode the mixture is applied deterministically as a linear map.
type Channel interface {
	Gate

	// Mixture returns the non-identity branches. The identity branch
	// carries the remaining probability mass.
	Mixture() []Component
}

// PauliNoise applies X, Y, Z on one qubit with the given probabilities,
// identity with the remainder.
type PauliNoise struct {
	base
	px, py, pz float64
}

// NewPauliNoise builds a Pauli noise channel on qubit q. Probabilities
// must be non-negative and sum to at most one.
func NewPauliNoise(q int, px, py, pz float64) (*PauliNoise, error) {
	if px < 0 || py < 0 || pz < 0 || px+py+pz > 1 {
		return nil, fmt.Errorf("gate: invalid pauli noise probabilities (%v, %v, %v)", px, py, pz)
	}
	return &PauliNoise{base: newBase("pauli-noise", []int{q}, nil), px: px, py: py, pz: pz}, nil
}

// NewDepolarizing builds a depolarizing channel of strength p on qubit
// q: each Pauli error occurs with probability p/3.
func NewDepolarizing(q int, p float64) (*PauliNoise, error) {
	if p < 0 || p > 1 {
		return nil, fmt.Errorf("gate: invalid depolarizing strength %v", p)
	}
	ch, err := NewPauliNoise(q, p/3, p/3, p/3)
	if err != nil {
		return nil, err
	}
	ch.base.name = "depolarizing"
	return ch, nil
}

func (g *PauliNoise) Mixture() []Component {
	return []Component{
		{Prob: g.px, Matrix: xMatrix()},
		{Prob: g.py, Matrix: yMatrix()},
		{Prob: g.pz, Matrix: zMatrix()},
	}
}

func (g *PauliNoise) Apply(env *Env, state *tensor.Tensor) (*tensor.Tensor, error) {
	if env.Density {
		return applyMixtureDensity(env, g, state)
	}
	return applyMixtureSampled(env, g, state)
}

// applyMixtureSampled draws one branch of the mixture for this shot.
func applyMixtureSampled(env *Env, ch Channel, state *tensor.Tensor) (*tensor.Tensor, error) {
	if env.RNG == nil {
		return nil, fmt.Errorf("gate: channel %q applied without a random source", ch.Name())
	}
	r := env.RNG.Float64()
	var cum float64
	for _, comp := range ch.Mixture() {
		cum += comp.Prob
		if r < cum {
			return env.Backend.Apply(state, comp.Matrix, env.NQubits, ch.Targets(), ch.Controls())
		}
	}
	// Identity branch.
	return state, nil
}

// applyMixtureDensity evolves the mixed state through the channel's
// linear action: ρ' = Σ p_k U_k ρ U_k† + (1 - Σ p_k) ρ.
func applyMixtureDensity(env *Env, ch Channel, state *tensor.Tensor) (*tensor.Tensor, error) {
	identityProb := 1.0
	out := state.Clone()
	for _, comp := range ch.Mixture() {
		identityProb -= comp.Prob
	}
	out.Scale(complex(identityProb, 0))
	for _, comp := range ch.Mixture() {
		if comp.Prob == 0 {
			continue
		}
		term, err := env.Backend.ApplyDensity(state, comp.Matrix, env.NQubits, ch.Targets(), ch.Controls())
		if err != nil {
			return nil, err
		}
		if err := out.Add(term.Scale(complex(comp.Prob, 0))); err != nil {
			return nil, err
		}
	}
	return out, nil
}
