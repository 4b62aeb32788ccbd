package gate

import (
	"fmt"

	"github.com/nvandessel/qsim/internal/tensor"
)

// Measure marks qubits for sampling at the end of execution. It does
// not alter the state; the circuit samples the final distribution over
// the measured subset when shots are requested. A circuit holds at most
// one physical Measure gate; additional measurement registers merge
// into it.
type Measure struct {
	base
	register string
}

// NewMeasure measures the given qubits into a named register.
func NewMeasure(register string, qubits ...int) (*Measure, error) {
	if len(qubits) == 0 {
		return nil, fmt.Errorf("gate: measurement of register %q has no qubits", register)
	}
	if register == "" {
		register = "register0"
	}
	seen := make(map[int]bool, len(qubits))
	for _, q := range qubits {
		if seen[q] {
			return nil, fmt.Errorf("gate: qubit %d measured twice in register %q", q, register)
		}
		seen[q] = true
	}
	return &Measure{base: newBase("measure", qubits, nil), register: register}, nil
}

// Register returns the register name the gate was created with.
func (g *Measure) Register() string { return g.register }

// Copy returns an independent measurement gate with the same qubits,
// so a fused circuit's registers cannot be grown through the original.
func (g *Measure) Copy() *Measure {
	cp := *g
	cp.base.targets = append([]int(nil), g.base.targets...)
	cp.base.controls = append([]int(nil), g.base.controls...)
	return &cp
}

// Absorb extends the measured qubit tuple with another measurement
// gate's qubits. Fails when the tuples overlap.
func (g *Measure) Absorb(other *Measure) error {
	seen := make(map[int]bool, len(g.targets))
	for _, q := range g.targets {
		seen[q] = true
	}
	for _, q := range other.targets {
		if seen[q] {
			return fmt.Errorf("gate: qubit %d already measured", q)
		}
		g.targets = append(g.targets, q)
	}
	return nil
}

func (g *Measure) Apply(env *Env, state *tensor.Tensor) (*tensor.Tensor, error) {
	return state, nil
}
