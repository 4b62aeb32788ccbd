// Package circuitfile loads circuit descriptions from YAML files.
package circuitfile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nvandessel/qsim/internal/circuit"
	"github.com/nvandessel/qsim/internal/gate"
)

// File is the on-disk circuit description.
type File struct {
	Name          string     `yaml:"name,omitempty"`
	NQubits       int        `yaml:"nqubits"`
	DensityMatrix bool       `yaml:"density_matrix,omitempty"`
	Seed          *uint64    `yaml:"seed,omitempty"`
	Gates         []GateSpec `yaml:"gates"`
}

// GateSpec is one entry in the gate list. Which fields apply depends
// on the gate name: rotations need theta, noise entries need
// probabilities, measure takes a register name.
type GateSpec struct {
	Name     string   `yaml:"gate"`
	Targets  []int    `yaml:"targets,omitempty"`
	Control  *int     `yaml:"control,omitempty"`
	Theta    *float64 `yaml:"theta,omitempty"`
	PX       float64  `yaml:"px,omitempty"`
	PY       float64  `yaml:"py,omitempty"`
	PZ       float64  `yaml:"pz,omitempty"`
	P        float64  `yaml:"p,omitempty"`
	Register string   `yaml:"register,omitempty"`
}

// Load reads and builds a circuit from the YAML file at path.
func Load(path string) (*circuit.Circuit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read circuit file: %w", err)
	}
	return Parse(data)
}

// Parse builds a circuit from YAML bytes.
func Parse(data []byte) (*circuit.Circuit, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse circuit file: %w", err)
	}
	return f.Build()
}

// Build constructs the described circuit.
func (f *File) Build() (*circuit.Circuit, error) {
	var (
		c   *circuit.Circuit
		err error
	)
	if f.DensityMatrix {
		c, err = circuit.NewDensityMatrix(f.NQubits)
	} else {
		c, err = circuit.New(f.NQubits)
	}
	if err != nil {
		return nil, err
	}
	if f.Seed != nil {
		c.SetSeed(*f.Seed)
	}

	for i, spec := range f.Gates {
		g, err := spec.build()
		if err != nil {
			return nil, fmt.Errorf("gate %d (%s): %w", i, spec.Name, err)
		}
		if err := c.Add(g); err != nil {
			return nil, fmt.Errorf("gate %d (%s): %w", i, spec.Name, err)
		}
	}
	return c, nil
}

func (s *GateSpec) build() (gate.Gate, error) {
	switch s.Name {
	case "i", "x", "y", "z", "h", "s", "sdg", "t", "tdg":
		q, err := s.oneTarget()
		if err != nil {
			return nil, err
		}
		return fixedGate(s.Name, q), nil
	case "rx", "ry", "rz", "u1":
		q, err := s.oneTarget()
		if err != nil {
			return nil, err
		}
		if s.Theta == nil {
			return nil, fmt.Errorf("missing theta")
		}
		return rotationGate(s.Name, q, *s.Theta), nil
	case "cx", "cnot":
		q, err := s.oneTarget()
		if err != nil {
			return nil, err
		}
		if s.Control == nil {
			return nil, fmt.Errorf("missing control")
		}
		return gate.CNOT(*s.Control, q), nil
	case "cz":
		q, err := s.oneTarget()
		if err != nil {
			return nil, err
		}
		if s.Control == nil {
			return nil, fmt.Errorf("missing control")
		}
		return gate.CZ(*s.Control, q), nil
	case "swap":
		if len(s.Targets) != 2 {
			return nil, fmt.Errorf("expected 2 targets, got %d", len(s.Targets))
		}
		return gate.SWAP(s.Targets[0], s.Targets[1]), nil
	case "pauli_noise":
		q, err := s.oneTarget()
		if err != nil {
			return nil, err
		}
		return gate.NewPauliNoise(q, s.PX, s.PY, s.PZ)
	case "depolarizing":
		q, err := s.oneTarget()
		if err != nil {
			return nil, err
		}
		return gate.NewDepolarizing(q, s.P)
	case "measure":
		if len(s.Targets) == 0 {
			return nil, fmt.Errorf("expected at least 1 target")
		}
		return gate.NewMeasure(s.Register, s.Targets...)
	case "":
		return nil, fmt.Errorf("missing gate name")
	default:
		return nil, fmt.Errorf("unknown gate %q", s.Name)
	}
}

func (s *GateSpec) oneTarget() (int, error) {
	if len(s.Targets) != 1 {
		return 0, fmt.Errorf("expected 1 target, got %d", len(s.Targets))
	}
	return s.Targets[0], nil
}

func fixedGate(name string, q int) gate.Gate {
	switch name {
	case "i":
		return gate.I(q)
	case "x":
		return gate.X(q)
	case "y":
		return gate.Y(q)
	case "z":
		return gate.Z(q)
	case "h":
		return gate.H(q)
	case "s":
		return gate.S(q)
	case "sdg":
		return gate.Sdg(q)
	case "t":
		return gate.T(q)
	default:
		return gate.Tdg(q)
	}
}

func rotationGate(name string, q int, theta float64) gate.Gate {
	switch name {
	case "rx":
		return gate.RX(q, theta)
	case "ry":
		return gate.RY(q, theta)
	case "rz":
		return gate.RZ(q, theta)
	default:
		return gate.U1(q, theta)
	}
}
