package circuit

import (
	"fmt"
	"sort"

	"github.com/nvandessel/qsim/internal/gate"
	"github.com/nvandessel/qsim/internal/tensor"
)

// FusionGroup is a maximal run of adjacent gates whose combined action
// fits on at most two qubits, composed into one dense unitary. A group
// of two qubits that never entangles them cannot be expressed as one
// two-qubit block losslessly in this convention; it is emitted as one
// unitary per qubit, the second being the group's additional unitary.
// Measurement, callback and channel gates are never absorbed; they form
// single-gate passthrough groups that bound their neighbors.
type FusionGroup struct {
	Gates      []gate.Gate
	Qubits     []int
	Unitary    *gate.Unitary
	Additional *gate.Unitary

	passthrough gate.Gate
}

// Passthrough reports whether the group carries a gate that fusion
// cannot absorb.
func (g *FusionGroup) Passthrough() bool { return g.passthrough != nil }

// Fuse returns a new equivalent circuit whose queue holds one fused
// unitary per group. The receiver is never mutated: immutable gates are
// shared with the copy, trainable parametrized gates are deep-copied so
// later parameter updates stay independent.
func (c *Circuit) Fuse() (*Circuit, error) {
	cp := c.fuseCopy()
	groups := groupQueue(cp.queue)
	cp.queue = nil
	for _, grp := range groups {
		if grp.passthrough != nil {
			cp.queue = append(cp.queue, grp.passthrough)
			continue
		}
		if err := grp.compose(); err != nil {
			return nil, err
		}
		for _, fused := range []*gate.Unitary{grp.Unitary, grp.Additional} {
			if fused == nil {
				continue
			}
			if err := fused.Prepare(c.nqubits); err != nil {
				return nil, err
			}
			cp.queue = append(cp.queue, fused)
		}
	}
	cp.fusionInfo = groups
	return cp, nil
}

// FusionGroups returns the groups a fused circuit was built from. Nil
// for circuits that were not produced by Fuse.
func (c *Circuit) FusionGroups() []*FusionGroup {
	return append([]*FusionGroup(nil), c.fusionInfo...)
}

// fuseCopy clones the circuit for fusion. Only trainable parametrized
// gates get an independent copy; everything else is read-only after
// preparation and shared by reference.
func (c *Circuit) fuseCopy() *Circuit {
	cp := &Circuit{
		nqubits:     c.nqubits,
		density:     c.density,
		shapes:      c.shapes,
		hasChannel:  c.hasChannel,
		registers:   c.Registers(),
		regOrder:    append([]string(nil), c.regOrder...),
		seed:        c.seed,
		seedDefined: c.seedDefined,
	}
	if c.measure != nil {
		cp.measure = c.measure.Copy()
	}
	cp.queue = make([]gate.Gate, 0, len(c.queue))
	for _, g := range c.queue {
		if rot, ok := g.(*gate.Rotation); ok && rot.Trainable() {
			cp.queue = append(cp.queue, rot.CopyParametrized())
			continue
		}
		cp.queue = append(cp.queue, g)
	}
	return cp
}

// groupQueue partitions a queue by a greedy left-to-right scan: the
// current group absorbs the next gate while the union of touched qubits
// stays within two.
func groupQueue(queue []gate.Gate) []*FusionGroup {
	var groups []*FusionGroup
	var cur *FusionGroup
	flush := func() {
		if cur != nil {
			groups = append(groups, cur)
			cur = nil
		}
	}

	for _, g := range queue {
		if _, ok := g.(gate.Matrixer); !ok || len(g.Qubits()) > 2 {
			flush()
			groups = append(groups, &FusionGroup{Gates: []gate.Gate{g}, passthrough: g})
			continue
		}
		gq := sortedUnique(g.Qubits())
		if cur == nil {
			cur = &FusionGroup{Gates: []gate.Gate{g}, Qubits: gq}
			continue
		}
		union := unionQubits(cur.Qubits, gq)
		if len(union) <= 2 {
			cur.Gates = append(cur.Gates, g)
			cur.Qubits = union
			continue
		}
		flush()
		cur = &FusionGroup{Gates: []gate.Gate{g}, Qubits: gq}
	}
	flush()
	return groups
}

func sortedUnique(qs []int) []int {
	out := append([]int(nil), qs...)
	sort.Ints(out)
	n := 0
	for i, q := range out {
		if i == 0 || q != out[i-1] {
			out[n] = q
			n++
		}
	}
	return out[:n]
}

func unionQubits(a, b []int) []int {
	return sortedUnique(append(append([]int(nil), a...), b...))
}

// compose multiplies the group's gates into dense unitaries in
// application order: later gates left-multiply earlier ones.
func (grp *FusionGroup) compose() error {
	switch len(grp.Qubits) {
	case 1:
		m, err := composeOnQubit(grp.Gates, grp.Qubits[0])
		if err != nil {
			return err
		}
		grp.Unitary, err = gate.NewUnitary("fused", m, grp.Qubits[0])
		return err
	case 2:
		a, b := grp.Qubits[0], grp.Qubits[1]
		if grp.entangling() {
			m := tensor.Identity(4)
			for _, g := range grp.Gates {
				gm, err := matrixOnPair(g.(gate.Matrixer), a, b)
				if err != nil {
					return err
				}
				if m, err = tensor.MatMul(gm, m); err != nil {
					return err
				}
			}
			var err error
			grp.Unitary, err = gate.NewUnitary("fused", m, a, b)
			return err
		}
		// No entangling gate: the group factors into independent
		// single-qubit products.
		ma, err := composeOnQubit(gatesOnQubit(grp.Gates, a), a)
		if err != nil {
			return err
		}
		mb, err := composeOnQubit(gatesOnQubit(grp.Gates, b), b)
		if err != nil {
			return err
		}
		if grp.Unitary, err = gate.NewUnitary("fused", ma, a); err != nil {
			return err
		}
		grp.Additional, err = gate.NewUnitary("fused", mb, b)
		return err
	default:
		return fmt.Errorf("circuit: fusion group spans %d qubits", len(grp.Qubits))
	}
}

func (grp *FusionGroup) entangling() bool {
	for _, g := range grp.Gates {
		if len(sortedUnique(g.Qubits())) == 2 {
			return true
		}
	}
	return false
}

func gatesOnQubit(gates []gate.Gate, q int) []gate.Gate {
	var out []gate.Gate
	for _, g := range gates {
		if len(g.Qubits()) > 0 && g.Qubits()[0] == q {
			out = append(out, g)
		}
	}
	return out
}

func composeOnQubit(gates []gate.Gate, q int) (*tensor.Tensor, error) {
	m := tensor.Identity(2)
	for _, g := range gates {
		gm, err := g.(gate.Matrixer).ExpandedMatrix()
		if err != nil {
			return nil, err
		}
		if m, err = tensor.MatMul(gm, m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// matrixOnPair expands a gate's matrix onto the ordered qubit pair
// (a, b), a most significant.
func matrixOnPair(g gate.Matrixer, a, b int) (*tensor.Tensor, error) {
	em, err := g.ExpandedMatrix()
	if err != nil {
		return nil, err
	}
	gq := g.Qubits()
	switch len(gq) {
	case 1:
		if gq[0] == a {
			return tensor.Kron(em, tensor.Identity(2))
		}
		return tensor.Kron(tensor.Identity(2), em)
	case 2:
		if gq[0] == a && gq[1] == b {
			return em, nil
		}
		// Gate declares its qubits in (b, a) order: conjugate by SWAP.
		swapped, err := tensor.MatMul(swap4(), em)
		if err != nil {
			return nil, err
		}
		return tensor.MatMul(swapped, swap4())
	default:
		return nil, fmt.Errorf("circuit: gate %q touches %d qubits, cannot expand onto a pair", g.Name(), len(gq))
	}
}

func swap4() *tensor.Tensor {
	m, _ := tensor.FromSlice([]complex128{
		1, 0, 0, 0,
		0, 0, 1, 0,
		0, 1, 0, 0,
		0, 0, 0, 1,
	}, 4, 4)
	return m
}
