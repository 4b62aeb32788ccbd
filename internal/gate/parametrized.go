package gate

import (
	"github.com/nvandessel/qsim/internal/tensor"
)

// Rotation is a single-parameter gate (RX, RY, RZ, U1). The parameter
// is mutable until execution; trainable rotations are deep-copied on
// circuit fusion so optimization on the copy never touches the
// original.
type Rotation struct {
	base
	theta     float64
	trainable bool
	build     func(theta float64) *tensor.Tensor
}

func newRotation(name string, q int, theta float64, build func(float64) *tensor.Tensor) *Rotation {
	return &Rotation{
		base:      newBase(name, []int{q}, nil),
		theta:     theta,
		trainable: true,
		build:     build,
	}
}

// RX rotates around the X axis by theta.
func RX(q int, theta float64) *Rotation { return newRotation("rx", q, theta, rxMatrix) }

// RY rotates around the Y axis by theta.
func RY(q int, theta float64) *Rotation { return newRotation("ry", q, theta, ryMatrix) }

// RZ rotates around the Z axis by theta.
func RZ(q int, theta float64) *Rotation { return newRotation("rz", q, theta, rzMatrix) }

// U1 applies a phase of theta to the |1> component.
func U1(q int, theta float64) *Rotation { return newRotation("u1", q, theta, phaseMatrix) }

// Parameter returns the current rotation angle.
func (g *Rotation) Parameter() float64 { return g.theta }

// SetParameter updates the rotation angle. The matrix is rebuilt on the
// next application.
func (g *Rotation) SetParameter(theta float64) { g.theta = theta }

// Trainable reports whether the parameter participates in optimization.
func (g *Rotation) Trainable() bool { return g.trainable }

// SetTrainable marks the parameter as frozen or trainable and returns
// the gate for chaining at construction.
func (g *Rotation) SetTrainable(trainable bool) *Rotation {
	g.trainable = trainable
	return g
}

// CopyParametrized returns an independent copy with its own parameter.
func (g *Rotation) CopyParametrized() *Rotation {
	cp := *g
	cp.base.targets = append([]int(nil), g.base.targets...)
	cp.base.controls = append([]int(nil), g.base.controls...)
	return &cp
}

func (g *Rotation) Matrix() (*tensor.Tensor, error) { return g.build(g.theta), nil }

func (g *Rotation) ExpandedMatrix() (*tensor.Tensor, error) {
	return expandControls(g.build(g.theta), len(g.controls))
}

func (g *Rotation) Apply(env *Env, state *tensor.Tensor) (*tensor.Tensor, error) {
	return applyDense(env, state, g.build(g.theta), g.targets, g.controls)
}
