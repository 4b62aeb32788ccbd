// Package tensor provides a minimal dense complex tensor used by the
// simulator core. A Tensor is a flat []complex128 buffer plus a shape;
// reshapes are views over the same buffer.
package tensor

import (
	"fmt"
	"math"
	"math/cmplx"
)

// Tensor is a dense complex-valued tensor in row-major layout.
type Tensor struct {
	data  []complex128
	shape []int
}

// New allocates a zero-filled tensor with the given shape.
func New(shape ...int) *Tensor {
	size := 1
	for _, d := range shape {
		size *= d
	}
	return &Tensor{data: make([]complex128, size), shape: append([]int(nil), shape...)}
}

// FromSlice wraps data in a tensor of the given shape. The data slice is
// not copied; the caller must not alias it afterwards. Returns an error
// when the element count does not match the shape.
func FromSlice(data []complex128, shape ...int) (*Tensor, error) {
	size := 1
	for _, d := range shape {
		size *= d
	}
	if len(data) != size {
		return nil, fmt.Errorf("tensor: %d elements do not fit shape %v", len(data), shape)
	}
	return &Tensor{data: data, shape: append([]int(nil), shape...)}, nil
}

// Data returns the underlying flat buffer.
func (t *Tensor) Data() []complex128 { return t.data }

// Shape returns the tensor's dimensions.
func (t *Tensor) Shape() []int { return append([]int(nil), t.shape...) }

// Size returns the total number of elements.
func (t *Tensor) Size() int { return len(t.data) }

// Reshape returns a view over the same buffer with a new shape.
func (t *Tensor) Reshape(shape ...int) (*Tensor, error) {
	size := 1
	for _, d := range shape {
		size *= d
	}
	if size != len(t.data) {
		return nil, fmt.Errorf("tensor: cannot reshape %v to %v", t.shape, shape)
	}
	return &Tensor{data: t.data, shape: append([]int(nil), shape...)}, nil
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	data := make([]complex128, len(t.data))
	copy(data, t.data)
	return &Tensor{data: data, shape: append([]int(nil), t.shape...)}
}

// Conj returns the elementwise complex conjugate as a new tensor.
func (t *Tensor) Conj() *Tensor {
	out := New(t.shape...)
	for i, v := range t.data {
		out.data[i] = cmplx.Conj(v)
	}
	return out
}

// Scale multiplies every element by s in place and returns t.
func (t *Tensor) Scale(s complex128) *Tensor {
	for i := range t.data {
		t.data[i] *= s
	}
	return t
}

// Add accumulates other into t elementwise. Shapes must have equal size.
func (t *Tensor) Add(other *Tensor) error {
	if len(t.data) != len(other.data) {
		return fmt.Errorf("tensor: size mismatch %d vs %d", len(t.data), len(other.data))
	}
	for i, v := range other.data {
		t.data[i] += v
	}
	return nil
}

// Outer computes the outer product a⊗conj(b) as a (len(a), len(b)) matrix.
// Used to promote a pure state vector to a density matrix.
func Outer(a, b *Tensor) *Tensor {
	out := New(len(a.data), len(b.data))
	for i, av := range a.data {
		for j, bv := range b.data {
			out.data[i*len(b.data)+j] = av * cmplx.Conj(bv)
		}
	}
	return out
}

// MatMul multiplies two matrices. Both tensors must be rank 2 with
// compatible inner dimensions.
func MatMul(a, b *Tensor) (*Tensor, error) {
	if len(a.shape) != 2 || len(b.shape) != 2 {
		return nil, fmt.Errorf("tensor: matmul requires rank-2 tensors, got %v x %v", a.shape, b.shape)
	}
	m, k := a.shape[0], a.shape[1]
	k2, n := b.shape[0], b.shape[1]
	if k != k2 {
		return nil, fmt.Errorf("tensor: matmul inner dimension mismatch %d vs %d", k, k2)
	}
	out := New(m, n)
	for i := 0; i < m; i++ {
		for l := 0; l < k; l++ {
			av := a.data[i*k+l]
			if av == 0 {
				continue
			}
			for j := 0; j < n; j++ {
				out.data[i*n+j] += av * b.data[l*n+j]
			}
		}
	}
	return out, nil
}

// Kron computes the Kronecker product of two matrices.
func Kron(a, b *Tensor) (*Tensor, error) {
	if len(a.shape) != 2 || len(b.shape) != 2 {
		return nil, fmt.Errorf("tensor: kron requires rank-2 tensors, got %v x %v", a.shape, b.shape)
	}
	am, an := a.shape[0], a.shape[1]
	bm, bn := b.shape[0], b.shape[1]
	out := New(am*bm, an*bn)
	cols := an * bn
	for i := 0; i < am; i++ {
		for j := 0; j < an; j++ {
			av := a.data[i*an+j]
			for k := 0; k < bm; k++ {
				for l := 0; l < bn; l++ {
					out.data[(i*bm+k)*cols+(j*bn+l)] = av * b.data[k*bn+l]
				}
			}
		}
	}
	return out, nil
}

// Identity returns the n x n identity matrix.
func Identity(n int) *Tensor {
	out := New(n, n)
	for i := 0; i < n; i++ {
		out.data[i*n+i] = 1
	}
	return out
}

// AllClose reports whether a and b agree elementwise within tol in
// absolute value. Tensors of different sizes are never close.
func AllClose(a, b *Tensor, tol float64) bool {
	if len(a.data) != len(b.data) {
		return false
	}
	for i := range a.data {
		if cmplx.Abs(a.data[i]-b.data[i]) > tol {
			return false
		}
	}
	return true
}

// Norm returns the Euclidean norm of the flattened tensor.
func (t *Tensor) Norm() float64 {
	var sum float64
	for _, v := range t.data {
		sum += real(v)*real(v) + imag(v)*imag(v)
	}
	return math.Sqrt(sum)
}
