package gate

import (
	"math"
	"math/cmplx"

	"github.com/nvandessel/qsim/internal/tensor"
)

func mat2(a, b, c, d complex128) *tensor.Tensor {
	m, _ := tensor.FromSlice([]complex128{a, b, c, d}, 2, 2)
	return m
}

var invSqrt2 = complex(1/math.Sqrt2, 0)

func identityMatrix() *tensor.Tensor { return mat2(1, 0, 0, 1) }
func xMatrix() *tensor.Tensor        { return mat2(0, 1, 1, 0) }
func yMatrix() *tensor.Tensor        { return mat2(0, -1i, 1i, 0) }
func zMatrix() *tensor.Tensor        { return mat2(1, 0, 0, -1) }
func hMatrix() *tensor.Tensor        { return mat2(invSqrt2, invSqrt2, invSqrt2, -invSqrt2) }

func phaseMatrix(phi float64) *tensor.Tensor {
	return mat2(1, 0, 0, cmplx.Exp(complex(0, phi)))
}

func swapMatrix() *tensor.Tensor {
	m, _ := tensor.FromSlice([]complex128{
		1, 0, 0, 0,
		0, 0, 1, 0,
		0, 1, 0, 0,
		0, 0, 0, 1,
	}, 4, 4)
	return m
}

func rxMatrix(theta float64) *tensor.Tensor {
	c := complex(math.Cos(theta/2), 0)
	js := complex(0, -math.Sin(theta/2))
	return mat2(c, js, js, c)
}

func ryMatrix(theta float64) *tensor.Tensor {
	c := complex(math.Cos(theta/2), 0)
	s := complex(math.Sin(theta/2), 0)
	return mat2(c, -s, s, c)
}

func rzMatrix(theta float64) *tensor.Tensor {
	e := cmplx.Exp(complex(0, theta/2))
	return mat2(cmplx.Conj(e), 0, 0, e)
}
