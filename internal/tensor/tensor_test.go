package tensor

import (
	"testing"
)

func TestFromSlice(t *testing.T) {
	tests := []struct {
		name    string
		data    []complex128
		shape   []int
		wantErr bool
	}{
		{
			name:  "matching shape",
			data:  []complex128{1, 2, 3, 4},
			shape: []int{2, 2},
		},
		{
			name:  "vector",
			data:  []complex128{1, 0},
			shape: []int{2},
		},
		{
			name:    "size mismatch",
			data:    []complex128{1, 2, 3},
			shape:   []int{2, 2},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromSlice(tt.data, tt.shape...)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("FromSlice(%v, %v) expected error, got nil", tt.data, tt.shape)
				}
				return
			}
			if err != nil {
				t.Fatalf("FromSlice: %v", err)
			}
			if got.Size() != len(tt.data) {
				t.Errorf("Size() = %d, want %d", got.Size(), len(tt.data))
			}
		})
	}
}

func TestReshapeSharesBuffer(t *testing.T) {
	orig, err := FromSlice([]complex128{1, 2, 3, 4}, 4)
	if err != nil {
		t.Fatalf("FromSlice: %v", err)
	}
	view, err := orig.Reshape(2, 2)
	if err != nil {
		t.Fatalf("Reshape: %v", err)
	}
	view.Data()[0] = 9
	if orig.Data()[0] != 9 {
		t.Errorf("reshape did not share buffer: got %v", orig.Data()[0])
	}

	if _, err := orig.Reshape(3); err == nil {
		t.Error("Reshape(3) on size-4 tensor expected error")
	}
}

func TestMatMul(t *testing.T) {
	// X * |0> = |1>
	x, _ := FromSlice([]complex128{0, 1, 1, 0}, 2, 2)
	zero, _ := FromSlice([]complex128{1, 0}, 2, 1)

	got, err := MatMul(x, zero)
	if err != nil {
		t.Fatalf("MatMul: %v", err)
	}
	want, _ := FromSlice([]complex128{0, 1}, 2, 1)
	if !AllClose(got, want, 1e-12) {
		t.Errorf("X|0> = %v, want %v", got.Data(), want.Data())
	}

	bad, _ := FromSlice([]complex128{1, 0, 0}, 3, 1)
	if _, err := MatMul(x, bad); err == nil {
		t.Error("MatMul with mismatched inner dims expected error")
	}
}

func TestKron(t *testing.T) {
	x, _ := FromSlice([]complex128{0, 1, 1, 0}, 2, 2)
	id := Identity(2)

	got, err := Kron(id, x)
	if err != nil {
		t.Fatalf("Kron: %v", err)
	}
	want, _ := FromSlice([]complex128{
		0, 1, 0, 0,
		1, 0, 0, 0,
		0, 0, 0, 1,
		0, 0, 1, 0,
	}, 4, 4)
	if !AllClose(got, want, 1e-12) {
		t.Errorf("I⊗X = %v, want %v", got.Data(), want.Data())
	}
}

func TestOuterPromotesPureState(t *testing.T) {
	// |+> = (|0> + |1>)/sqrt(2); |+><+| has all entries 0.5.
	s := complex(0.7071067811865476, 0)
	plus, _ := FromSlice([]complex128{s, s}, 2)

	rho := Outer(plus, plus)
	want, _ := FromSlice([]complex128{0.5, 0.5, 0.5, 0.5}, 2, 2)
	if !AllClose(rho, want, 1e-12) {
		t.Errorf("|+><+| = %v, want %v", rho.Data(), want.Data())
	}
}

func TestConjAndScale(t *testing.T) {
	a, _ := FromSlice([]complex128{1 + 2i, -3i}, 2)
	c := a.Conj()
	if c.Data()[0] != 1-2i || c.Data()[1] != 3i {
		t.Errorf("Conj() = %v", c.Data())
	}
	// Conj must not mutate the original.
	if a.Data()[0] != 1+2i {
		t.Errorf("Conj mutated receiver: %v", a.Data())
	}

	a.Scale(2)
	if a.Data()[0] != 2+4i {
		t.Errorf("Scale(2) = %v", a.Data())
	}
}

func TestNorm(t *testing.T) {
	a, _ := FromSlice([]complex128{3, 4i}, 2)
	if got := a.Norm(); got < 4.999999 || got > 5.000001 {
		t.Errorf("Norm() = %v, want 5", got)
	}
}
