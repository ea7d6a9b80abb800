package window

import (
	"math"
	"testing"
)

func TestHannEndpointsAndPeak(t *testing.T) {
	w := Hann(64)

	if len(w) != 64 {
		t.Fatalf("len = %d, want 64", len(w))
	}

	if w[0] != 0 {
		t.Fatalf("w[0] = %v, want 0", w[0])
	}

	// Periodic Hann peaks at n/2.
	if math.Abs(w[32]-1) > 1e-12 {
		t.Fatalf("w[32] = %v, want 1", w[32])
	}
}

func TestHannOverlapAddsToConstant(t *testing.T) {
	// Periodic Hann at 50 % overlap sums to 1 everywhere.
	const n = 128

	w := Hann(n)

	for i := 0; i < n/2; i++ {
		sum := w[i] + w[i+n/2]
		if math.Abs(sum-1) > 1e-12 {
			t.Fatalf("overlap sum at %d = %v, want 1", i, sum)
		}
	}
}

func TestApplyInPlaceMatchesScalarProduct(t *testing.T) {
	w := Hann(64)

	buf := make([]float64, 64)
	want := make([]float64, 64)

	for i := range buf {
		buf[i] = math.Sin(0.1 * float64(i))
		want[i] = buf[i] * w[i]
	}

	ApplyInPlace(buf, w)

	for i := range buf {
		if math.Abs(buf[i]-want[i]) > 1e-15 {
			t.Fatalf("buf[%d] = %v, want %v", i, buf[i], want[i])
		}
	}
}

func TestHannPoissonSuppressesEdges(t *testing.T) {
	plain := Hann(256)
	tapered := HannPoisson(256, 2)

	if tapered[64] >= plain[64] {
		t.Fatalf("taper did not reduce off-center value: %v >= %v", tapered[64], plain[64])
	}

	mid := 127
	if math.Abs(tapered[mid]-plain[mid]) > 0.02 {
		t.Fatalf("taper changed the center too much: %v vs %v", tapered[mid], plain[mid])
	}
}

func TestKaiserIsSymmetricAndNormalized(t *testing.T) {
	w := Kaiser(65, 8)

	if math.Abs(w[32]-1) > 1e-12 {
		t.Fatalf("center = %v, want 1", w[32])
	}

	for i := 0; i < 32; i++ {
		if math.Abs(w[i]-w[64-i]) > 1e-12 {
			t.Fatalf("asymmetry at %d: %v vs %v", i, w[i], w[64-i])
		}
	}

	// Larger beta narrows the window.
	wide := Kaiser(65, 2)
	if w[8] >= wide[8] {
		t.Fatalf("beta 8 edge %v not below beta 2 edge %v", w[8], wide[8])
	}
}

func TestZeroLengthReturnsNil(t *testing.T) {
	if Hann(0) != nil || HannPoisson(0, 1) != nil || Kaiser(-1, 8) != nil {
		t.Fatal("non-positive lengths should return nil")
	}
}
