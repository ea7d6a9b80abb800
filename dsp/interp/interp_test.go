package interp

import (
	"math"
	"testing"
)

func TestLinear2Endpoints(t *testing.T) {
	if got := Linear2(0, 2, 5); got != 2 {
		t.Fatalf("Linear2(0) = %v, want 2", got)
	}

	if got := Linear2(1, 2, 5); got != 5 {
		t.Fatalf("Linear2(1) = %v, want 5", got)
	}

	if got := Linear2(0.5, 2, 5); got != 3.5 {
		t.Fatalf("Linear2(0.5) = %v, want 3.5", got)
	}
}

func TestHermite4PassesThroughKnots(t *testing.T) {
	if got := Hermite4(0, -1, 3, 7, 2); got != 3 {
		t.Fatalf("Hermite4(t=0) = %v, want 3", got)
	}

	if got := Hermite4(1, -1, 3, 7, 2); math.Abs(got-7) > 1e-12 {
		t.Fatalf("Hermite4(t=1) = %v, want 7", got)
	}
}

func TestHermite4ReproducesLine(t *testing.T) {
	// On collinear points the cubic collapses to the line.
	for tt := 0.0; tt <= 1.0; tt += 0.125 {
		got := Hermite4(tt, 1, 2, 3, 4)
		want := 2 + tt

		if math.Abs(got-want) > 1e-12 {
			t.Fatalf("Hermite4(%v) = %v, want %v", tt, got, want)
		}
	}
}

func TestHermite4IsSmootherThanLinearOnSine(t *testing.T) {
	sample := func(i float64) float64 { return math.Sin(i * 0.3) }

	var errLin, errHerm float64

	for i := 2.0; i < 100; i++ {
		truth := sample(i + 0.5)
		lin := Linear2(0.5, sample(i), sample(i+1))
		herm := Hermite4(0.5, sample(i-1), sample(i), sample(i+1), sample(i+2))

		errLin += math.Abs(lin - truth)
		errHerm += math.Abs(herm - truth)
	}

	if errHerm >= errLin {
		t.Fatalf("hermite error %v not below linear error %v", errHerm, errLin)
	}
}
