package core

import (
	"math"
	"testing"
)

func TestClamp(t *testing.T) {
	tests := []struct {
		name            string
		value, min, max float64
		want            float64
	}{
		{"below", -1, 0, 1, 0},
		{"above", 2, 0, 1, 1},
		{"inside", 0.5, 0, 1, 0.5},
		{"at min", 0, 0, 1, 0},
		{"at max", 1, 0, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clamp(tt.value, tt.min, tt.max); got != tt.want {
				t.Fatalf("Clamp(%v, %v, %v) = %v, want %v",
					tt.value, tt.min, tt.max, got, tt.want)
			}
		})
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"nan", math.NaN(), 0},
		{"pos inf", math.Inf(1), 0},
		{"neg inf", math.Inf(-1), 0},
		{"normal", 0.5, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.in); got != tt.want {
				t.Fatalf("Sanitize(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFlushDenormals(t *testing.T) {
	if got := FlushDenormals(1e-40); got != 0 {
		t.Fatalf("FlushDenormals(1e-40) = %v, want 0", got)
	}

	if got := FlushDenormals(0.5); got != 0.5 {
		t.Fatalf("FlushDenormals(0.5) = %v, want 0.5", got)
	}
}

func TestDBConversionRoundTrip(t *testing.T) {
	for _, db := range []float64{-60, -12, -6, 0, 6, 24} {
		lin := DBToLinear(db)
		if got := LinearToDB(lin); math.Abs(got-db) > 1e-9 {
			t.Fatalf("LinearToDB(DBToLinear(%v)) = %v", db, got)
		}
	}

	if got := DBToLinear(0); math.Abs(got-1) > 1e-12 {
		t.Fatalf("DBToLinear(0) = %v, want 1", got)
	}

	if got := DBToLinear(6.0205999132796239); math.Abs(got-2) > 1e-9 {
		t.Fatalf("DBToLinear(+6.02 dB) = %v, want 2", got)
	}
}

func TestSoftClipIsIdentityBelowThreshold(t *testing.T) {
	for _, x := range []float64{-0.5, -0.1, 0, 0.3, 0.69} {
		if got := SoftClip(x, 0.7); got != x {
			t.Fatalf("SoftClip(%v, 0.7) = %v, want identity", x, got)
		}
	}
}

func TestSoftClipStaysMonotonicAndBounded(t *testing.T) {
	prev := math.Inf(-1)

	for x := -4.0; x <= 4.0; x += 0.01 {
		y := SoftClip(x, 0.7)

		if y < prev {
			t.Fatalf("SoftClip not monotonic at %v: %v < %v", x, y, prev)
		}

		if math.Abs(y) > 1 {
			t.Fatalf("SoftClip(%v) = %v, out of range", x, y)
		}

		prev = y
	}
}

func TestHardLimit(t *testing.T) {
	if got := HardLimit(1.5, 0.98); got != 0.98 {
		t.Fatalf("HardLimit(1.5) = %v, want 0.98", got)
	}

	if got := HardLimit(-1.5, 0.98); got != -0.98 {
		t.Fatalf("HardLimit(-1.5) = %v, want -0.98", got)
	}

	if got := HardLimit(0.5, 0.98); got != 0.5 {
		t.Fatalf("HardLimit(0.5) = %v, want 0.5", got)
	}
}

func TestDCBlockerRemovesOffset(t *testing.T) {
	dc, err := NewDCBlocker(0.995)
	if err != nil {
		t.Fatalf("NewDCBlocker() error = %v", err)
	}

	out := 0.0
	for i := 0; i < 48000; i++ {
		out = dc.ProcessSample(1.0)
	}

	if math.Abs(out) > 0.01 {
		t.Fatalf("DC residue after 1 s = %v", out)
	}
}

func TestDCBlockerRejectsBadCoefficient(t *testing.T) {
	if _, err := NewDCBlocker(1.5); err == nil {
		t.Fatal("NewDCBlocker(1.5) should fail")
	}

	if _, err := NewDCBlocker(-0.1); err == nil {
		t.Fatal("NewDCBlocker(-0.1) should fail")
	}
}

func TestMaxAbs(t *testing.T) {
	if got := MaxAbs([]float64{0.1, -0.7, 0.3}); got != 0.7 {
		t.Fatalf("MaxAbs() = %v, want 0.7", got)
	}

	if got := MaxAbs(nil); got != 0 {
		t.Fatalf("MaxAbs(nil) = %v, want 0", got)
	}
}

func TestEnsureLen(t *testing.T) {
	buf := make([]float64, 4, 16)

	grown := EnsureLen(buf, 8)
	if len(grown) != 8 {
		t.Fatalf("len = %d, want 8", len(grown))
	}

	shrunk := EnsureLen(grown, 2)
	if len(shrunk) != 2 {
		t.Fatalf("len = %d, want 2", len(shrunk))
	}
}
