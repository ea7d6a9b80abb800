package delay

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-rack/dsp/interp"
)

func TestNewRoundsUpToPowerOfTwo(t *testing.T) {
	l, err := New(1000)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if got := l.Len(); got != 1024 {
		t.Fatalf("Len() = %d, want 1024", got)
	}

	if got := l.MaxDelay(); got != 1020 {
		t.Fatalf("MaxDelay() = %v, want 1020", got)
	}
}

func TestNewRejectsNonPositiveCapacity(t *testing.T) {
	if _, err := New(0); err == nil {
		t.Fatal("New(0) should fail")
	}

	if _, err := New(-5); err == nil {
		t.Fatal("New(-5) should fail")
	}
}

func TestIntegerReadRecalls(t *testing.T) {
	l, err := New(64)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	for i := 0; i < 64; i++ {
		l.Write(float64(i))
	}

	// Delay 1 is the newest sample.
	if got := l.Read(1); got != 63 {
		t.Fatalf("Read(1) = %v, want 63", got)
	}

	if got := l.Read(10); got != 54 {
		t.Fatalf("Read(10) = %v, want 54", got)
	}
}

func TestOutOfRangeReadsAreSilent(t *testing.T) {
	l, err := New(64)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	l.Write(1)

	if got := l.Read(0); got != 0 {
		t.Fatalf("Read(0) = %v, want 0", got)
	}

	if got := l.ReadFractional(0.5); got != 0 {
		t.Fatalf("ReadFractional(0.5) = %v, want 0", got)
	}

	if got := l.ReadFractional(l.MaxDelay() + 1); got != 0 {
		t.Fatalf("ReadFractional(beyond max) = %v, want 0", got)
	}

	if got := l.ReadFractional(math.NaN()); got != 0 {
		t.Fatalf("ReadFractional(NaN) = %v, want 0", got)
	}
}

func TestFractionalReadInterpolatesRamp(t *testing.T) {
	for _, mode := range []interp.Mode{interp.Linear, interp.Hermite} {
		l, err := New(128, WithMode(mode))
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}

		// A linear ramp is reproduced exactly by both kernels.
		for i := 0; i < 128; i++ {
			l.Write(float64(i) * 0.25)
		}

		got := l.ReadFractional(10.5)
		want := (127 - 9.5) * 0.25

		if math.Abs(got-want) > 1e-9 {
			t.Fatalf("mode %d: ReadFractional(10.5) = %v, want %v", mode, got, want)
		}
	}
}

func TestFractionalReadAcrossWrap(t *testing.T) {
	l, err := New(64)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// Push more than one full ring so reads straddle the wrap point.
	for i := 0; i < 200; i++ {
		l.Write(float64(i))
	}

	for d := 1.25; d < 50; d += 3.17 {
		got := l.ReadFractional(d)
		want := 199 - (d - 1)

		if math.Abs(got-want) > 1e-9 {
			t.Fatalf("ReadFractional(%v) = %v, want %v", d, got, want)
		}
	}
}

func TestFractionalReadNearWriteHead(t *testing.T) {
	l, err := New(64)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// Pollute the ring so any tap straying to delay 0 picks up the stale
	// sample from one revolution ago instead of silence.
	for i := 0; i < 64; i++ {
		l.Write(1000)
	}

	for i := 0; i < 64; i++ {
		l.Write(float64(i))
	}

	for _, d := range []float64{1.1, 1.5, 1.9} {
		got := l.ReadFractional(d)
		want := 63 - (d - 1)

		if math.Abs(got-want) > 1e-9 {
			t.Fatalf("ReadFractional(%v) = %v, want %v", d, got, want)
		}
	}
}

func TestResetClears(t *testing.T) {
	l, err := New(32)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	for i := 0; i < 40; i++ {
		l.Write(1)
	}

	l.Reset()

	for d := 1; d <= l.Len(); d++ {
		if got := l.Read(d); got != 0 {
			t.Fatalf("Read(%d) after Reset = %v", d, got)
		}
	}
}
