package dither

import (
	"math"
	"testing"
)

func TestQuantizerStaysWithinOneStep(t *testing.T) {
	q, err := NewQuantizer(16, WithSeed(1))
	if err != nil {
		t.Fatalf("NewQuantizer() error = %v", err)
	}

	for i := 0; i < 10000; i++ {
		in := math.Sin(float64(i) * 0.01)
		out := q.Process(in)

		// TPDF dither adds up to two steps of noise around the ideal
		// value.
		if math.Abs(out-in) > 3.0/32767 {
			t.Fatalf("sample %d: in %v out %v", i, in, out)
		}
	}
}

func TestQuantizerClipsAtRails(t *testing.T) {
	q, err := NewQuantizer(16, WithDither(None))
	if err != nil {
		t.Fatalf("NewQuantizer() error = %v", err)
	}

	if got := q.ProcessInteger(2.0); got != 32767 {
		t.Fatalf("ProcessInteger(2) = %d, want 32767", got)
	}

	if got := q.ProcessInteger(-2.0); got != -32768 {
		t.Fatalf("ProcessInteger(-2) = %d, want -32768", got)
	}
}

func TestQuantizerSeedIsReproducible(t *testing.T) {
	a, _ := NewQuantizer(16, WithSeed(42))
	b, _ := NewQuantizer(16, WithSeed(42))

	for i := 0; i < 1000; i++ {
		in := math.Sin(float64(i) * 0.3)
		if a.ProcessInteger(in) != b.ProcessInteger(in) {
			t.Fatalf("sequences diverge at sample %d", i)
		}
	}
}

func TestQuantizerTPDFDecorrelatesError(t *testing.T) {
	plain, _ := NewQuantizer(8, WithDither(None))
	dithered, _ := NewQuantizer(8, WithSeed(3))

	// A tiny DC offset truncates to silence without dither but keeps
	// its average with TPDF.
	const dc = 0.25 / 127

	sumPlain, sumDith := 0.0, 0.0
	for i := 0; i < 200000; i++ {
		sumPlain += plain.Process(dc)
		sumDith += dithered.Process(dc)
	}

	if sumPlain != 0 {
		t.Fatalf("undithered DC below half a step should truncate to 0, got %v", sumPlain)
	}

	mean := sumDith / 200000
	if math.Abs(mean-dc) > dc*0.2 {
		t.Fatalf("dithered mean = %v, want about %v", mean, dc)
	}
}

func TestNoiseShapingKeepsDCAccuracy(t *testing.T) {
	q, err := NewQuantizer(8, WithDither(None), WithNoiseShaping(true))
	if err != nil {
		t.Fatalf("NewQuantizer() error = %v", err)
	}

	// Error feedback alone preserves sub-step DC on average.
	const dc = 0.3 / 127

	sum := 0.0
	for i := 0; i < 100000; i++ {
		sum += q.Process(dc)
	}

	mean := sum / 100000
	if math.Abs(mean-dc) > dc*0.1 {
		t.Fatalf("shaped mean = %v, want about %v", mean, dc)
	}
}

func TestQuantizerRejectsBadDepth(t *testing.T) {
	if _, err := NewQuantizer(1); err == nil {
		t.Fatal("NewQuantizer(1) should fail")
	}

	if _, err := NewQuantizer(33); err == nil {
		t.Fatal("NewQuantizer(33) should fail")
	}
}
