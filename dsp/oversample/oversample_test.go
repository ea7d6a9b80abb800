package oversample

import (
	"math"
	"testing"
)

func TestNewValidatesArguments(t *testing.T) {
	tests := []struct {
		name     string
		factor   int
		maxBlock int
	}{
		{name: "factor 1", factor: 1, maxBlock: 512},
		{name: "factor 3", factor: 3, maxBlock: 512},
		{name: "factor 8", factor: 8, maxBlock: 512},
		{name: "zero block", factor: 2, maxBlock: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.factor, tt.maxBlock); err == nil {
				t.Errorf("New(%d, %d): want error", tt.factor, tt.maxBlock)
			}
		})
	}
}

func TestLatencyPerFactor(t *testing.T) {
	tests := []struct {
		factor int
		want   int
	}{
		{factor: 2, want: 32},
		{factor: 4, want: 48},
	}

	for _, tt := range tests {
		o, err := New(tt.factor, 512)
		if err != nil {
			t.Fatal(err)
		}

		if got := o.Factor(); got != tt.factor {
			t.Errorf("Factor() = %d, want %d", got, tt.factor)
		}

		if got := o.Latency(); got != tt.want {
			t.Errorf("factor %d: Latency() = %d, want %d", tt.factor, got, tt.want)
		}
	}
}

func TestUpsampledBlockLength(t *testing.T) {
	for _, factor := range []int{2, 4} {
		o, err := New(factor, 256)
		if err != nil {
			t.Fatal(err)
		}

		buf := make([]float64, 100)
		called := false
		o.Process(buf, func(up []float64) {
			called = true
			if len(up) != factor*len(buf) {
				t.Errorf("factor %d: len(up) = %d, want %d", factor, len(up), factor*len(buf))
			}
		})

		if !called {
			t.Fatalf("factor %d: processor was not invoked", factor)
		}
	}
}

func TestRoundTripIsDelayedIdentity(t *testing.T) {
	const (
		block  = 128
		blocks = 16
		freq   = 0.02 // cycles per sample, well inside the half-band passband
	)

	for _, factor := range []int{2, 4} {
		o, err := New(factor, block)
		if err != nil {
			t.Fatal(err)
		}

		n := block * blocks
		input := make([]float64, n)
		for i := range input {
			input[i] = math.Sin(2 * math.Pi * freq * float64(i))
		}

		output := make([]float64, n)
		for b := 0; b < blocks; b++ {
			chunk := output[b*block : (b+1)*block]
			copy(chunk, input[b*block:(b+1)*block])
			o.Process(chunk, func([]float64) {})
		}

		latency := o.Latency()
		for i := latency + 256; i < n; i++ {
			want := input[i-latency]
			if math.Abs(output[i]-want) > 0.01 {
				t.Fatalf("factor %d, sample %d: got %v, want %v", factor, i, output[i], want)
			}
		}
	}
}

func TestProcessorRunsAtHighRate(t *testing.T) {
	// A full-wave rectifier at 2x should alias less than the same
	// rectifier at the base rate; here just check the gain stage is
	// really applied through the up/down path.
	o, err := New(2, 256)
	if err != nil {
		t.Fatal(err)
	}

	n := 2048
	peak := 0.0
	for start := 0; start < n; start += 256 {
		buf := make([]float64, 256)
		for i := range buf {
			buf[i] = 0.25 * math.Sin(2*math.Pi*0.02*float64(start+i))
		}

		o.Process(buf, func(up []float64) {
			for i := range up {
				up[i] *= 2
			}
		})

		if start >= 512 {
			for _, v := range buf {
				if a := math.Abs(v); a > peak {
					peak = a
				}
			}
		}
	}

	if math.Abs(peak-0.5) > 0.01 {
		t.Fatalf("doubled peak = %v, want ~0.5", peak)
	}
}

func TestOversizedBlocksAreChunked(t *testing.T) {
	// A block beyond the construction-time maximum must not panic and
	// must produce the same samples as feeding the signal in small blocks.
	whole, err := New(2, 64)
	if err != nil {
		t.Fatal(err)
	}

	split, err := New(2, 64)
	if err != nil {
		t.Fatal(err)
	}

	n := 1000
	a := make([]float64, n)
	b := make([]float64, n)
	for i := range a {
		a[i] = math.Sin(2 * math.Pi * 0.03 * float64(i))
		b[i] = a[i]
	}

	gain := func(up []float64) {
		for i := range up {
			up[i] *= 0.5
		}
	}

	whole.Process(a, gain)
	for start := 0; start < n; start += 64 {
		end := start + 64
		if end > n {
			end = n
		}
		split.Process(b[start:end], gain)
	}

	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("sample %d: whole %v, split %v", i, a[i], b[i])
		}
	}
}

func TestResetClearsHistory(t *testing.T) {
	o, err := New(4, 64)
	if err != nil {
		t.Fatal(err)
	}

	buf := make([]float64, 64)
	buf[0] = 1
	o.Process(buf, func([]float64) {})

	o.Reset()

	silent := make([]float64, 64)
	o.Process(silent, func([]float64) {})

	for i, v := range silent {
		if v != 0 {
			t.Fatalf("sample %d after Reset: got %v, want 0", i, v)
		}
	}
}

func TestEmptyBlockIsIgnored(t *testing.T) {
	o, err := New(2, 64)
	if err != nil {
		t.Fatal(err)
	}

	called := false
	o.Process(nil, func([]float64) { called = true })

	if called {
		t.Fatal("processor invoked for an empty block")
	}
}
