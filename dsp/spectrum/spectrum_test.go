package spectrum

import (
	"math"
	"testing"
)

func TestPeakFrequencyFindsPureTone(t *testing.T) {
	tests := []struct {
		name string
		freq float64
	}{
		{"low", 110},
		{"mid", 440},
		{"off-bin", 1237},
		{"high", 7040},
	}

	const sampleRate = 48000.0

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			samples := make([]float64, 16384)
			for i := range samples {
				samples[i] = 0.5 * math.Sin(2*math.Pi*tt.freq*float64(i)/sampleRate)
			}

			got, err := PeakFrequency(samples, sampleRate)
			if err != nil {
				t.Fatalf("PeakFrequency() error = %v", err)
			}

			if math.Abs(got-tt.freq) > tt.freq*0.01 {
				t.Fatalf("PeakFrequency() = %v, want %v within 1%%", got, tt.freq)
			}
		})
	}
}

func TestPeakFrequencyPicksDominantPartial(t *testing.T) {
	const sampleRate = 48000.0

	samples := make([]float64, 16384)
	for i := range samples {
		tt := float64(i) / sampleRate
		samples[i] = 0.2*math.Sin(2*math.Pi*440*tt) + 0.6*math.Sin(2*math.Pi*880*tt)
	}

	got, err := PeakFrequency(samples, sampleRate)
	if err != nil {
		t.Fatalf("PeakFrequency() error = %v", err)
	}

	if math.Abs(got-880) > 880*0.01 {
		t.Fatalf("PeakFrequency() = %v, want 880", got)
	}
}

func TestPeakFrequencyRejectsShortInput(t *testing.T) {
	if _, err := PeakFrequency(make([]float64, 8), 48000); err == nil {
		t.Fatal("PeakFrequency() should fail on 8 samples")
	}

	if _, err := PeakFrequency(make([]float64, 1024), 0); err == nil {
		t.Fatal("PeakFrequency() should fail on zero sample rate")
	}
}

func TestMagnitude(t *testing.T) {
	got := Magnitude([]complex128{3 + 4i, 0, -1})

	want := []float64{5, 0, 1}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Fatalf("Magnitude[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
