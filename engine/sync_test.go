package engine

import (
	"math"
	"testing"
)

func TestDivisionIndexBuckets(t *testing.T) {
	tests := []struct {
		t    float64
		want int
	}{
		{t: 0, want: 0},
		{t: 0.11, want: 0},
		{t: 0.12, want: 1},
		{t: 0.5, want: 4},
		{t: 0.99, want: 8},
		{t: 1, want: 8},
		{t: -0.5, want: 0},
		{t: 2, want: 8},
	}

	for _, tt := range tests {
		if got := DivisionIndex(tt.t); got != tt.want {
			t.Errorf("DivisionIndex(%v) = %d, want %d", tt.t, got, tt.want)
		}
	}
}

func TestDivisionTablesAgree(t *testing.T) {
	if len(SyncDivisions) != len(SyncDivisionNames) {
		t.Fatalf("division table is %d entries, names table is %d",
			len(SyncDivisions), len(SyncDivisionNames))
	}

	for i := 1; i < len(SyncDivisions); i++ {
		if SyncDivisions[i] != SyncDivisions[i-1]*2 {
			t.Errorf("division %d (%v) is not double division %d (%v)",
				i, SyncDivisions[i], i-1, SyncDivisions[i-1])
		}
	}
}

func TestDivisionSamples(t *testing.T) {
	info := TransportInfo{BPM: 120}

	// A quarter note at 120 BPM and 48 kHz is half a second.
	if got := DivisionSamples(0.5, info, 48000); got != 24000 {
		t.Errorf("quarter note = %v samples, want 24000", got)
	}

	// One bar is four quarters.
	if got := DivisionSamples(0.7, info, 48000); got != 96000 {
		t.Errorf("one bar = %v samples, want 96000", got)
	}

	// 1/64 at the bottom of the knob.
	if got := DivisionSamples(0, info, 48000); math.Abs(got-1500) > 1e-9 {
		t.Errorf("1/64 = %v samples, want 1500", got)
	}
}

func TestDivisionSamplesStoppedTransport(t *testing.T) {
	want := DivisionSamples(0.5, DefaultTransport(), 48000)

	for _, bpm := range []float64{0, -10} {
		if got := DivisionSamples(0.5, TransportInfo{BPM: bpm}, 48000); got != want {
			t.Errorf("BPM %v: got %v, want default-tempo %v", bpm, got, want)
		}
	}
}
