package engine

import (
	"math"
	"testing"
)

func TestNewParamSetStartsCentered(t *testing.T) {
	p := NewParamSet("A", "B", "C")

	if p.Num() != 3 {
		t.Fatalf("Num() = %d, want 3", p.Num())
	}

	for i := 0; i < 3; i++ {
		if v := p.Value(i); v != 0.5 {
			t.Errorf("Value(%d) = %v, want 0.5", i, v)
		}
	}
}

func TestNewParamSetTruncatesLongNameLists(t *testing.T) {
	names := make([]string, MaxSlotParams+4)
	for i := range names {
		names[i] = "P"
	}

	p := NewParamSet(names...)
	if p.Num() != MaxSlotParams {
		t.Fatalf("Num() = %d, want %d", p.Num(), MaxSlotParams)
	}
}

func TestUpdateClampsAndFilters(t *testing.T) {
	p := NewParamSet("A", "B")

	p.Update(map[int]float64{
		0:  1.7,
		1:  -0.3,
		2:  0.9, // out of range index
		-1: 0.9, // negative index
	})

	if v := p.Value(0); v != 1 {
		t.Errorf("Value(0) = %v, want 1", v)
	}
	if v := p.Value(1); v != 0 {
		t.Errorf("Value(1) = %v, want 0", v)
	}
}

func TestUpdateIgnoresNonFinite(t *testing.T) {
	p := NewParamSet("A")
	p.Set(0, 0.8)

	p.Update(map[int]float64{0: math.NaN()})
	if v := p.Value(0); v != 0.8 {
		t.Errorf("NaN overwrote the target: Value(0) = %v", v)
	}

	p.Update(map[int]float64{0: math.Inf(-1)})
	if v := p.Value(0); v != 0.8 {
		t.Errorf("-Inf overwrote the target: Value(0) = %v", v)
	}
}

func TestValueOutOfRangeReturnsCenter(t *testing.T) {
	p := NewParamSet("A")

	if v := p.Value(5); v != 0.5 {
		t.Errorf("Value(5) = %v, want 0.5", v)
	}
	if v := p.Value(-1); v != 0.5 {
		t.Errorf("Value(-1) = %v, want 0.5", v)
	}
}

func TestNameLookup(t *testing.T) {
	p := NewParamSet("Rate", "Depth")

	if got := p.Name(1); got != "Depth" {
		t.Errorf("Name(1) = %q, want %q", got, "Depth")
	}
	if got := p.Name(7); got != "" {
		t.Errorf("Name(7) = %q, want empty", got)
	}
}

func TestBoolThreshold(t *testing.T) {
	p := NewParamSet("Sw")

	p.Set(0, 0.49)
	if p.Bool(0) {
		t.Error("0.49 should be off")
	}

	p.Set(0, 0.5)
	if !p.Bool(0) {
		t.Error("0.5 should be on")
	}
}

func TestMappingHelpers(t *testing.T) {
	p := NewParamSet("A")

	p.Set(0, 0.5)
	if got := p.Ranged(0, 100, 200); got != 150 {
		t.Errorf("Ranged = %v, want 150", got)
	}
	if got := p.Bipolar(0, 12); got != 0 {
		t.Errorf("Bipolar = %v, want 0", got)
	}

	p.Set(0, 1)
	if got := p.Logarithmic(0, 20, 20000); math.Abs(got-20000) > 1e-9 {
		t.Errorf("Logarithmic at 1 = %v, want 20000", got)
	}
	if got := p.Bipolar(0, 12); got != 12 {
		t.Errorf("Bipolar at 1 = %v, want 12", got)
	}

	p.Set(0, 0)
	if got := p.Logarithmic(0, 20, 20000); math.Abs(got-20) > 1e-9 {
		t.Errorf("Logarithmic at 0 = %v, want 20", got)
	}

	// Geometric midpoint, not arithmetic.
	p.Set(0, 0.5)
	if got := p.Logarithmic(0, 10, 1000); math.Abs(got-100) > 1e-9 {
		t.Errorf("Logarithmic at 0.5 = %v, want 100", got)
	}

	// Non-positive bounds fall back to the linear mapping.
	if got := p.Logarithmic(0, -6, 6); got != 0 {
		t.Errorf("Logarithmic fallback = %v, want 0", got)
	}
}
