package engine

import (
	"math"
	"sync/atomic"
)

// ParamSet gives engines lock-free parameter plumbing: a fixed table of
// atomic normalized targets plus the display-name table. Engines embed one
// and pull targets into their smoothers at block start.
type ParamSet struct {
	names   []string
	targets [MaxSlotParams]atomic.Uint64
}

// NewParamSet creates a set with the given display names, all targets at 0.5.
// Names beyond MaxSlotParams are ignored.
func NewParamSet(names ...string) *ParamSet {
	if len(names) > MaxSlotParams {
		names = names[:MaxSlotParams]
	}

	p := &ParamSet{names: names}
	for i := range p.targets {
		p.targets[i].Store(math.Float64bits(0.5))
	}

	return p
}

// Update stores the given normalized values. Unknown indices and non-finite
// values are ignored; in-range values are clamped to [0, 1]. Safe from any
// goroutine.
func (p *ParamSet) Update(changes map[int]float64) {
	for i, v := range changes {
		if i < 0 || i >= len(p.names) {
			continue
		}

		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}

		if v < 0 {
			v = 0
		} else if v > 1 {
			v = 1
		}

		p.targets[i].Store(math.Float64bits(v))
	}
}

// Set stores one normalized value, with the same clamping as Update.
func (p *ParamSet) Set(i int, v float64) {
	p.Update(map[int]float64{i: v})
}

// Value returns the current target for parameter i, or 0.5 out of range.
func (p *ParamSet) Value(i int) float64 {
	if i < 0 || i >= len(p.names) {
		return 0.5
	}

	return math.Float64frombits(p.targets[i].Load())
}

// Num returns the number of named parameters.
func (p *ParamSet) Num() int {
	return len(p.names)
}

// Name returns the display name of parameter i, or "".
func (p *ParamSet) Name(i int) string {
	if i < 0 || i >= len(p.names) {
		return ""
	}

	return p.names[i]
}

// Bool interprets parameter i as a switch (>= 0.5 means on).
func (p *ParamSet) Bool(i int) bool {
	return p.Value(i) >= 0.5
}

// Ranged maps parameter i linearly into [min, max].
func (p *ParamSet) Ranged(i int, min, max float64) float64 {
	return min + p.Value(i)*(max-min)
}

// Logarithmic maps parameter i exponentially into [min, max]; both bounds
// must be positive. Suits frequency and time knobs.
func (p *ParamSet) Logarithmic(i int, min, max float64) float64 {
	if min <= 0 || max <= 0 {
		return p.Ranged(i, min, max)
	}

	return min * math.Pow(max/min, p.Value(i))
}

// Bipolar maps parameter i into [-span, span] with 0.5 at zero.
func (p *ParamSet) Bipolar(i int, span float64) float64 {
	return (p.Value(i) - 0.5) * 2 * span
}
