package dynamics

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/engine"
)

// Transient reshapes attack and sustain independently using the difference
// between a fast and a slow envelope follower.
//
// Parameters: Attack, Sustain, Output.
type Transient struct {
	params *engine.ParamSet

	sampleRate float64
	prepared   bool

	fast []detector
	slow []detector
}

// NewTransient creates an unprepared transient shaper.
func NewTransient() *Transient {
	return &Transient{params: engine.NewParamSetFor(engine.TransientShaper, "Attack", "Sustain", "Output")}
}

// Name implements engine.Engine.
func (t *Transient) Name() string { return "Transient Shaper" }

// NumParameters implements engine.Engine.
func (t *Transient) NumParameters() int { return t.params.Num() }

// ParameterName implements engine.Engine.
func (t *Transient) ParameterName(i int) string { return t.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (t *Transient) UpdateParameters(changes map[int]float64) { t.params.Update(changes) }

// LatencySamples implements engine.Engine.
func (t *Transient) LatencySamples() int { return 0 }

// Prepare implements engine.Engine.
func (t *Transient) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("transient shaper sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("transient shaper max block must be > 0: %d", maxBlock)
	}

	t.sampleRate = sampleRate

	t.fast = t.fast[:0]
	t.slow = t.slow[:0]

	for ch := 0; ch < engine.MaxChannels; ch++ {
		t.fast = append(t.fast, newDetector(0.5, 50, sampleRate))
		t.slow = append(t.slow, newDetector(25, 150, sampleRate))
	}

	t.prepared = true

	return nil
}

// Reset implements engine.Engine.
func (t *Transient) Reset() {
	for ch := range t.fast {
		t.fast[ch].reset()
		t.slow[ch].reset()
	}
}

// Process implements engine.Engine.
func (t *Transient) Process(buf [][]float64) {
	if !t.prepared || len(buf) == 0 {
		return
	}

	nch := len(buf)
	if nch > engine.MaxChannels {
		nch = engine.MaxChannels
	}

	attack := (t.params.Value(0) - 0.5) * 2  // -1..+1
	sustain := (t.params.Value(1) - 0.5) * 2 // -1..+1
	output := core.DBToLinear((t.params.Value(2) - 0.5) * 24)

	for i := range buf[0] {
		for ch := 0; ch < nch; ch++ {
			x := buf[ch][i]

			fast := t.fast[ch].track(x)
			slow := t.slow[ch].track(x)

			// Positive while the fast envelope leads: the attack phase.
			// Negative once the fast envelope falls under the slow: decay.
			diff := fast - slow

			gainDB := 0.0
			if diff > 0 {
				gainDB = attack * 18 * core.Clamp(diff*4, 0, 1)
			} else {
				gainDB = sustain * 18 * core.Clamp(-diff*4, 0, 1)
			}

			buf[ch][i] = core.HardLimit(x*core.DBToLinear(gainDB)*output, 2)
		}
	}
}
