// Package utility implements the routing and gain tools: mid-side
// processing, stereo width, mono folding, trim, phase rotation, the chaos
// modulator and the feedback network.
package utility

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/engine"
)

// MidSide encodes stereo pairs to mid/side, applies independent gains,
// and decodes back. Listen solos either leg for checking a mix.
//
// Parameters: Mid Gain, Side Gain, Listen.
type MidSide struct {
	params *engine.ParamSet

	prepared bool
}

// NewMidSide creates an unprepared mid-side processor.
func NewMidSide() *MidSide {
	return &MidSide{params: engine.NewParamSetFor(engine.MidSideProcessor, "Mid Gain", "Side Gain", "Listen")}
}

// Name implements engine.Engine.
func (m *MidSide) Name() string { return "Mid-Side Processor" }

// NumParameters implements engine.Engine.
func (m *MidSide) NumParameters() int { return m.params.Num() }

// ParameterName implements engine.Engine.
func (m *MidSide) ParameterName(i int) string { return m.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (m *MidSide) UpdateParameters(changes map[int]float64) { m.params.Update(changes) }

// LatencySamples implements engine.Engine.
func (m *MidSide) LatencySamples() int { return 0 }

// Prepare implements engine.Engine.
func (m *MidSide) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("mid-side processor sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("mid-side processor max block must be > 0: %d", maxBlock)
	}

	m.prepared = true

	return nil
}

// Reset implements engine.Engine.
func (m *MidSide) Reset() {}

// Process implements engine.Engine.
func (m *MidSide) Process(buf [][]float64) {
	if !m.prepared || len(buf) < 2 {
		return
	}

	midGain := core.DBToLinear((m.params.Value(0) - 0.5) * 24)
	sideGain := core.DBToLinear((m.params.Value(1) - 0.5) * 24)

	// Listen: 0..1/3 stereo, 1/3..2/3 mid only, above side only.
	listen := int(m.params.Value(2) * 2.999)

	for ch := 0; ch+1 < len(buf) && ch+1 < engine.MaxChannels; ch += 2 {
		for i := range buf[ch] {
			left := buf[ch][i]
			right := buf[ch+1][i]

			mid := (left + right) * 0.5 * midGain
			side := (left - right) * 0.5 * sideGain

			switch listen {
			case 1:
				side = 0
			case 2:
				mid = 0
			}

			buf[ch][i] = mid + side
			buf[ch+1][i] = mid - side
		}
	}
}
