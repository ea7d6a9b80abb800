package modulation

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/dsp/delay"
	"github.com/cwbudde/algo-rack/engine"
)

// Dimension is the bucket-brigade stereo widener: two short modulated
// delays driven by antiphase LFOs, cross-blended into the opposite
// channel with inverted polarity. Mono sums stay clean because the
// inverted cross terms cancel.
//
// Parameters: Size, Rate, Mix.
type Dimension struct {
	params *engine.ParamSet

	sampleRate float64
	prepared   bool

	osc   lfo
	lines []*delay.Line
}

// NewDimension creates an unprepared dimension expander.
func NewDimension() *Dimension {
	return &Dimension{params: engine.NewParamSetFor(engine.DimensionExpander, "Size", "Rate", "Mix")}
}

// Name implements engine.Engine.
func (d *Dimension) Name() string { return "Dimension Expander" }

// NumParameters implements engine.Engine.
func (d *Dimension) NumParameters() int { return d.params.Num() }

// ParameterName implements engine.Engine.
func (d *Dimension) ParameterName(i int) string { return d.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (d *Dimension) UpdateParameters(changes map[int]float64) { d.params.Update(changes) }

// LatencySamples implements engine.Engine.
func (d *Dimension) LatencySamples() int { return 0 }

// Prepare implements engine.Engine.
func (d *Dimension) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("dimension expander sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("dimension expander max block must be > 0: %d", maxBlock)
	}

	d.sampleRate = sampleRate
	d.lines = d.lines[:0]

	capacity := int(0.012*sampleRate) + 16

	for ch := 0; ch < engine.MaxChannels; ch++ {
		line, err := delay.New(capacity)
		if err != nil {
			return fmt.Errorf("dimension expander delay line: %w", err)
		}

		d.lines = append(d.lines, line)
	}

	d.prepared = true
	d.osc.reset()

	return nil
}

// Reset implements engine.Engine.
func (d *Dimension) Reset() {
	d.osc.reset()

	for _, line := range d.lines {
		line.Reset()
	}
}

// Process implements engine.Engine.
func (d *Dimension) Process(buf [][]float64) {
	if !d.prepared || len(buf) < 2 {
		return
	}

	d.osc.setRate(0.15+d.params.Value(1)*0.85, d.sampleRate)

	size := d.params.Value(0)
	baseSamp := (4 + size*4) * 0.001 * d.sampleRate
	depthSamp := size * 2 * 0.001 * d.sampleRate
	mix := d.params.Value(2)

	n := len(buf[0])
	for i := 0; i < n; i++ {
		for ch := 0; ch+1 < len(buf) && ch+1 < engine.MaxChannels; ch += 2 {
			left := buf[ch][i]
			right := buf[ch+1][i]

			d.lines[ch].Write(left)
			d.lines[ch+1].Write(right)

			modL := d.osc.value(0, 0)
			modR := d.osc.value(0.5, 0)

			wetL := d.lines[ch].ReadFractional(baseSamp + depthSamp*0.5*(1+modL))
			wetR := d.lines[ch+1].ReadFractional(baseSamp + depthSamp*0.5*(1+modR))

			buf[ch][i] = left + (wetL-wetR*0.7)*mix*0.7
			buf[ch+1][i] = right + (wetR-wetL*0.7)*mix*0.7
		}

		d.osc.advance()
	}
}
